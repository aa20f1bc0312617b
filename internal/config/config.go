package config

// Config represents the main engram configuration
type Config struct {
	// Store
	Store StoreConfig `json:"store" mapstructure:"store"`

	// Embedding collaborator
	Embedding EmbeddingConfig `json:"embedding" mapstructure:"embedding"`

	// Hybrid search
	Search SearchConfig `json:"search" mapstructure:"search"`

	// Divergent recall
	Recall RecallConfig `json:"recall" mapstructure:"recall"`

	// Consolidation
	Consolidation ConsolidationConfig `json:"consolidation" mapstructure:"consolidation"`

	// Working-set cache
	WorkingSet WorkingSetConfig `json:"working_set" mapstructure:"working_set"`

	// Drop-directory ingest
	Ingest IngestConfig `json:"ingest" mapstructure:"ingest"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// StoreConfig holds record store configuration
type StoreConfig struct {
	Path      string `json:"path" mapstructure:"path"`
	Dimension int    `json:"dimension" mapstructure:"dimension"`
}

// EmbeddingConfig holds embedding provider configuration
type EmbeddingConfig struct {
	Provider string `json:"provider" mapstructure:"provider"` // openai, mock
	APIKey   string `json:"api_key" mapstructure:"api_key"`
	Model    string `json:"model" mapstructure:"model"`
}

// SearchConfig holds hybrid retrieval configuration
type SearchConfig struct {
	// Alpha weights the similarity ranker; the lexical ranker gets
	// 1 - alpha.
	Alpha          float64 `json:"alpha" mapstructure:"alpha"`
	BM25K1         float64 `json:"bm25_k1" mapstructure:"bm25_k1"`
	BM25B          float64 `json:"bm25_b" mapstructure:"bm25_b"`
	CandidateLimit int     `json:"candidate_limit" mapstructure:"candidate_limit"`
}

// RecallConfig holds divergent recall defaults
type RecallConfig struct {
	MaxBranches int     `json:"max_branches" mapstructure:"max_branches"`
	MaxDepth    int     `json:"max_depth" mapstructure:"max_depth"`
	Temperature float64 `json:"temperature" mapstructure:"temperature"`

	// DiagnosticsCountMetrics controls whether read-only diagnostic
	// runs increment recall counters. They never write co-activation
	// or activation state either way.
	DiagnosticsCountMetrics bool `json:"diagnostics_count_metrics" mapstructure:"diagnostics_count_metrics"`
}

// ConsolidationConfig holds replay configuration
type ConsolidationConfig struct {
	// Schedule is a cron expression; empty disables the scheduler.
	Schedule           string  `json:"schedule" mapstructure:"schedule"`
	WindowHours        int     `json:"window_hours" mapstructure:"window_hours"`
	MaxReplayEvents    int     `json:"max_replay_events" mapstructure:"max_replay_events"`
	LinkUpdateStrength float64 `json:"link_update_strength" mapstructure:"link_update_strength"`
	EdgeCap            float64 `json:"edge_cap" mapstructure:"edge_cap"`
}

// WorkingSetConfig holds working-set cache configuration
type WorkingSetConfig struct {
	Capacity      int     `json:"capacity" mapstructure:"capacity"`
	HalfLifeHours float64 `json:"half_life_hours" mapstructure:"half_life_hours"`
}

// IngestConfig holds drop-directory ingest configuration
type IngestConfig struct {
	// DropDir is watched for .txt/.md/.json drops; empty disables the
	// watcher.
	DropDir string `json:"drop_dir" mapstructure:"drop_dir"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `json:"level" mapstructure:"level"`
	File    string `json:"file" mapstructure:"file"`
	Console bool   `json:"console" mapstructure:"console"`
	Pretty  bool   `json:"pretty" mapstructure:"pretty"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Dimension: 384,
		},
		Embedding: EmbeddingConfig{
			Provider: "openai",
			Model:    "text-embedding-3-small",
		},
		Search: SearchConfig{
			Alpha:          0.7,
			BM25K1:         1.2,
			BM25B:          0.75,
			CandidateLimit: 200,
		},
		Recall: RecallConfig{
			MaxBranches: 3,
			MaxDepth:    3,
			Temperature: 0.7,
		},
		Consolidation: ConsolidationConfig{
			Schedule:           "0 3 * * *",
			WindowHours:        24,
			MaxReplayEvents:    200,
			LinkUpdateStrength: 0.2,
			EdgeCap:            1.0,
		},
		WorkingSet: WorkingSetConfig{
			Capacity:      20,
			HalfLifeHours: 12,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			Pretty:  true,
		},
	}
}
