package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks the full configuration and returns the first problem
// found.
func (v *Validator) Validate(cfg *Config) error {
	if cfg.Store.Dimension <= 0 {
		return fmt.Errorf("store dimension must be positive, got %d", cfg.Store.Dimension)
	}

	if err := v.ValidateProvider(cfg.Embedding); err != nil {
		return err
	}

	if cfg.Search.Alpha < 0 || cfg.Search.Alpha > 1 {
		return fmt.Errorf("search alpha must be in [0, 1], got %v", cfg.Search.Alpha)
	}
	if cfg.Search.BM25K1 <= 0 {
		return fmt.Errorf("bm25 k1 must be positive, got %v", cfg.Search.BM25K1)
	}
	if cfg.Search.BM25B < 0 || cfg.Search.BM25B > 1 {
		return fmt.Errorf("bm25 b must be in [0, 1], got %v", cfg.Search.BM25B)
	}

	if cfg.Recall.MaxBranches < 1 {
		return fmt.Errorf("recall max branches must be at least 1, got %d", cfg.Recall.MaxBranches)
	}
	if cfg.Recall.MaxDepth < 1 {
		return fmt.Errorf("recall max depth must be at least 1, got %d", cfg.Recall.MaxDepth)
	}
	if cfg.Recall.Temperature < 0 {
		return fmt.Errorf("recall temperature must be non-negative, got %v", cfg.Recall.Temperature)
	}

	if cfg.Consolidation.Schedule != "" {
		if err := v.ValidateSchedule(cfg.Consolidation.Schedule); err != nil {
			return err
		}
	}
	if cfg.Consolidation.LinkUpdateStrength <= 0 {
		return fmt.Errorf("link update strength must be positive, got %v", cfg.Consolidation.LinkUpdateStrength)
	}
	if cfg.Consolidation.EdgeCap <= 0 {
		return fmt.Errorf("edge cap must be positive, got %v", cfg.Consolidation.EdgeCap)
	}

	if cfg.WorkingSet.Capacity < 1 {
		return fmt.Errorf("working-set capacity must be at least 1, got %d", cfg.WorkingSet.Capacity)
	}

	return nil
}

// ValidateProvider validates embedding provider settings
func (v *Validator) ValidateProvider(cfg EmbeddingConfig) error {
	switch cfg.Provider {
	case "mock":
		return nil
	case "openai":
		if cfg.APIKey == "" {
			return fmt.Errorf("openai API key cannot be empty")
		}
		if !strings.HasPrefix(cfg.APIKey, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
		return nil
	default:
		return fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// ValidateSchedule validates a cron expression
func (v *Validator) ValidateSchedule(expr string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}
