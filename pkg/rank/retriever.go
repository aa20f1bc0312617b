package rank

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/harun/engram/internal/observability"
	"github.com/harun/engram/pkg/embedding"
	"github.com/harun/engram/pkg/memory"
)

// Config holds hybrid retriever tuning parameters
type Config struct {
	// Alpha weights the similarity score; the lexical score gets 1 - alpha.
	Alpha          float64
	BM25K1         float64
	BM25B          float64
	CandidateLimit int
	Logger         zerolog.Logger
}

// Result is one ranked record with its score breakdown
type Result struct {
	Record     *memory.Record
	Score      float64
	Similarity float64
	Lexical    float64
}

// Retriever ranks records by a weighted blend of embedding similarity
// and BM25 lexical relevance.
type Retriever struct {
	store    *memory.Store
	provider embedding.Provider
	cfg      Config
	logger   zerolog.Logger

	mu       sync.Mutex
	index    *Index
	indexRev int64
}

// NewRetriever creates a hybrid retriever over the given store
func NewRetriever(store *memory.Store, provider embedding.Provider, cfg Config) *Retriever {
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = 200
	}
	observability.EnsureRegistered()

	return &Retriever{
		store:    store,
		provider: provider,
		cfg:      cfg,
		logger:   cfg.Logger.With().Str("component", "retriever").Logger(),
		index:    NewIndex(cfg.BM25K1, cfg.BM25B),
		indexRev: -1,
	}
}

// Search ranks records against the query and commits read-path side
// effects: every returned record gets an access bump, and every pair
// of returned records gets a co-activation event for consolidation to
// replay later.
func (r *Retriever) Search(ctx context.Context, query string, filter memory.Filter, nResults int) ([]Result, error) {
	start := time.Now()

	results, err := r.rank(ctx, query, filter, nResults)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(results))
	for i, res := range results {
		ids[i] = res.Record.ID
	}

	if err := r.store.UpdateAccess(ctx, ids...); err != nil {
		return nil, err
	}

	var pairs [][2]string
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			pairs = append(pairs, [2]string{ids[i], ids[j]})
		}
	}
	if err := r.store.AppendCoActivations(ctx, pairs); err != nil {
		return nil, err
	}

	observability.RecordSearch(time.Since(start))
	r.logger.Debug().
		Int("results", len(results)).
		Dur("elapsed", time.Since(start)).
		Msg("hybrid search completed")

	return results, nil
}

// Peek ranks records against the query without touching access counts
// or the co-activation log. Used by diagnostics and episode search.
func (r *Retriever) Peek(ctx context.Context, query string, filter memory.Filter, nResults int) ([]Result, error) {
	return r.rank(ctx, query, filter, nResults)
}

func (r *Retriever) rank(ctx context.Context, query string, filter memory.Filter, nResults int) ([]Result, error) {
	if nResults <= 0 {
		return nil, fmt.Errorf("%w: n_results must be positive, got %d", memory.ErrValidation, nResults)
	}

	queryVec, err := r.provider.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	distances, err := r.store.VectorDistances(ctx, queryVec, r.cfg.CandidateLimit)
	if err != nil {
		return nil, err
	}
	if len(distances) == 0 {
		return nil, nil
	}

	simByID := make(map[string]float64, len(distances))
	ids := make([]string, len(distances))
	for i, d := range distances {
		ids[i] = d.RecordID
		// vec0 stores cosine distance; similarity is its complement.
		simByID[d.RecordID] = 1 - d.Distance
	}

	records, err := r.store.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	candidates := records[:0]
	for _, rec := range records {
		if filter.Match(rec) {
			candidates = append(candidates, rec)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	lexByID, err := r.lexicalScores(ctx, query)
	if err != nil {
		return nil, err
	}

	simRaw := make([]float64, len(candidates))
	lexRaw := make([]float64, len(candidates))
	for i, rec := range candidates {
		simRaw[i] = simByID[rec.ID]
		lexRaw[i] = lexByID[rec.ID]
	}
	simNorm := normalize(simRaw)
	lexNorm := normalize(lexRaw)

	results := make([]Result, len(candidates))
	for i, rec := range candidates {
		results[i] = Result{
			Record:     rec,
			Score:      r.cfg.Alpha*simNorm[i] + (1-r.cfg.Alpha)*lexNorm[i],
			Similarity: simRaw[i],
			Lexical:    lexRaw[i],
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Record.Importance != results[j].Record.Importance {
			return results[i].Record.Importance > results[j].Record.Importance
		}
		return results[i].Record.CreatedAt.After(results[j].Record.CreatedAt)
	})

	if len(results) > nResults {
		results = results[:nResults]
	}
	return results, nil
}

// lexicalScores rebuilds the BM25 index if the store has changed since
// the last build, then scores the query against it.
func (r *Retriever) lexicalScores(ctx context.Context, query string) (map[string]float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rev := r.store.Revision(); rev != r.indexRev {
		docs, err := r.store.AllDocuments(ctx)
		if err != nil {
			return nil, err
		}
		r.index.Build(docs)
		r.indexRev = rev
		r.logger.Debug().Int("documents", len(docs)).Msg("rebuilt lexical index")
	}

	return r.index.Scores(query), nil
}

// normalize min-max scales values into [0, 1]. A flat non-zero slice
// maps to 1 so a lone candidate is not penalized.
func normalize(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}

	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	for i, v := range values {
		switch {
		case max > min:
			out[i] = (v - min) / (max - min)
		case max != 0:
			out[i] = 1
		default:
			out[i] = 0
		}
	}
	return out
}
