package assoc

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/harun/engram/internal/observability"
	"github.com/harun/engram/pkg/memory"
	"github.com/harun/engram/pkg/rank"
)

const (
	minDepth    = 1
	maxDepth    = 5
	minBranches = 1
	maxBranches = 8

	// depthDecay attenuates activation per traversal hop so distant
	// nodes need strong paths to surface.
	depthDecay = 0.8

	// poolFactor widens the neighbor pool beyond the branch count so
	// temperature sampling has weaker edges to explore.
	poolFactor = 2
)

// Params tunes one divergent recall run
type Params struct {
	NResults    int
	MaxBranches int
	MaxDepth    int
	Temperature float64
}

// Result is one recalled non-seed record with provenance
type Result struct {
	Record     *memory.Record
	Activation float64
	SeedID     string
	Hops       int
}

// Diagnostics summarizes one traversal without exposing its results
type Diagnostics struct {
	Seeds              int
	TraversedEdges     int
	ExpandedNodes      int
	AvgBranchingFactor float64
	AvgPredictionError float64
	AvgNovelty         float64
}

// Config holds recall engine construction parameters
type Config struct {
	Logger zerolog.Logger

	// Seed fixes the sampling RNG; zero seeds from the clock.
	Seed int64

	// DiagnosticsCountMetrics controls whether read-only diagnostic
	// runs increment recall counters.
	DiagnosticsCountMetrics bool
}

// Engine performs divergent recall: spreading activation from hybrid
// search seeds across the association graph, with temperature-sampled
// branching.
type Engine struct {
	store     *memory.Store
	retriever *rank.Retriever
	logger    zerolog.Logger
	countDiag bool

	mu  sync.Mutex
	rng *rand.Rand
}

// NewEngine creates a recall engine over the given store and retriever
func NewEngine(store *memory.Store, retriever *rank.Retriever, cfg Config) *Engine {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	observability.EnsureRegistered()

	return &Engine{
		store:     store,
		retriever: retriever,
		logger:    cfg.Logger.With().Str("component", "recall").Logger(),
		countDiag: cfg.DiagnosticsCountMetrics,
		rng:       rand.New(rand.NewSource(seed)),
	}
}

// RecallDivergent runs divergent recall and commits its side effects:
// the underlying search bumps access counts, every seed paired with
// every visited node gets a co-activation event, and returned records
// get their activation history updated.
func (e *Engine) RecallDivergent(ctx context.Context, contextText string, p Params) ([]Result, error) {
	start := time.Now()

	results, diag, err := e.traverse(ctx, contextText, p, true)
	if err != nil {
		return nil, err
	}

	for _, res := range results {
		predErr := PredictionError(contextText, res.Record)
		novelty := NoveltyScore(res.Record.ActivationCount, predErr)
		if err := e.store.RecordActivation(ctx, res.Record.ID, novelty, predErr); err != nil {
			return nil, err
		}
	}

	observability.RecordRecall("commit", time.Since(start), diag.ExpandedNodes)
	e.logger.Debug().
		Int("results", len(results)).
		Int("expanded", diag.ExpandedNodes).
		Dur("elapsed", time.Since(start)).
		Msg("divergent recall completed")

	return results, nil
}

// Diagnose runs the identical traversal without writing anything,
// returning branching statistics instead of records.
func (e *Engine) Diagnose(ctx context.Context, contextText string, p Params) (*Diagnostics, error) {
	start := time.Now()

	results, diag, err := e.traverse(ctx, contextText, p, false)
	if err != nil {
		return nil, err
	}

	var sumErr, sumNov float64
	for _, res := range results {
		predErr := PredictionError(contextText, res.Record)
		sumErr += predErr
		sumNov += NoveltyScore(res.Record.ActivationCount, predErr)
	}
	if len(results) > 0 {
		diag.AvgPredictionError = sumErr / float64(len(results))
		diag.AvgNovelty = sumNov / float64(len(results))
	}

	if e.countDiag {
		observability.RecordRecall("diagnostic", time.Since(start), diag.ExpandedNodes)
	}
	return diag, nil
}

type frontierNode struct {
	id         string
	activation float64
	seedID     string
}

func (e *Engine) traverse(ctx context.Context, contextText string, p Params, commit bool) ([]Result, *Diagnostics, error) {
	p, err := clampParams(p)
	if err != nil {
		return nil, nil, err
	}

	var seeds []rank.Result
	if commit {
		seeds, err = e.retriever.Search(ctx, contextText, memory.Filter{}, p.MaxBranches)
	} else {
		seeds, err = e.retriever.Peek(ctx, contextText, memory.Filter{}, p.MaxBranches)
	}
	if err != nil {
		return nil, nil, err
	}
	if len(seeds) == 0 {
		return nil, &Diagnostics{}, nil
	}

	seedSet := make(map[string]bool, len(seeds))
	frontier := make([]frontierNode, 0, len(seeds))
	for _, s := range seeds {
		seedSet[s.Record.ID] = true
		frontier = append(frontier, frontierNode{
			id:         s.Record.ID,
			activation: s.Score,
			seedID:     s.Record.ID,
		})
	}

	total := make(map[string]float64)
	origin := make(map[string]*Result)
	visited := make(map[string]bool, len(seeds))
	for id := range seedSet {
		visited[id] = true
	}

	diag := &Diagnostics{Seeds: len(seeds)}
	branchingSum := 0
	expansions := 0

	e.mu.Lock()
	defer e.mu.Unlock()

	for depth := 1; depth <= p.MaxDepth; depth++ {
		decay := math.Pow(depthDecay, float64(depth))
		var next []frontierNode

		for _, node := range frontier {
			neighbors, err := e.store.Neighbors(ctx, node.id, p.MaxBranches*poolFactor)
			if err != nil {
				return nil, nil, err
			}
			if len(neighbors) == 0 {
				continue
			}

			weights := make([]float64, len(neighbors))
			for i, nb := range neighbors {
				weights[i] = nb.Strength
			}
			picks := SoftmaxSample(e.rng, weights, p.Temperature, p.MaxBranches)
			branchingSum += len(picks)
			expansions++

			for _, idx := range picks {
				nb := neighbors[idx]
				diag.TraversedEdges++

				contrib := node.activation * nb.Strength * decay
				total[nb.ID] += contrib

				if visited[nb.ID] {
					continue
				}
				visited[nb.ID] = true
				diag.ExpandedNodes++
				origin[nb.ID] = &Result{SeedID: node.seedID, Hops: depth}
				next = append(next, frontierNode{
					id:         nb.ID,
					activation: contrib,
					seedID:     node.seedID,
				})
			}
		}

		frontier = next
		if len(frontier) == 0 {
			break
		}
	}

	if expansions > 0 {
		diag.AvgBranchingFactor = float64(branchingSum) / float64(expansions)
	}

	ids := make([]string, 0, len(total))
	for id := range total {
		if !seedSet[id] {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		if total[ids[i]] != total[ids[j]] {
			return total[ids[i]] > total[ids[j]]
		}
		return ids[i] < ids[j]
	})
	if len(ids) > p.NResults {
		ids = ids[:p.NResults]
	}

	records, err := e.store.GetMany(ctx, ids)
	if err != nil {
		return nil, nil, err
	}

	results := make([]Result, 0, len(records))
	for _, rec := range records {
		res := origin[rec.ID]
		results = append(results, Result{
			Record:     rec,
			Activation: total[rec.ID],
			SeedID:     res.SeedID,
			Hops:       res.Hops,
		})
	}

	if commit {
		var pairs [][2]string
		for seedID := range seedSet {
			for id := range visited {
				if !seedSet[id] {
					pairs = append(pairs, [2]string{seedID, id})
				}
			}
		}
		if err := e.store.AppendCoActivations(ctx, pairs); err != nil {
			return nil, nil, err
		}
	}

	return results, diag, nil
}

func clampParams(p Params) (Params, error) {
	if p.NResults <= 0 {
		return p, fmt.Errorf("%w: n_results must be positive, got %d", memory.ErrValidation, p.NResults)
	}
	if p.Temperature < 0 {
		return p, fmt.Errorf("%w: temperature must be non-negative, got %v", memory.ErrValidation, p.Temperature)
	}

	if p.MaxBranches < minBranches {
		p.MaxBranches = minBranches
	}
	if p.MaxBranches > maxBranches {
		p.MaxBranches = maxBranches
	}
	if p.MaxDepth < minDepth {
		p.MaxDepth = minDepth
	}
	if p.MaxDepth > maxDepth {
		p.MaxDepth = maxDepth
	}
	return p, nil
}
