package assoc

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/engram/pkg/memory"
	"github.com/harun/engram/pkg/rank"
)

const testDim = 4

type stubProvider struct{}

func (stubProvider) Dimension() int { return testDim }

func (stubProvider) GenerateEmbedding(_ context.Context, text string) ([]float32, error) {
	if strings.Contains(strings.ToLower(text), "sunset") {
		return []float32{1, 0, 0, 0}, nil
	}
	return []float32{0, 0, 1, 0}, nil
}

func (p stubProvider) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := p.GenerateEmbedding(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

type recallFixture struct {
	store  *memory.Store
	engine *Engine
	a      *memory.Record
	b      *memory.Record
	c      *memory.Record
}

// newRecallFixture builds a three-node graph where A seeds from the
// "sunset" context and its strongest edge points at B.
func newRecallFixture(t *testing.T) *recallFixture {
	t.Helper()
	ctx := context.Background()

	store, err := memory.New(memory.Config{
		Path:      filepath.Join(t.TempDir(), "test.db"),
		Dimension: testDim,
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	create := func(content string) *memory.Record {
		vec, err := stubProvider{}.GenerateEmbedding(ctx, content)
		require.NoError(t, err)
		rec, err := store.Create(ctx, memory.Draft{
			Content:    content,
			Embedding:  vec,
			Emotion:    memory.EmotionNeutral,
			Category:   memory.CategoryObservation,
			Importance: 3,
		})
		require.NoError(t, err)
		return rec
	}

	a := create("sunset over the bay")
	b := create("felt moved by the colors")
	c := create("wrote a grocery list")

	require.NoError(t, store.Bump(ctx, a.ID, b.ID, 0.9, 1.0))
	require.NoError(t, store.Bump(ctx, a.ID, c.ID, 0.2, 1.0))

	retriever := rank.NewRetriever(store, stubProvider{}, rank.Config{
		Alpha:          0.7,
		BM25K1:         1.2,
		BM25B:          0.75,
		CandidateLimit: 50,
		Logger:         zerolog.Nop(),
	})
	engine := NewEngine(store, retriever, Config{Logger: zerolog.Nop(), Seed: 1})

	return &recallFixture{store: store, engine: engine, a: a, b: b, c: c}
}

func TestRecallZeroTemperatureIsDeterministic(t *testing.T) {
	fx := newRecallFixture(t)
	ctx := context.Background()

	params := Params{NResults: 1, MaxBranches: 1, MaxDepth: 1, Temperature: 0}
	for i := 0; i < 5; i++ {
		results, err := fx.engine.RecallDivergent(ctx, "sunset", params)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, fx.b.ID, results[0].Record.ID, "run %d", i)
		assert.Equal(t, fx.a.ID, results[0].SeedID)
		assert.Equal(t, 1, results[0].Hops)
		assert.Greater(t, results[0].Activation, 0.0)
	}
}

func TestRecallExcludesSeedsAndBoundsResults(t *testing.T) {
	fx := newRecallFixture(t)
	ctx := context.Background()

	results, err := fx.engine.RecallDivergent(ctx, "sunset", Params{
		NResults:    2,
		MaxBranches: 2,
		MaxDepth:    2,
		Temperature: 0.7,
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(results), 2)

	seeds, err := fx.engine.retriever.Peek(ctx, "sunset", memory.Filter{}, 2)
	require.NoError(t, err)
	seedIDs := make(map[string]bool)
	for _, s := range seeds {
		seedIDs[s.Record.ID] = true
	}
	for _, res := range results {
		assert.False(t, seedIDs[res.Record.ID], "seed %s leaked into results", res.Record.ID)
	}
}

func TestRecallCommitSideEffects(t *testing.T) {
	fx := newRecallFixture(t)
	ctx := context.Background()

	results, err := fx.engine.RecallDivergent(ctx, "sunset", Params{
		NResults:    1,
		MaxBranches: 1,
		MaxDepth:    1,
		Temperature: 0,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	// Returned records carry fresh activation history.
	got, err := fx.store.Get(ctx, fx.b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ActivationCount)
	assert.Greater(t, got.NoveltyScore, 0.0)

	// Seed-visited pairs land in the co-activation log.
	events, err := fx.store.CoActivationsSince(ctx, time.Now().Add(-time.Hour), 100)
	require.NoError(t, err)
	require.NotEmpty(t, events)

	found := false
	for _, ev := range events {
		if (ev.SourceID == fx.a.ID && ev.TargetID == fx.b.ID) ||
			(ev.SourceID == fx.b.ID && ev.TargetID == fx.a.ID) {
			found = true
		}
	}
	assert.True(t, found, "expected a co-activation event for the seed and visited node")
}

func TestDiagnoseWritesNothing(t *testing.T) {
	fx := newRecallFixture(t)
	ctx := context.Background()

	diag, err := fx.engine.Diagnose(ctx, "sunset", Params{
		NResults:    2,
		MaxBranches: 2,
		MaxDepth:    2,
		Temperature: 0,
	})
	require.NoError(t, err)
	require.NotNil(t, diag)
	assert.Greater(t, diag.Seeds, 0)
	assert.Greater(t, diag.TraversedEdges, 0)

	events, err := fx.store.CoActivationsSince(ctx, time.Now().Add(-time.Hour), 100)
	require.NoError(t, err)
	assert.Empty(t, events)

	for _, id := range []string{fx.a.ID, fx.b.ID, fx.c.ID} {
		got, err := fx.store.Get(ctx, id)
		require.NoError(t, err)
		assert.Zero(t, got.AccessCount, "diagnostic run touched access count of %s", id)
		assert.Zero(t, got.ActivationCount, "diagnostic run touched activation count of %s", id)
	}
}

func TestRecallEmptyStore(t *testing.T) {
	store, err := memory.New(memory.Config{
		Path:      filepath.Join(t.TempDir(), "test.db"),
		Dimension: testDim,
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	retriever := rank.NewRetriever(store, stubProvider{}, rank.Config{
		Alpha: 0.7, BM25K1: 1.2, BM25B: 0.75, Logger: zerolog.Nop(),
	})
	engine := NewEngine(store, retriever, Config{Logger: zerolog.Nop(), Seed: 1})

	results, err := engine.RecallDivergent(context.Background(), "anything", Params{
		NResults: 3, MaxBranches: 2, MaxDepth: 2, Temperature: 0.7,
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRecallValidation(t *testing.T) {
	fx := newRecallFixture(t)

	_, err := fx.engine.RecallDivergent(context.Background(), "sunset", Params{
		NResults: 0, MaxBranches: 1, MaxDepth: 1,
	})
	assert.ErrorIs(t, err, memory.ErrValidation)

	_, err = fx.engine.RecallDivergent(context.Background(), "sunset", Params{
		NResults: 1, MaxBranches: 1, MaxDepth: 1, Temperature: -1,
	})
	assert.ErrorIs(t, err, memory.ErrValidation)
}
