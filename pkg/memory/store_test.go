package memory

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDim = 8

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := New(Config{
		Path:      filepath.Join(t.TempDir(), "test.db"),
		Dimension: testDim,
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func testVector(seed float32) []float32 {
	vec := make([]float32, testDim)
	for i := range vec {
		vec[i] = seed + float32(i)*0.1
	}
	return vec
}

func validDraft(content string) Draft {
	return Draft{
		Content:    content,
		Embedding:  testVector(1),
		Emotion:    EmotionNeutral,
		Category:   CategoryObservation,
		Importance: 3,
	}
}

func TestCreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	draft := validDraft("saw a heron by the river")
	draft.Emotion = EmotionMoved
	draft.Category = CategoryFeeling
	draft.Importance = 4
	draft.Tags = []string{"river", "bird"}
	draft.Media = &Media{ImagePath: "/data/heron.jpg"}
	draft.CameraPose = &CameraPose{Pan: 12.5, Tilt: -3}

	created, err := store.Create(ctx, draft)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	got, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, draft.Content, got.Content)
	assert.Equal(t, draft.Embedding, got.Embedding)
	assert.Equal(t, draft.Emotion, got.Emotion)
	assert.Equal(t, draft.Category, got.Category)
	assert.Equal(t, draft.Importance, got.Importance)
	assert.Equal(t, draft.Tags, got.Tags)
	require.NotNil(t, got.Media)
	assert.Equal(t, "/data/heron.jpg", got.Media.ImagePath)
	require.NotNil(t, got.CameraPose)
	assert.Equal(t, 12.5, got.CameraPose.Pan)
	assert.False(t, got.CreatedAt.IsZero())
	assert.Zero(t, got.AccessCount)
}

func TestCreateValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("empty content", func(t *testing.T) {
		draft := validDraft("  ")
		_, err := store.Create(ctx, draft)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("wrong dimension", func(t *testing.T) {
		draft := validDraft("content")
		draft.Embedding = make([]float32, testDim+1)
		_, err := store.Create(ctx, draft)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("unknown emotion", func(t *testing.T) {
		draft := validDraft("content")
		draft.Emotion = "furious"
		_, err := store.Create(ctx, draft)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("unknown category", func(t *testing.T) {
		draft := validDraft("content")
		draft.Category = "gossip"
		_, err := store.Create(ctx, draft)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("importance out of range", func(t *testing.T) {
		draft := validDraft("content")
		draft.Importance = 6
		_, err := store.Create(ctx, draft)
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestGetNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetManyKeepsInputOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a, err := store.Create(ctx, validDraft("first"))
	require.NoError(t, err)
	b, err := store.Create(ctx, validDraft("second"))
	require.NoError(t, err)

	got, err := store.GetMany(ctx, []string{b.ID, "missing", a.ID})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, b.ID, got[0].ID)
	assert.Equal(t, a.ID, got[1].ID)
}

func TestUpdateAccess(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec, err := store.Create(ctx, validDraft("tracked"))
	require.NoError(t, err)

	require.NoError(t, store.UpdateAccess(ctx, rec.ID))
	require.NoError(t, store.UpdateAccess(ctx, rec.ID))

	got, err := store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.AccessCount)
	assert.False(t, got.LastAccessed.IsZero())
}

func TestRecordActivation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec, err := store.Create(ctx, validDraft("activated"))
	require.NoError(t, err)

	require.NoError(t, store.RecordActivation(ctx, rec.ID, 0.8, 0.5))

	got, err := store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ActivationCount)
	assert.InDelta(t, 0.8, got.NoveltyScore, 1e-9)
	assert.InDelta(t, 0.5, got.PredictionError, 1e-9)
	assert.False(t, got.LastActivated.IsZero())
}

func TestListRecent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		draft := validDraft(fmt.Sprintf("observation %d", i))
		_, err := store.Create(ctx, draft)
		require.NoError(t, err)
	}
	feeling := validDraft("felt calm")
	feeling.Category = CategoryFeeling
	last, err := store.Create(ctx, feeling)
	require.NoError(t, err)

	t.Run("newest first", func(t *testing.T) {
		recent, err := store.ListRecent(ctx, 10, "")
		require.NoError(t, err)
		require.Len(t, recent, 4)
		assert.Equal(t, last.ID, recent[0].ID)
	})

	t.Run("category filter", func(t *testing.T) {
		recent, err := store.ListRecent(ctx, 10, CategoryFeeling)
		require.NoError(t, err)
		require.Len(t, recent, 1)
		assert.Equal(t, last.ID, recent[0].ID)
	})

	t.Run("limit", func(t *testing.T) {
		recent, err := store.ListRecent(ctx, 2, "")
		require.NoError(t, err)
		assert.Len(t, recent, 2)
	})
}

func TestDeleteCascades(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec, err := store.Create(ctx, validDraft("doomed"))
	require.NoError(t, err)
	other, err := store.Create(ctx, validDraft("survivor"))
	require.NoError(t, err)
	require.NoError(t, store.Bump(ctx, rec.ID, other.ID, 0.5, 1.0))

	require.NoError(t, store.Delete(ctx, rec.ID))

	_, err = store.Get(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	strength, err := store.Strength(ctx, rec.ID, other.ID)
	require.NoError(t, err)
	assert.Zero(t, strength)

	assert.ErrorIs(t, store.Delete(ctx, rec.ID), ErrNotFound)
}

func TestVectorDistancesOrdering(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	near := validDraft("near the query")
	near.Embedding = []float32{1, 0, 0, 0, 0, 0, 0, 0}
	far := validDraft("far from the query")
	far.Embedding = []float32{0, 1, 0, 0, 0, 0, 0, 0}

	nearRec, err := store.Create(ctx, near)
	require.NoError(t, err)
	farRec, err := store.Create(ctx, far)
	require.NoError(t, err)

	query := []float32{0.9, 0.1, 0, 0, 0, 0, 0, 0}
	distances, err := store.VectorDistances(ctx, query, 10)
	require.NoError(t, err)
	require.Len(t, distances, 2)
	assert.Equal(t, nearRec.ID, distances[0].RecordID)
	assert.Equal(t, farRec.ID, distances[1].RecordID)
	assert.Less(t, distances[0].Distance, distances[1].Distance)
}

func TestStats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	happy := validDraft("good day")
	happy.Emotion = EmotionHappy
	_, err := store.Create(ctx, happy)
	require.NoError(t, err)
	_, err = store.Create(ctx, validDraft("plain day"))
	require.NoError(t, err)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalRecords)
	assert.Equal(t, 1, stats.ByEmotion[EmotionHappy])
	assert.Equal(t, 2, stats.ByCategory[CategoryObservation])
}
