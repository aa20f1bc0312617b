package workingset

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/engram/pkg/memory"
)

const testDim = 4

func newTestStore(t *testing.T) *memory.Store {
	t.Helper()

	store, err := memory.New(memory.Config{
		Path:      filepath.Join(t.TempDir(), "test.db"),
		Dimension: testDim,
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func createRecord(t *testing.T, store *memory.Store, content string) *memory.Record {
	t.Helper()

	rec, err := store.Create(context.Background(), memory.Draft{
		Content:    content,
		Embedding:  make([]float32, testDim),
		Emotion:    memory.EmotionNeutral,
		Category:   memory.CategoryObservation,
		Importance: 3,
	})
	require.NoError(t, err)
	return rec
}

func TestRefreshRespectsCapacity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		rec := createRecord(t, store, fmt.Sprintf("record %d", i))
		require.NoError(t, store.UpdateAccess(ctx, rec.ID))
	}

	cache := New(store, Config{Capacity: 3, HalfLifeHours: 12, Logger: zerolog.Nop()})
	require.NoError(t, cache.Refresh(ctx))

	assert.LessOrEqual(t, cache.Len(), 3)
	assert.Equal(t, 3, cache.Capacity())
}

func TestRefreshRanksByUsage(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	hot := createRecord(t, store, "hot record")
	warm := createRecord(t, store, "warm record")
	createRecord(t, store, "cold record")

	for i := 0; i < 5; i++ {
		require.NoError(t, store.UpdateAccess(ctx, hot.ID))
	}
	require.NoError(t, store.UpdateAccess(ctx, warm.ID))

	cache := New(store, Config{Capacity: 10, HalfLifeHours: 12, Logger: zerolog.Nop()})
	require.NoError(t, cache.Refresh(ctx))

	entries := cache.Entries()
	require.Len(t, entries, 2, "untouched records stay out of the working set")
	assert.Equal(t, hot.ID, entries[0].RecordID)
	assert.Equal(t, warm.ID, entries[1].RecordID)
	assert.Greater(t, entries[0].Score, entries[1].Score)
}

func TestEntriesIsPureRead(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := createRecord(t, store, "tracked")
	require.NoError(t, store.UpdateAccess(ctx, rec.ID))

	cache := New(store, Config{Capacity: 5, HalfLifeHours: 12, Logger: zerolog.Nop()})
	require.NoError(t, cache.Refresh(ctx))

	first := cache.Entries()
	first[0].RecordID = "mutated"

	second := cache.Entries()
	assert.Equal(t, rec.ID, second[0].RecordID)

	got, err := store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AccessCount, "Entries must not touch access counts")
}

func TestRefreshEmptyStore(t *testing.T) {
	store := newTestStore(t)

	cache := New(store, Config{Capacity: 5, HalfLifeHours: 12, Logger: zerolog.Nop()})
	require.NoError(t, cache.Refresh(context.Background()))
	assert.Empty(t, cache.Entries())
}

func TestActivationCountsInScore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	activated := createRecord(t, store, "activated record")
	require.NoError(t, store.RecordActivation(ctx, activated.ID, 0.5, 0.5))

	cache := New(store, Config{Capacity: 5, HalfLifeHours: 12, Logger: zerolog.Nop()})
	require.NoError(t, cache.Refresh(ctx))

	entries := cache.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, activated.ID, entries[0].RecordID)
	assert.Greater(t, entries[0].Score, 0.0)
}
