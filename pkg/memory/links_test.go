package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateLink(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a, err := store.Create(ctx, validDraft("cause"))
	require.NoError(t, err)
	b, err := store.Create(ctx, validDraft("effect"))
	require.NoError(t, err)

	require.NoError(t, store.CreateLink(ctx, a.ID, b.ID, "caused_by", "observed directly"))

	links, err := store.Links(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, b.ID, links[0].TargetID)
	assert.Equal(t, "caused_by", links[0].Type)
	assert.Equal(t, "observed directly", links[0].Note)

	incoming, err := store.IncomingLinks(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, incoming, 1)
	assert.Equal(t, a.ID, incoming[0].SourceID)

	t.Run("missing target", func(t *testing.T) {
		assert.ErrorIs(t, store.CreateLink(ctx, a.ID, "ghost", "related", ""), ErrNotFound)
	})

	t.Run("missing source", func(t *testing.T) {
		assert.ErrorIs(t, store.CreateLink(ctx, "ghost", b.ID, "related", ""), ErrNotFound)
	})

	t.Run("duplicate is idempotent", func(t *testing.T) {
		require.NoError(t, store.CreateLink(ctx, a.ID, b.ID, "caused_by", "again"))
		links, err := store.Links(ctx, a.ID)
		require.NoError(t, err)
		assert.Len(t, links, 1)
	})
}

func TestCausalChainForward(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sunset := validDraft("saw sunset")
	sunset.Importance = 4
	a, err := store.Create(ctx, sunset)
	require.NoError(t, err)

	moved := validDraft("felt moved")
	moved.Category = CategoryFeeling
	b, err := store.Create(ctx, moved)
	require.NoError(t, err)

	require.NoError(t, store.CreateLink(ctx, a.ID, b.ID, "caused_by", ""))

	chain, err := store.CausalChain(ctx, a.ID, ChainForward, 3)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, a.ID, chain[0].Record.ID)
	assert.Equal(t, 0, chain[0].Depth)
	assert.Equal(t, b.ID, chain[1].Record.ID)
	assert.Equal(t, "caused_by", chain[1].LinkType)
	assert.Equal(t, 1, chain[1].Depth)
}

func TestCausalChainBackward(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a, err := store.Create(ctx, validDraft("cause"))
	require.NoError(t, err)
	b, err := store.Create(ctx, validDraft("effect"))
	require.NoError(t, err)
	require.NoError(t, store.CreateLink(ctx, a.ID, b.ID, "leads_to", ""))

	chain, err := store.CausalChain(ctx, b.ID, ChainBackward, 3)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, b.ID, chain[0].Record.ID)
	assert.Equal(t, a.ID, chain[1].Record.ID)
}

func TestCausalChainCycleTerminates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a, err := store.Create(ctx, validDraft("a"))
	require.NoError(t, err)
	b, err := store.Create(ctx, validDraft("b"))
	require.NoError(t, err)

	require.NoError(t, store.CreateLink(ctx, a.ID, b.ID, "leads_to", ""))
	require.NoError(t, store.CreateLink(ctx, b.ID, a.ID, "leads_to", ""))

	chain, err := store.CausalChain(ctx, a.ID, ChainForward, 5)
	require.NoError(t, err)

	seen := make(map[string]int)
	for _, entry := range chain {
		seen[entry.Record.ID]++
	}
	assert.Len(t, chain, 2)
	for id, n := range seen {
		assert.Equal(t, 1, n, "record %s visited more than once", id)
	}
}

func TestCausalChainValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a, err := store.Create(ctx, validDraft("a"))
	require.NoError(t, err)

	t.Run("unknown start", func(t *testing.T) {
		_, err := store.CausalChain(ctx, "ghost", ChainForward, 3)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("unknown direction", func(t *testing.T) {
		_, err := store.CausalChain(ctx, a.ID, "sideways", 3)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("depth clamped", func(t *testing.T) {
		chain, err := store.CausalChain(ctx, a.ID, ChainForward, 0)
		require.NoError(t, err)
		assert.Len(t, chain, 1)
	})
}
