package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateEpisode(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := validDraft("walked to the market in the morning")
	a, err := store.Create(ctx, first)
	require.NoError(t, err)

	second := validDraft("met an old friend there")
	second.Emotion = EmotionHappy
	second.Importance = 5
	b, err := store.Create(ctx, second)
	require.NoError(t, err)

	// Member order reversed on purpose; chronological order wins.
	ep, err := store.CreateEpisode(ctx, "market morning", []string{b.ID, a.ID}, []string{"kei"})
	require.NoError(t, err)

	assert.Equal(t, []string{a.ID, b.ID}, ep.MemberIDs)
	assert.Equal(t, EmotionHappy, ep.Emotion)
	assert.Equal(t, 5, ep.Importance)
	assert.Equal(t, []string{"kei"}, ep.Participants)
	assert.True(t, strings.Contains(ep.Summary, "walked to the market"))
	assert.True(t, strings.Contains(ep.Summary, " / "))
	assert.Equal(t, a.CreatedAt.UnixNano(), ep.StartTime.UnixNano())
	assert.Equal(t, b.CreatedAt.UnixNano(), ep.EndTime.UnixNano())

	gotA, err := store.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, ep.ID, gotA.EpisodeID)

	fetched, err := store.Episode(ctx, ep.ID)
	require.NoError(t, err)
	assert.Equal(t, ep.Title, fetched.Title)
	assert.Equal(t, ep.MemberIDs, fetched.MemberIDs)
}

func TestCreateEpisodeValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a, err := store.Create(ctx, validDraft("lone record"))
	require.NoError(t, err)

	t.Run("empty title", func(t *testing.T) {
		_, err := store.CreateEpisode(ctx, "  ", []string{a.ID}, nil)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("no members", func(t *testing.T) {
		_, err := store.CreateEpisode(ctx, "empty", nil, nil)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("missing member aborts atomically", func(t *testing.T) {
		_, err := store.CreateEpisode(ctx, "broken", []string{a.ID, "ghost"}, nil)
		assert.ErrorIs(t, err, ErrNotFound)

		// Existing member must be untouched.
		got, err := store.Get(ctx, a.ID)
		require.NoError(t, err)
		assert.Empty(t, got.EpisodeID)

		episodes, err := store.ListEpisodes(ctx)
		require.NoError(t, err)
		assert.Empty(t, episodes)
	})

	t.Run("member already in an episode", func(t *testing.T) {
		_, err := store.CreateEpisode(ctx, "first home", []string{a.ID}, nil)
		require.NoError(t, err)

		_, err = store.CreateEpisode(ctx, "second home", []string{a.ID}, nil)
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestDeleteEpisode(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a, err := store.Create(ctx, validDraft("member"))
	require.NoError(t, err)
	ep, err := store.CreateEpisode(ctx, "short lived", []string{a.ID}, nil)
	require.NoError(t, err)

	require.NoError(t, store.DeleteEpisode(ctx, ep.ID))

	_, err = store.Episode(ctx, ep.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := store.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, got.EpisodeID)

	assert.ErrorIs(t, store.DeleteEpisode(ctx, ep.ID), ErrNotFound)
}
