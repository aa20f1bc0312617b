package episode

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/harun/engram/pkg/memory"
	"github.com/harun/engram/pkg/rank"
)

// Config holds episode manager configuration
type Config struct {
	BM25K1 float64
	BM25B  float64
	Logger zerolog.Logger
}

// Manager is a thin layer over the store's episode operations, adding
// chronological member retrieval and lexical search over episode
// titles and summaries.
type Manager struct {
	store  *memory.Store
	k1     float64
	b      float64
	logger zerolog.Logger
}

// NewManager creates an episode manager over the given store
func NewManager(store *memory.Store, cfg Config) *Manager {
	if cfg.BM25K1 <= 0 {
		cfg.BM25K1 = 1.2
	}
	if cfg.BM25B <= 0 {
		cfg.BM25B = 0.75
	}

	return &Manager{
		store:  store,
		k1:     cfg.BM25K1,
		b:      cfg.BM25B,
		logger: cfg.Logger.With().Str("component", "episode").Logger(),
	}
}

// Create groups the given records into a new episode
func (m *Manager) Create(ctx context.Context, title string, memberIDs, participants []string) (*memory.Episode, error) {
	ep, err := m.store.CreateEpisode(ctx, title, memberIDs, participants)
	if err != nil {
		return nil, err
	}

	m.logger.Info().
		Str("episode_id", ep.ID).
		Int("members", len(ep.MemberIDs)).
		Msg("episode created")
	return ep, nil
}

// Get fetches one episode by id
func (m *Manager) Get(ctx context.Context, id string) (*memory.Episode, error) {
	return m.store.Episode(ctx, id)
}

// List returns all episodes, newest first
func (m *Manager) List(ctx context.Context) ([]*memory.Episode, error) {
	return m.store.ListEpisodes(ctx)
}

// Delete removes an episode and clears its members' back-references
func (m *Manager) Delete(ctx context.Context, id string) error {
	return m.store.DeleteEpisode(ctx, id)
}

// Memories returns an episode's member records ordered by creation
// time. The record timestamp is authoritative, not member insertion
// order.
func (m *Manager) Memories(ctx context.Context, id string) ([]*memory.Record, error) {
	ep, err := m.store.Episode(ctx, id)
	if err != nil {
		return nil, err
	}

	records, err := m.store.GetMany(ctx, ep.MemberIDs)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}

// Search ranks episodes against the query by BM25 over their titles
// and summaries. Episodes sharing no token with the query are omitted.
func (m *Manager) Search(ctx context.Context, query string, limit int) ([]*memory.Episode, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", memory.ErrValidation, limit)
	}

	episodes, err := m.store.ListEpisodes(ctx)
	if err != nil {
		return nil, err
	}
	if len(episodes) == 0 {
		return nil, nil
	}

	byID := make(map[string]*memory.Episode, len(episodes))
	docs := make([]memory.Document, len(episodes))
	for i, ep := range episodes {
		byID[ep.ID] = ep
		docs[i] = memory.Document{ID: ep.ID, Content: ep.Title + " " + ep.Summary}
	}

	index := rank.NewIndex(m.k1, m.b)
	index.Build(docs)
	scores := index.Scores(query)

	matched := make([]*memory.Episode, 0, len(scores))
	for id := range scores {
		matched = append(matched, byID[id])
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return scores[matched[i].ID] > scores[matched[j].ID]
	})

	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}
