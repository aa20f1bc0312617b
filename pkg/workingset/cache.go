package workingset

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/harun/engram/internal/observability"
	"github.com/harun/engram/pkg/memory"
)

// Entry is one cached record with its salience score
type Entry struct {
	RecordID      string
	Score         float64
	LastActivated time.Time
}

// Config holds working-set cache configuration
type Config struct {
	Capacity      int
	HalfLifeHours float64
	Logger        zerolog.Logger
}

// Cache is a bounded advisory view of the currently most salient
// records. It is rebuilt entirely from store access statistics, so a
// stale or lost cache never corrupts anything.
type Cache struct {
	store    *memory.Store
	capacity int
	halfLife float64
	logger   zerolog.Logger

	mu      sync.RWMutex
	entries []Entry
}

// New creates an empty working-set cache over the given store
func New(store *memory.Store, cfg Config) *Cache {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 20
	}
	if cfg.HalfLifeHours <= 0 {
		cfg.HalfLifeHours = 12
	}
	observability.EnsureRegistered()

	return &Cache{
		store:    store,
		capacity: cfg.Capacity,
		halfLife: cfg.HalfLifeHours,
		logger:   cfg.Logger.With().Str("component", "workingset").Logger(),
	}
}

// Refresh resamples access statistics from the store and rebuilds the
// cache, keeping at most capacity entries. Score combines usage
// frequency with exponential recency decay.
func (c *Cache) Refresh(ctx context.Context) error {
	// Oversample so decay can reorder past raw usage counts.
	stats, err := c.store.AccessStats(ctx, c.capacity*4)
	if err != nil {
		return err
	}

	now := time.Now()
	entries := make([]Entry, 0, len(stats))
	for _, st := range stats {
		usage := st.AccessCount + st.ActivationCount
		if usage == 0 {
			continue
		}

		last := st.LastAccessed
		if st.LastActivated.After(last) {
			last = st.LastActivated
		}

		ageHours := now.Sub(last).Hours()
		if ageHours < 0 {
			ageHours = 0
		}
		score := math.Log1p(float64(usage)) * math.Exp2(-ageHours/c.halfLife)

		entries = append(entries, Entry{
			RecordID:      st.RecordID,
			Score:         score,
			LastActivated: last,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	if len(entries) > c.capacity {
		entries = entries[:c.capacity]
	}

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()

	observability.RecordWorkingSetRefresh(len(entries))
	c.logger.Debug().Int("entries", len(entries)).Msg("working set refreshed")
	return nil
}

// Entries returns the cached entries ordered by descending score. Pure
// read, no side effects.
func (c *Cache) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Len returns the number of cached entries
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Capacity returns the configured entry bound
func (c *Cache) Capacity() int {
	return c.capacity
}
