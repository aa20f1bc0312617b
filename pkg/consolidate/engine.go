package consolidate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/harun/engram/internal/observability"
	"github.com/harun/engram/pkg/memory"
)

// Params tunes one consolidation run
type Params struct {
	WindowHours        int
	MaxReplayEvents    int
	LinkUpdateStrength float64
	EdgeCap            float64
}

// Stats summarizes one consolidation run
type Stats struct {
	ReplayedEvents int
	EdgeUpdates    int
	SkippedMissing int
}

// Engine replays recent co-activation events into association edge
// strength. Each replayed event bumps its pair once; repeated
// co-activation compounds until the edge cap.
type Engine struct {
	store  *memory.Store
	logger zerolog.Logger
}

// NewEngine creates a consolidation engine over the given store
func NewEngine(store *memory.Store, logger zerolog.Logger) *Engine {
	observability.EnsureRegistered()
	return &Engine{
		store:  store,
		logger: logger.With().Str("component", "consolidation").Logger(),
	}
}

// Run replays co-activation events from the trailing window,
// oldest-first, bumping the association edge for each pair. Events
// referencing deleted records are skipped; edge bumps are individually
// atomic so concurrent readers only ever see pre- or post-bump
// strengths.
func (e *Engine) Run(ctx context.Context, p Params) (*Stats, error) {
	if p.WindowHours <= 0 {
		return nil, fmt.Errorf("%w: window hours must be positive, got %d", memory.ErrValidation, p.WindowHours)
	}
	if p.MaxReplayEvents <= 0 {
		return nil, fmt.Errorf("%w: max replay events must be positive, got %d", memory.ErrValidation, p.MaxReplayEvents)
	}
	if p.LinkUpdateStrength <= 0 || p.EdgeCap <= 0 {
		return nil, fmt.Errorf("%w: link update strength and edge cap must be positive", memory.ErrValidation)
	}

	since := time.Now().Add(-time.Duration(p.WindowHours) * time.Hour)
	events, err := e.store.CoActivationsSince(ctx, since, p.MaxReplayEvents)
	if err != nil {
		return nil, err
	}

	stats := &Stats{ReplayedEvents: len(events)}
	for _, ev := range events {
		err := e.store.Bump(ctx, ev.SourceID, ev.TargetID, p.LinkUpdateStrength, p.EdgeCap)
		if errors.Is(err, memory.ErrNotFound) {
			stats.SkippedMissing++
			continue
		}
		if err != nil {
			return nil, err
		}
		stats.EdgeUpdates++
	}

	observability.RecordConsolidation(stats.ReplayedEvents)
	e.logger.Info().
		Int("replayed", stats.ReplayedEvents).
		Int("updates", stats.EdgeUpdates).
		Int("skipped", stats.SkippedMissing).
		Msg("consolidation run completed")

	return stats, nil
}
