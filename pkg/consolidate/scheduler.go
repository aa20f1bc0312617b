package consolidate

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler runs consolidation on a cron schedule
type Scheduler struct {
	engine *Engine
	params Params
	cron   *cron.Cron
	logger zerolog.Logger
}

// NewScheduler creates a scheduler that runs the engine with the given
// params on the given five-field cron expression.
func NewScheduler(engine *Engine, params Params, schedule string, logger zerolog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		engine: engine,
		params: params,
		cron:   cron.New(),
		logger: logger.With().Str("component", "consolidation_scheduler").Logger(),
	}

	_, err := s.cron.AddFunc(schedule, func() {
		if _, err := s.engine.Run(context.Background(), s.params); err != nil {
			s.logger.Error().Err(err).Msg("scheduled consolidation failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid consolidation schedule %q: %w", schedule, err)
	}

	return s, nil
}

// Start begins running the schedule in its own goroutine
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Msg("consolidation scheduler started")
}

// Stop halts the schedule and waits for a running job to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("consolidation scheduler stopped")
}
