package trigger

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Scheduler fires the sync trigger on a cron schedule.
type Scheduler struct {
	spec       string
	dispatcher *Dispatcher
	cron       *cron.Cron
	entryID    cron.EntryID
	logger     zerolog.Logger
}

// NewScheduler creates a scheduler for a standard 5-field cron spec or a
// descriptor such as "@every 5m".
func NewScheduler(spec string, dispatcher *Dispatcher) (*Scheduler, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}

	return &Scheduler{
		spec:       spec,
		dispatcher: dispatcher,
		cron:       cron.New(),
		logger:     log.With().Str("component", "sync-scheduler").Logger(),
	}, nil
}

// Start schedules the trigger and starts the cron runner.
func (s *Scheduler) Start() error {
	id, err := s.cron.AddFunc(s.spec, s.fire)
	if err != nil {
		return fmt.Errorf("schedule sync: %w", err)
	}
	s.entryID = id
	s.cron.Start()

	s.logger.Info().Str("schedule", s.spec).Msg("Sync schedule started")
	return nil
}

// Stop stops the cron runner. It does not wait for a running replay.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info().Msg("Sync schedule stopped")
}

func (s *Scheduler) fire() {
	s.logger.Debug().Msg("Scheduled sync trigger")
	s.dispatcher.Fire(s.dispatcher.Tag(), SourceSchedule)
}
