package jobs

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"owners-billing/internal/core"
)

// Scheduler runs the recurring billing jobs: invoice generation and the
// overdue sweep.
type Scheduler struct {
	cron      *cron.Cron
	generator *core.Generator
	overdue   *core.OverdueChecker
	logger    zerolog.Logger
}

func NewScheduler(generator *core.Generator, overdue *core.OverdueChecker, logger zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithChain(cron.Recover(cronLogger{logger})))
	return &Scheduler{
		cron:      c,
		generator: generator,
		overdue:   overdue,
		logger:    logger,
	}
}

// Start registers the jobs under their cron expressions and starts the
// scheduler. Invalid expressions are logged and skipped so one bad schedule
// does not take down the other job.
func (s *Scheduler) Start(generateSchedule, overdueSchedule string) {
	if _, err := s.cron.AddFunc(generateSchedule, s.runGeneration); err != nil {
		s.logger.Error().Err(err).Str("schedule", generateSchedule).Msg("failed to schedule invoice generation job")
	} else {
		s.logger.Info().Str("schedule", generateSchedule).Msg("scheduled invoice generation job")
	}

	if _, err := s.cron.AddFunc(overdueSchedule, s.runOverdueCheck); err != nil {
		s.logger.Error().Err(err).Str("schedule", overdueSchedule).Msg("failed to schedule overdue check job")
	} else {
		s.logger.Info().Str("schedule", overdueSchedule).Msg("scheduled overdue check job")
	}

	s.cron.Start()
}

// Stop stops the scheduler and returns a context that is done once running
// jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) runGeneration() {
	if _, err := s.generator.Run(context.Background()); err != nil {
		s.logger.Error().Err(err).Msg("invoice generation job failed")
	}
}

func (s *Scheduler) runOverdueCheck() {
	if _, err := s.overdue.Run(context.Background()); err != nil {
		s.logger.Error().Err(err).Msg("overdue check job failed")
	}
}

// cronLogger adapts zerolog to the cron logging interface.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
