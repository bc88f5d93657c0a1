/**
 * @description
 * Cron scheduler setup for scheduled jobs.
 */
package app

import (
	"context"
	"log/slog"

	"github.com/oakline/banking-service/internal/config"
	"github.com/robfig/cron/v3"
)

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron   *cron.Cron
	jobs   *Jobs
	logger *slog.Logger
	config config.Config
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(jobs *Jobs, logger *slog.Logger, cfg config.Config) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))

	return &Scheduler{
		cron:   c,
		jobs:   jobs,
		logger: logger,
		config: cfg,
	}
}

// Start registers the jobs and starts the cron scheduler. It returns an error
// when a schedule expression does not parse.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.config.CodePurgeSchedule, s.jobs.PurgeExpiredVerificationCodes); err != nil {
		s.logger.Error("failed to schedule verification code purge job", "error", err)
		return err
	}
	s.logger.Info("scheduled verification code purge job", "schedule", s.config.CodePurgeSchedule)

	if _, err := s.cron.AddFunc(s.config.LoanClosureSchedule, s.jobs.CloseSettledLoans); err != nil {
		s.logger.Error("failed to schedule settled loan closure job", "error", err)
		return err
	}
	s.logger.Info("scheduled settled loan closure job", "schedule", s.config.LoanClosureSchedule)

	s.cron.Start()
	return nil
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
