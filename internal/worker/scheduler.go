package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"wallet/internal/log"
)

// Scheduler runs periodic jobs on standard cron specs. A run that is
// still going when the next tick fires is skipped.
type Scheduler struct {
	cron   *cron.Cron
	logger *log.Logger
}

func NewScheduler(logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentScheduler)
	cl := cronLogger{logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: logger,
	}
}

// Add registers job under name. Each run gets ctx with timeout.
func (s *Scheduler) Add(ctx context.Context, spec, name string, timeout time.Duration, job func(context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		runCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		start := time.Now()
		if err := job(runCtx); err != nil {
			s.logger.ErrorContext(runCtx, "Scheduled job failed",
				log.FieldOperation, name,
				log.FieldError, err.Error())
			return
		}
		s.logger.DebugContext(runCtx, "Scheduled job finished",
			log.FieldOperation, name,
			log.FieldDuration, time.Since(start).Milliseconds())
	})
	if err != nil {
		return fmt.Errorf("register %s job: %w", name, err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Scheduler started", log.FieldCount, len(s.cron.Entries()))
}

// Stop waits for running jobs or until ctx ends.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
	s.logger.Info("Scheduler stopped")
}

// cronLogger adapts the component logger to cron.Logger.
type cronLogger struct {
	l *log.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append(keysAndValues, log.FieldError, err.Error())...)
}
