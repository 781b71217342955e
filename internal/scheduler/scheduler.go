// Package scheduler triggers sync runs on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/starford/playbooksync/internal/models"
)

// DefaultSpec runs every Monday at 06:00 UTC.
const DefaultSpec = "0 6 * * 1"

// Runner executes one sync run.
type Runner interface {
	Run(ctx context.Context) (*models.SyncRun, error)
}

// Scheduler fires Runner on a cron schedule. A tick that arrives while the
// previous run is still in progress is skipped.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	logger *slog.Logger
	entry  cron.EntryID
	ctx    context.Context
}

// New parses spec (standard five-field syntax or a descriptor such as
// "@weekly") and creates a stopped Scheduler.
func New(spec string, runner Runner, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{runner: runner, logger: logger, ctx: context.Background()}
	s.cron = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(cronLogger{logger}), cron.SkipIfStillRunning(cronLogger{logger})),
	)
	id, err := s.cron.AddFunc(spec, s.fire)
	if err != nil {
		return nil, fmt.Errorf("scheduler: parse %q: %w", spec, err)
	}
	s.entry = id
	return s, nil
}

// Next returns the next scheduled activation, or the zero time when the
// scheduler is not running.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

// Run starts the schedule and blocks until ctx is done. It then waits for an
// in-flight run to return.
func (s *Scheduler) Run(ctx context.Context) error {
	s.ctx = ctx
	s.cron.Start()
	s.logger.Info("scheduler started", slog.Time("next", s.Next()))

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) fire() {
	run, err := s.runner.Run(s.ctx)
	switch {
	case errors.Is(err, context.Canceled):
		s.logger.Info("scheduled run cancelled")
	case err != nil:
		s.logger.Error("scheduled run failed", slog.String("error", err.Error()))
	case run != nil:
		s.logger.Info("scheduled run finished",
			slog.String("run_id", run.ID),
			slog.String("status", string(run.Status)),
			slog.Time("next", s.Next()))
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append([]any{slog.String("error", err.Error())}, keysAndValues...)...)
}
