package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"nexify/internal/observability"

	"github.com/robfig/cron/v3"
)

// Default cron expressions, in server local time.
const (
	DefaultRecommendationSchedule = "30 4 * * *"
	DefaultReconcileSchedule      = "15 * * * *"
)

// Executor is a job that handles its own failures.
type Executor interface {
	Execute(ctx context.Context)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context)

func (f ExecutorFunc) Execute(ctx context.Context) { f(ctx) }

// Scheduler runs registered jobs on cron schedules. Overlapping runs of the
// same job are skipped.
type Scheduler struct {
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
}

// NewScheduler returns a stopped scheduler. Each run gets at most timeout.
func NewScheduler(timeout time.Duration) *Scheduler {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.Recover(cronLogger{}))),
		ctx:     ctx,
		cancel:  cancel,
		timeout: timeout,
	}
}

// Add registers job under name on spec.
func (s *Scheduler) Add(name, spec string, job Executor) error {
	wrapped := cron.NewChain(cron.SkipIfStillRunning(cronLogger{})).Then(cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(observability.WithCorrelationID(s.ctx), s.timeout)
		defer cancel()
		observability.GlobalLogger.InfoContext(ctx, "scheduled job triggered", slog.String("job", name))
		job.Execute(ctx)
	}))
	if _, err := s.cron.AddJob(spec, wrapped); err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Entries reports the number of registered jobs.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// cronLogger routes cron's internal logging to the application logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	observability.GlobalLogger.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	observability.GlobalLogger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
