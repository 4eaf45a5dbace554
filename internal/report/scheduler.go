package report

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/linnemanlabs/go-core/log"
)

const runTimeout = 5 * time.Minute

// Scheduler sends the monthly report on a cron schedule.
type Scheduler struct {
	cron     *cron.Cron
	schedule cron.Schedule
	rep      *Reporter
	logger   log.Logger
	now      func() time.Time
}

// NewScheduler parses a standard five field cron spec and registers the
// monthly job. The scheduler does not run until Start.
func NewScheduler(spec string, rep *Reporter, logger log.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = log.Nop()
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("report: parse schedule %q: %w", spec, err)
	}
	logger = logger.With("job", "monthly_report")
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.Local),
			cron.WithChain(cron.Recover(cronLogger{logger})),
		),
		schedule: schedule,
		rep:      rep,
		logger:   logger,
		now:      time.Now,
	}
	s.cron.Schedule(schedule, cron.FuncJob(s.run))
	return s, nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Next returns the first run time after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

// Stop halts scheduling and waits for a running job, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	sent, err := s.rep.SendMonthly(ctx, s.now())
	if err != nil {
		s.logger.Error(ctx, err, "monthly report failed")
		return
	}
	s.logger.Info(ctx, "monthly report run complete", "sent", sent)
}

// cronLogger routes cron's own logging, including recovered job panics,
// through the service logger.
type cronLogger struct {
	l log.Logger
}

func (c cronLogger) Info(msg string, kv ...any) {
	c.l.Info(context.Background(), msg, kv...)
}

func (c cronLogger) Error(err error, msg string, kv ...any) {
	c.l.Error(context.Background(), err, msg, kv...)
}
