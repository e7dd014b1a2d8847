// Package scheduler runs the weekly lottery pipeline and the maintenance jobs in process.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"trivia_backend/internal/logger"
	"trivia_backend/internal/metrics"
	"trivia_backend/internal/service"
	"trivia_backend/internal/week"

	"github.com/robfig/cron/v3"
)

const (
	defaultTimeout  = 10 * time.Minute
	defaultExpiry   = "@every 5m"
	defaultInterval = 15 * time.Second
)

type Config struct {
	SnapshotCron   string
	DrawCron       string
	BurnCron       string
	ReconcileCron  string
	ExpireCron     string
	OutboxInterval time.Duration
}

// Jobs are the services the scheduler drives. Nil services are not scheduled.
type Jobs struct {
	Lottery    *service.LotteryService
	Burns      *service.BurnService
	Sync       *service.ContractSync
	Wallets    *service.WalletService
	Reconciler *service.Reconciler
}

type job struct {
	name    string
	spec    string
	timeout time.Duration
	run     func(ctx context.Context) error
}

type Scheduler struct {
	cron   *cron.Cron
	locker Locker
	jobs   []job
	now    func() time.Time
	log    *slog.Logger
}

// New builds the scheduler. A nil locker falls back to an in-process lock.
func New(cfg Config, jobs Jobs, locker Locker) (*Scheduler, error) {
	if locker == nil {
		locker = NewLocalLocker()
	}
	s := &Scheduler{
		locker: locker,
		now:    time.Now,
		log:    logger.Component("scheduler"),
	}
	s.cron = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(cronLogger{s.log})),
		cron.WithLogger(cronLogger{s.log}),
	)

	if cfg.ExpireCron == "" {
		cfg.ExpireCron = defaultExpiry
	}
	if cfg.OutboxInterval <= 0 {
		cfg.OutboxInterval = defaultInterval
	}

	if jobs.Lottery != nil {
		s.add("snapshot", cfg.SnapshotCron, func(ctx context.Context) error {
			_, err := jobs.Lottery.Snapshot(ctx, s.endedWeek())
			return err
		})
		s.add("lottery-draw", cfg.DrawCron, func(ctx context.Context) error {
			_, err := jobs.Lottery.Draw(ctx, s.endedWeek())
			return err
		})
	}
	if jobs.Burns != nil {
		s.add("burn", cfg.BurnCron, func(ctx context.Context) error {
			_, err := jobs.Burns.Burn(ctx, s.endedWeek())
			return err
		})
	}
	if jobs.Reconciler != nil {
		s.add("reconcile-balances", cfg.ReconcileCron, func(ctx context.Context) error {
			_, err := jobs.Reconciler.Run(ctx)
			return err
		})
	}
	if jobs.Sync != nil {
		s.add("process-outbox", "@every "+cfg.OutboxInterval.String(), func(ctx context.Context) error {
			_, err := jobs.Sync.ProcessOutbox(ctx)
			return err
		})
	}
	if jobs.Wallets != nil {
		s.add("expire-withdrawals", cfg.ExpireCron, func(ctx context.Context) error {
			_, err := jobs.Wallets.ExpireWithdrawals(ctx)
			return err
		})
	}

	for _, j := range s.jobs {
		j := j
		if _, err := s.cron.AddFunc(j.spec, func() { s.runJob(context.Background(), j) }); err != nil {
			return nil, fmt.Errorf("schedule %s (%q): %w", j.name, j.spec, err)
		}
	}
	return s, nil
}

func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// add skips jobs without a spec, which disables them.
func (s *Scheduler) add(name, spec string, run func(ctx context.Context) error) {
	if spec == "" {
		return
	}
	s.jobs = append(s.jobs, job{name: name, spec: spec, timeout: defaultTimeout, run: run})
}

func (s *Scheduler) endedWeek() string {
	prev, _ := week.Previous(week.ID(s.now()))
	return prev
}

func (s *Scheduler) Start() {
	s.log.Info("scheduler started", "jobs", len(s.jobs))
	s.cron.Start()
}

// Stop stops scheduling and waits for running jobs until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out, jobs still running")
	}
}

// Run executes the named job now, under the same lock as the schedule.
func (s *Scheduler) Run(ctx context.Context, name string) (string, error) {
	for _, j := range s.jobs {
		if j.name == name {
			return s.runJob(ctx, j)
		}
	}
	return "", fmt.Errorf("unknown job %q", name)
}

// runJob returns the result label recorded in the cron metric.
func (s *Scheduler) runJob(ctx context.Context, j job) (string, error) {
	log := s.log.With("job", j.name)

	release, ok, err := s.locker.Acquire(ctx, j.name, j.timeout)
	switch {
	case err != nil:
		metrics.CronRuns.WithLabelValues(j.name, "error").Inc()
		log.Error("cron lock failed", "error", err)
		return "error", err
	case !ok:
		metrics.CronRuns.WithLabelValues(j.name, "locked").Inc()
		log.Debug("cron job running elsewhere")
		return "locked", nil
	}
	defer release()

	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	started := time.Now()
	err = j.run(ctx)
	switch {
	case errors.Is(err, service.ErrAlreadyDone), errors.Is(err, service.ErrInProgress):
		metrics.CronRuns.WithLabelValues(j.name, "skipped").Inc()
		log.Info("cron job skipped", "reason", err.Error())
		return "skipped", nil
	case err != nil:
		metrics.CronRuns.WithLabelValues(j.name, "error").Inc()
		log.Error("cron job failed", "error", err, "took", time.Since(started))
		return "error", err
	}
	metrics.CronRuns.WithLabelValues(j.name, "ok").Inc()
	log.Info("cron job done", "took", time.Since(started))
	return "ok", nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
