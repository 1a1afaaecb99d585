package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/mtlprog/taskgate/internal/approval"
	"github.com/mtlprog/taskgate/internal/cache"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

// Default sweep intervals.
const (
	DefaultAutoApproveInterval = time.Hour
	DefaultEscalationInterval  = 24 * time.Hour
)

// Locker hands out named leases; a nil lease means another replica holds it.
type Locker interface {
	TryAcquire(ctx context.Context, name string, ttl time.Duration) (*cache.Lease, error)
}

// Scheduler runs the auto-approve and escalation sweeps on their own cron schedules.
type Scheduler struct {
	sweeper             *Sweeper
	locker              Locker
	autoApproveInterval time.Duration
	escalationInterval  time.Duration
	now                 func() time.Time
}

// NewScheduler creates a Scheduler. locker may be nil, in which case every tick sweeps.
func NewScheduler(sweeper *Sweeper, locker Locker, autoApproveInterval, escalationInterval time.Duration) *Scheduler {
	if autoApproveInterval <= 0 {
		autoApproveInterval = DefaultAutoApproveInterval
	}
	if escalationInterval <= 0 {
		escalationInterval = DefaultEscalationInterval
	}
	return &Scheduler{
		sweeper:             sweeper,
		locker:              locker,
		autoApproveInterval: autoApproveInterval,
		escalationInterval:  escalationInterval,
		now:                 time.Now,
	}
}

// Run sweeps once per kind immediately, then on every interval, until ctx is cancelled.
// A sweep still running when its next slot comes up is skipped, not queued.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.Info("scheduler started",
		"auto_approve_interval", s.autoApproveInterval,
		"escalation_interval", s.escalationInterval,
		"lease", s.locker != nil,
	)

	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(cronLogger{}), cron.SkipIfStillRunning(cronLogger{})),
	)
	c.Schedule(cron.Every(s.autoApproveInterval), s.job(ctx, approval.SweepAutoApprove, s.autoApproveInterval))
	c.Schedule(cron.Every(s.escalationInterval), s.job(ctx, approval.SweepEscalation, s.escalationInterval))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.Tick(gctx, approval.SweepAutoApprove, s.autoApproveInterval)
		return nil
	})
	g.Go(func() error {
		s.Tick(gctx, approval.SweepEscalation, s.escalationInterval)
		return nil
	})
	err := g.Wait()

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()

	slog.Info("scheduler stopped")
	return err
}

func (s *Scheduler) job(ctx context.Context, kind approval.SweepKind, interval time.Duration) cron.Job {
	return cron.FuncJob(func() {
		s.Tick(ctx, kind, interval)
	})
}

// cronLogger routes cron's own messages to slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

// Tick runs one sweep of the given kind unless another replica holds its lease.
// Lease errors are logged and the sweep runs anyway; the database guards correctness.
func (s *Scheduler) Tick(ctx context.Context, kind approval.SweepKind, interval time.Duration) *SweepResult {
	if ctx.Err() != nil {
		return nil
	}

	if s.locker != nil {
		lease, err := s.locker.TryAcquire(ctx, "sweep:"+kind.String(), interval/2)
		switch {
		case err != nil:
			slog.Warn("sweep lease unavailable, sweeping anyway", "kind", kind.String(), "error", err)
		case lease == nil:
			slog.Debug("sweep lease held elsewhere, skipping", "kind", kind.String())
			return nil
		default:
			defer func() {
				if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
					slog.Warn("failed to release sweep lease", "kind", kind.String(), "error", err)
				}
			}()
		}
	}

	result, err := s.sweeper.Sweep(ctx, s.now(), kind)
	if err != nil {
		slog.Error("sweep failed", "kind", kind.String(), "error", err)
		return nil
	}
	return result
}
