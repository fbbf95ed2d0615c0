package hud

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/remeh/sizedwaitgroup"
)

// PendingTask is a deferred one-shot task. A task whose timer already fired
// observes cancellation through Cancelled when it runs.
type PendingTask struct {
	cancelled atomic.Bool
	timer     *time.Timer
}

// Cancel marks the task cancelled and stops its timer if it has not fired.
func (t *PendingTask) Cancel() {
	if t == nil {
		return
	}
	t.cancelled.Store(true)
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *PendingTask) Cancelled() bool { return t != nil && t.cancelled.Load() }

// Scheduler owns the single goroutine that runs the periodic sweep and every
// deferred task.
type Scheduler struct {
	cfg       Config
	registry  *Registry
	refresher *refresher
	create    func(ctx context.Context, player Player, task *PendingTask)

	tasks   chan func(context.Context)
	stopped chan struct{}
	sweepMu sync.Mutex
}

func newScheduler(cfg Config, registry *Registry, r *refresher) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		registry:  registry,
		refresher: r,
		tasks:     make(chan func(context.Context), 64),
		stopped:   make(chan struct{}),
	}
}

// Run sweeps on every tick and executes deferred tasks until ctx is done.
// A sweep that overruns the interval delays the next tick instead of
// overlapping it.
func (s *Scheduler) Run(ctx context.Context) error {
	defer close(s.stopped)

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Sweep(ctx)
		case task := <-s.tasks:
			s.runTask(ctx, task)
		}
	}
}

// Sweeps returns the number of completed sweeps.
func (s *Scheduler) Sweeps() uint64 {
	return s.refresher.sweeps.Load()
}

// Sweep refreshes every due section of every visible overlay once.
// Per-overlay failures are reported and skipped.
func (s *Scheduler) Sweep(ctx context.Context) {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	entries := s.registry.Visible()
	nowMs := s.refresher.clock.Now().UnixMilli()

	swg := sizedwaitgroup.New(s.cfg.SweepWorkers)
	for _, e := range entries {
		swg.Add()
		go func(e *TrackedOverlay) {
			defer swg.Done()
			s.sweepOne(ctx, e, nowMs)
		}(e)
	}
	swg.Wait()

	s.refresher.sweeps.Add(1)
	s.refresher.metrics.Add(metricSweeps, 1)
}

func (s *Scheduler) sweepOne(ctx context.Context, e *TrackedOverlay, nowMs int64) {
	defer func() {
		if recovered := recover(); recovered != nil {
			s.refresher.metrics.Add(metricRefreshFailures, 1)
			s.refresher.logger.Printf("[hud] sweep of %s panicked: %v", e.id, recovered)
		}
	}()
	if !e.Visible() {
		return
	}
	due := dueSections(s.cfg, e, nowMs)
	if len(due) == 0 {
		return
	}
	s.refresher.refresh(ctx, e, due)
}

// Defer arms a one-shot timer. When it fires fn is handed to the scheduler
// goroutine, so it never runs concurrently with a sweep. fn also runs for a
// cancelled task whose timer already fired, so it must check Cancelled.
func (s *Scheduler) Defer(delay time.Duration, fn func(ctx context.Context, task *PendingTask)) *PendingTask {
	task := &PendingTask{}
	task.timer = time.AfterFunc(delay, func() {
		select {
		case s.tasks <- func(ctx context.Context) { fn(ctx, task) }:
		case <-s.stopped:
		}
	})
	return task
}

// ScheduleCreate defers the first open of player's overlay by CreateDelay.
func (s *Scheduler) ScheduleCreate(player Player) *PendingTask {
	return s.Defer(s.cfg.CreateDelay, func(ctx context.Context, task *PendingTask) {
		if s.create != nil {
			s.create(ctx, player, task)
		}
	})
}

func (s *Scheduler) runTask(ctx context.Context, task func(context.Context)) {
	defer func() {
		if recovered := recover(); recovered != nil {
			s.refresher.logger.Printf("[hud] deferred task panicked: %v", recovered)
		}
	}()
	task(ctx)
}
