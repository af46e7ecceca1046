// Package scheduler runs the periodic SLA sweep: it classifies every
// open stage against its SLA window and drives reminders, escalations
// and auto-cancellation through the engine. The scheduler never mutates
// an instance directly; every change goes through an engine method that
// takes the instance lock.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/openhrm/workflow-engine/internal/engine"
	"github.com/openhrm/workflow-engine/internal/models"
)

// Sweeper is the slice of the engine the scheduler drives
type Sweeper interface {
	ListOpenInstances(ctx context.Context, filter engine.ListFilter) ([]*engine.Snapshot, error)
	Escalate(ctx context.Context, instanceID string, stageOrder int, reason string) error
	SendReminder(ctx context.Context, instanceID string, stageOrder int) error
	RecordUnescalatedBreach(ctx context.Context, instanceID string, stageOrder int) error
	Cancel(ctx context.Context, instanceID, actor, reason string) error
}

// ActionQueue releases deferred post-approval actions whose delay has
// elapsed
type ActionQueue interface {
	RunDue(ctx context.Context, now time.Time) int
}

// stageHealth classifies one open stage against its SLA window
type stageHealth int

const (
	healthOK stageHealth = iota
	healthWarning
	healthBreached
)

// Options tune the sweep cadence and concurrency
type Options struct {
	TickInterval time.Duration
	// WarningThreshold is the fraction of the SLA window after which a
	// reminder goes out, e.g. 0.8 warns at 80% of the window.
	WarningThreshold float64
	// WorkerPoolSize bounds how many instances one sweep processes
	// concurrently.
	WorkerPoolSize int
	SweepTimeout   time.Duration
}

func (o *Options) applyDefaults() {
	if o.TickInterval <= 0 {
		o.TickInterval = 15 * time.Second
	}
	if o.WarningThreshold <= 0 || o.WarningThreshold >= 1 {
		o.WarningThreshold = 0.8
	}
	if o.WorkerPoolSize <= 0 {
		o.WorkerPoolSize = 8
	}
	if o.SweepTimeout <= 0 {
		o.SweepTimeout = 30 * time.Second
	}
}

// EscalationScheduler is the background worker that enforces SLA
// deadlines on open workflow instances
type EscalationScheduler struct {
	engine  Sweeper
	actions ActionQueue
	clock   engine.Clock
	logger  *zap.Logger
	opts    Options

	// sweeping guards against overlapping sweeps when one tick takes
	// longer than the interval.
	sweeping atomic.Bool

	mu        sync.Mutex
	isRunning bool
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewEscalationScheduler creates the SLA sweep worker
func NewEscalationScheduler(eng Sweeper, actions ActionQueue, clock engine.Clock, logger *zap.Logger, opts Options) *EscalationScheduler {
	opts.applyDefaults()
	if clock == nil {
		clock = engine.SystemClock()
	}
	return &EscalationScheduler{
		engine:  eng,
		actions: actions,
		clock:   clock,
		logger:  logger,
		opts:    opts,
	}
}

// Start launches the sweep loop
func (s *EscalationScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("escalation scheduler is already running")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.isRunning = true
	s.done = make(chan struct{})

	s.logger.Info("EscalationScheduler started",
		zap.Duration("tick_interval", s.opts.TickInterval),
		zap.Float64("warning_threshold", s.opts.WarningThreshold),
		zap.Int("worker_pool_size", s.opts.WorkerPoolSize))

	go s.sweepLoop()

	return nil
}

// Stop cancels the loop and waits for an in-flight sweep to drain
func (s *EscalationScheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.cancel()
	done := s.done
	s.mu.Unlock()

	<-done
	s.logger.Info("EscalationScheduler stopped")
}

// Name returns the worker name for identification
func (s *EscalationScheduler) Name() string {
	return "EscalationScheduler"
}

func (s *EscalationScheduler) sweepLoop() {
	defer close(s.done)

	ticker := time.NewTicker(s.opts.TickInterval)
	defer ticker.Stop()

	// Sweep immediately on start
	s.Sweep(s.ctx)

	for {
		select {
		case <-s.ctx.Done():
			s.logger.Debug("Sweep loop context cancelled")
			return

		case <-ticker.C:
			s.Sweep(s.ctx)
		}
	}
}

// Sweep runs one pass over all open instances. It is safe to call
// directly; a pass already in flight makes the call a no-op.
func (s *EscalationScheduler) Sweep(ctx context.Context) {
	if !s.sweeping.CompareAndSwap(false, true) {
		s.logger.Warn("Previous sweep still in flight, skipping tick")
		return
	}
	defer s.sweeping.Store(false)

	ctx, cancel := context.WithTimeout(ctx, s.opts.SweepTimeout)
	defer cancel()

	now := s.clock.Now()
	if released := s.actions.RunDue(ctx, now); released > 0 {
		s.logger.Info("Released deferred actions", zap.Int("count", released))
	}

	snaps, err := s.engine.ListOpenInstances(ctx, engine.ListFilter{})
	if err != nil {
		s.logger.Error("Failed to list open instances", zap.Error(err))
		return
	}
	if len(snaps) == 0 {
		return
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, s.opts.WorkerPoolSize)
	for _, snap := range snaps {
		wg.Add(1)
		sem <- struct{}{}
		go func(snap *engine.Snapshot) {
			defer wg.Done()
			defer func() { <-sem }()
			s.sweepInstance(ctx, snap, now)
		}(snap)
	}
	wg.Wait()
}

func (s *EscalationScheduler) sweepInstance(ctx context.Context, snap *engine.Snapshot, now time.Time) {
	inst := snap.Instance

	if s.shouldAutoCancel(inst, now) {
		if err := s.engine.Cancel(ctx, inst.ID, "system", "auto-cancelled after inactivity"); err != nil {
			s.logger.Error("Failed to auto-cancel instance",
				zap.String("instance_id", inst.ID),
				zap.Error(err))
		}
		return
	}

	for _, exec := range inst.OpenStages() {
		stage, ok := inst.ApplicableByOrder(exec.StageOrder)
		if !ok {
			continue
		}
		switch s.classify(exec, stage, now) {
		case healthOK:

		case healthWarning:
			if err := s.engine.SendReminder(ctx, inst.ID, exec.StageOrder); err != nil {
				s.logger.Error("Failed to send SLA reminder",
					zap.String("instance_id", inst.ID),
					zap.String("stage", exec.StageName),
					zap.Error(err))
			}

		case healthBreached:
			s.handleBreach(ctx, inst, exec, stage, now)
		}
	}
}

func (s *EscalationScheduler) handleBreach(ctx context.Context, inst *models.WorkflowInstance, exec *models.StageExecution, stage models.WorkflowStage, now time.Time) {
	if !stage.EscalationEnabled {
		if err := s.engine.RecordUnescalatedBreach(ctx, inst.ID, exec.StageOrder); err != nil {
			s.logger.Error("Failed to record unescalated breach",
				zap.String("instance_id", inst.ID),
				zap.String("stage", exec.StageName),
				zap.Error(err))
		}
		return
	}

	elapsed := now.Sub(exec.StartedAt)
	err := s.engine.Escalate(ctx, inst.ID, exec.StageOrder,
		fmt.Sprintf("SLA breached after %s", elapsed.Round(time.Second)))
	if err != nil {
		// The engine already refused a repeat escalation inside the
		// fresh window; anything else is a real failure.
		var already *engine.AlreadyEscalatedError
		if errors.As(err, &already) {
			return
		}
		s.logger.Error("Failed to escalate breached stage",
			zap.String("instance_id", inst.ID),
			zap.String("stage", exec.StageName),
			zap.Error(err))
	}
}

// classify places one open stage in its SLA window. Escalation resets
// StartedAt, so an escalated stage is measured against its fresh window.
func (s *EscalationScheduler) classify(exec *models.StageExecution, stage models.WorkflowStage, now time.Time) stageHealth {
	window := stage.SLADuration.Std()
	if window <= 0 {
		return healthOK
	}
	elapsed := now.Sub(exec.StartedAt)
	switch {
	case elapsed >= window:
		return healthBreached
	case elapsed >= time.Duration(float64(window)*s.opts.WarningThreshold):
		return healthWarning
	default:
		return healthOK
	}
}

func (s *EscalationScheduler) shouldAutoCancel(inst *models.WorkflowInstance, now time.Time) bool {
	if inst.Definition == nil || inst.Definition.AutoCancelAfter <= 0 {
		return false
	}
	return now.Sub(inst.CreatedAt) >= inst.Definition.AutoCancelAfter.Std()
}
