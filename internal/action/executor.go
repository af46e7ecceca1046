// Package action executes the side effects attached to stage outcomes:
// notifications, escalations and custom hooks. Notification delivery is
// best-effort; a failed send is logged and never aborts the transition
// that triggered it.
package action

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/openhrm/workflow-engine/internal/models"
)

// Notifier is the external delivery mechanism. The engine only decides
// that and to whom a notification goes; delivery is someone else's job.
type Notifier interface {
	Send(ctx context.Context, target, title, message string, metadata map[string]string) error
}

// Escalator escalates an open stage of an instance. The engine
// implements it; the indirection avoids a package cycle.
type Escalator interface {
	Escalate(ctx context.Context, instanceID string, stageOrder int, reason string) error
}

// HandlerFunc handles a custom action kind
type HandlerFunc func(ctx context.Context, act models.WorkflowAction, ec Context) error

// Context carries the instance coordinates an action executes against
type Context struct {
	InstanceID string
	StageName  string
	StageOrder int
	Initiator  string
	Attributes models.Attributes
}

// delayed is an action scheduled for future dispatch. Delayed actions
// are lightweight timers drained by the scheduler tick, not a separate
// subsystem.
type delayed struct {
	wake time.Time
	act  models.WorkflowAction
	ec   Context
}

// Executor dispatches workflow actions to their collaborators
type Executor struct {
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time

	mu        sync.Mutex
	escalator Escalator
	handlers  map[string]HandlerFunc
	queue     []delayed
}

// NewExecutor creates a new action executor
func NewExecutor(notifier Notifier, logger *zap.Logger) *Executor {
	return &Executor{
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
		handlers: make(map[string]HandlerFunc),
	}
}

// BindEscalator wires the engine in after construction. The engine
// depends on the executor, so the executor cannot take it at build time.
func (e *Executor) BindEscalator(esc Escalator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.escalator = esc
}

// RegisterHandler registers a custom action handler under a name
func (e *Executor) RegisterHandler(name string, fn HandlerFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[name] = fn
}

// HasHandler reports whether a custom handler is registered. The
// definition validator uses this at load time.
func (e *Executor) HasHandler(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.handlers[name]
	return ok
}

// Execute runs the action, or queues it for future dispatch when a
// delay is set. The caller's transition never blocks on delivery.
func (e *Executor) Execute(ctx context.Context, act models.WorkflowAction, ec Context) {
	if act.Delay > 0 {
		e.mu.Lock()
		e.queue = append(e.queue, delayed{wake: e.now().Add(act.Delay.Std()), act: act, ec: ec})
		e.mu.Unlock()
		e.logger.Debug("Action scheduled for delayed dispatch",
			zap.String("instance_id", ec.InstanceID),
			zap.String("kind", string(act.Kind)),
			zap.Duration("delay", act.Delay.Std()))
		return
	}
	e.dispatch(ctx, act, ec)
}

// RunDue dispatches every queued action whose wake time has passed.
// The escalation scheduler calls it once per tick.
func (e *Executor) RunDue(ctx context.Context, now time.Time) int {
	e.mu.Lock()
	var due []delayed
	var rest []delayed
	for _, d := range e.queue {
		if !d.wake.After(now) {
			due = append(due, d)
		} else {
			rest = append(rest, d)
		}
	}
	e.queue = rest
	e.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].wake.Before(due[j].wake) })
	for _, d := range due {
		e.dispatch(ctx, d.act, d.ec)
	}
	return len(due)
}

// Pending returns the number of actions awaiting their wake time
func (e *Executor) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

func (e *Executor) dispatch(ctx context.Context, act models.WorkflowAction, ec Context) {
	switch act.Kind {
	case models.ActionNotify:
		e.notify(ctx, act, ec)

	case models.ActionEscalate:
		e.mu.Lock()
		esc := e.escalator
		e.mu.Unlock()
		if esc == nil {
			e.logger.Error("Escalate action dropped: no escalator bound",
				zap.String("instance_id", ec.InstanceID))
			return
		}
		reason := act.Parameters["reason"]
		if reason == "" {
			reason = fmt.Sprintf("escalate action on stage %q", ec.StageName)
		}
		if err := esc.Escalate(ctx, ec.InstanceID, ec.StageOrder, reason); err != nil {
			e.logger.Error("Escalate action failed",
				zap.String("instance_id", ec.InstanceID),
				zap.Int("stage_order", ec.StageOrder),
				zap.Error(err))
		}

	case models.ActionCustom:
		e.mu.Lock()
		fn, ok := e.handlers[act.Handler]
		e.mu.Unlock()
		if !ok {
			// Validation rejects unregistered handlers at definition load;
			// reaching this means a handler was unregistered at runtime.
			e.logger.Error("Custom action handler not registered",
				zap.String("handler", act.Handler),
				zap.String("instance_id", ec.InstanceID))
			return
		}
		if err := fn(ctx, act, ec); err != nil {
			e.logger.Error("Custom action failed",
				zap.String("handler", act.Handler),
				zap.String("instance_id", ec.InstanceID),
				zap.Error(err))
		}

	default:
		e.logger.Error("Unknown action kind",
			zap.String("kind", string(act.Kind)),
			zap.String("instance_id", ec.InstanceID))
	}
}

// Notify sends a one-off notification outside any definition action,
// e.g. SLA reminders from the scheduler. Failures are logged only.
func (e *Executor) Notify(ctx context.Context, target, title, message string, metadata map[string]string) {
	if err := e.notifier.Send(ctx, target, title, message, metadata); err != nil {
		e.logger.Warn("Notification delivery failed",
			zap.String("target", target),
			zap.String("title", title),
			zap.Error(err))
	}
}

func (e *Executor) notify(ctx context.Context, act models.WorkflowAction, ec Context) {
	title := act.Parameters["title"]
	if title == "" {
		title = fmt.Sprintf("Workflow update: %s", ec.StageName)
	}
	message := act.Parameters["message"]
	metadata := map[string]string{
		"instance_id": ec.InstanceID,
		"stage":       ec.StageName,
	}
	for k, v := range act.Parameters {
		if k != "title" && k != "message" {
			metadata[k] = v
		}
	}
	e.Notify(ctx, act.Target, title, message, metadata)
}
