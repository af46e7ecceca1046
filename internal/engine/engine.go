// Package engine owns the workflow instance lifecycle: stage routing,
// decision recording, escalation and cancellation. It is the only
// component authorized to mutate instance state, and it does so under
// an exclusive per-instance lock shared with the escalation scheduler.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openhrm/workflow-engine/internal/action"
	"github.com/openhrm/workflow-engine/internal/approver"
	"github.com/openhrm/workflow-engine/internal/condition"
	"github.com/openhrm/workflow-engine/internal/lifecycle"
	"github.com/openhrm/workflow-engine/internal/models"
)

// Repository is the persistence boundary for instances. Load returns
// the instance with its definition resolved; implementations report a
// missing id with ErrInstanceNotFound.
type Repository interface {
	Load(ctx context.Context, id string) (*models.WorkflowInstance, error)
	Save(ctx context.Context, inst *models.WorkflowInstance) error
	ListOpen(ctx context.Context, filter ListFilter) ([]*models.WorkflowInstance, error)
}

// DefinitionStore resolves activated workflow definitions
type DefinitionStore interface {
	Get(ctx context.Context, id string) (*models.WorkflowDefinition, error)
}

// AuditStore is the append-only audit log
type AuditStore interface {
	Append(ctx context.Context, entry *models.AuditLogEntry) error
	ListByInstance(ctx context.Context, instanceID string) ([]*models.AuditLogEntry, error)
}

// Clock abstracts wall time so SLA behavior is testable
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock
func SystemClock() Clock { return systemClock{} }

// ListFilter narrows ListOpen results. Zero values match everything.
type ListFilter struct {
	DefinitionID string
	Status       models.InstanceStatus
	MinPriority  int
}

// StageStatus describes one open stage for callers
type StageStatus struct {
	Name      string    `json:"name"`
	Order     int       `json:"order"`
	Approvers []string  `json:"approvers"`
	Deadline  time.Time `json:"sla_deadline"`
}

// Snapshot is the read model handed to callers: the instance, its open
// stages with SLA deadlines, and (for single lookups) the audit trail.
type Snapshot struct {
	Instance *models.WorkflowInstance `json:"instance"`
	Open     []StageStatus            `json:"open_stages,omitempty"`
	Audit    []*models.AuditLogEntry  `json:"audit,omitempty"`
}

// followUp is an action collected during a locked transition and
// executed after the lock is released, so an escalate action can
// re-enter the engine without deadlocking.
type followUp struct {
	act models.WorkflowAction
	ec  action.Context
}

// Engine is the workflow instance state machine
type Engine struct {
	repo        Repository
	definitions DefinitionStore
	audit       AuditStore
	resolver    *approver.Resolver
	actions     *action.Executor
	clock       Clock
	logger      *zap.Logger
	locks       *keyedMutex
}

// NewEngine creates a workflow engine
func NewEngine(
	repo Repository,
	definitions DefinitionStore,
	audit AuditStore,
	resolver *approver.Resolver,
	actions *action.Executor,
	clock Clock,
	logger *zap.Logger,
) *Engine {
	if clock == nil {
		clock = SystemClock()
	}
	return &Engine{
		repo:        repo,
		definitions: definitions,
		audit:       audit,
		resolver:    resolver,
		actions:     actions,
		clock:       clock,
		logger:      logger,
		locks:       newKeyedMutex(),
	}
}

// CreateInstance routes a validated request into a new workflow
// instance: it filters the definition's stages against the request
// attributes, resolves the first stage's approvers, and persists the
// instance in PENDING.
func (e *Engine) CreateInstance(ctx context.Context, definitionID, initiator string, attrs models.Attributes, priority int) (*models.WorkflowInstance, error) {
	def, err := e.definitions.Get(ctx, definitionID)
	if err != nil {
		return nil, err
	}

	var applicable []models.WorkflowStage
	for _, stage := range def.Stages {
		if condition.StageApplies(stage, attrs) {
			applicable = append(applicable, stage)
		}
	}
	if len(applicable) == 0 {
		return nil, &NoApplicableStageError{Definition: def.Name}
	}

	now := e.clock.Now()
	inst := &models.WorkflowInstance{
		ID:           uuid.NewString(),
		DefinitionID: def.ID,
		Initiator:    initiator,
		Attributes:   attrs,
		Priority:     priority,
		Status:       models.StatusPending,
		Parallel:     def.AllowParallelApproval,
		Applicable:   applicable,
		CreatedAt:    now,
		Definition:   def,
	}

	if inst.Parallel {
		for _, stage := range applicable {
			if err := e.openStage(ctx, inst, stage, now); err != nil {
				return nil, err
			}
		}
	} else {
		if err := e.openStage(ctx, inst, applicable[0], now); err != nil {
			return nil, err
		}
	}

	if err := e.repo.Save(ctx, inst); err != nil {
		return nil, fmt.Errorf("save instance: %w", err)
	}
	if err := e.appendAudit(ctx, inst.ID, models.AuditCreated, initiator, map[string]interface{}{
		"definition": def.Name,
		"stages":     len(applicable),
		"parallel":   inst.Parallel,
	}); err != nil {
		return nil, err
	}

	e.logger.Info("Workflow instance created",
		zap.String("instance_id", inst.ID),
		zap.String("definition", def.Name),
		zap.String("initiator", initiator),
		zap.Int("applicable_stages", len(applicable)))

	return inst, nil
}

// Act records one approver's decision on an open instance. Decisive
// outcomes advance or close the instance per the stage policy; partial
// votes leave it IN_PROGRESS.
func (e *Engine) Act(ctx context.Context, instanceID, actor string, decision models.Decision, comment string) (*models.WorkflowInstance, error) {
	if !decision.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDecision, decision)
	}

	var followUps []followUp
	inst, err := func() (*models.WorkflowInstance, error) {
		mu := e.locks.get(instanceID)
		mu.Lock()
		defer mu.Unlock()

		inst, err := e.repo.Load(ctx, instanceID)
		if err != nil {
			return nil, err
		}
		if !inst.Status.IsOpen() {
			return nil, fmt.Errorf("%w: %s is %s", ErrInstanceClosed, instanceID, inst.Status)
		}

		exec, stage, err := e.actionableStage(inst, actor)
		if err != nil {
			return nil, err
		}

		if exec.Votes == nil {
			exec.Votes = make(map[string]models.Decision)
		}
		exec.Votes[actor] = decision

		outcome, decisive := tally(stage.Policy, exec)

		machine, err := lifecycle.New(inst.Status)
		if err != nil {
			return nil, err
		}
		now := e.clock.Now()

		if !decisive {
			if err := machine.Fire(lifecycle.TriggerVote); err != nil {
				return nil, err
			}
			inst.Status = machine.State()
			if err := e.repo.Save(ctx, inst); err != nil {
				return nil, fmt.Errorf("save instance: %w", err)
			}
			e.logger.Info("Partial vote recorded",
				zap.String("instance_id", inst.ID),
				zap.String("actor", actor),
				zap.String("decision", string(decision)),
				zap.String("stage", exec.StageName))
			return inst, nil
		}

		exec.Outcome = outcomeFor(outcome)
		exec.Actor = actor
		exec.CompletedAt = &now

		var stageActions []models.WorkflowAction
		if outcome == models.DecisionApprove {
			stageActions = stage.OnApprove
			if err := e.afterApprove(ctx, inst, machine, now); err != nil {
				return nil, err
			}
		} else {
			stageActions = stage.OnReject
			if err := e.afterReject(inst, machine, now); err != nil {
				return nil, err
			}
		}

		if err := e.repo.Save(ctx, inst); err != nil {
			return nil, fmt.Errorf("save instance: %w", err)
		}

		auditAction := models.AuditApproved
		if outcome == models.DecisionReject {
			auditAction = models.AuditRejected
		}
		if err := e.appendAudit(ctx, inst.ID, auditAction, actor, map[string]interface{}{
			"stage_order": exec.StageOrder,
			"stage":       exec.StageName,
			"comment":     comment,
		}); err != nil {
			return nil, err
		}
		if !inst.Status.IsTerminal() && !inst.Parallel {
			next := inst.CurrentStage()
			if err := e.appendAudit(ctx, inst.ID, models.AuditAdvanced, actor, map[string]interface{}{
				"stage_order": next.StageOrder,
				"stage":       next.StageName,
			}); err != nil {
				return nil, err
			}
		}

		ec := action.Context{
			InstanceID: inst.ID,
			StageName:  exec.StageName,
			StageOrder: exec.StageOrder,
			Initiator:  inst.Initiator,
			Attributes: inst.Attributes,
		}
		for _, act := range stageActions {
			followUps = append(followUps, followUp{act: act, ec: ec})
		}

		e.logger.Info("Decisive stage outcome",
			zap.String("instance_id", inst.ID),
			zap.String("stage", exec.StageName),
			zap.String("outcome", string(exec.Outcome)),
			zap.String("status", inst.Status.String()),
			zap.String("actor", actor))
		return inst, nil
	}()
	if err != nil {
		return nil, err
	}

	// Actions run outside the instance lock; an escalate action may
	// re-enter the engine.
	for _, f := range followUps {
		e.actions.Execute(ctx, f.act, f.ec)
	}
	return inst, nil
}

// Escalate reassigns an open stage to its escalation target without
// advancing the stage index. The stage clock restarts, so the new owner
// gets a fresh SLA window; a repeat escalation inside that window is
// refused with AlreadyEscalatedError.
//
// A negative stageOrder targets the current stage of a sequential
// instance.
func (e *Engine) Escalate(ctx context.Context, instanceID string, stageOrder int, reason string) error {
	var notifyTargets []string
	var stageName string
	err := func() error {
		mu := e.locks.get(instanceID)
		mu.Lock()
		defer mu.Unlock()

		inst, err := e.repo.Load(ctx, instanceID)
		if err != nil {
			return err
		}
		if !inst.Status.IsOpen() {
			return fmt.Errorf("%w: %s is %s", ErrInstanceClosed, instanceID, inst.Status)
		}

		var exec *models.StageExecution
		if stageOrder < 0 {
			exec = inst.CurrentStage()
		} else {
			exec = inst.StageByOrder(stageOrder)
		}
		if exec == nil || !exec.Open() {
			return fmt.Errorf("%w: instance %s stage %d", ErrStageClosed, instanceID, stageOrder)
		}
		stage, ok := inst.ApplicableByOrder(exec.StageOrder)
		if !ok {
			return fmt.Errorf("stage %d is not applicable to instance %s", exec.StageOrder, instanceID)
		}
		if !stage.EscalationEnabled {
			return fmt.Errorf("%w: stage %q", ErrEscalationDisabled, stage.Name)
		}

		now := e.clock.Now()
		if exec.EscalatedAt != nil && now.Sub(exec.StartedAt) < stage.EscalationWindow() {
			return &AlreadyEscalatedError{InstanceID: instanceID, Stage: stage.Name}
		}

		targets, err := e.resolver.ResolveTarget(ctx, stage, stage.EscalationTarget, inst.Attributes)
		if err != nil {
			return err
		}

		machine, err := lifecycle.New(inst.Status)
		if err != nil {
			return err
		}
		if err := machine.Fire(lifecycle.TriggerEscalate); err != nil {
			return err
		}

		elapsed := now.Sub(exec.StartedAt)
		exec.Approvers = targets
		exec.Votes = make(map[string]models.Decision)
		exec.StartedAt = now
		escalatedAt := now
		exec.EscalatedAt = &escalatedAt
		exec.EscalationCount++
		inst.Status = machine.State()

		if err := e.repo.Save(ctx, inst); err != nil {
			return fmt.Errorf("save instance: %w", err)
		}
		if err := e.appendAudit(ctx, inst.ID, models.AuditEscalated, "", map[string]interface{}{
			"stage_order": exec.StageOrder,
			"stage":       exec.StageName,
			"reason":      reason,
			"elapsed":     elapsed.String(),
			"targets":     targets,
		}); err != nil {
			return err
		}

		notifyTargets = targets
		stageName = exec.StageName
		e.logger.Warn("Stage escalated",
			zap.String("instance_id", inst.ID),
			zap.String("stage", exec.StageName),
			zap.String("reason", reason),
			zap.Duration("elapsed", elapsed),
			zap.Strings("targets", targets))
		return nil
	}()
	if err != nil {
		return err
	}

	for _, target := range notifyTargets {
		e.actions.Notify(ctx, target, "Approval escalated to you",
			fmt.Sprintf("Stage %q of instance %s needs your decision: %s", stageName, instanceID, reason),
			map[string]string{"instance_id": instanceID, "stage": stageName})
	}
	return nil
}

// Cancel closes an open instance on initiator or system request
func (e *Engine) Cancel(ctx context.Context, instanceID, actor, reason string) error {
	mu := e.locks.get(instanceID)
	mu.Lock()
	defer mu.Unlock()

	inst, err := e.repo.Load(ctx, instanceID)
	if err != nil {
		return err
	}
	machine, err := lifecycle.New(inst.Status)
	if err != nil {
		return err
	}
	if err := machine.Fire(lifecycle.TriggerCancel); err != nil {
		return err
	}

	now := e.clock.Now()
	for _, exec := range inst.OpenStages() {
		exec.Outcome = models.StageCancelled
		exec.CompletedAt = &now
	}
	inst.Status = machine.State()
	inst.TerminalAt = &now

	if err := e.repo.Save(ctx, inst); err != nil {
		return fmt.Errorf("save instance: %w", err)
	}
	if err := e.appendAudit(ctx, inst.ID, models.AuditCancelled, actor, map[string]interface{}{
		"reason": reason,
	}); err != nil {
		return err
	}

	e.logger.Info("Workflow instance cancelled",
		zap.String("instance_id", inst.ID),
		zap.String("actor", actor),
		zap.String("reason", reason))
	return nil
}

// SendReminder notifies the open stage's approvers that its SLA window
// is closing. At most one reminder goes out per instance per SLA
// window; repeat calls inside the same window are no-ops.
func (e *Engine) SendReminder(ctx context.Context, instanceID string, stageOrder int) error {
	var targets []string
	var stageName string
	err := func() error {
		mu := e.locks.get(instanceID)
		mu.Lock()
		defer mu.Unlock()

		inst, err := e.repo.Load(ctx, instanceID)
		if err != nil {
			return err
		}
		if !inst.Status.IsOpen() {
			return nil
		}
		exec := inst.StageByOrder(stageOrder)
		if exec == nil || !exec.Open() {
			return nil
		}

		sent, err := e.hasMarkerSince(ctx, instanceID, models.AuditSLAWarning, stageOrder, exec.StartedAt)
		if err != nil {
			return err
		}
		if sent {
			return nil
		}

		stage, _ := inst.ApplicableByOrder(stageOrder)
		deadline := exec.StartedAt.Add(stage.SLADuration.Std())
		if err := e.appendAudit(ctx, instanceID, models.AuditSLAWarning, "", map[string]interface{}{
			"stage_order": stageOrder,
			"stage":       exec.StageName,
			"deadline":    deadline.Format(time.RFC3339),
		}); err != nil {
			return err
		}
		if err := e.appendAudit(ctx, instanceID, models.AuditReminderSent, "", map[string]interface{}{
			"stage_order": stageOrder,
			"targets":     exec.Approvers,
		}); err != nil {
			return err
		}

		targets = append(targets, exec.Approvers...)
		stageName = exec.StageName
		return nil
	}()
	if err != nil {
		return err
	}

	for _, target := range targets {
		e.actions.Notify(ctx, target, "Approval deadline approaching",
			fmt.Sprintf("Stage %q of instance %s is nearing its SLA deadline", stageName, instanceID),
			map[string]string{"instance_id": instanceID, "stage": stageName})
	}
	return nil
}

// RecordUnescalatedBreach audits an SLA breach on a stage that has
// escalation disabled. The engine never silently drops a breached
// approval; one entry per breach window flags it for manual
// intervention.
func (e *Engine) RecordUnescalatedBreach(ctx context.Context, instanceID string, stageOrder int) error {
	mu := e.locks.get(instanceID)
	mu.Lock()
	defer mu.Unlock()

	inst, err := e.repo.Load(ctx, instanceID)
	if err != nil {
		return err
	}
	if !inst.Status.IsOpen() {
		return nil
	}
	exec := inst.StageByOrder(stageOrder)
	if exec == nil || !exec.Open() {
		return nil
	}

	recorded, err := e.hasMarkerSince(ctx, instanceID, models.AuditBreachUnescalated, stageOrder, exec.StartedAt)
	if err != nil {
		return err
	}
	if recorded {
		return nil
	}

	elapsed := e.clock.Now().Sub(exec.StartedAt)
	if err := e.appendAudit(ctx, instanceID, models.AuditBreachUnescalated, "", map[string]interface{}{
		"stage_order": stageOrder,
		"stage":       exec.StageName,
		"elapsed":     elapsed.String(),
	}); err != nil {
		return err
	}

	e.logger.Warn("SLA breached on stage without escalation",
		zap.String("instance_id", instanceID),
		zap.String("stage", exec.StageName),
		zap.Duration("elapsed", elapsed))
	return nil
}

// GetInstance returns the instance snapshot with its audit trail
func (e *Engine) GetInstance(ctx context.Context, instanceID string) (*Snapshot, error) {
	mu := e.locks.get(instanceID)
	mu.Lock()
	defer mu.Unlock()

	inst, err := e.repo.Load(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	audit, err := e.audit.ListByInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	snap := e.snapshot(inst)
	snap.Audit = audit
	return snap, nil
}

// ListOpenInstances returns snapshots of every open instance matching
// the filter
func (e *Engine) ListOpenInstances(ctx context.Context, filter ListFilter) ([]*Snapshot, error) {
	instances, err := e.repo.ListOpen(ctx, filter)
	if err != nil {
		return nil, err
	}
	snaps := make([]*Snapshot, 0, len(instances))
	for _, inst := range instances {
		snaps = append(snaps, e.snapshot(inst))
	}
	return snaps, nil
}

func (e *Engine) snapshot(inst *models.WorkflowInstance) *Snapshot {
	snap := &Snapshot{Instance: inst}
	for _, exec := range inst.OpenStages() {
		stage, ok := inst.ApplicableByOrder(exec.StageOrder)
		if !ok {
			continue
		}
		snap.Open = append(snap.Open, StageStatus{
			Name:      exec.StageName,
			Order:     exec.StageOrder,
			Approvers: exec.Approvers,
			Deadline:  exec.StartedAt.Add(stage.SLADuration.Std()),
		})
	}
	return snap
}

// actionableStage locates the stage the actor may act on: the current
// stage in sequential mode, or the first open branch listing the actor
// in parallel mode.
func (e *Engine) actionableStage(inst *models.WorkflowInstance, actor string) (*models.StageExecution, models.WorkflowStage, error) {
	if inst.Parallel {
		for _, exec := range inst.OpenStages() {
			if exec.HasApprover(actor) {
				stage, _ := inst.ApplicableByOrder(exec.StageOrder)
				return exec, stage, nil
			}
		}
		return nil, models.WorkflowStage{}, &UnauthorizedActorError{InstanceID: inst.ID, Actor: actor}
	}

	exec := inst.CurrentStage()
	if exec == nil {
		return nil, models.WorkflowStage{}, fmt.Errorf("%w: %s", ErrInstanceClosed, inst.ID)
	}
	if !exec.HasApprover(actor) {
		return nil, models.WorkflowStage{}, &UnauthorizedActorError{InstanceID: inst.ID, Actor: actor}
	}
	stage, _ := inst.ApplicableByOrder(exec.StageOrder)
	return exec, stage, nil
}

// afterApprove advances a sequential instance or aggregates parallel
// branches after a decisive approve
func (e *Engine) afterApprove(ctx context.Context, inst *models.WorkflowInstance, machine *lifecycle.Machine, now time.Time) error {
	if inst.Parallel {
		return e.aggregateParallel(inst, machine, now)
	}

	next := inst.CurrentStageIndex + 1
	if next < len(inst.Applicable) {
		// Resolve the next stage before committing anything; a failed
		// resolution rejects the whole transition instead of skipping
		// the stage.
		if err := e.openStage(ctx, inst, inst.Applicable[next], now); err != nil {
			return err
		}
		inst.CurrentStageIndex = next
		if err := machine.Fire(lifecycle.TriggerAdvance); err != nil {
			return err
		}
		inst.Status = machine.State()
		return nil
	}

	inst.CurrentStageIndex = len(inst.Applicable)
	if err := machine.Fire(lifecycle.TriggerApprove); err != nil {
		return err
	}
	inst.Status = machine.State()
	inst.TerminalAt = &now
	return nil
}

// afterReject closes a sequential instance, or the branch of a parallel
// one, after a decisive reject
func (e *Engine) afterReject(inst *models.WorkflowInstance, machine *lifecycle.Machine, now time.Time) error {
	if inst.Parallel {
		return e.aggregateParallel(inst, machine, now)
	}

	if err := machine.Fire(lifecycle.TriggerReject); err != nil {
		return err
	}
	inst.CurrentStageIndex = len(inst.Applicable)
	inst.Status = machine.State()
	inst.TerminalAt = &now
	return nil
}

// aggregateParallel settles a parallel instance once every branch has a
// terminal branch outcome: rejected wins over approved.
func (e *Engine) aggregateParallel(inst *models.WorkflowInstance, machine *lifecycle.Machine, now time.Time) error {
	if len(inst.OpenStages()) > 0 {
		if err := machine.Fire(lifecycle.TriggerVote); err != nil {
			return err
		}
		inst.Status = machine.State()
		return nil
	}

	trigger := lifecycle.TriggerApprove
	for _, exec := range inst.Stages {
		if exec.Outcome == models.StageRejected {
			trigger = lifecycle.TriggerReject
			break
		}
	}
	if err := machine.Fire(trigger); err != nil {
		return err
	}
	inst.Status = machine.State()
	inst.TerminalAt = &now
	return nil
}

// openStage resolves the stage's approvers and appends a fresh
// execution record. stage_started_at is set exactly here and only
// reset by escalation.
func (e *Engine) openStage(ctx context.Context, inst *models.WorkflowInstance, stage models.WorkflowStage, now time.Time) error {
	approvers, err := e.resolver.Resolve(ctx, stage, inst.Attributes, inst.Initiator)
	if err != nil {
		return err
	}
	inst.Stages = append(inst.Stages, &models.StageExecution{
		StageName:  stage.Name,
		StageOrder: stage.Order,
		Approvers:  approvers,
		Votes:      make(map[string]models.Decision),
		StartedAt:  now,
	})
	return nil
}

func (e *Engine) appendAudit(ctx context.Context, instanceID string, auditAction models.AuditAction, actor string, details map[string]interface{}) error {
	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}
	entry := &models.AuditLogEntry{
		ID:         uuid.NewString(),
		InstanceID: instanceID,
		Action:     auditAction,
		Actor:      actor,
		Details:    string(payload),
		Timestamp:  e.clock.Now(),
	}
	if err := e.audit.Append(ctx, entry); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// hasMarkerSince reports whether an audit entry for the action and
// stage exists at or after the given time. The scheduler's per-window
// idempotence rests on these markers.
func (e *Engine) hasMarkerSince(ctx context.Context, instanceID string, auditAction models.AuditAction, stageOrder int, since time.Time) (bool, error) {
	entries, err := e.audit.ListByInstance(ctx, instanceID)
	if err != nil {
		return false, err
	}
	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]
		if entry.Action != auditAction || entry.Timestamp.Before(since) {
			continue
		}
		var details struct {
			StageOrder int `json:"stage_order"`
		}
		if err := json.Unmarshal([]byte(entry.Details), &details); err != nil {
			continue
		}
		if details.StageOrder == stageOrder {
			return true, nil
		}
	}
	return false, nil
}

// tally applies the stage's approval policy to the recorded votes.
// Under all, any single reject is immediately decisive.
func tally(policy models.ApprovalPolicy, exec *models.StageExecution) (models.Decision, bool) {
	approvals, rejections := 0, 0
	for _, v := range exec.Votes {
		if v == models.DecisionApprove {
			approvals++
		} else {
			rejections++
		}
	}
	total := len(exec.Approvers)

	switch policy {
	case models.PolicyAny:
		for _, v := range exec.Votes {
			return v, true
		}
	case models.PolicyAll:
		if rejections > 0 {
			return models.DecisionReject, true
		}
		if approvals == total {
			return models.DecisionApprove, true
		}
	case models.PolicyMajority:
		if approvals*2 > total {
			return models.DecisionApprove, true
		}
		if rejections*2 > total {
			return models.DecisionReject, true
		}
	}
	return "", false
}

func outcomeFor(d models.Decision) models.StageOutcome {
	if d == models.DecisionApprove {
		return models.StageApproved
	}
	return models.StageRejected
}
