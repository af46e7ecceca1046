// Package definition validates workflow definitions at load time.
// A definition that fails validation is never activated, so unknown
// operators, policies or unregistered custom hooks surface here as
// ConfigurationError instead of silent misbehavior at evaluation time.
package definition

import (
	"fmt"

	"github.com/openhrm/workflow-engine/internal/models"
)

// ConfigurationError reports a bad workflow definition. It is fatal to
// activating that definition.
type ConfigurationError struct {
	Definition string
	Stage      string
	Reason     string
}

func (e *ConfigurationError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("invalid definition %q, stage %q: %s", e.Definition, e.Stage, e.Reason)
	}
	return fmt.Sprintf("invalid definition %q: %s", e.Definition, e.Reason)
}

// StrategyRegistry answers whether a named custom approver strategy is
// registered (the approver resolver implements it)
type StrategyRegistry interface {
	HasCustom(name string) bool
}

// HandlerRegistry answers whether a named custom action handler is
// registered (the action executor implements it)
type HandlerRegistry interface {
	HasHandler(name string) bool
}

// Validator checks definitions before activation
type Validator struct {
	strategies StrategyRegistry
	handlers   HandlerRegistry
}

// NewValidator creates a definition validator bound to the registries
// holding the process's custom strategies and handlers
func NewValidator(strategies StrategyRegistry, handlers HandlerRegistry) *Validator {
	return &Validator{strategies: strategies, handlers: handlers}
}

// Validate checks the whole definition and returns the first
// ConfigurationError found, nil when the definition is activatable
func (v *Validator) Validate(def *models.WorkflowDefinition) error {
	fail := func(stage, reason string) error {
		return &ConfigurationError{Definition: def.Name, Stage: stage, Reason: reason}
	}

	if def.Name == "" {
		return fail("", "definition name is required")
	}
	if len(def.Stages) == 0 {
		return fail("", "definition has no stages")
	}
	if def.AutoCancelAfter < 0 {
		return fail("", "auto_cancel_after must not be negative")
	}

	lastOrder := -1
	seenOrders := make(map[int]bool)
	for _, stage := range def.Stages {
		if stage.Name == "" {
			return fail("", fmt.Sprintf("stage with order %d has no name", stage.Order))
		}
		if seenOrders[stage.Order] {
			return fail(stage.Name, fmt.Sprintf("duplicate stage order %d", stage.Order))
		}
		seenOrders[stage.Order] = true
		if stage.Order <= lastOrder {
			return fail(stage.Name, fmt.Sprintf("stage orders must ascend, got %d after %d", stage.Order, lastOrder))
		}
		lastOrder = stage.Order

		if err := v.validateStage(def.Name, stage); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) validateStage(defName string, stage models.WorkflowStage) error {
	fail := func(reason string) error {
		return &ConfigurationError{Definition: defName, Stage: stage.Name, Reason: reason}
	}

	if !stage.ApproverType.IsValid() {
		return fail(fmt.Sprintf("unknown approver type %q", stage.ApproverType))
	}
	switch stage.ApproverType {
	case models.ApproverUser:
		if len(stage.ApproverIDs) == 0 {
			return fail("approver_type=user requires approver_ids")
		}
	case models.ApproverRole:
		if stage.Role == "" {
			return fail("approver_type=role requires a role name")
		}
	case models.ApproverCustom:
		if stage.CustomResolver == "" {
			return fail("approver_type=custom requires a custom_resolver name")
		}
		if !v.strategies.HasCustom(stage.CustomResolver) {
			return fail(fmt.Sprintf("custom approver strategy %q is not registered", stage.CustomResolver))
		}
	}

	if !stage.Policy.IsValid() {
		return fail(fmt.Sprintf("unknown approval policy %q", stage.Policy))
	}
	if stage.SLADuration <= 0 {
		return fail("sla_duration must be positive")
	}
	if stage.EscalationEnabled && stage.EscalationTarget == "" {
		return fail("escalation_enabled requires an escalation_target")
	}
	if stage.EscalateAfter < 0 {
		return fail("escalation_after_duration must not be negative")
	}

	for _, c := range stage.Conditions {
		if c.Field == "" {
			return fail("condition field is required")
		}
		if !c.Operator.IsValid() {
			return fail(fmt.Sprintf("unknown condition operator %q", c.Operator))
		}
	}

	for _, act := range append(append([]models.WorkflowAction{}, stage.OnApprove...), stage.OnReject...) {
		if !act.Kind.IsValid() {
			return fail(fmt.Sprintf("unknown action kind %q", act.Kind))
		}
		if act.Kind == models.ActionNotify && act.Target == "" {
			return fail("notify action requires a target")
		}
		if act.Kind == models.ActionCustom {
			if act.Handler == "" {
				return fail("custom action requires a handler name")
			}
			if !v.handlers.HasHandler(act.Handler) {
				return fail(fmt.Sprintf("custom action handler %q is not registered", act.Handler))
			}
		}
		if act.Delay < 0 {
			return fail("action delay must not be negative")
		}
	}
	return nil
}
