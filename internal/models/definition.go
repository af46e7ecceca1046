package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Operator is a condition comparison operator
type Operator string

const (
	OpEq       Operator = "eq"
	OpNe       Operator = "ne"
	OpGt       Operator = "gt"
	OpLt       Operator = "lt"
	OpGte      Operator = "gte"
	OpLte      Operator = "lte"
	OpIn       Operator = "in"
	OpNotIn    Operator = "not_in"
	OpContains Operator = "contains"
)

var validOperators = map[Operator]bool{
	OpEq:       true,
	OpNe:       true,
	OpGt:       true,
	OpLt:       true,
	OpGte:      true,
	OpLte:      true,
	OpIn:       true,
	OpNotIn:    true,
	OpContains: true,
}

// IsValid returns true if the operator is part of the closed operator set
func (o Operator) IsValid() bool {
	return validOperators[o]
}

// ApproverType determines how a stage's approver set is resolved
type ApproverType string

const (
	ApproverUser           ApproverType = "user"
	ApproverRole           ApproverType = "role"
	ApproverManager        ApproverType = "manager"
	ApproverDepartmentHead ApproverType = "department_head"
	ApproverCustom         ApproverType = "custom"
)

var validApproverTypes = map[ApproverType]bool{
	ApproverUser:           true,
	ApproverRole:           true,
	ApproverManager:        true,
	ApproverDepartmentHead: true,
	ApproverCustom:         true,
}

// IsValid returns true if the approver type is known
func (t ApproverType) IsValid() bool {
	return validApproverTypes[t]
}

// ApprovalPolicy is the rule for how many approvers must agree on a stage
type ApprovalPolicy string

const (
	PolicyAny      ApprovalPolicy = "any"
	PolicyAll      ApprovalPolicy = "all"
	PolicyMajority ApprovalPolicy = "majority"
)

var validPolicies = map[ApprovalPolicy]bool{
	PolicyAny:      true,
	PolicyAll:      true,
	PolicyMajority: true,
}

// IsValid returns true if the policy is known
func (p ApprovalPolicy) IsValid() bool {
	return validPolicies[p]
}

// ActionKind identifies the kind of a stage outcome action
type ActionKind string

const (
	ActionNotify   ActionKind = "notify"
	ActionEscalate ActionKind = "escalate"
	ActionCustom   ActionKind = "custom"
)

var validActionKinds = map[ActionKind]bool{
	ActionNotify:   true,
	ActionEscalate: true,
	ActionCustom:   true,
}

// IsValid returns true if the action kind is known
func (k ActionKind) IsValid() bool {
	return validActionKinds[k]
}

// Duration wraps time.Duration so definitions can carry human-readable
// durations ("24h", "30m") in their JSON form.
type Duration time.Duration

// Std returns the wrapped time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// MarshalJSON encodes the duration in its string form
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON accepts either a duration string or a number of nanoseconds
func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(t)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", t, err)
		}
		*d = Duration(parsed)
	case float64:
		*d = Duration(time.Duration(t))
	default:
		return fmt.Errorf("invalid duration value: %v", raw)
	}
	return nil
}

// WorkflowCondition is one predicate a stage evaluates against the
// request attribute map. All of a stage's conditions must hold for
// the stage to apply.
type WorkflowCondition struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    Value    `json:"value"`
}

// WorkflowAction is a side effect attached to a stage outcome
type WorkflowAction struct {
	Kind       ActionKind        `json:"kind"`
	Target     string            `json:"target"`
	Handler    string            `json:"handler,omitempty"` // custom handler name, kind=custom only
	Parameters map[string]string `json:"parameters,omitempty"`
	Delay      Duration          `json:"delay,omitempty"`
}

// WorkflowStage is one ordered step of a workflow definition
type WorkflowStage struct {
	Name              string              `json:"name"`
	Order             int                 `json:"order"`
	ApproverType      ApproverType        `json:"approver_type"`
	ApproverIDs       []string            `json:"approver_ids,omitempty"`
	Role              string              `json:"role,omitempty"`            // approver_type=role only
	CustomResolver    string              `json:"custom_resolver,omitempty"` // approver_type=custom only
	Policy            ApprovalPolicy      `json:"approval_policy"`
	SLADuration       Duration            `json:"sla_duration"`
	EscalationEnabled bool                `json:"escalation_enabled"`
	EscalateAfter     Duration            `json:"escalation_after_duration,omitempty"`
	EscalationTarget  string              `json:"escalation_target,omitempty"`
	Conditions        []WorkflowCondition `json:"conditions,omitempty"`
	OnApprove         []WorkflowAction    `json:"actions_on_approve,omitempty"`
	OnReject          []WorkflowAction    `json:"actions_on_reject,omitempty"`
}

// EscalationWindow is the elapsed time after which an open stage is
// reassigned to its escalation target. It defaults to the stage SLA
// when no explicit escalation delay is configured.
func (s WorkflowStage) EscalationWindow() time.Duration {
	if s.EscalateAfter > 0 {
		return s.EscalateAfter.Std()
	}
	return s.SLADuration.Std()
}

// WorkflowDefinition is an immutable workflow template. New versions are
// new definitions; an activated definition is never mutated.
type WorkflowDefinition struct {
	ID                    string          `json:"id"`
	Name                  string          `json:"name"`
	WorkflowType          string          `json:"workflow_type"`
	Stages                []WorkflowStage `json:"stages"`
	AllowParallelApproval bool            `json:"allow_parallel_approval"`
	AutoCancelAfter       Duration        `json:"auto_cancel_after,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
}
