package models

import "time"

// InstanceStatus is the lifecycle status of a workflow instance
type InstanceStatus string

const (
	StatusPending    InstanceStatus = "PENDING"
	StatusInProgress InstanceStatus = "IN_PROGRESS"
	StatusApproved   InstanceStatus = "APPROVED"
	StatusRejected   InstanceStatus = "REJECTED"
	StatusCancelled  InstanceStatus = "CANCELLED"
	StatusEscalated  InstanceStatus = "ESCALATED"
)

var validStatuses = map[InstanceStatus]bool{
	StatusPending:    true,
	StatusInProgress: true,
	StatusApproved:   true,
	StatusRejected:   true,
	StatusCancelled:  true,
	StatusEscalated:  true,
}

var terminalStatuses = map[InstanceStatus]bool{
	StatusApproved:  true,
	StatusRejected:  true,
	StatusCancelled: true,
}

// IsValid returns true if the status is a known instance status
func (s InstanceStatus) IsValid() bool {
	return validStatuses[s]
}

// IsTerminal returns true for statuses with no further transitions
func (s InstanceStatus) IsTerminal() bool {
	return terminalStatuses[s]
}

// IsOpen returns true while the instance is still visible to the
// escalation scheduler
func (s InstanceStatus) IsOpen() bool {
	return validStatuses[s] && !terminalStatuses[s]
}

// String returns the string representation of the status
func (s InstanceStatus) String() string {
	return string(s)
}

// OpenStatuses returns the statuses the escalation scheduler scans for
func OpenStatuses() []InstanceStatus {
	return []InstanceStatus{StatusPending, StatusInProgress, StatusEscalated}
}

// Decision is a single approver's verdict on a stage
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// IsValid returns true if the decision is approve or reject
func (d Decision) IsValid() bool {
	return d == DecisionApprove || d == DecisionReject
}

// StageOutcome is the closing result of a traversed stage
type StageOutcome string

const (
	StageApproved  StageOutcome = "approved"
	StageRejected  StageOutcome = "rejected"
	StageTimedOut  StageOutcome = "timed_out"
	StageCancelled StageOutcome = "cancelled"
)

// StageExecution is the record of one stage actually traversed by an
// instance. Votes and the outcome are the only mutable parts; once an
// outcome is set the record is historical.
type StageExecution struct {
	StageName       string              `json:"stage_name"`
	StageOrder      int                 `json:"stage_order"`
	Approvers       []string            `json:"approvers"`
	Votes           map[string]Decision `json:"votes,omitempty"`
	Outcome         StageOutcome        `json:"outcome,omitempty"`
	Actor           string              `json:"actor,omitempty"` // decisive actor
	StartedAt       time.Time           `json:"started_at"`
	CompletedAt     *time.Time          `json:"completed_at,omitempty"`
	EscalatedAt     *time.Time          `json:"escalated_at,omitempty"`
	EscalationCount int                 `json:"escalation_count,omitempty"`
}

// Open reports whether the stage is still awaiting a decisive outcome
func (e *StageExecution) Open() bool {
	return e.Outcome == ""
}

// HasApprover reports whether the actor belongs to the stage's cached
// approver set
func (e *StageExecution) HasApprover(actor string) bool {
	for _, a := range e.Approvers {
		if a == actor {
			return true
		}
	}
	return false
}

// WorkflowInstance is one in-flight traversal of a workflow definition.
// Only the engine mutates Status, CurrentStageIndex and the stage records,
// always under the instance's lock.
type WorkflowInstance struct {
	ID           string         `json:"instance_id"`
	DefinitionID string         `json:"definition_id"`
	Initiator    string         `json:"initiator"`
	Attributes   Attributes     `json:"request_attributes"`
	Priority     int            `json:"priority"`
	Status       InstanceStatus `json:"status"`
	Parallel     bool           `json:"parallel"`

	// Applicable is the definition's stage list filtered against the
	// request attributes, snapshotted once at creation. Conditions are
	// never re-evaluated for the life of the instance.
	Applicable []WorkflowStage `json:"applicable_stages"`

	// CurrentStageIndex indexes into Applicable in sequential mode. It
	// equals len(Applicable) once the instance is terminal. Unused when
	// Parallel is set.
	CurrentStageIndex int `json:"current_stage_index"`

	// Stages holds one execution record per stage entered. Sequential
	// instances append as they advance; parallel instances open every
	// applicable stage at creation.
	Stages []*StageExecution `json:"stage_executions"`

	CreatedAt  time.Time  `json:"created_at"`
	TerminalAt *time.Time `json:"terminal_at,omitempty"`

	// Definition is resolved by the repository on load; not serialized
	// with the instance.
	Definition *WorkflowDefinition `json:"-"`
}

// CurrentStage returns the open execution record of the current stage in
// sequential mode, nil once the instance is terminal
func (i *WorkflowInstance) CurrentStage() *StageExecution {
	if i.Parallel || i.CurrentStageIndex >= len(i.Stages) {
		return nil
	}
	return i.Stages[i.CurrentStageIndex]
}

// OpenStages returns every stage execution still awaiting an outcome
func (i *WorkflowInstance) OpenStages() []*StageExecution {
	var open []*StageExecution
	for _, e := range i.Stages {
		if e.Open() {
			open = append(open, e)
		}
	}
	return open
}

// StageByOrder returns the execution record for the given definition
// stage order, nil if the stage was never entered
func (i *WorkflowInstance) StageByOrder(order int) *StageExecution {
	for _, e := range i.Stages {
		if e.StageOrder == order {
			return e
		}
	}
	return nil
}

// ApplicableByOrder returns the applicable stage definition for the given
// order, false if the stage does not apply to this instance
func (i *WorkflowInstance) ApplicableByOrder(order int) (WorkflowStage, bool) {
	for _, s := range i.Applicable {
		if s.Order == order {
			return s, true
		}
	}
	return WorkflowStage{}, false
}
