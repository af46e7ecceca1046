// Package lifecycle owns the workflow instance state machine: the closed
// set of triggers and the transition table between instance statuses.
// The engine consults it before every mutation so an instance can never
// take a transition the table does not permit.
package lifecycle

import (
	"errors"
	"fmt"
	"sort"

	"github.com/openhrm/workflow-engine/internal/models"
)

// Trigger is an event that can cause an instance status transition
type Trigger string

const (
	// TriggerVote records a non-decisive vote under an all/majority policy
	TriggerVote Trigger = "VOTE"
	// TriggerAdvance moves a decisively approved instance to its next stage
	TriggerAdvance Trigger = "ADVANCE"
	// TriggerApprove closes the instance after its last stage approved
	TriggerApprove Trigger = "APPROVE"
	// TriggerReject closes the instance on a decisive reject
	TriggerReject Trigger = "REJECT"
	// TriggerEscalate reassigns the current stage to its escalation target
	TriggerEscalate Trigger = "ESCALATE"
	// TriggerCancel closes the instance on initiator or system request
	TriggerCancel Trigger = "CANCEL"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}

var (
	// ErrInvalidTransition is returned when a trigger is not permitted in
	// the current status
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidState is returned when a machine is built from an unknown
	// or terminal-corrupted status
	ErrInvalidState = errors.New("invalid instance status")
)

// transitions is the full transition table. Terminal statuses have no
// entries: nothing moves an instance out of APPROVED, REJECTED or
// CANCELLED.
var transitions = map[models.InstanceStatus]map[Trigger]models.InstanceStatus{
	models.StatusPending: {
		TriggerVote:     models.StatusInProgress,
		TriggerAdvance:  models.StatusPending,
		TriggerApprove:  models.StatusApproved,
		TriggerReject:   models.StatusRejected,
		TriggerEscalate: models.StatusEscalated,
		TriggerCancel:   models.StatusCancelled,
	},
	models.StatusInProgress: {
		TriggerVote:     models.StatusInProgress,
		TriggerAdvance:  models.StatusPending,
		TriggerApprove:  models.StatusApproved,
		TriggerReject:   models.StatusRejected,
		TriggerEscalate: models.StatusEscalated,
		TriggerCancel:   models.StatusCancelled,
	},
	// An escalated stage remains open under its new approver set with an
	// otherwise identical lifecycle. A repeat escalation is permitted by
	// the table; the engine guards it with the SLA-window idempotency
	// check.
	models.StatusEscalated: {
		TriggerVote:     models.StatusInProgress,
		TriggerAdvance:  models.StatusPending,
		TriggerApprove:  models.StatusApproved,
		TriggerReject:   models.StatusRejected,
		TriggerEscalate: models.StatusEscalated,
		TriggerCancel:   models.StatusCancelled,
	},
}

// Machine tracks one instance's status and validates transitions
type Machine struct {
	state models.InstanceStatus
}

// New creates a machine positioned at the given status
func New(state models.InstanceStatus) (*Machine, error) {
	if !state.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidState, state)
	}
	return &Machine{state: state}, nil
}

// State returns the current status
func (m *Machine) State() models.InstanceStatus {
	return m.state
}

// CanFire returns true if the trigger is permitted in the current status
func (m *Machine) CanFire(trigger Trigger) bool {
	_, ok := transitions[m.state][trigger]
	return ok
}

// Fire executes the trigger, moving the machine to the new status
func (m *Machine) Fire(trigger Trigger) error {
	next, ok := transitions[m.state][trigger]
	if !ok {
		return fmt.Errorf("%w: cannot fire %s from %s", ErrInvalidTransition, trigger, m.state)
	}
	m.state = next
	return nil
}

// Permitted returns the triggers that can fire in the current status,
// in stable order
func (m *Machine) Permitted() []Trigger {
	row := transitions[m.state]
	out := make([]Trigger, 0, len(row))
	for t := range row {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
