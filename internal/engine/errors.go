package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrInstanceNotFound is returned when an instance id resolves to nothing
	ErrInstanceNotFound = errors.New("workflow instance not found")

	// ErrDefinitionNotFound is returned when a definition id resolves to nothing
	ErrDefinitionNotFound = errors.New("workflow definition not found")

	// ErrInstanceClosed is returned when a transition is attempted on a
	// terminal instance
	ErrInstanceClosed = errors.New("workflow instance is closed")

	// ErrStageClosed is returned when a transition targets a stage that
	// already has an outcome
	ErrStageClosed = errors.New("workflow stage is closed")

	// ErrEscalationDisabled is returned when escalation is requested on a
	// stage that does not permit it
	ErrEscalationDisabled = errors.New("escalation is not enabled for this stage")

	// ErrInvalidDecision is returned for decisions other than approve/reject
	ErrInvalidDecision = errors.New("invalid decision")
)

// NoApplicableStageError is returned when no stage of the definition
// applies to the request; the instance is not created.
type NoApplicableStageError struct {
	Definition string
}

func (e *NoApplicableStageError) Error() string {
	return fmt.Sprintf("no stage of definition %q applies to the request", e.Definition)
}

// UnauthorizedActorError is returned when an actor outside the current
// approver set attempts a decision; no state changes.
type UnauthorizedActorError struct {
	InstanceID string
	Actor      string
}

func (e *UnauthorizedActorError) Error() string {
	return fmt.Sprintf("actor %q is not an approver of instance %s", e.Actor, e.InstanceID)
}

// AlreadyEscalatedError is the idempotency guard on escalation: a stage
// escalated within the current SLA window is not escalated again until
// the fresh window itself breaches.
type AlreadyEscalatedError struct {
	InstanceID string
	Stage      string
}

func (e *AlreadyEscalatedError) Error() string {
	return fmt.Sprintf("stage %q of instance %s was already escalated within the current window", e.Stage, e.InstanceID)
}
