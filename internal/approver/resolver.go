// Package approver resolves the concrete identity set that may act on a
// workflow stage. Resolution happens once when a stage becomes current
// and the result is cached on the instance, so later hierarchy changes
// never retroactively alter an in-flight stage's approver set.
package approver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/openhrm/workflow-engine/internal/models"
)

// ErrNotFound is returned by IdentityResolver implementations when a
// lookup has no answer on record
var ErrNotFound = errors.New("identity not found")

// IdentityResolver is the external identity/org-hierarchy lookup the
// resolver depends on
type IdentityResolver interface {
	ManagerOf(ctx context.Context, userID string) (string, error)
	HeadOfDepartment(ctx context.Context, userID string) (string, error)
	MembersOfRole(ctx context.Context, role, org string) ([]string, error)
}

// CustomFunc is a pluggable resolution strategy for approver_type=custom
type CustomFunc func(ctx context.Context, stage models.WorkflowStage, attrs models.Attributes, initiator string) ([]string, error)

// ResolutionError reports a failed identity lookup. It is surfaced to
// the caller; a stage whose approvers cannot be resolved is never
// silently skipped.
type ResolutionError struct {
	Stage  string
	Reason string
	Err    error
}

func (e *ResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot resolve approvers for stage %q: %s: %v", e.Stage, e.Reason, e.Err)
	}
	return fmt.Sprintf("cannot resolve approvers for stage %q: %s", e.Stage, e.Reason)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// Resolver resolves stage approver sets through the external identity
// lookup and the registered custom strategies
type Resolver struct {
	identities IdentityResolver
	logger     *zap.Logger

	mu     sync.RWMutex
	custom map[string]CustomFunc
}

// NewResolver creates a new approver resolver
func NewResolver(identities IdentityResolver, logger *zap.Logger) *Resolver {
	return &Resolver{
		identities: identities,
		logger:     logger,
		custom:     make(map[string]CustomFunc),
	}
}

// RegisterCustom registers a named custom resolution strategy
func (r *Resolver) RegisterCustom(name string, fn CustomFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.custom[name] = fn
}

// HasCustom reports whether a custom strategy is registered under the
// name. The definition validator uses this at load time.
func (r *Resolver) HasCustom(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.custom[name]
	return ok
}

// Resolve returns the identity set that may act on the stage for a
// request submitted by the initiator
func (r *Resolver) Resolve(ctx context.Context, stage models.WorkflowStage, attrs models.Attributes, initiator string) ([]string, error) {
	switch stage.ApproverType {
	case models.ApproverUser:
		if len(stage.ApproverIDs) == 0 {
			return nil, &ResolutionError{Stage: stage.Name, Reason: "stage has no approver ids"}
		}
		return dedupe(stage.ApproverIDs), nil

	case models.ApproverManager:
		manager, err := r.identities.ManagerOf(ctx, initiator)
		if err != nil {
			return nil, &ResolutionError{Stage: stage.Name, Reason: fmt.Sprintf("no manager on record for %s", initiator), Err: err}
		}
		return []string{manager}, nil

	case models.ApproverDepartmentHead:
		head, err := r.identities.HeadOfDepartment(ctx, initiator)
		if err != nil {
			return nil, &ResolutionError{Stage: stage.Name, Reason: fmt.Sprintf("no department head on record for %s", initiator), Err: err}
		}
		return []string{head}, nil

	case models.ApproverRole:
		members, err := r.identities.MembersOfRole(ctx, stage.Role, organization(attrs))
		if err != nil {
			return nil, &ResolutionError{Stage: stage.Name, Reason: fmt.Sprintf("role lookup failed for %q", stage.Role), Err: err}
		}
		if len(members) == 0 {
			return nil, &ResolutionError{Stage: stage.Name, Reason: fmt.Sprintf("role %q has no active members", stage.Role)}
		}
		return dedupe(members), nil

	case models.ApproverCustom:
		r.mu.RLock()
		fn, ok := r.custom[stage.CustomResolver]
		r.mu.RUnlock()
		if !ok {
			return nil, &ResolutionError{Stage: stage.Name, Reason: fmt.Sprintf("custom strategy %q is not registered", stage.CustomResolver)}
		}
		approvers, err := fn(ctx, stage, attrs, initiator)
		if err != nil {
			return nil, &ResolutionError{Stage: stage.Name, Reason: "custom strategy failed", Err: err}
		}
		if len(approvers) == 0 {
			return nil, &ResolutionError{Stage: stage.Name, Reason: fmt.Sprintf("custom strategy %q resolved no approvers", stage.CustomResolver)}
		}
		return dedupe(approvers), nil
	}

	return nil, &ResolutionError{Stage: stage.Name, Reason: fmt.Sprintf("unknown approver type %q", stage.ApproverType)}
}

// ResolveTarget resolves an escalation target. Targets prefixed with
// "role:" resolve to the members of that role; anything else is taken
// as a concrete identity.
func (r *Resolver) ResolveTarget(ctx context.Context, stage models.WorkflowStage, target string, attrs models.Attributes) ([]string, error) {
	if role, ok := strings.CutPrefix(target, "role:"); ok {
		members, err := r.identities.MembersOfRole(ctx, role, organization(attrs))
		if err != nil {
			return nil, &ResolutionError{Stage: stage.Name, Reason: fmt.Sprintf("escalation role lookup failed for %q", role), Err: err}
		}
		if len(members) == 0 {
			return nil, &ResolutionError{Stage: stage.Name, Reason: fmt.Sprintf("escalation role %q has no active members", role)}
		}
		return dedupe(members), nil
	}
	if target == "" {
		return nil, &ResolutionError{Stage: stage.Name, Reason: "empty escalation target"}
	}
	return []string{target}, nil
}

func organization(attrs models.Attributes) string {
	if org, ok := attrs["organization"]; ok {
		return org.AsString()
	}
	return ""
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
