// Package identity resolves users, managers and role memberships from
// a static JSON directory file. It backs deployments without an HR
// system integration; anything richer implements
// approver.IdentityResolver directly.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/openhrm/workflow-engine/internal/approver"
)

// userRecord is one directory entry
type userRecord struct {
	Manager        string `json:"manager,omitempty"`
	DepartmentHead string `json:"department_head,omitempty"`
}

// directory is the on-disk layout
type directory struct {
	Users map[string]userRecord `json:"users"`
	// Roles maps role name to members. OrgRoles scopes memberships to
	// an organization; it wins over Roles when the organization is
	// present.
	Roles    map[string][]string            `json:"roles"`
	OrgRoles map[string]map[string][]string `json:"org_roles,omitempty"`
}

// StaticDirectory is a file-backed identity resolver
type StaticDirectory struct {
	mu     sync.RWMutex
	dir    directory
	path   string
	logger *zap.Logger
}

// LoadDirectory reads and parses the directory file
func LoadDirectory(path string, logger *zap.Logger) (*StaticDirectory, error) {
	d := &StaticDirectory{path: path, logger: logger}
	if err := d.Reload(); err != nil {
		return nil, err
	}
	return d, nil
}

// Reload re-reads the directory file, replacing the in-memory copy
// atomically
func (d *StaticDirectory) Reload() error {
	data, err := os.ReadFile(d.path)
	if err != nil {
		return fmt.Errorf("failed to read identity directory: %w", err)
	}
	var dir directory
	if err := json.Unmarshal(data, &dir); err != nil {
		return fmt.Errorf("failed to parse identity directory %s: %w", d.path, err)
	}

	d.mu.Lock()
	d.dir = dir
	d.mu.Unlock()

	d.logger.Info("Identity directory loaded",
		zap.String("path", d.path),
		zap.Int("users", len(dir.Users)),
		zap.Int("roles", len(dir.Roles)))
	return nil
}

// ManagerOf returns the user's direct manager
func (d *StaticDirectory) ManagerOf(ctx context.Context, userID string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rec, ok := d.dir.Users[userID]
	if !ok || rec.Manager == "" {
		return "", fmt.Errorf("manager of %s: %w", userID, approver.ErrNotFound)
	}
	return rec.Manager, nil
}

// HeadOfDepartment returns the head of the user's department
func (d *StaticDirectory) HeadOfDepartment(ctx context.Context, userID string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rec, ok := d.dir.Users[userID]
	if !ok || rec.DepartmentHead == "" {
		return "", fmt.Errorf("department head of %s: %w", userID, approver.ErrNotFound)
	}
	return rec.DepartmentHead, nil
}

// MembersOfRole returns the members holding a role, preferring the
// organization-scoped membership when one exists
func (d *StaticDirectory) MembersOfRole(ctx context.Context, role, org string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if org != "" {
		if scoped, ok := d.dir.OrgRoles[org]; ok {
			if members, ok := scoped[role]; ok && len(members) > 0 {
				return append([]string{}, members...), nil
			}
		}
	}
	members, ok := d.dir.Roles[role]
	if !ok || len(members) == 0 {
		return nil, fmt.Errorf("role %s: %w", role, approver.ErrNotFound)
	}
	return append([]string{}, members...), nil
}
