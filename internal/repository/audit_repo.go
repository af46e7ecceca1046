package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/openhrm/workflow-engine/internal/models"
)

// AuditRepository handles audit log database operations. The log is
// append-only; nothing updates or deletes rows.
type AuditRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sql.DB, logger *zap.Logger) *AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// Append stores one audit log entry
func (r *AuditRepository) Append(ctx context.Context, entry *models.AuditLogEntry) error {
	query := `
		INSERT INTO audit_log (id, instance_id, action, actor, details, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	if _, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.InstanceID, string(entry.Action), entry.Actor,
		entry.Details, entry.Timestamp,
	); err != nil {
		r.logger.Error("Failed to append audit entry",
			zap.String("instance_id", entry.InstanceID),
			zap.String("action", string(entry.Action)),
			zap.Error(err))
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// ListByInstance returns an instance's audit trail in insertion order
func (r *AuditRepository) ListByInstance(ctx context.Context, instanceID string) ([]*models.AuditLogEntry, error) {
	query := `
		SELECT id, instance_id, action, actor, details, timestamp
		FROM audit_log
		WHERE instance_id = ?
		ORDER BY timestamp ASC, rowid ASC
	`
	rows, err := r.db.QueryContext(ctx, query, instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.AuditLogEntry
	for rows.Next() {
		var entry models.AuditLogEntry
		var action string
		if err := rows.Scan(
			&entry.ID, &entry.InstanceID, &action, &entry.Actor,
			&entry.Details, &entry.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entry.Action = models.AuditAction(action)
		entry.Timestamp = entry.Timestamp.UTC()
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}
