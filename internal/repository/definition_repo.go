// Package repository persists workflow definitions, instances and the
// audit log in SQLite. Definitions and instance stage state are stored
// as JSON documents; columns exist only for what queries filter on.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/openhrm/workflow-engine/internal/engine"
	"github.com/openhrm/workflow-engine/internal/models"
)

// DefinitionRepository handles workflow definition database operations
type DefinitionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDefinitionRepository creates a new definition repository
func NewDefinitionRepository(db *sql.DB, logger *zap.Logger) *DefinitionRepository {
	return &DefinitionRepository{
		db:     db,
		logger: logger,
	}
}

// Save stores a validated definition
func (r *DefinitionRepository) Save(ctx context.Context, def *models.WorkflowDefinition) error {
	body, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("failed to marshal definition: %w", err)
	}

	query := `
		INSERT INTO workflow_definitions (id, name, workflow_type, body, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			workflow_type = excluded.workflow_type,
			body = excluded.body
	`
	if _, err := r.db.ExecContext(ctx, query,
		def.ID, def.Name, def.WorkflowType, string(body), def.CreatedAt,
	); err != nil {
		r.logger.Error("Failed to save definition", zap.String("id", def.ID), zap.Error(err))
		return fmt.Errorf("failed to save definition: %w", err)
	}
	return nil
}

// Get retrieves a definition by ID
func (r *DefinitionRepository) Get(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	query := `SELECT body FROM workflow_definitions WHERE id = ?`

	var body string
	err := r.db.QueryRowContext(ctx, query, id).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", engine.ErrDefinitionNotFound, id)
	}
	if err != nil {
		r.logger.Error("Failed to get definition", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get definition: %w", err)
	}

	var def models.WorkflowDefinition
	if err := json.Unmarshal([]byte(body), &def); err != nil {
		return nil, fmt.Errorf("failed to unmarshal definition %s: %w", id, err)
	}
	return &def, nil
}

// List returns all stored definitions ordered by name
func (r *DefinitionRepository) List(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	query := `SELECT body FROM workflow_definitions ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list definitions: %w", err)
	}
	defer rows.Close()

	var defs []*models.WorkflowDefinition
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan definition: %w", err)
		}
		var def models.WorkflowDefinition
		if err := json.Unmarshal([]byte(body), &def); err != nil {
			return nil, fmt.Errorf("failed to unmarshal definition: %w", err)
		}
		defs = append(defs, &def)
	}
	return defs, rows.Err()
}
