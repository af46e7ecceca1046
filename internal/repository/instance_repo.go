package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/openhrm/workflow-engine/internal/engine"
	"github.com/openhrm/workflow-engine/internal/models"
)

// InstanceRepository handles workflow instance database operations
type InstanceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInstanceRepository creates a new instance repository
func NewInstanceRepository(db *sql.DB, logger *zap.Logger) *InstanceRepository {
	return &InstanceRepository{
		db:     db,
		logger: logger,
	}
}

// Save upserts the full instance state. The engine always writes the
// whole instance under its per-instance lock, so a blind upsert is
// safe.
func (r *InstanceRepository) Save(ctx context.Context, inst *models.WorkflowInstance) error {
	attrs, err := json.Marshal(inst.Attributes)
	if err != nil {
		return fmt.Errorf("failed to marshal attributes: %w", err)
	}
	applicable, err := json.Marshal(inst.Applicable)
	if err != nil {
		return fmt.Errorf("failed to marshal applicable stages: %w", err)
	}
	stages, err := json.Marshal(inst.Stages)
	if err != nil {
		return fmt.Errorf("failed to marshal stage executions: %w", err)
	}

	var terminalAt sql.NullTime
	if inst.TerminalAt != nil {
		terminalAt = sql.NullTime{Time: *inst.TerminalAt, Valid: true}
	}

	query := `
		INSERT INTO workflow_instances (
			id, definition_id, initiator, attributes, priority, status,
			parallel, applicable, current_stage_index, stages, created_at, terminal_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			current_stage_index = excluded.current_stage_index,
			stages = excluded.stages,
			terminal_at = excluded.terminal_at
	`
	if _, err := r.db.ExecContext(ctx, query,
		inst.ID, inst.DefinitionID, inst.Initiator, string(attrs), inst.Priority,
		inst.Status.String(), inst.Parallel, string(applicable),
		inst.CurrentStageIndex, string(stages), inst.CreatedAt, terminalAt,
	); err != nil {
		r.logger.Error("Failed to save instance", zap.String("id", inst.ID), zap.Error(err))
		return fmt.Errorf("failed to save instance: %w", err)
	}
	return nil
}

// Load retrieves an instance with its definition resolved
func (r *InstanceRepository) Load(ctx context.Context, id string) (*models.WorkflowInstance, error) {
	query := `
		SELECT i.id, i.definition_id, i.initiator, i.attributes, i.priority,
			i.status, i.parallel, i.applicable, i.current_stage_index,
			i.stages, i.created_at, i.terminal_at, d.body
		FROM workflow_instances i
		JOIN workflow_definitions d ON d.id = i.definition_id
		WHERE i.id = ?
	`
	inst, err := r.scanInstance(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", engine.ErrInstanceNotFound, id)
	}
	if err != nil {
		r.logger.Error("Failed to load instance", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return inst, nil
}

// ListOpen returns all open instances matching the filter, oldest first
func (r *InstanceRepository) ListOpen(ctx context.Context, filter engine.ListFilter) ([]*models.WorkflowInstance, error) {
	open := models.OpenStatuses()
	placeholders := make([]string, len(open))
	args := make([]interface{}, 0, len(open)+3)
	for i, s := range open {
		placeholders[i] = "?"
		args = append(args, s.String())
	}

	var b strings.Builder
	b.WriteString(`
		SELECT i.id, i.definition_id, i.initiator, i.attributes, i.priority,
			i.status, i.parallel, i.applicable, i.current_stage_index,
			i.stages, i.created_at, i.terminal_at, d.body
		FROM workflow_instances i
		JOIN workflow_definitions d ON d.id = i.definition_id
		WHERE i.status IN (` + strings.Join(placeholders, ", ") + `)`)

	if filter.DefinitionID != "" {
		b.WriteString(" AND i.definition_id = ?")
		args = append(args, filter.DefinitionID)
	}
	if filter.Status != "" {
		b.WriteString(" AND i.status = ?")
		args = append(args, filter.Status.String())
	}
	if filter.MinPriority > 0 {
		b.WriteString(" AND i.priority >= ?")
		args = append(args, filter.MinPriority)
	}
	b.WriteString(" ORDER BY i.created_at ASC")

	rows, err := r.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list open instances: %w", err)
	}
	defer rows.Close()

	var instances []*models.WorkflowInstance
	for rows.Next() {
		inst, err := r.scanInstance(rows)
		if err != nil {
			return nil, err
		}
		instances = append(instances, inst)
	}
	return instances, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *InstanceRepository) scanInstance(row rowScanner) (*models.WorkflowInstance, error) {
	var (
		inst       models.WorkflowInstance
		status     string
		attrs      string
		applicable string
		stages     string
		terminalAt sql.NullTime
		defBody    string
	)
	err := row.Scan(
		&inst.ID, &inst.DefinitionID, &inst.Initiator, &attrs, &inst.Priority,
		&status, &inst.Parallel, &applicable, &inst.CurrentStageIndex,
		&stages, &inst.CreatedAt, &terminalAt, &defBody,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan instance: %w", err)
	}

	inst.Status = models.InstanceStatus(status)
	if terminalAt.Valid {
		t := terminalAt.Time.UTC()
		inst.TerminalAt = &t
	}
	inst.CreatedAt = inst.CreatedAt.UTC()

	if err := json.Unmarshal([]byte(attrs), &inst.Attributes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal attributes for %s: %w", inst.ID, err)
	}
	if err := json.Unmarshal([]byte(applicable), &inst.Applicable); err != nil {
		return nil, fmt.Errorf("failed to unmarshal applicable stages for %s: %w", inst.ID, err)
	}
	if err := json.Unmarshal([]byte(stages), &inst.Stages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stage executions for %s: %w", inst.ID, err)
	}

	var def models.WorkflowDefinition
	if err := json.Unmarshal([]byte(defBody), &def); err != nil {
		return nil, fmt.Errorf("failed to unmarshal definition for %s: %w", inst.ID, err)
	}
	inst.Definition = &def

	normalizeStages(inst.Stages)
	return &inst, nil
}

// normalizeStages pins deserialized timestamps to UTC so SLA math does
// not depend on the driver's location handling, and restores the empty
// vote maps that omitempty drops on serialization
func normalizeStages(stages []*models.StageExecution) {
	for _, s := range stages {
		if s.Votes == nil {
			s.Votes = make(map[string]models.Decision)
		}
		s.StartedAt = s.StartedAt.UTC()
		if s.CompletedAt != nil {
			t := s.CompletedAt.UTC()
			s.CompletedAt = &t
		}
		if s.EscalatedAt != nil {
			t := s.EscalatedAt.UTC()
			s.EscalatedAt = &t
		}
	}
}
