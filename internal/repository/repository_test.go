package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openhrm/workflow-engine/internal/engine"
	"github.com/openhrm/workflow-engine/internal/models"
	"github.com/openhrm/workflow-engine/pkg/database"
)

func setupDB(t *testing.T) *database.DB {
	t.Helper()
	logger := zap.NewNop()
	db, err := database.New(database.Config{Path: ":memory:", MaxOpenConns: 1}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.NewMigrator(db, logger).RunMigrations())
	return db
}

func sampleDefinition() *models.WorkflowDefinition {
	return &models.WorkflowDefinition{
		ID:           "def-1",
		Name:         "expense approval",
		WorkflowType: "expense",
		Stages: []models.WorkflowStage{
			{
				Name:              "manager review",
				Order:             1,
				ApproverType:      models.ApproverUser,
				ApproverIDs:       []string{"u1"},
				Policy:            models.PolicyAny,
				SLADuration:       models.Duration(24 * time.Hour),
				EscalationEnabled: true,
				EscalationTarget:  "u2",
			},
		},
		CreatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestDefinitionRepository_RoundTrip(t *testing.T) {
	db := setupDB(t)
	logger := zap.NewNop()
	repo := NewDefinitionRepository(db.DB, logger)
	ctx := context.Background()

	def := sampleDefinition()
	require.NoError(t, repo.Save(ctx, def))

	got, err := repo.Get(ctx, "def-1")
	require.NoError(t, err)
	assert.Equal(t, def.Name, got.Name)
	require.Len(t, got.Stages, 1)
	assert.Equal(t, models.Duration(24*time.Hour), got.Stages[0].SLADuration)
	assert.True(t, got.Stages[0].EscalationEnabled)

	// Upsert replaces the body.
	def.Name = "expense approval v2"
	require.NoError(t, repo.Save(ctx, def))
	got, err = repo.Get(ctx, "def-1")
	require.NoError(t, err)
	assert.Equal(t, "expense approval v2", got.Name)

	defs, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, defs, 1)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, engine.ErrDefinitionNotFound)
}

func TestInstanceRepository_RoundTrip(t *testing.T) {
	db := setupDB(t)
	logger := zap.NewNop()
	defRepo := NewDefinitionRepository(db.DB, logger)
	instRepo := NewInstanceRepository(db.DB, logger)
	ctx := context.Background()

	def := sampleDefinition()
	require.NoError(t, defRepo.Save(ctx, def))

	started := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	inst := &models.WorkflowInstance{
		ID:           "inst-1",
		DefinitionID: "def-1",
		Initiator:    "emp-1",
		Attributes: models.Attributes{
			"amount": models.Number(1200),
			"urgent": models.Boolean(true),
		},
		Priority:   3,
		Status:     models.StatusPending,
		Applicable: def.Stages,
		Stages: []*models.StageExecution{
			{
				StageName:  "manager review",
				StageOrder: 1,
				Approvers:  []string{"u1"},
				Votes:      map[string]models.Decision{},
				StartedAt:  started,
			},
		},
		CreatedAt: started,
	}
	require.NoError(t, instRepo.Save(ctx, inst))

	got, err := instRepo.Load(ctx, "inst-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Equal(t, models.Number(1200), got.Attributes["amount"])
	require.Len(t, got.Stages, 1)
	assert.True(t, got.Stages[0].StartedAt.Equal(started))
	require.NotNil(t, got.Definition)
	assert.Equal(t, "expense approval", got.Definition.Name)
	assert.Nil(t, got.TerminalAt)

	// The empty vote map is dropped on serialization; Load must hand
	// back a writable one.
	require.NotNil(t, got.Stages[0].Votes)

	// Mutate and upsert: votes, status and terminal time survive.
	now := started.Add(time.Hour)
	got.Stages[0].Votes["u1"] = models.DecisionApprove
	got.Stages[0].Outcome = models.StageApproved
	got.Stages[0].CompletedAt = &now
	got.Status = models.StatusApproved
	got.CurrentStageIndex = 1
	got.TerminalAt = &now
	require.NoError(t, instRepo.Save(ctx, got))

	got, err = instRepo.Load(ctx, "inst-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, got.Status)
	assert.Equal(t, 1, got.CurrentStageIndex)
	assert.Equal(t, models.DecisionApprove, got.Stages[0].Votes["u1"])
	require.NotNil(t, got.TerminalAt)
	assert.True(t, got.TerminalAt.Equal(now))

	_, err = instRepo.Load(ctx, "missing")
	assert.ErrorIs(t, err, engine.ErrInstanceNotFound)
}

func TestInstanceRepository_ListOpen(t *testing.T) {
	db := setupDB(t)
	logger := zap.NewNop()
	defRepo := NewDefinitionRepository(db.DB, logger)
	instRepo := NewInstanceRepository(db.DB, logger)
	ctx := context.Background()

	def := sampleDefinition()
	require.NoError(t, defRepo.Save(ctx, def))

	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	mk := func(id string, status models.InstanceStatus, priority int, offset time.Duration) *models.WorkflowInstance {
		return &models.WorkflowInstance{
			ID:           id,
			DefinitionID: "def-1",
			Initiator:    "emp-1",
			Status:       status,
			Priority:     priority,
			Applicable:   def.Stages,
			Stages: []*models.StageExecution{
				{StageName: "manager review", StageOrder: 1, Approvers: []string{"u1"}, StartedAt: base.Add(offset)},
			},
			CreatedAt: base.Add(offset),
		}
	}
	require.NoError(t, instRepo.Save(ctx, mk("inst-a", models.StatusPending, 1, 0)))
	require.NoError(t, instRepo.Save(ctx, mk("inst-b", models.StatusEscalated, 5, time.Minute)))
	require.NoError(t, instRepo.Save(ctx, mk("inst-c", models.StatusApproved, 9, 2*time.Minute)))

	open, err := instRepo.ListOpen(ctx, engine.ListFilter{})
	require.NoError(t, err)
	require.Len(t, open, 2)
	// Oldest first.
	assert.Equal(t, "inst-a", open[0].ID)
	assert.Equal(t, "inst-b", open[1].ID)

	open, err = instRepo.ListOpen(ctx, engine.ListFilter{Status: models.StatusEscalated})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "inst-b", open[0].ID)

	open, err = instRepo.ListOpen(ctx, engine.ListFilter{MinPriority: 2})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "inst-b", open[0].ID)
}

func TestAuditRepository_AppendAndList(t *testing.T) {
	db := setupDB(t)
	logger := zap.NewNop()
	repo := NewAuditRepository(db.DB, logger)
	ctx := context.Background()

	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	entries := []*models.AuditLogEntry{
		{ID: "a-1", InstanceID: "inst-1", Action: models.AuditCreated, Actor: "emp-1", Details: `{"definition":"expense approval"}`, Timestamp: base},
		{ID: "a-2", InstanceID: "inst-1", Action: models.AuditApproved, Actor: "u1", Details: `{"stage_order":1}`, Timestamp: base.Add(time.Hour)},
		{ID: "a-3", InstanceID: "inst-2", Action: models.AuditCreated, Actor: "emp-2", Details: `{}`, Timestamp: base},
	}
	for _, e := range entries {
		require.NoError(t, repo.Append(ctx, e))
	}

	got, err := repo.ListByInstance(ctx, "inst-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, models.AuditCreated, got[0].Action)
	assert.Equal(t, models.AuditApproved, got[1].Action)
	assert.JSONEq(t, `{"stage_order":1}`, got[1].Details)

	got, err = repo.ListByInstance(ctx, "inst-3")
	require.NoError(t, err)
	assert.Empty(t, got)
}
