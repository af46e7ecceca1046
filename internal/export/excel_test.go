package export

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openhrm/workflow-engine/internal/engine"
	"github.com/openhrm/workflow-engine/internal/models"
)

func sampleSnapshot() *engine.Snapshot {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	completed := created.Add(2 * time.Hour)
	closed := completed
	return &engine.Snapshot{
		Instance: &models.WorkflowInstance{
			ID:           "inst-1",
			DefinitionID: "def-1",
			Initiator:    "emp-1",
			Status:       models.StatusApproved,
			Attributes: models.Attributes{
				"amount": models.Number(1200),
			},
			Stages: []*models.StageExecution{
				{
					StageName:   "manager review",
					StageOrder:  1,
					Approvers:   []string{"u1", "u2"},
					Outcome:     models.StageApproved,
					Actor:       "u1",
					StartedAt:   created,
					CompletedAt: &completed,
				},
			},
			CreatedAt:  created,
			TerminalAt: &closed,
			Definition: &models.WorkflowDefinition{ID: "def-1", Name: "expense approval"},
		},
		Audit: []*models.AuditLogEntry{
			{ID: "a-1", InstanceID: "inst-1", Action: models.AuditCreated, Actor: "emp-1", Details: `{"definition":"expense approval"}`, Timestamp: created},
			{ID: "a-2", InstanceID: "inst-1", Action: models.AuditApproved, Actor: "u1", Details: `{"stage_order":1}`, Timestamp: completed},
		},
	}
}

func TestBuild_SheetsAndCells(t *testing.T) {
	b := NewReportBuilder(zap.NewNop())
	f, err := b.Build(sampleSnapshot())
	require.NoError(t, err)
	defer f.Close()

	assert.ElementsMatch(t, []string{sheetSummary, sheetStages, sheetAudit}, f.GetSheetList())

	got, err := f.GetCellValue(sheetSummary, "B1")
	require.NoError(t, err)
	assert.Equal(t, "inst-1", got)

	got, err = f.GetCellValue(sheetSummary, "B2")
	require.NoError(t, err)
	assert.Equal(t, "expense approval", got)

	got, err = f.GetCellValue(sheetSummary, "B4")
	require.NoError(t, err)
	assert.Equal(t, "APPROVED", got)

	// Stage row under the header.
	got, err = f.GetCellValue(sheetStages, "B2")
	require.NoError(t, err)
	assert.Equal(t, "manager review", got)

	got, err = f.GetCellValue(sheetStages, "C2")
	require.NoError(t, err)
	assert.Equal(t, "u1, u2", got)

	got, err = f.GetCellValue(sheetStages, "D2")
	require.NoError(t, err)
	assert.Equal(t, "approved", got)

	// Audit rows in order.
	got, err = f.GetCellValue(sheetAudit, "B2")
	require.NoError(t, err)
	assert.Equal(t, "created", got)

	got, err = f.GetCellValue(sheetAudit, "B3")
	require.NoError(t, err)
	assert.Equal(t, "approved", got)
}

func TestRender_ProducesWorkbook(t *testing.T) {
	b := NewReportBuilder(zap.NewNop())
	data, err := b.Render(sampleSnapshot())
	require.NoError(t, err)
	assert.NotEmpty(t, data)
	// XLSX files are zip archives.
	assert.Equal(t, byte('P'), data[0])
	assert.Equal(t, byte('K'), data[1])
}
