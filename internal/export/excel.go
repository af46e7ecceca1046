// Package export renders workflow instances into Excel workbooks for
// offline review and archival.
package export

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/openhrm/workflow-engine/internal/engine"
	"github.com/openhrm/workflow-engine/internal/models"
)

const (
	sheetSummary = "Summary"
	sheetStages  = "Stages"
	sheetAudit   = "Audit"
)

// ReportBuilder builds instance report workbooks
type ReportBuilder struct {
	logger *zap.Logger
}

// NewReportBuilder creates a report builder
func NewReportBuilder(logger *zap.Logger) *ReportBuilder {
	return &ReportBuilder{logger: logger}
}

// Render builds the workbook for one instance snapshot and returns the
// encoded file
func (b *ReportBuilder) Render(snap *engine.Snapshot) ([]byte, error) {
	f, err := b.Build(snap)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// Build assembles the workbook: a summary sheet, one row per stage
// execution, and the full audit trail.
func (b *ReportBuilder) Build(snap *engine.Snapshot) (*excelize.File, error) {
	inst := snap.Instance

	f := excelize.NewFile()
	f.SetSheetName(f.GetSheetName(0), sheetSummary)
	if _, err := f.NewSheet(sheetStages); err != nil {
		return nil, fmt.Errorf("failed to create stages sheet: %w", err)
	}
	if _, err := f.NewSheet(sheetAudit); err != nil {
		return nil, fmt.Errorf("failed to create audit sheet: %w", err)
	}

	b.fillSummary(f, inst)
	b.fillStages(f, inst)
	b.fillAudit(f, snap.Audit)

	b.logger.Info("Instance report built",
		zap.String("instance_id", inst.ID),
		zap.Int("stages", len(inst.Stages)),
		zap.Int("audit_entries", len(snap.Audit)))

	return f, nil
}

func (b *ReportBuilder) fillSummary(f *excelize.File, inst *models.WorkflowInstance) {
	definitionName := inst.DefinitionID
	if inst.Definition != nil {
		definitionName = inst.Definition.Name
	}

	rows := [][2]interface{}{
		{"Instance ID", inst.ID},
		{"Workflow", definitionName},
		{"Initiator", inst.Initiator},
		{"Status", inst.Status.String()},
		{"Priority", inst.Priority},
		{"Parallel", inst.Parallel},
		{"Created", inst.CreatedAt.Format(time.RFC3339)},
	}
	if inst.TerminalAt != nil {
		rows = append(rows, [2]interface{}{"Closed", inst.TerminalAt.Format(time.RFC3339)})
	}
	for i, row := range rows {
		b.setCell(f, sheetSummary, fmt.Sprintf("A%d", i+1), row[0])
		b.setCell(f, sheetSummary, fmt.Sprintf("B%d", i+1), row[1])
	}

	// Request attributes below the fixed block
	attrRow := len(rows) + 2
	b.setCell(f, sheetSummary, fmt.Sprintf("A%d", attrRow), "Attributes")
	for name, value := range inst.Attributes {
		attrRow++
		b.setCell(f, sheetSummary, fmt.Sprintf("A%d", attrRow), name)
		b.setCell(f, sheetSummary, fmt.Sprintf("B%d", attrRow), value.AsString())
	}
}

func (b *ReportBuilder) fillStages(f *excelize.File, inst *models.WorkflowInstance) {
	headers := []string{"Order", "Stage", "Approvers", "Outcome", "Decided By", "Started", "Completed", "Escalations"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		b.setCell(f, sheetStages, cell, h)
	}

	for i, exec := range inst.Stages {
		row := i + 2
		outcome := string(exec.Outcome)
		if exec.Open() {
			outcome = "open"
		}
		completed := ""
		if exec.CompletedAt != nil {
			completed = exec.CompletedAt.Format(time.RFC3339)
		}
		values := []interface{}{
			exec.StageOrder,
			exec.StageName,
			strings.Join(exec.Approvers, ", "),
			outcome,
			exec.Actor,
			exec.StartedAt.Format(time.RFC3339),
			completed,
			exec.EscalationCount,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			b.setCell(f, sheetStages, cell, v)
		}
	}
}

func (b *ReportBuilder) fillAudit(f *excelize.File, entries []*models.AuditLogEntry) {
	headers := []string{"Timestamp", "Action", "Actor", "Details"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		b.setCell(f, sheetAudit, cell, h)
	}

	for i, entry := range entries {
		row := i + 2
		values := []interface{}{
			entry.Timestamp.Format(time.RFC3339),
			string(entry.Action),
			entry.Actor,
			compactJSON(entry.Details),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			b.setCell(f, sheetAudit, cell, v)
		}
	}
}

func (b *ReportBuilder) setCell(f *excelize.File, sheet, cell string, value interface{}) {
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		b.logger.Warn("Failed to set cell value",
			zap.String("sheet", sheet),
			zap.String("cell", cell),
			zap.Error(err))
	}
}

func compactJSON(raw string) string {
	var buf strings.Builder
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return raw
	}
	out, err := json.Marshal(v)
	if err != nil {
		return raw
	}
	buf.Write(out)
	return buf.String()
}
