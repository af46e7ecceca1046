package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openhrm/workflow-engine/internal/approver"
	"github.com/openhrm/workflow-engine/internal/definition"
	"github.com/openhrm/workflow-engine/internal/engine"
	"github.com/openhrm/workflow-engine/internal/lifecycle"
	"github.com/openhrm/workflow-engine/internal/models"
)

// WorkflowService is the engine surface the API depends on
type WorkflowService interface {
	CreateInstance(ctx context.Context, definitionID, initiator string, attrs models.Attributes, priority int) (*models.WorkflowInstance, error)
	Act(ctx context.Context, instanceID, actor string, decision models.Decision, comment string) (*models.WorkflowInstance, error)
	Cancel(ctx context.Context, instanceID, actor, reason string) error
	GetInstance(ctx context.Context, instanceID string) (*engine.Snapshot, error)
	ListOpenInstances(ctx context.Context, filter engine.ListFilter) ([]*engine.Snapshot, error)
}

// DefinitionStore persists validated definitions
type DefinitionStore interface {
	Save(ctx context.Context, def *models.WorkflowDefinition) error
	List(ctx context.Context) ([]*models.WorkflowDefinition, error)
}

// Exporter renders an instance snapshot into a workbook
type Exporter interface {
	Render(snap *engine.Snapshot) ([]byte, error)
}

// Handlers contains all HTTP request handlers
type Handlers struct {
	workflows   WorkflowService
	definitions DefinitionStore
	validator   *definition.Validator
	exporter    Exporter
	logger      *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	workflows WorkflowService,
	definitions DefinitionStore,
	validator *definition.Validator,
	exporter Exporter,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		workflows:   workflows,
		definitions: definitions,
		validator:   validator,
		exporter:    exporter,
		logger:      logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// CreateInstanceRequest is the body of POST /api/instances
type CreateInstanceRequest struct {
	DefinitionID string            `json:"definition_id" binding:"required"`
	Initiator    string            `json:"initiator" binding:"required"`
	Attributes   models.Attributes `json:"attributes"`
	Priority     int               `json:"priority"`
}

// ActionRequest is the body of POST /api/instances/:id/actions
type ActionRequest struct {
	Actor    string `json:"actor" binding:"required"`
	Decision string `json:"decision" binding:"required"`
	Comment  string `json:"comment"`
}

// CancelRequest is the body of POST /api/instances/:id/cancel
type CancelRequest struct {
	Actor  string `json:"actor" binding:"required"`
	Reason string `json:"reason"`
}

// ListInstancesRequest represents query parameters for listing instances
type ListInstancesRequest struct {
	DefinitionID string `form:"definition_id"`
	Status       string `form:"status"`
	MinPriority  int    `form:"min_priority"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// CreateDefinition handles POST /api/definitions
func (h *Handlers) CreateDefinition(c *gin.Context) {
	var def models.WorkflowDefinition
	if err := c.ShouldBindJSON(&def); err != nil {
		h.badRequest(c, fmt.Sprintf("invalid definition body: %v", err))
		return
	}
	if def.ID == "" {
		def.ID = uuid.NewString()
	}
	def.CreatedAt = time.Now().UTC()

	if err := h.validator.Validate(&def); err != nil {
		h.writeError(c, err)
		return
	}
	if err := h.definitions.Save(c.Request.Context(), &def); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: def})
}

// ListDefinitions handles GET /api/definitions
func (h *Handlers) ListDefinitions(c *gin.Context) {
	defs, err := h.definitions.List(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: defs})
}

// CreateInstance handles POST /api/instances
func (h *Handlers) CreateInstance(c *gin.Context) {
	var req CreateInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	inst, err := h.workflows.CreateInstance(c.Request.Context(), req.DefinitionID, req.Initiator, req.Attributes, req.Priority)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: inst})
}

// RecordAction handles POST /api/instances/:id/actions
func (h *Handlers) RecordAction(c *gin.Context) {
	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	inst, err := h.workflows.Act(c.Request.Context(), c.Param("id"), req.Actor, models.Decision(req.Decision), req.Comment)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: inst})
}

// CancelInstance handles POST /api/instances/:id/cancel. Only the
// initiator or the system may cancel.
func (h *Handlers) CancelInstance(c *gin.Context) {
	var req CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	id := c.Param("id")

	snap, err := h.workflows.GetInstance(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if req.Actor != snap.Instance.Initiator && req.Actor != "system" {
		h.writeError(c, &engine.UnauthorizedActorError{InstanceID: id, Actor: req.Actor})
		return
	}

	if err := h.workflows.Cancel(c.Request.Context(), id, req.Actor, req.Reason); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// GetInstance handles GET /api/instances/:id
func (h *Handlers) GetInstance(c *gin.Context) {
	snap, err := h.workflows.GetInstance(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: snap})
}

// ListInstances handles GET /api/instances
func (h *Handlers) ListInstances(c *gin.Context) {
	var req ListInstancesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.badRequest(c, "invalid query parameters")
		return
	}

	filter := engine.ListFilter{
		DefinitionID: req.DefinitionID,
		Status:       models.InstanceStatus(req.Status),
		MinPriority:  req.MinPriority,
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		h.badRequest(c, fmt.Sprintf("unknown status %q", req.Status))
		return
	}

	snaps, err := h.workflows.ListOpenInstances(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: snaps})
}

// ExportInstance handles GET /api/instances/:id/export
func (h *Handlers) ExportInstance(c *gin.Context) {
	id := c.Param("id")
	snap, err := h.workflows.GetInstance(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	data, err := h.exporter.Render(snap)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="instance-%s.xlsx"`, id))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

func (h *Handlers) badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: msg})
}

// writeError maps domain errors onto HTTP status codes
func (h *Handlers) writeError(c *gin.Context, err error) {
	var (
		confErr      *definition.ConfigurationError
		noStage      *engine.NoApplicableStageError
		unauthorized *engine.UnauthorizedActorError
		already      *engine.AlreadyEscalatedError
		resolution   *approver.ResolutionError
	)

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &confErr),
		errors.As(err, &noStage),
		errors.Is(err, engine.ErrInvalidDecision):
		status = http.StatusBadRequest
	case errors.As(err, &unauthorized):
		status = http.StatusForbidden
	case errors.Is(err, engine.ErrInstanceNotFound),
		errors.Is(err, engine.ErrDefinitionNotFound):
		status = http.StatusNotFound
	case errors.As(err, &already),
		errors.Is(err, engine.ErrInstanceClosed),
		errors.Is(err, engine.ErrStageClosed),
		errors.Is(err, engine.ErrEscalationDisabled),
		errors.Is(err, lifecycle.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.As(err, &resolution):
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.Error(err))
		c.JSON(status, Response{Success: false, Error: "internal error"})
		return
	}
	c.JSON(status, Response{Success: false, Error: err.Error()})
}
