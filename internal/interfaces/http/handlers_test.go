package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openhrm/workflow-engine/internal/definition"
	"github.com/openhrm/workflow-engine/internal/engine"
	"github.com/openhrm/workflow-engine/internal/models"
)

type mockWorkflows struct {
	createFn func(ctx context.Context, definitionID, initiator string, attrs models.Attributes, priority int) (*models.WorkflowInstance, error)
	actFn    func(ctx context.Context, instanceID, actor string, decision models.Decision, comment string) (*models.WorkflowInstance, error)
	cancelFn func(ctx context.Context, instanceID, actor, reason string) error
	getFn    func(ctx context.Context, instanceID string) (*engine.Snapshot, error)
	listFn   func(ctx context.Context, filter engine.ListFilter) ([]*engine.Snapshot, error)
}

func (m *mockWorkflows) CreateInstance(ctx context.Context, definitionID, initiator string, attrs models.Attributes, priority int) (*models.WorkflowInstance, error) {
	return m.createFn(ctx, definitionID, initiator, attrs, priority)
}

func (m *mockWorkflows) Act(ctx context.Context, instanceID, actor string, decision models.Decision, comment string) (*models.WorkflowInstance, error) {
	return m.actFn(ctx, instanceID, actor, decision, comment)
}

func (m *mockWorkflows) Cancel(ctx context.Context, instanceID, actor, reason string) error {
	return m.cancelFn(ctx, instanceID, actor, reason)
}

func (m *mockWorkflows) GetInstance(ctx context.Context, instanceID string) (*engine.Snapshot, error) {
	return m.getFn(ctx, instanceID)
}

func (m *mockWorkflows) ListOpenInstances(ctx context.Context, filter engine.ListFilter) ([]*engine.Snapshot, error) {
	return m.listFn(ctx, filter)
}

type mockDefinitions struct {
	saved []*models.WorkflowDefinition
}

func (m *mockDefinitions) Save(ctx context.Context, def *models.WorkflowDefinition) error {
	m.saved = append(m.saved, def)
	return nil
}

func (m *mockDefinitions) List(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	return m.saved, nil
}

type mockExporter struct{}

func (mockExporter) Render(snap *engine.Snapshot) ([]byte, error) {
	return []byte("PKworkbook"), nil
}

type emptyRegistry struct{}

func (emptyRegistry) HasCustom(name string) bool  { return false }
func (emptyRegistry) HasHandler(name string) bool { return false }

func newTestServer(workflows *mockWorkflows, defs *mockDefinitions) *Server {
	handlers := NewHandlers(
		workflows,
		defs,
		definition.NewValidator(emptyRegistry{}, emptyRegistry{}),
		mockExporter{},
		zap.NewNop(),
	)
	return NewServer(DefaultServerConfig(), handlers, zap.NewNop())
}

func doJSON(t *testing.T, srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	srv := newTestServer(&mockWorkflows{}, &mockDefinitions{})
	w := doJSON(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestCreateDefinition(t *testing.T) {
	defs := &mockDefinitions{}
	srv := newTestServer(&mockWorkflows{}, defs)

	body := map[string]interface{}{
		"name": "leave approval",
		"stages": []map[string]interface{}{
			{
				"name":            "manager review",
				"order":           1,
				"approver_type":   "user",
				"approver_ids":    []string{"u1"},
				"approval_policy": "any",
				"sla_duration":    "24h",
			},
		},
	}
	w := doJSON(t, srv, http.MethodPost, "/api/definitions", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Len(t, defs.saved, 1)
	assert.NotEmpty(t, defs.saved[0].ID)
}

func TestCreateDefinition_InvalidRejected(t *testing.T) {
	defs := &mockDefinitions{}
	srv := newTestServer(&mockWorkflows{}, defs)

	// A user stage without approver IDs fails validation.
	body := map[string]interface{}{
		"name": "broken",
		"stages": []map[string]interface{}{
			{
				"name":            "manager review",
				"order":           1,
				"approver_type":   "user",
				"approval_policy": "any",
				"sla_duration":    "24h",
			},
		},
	}
	w := doJSON(t, srv, http.MethodPost, "/api/definitions", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, defs.saved)
}

func TestCreateInstance_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"no applicable stage", &engine.NoApplicableStageError{Definition: "leave"}, http.StatusBadRequest},
		{"unknown definition", engine.ErrDefinitionNotFound, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			workflows := &mockWorkflows{
				createFn: func(ctx context.Context, definitionID, initiator string, attrs models.Attributes, priority int) (*models.WorkflowInstance, error) {
					return nil, tt.err
				},
			}
			srv := newTestServer(workflows, &mockDefinitions{})
			w := doJSON(t, srv, http.MethodPost, "/api/instances", map[string]interface{}{
				"definition_id": "def-1",
				"initiator":     "emp-1",
			})
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestRecordAction(t *testing.T) {
	var gotActor string
	var gotDecision models.Decision
	workflows := &mockWorkflows{
		actFn: func(ctx context.Context, instanceID, actor string, decision models.Decision, comment string) (*models.WorkflowInstance, error) {
			gotActor = actor
			gotDecision = decision
			return &models.WorkflowInstance{ID: instanceID, Status: models.StatusApproved}, nil
		},
	}
	srv := newTestServer(workflows, &mockDefinitions{})

	w := doJSON(t, srv, http.MethodPost, "/api/instances/inst-1/actions", map[string]interface{}{
		"actor":    "u1",
		"decision": "approve",
		"comment":  "lgtm",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", gotActor)
	assert.Equal(t, models.DecisionApprove, gotDecision)
}

func TestRecordAction_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unauthorized", &engine.UnauthorizedActorError{InstanceID: "inst-1", Actor: "x"}, http.StatusForbidden},
		{"closed", engine.ErrInstanceClosed, http.StatusConflict},
		{"missing", engine.ErrInstanceNotFound, http.StatusNotFound},
		{"bad decision", engine.ErrInvalidDecision, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			workflows := &mockWorkflows{
				actFn: func(ctx context.Context, instanceID, actor string, decision models.Decision, comment string) (*models.WorkflowInstance, error) {
					return nil, tt.err
				},
			}
			srv := newTestServer(workflows, &mockDefinitions{})
			w := doJSON(t, srv, http.MethodPost, "/api/instances/inst-1/actions", map[string]interface{}{
				"actor":    "x",
				"decision": "approve",
			})
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestCancelInstance_InitiatorOnly(t *testing.T) {
	cancelled := false
	workflows := &mockWorkflows{
		getFn: func(ctx context.Context, instanceID string) (*engine.Snapshot, error) {
			return &engine.Snapshot{Instance: &models.WorkflowInstance{
				ID: instanceID, Initiator: "emp-1", Status: models.StatusPending,
			}}, nil
		},
		cancelFn: func(ctx context.Context, instanceID, actor, reason string) error {
			cancelled = true
			return nil
		},
	}
	srv := newTestServer(workflows, &mockDefinitions{})

	w := doJSON(t, srv, http.MethodPost, "/api/instances/inst-1/cancel", map[string]interface{}{
		"actor": "someone-else", "reason": "nope",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, cancelled)

	w = doJSON(t, srv, http.MethodPost, "/api/instances/inst-1/cancel", map[string]interface{}{
		"actor": "emp-1", "reason": "changed my mind",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, cancelled)
}

func TestListInstances_RejectsUnknownStatus(t *testing.T) {
	srv := newTestServer(&mockWorkflows{
		listFn: func(ctx context.Context, filter engine.ListFilter) ([]*engine.Snapshot, error) {
			return nil, nil
		},
	}, &mockDefinitions{})

	w := doJSON(t, srv, http.MethodGet, "/api/instances?status=BOGUS", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/api/instances?status=PENDING", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestExportInstance(t *testing.T) {
	workflows := &mockWorkflows{
		getFn: func(ctx context.Context, instanceID string) (*engine.Snapshot, error) {
			return &engine.Snapshot{Instance: &models.WorkflowInstance{
				ID: instanceID, Status: models.StatusApproved, CreatedAt: time.Now(),
			}}, nil
		},
	}
	srv := newTestServer(workflows, &mockDefinitions{})

	w := doJSON(t, srv, http.MethodGet, "/api/instances/inst-1/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "inst-1")
	assert.Equal(t, "PKworkbook", w.Body.String())
}
