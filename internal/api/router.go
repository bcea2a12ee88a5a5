// Package api exposes the integration engine over HTTP to the web layer.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/triage-ai/palisade/services/integration_engine/internal/auth"
	"github.com/triage-ai/palisade/services/integration_engine/internal/clone"
	"github.com/triage-ai/palisade/services/integration_engine/internal/integration"
	"github.com/triage-ai/palisade/services/integration_engine/internal/props"
	"github.com/triage-ai/palisade/services/integration_engine/internal/telemetry"
	"github.com/triage-ai/palisade/services/integration_engine/internal/tools"
	"github.com/triage-ai/palisade/services/integration_engine/internal/trigger"
)

// Integrations reads the workspace's integrations.
type Integrations interface {
	FindIntegrationByName(ctx context.Context, workspaceID, name string) (*integration.Integration, error)
	ListIntegrations(ctx context.Context, workspaceID string) ([]*integration.Integration, error)
}

type SchemaAssembler interface {
	Assemble(ctx context.Context, componentID string, integ *integration.Integration) ([]props.ConfigurableProp, error)
}

type ConfigValidator interface {
	Validate(ctx context.Context, componentID string, integ *integration.Integration, config map[string]any) ([]props.ConfigurableProp, error)
}

type ToolResolver interface {
	Resolve(ctx context.Context, workspaceID string, refs []string) (map[string]*tools.ResolvedTool, error)
}

type TriggerService interface {
	Create(ctx context.Context, in trigger.CreateInput) (*trigger.DocumentTrigger, error)
	Update(ctx context.Context, in trigger.UpdateInput) (*trigger.DocumentTrigger, error)
	Delete(ctx context.Context, in trigger.DeleteInput) (*trigger.DocumentTrigger, error)
}

type IntegrationCloner interface {
	CloneForWorkspace(ctx context.Context, origins []*integration.Integration, targetWorkspaceID, authorID string) (*clone.Mapping, error)
}

// TriggerStripper rewrites trigger configurations for a cloned document.
type TriggerStripper interface {
	StripForClone(cfg trigger.Configuration, mapping *clone.Mapping) (trigger.Configuration, error)
}

// ExecutionReader queries recorded tool executions.
type ExecutionReader interface {
	ListExecutions(ctx context.Context, params telemetry.ListExecutionsParams) ([]telemetry.ToolExecutedEvent, int, error)
	GetToolStats(ctx context.Context, workspaceID string, days int) (*telemetry.ToolStats, error)
}

// Pinger reports backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds shared state injected into all HTTP handlers.
type Dependencies struct {
	Integrations Integrations
	Assembler    SchemaAssembler
	Validator    ConfigValidator
	Resolver     ToolResolver
	Triggers     TriggerService
	Cloner       IntegrationCloner
	Stripper     TriggerStripper
	Executions   ExecutionReader // nil if ClickHouse unavailable
	Auth         auth.Authenticator
	Health       Pinger // nil skips the database check
	Logger       *zap.Logger
}

// NewRouter builds the HTTP mux with all routes wired up.
func NewRouter(deps *Dependencies) http.Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	mux := http.NewServeMux()

	// Component configuration (auth required via Bearer wsk_ token)
	mux.HandleFunc("POST /v1/components/{component_id}/schema", deps.authMiddleware(deps.handleComponentSchema))
	mux.HandleFunc("POST /v1/components/{component_id}/validate", deps.authMiddleware(deps.handleValidateConfiguration))

	// Tools
	mux.HandleFunc("POST /v1/tools/resolve", deps.authMiddleware(deps.handleResolveTools))
	mux.HandleFunc("POST /v1/tools/execute", deps.authMiddleware(deps.handleExecuteTool))
	mux.HandleFunc("GET /v1/tools/executions", deps.authMiddleware(deps.handleListExecutions))
	mux.HandleFunc("GET /v1/tools/stats", deps.authMiddleware(deps.handleToolStats))

	// Document triggers
	mux.HandleFunc("POST /v1/documents/{document_uuid}/triggers", deps.authMiddleware(deps.handleCreateTrigger))
	mux.HandleFunc("PATCH /v1/triggers/{trigger_uuid}", deps.authMiddleware(deps.handleUpdateTrigger))
	mux.HandleFunc("DELETE /v1/triggers/{trigger_uuid}", deps.authMiddleware(deps.handleDeleteTrigger))

	// Integrations
	mux.HandleFunc("POST /v1/integrations/clone", deps.authMiddleware(deps.handleCloneIntegrations))

	// Health check
	mux.HandleFunc("GET /healthz", deps.handleHealth)

	return corsMiddleware(requestLogging(mux, deps.Logger))
}

func (d *Dependencies) handleHealth(w http.ResponseWriter, r *http.Request) {
	if d.Health != nil {
		if err := d.Health.Ping(r.Context()); err != nil {
			d.Logger.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// readJSON decodes a JSON request body into the given pointer.
func readJSON(r *http.Request, v any) error {
	defer func() { _ = r.Body.Close() }()
	return json.NewDecoder(r.Body).Decode(v)
}
