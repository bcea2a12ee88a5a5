package api

import (
	"encoding/json"
	"time"

	"github.com/triage-ai/palisade/services/integration_engine/internal/integration"
	"github.com/triage-ai/palisade/services/integration_engine/internal/props"
	"github.com/triage-ai/palisade/services/integration_engine/internal/tools"
	"github.com/triage-ai/palisade/services/integration_engine/internal/trigger"
)

// --- Component configuration ---

// ComponentSchemaReq is the JSON body for POST /v1/components/{id}/schema.
type ComponentSchemaReq struct {
	IntegrationName string `json:"integration_name"`
}

// ComponentSchemaResp lists the component's relevant props.
type ComponentSchemaResp struct {
	Schema []props.ConfigurableProp `json:"schema"`
}

// ValidateConfigurationReq is the JSON body for POST /v1/components/{id}/validate.
type ValidateConfigurationReq struct {
	IntegrationName string         `json:"integration_name"`
	Configuration   map[string]any `json:"configuration"`
}

// ValidateConfigurationResp is returned for a valid configuration.
type ValidateConfigurationResp struct {
	Valid  bool                     `json:"valid"`
	Schema []props.ConfigurableProp `json:"schema"`
}

// --- Tools ---

// ResolveToolsReq is the JSON body for POST /v1/tools/resolve.
type ResolveToolsReq struct {
	Tools []string `json:"tools"`
}

// ResolvedToolResp describes one resolved tool without its handler.
type ResolvedToolResp struct {
	Name       string           `json:"name"`
	Definition tools.Definition `json:"definition"`
	SourceData tools.SourceData `json:"source_data"`
}

// ResolveToolsResp maps tool names to their descriptions.
type ResolveToolsResp struct {
	Tools map[string]ResolvedToolResp `json:"tools"`
}

// ExecuteToolReq is the JSON body for POST /v1/tools/execute.
type ExecuteToolReq struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
}

// ExecuteToolResp is the outcome of a tool execution.
type ExecuteToolResp struct {
	Value   any  `json:"value"`
	IsError bool `json:"is_error"`
}

// ExecutionResp is one recorded tool execution.
type ExecutionResp struct {
	ExecutionID     string    `json:"execution_id"`
	IntegrationID   string    `json:"integration_id"`
	IntegrationName string    `json:"integration_name"`
	IntegrationType string    `json:"integration_type"`
	ToolName        string    `json:"tool_name"`
	IsError         bool      `json:"is_error"`
	DurationMs      float32   `json:"duration_ms"`
	Timestamp       time.Time `json:"timestamp"`
}

// ExecutionListResp is a page of tool executions.
type ExecutionListResp struct {
	Executions []ExecutionResp `json:"executions"`
	Total      int             `json:"total"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
}

// --- Triggers ---

// CreateTriggerReq is the JSON body for POST /v1/documents/{uuid}/triggers.
type CreateTriggerReq struct {
	CommitUUID    string          `json:"commit_uuid"`
	TriggerType   trigger.Type    `json:"trigger_type"`
	Configuration json.RawMessage `json:"configuration"`
}

// UpdateTriggerReq is the JSON body for PATCH /v1/triggers/{uuid}.
type UpdateTriggerReq struct {
	CommitUUID    string          `json:"commit_uuid"`
	TriggerType   trigger.Type    `json:"trigger_type,omitempty"`
	Configuration json.RawMessage `json:"configuration"`
}

// TriggerResp is a persisted document trigger.
type TriggerResp struct {
	UUID          string                `json:"uuid"`
	ProjectID     string                `json:"project_id"`
	CommitUUID    string                `json:"commit_uuid"`
	DocumentUUID  string                `json:"document_uuid"`
	TriggerType   trigger.Type          `json:"trigger_type"`
	Configuration trigger.Configuration `json:"configuration"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

// --- Integrations ---

// CloneTriggerReq is a trigger configuration carried over to the target workspace.
type CloneTriggerReq struct {
	TriggerType   trigger.Type    `json:"trigger_type"`
	Configuration json.RawMessage `json:"configuration"`
}

// CloneIntegrationsReq is the JSON body for POST /v1/integrations/clone.
// Empty IntegrationNames clones every integration of the caller's workspace.
type CloneIntegrationsReq struct {
	TargetWorkspaceID string            `json:"target_workspace_id"`
	AuthorID          string            `json:"author_id"`
	IntegrationNames  []string          `json:"integration_names,omitempty"`
	Triggers          []CloneTriggerReq `json:"triggers,omitempty"`
}

// IntegrationResp never includes the configuration, which may hold secrets.
type IntegrationResp struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Type       integration.Type `json:"type"`
	Configured bool             `json:"configured"`
}

// CloneTriggerResp is a trigger configuration rewritten for the target workspace.
type CloneTriggerResp struct {
	TriggerType   trigger.Type          `json:"trigger_type"`
	Configuration trigger.Configuration `json:"configuration"`
}

// CloneIntegrationsResp maps origin integration names to their targets.
type CloneIntegrationsResp struct {
	Integrations map[string]IntegrationResp `json:"integrations"`
	Triggers     []CloneTriggerResp         `json:"triggers"`
}

// ErrorResp is a standard error response body.
type ErrorResp struct {
	Detail string `json:"detail"`
}

// ValidationErrorResp lists every configuration error with the schema used.
type ValidationErrorResp struct {
	Detail string                   `json:"detail"`
	Errors []string                 `json:"errors"`
	Schema []props.ConfigurableProp `json:"schema"`
}

func triggerToResp(t *trigger.DocumentTrigger) TriggerResp {
	return TriggerResp{
		UUID:          t.UUID,
		ProjectID:     t.ProjectID,
		CommitUUID:    t.CommitUUID,
		DocumentUUID:  t.DocumentUUID,
		TriggerType:   t.TriggerType,
		Configuration: t.Configuration,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

func integrationToResp(i *integration.Integration) IntegrationResp {
	return IntegrationResp{
		ID:         i.ID,
		Name:       i.Name,
		Type:       i.Type,
		Configured: i.IsConfigured(),
	}
}
