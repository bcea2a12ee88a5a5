package remote

import (
	"context"

	"github.com/triage-ai/palisade/services/integration_engine/internal/integration"
	"github.com/triage-ai/palisade/services/integration_engine/internal/props"
)

// Client is the boundary to the remote component registry. Every method is a
// suspension point; failures are returned as upstream errors.
type Client interface {
	// GetComponent returns a component's declared configurable props.
	GetComponent(ctx context.Context, componentID string) (*Component, error)

	// FetchRemoteOptions returns the allowed values of a dynamic prop.
	FetchRemoteOptions(ctx context.Context, req OptionsRequest) ([]props.Option, error)

	// Reload submits a partial configuration and returns the props it reveals.
	Reload(ctx context.Context, req ReloadRequest) (*ReloadResult, error)

	// ExecuteAction runs an action component and returns its return value.
	ExecuteAction(ctx context.Context, componentID string, account integration.Account, args map[string]any) (any, error)

	// DeployTrigger creates a live trigger subscription and returns its remote id.
	DeployTrigger(ctx context.Context, req DeployRequest) (string, error)

	// DestroyTrigger tears down a deployed trigger.
	DestroyTrigger(ctx context.Context, remoteTriggerID string, account integration.Account) error

	// ListTools returns the actions exposed by the integration's app.
	ListTools(ctx context.Context, integ *integration.Integration) ([]ToolDefinition, error)
}

// Component is a registry-defined action or trigger.
type Component struct {
	Key               string                   `json:"key"`
	Name              string                   `json:"name"`
	Version           string                   `json:"version,omitempty"`
	Description       string                   `json:"description,omitempty"`
	ConfigurableProps []props.ConfigurableProp `json:"configurable_props"`
}

// OptionsRequest asks for the allowed values of one prop.
type OptionsRequest struct {
	ComponentID     string
	PropName        string
	ConfiguredProps map[string]any
	Account         integration.Account
}

// ReloadRequest submits configured props so the component can reveal more props.
type ReloadRequest struct {
	ComponentID     string
	ConfiguredProps map[string]any
	Account         integration.Account
}

// ReloadResult holds value-level errors and the props revealed by a reload.
type ReloadResult struct {
	Errors       []string
	DynamicProps []props.ConfigurableProp
}

// DeployRequest deploys a trigger component for an account.
type DeployRequest struct {
	ComponentID     string
	Account         integration.Account
	ConfiguredProps map[string]any
	WebhookURL      string
}

// ToolDefinition is a tool as listed by a tool source.
type ToolDefinition struct {
	Name        string
	DisplayName string
	Description string
	InputSchema map[string]any
}
