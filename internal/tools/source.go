package tools

import (
	"context"

	"github.com/triage-ai/palisade/services/integration_engine/internal/errs"
	"github.com/triage-ai/palisade/services/integration_engine/internal/integration"
	"github.com/triage-ai/palisade/services/integration_engine/internal/remote"
)

// IntegrationLookup finds integrations by their workspace-unique name.
// A missing integration is reported as errs.NotFound.
type IntegrationLookup interface {
	FindIntegrationByName(ctx context.Context, workspaceID, name string) (*integration.Integration, error)
}

// Source lists and calls the tools of an integration.
type Source interface {
	ListTools(ctx context.Context, integ *integration.Integration) ([]remote.ToolDefinition, error)
	CallTool(ctx context.Context, integ *integration.Integration, name string, args map[string]any) (any, error)
}

// Sources routes each integration to the tool source of its type.
type Sources struct {
	registry remote.Client
	mcp      Source
}

// NewSources creates a dispatcher over the component registry and an MCP source.
func NewSources(registry remote.Client, mcp Source) *Sources {
	return &Sources{registry: registry, mcp: mcp}
}

func (s *Sources) ListTools(ctx context.Context, integ *integration.Integration) ([]remote.ToolDefinition, error) {
	switch integ.Type {
	case integration.TypePipedream:
		return s.registry.ListTools(ctx, integ)
	case integration.TypeExternalMCP:
		return s.mcp.ListTools(ctx, integ)
	case integration.TypeLatitude:
		return nil, errs.BadRequest("integration %q is built in and has no remote tools", integ.Name)
	default:
		return nil, errs.BadRequest("integration %q has unsupported type %q", integ.Name, integ.Type)
	}
}

func (s *Sources) CallTool(ctx context.Context, integ *integration.Integration, name string, args map[string]any) (any, error) {
	switch integ.Type {
	case integration.TypePipedream:
		account, ok := integ.Account()
		if !ok {
			return nil, errs.NotFound("integration %q is not connected to an account", integ.Name)
		}
		return s.registry.ExecuteAction(ctx, name, account, args)
	case integration.TypeExternalMCP:
		return s.mcp.CallTool(ctx, integ, name, args)
	case integration.TypeLatitude:
		return nil, errs.BadRequest("integration %q is built in and has no remote tools", integ.Name)
	default:
		return nil, errs.BadRequest("integration %q has unsupported type %q", integ.Name, integ.Type)
	}
}
