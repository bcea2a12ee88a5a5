// Package tools turns declarative "<integration>/<tool>" references into
// executable tool handlers.
package tools

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/triage-ai/palisade/services/integration_engine/internal/errs"
	"github.com/triage-ai/palisade/services/integration_engine/internal/integration"
	"github.com/triage-ai/palisade/services/integration_engine/internal/remote"
	"github.com/triage-ai/palisade/services/integration_engine/internal/telemetry"
)

// Publisher receives tool execution telemetry.
type Publisher interface {
	ToolExecuted(event *telemetry.ToolExecutedEvent)
	StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span)
}

// Resolver materializes tool references into ResolvedTools.
type Resolver struct {
	integrations IntegrationLookup
	source       Source
	publisher    Publisher
	logger       *zap.Logger
}

// NewResolver creates a Resolver.
func NewResolver(integrations IntegrationLookup, source Source, publisher Publisher, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		integrations: integrations,
		source:       source,
		publisher:    publisher,
		logger:       logger,
	}
}

// loaded is one integration and the tools it exposes.
type loaded struct {
	integ *integration.Integration
	tools []remote.ToolDefinition
}

// Resolve returns the tools selected by refs, keyed by tool name. Each
// integration is loaded once no matter how many references name it. When two
// references produce the same tool name the later one wins. Any failure aborts
// the whole resolution.
func (r *Resolver) Resolve(ctx context.Context, workspaceID string, refs []string) (_ map[string]*ResolvedTool, err error) {
	ctx, span := r.publisher.StartSpan(ctx, "tools.resolve",
		attribute.String("workspace.id", workspaceID),
		attribute.Int("tools.references", len(refs)),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	parsed := make([]Reference, len(refs))
	var names []string
	index := make(map[string]int)
	for i, raw := range refs {
		ref, err := ParseReference(raw)
		if err != nil {
			return nil, err
		}
		parsed[i] = ref
		if _, seen := index[ref.Integration]; !seen {
			index[ref.Integration] = len(names)
			names = append(names, ref.Integration)
		}
	}

	results := make([]loaded, len(names))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			l, err := r.load(gctx, workspaceID, name)
			if err != nil {
				return err
			}
			results[i] = l
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]*ResolvedTool)
	for _, ref := range parsed {
		l := results[index[ref.Integration]]
		if ref.IsWildcard() {
			for _, def := range l.tools {
				out[def.Name] = r.newResolvedTool(workspaceID, l.integ, def)
			}
			continue
		}
		def, ok := findTool(l.tools, ref.Tool)
		if !ok {
			return nil, errs.NotFound("tool %q not found in integration %q", ref.Tool, ref.Integration)
		}
		out[def.Name] = r.newResolvedTool(workspaceID, l.integ, def)
	}

	r.logger.Debug("resolved tools",
		zap.String("workspace_id", workspaceID),
		zap.Int("references", len(refs)),
		zap.Int("integrations", len(names)),
		zap.Int("tools", len(out)),
	)
	return out, nil
}

func (r *Resolver) load(ctx context.Context, workspaceID, name string) (loaded, error) {
	integ, err := r.integrations.FindIntegrationByName(ctx, workspaceID, name)
	if err != nil {
		return loaded{}, err
	}
	if integ.Type == integration.TypeLatitude {
		return loaded{}, errs.BadRequest("integration %q is built in and cannot be referenced as a tool source", name)
	}
	if !integ.IsConfigured() {
		return loaded{}, errs.NotFound("integration %q is not configured", name)
	}
	defs, err := r.source.ListTools(ctx, integ)
	if err != nil {
		return loaded{}, err
	}
	return loaded{integ: integ, tools: defs}, nil
}

func findTool(defs []remote.ToolDefinition, name string) (remote.ToolDefinition, bool) {
	for _, d := range defs {
		if d.Name == name {
			return d, true
		}
	}
	return remote.ToolDefinition{}, false
}
