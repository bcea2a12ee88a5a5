package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/triage-ai/palisade/services/integration_engine/internal/integration"
	"github.com/triage-ai/palisade/services/integration_engine/internal/remote"
	"github.com/triage-ai/palisade/services/integration_engine/internal/telemetry"
)

// MaxDescriptionLength bounds tool descriptions handed to LLM providers.
const MaxDescriptionLength = 1023

// SourceIntegration tags tools that come from a workspace integration.
const SourceIntegration = "integration"

// Definition is the model-facing part of a tool.
type Definition struct {
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// SourceData identifies where a tool came from.
type SourceData struct {
	Source        string `json:"source"`
	IntegrationID string `json:"integrationId"`
	ToolLabel     string `json:"toolLabel"`
	ImageURL      string `json:"imageUrl,omitempty"`
}

// ToolResult is the outcome of one execution. On failure Value is the error message.
type ToolResult struct {
	Value   any  `json:"value"`
	IsError bool `json:"isError"`
}

// ResolvedTool is an executable tool bound to its integration.
type ResolvedTool struct {
	Name       string     `json:"name"`
	Definition Definition `json:"definition"`
	SourceData SourceData `json:"sourceData"`

	workspaceID string
	integ       *integration.Integration
	source      Source
	publisher   Publisher
	logger      *zap.Logger

	schemaOnce sync.Once
	schema     *jsonschema.Schema
}

func (r *Resolver) newResolvedTool(workspaceID string, integ *integration.Integration, def remote.ToolDefinition) *ResolvedTool {
	label := def.DisplayName
	if label == "" {
		label = def.Name
	}
	input := def.InputSchema
	if input == nil {
		input = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return &ResolvedTool{
		Name: def.Name,
		Definition: Definition{
			Description: truncate(def.Description, MaxDescriptionLength),
			InputSchema: input,
		},
		SourceData: SourceData{
			Source:        SourceIntegration,
			IntegrationID: integ.ID,
			ToolLabel:     label,
			ImageURL:      integ.ImageURL(),
		},
		workspaceID: workspaceID,
		integ:       integ,
		source:      r.source,
		publisher:   r.publisher,
		logger:      r.logger,
	}
}

// Execute runs the tool. It never fails: errors and panics come back as a
// result with IsError set and the message as Value.
func (t *ResolvedTool) Execute(ctx context.Context, args map[string]any) (res ToolResult) {
	start := time.Now()
	ctx, span := t.publisher.StartSpan(ctx, "tools.execute",
		attribute.String("workspace.id", t.workspaceID),
		attribute.String("integration.id", t.integ.ID),
		attribute.String("integration.name", t.integ.Name),
		attribute.String("tool.name", t.Name),
	)

	var execErr error
	defer func() {
		if p := recover(); p != nil {
			execErr = fmt.Errorf("tool %s panicked: %v", t.Name, p)
			t.logger.Error("tool execution panicked",
				zap.String("integration", t.integ.Name),
				zap.String("tool", t.Name),
				zap.Any("panic", p),
			)
			res = ToolResult{Value: execErr.Error(), IsError: true}
		}
		telemetry.EndSpan(span, execErr)
		t.publisher.ToolExecuted(&telemetry.ToolExecutedEvent{
			ExecutionID:     uuid.NewString(),
			WorkspaceID:     t.workspaceID,
			IntegrationID:   t.integ.ID,
			IntegrationName: t.integ.Name,
			IntegrationType: string(t.integ.Type),
			ToolName:        t.Name,
			IsError:         res.IsError,
			DurationMs:      float32(time.Since(start).Microseconds()) / 1000,
			Timestamp:       start.UTC(),
		})
	}()

	if args == nil {
		args = map[string]any{}
	}
	if execErr = t.validateArgs(args); execErr != nil {
		return ToolResult{Value: execErr.Error(), IsError: true}
	}

	value, err := t.source.CallTool(ctx, t.integ, t.Name, args)
	if err != nil {
		execErr = err
		return ToolResult{Value: err.Error(), IsError: true}
	}
	return ToolResult{Value: value}
}

func (t *ResolvedTool) validateArgs(args map[string]any) error {
	t.schemaOnce.Do(func() {
		sch, err := compileInputSchema(t.Definition.InputSchema)
		if err != nil {
			t.logger.Warn("tool input schema does not compile, skipping argument validation",
				zap.String("integration", t.integ.Name),
				zap.String("tool", t.Name),
				zap.Error(err),
			)
			return
		}
		t.schema = sch
	})
	if t.schema == nil {
		return nil
	}
	doc, err := toJSONValue(args)
	if err != nil {
		return fmt.Errorf("invalid arguments for %s: %w", t.Name, err)
	}
	if err := t.schema.Validate(doc); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("invalid arguments for %s: %s", t.Name, strings.TrimSpace(verr.Error()))
		}
		return fmt.Errorf("invalid arguments for %s: %w", t.Name, err)
	}
	return nil
}

func compileInputSchema(schema map[string]any) (*jsonschema.Schema, error) {
	doc, err := toJSONValue(schema)
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("tool-input.json", doc); err != nil {
		return nil, err
	}
	return c.Compile("tool-input.json")
}

func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
