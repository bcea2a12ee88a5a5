package mcptools

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/triage-ai/palisade/services/integration_engine/internal/errs"
	"github.com/triage-ai/palisade/services/integration_engine/internal/integration"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	s := server.NewMCPServer("test-server", "1.0.0", server.WithToolCapabilities(false))
	s.AddTool(
		mcp.NewTool("echo",
			mcp.WithDescription("Echoes the given text"),
			mcp.WithString("text", mcp.Required()),
		),
		func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			text, err := req.RequireString("text")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return mcp.NewToolResultText(text), nil
		},
	)
	s.AddTool(
		mcp.NewTool("fail", mcp.WithDescription("Always fails")),
		func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultError("tool exploded"), nil
		},
	)
	ts := httptest.NewServer(server.NewStreamableHTTPServer(s))
	t.Cleanup(ts.Close)
	return ts
}

func mcpIntegration(url string) *integration.Integration {
	return &integration.Integration{
		ID:            "int-mcp",
		Name:          "docs",
		Type:          integration.TypeExternalMCP,
		Configuration: &integration.ExternalMCPConfig{URL: url, Headers: map[string]string{"X-Test": "1"}},
	}
}

func TestSource_ListTools(t *testing.T) {
	ts := newTestServer(t)
	src := NewSource("integration-engine", "test", 5*time.Second, zap.NewNop())

	defs, err := src.ListTools(context.Background(), mcpIntegration(ts.URL+"/mcp"))
	if err != nil {
		t.Fatalf("ListTools returned error: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(defs))
	}
	var echo bool
	for _, d := range defs {
		if d.Name != "echo" {
			continue
		}
		echo = true
		if d.Description != "Echoes the given text" {
			t.Fatalf("unexpected description %q", d.Description)
		}
		if d.InputSchema["type"] != "object" {
			t.Fatalf("expected object input schema, got %v", d.InputSchema)
		}
	}
	if !echo {
		t.Fatalf("echo tool missing from %+v", defs)
	}
}

func TestSource_CallTool(t *testing.T) {
	ts := newTestServer(t)
	src := NewSource("integration-engine", "test", 5*time.Second, zap.NewNop())

	value, err := src.CallTool(context.Background(), mcpIntegration(ts.URL+"/mcp"), "echo", map[string]any{"text": "hi"})
	if err != nil {
		t.Fatalf("CallTool returned error: %v", err)
	}
	if value != "hi" {
		t.Fatalf("expected hi, got %v", value)
	}
}

func TestSource_CallToolErrorResult(t *testing.T) {
	ts := newTestServer(t)
	src := NewSource("integration-engine", "test", 5*time.Second, zap.NewNop())

	_, err := src.CallTool(context.Background(), mcpIntegration(ts.URL+"/mcp"), "fail", nil)
	if !errs.IsUpstream(err) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	var e *errs.Error
	if !errors.As(err, &e) || e.Message != "tool exploded" {
		t.Fatalf("expected verbatim tool message, got %v", err)
	}
}

func TestSource_RejectsOtherIntegrationTypes(t *testing.T) {
	src := NewSource("integration-engine", "test", 0, nil)
	_, err := src.ListTools(context.Background(), &integration.Integration{
		Name:          "slack",
		Type:          integration.TypePipedream,
		Configuration: &integration.PipedreamConfig{AppName: "slack"},
	})
	if !errs.IsBadRequest(err) {
		t.Fatalf("expected bad request, got %v", err)
	}
}
