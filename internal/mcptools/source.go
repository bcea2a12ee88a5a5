// Package mcptools lists and calls the tools of external MCP servers over the
// streamable HTTP transport.
package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/triage-ai/palisade/services/integration_engine/internal/errs"
	"github.com/triage-ai/palisade/services/integration_engine/internal/integration"
	"github.com/triage-ai/palisade/services/integration_engine/internal/remote"
)

const (
	defaultTimeout = 30 * time.Second
	maxPages       = 20
)

// Source talks to the MCP server configured on an ExternalMCP integration.
// Every operation opens its own session.
type Source struct {
	clientName    string
	clientVersion string
	timeout       time.Duration
	logger        *zap.Logger
}

// NewSource creates a Source. A zero timeout defaults to 30s.
func NewSource(clientName, clientVersion string, timeout time.Duration, logger *zap.Logger) *Source {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{
		clientName:    clientName,
		clientVersion: clientVersion,
		timeout:       timeout,
		logger:        logger,
	}
}

// ListTools returns the tool definitions the server advertises.
func (s *Source) ListTools(ctx context.Context, integ *integration.Integration) ([]remote.ToolDefinition, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	c, err := s.connect(ctx, integ)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	var (
		out    []remote.ToolDefinition
		cursor mcp.Cursor
	)
	for page := 0; page < maxPages; page++ {
		req := mcp.ListToolsRequest{}
		req.Params.Cursor = cursor
		res, err := c.ListTools(ctx, req)
		if err != nil {
			return nil, errs.Upstreamf("list tools of %s: %v", integ.Name, err)
		}
		for _, tool := range res.Tools {
			def, err := toDefinition(tool)
			if err != nil {
				s.logger.Warn("skipping mcp tool with unreadable schema",
					zap.String("integration", integ.Name),
					zap.String("tool", tool.Name),
					zap.Error(err),
				)
				continue
			}
			out = append(out, def)
		}
		if res.NextCursor == "" {
			break
		}
		cursor = res.NextCursor
	}
	return out, nil
}

// CallTool invokes name with args. A tool-level error result is returned as an error.
func (s *Source) CallTool(ctx context.Context, integ *integration.Integration, name string, args map[string]any) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	c, err := s.connect(ctx, integ)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	res, err := c.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	})
	if err != nil {
		return nil, errs.Upstream(err)
	}
	value := resultValue(res)
	if res.IsError {
		return nil, errs.Upstream(errors.New(fmt.Sprint(value)))
	}
	return value, nil
}

func (s *Source) connect(ctx context.Context, integ *integration.Integration) (*client.Client, error) {
	cfg, ok := integ.Configuration.(*integration.ExternalMCPConfig)
	if !ok {
		return nil, errs.BadRequest("integration %q is not an MCP integration", integ.Name)
	}
	if cfg.URL == "" {
		return nil, errs.NotFound("integration %q has no server url", integ.Name)
	}

	c, err := client.NewStreamableHttpClient(cfg.URL, transport.WithHTTPHeaders(cfg.Headers))
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := c.Start(ctx); err != nil {
		c.Close()
		return nil, errs.Upstreamf("start mcp session with %s: %v", integ.Name, err)
	}

	init := mcp.InitializeRequest{}
	init.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	init.Params.ClientInfo = mcp.Implementation{Name: s.clientName, Version: s.clientVersion}
	if _, err := c.Initialize(ctx, init); err != nil {
		c.Close()
		return nil, errs.Upstreamf("initialize mcp session with %s: %v", integ.Name, err)
	}
	return c, nil
}

func toDefinition(tool mcp.Tool) (remote.ToolDefinition, error) {
	raw, err := json.Marshal(tool)
	if err != nil {
		return remote.ToolDefinition{}, err
	}
	var decoded struct {
		InputSchema map[string]any `json:"inputSchema"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return remote.ToolDefinition{}, err
	}

	display := tool.Annotations.Title
	if display == "" {
		display = tool.Name
	}
	return remote.ToolDefinition{
		Name:        tool.Name,
		DisplayName: display,
		Description: tool.Description,
		InputSchema: decoded.InputSchema,
	}, nil
}

// resultValue prefers structured content and otherwise joins the text parts.
func resultValue(res *mcp.CallToolResult) any {
	if res.StructuredContent != nil {
		return res.StructuredContent
	}
	var parts []string
	for _, content := range res.Content {
		switch c := content.(type) {
		case mcp.TextContent:
			parts = append(parts, c.Text)
		case *mcp.TextContent:
			parts = append(parts, c.Text)
		}
	}
	return strings.Join(parts, "\n")
}
