package telemetry

import "time"

// EventWriter is the interface for writing tool-executed events.
// Write() must NEVER block the caller.
type EventWriter interface {
	Write(event *ToolExecutedEvent)
	Close()
}

// ToolExecutedEvent records a single tool execution for analytics.
type ToolExecutedEvent struct {
	ExecutionID     string
	WorkspaceID     string
	IntegrationID   string
	IntegrationName string
	IntegrationType string
	ToolName        string
	IsError         bool
	DurationMs      float32
	Timestamp       time.Time
}
