// Package trigger builds, persists and deploys document triggers.
package trigger

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type is the kind of a document trigger.
type Type string

const (
	TypeEmail       Type = "email"
	TypeScheduled   Type = "scheduled"
	TypeIntegration Type = "integration"
)

// Configuration is implemented by every trigger configuration variant.
type Configuration interface {
	TriggerType() Type
}

// EmailConfig runs the document for incoming emails.
type EmailConfig struct {
	Name              string            `json:"name,omitempty"`
	ReplyWithResponse bool              `json:"replyWithResponse"`
	EmailWhitelist    []string          `json:"emailWhitelist,omitempty"`
	DomainWhitelist   []string          `json:"domainWhitelist,omitempty"`
	Parameters        map[string]string `json:"parameters,omitempty"`
}

// ScheduledConfig runs the document on a cron schedule.
// LastRun and NextRunTime are always computed, never taken from callers.
type ScheduledConfig struct {
	CronExpression string    `json:"cronExpression"`
	LastRun        time.Time `json:"lastRun"`
	NextRunTime    time.Time `json:"nextRunTime"`
}

// IntegrationConfig runs the document when a deployed registry trigger fires.
type IntegrationConfig struct {
	IntegrationID     string         `json:"integrationId"`
	ComponentID       string         `json:"componentId"`
	Properties        map[string]any `json:"properties,omitempty"`
	PayloadParameters []string       `json:"payloadParameters,omitempty"`
	// TriggerID is the remote deployment handle.
	TriggerID string `json:"triggerId,omitempty"`
}

func (*EmailConfig) TriggerType() Type       { return TypeEmail }
func (*ScheduledConfig) TriggerType() Type   { return TypeScheduled }
func (*IntegrationConfig) TriggerType() Type { return TypeIntegration }

// DocumentTrigger is a persisted trigger of a document in a commit.
type DocumentTrigger struct {
	UUID          string
	WorkspaceID   string
	ProjectID     string
	CommitUUID    string
	DocumentUUID  string
	TriggerType   Type
	Configuration Configuration
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Commit is the version a trigger is attached to.
type Commit struct {
	UUID      string
	ProjectID string
	MergedAt  *time.Time
}

// Merged reports whether the commit is merged and therefore immutable.
func (c *Commit) Merged() bool { return c.MergedAt != nil }

// DecodeConfiguration parses raw JSON into the variant selected by t.
func DecodeConfiguration(t Type, raw json.RawMessage) (Configuration, error) {
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage(`{}`)
	}
	var cfg Configuration
	switch t {
	case TypeEmail:
		cfg = &EmailConfig{}
	case TypeScheduled:
		cfg = &ScheduledConfig{}
	case TypeIntegration:
		cfg = &IntegrationConfig{}
	default:
		return nil, fmt.Errorf("DecodeConfiguration: unknown trigger type %q", t)
	}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("DecodeConfiguration: %w", err)
	}
	return cfg, nil
}

// EncodeConfiguration serializes a configuration variant for persistence.
func EncodeConfiguration(cfg Configuration) (json.RawMessage, error) {
	b, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("EncodeConfiguration: %w", err)
	}
	return b, nil
}
