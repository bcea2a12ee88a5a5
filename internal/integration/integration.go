package integration

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type is the integration kind. It selects the Configuration variant.
type Type string

const (
	TypePipedream   Type = "pipedream"
	TypeExternalMCP Type = "custom_mcp"
	TypeLatitude    Type = "latitude"
)

// Integration is a workspace-owned connection to an external account or service.
// Name is unique per workspace.
type Integration struct {
	ID            string
	WorkspaceID   string
	Name          string
	Type          Type
	Configuration Configuration
	AuthorID      string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Configuration is the type-specific configuration of an integration.
// Implementations: *PipedreamConfig, *ExternalMCPConfig, *LatitudeConfig.
type Configuration interface {
	IntegrationType() Type
}

// PipedreamMetadata is display information captured when the app was chosen.
type PipedreamMetadata struct {
	DisplayName string `json:"displayName,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
}

// PipedreamConfig describes an app hosted by the component registry. The
// account-linking fields are empty until the integration is configured.
type PipedreamConfig struct {
	AppName        string             `json:"appName"`
	AuthType       string             `json:"authType,omitempty"`
	Metadata       *PipedreamMetadata `json:"metadata,omitempty"`
	ConnectionID   string             `json:"connectionId,omitempty"`
	ExternalUserID string             `json:"externalUserId,omitempty"`
	OAuthAppID     string             `json:"oauthAppId,omitempty"`
}

func (*PipedreamConfig) IntegrationType() Type { return TypePipedream }

// ExternalMCPConfig points at a third-party MCP server. Headers usually carry credentials.
type ExternalMCPConfig struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}

func (*ExternalMCPConfig) IntegrationType() Type { return TypeExternalMCP }

// LatitudeConfig is the built-in integration; it has no settings.
type LatitudeConfig struct{}

func (*LatitudeConfig) IntegrationType() Type { return TypeLatitude }

// Account is the linked account identity used for registry calls.
type Account struct {
	AppName        string
	ExternalUserID string
	ConnectionID   string
}

// DecodeConfiguration parses raw JSON into the variant selected by t.
func DecodeConfiguration(t Type, raw json.RawMessage) (Configuration, error) {
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage(`{}`)
	}
	var cfg Configuration
	switch t {
	case TypePipedream:
		cfg = &PipedreamConfig{}
	case TypeExternalMCP:
		cfg = &ExternalMCPConfig{}
	case TypeLatitude:
		cfg = &LatitudeConfig{}
	default:
		return nil, fmt.Errorf("DecodeConfiguration: unknown integration type %q", t)
	}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("DecodeConfiguration: %w", err)
	}
	return cfg, nil
}

// EncodeConfiguration serializes a configuration variant for persistence.
func EncodeConfiguration(cfg Configuration) (json.RawMessage, error) {
	if cfg == nil {
		return json.RawMessage(`{}`), nil
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("EncodeConfiguration: %w", err)
	}
	return b, nil
}

// IsConfigured reports whether the integration has everything it needs to be used.
func (i *Integration) IsConfigured() bool {
	switch c := i.Configuration.(type) {
	case *PipedreamConfig:
		return c.ConnectionID != "" && c.ExternalUserID != ""
	case *ExternalMCPConfig:
		return c.URL != ""
	case *LatitudeConfig:
		return true
	default:
		return false
	}
}

// AppIdentity is the underlying app for account-linked variants, "" otherwise.
func (i *Integration) AppIdentity() string {
	switch c := i.Configuration.(type) {
	case *PipedreamConfig:
		return c.AppName
	case *ExternalMCPConfig, *LatitudeConfig:
		return ""
	default:
		return ""
	}
}

// NeutralName is the name to use when recreating the integration elsewhere:
// the app identity for account-linked variants, the display name otherwise.
func (i *Integration) NeutralName() string {
	if app := i.AppIdentity(); app != "" {
		return app
	}
	return i.Name
}

// SameKind reports whether two integrations have the same type and app identity.
func SameKind(a, b *Integration) bool {
	return a.Type == b.Type && a.AppIdentity() == b.AppIdentity()
}

// Account returns the linked account of a configured Pipedream integration.
func (i *Integration) Account() (Account, bool) {
	c, ok := i.Configuration.(*PipedreamConfig)
	if !ok || c.ConnectionID == "" || c.ExternalUserID == "" {
		return Account{}, false
	}
	return Account{
		AppName:        c.AppName,
		ExternalUserID: c.ExternalUserID,
		ConnectionID:   c.ConnectionID,
	}, true
}

// ImageURL is the app logo, if known.
func (i *Integration) ImageURL() string {
	if c, ok := i.Configuration.(*PipedreamConfig); ok && c.Metadata != nil {
		return c.Metadata.ImageURL
	}
	return ""
}

// Unconfigured returns a copy of cfg that keeps identity fields only.
// Account links and credentials are never carried over.
func Unconfigured(cfg Configuration) Configuration {
	switch c := cfg.(type) {
	case *PipedreamConfig:
		out := &PipedreamConfig{AppName: c.AppName, AuthType: c.AuthType}
		if c.Metadata != nil {
			md := *c.Metadata
			out.Metadata = &md
		}
		return out
	case *ExternalMCPConfig:
		return &ExternalMCPConfig{URL: c.URL}
	case *LatitudeConfig:
		return &LatitudeConfig{}
	default:
		return cfg
	}
}
