package schema

import (
	"context"
	"errors"

	"github.com/triage-ai/palisade/services/integration_engine/internal/integration"
	"github.com/triage-ai/palisade/services/integration_engine/internal/props"
	"github.com/triage-ai/palisade/services/integration_engine/internal/remote"
)

// stubClient is a scripted remote.Client.
type stubClient struct {
	component  *remote.Component
	options    map[string][]props.Option
	optionsErr error
	// reloads maps a prop name to the result of reloading it.
	reloads map[string]*remote.ReloadResult

	optionCalls []remote.OptionsRequest
	reloadCalls []remote.ReloadRequest
}

func (s *stubClient) GetComponent(_ context.Context, _ string) (*remote.Component, error) {
	if s.component == nil {
		return nil, errors.New("component not found")
	}
	return s.component, nil
}

func (s *stubClient) FetchRemoteOptions(_ context.Context, req remote.OptionsRequest) ([]props.Option, error) {
	s.optionCalls = append(s.optionCalls, req)
	if s.optionsErr != nil {
		return nil, s.optionsErr
	}
	return s.options[req.PropName], nil
}

func (s *stubClient) Reload(_ context.Context, req remote.ReloadRequest) (*remote.ReloadResult, error) {
	s.reloadCalls = append(s.reloadCalls, req)
	for name := range req.ConfiguredProps {
		if res, ok := s.reloads[name]; ok {
			return res, nil
		}
	}
	return &remote.ReloadResult{}, nil
}

func (s *stubClient) ExecuteAction(context.Context, string, integration.Account, map[string]any) (any, error) {
	return nil, errors.New("not implemented")
}

func (s *stubClient) DeployTrigger(context.Context, remote.DeployRequest) (string, error) {
	return "", errors.New("not implemented")
}

func (s *stubClient) DestroyTrigger(context.Context, string, integration.Account) error {
	return errors.New("not implemented")
}

func (s *stubClient) ListTools(context.Context, *integration.Integration) ([]remote.ToolDefinition, error) {
	return nil, errors.New("not implemented")
}

func configuredSlack() *integration.Integration {
	return &integration.Integration{
		ID:          "int-1",
		WorkspaceID: "ws-1",
		Name:        "slack",
		Type:        integration.TypePipedream,
		Configuration: &integration.PipedreamConfig{
			AppName:        "slack",
			ConnectionID:   "apn_123",
			ExternalUserID: "user-1",
		},
	}
}

func unconfiguredSlack() *integration.Integration {
	return &integration.Integration{
		ID:            "int-2",
		WorkspaceID:   "ws-1",
		Name:          "slack",
		Type:          integration.TypePipedream,
		Configuration: &integration.PipedreamConfig{AppName: "slack"},
	}
}

func opts(values ...string) []props.Option {
	out := make([]props.Option, len(values))
	for i, v := range values {
		out[i] = props.Option{Label: v, Value: v}
	}
	return out
}
