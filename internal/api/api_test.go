package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/triage-ai/palisade/services/integration_engine/internal/auth"
	"github.com/triage-ai/palisade/services/integration_engine/internal/clone"
	"github.com/triage-ai/palisade/services/integration_engine/internal/errs"
	"github.com/triage-ai/palisade/services/integration_engine/internal/integration"
	"github.com/triage-ai/palisade/services/integration_engine/internal/props"
	"github.com/triage-ai/palisade/services/integration_engine/internal/remote"
	"github.com/triage-ai/palisade/services/integration_engine/internal/telemetry"
	"github.com/triage-ai/palisade/services/integration_engine/internal/tools"
	"github.com/triage-ai/palisade/services/integration_engine/internal/trigger"
)

const testToken = "wsk_test_token_0123456789"

// --- stubs ---

type stubIntegrations struct {
	byName map[string]*integration.Integration
}

func (s *stubIntegrations) FindIntegrationByName(_ context.Context, _ string, name string) (*integration.Integration, error) {
	if i, ok := s.byName[name]; ok {
		return i, nil
	}
	return nil, errs.NotFound("integration %q not found", name)
}

func (s *stubIntegrations) ListIntegrations(_ context.Context, _ string) ([]*integration.Integration, error) {
	out := make([]*integration.Integration, 0, len(s.byName))
	for _, i := range s.byName {
		out = append(out, i)
	}
	return out, nil
}

type stubAssembler struct {
	schema []props.ConfigurableProp
	err    error
}

func (s *stubAssembler) Assemble(_ context.Context, _ string, _ *integration.Integration) ([]props.ConfigurableProp, error) {
	return s.schema, s.err
}

type stubValidator struct {
	gotComponent string
	gotConfig    map[string]any
	err          error
}

func (s *stubValidator) Validate(_ context.Context, componentID string, _ *integration.Integration, config map[string]any) ([]props.ConfigurableProp, error) {
	s.gotComponent = componentID
	s.gotConfig = config
	if s.err != nil {
		return nil, s.err
	}
	return []props.ConfigurableProp{{Name: "channel", Type: props.TypeString}}, nil
}

type stubTriggers struct {
	created *trigger.CreateInput
	updated *trigger.UpdateInput
	deleted *trigger.DeleteInput
	err     error
}

func (s *stubTriggers) Create(_ context.Context, in trigger.CreateInput) (*trigger.DocumentTrigger, error) {
	s.created = &in
	if s.err != nil {
		return nil, s.err
	}
	return &trigger.DocumentTrigger{
		UUID:          "trigger-1",
		CommitUUID:    in.CommitUUID,
		DocumentUUID:  in.DocumentUUID,
		TriggerType:   in.TriggerType,
		Configuration: &trigger.EmailConfig{Name: "inbox"},
	}, nil
}

func (s *stubTriggers) Update(_ context.Context, in trigger.UpdateInput) (*trigger.DocumentTrigger, error) {
	s.updated = &in
	if s.err != nil {
		return nil, s.err
	}
	return &trigger.DocumentTrigger{UUID: in.TriggerUUID, TriggerType: trigger.TypeEmail, Configuration: &trigger.EmailConfig{}}, nil
}

func (s *stubTriggers) Delete(_ context.Context, in trigger.DeleteInput) (*trigger.DocumentTrigger, error) {
	s.deleted = &in
	if s.err != nil {
		return nil, s.err
	}
	return &trigger.DocumentTrigger{UUID: in.TriggerUUID, TriggerType: trigger.TypeEmail, Configuration: &trigger.EmailConfig{}}, nil
}

type stubCloner struct {
	gotOrigins []*integration.Integration
	gotTarget  string
}

func (s *stubCloner) CloneForWorkspace(_ context.Context, origins []*integration.Integration, target, _ string) (*clone.Mapping, error) {
	s.gotOrigins = origins
	s.gotTarget = target
	m := &clone.Mapping{ByName: map[string]*integration.Integration{}, ByID: map[string]*integration.Integration{}}
	for _, o := range origins {
		copied := &integration.Integration{ID: "new-" + o.ID, WorkspaceID: target, Name: o.Name, Type: o.Type, Configuration: &integration.PipedreamConfig{AppName: "slack"}}
		m.ByName[o.Name] = copied
		m.ByID[o.ID] = copied
	}
	return m, nil
}

type stubSource struct {
	defs []remote.ToolDefinition
}

func (s *stubSource) ListTools(_ context.Context, _ *integration.Integration) ([]remote.ToolDefinition, error) {
	return s.defs, nil
}

func (s *stubSource) CallTool(_ context.Context, _ *integration.Integration, name string, args map[string]any) (any, error) {
	if name == "fail" {
		return nil, errs.Upstream(errors.New("channel_not_found"))
	}
	return map[string]any{"echo": args["text"]}, nil
}

type rejectAuth struct{ err error }

func (a rejectAuth) Authenticate(context.Context, string) (*auth.WorkspaceContext, error) {
	return nil, a.err
}

// --- helpers ---

func slackIntegration() *integration.Integration {
	return &integration.Integration{
		ID:          "int-1",
		WorkspaceID: "ws_1",
		Name:        "slack",
		Type:        integration.TypePipedream,
		Configuration: &integration.PipedreamConfig{
			AppName:        "slack",
			ConnectionID:   "apn_1",
			ExternalUserID: "user_1",
		},
	}
}

func newTestDeps() *Dependencies {
	integrations := &stubIntegrations{byName: map[string]*integration.Integration{"slack": slackIntegration()}}
	source := &stubSource{defs: []remote.ToolDefinition{
		{Name: "send_message", Description: "Send", InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"text": map[string]any{"type": "string"}},
			"required":   []any{"text"},
		}},
		{Name: "fail"},
	}}
	publisher := telemetry.NewPublisher(nil, noop.NewTracerProvider().Tracer("test"))
	return &Dependencies{
		Integrations: integrations,
		Assembler:    &stubAssembler{schema: []props.ConfigurableProp{{Name: "channel", Type: props.TypeString}}},
		Validator:    &stubValidator{},
		Resolver:     tools.NewResolver(integrations, source, publisher, zap.NewNop()),
		Triggers:     &stubTriggers{},
		Cloner:       &stubCloner{},
		Stripper:     trigger.NewBuilder(nil),
		Auth:         auth.NewStaticAuthenticator("ws_1"),
		Logger:       zap.NewNop(),
	}
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

// --- tests ---

func TestHealthz(t *testing.T) {
	rec := do(t, NewRouter(newTestDeps()), "GET", "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuth_MissingHeader(t *testing.T) {
	req := httptest.NewRequest("POST", "/v1/tools/resolve", nil)
	rec := httptest.NewRecorder()
	NewRouter(newTestDeps()).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuth_BackendUnavailable(t *testing.T) {
	deps := newTestDeps()
	deps.Auth = rejectAuth{err: auth.ErrAuthUnavailable}
	rec := do(t, NewRouter(deps), "POST", "/v1/tools/resolve", ResolveToolsReq{})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}

	deps.Auth = rejectAuth{err: auth.ErrInvalidAPIKey}
	rec = do(t, NewRouter(deps), "POST", "/v1/tools/resolve", ResolveToolsReq{})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/v1/tools/resolve", nil)
	rec := httptest.NewRecorder()
	NewRouter(newTestDeps()).ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("missing CORS header")
	}
}

func TestComponentSchema(t *testing.T) {
	rec := do(t, NewRouter(newTestDeps()), "POST", "/v1/components/slack-send-message/schema",
		ComponentSchemaReq{IntegrationName: "slack"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[ComponentSchemaResp](t, rec)
	if len(resp.Schema) != 1 || resp.Schema[0].Name != "channel" {
		t.Fatalf("unexpected schema %+v", resp.Schema)
	}
}

func TestComponentSchema_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"bad request", errs.BadRequest("not a component integration"), http.StatusBadRequest},
		{"not found", errs.NotFound("no component"), http.StatusNotFound},
		{"upstream", errs.Upstream(errors.New("registry down")), http.StatusBadGateway},
		{"internal", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := newTestDeps()
			deps.Assembler = &stubAssembler{err: tt.err}
			rec := do(t, NewRouter(deps), "POST", "/v1/components/c/schema", ComponentSchemaReq{IntegrationName: "slack"})
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestComponentSchema_UnknownIntegration(t *testing.T) {
	rec := do(t, NewRouter(newTestDeps()), "POST", "/v1/components/c/schema", ComponentSchemaReq{IntegrationName: "github"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestValidateConfiguration(t *testing.T) {
	deps := newTestDeps()
	validator := deps.Validator.(*stubValidator)
	rec := do(t, NewRouter(deps), "POST", "/v1/components/slack-send-message/validate", ValidateConfigurationReq{
		IntegrationName: "slack",
		Configuration:   map[string]any{"channel": "general"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if validator.gotComponent != "slack-send-message" {
		t.Errorf("expected component from path, got %q", validator.gotComponent)
	}
	if diff := cmp.Diff(map[string]any{"channel": "general"}, validator.gotConfig); diff != "" {
		t.Errorf("configuration mismatch (-want +got):\n%s", diff)
	}
	if !decode[ValidateConfigurationResp](t, rec).Valid {
		t.Error("expected valid=true")
	}
}

func TestValidateConfiguration_Invalid(t *testing.T) {
	deps := newTestDeps()
	schema := []props.ConfigurableProp{{Name: "channel", Type: props.TypeString}}
	deps.Validator = &stubValidator{err: &errs.ValidationError{
		Errors: []string{"Missing required property: channel", "Unknown property: foo"},
		Schema: schema,
	}}
	rec := do(t, NewRouter(deps), "POST", "/v1/components/c/validate", ValidateConfigurationReq{IntegrationName: "slack"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	resp := decode[ValidationErrorResp](t, rec)
	if diff := cmp.Diff([]string{"Missing required property: channel", "Unknown property: foo"}, resp.Errors); diff != "" {
		t.Errorf("errors mismatch (-want +got):\n%s", diff)
	}
	if len(resp.Schema) != 1 {
		t.Errorf("expected schema attached, got %+v", resp.Schema)
	}
}

func TestResolveTools(t *testing.T) {
	rec := do(t, NewRouter(newTestDeps()), "POST", "/v1/tools/resolve", ResolveToolsReq{Tools: []string{"slack/*"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[ResolveToolsResp](t, rec)
	if len(resp.Tools) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(resp.Tools))
	}
	send := resp.Tools["send_message"]
	if send.SourceData.IntegrationID != "int-1" || send.SourceData.Source != tools.SourceIntegration {
		t.Errorf("unexpected source data %+v", send.SourceData)
	}
}

func TestResolveTools_BadReference(t *testing.T) {
	rec := do(t, NewRouter(newTestDeps()), "POST", "/v1/tools/resolve", ResolveToolsReq{Tools: []string{"no-slash"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestExecuteTool(t *testing.T) {
	h := NewRouter(newTestDeps())

	rec := do(t, h, "POST", "/v1/tools/execute", ExecuteToolReq{
		Tool:      "slack/send_message",
		Arguments: map[string]any{"text": "hi"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[ExecuteToolResp](t, rec)
	if resp.IsError {
		t.Fatalf("unexpected error result %+v", resp)
	}
	if diff := cmp.Diff(map[string]any{"echo": "hi"}, resp.Value); diff != "" {
		t.Errorf("value mismatch (-want +got):\n%s", diff)
	}

	rec = do(t, h, "POST", "/v1/tools/execute", ExecuteToolReq{Tool: "slack/fail"})
	resp = decode[ExecuteToolResp](t, rec)
	if rec.Code != http.StatusOK || !resp.IsError || resp.Value != "channel_not_found" {
		t.Fatalf("expected error result, got %d %+v", rec.Code, resp)
	}

	rec = do(t, h, "POST", "/v1/tools/execute", ExecuteToolReq{Tool: "slack/send_message"})
	resp = decode[ExecuteToolResp](t, rec)
	if !resp.IsError {
		t.Fatalf("expected argument validation error, got %+v", resp)
	}
}

func TestExecuteTool_RejectsWildcard(t *testing.T) {
	rec := do(t, NewRouter(newTestDeps()), "POST", "/v1/tools/execute", ExecuteToolReq{Tool: "slack/*"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCreateTrigger(t *testing.T) {
	deps := newTestDeps()
	triggers := deps.Triggers.(*stubTriggers)
	rec := do(t, NewRouter(deps), "POST", "/v1/documents/doc-1/triggers", CreateTriggerReq{
		CommitUUID:    "draft",
		TriggerType:   trigger.TypeEmail,
		Configuration: json.RawMessage(`{"name":"inbox"}`),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if triggers.created.WorkspaceID != "ws_1" || triggers.created.DocumentUUID != "doc-1" {
		t.Fatalf("unexpected create input %+v", triggers.created)
	}
	if got := decode[map[string]any](t, rec)["uuid"]; got != "trigger-1" {
		t.Fatalf("expected uuid trigger-1, got %v", got)
	}
}

func TestCreateTrigger_RequiresFields(t *testing.T) {
	rec := do(t, NewRouter(newTestDeps()), "POST", "/v1/documents/doc-1/triggers", CreateTriggerReq{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestUpdateAndDeleteTrigger(t *testing.T) {
	deps := newTestDeps()
	triggers := deps.Triggers.(*stubTriggers)
	h := NewRouter(deps)

	rec := do(t, h, "PATCH", "/v1/triggers/trigger-9", UpdateTriggerReq{CommitUUID: "draft", Configuration: json.RawMessage(`{}`)})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if triggers.updated.TriggerUUID != "trigger-9" {
		t.Fatalf("unexpected update input %+v", triggers.updated)
	}

	rec = do(t, h, "DELETE", "/v1/triggers/trigger-9?commit_uuid=draft", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if triggers.deleted.CommitUUID != "draft" || triggers.deleted.TriggerUUID != "trigger-9" {
		t.Fatalf("unexpected delete input %+v", triggers.deleted)
	}

	rec = do(t, h, "DELETE", "/v1/triggers/trigger-9", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without commit_uuid, got %d", rec.Code)
	}

	triggers.err = errs.NotFound("trigger not found")
	rec = do(t, h, "DELETE", "/v1/triggers/missing?commit_uuid=draft", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestCloneIntegrations(t *testing.T) {
	deps := newTestDeps()
	cloner := deps.Cloner.(*stubCloner)
	rec := do(t, NewRouter(deps), "POST", "/v1/integrations/clone", CloneIntegrationsReq{
		TargetWorkspaceID: "ws_2",
		AuthorID:          "user_1",
		IntegrationNames:  []string{"slack"},
		Triggers: []CloneTriggerReq{{
			TriggerType:   trigger.TypeIntegration,
			Configuration: json.RawMessage(`{"integrationId":"int-1","componentId":"slack-new-message","triggerId":"dc_1"}`),
		}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if cloner.gotTarget != "ws_2" || len(cloner.gotOrigins) != 1 {
		t.Fatalf("unexpected clone call target=%s origins=%d", cloner.gotTarget, len(cloner.gotOrigins))
	}

	var resp struct {
		Integrations map[string]IntegrationResp `json:"integrations"`
		Triggers     []struct {
			Configuration trigger.IntegrationConfig `json:"configuration"`
		} `json:"triggers"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Integrations["slack"].ID != "new-int-1" || resp.Integrations["slack"].Configured {
		t.Fatalf("unexpected integration mapping %+v", resp.Integrations)
	}
	if len(resp.Triggers) != 1 {
		t.Fatalf("expected 1 trigger, got %d", len(resp.Triggers))
	}
	got := resp.Triggers[0].Configuration
	if got.IntegrationID != "new-int-1" || got.TriggerID != "" {
		t.Fatalf("expected remapped trigger without remote id, got %+v", got)
	}
}

func TestCloneIntegrations_RequiresTarget(t *testing.T) {
	rec := do(t, NewRouter(newTestDeps()), "POST", "/v1/integrations/clone", CloneIntegrationsReq{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
