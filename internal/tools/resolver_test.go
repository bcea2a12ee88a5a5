package tools

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/triage-ai/palisade/services/integration_engine/internal/errs"
	"github.com/triage-ai/palisade/services/integration_engine/internal/integration"
	"github.com/triage-ai/palisade/services/integration_engine/internal/remote"
	"github.com/triage-ai/palisade/services/integration_engine/internal/telemetry"
)

// ---------------------------------------------------------------------------
// stubs
// ---------------------------------------------------------------------------

type stubLookup struct {
	integrations map[string]*integration.Integration
}

func (s *stubLookup) FindIntegrationByName(_ context.Context, _ string, name string) (*integration.Integration, error) {
	integ, ok := s.integrations[name]
	if !ok {
		return nil, errs.NotFound("integration %q not found", name)
	}
	return integ, nil
}

type stubSource struct {
	mu        sync.Mutex
	tools     map[string][]remote.ToolDefinition
	listErr   error
	listCalls map[string]int
	call      func(name string, args map[string]any) (any, error)
}

func (s *stubSource) ListTools(_ context.Context, integ *integration.Integration) ([]remote.ToolDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listCalls == nil {
		s.listCalls = make(map[string]int)
	}
	s.listCalls[integ.Name]++
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.tools[integ.Name], nil
}

func (s *stubSource) CallTool(_ context.Context, _ *integration.Integration, name string, args map[string]any) (any, error) {
	return s.call(name, args)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*telemetry.ToolExecutedEvent
	spans  []string
	tracer trace.Tracer
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{tracer: noop.NewTracerProvider().Tracer("test")}
}

func (p *recordingPublisher) ToolExecuted(event *telemetry.ToolExecutedEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	p.mu.Lock()
	p.spans = append(p.spans, name)
	p.mu.Unlock()
	return p.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func pipedream(id, name, app string) *integration.Integration {
	return &integration.Integration{
		ID:   id,
		Name: name,
		Type: integration.TypePipedream,
		Configuration: &integration.PipedreamConfig{
			AppName:        app,
			ConnectionID:   "apn_" + id,
			ExternalUserID: "user",
			Metadata:       &integration.PipedreamMetadata{DisplayName: app, ImageURL: "https://img/" + app + ".png"},
		},
	}
}

func def(name, description string) remote.ToolDefinition {
	return remote.ToolDefinition{
		Name:        name,
		DisplayName: strings.ToUpper(name),
		Description: description,
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"text": map[string]any{"type": "string"}},
			"required":   []any{"text"},
		},
	}
}

func newFixture() (*Resolver, *stubSource, *recordingPublisher) {
	lookup := &stubLookup{integrations: map[string]*integration.Integration{
		"foo": pipedream("int-foo", "foo", "slack"),
		"bar": pipedream("int-bar", "bar", "github"),
		"latitude": {
			ID:            "int-lat",
			Name:          "latitude",
			Type:          integration.TypeLatitude,
			Configuration: &integration.LatitudeConfig{},
		},
		"pending": {
			ID:            "int-pending",
			Name:          "pending",
			Type:          integration.TypePipedream,
			Configuration: &integration.PipedreamConfig{AppName: "notion"},
		},
	}}
	src := &stubSource{
		tools: map[string][]remote.ToolDefinition{
			"foo": {def("a", "tool a"), def("b", "tool b")},
			"bar": {def("a", "bar's a"), def("c", "tool c")},
		},
		call: func(name string, args map[string]any) (any, error) {
			return "ok:" + name + ":" + args["text"].(string), nil
		},
	}
	pub := newRecordingPublisher()
	return NewResolver(lookup, src, pub, zap.NewNop()), src, pub
}

// ---------------------------------------------------------------------------
// Resolve
// ---------------------------------------------------------------------------

func TestResolve_LoadsEachIntegrationOnce(t *testing.T) {
	r, src, _ := newFixture()

	got, err := r.Resolve(context.Background(), "ws-1", []string{"foo/a", "foo/b"})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if len(got) != 2 || got["a"] == nil || got["b"] == nil {
		t.Fatalf("expected tools a and b, got %v", got)
	}
	if src.listCalls["foo"] != 1 {
		t.Fatalf("expected 1 list call for foo, got %d", src.listCalls["foo"])
	}
}

func TestResolve_WildcardExpandsAllTools(t *testing.T) {
	r, _, _ := newFixture()

	got, err := r.Resolve(context.Background(), "ws-1", []string{"bar/*"})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if len(got) != 2 || got["a"] == nil || got["c"] == nil {
		t.Fatalf("expected tools a and c, got %v", got)
	}
}

func TestResolve_LastWriteWins(t *testing.T) {
	r, _, _ := newFixture()

	got, err := r.Resolve(context.Background(), "ws-1", []string{"foo/a", "bar/*"})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if got["a"].SourceData.IntegrationID != "int-bar" {
		t.Fatalf("expected later reference to win, got %s", got["a"].SourceData.IntegrationID)
	}

	got, err = r.Resolve(context.Background(), "ws-1", []string{"bar/*", "foo/a"})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if got["a"].SourceData.IntegrationID != "int-foo" {
		t.Fatalf("expected later reference to win, got %s", got["a"].SourceData.IntegrationID)
	}
}

func TestResolve_Errors(t *testing.T) {
	tests := []struct {
		name  string
		refs  []string
		check func(error) bool
	}{
		{name: "malformed", refs: []string{"foo/a", "foobar"}, check: errs.IsBadRequest},
		{name: "unknown tool", refs: []string{"foo/zzz"}, check: errs.IsNotFound},
		{name: "unknown integration", refs: []string{"nope/a"}, check: errs.IsNotFound},
		{name: "unconfigured integration", refs: []string{"pending/*"}, check: errs.IsNotFound},
		{name: "built-in integration", refs: []string{"latitude/x"}, check: errs.IsBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _, _ := newFixture()
			got, err := r.Resolve(context.Background(), "ws-1", tt.refs)
			if !tt.check(err) {
				t.Fatalf("unexpected error %v", err)
			}
			if got != nil {
				t.Fatalf("expected no partial result, got %v", got)
			}
		})
	}
}

func TestResolve_ListFailureAborts(t *testing.T) {
	r, src, _ := newFixture()
	src.listErr = errs.Upstream(errors.New("registry down"))

	_, err := r.Resolve(context.Background(), "ws-1", []string{"foo/a", "bar/c"})
	if !errs.IsUpstream(err) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestResolve_SourceData(t *testing.T) {
	r, _, _ := newFixture()

	got, err := r.Resolve(context.Background(), "ws-1", []string{"foo/a"})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	sd := got["a"].SourceData
	want := SourceData{Source: SourceIntegration, IntegrationID: "int-foo", ToolLabel: "A", ImageURL: "https://img/slack.png"}
	if sd != want {
		t.Fatalf("got %+v, want %+v", sd, want)
	}
}

func TestResolve_DescriptionTruncated(t *testing.T) {
	r, src, _ := newFixture()
	src.tools["foo"] = []remote.ToolDefinition{
		def("long", strings.Repeat("x", 2000)),
		{Name: "bare"},
	}

	got, err := r.Resolve(context.Background(), "ws-1", []string{"foo/*"})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if n := len(got["long"].Definition.Description); n != MaxDescriptionLength {
		t.Fatalf("expected description of %d chars, got %d", MaxDescriptionLength, n)
	}
	if got["bare"].Definition.Description != "" {
		t.Fatalf("expected empty description, got %q", got["bare"].Definition.Description)
	}
	if got["bare"].Definition.InputSchema["type"] != "object" {
		t.Fatalf("expected default object schema, got %v", got["bare"].Definition.InputSchema)
	}
}

// ---------------------------------------------------------------------------
// Execute
// ---------------------------------------------------------------------------

func resolveOne(t *testing.T, r *Resolver, ref string) *ResolvedTool {
	t.Helper()
	got, err := r.Resolve(context.Background(), "ws-1", []string{ref})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	for _, tool := range got {
		return tool
	}
	t.Fatalf("no tool resolved for %s", ref)
	return nil
}

func TestExecute_Success(t *testing.T) {
	r, _, pub := newFixture()
	tool := resolveOne(t, r, "foo/a")

	res := tool.Execute(context.Background(), map[string]any{"text": "hi"})
	if res.IsError || res.Value != "ok:a:hi" {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(pub.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(pub.events))
	}
	ev := pub.events[0]
	if ev.WorkspaceID != "ws-1" || ev.IntegrationID != "int-foo" || ev.ToolName != "a" || ev.IsError || ev.ExecutionID == "" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestExecute_ErrorBecomesResult(t *testing.T) {
	r, src, pub := newFixture()
	src.call = func(string, map[string]any) (any, error) {
		return nil, errs.Upstream(errors.New("rate limited"))
	}
	tool := resolveOne(t, r, "foo/a")

	res := tool.Execute(context.Background(), map[string]any{"text": "hi"})
	if !res.IsError || res.Value != "rate limited" {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(pub.events) != 1 || !pub.events[0].IsError {
		t.Fatalf("expected an error event, got %+v", pub.events)
	}
}

func TestExecute_PanicBecomesResult(t *testing.T) {
	r, src, pub := newFixture()
	src.call = func(string, map[string]any) (any, error) {
		panic("nil map")
	}
	tool := resolveOne(t, r, "foo/a")

	res := tool.Execute(context.Background(), map[string]any{"text": "hi"})
	if !res.IsError || !strings.Contains(res.Value.(string), "nil map") {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(pub.events) != 1 || !pub.events[0].IsError {
		t.Fatalf("expected an error event, got %+v", pub.events)
	}
}

func TestExecute_InvalidArgumentsNeverReachSource(t *testing.T) {
	r, src, _ := newFixture()
	called := false
	src.call = func(string, map[string]any) (any, error) {
		called = true
		return nil, nil
	}
	tool := resolveOne(t, r, "foo/a")

	res := tool.Execute(context.Background(), map[string]any{"text": 42})
	if !res.IsError || !strings.HasPrefix(res.Value.(string), "invalid arguments for a") {
		t.Fatalf("unexpected result %+v", res)
	}
	if called {
		t.Fatal("source must not be called with invalid arguments")
	}

	res = tool.Execute(context.Background(), nil)
	if !res.IsError {
		t.Fatalf("expected missing required argument to fail, got %+v", res)
	}
}
