package trigger

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/triage-ai/palisade/services/integration_engine/internal/clone"
	"github.com/triage-ai/palisade/services/integration_engine/internal/errs"
	"github.com/triage-ai/palisade/services/integration_engine/internal/integration"
)

var fixedNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func TestBuild_ScheduledComputesRunTimes(t *testing.T) {
	b := NewBuilder(func() time.Time { return fixedNow })

	cfg, err := b.Build(TypeScheduled, json.RawMessage(`{
		"cronExpression": "0 * * * *",
		"lastRun": "2001-01-01T00:00:00Z",
		"nextRunTime": "2001-01-01T01:00:00Z"
	}`))
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	sc := cfg.(*ScheduledConfig)
	if !sc.LastRun.Equal(fixedNow) {
		t.Fatalf("expected lastRun %v, got %v", fixedNow, sc.LastRun)
	}
	if !sc.NextRunTime.After(sc.LastRun) {
		t.Fatalf("expected nextRunTime after lastRun, got %v <= %v", sc.NextRunTime, sc.LastRun)
	}
	want := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	if !sc.NextRunTime.Equal(want) {
		t.Fatalf("expected nextRunTime %v, got %v", want, sc.NextRunTime)
	}
}

func TestBuild_ScheduledOnTheBoundary(t *testing.T) {
	onHour := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	b := NewBuilder(func() time.Time { return onHour })

	cfg, err := b.Build(TypeScheduled, json.RawMessage(`{"cronExpression": "0 * * * *"}`))
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if sc := cfg.(*ScheduledConfig); !sc.NextRunTime.After(sc.LastRun) {
		t.Fatalf("expected strictly later nextRunTime, got %v", sc.NextRunTime)
	}
}

func TestBuild_InvalidCron(t *testing.T) {
	_, err := NewBuilder(nil).Build(TypeScheduled, json.RawMessage(`{"cronExpression": "every hour"}`))
	if !errs.IsBadRequest(err) {
		t.Fatalf("expected bad request, got %v", err)
	}
}

func TestBuild_PassThroughVariants(t *testing.T) {
	b := NewBuilder(nil)

	email, err := b.Build(TypeEmail, json.RawMessage(`{"replyWithResponse": true, "emailWhitelist": ["a@b.c"]}`))
	if err != nil {
		t.Fatalf("email: %v", err)
	}
	wantEmail := &EmailConfig{ReplyWithResponse: true, EmailWhitelist: []string{"a@b.c"}}
	if diff := cmp.Diff(wantEmail, email); diff != "" {
		t.Fatalf("email mismatch (-want +got):\n%s", diff)
	}

	integ, err := b.Build(TypeIntegration, json.RawMessage(`{
		"integrationId": "int-1",
		"componentId": "slack-new-message",
		"properties": {"channel": "C1"},
		"payloadParameters": ["text"]
	}`))
	if err != nil {
		t.Fatalf("integration: %v", err)
	}
	wantInteg := &IntegrationConfig{
		IntegrationID:     "int-1",
		ComponentID:       "slack-new-message",
		Properties:        map[string]any{"channel": "C1"},
		PayloadParameters: []string{"text"},
	}
	if diff := cmp.Diff(wantInteg, integ); diff != "" {
		t.Fatalf("integration mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_UnknownType(t *testing.T) {
	_, err := NewBuilder(nil).Build(Type("webhook"), json.RawMessage(`{}`))
	if !errs.IsBadRequest(err) {
		t.Fatalf("expected bad request, got %v", err)
	}
}

func TestStripForClone(t *testing.T) {
	b := NewBuilder(func() time.Time { return fixedNow })
	mapping := &clone.Mapping{ByID: map[string]*integration.Integration{
		"origin-int": {ID: "target-int"},
	}}

	cfg, err := b.StripForClone(&IntegrationConfig{
		IntegrationID: "origin-int",
		ComponentID:   "c",
		TriggerID:     "dc_123",
	}, mapping)
	if err != nil {
		t.Fatalf("StripForClone returned error: %v", err)
	}
	ic := cfg.(*IntegrationConfig)
	if ic.IntegrationID != "target-int" || ic.TriggerID != "" {
		t.Fatalf("unexpected stripped config %+v", ic)
	}

	cfg, err = b.StripForClone(&ScheduledConfig{CronExpression: "0 * * * *"}, mapping)
	if err != nil {
		t.Fatalf("StripForClone returned error: %v", err)
	}
	if sc := cfg.(*ScheduledConfig); !sc.LastRun.Equal(fixedNow) {
		t.Fatalf("expected rebuilt schedule, got %+v", sc)
	}

	_, err = b.StripForClone(&IntegrationConfig{IntegrationID: "unknown"}, mapping)
	if !errs.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}
