package schema

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/triage-ai/palisade/services/integration_engine/internal/props"
)

func TestCheckConfiguration_ReportsEveryProblem(t *testing.T) {
	schema := []props.ConfigurableProp{
		{Name: "channel", Type: props.TypeString},
		{Name: "text", Type: props.TypeString},
		{Name: "count", Type: props.TypeInteger},
		{Name: "note", Type: props.TypeString, Optional: true},
	}
	config := map[string]any{"count": "three"}

	problems := CheckConfiguration(config, schema, zap.NewNop())
	want := []string{
		"Missing value for channel",
		"Missing value for text",
		"Invalid type for count: expected integer got string",
	}
	if diff := cmp.Diff(want, problems); diff != "" {
		t.Fatalf("problems mismatch (-want +got):\n%s", diff)
	}
}

func TestCheckConfiguration_ValidConfiguration(t *testing.T) {
	schema := []props.ConfigurableProp{
		{Name: "channel", Type: props.TypeString},
		{Name: "tags", Type: props.TypeStringArray},
		{Name: "notify", Type: props.TypeBoolean},
		{Name: "limit", Type: props.TypeInteger},
		{Name: "ids", Type: props.TypeIntegerArray},
		{Name: "extra", Type: props.TypeObject},
		{Name: "anything", Type: props.TypeAny},
		{Name: "base", Type: props.TypeAirtableBaseID},
		{Name: "channels", Type: props.TypeDiscordChannelArray},
	}
	config := map[string]any{
		"channel":  "C1",
		"tags":     []any{"a", "b"},
		"notify":   true,
		"limit":    float64(10),
		"ids":      []int{1, 2},
		"extra":    map[string]any{"k": "v"},
		"anything": []any{1, "x"},
		"base":     "app123",
		"channels": []string{"c1"},
	}

	if problems := CheckConfiguration(config, schema, nil); len(problems) != 0 {
		t.Fatalf("expected valid configuration, got %v", problems)
	}
}

func TestCheckConfiguration_RemoteOptionContainment(t *testing.T) {
	schema := []props.ConfigurableProp{{
		Name:               "channels",
		Type:               props.TypeStringArray,
		RemoteOptions:      true,
		RemoteOptionValues: props.NewOptionSet(opts("A", "B", "C")...),
	}}

	problems := CheckConfiguration(map[string]any{"channels": []any{"A", "D"}}, schema, nil)
	if len(problems) != 1 {
		t.Fatalf("expected 1 problem, got %v", problems)
	}
	if !strings.Contains(problems[0], "D") || strings.Contains(problems[0], "channels: A") {
		t.Fatalf("expected error naming D only, got %q", problems[0])
	}

	if problems := CheckConfiguration(map[string]any{"channels": []any{"A", "B"}}, schema, nil); len(problems) != 0 {
		t.Fatalf("expected [A B] to be accepted, got %v", problems)
	}
}

func TestCheckConfiguration_ScalarRemoteOption(t *testing.T) {
	schema := []props.ConfigurableProp{{
		Name:               "priority",
		Type:               props.TypeInteger,
		RemoteOptionValues: props.NewOptionSet(props.Option{Label: "High", Value: float64(1)}, props.Option{Label: "Low", Value: float64(2)}),
	}}

	if problems := CheckConfiguration(map[string]any{"priority": 1}, schema, nil); len(problems) != 0 {
		t.Fatalf("expected 1 to match option 1.0, got %v", problems)
	}
	problems := CheckConfiguration(map[string]any{"priority": 3}, schema, nil)
	if len(problems) != 1 || !strings.Contains(problems[0], "Expected one of: 1, 2") {
		t.Fatalf("unexpected problems: %v", problems)
	}
}

func TestCheckConfiguration_AlertNeverRequired(t *testing.T) {
	schema := []props.ConfigurableProp{{Name: "info", Type: props.TypeAlert}}
	if problems := CheckConfiguration(map[string]any{}, schema, nil); len(problems) != 0 {
		t.Fatalf("alert props must never be required, got %v", problems)
	}
}

func TestCheckConfiguration_NilValueIsMissing(t *testing.T) {
	schema := []props.ConfigurableProp{{Name: "channel", Type: props.TypeString}}
	problems := CheckConfiguration(map[string]any{"channel": nil}, schema, nil)
	if len(problems) != 1 || problems[0] != "Missing value for channel" {
		t.Fatalf("unexpected problems: %v", problems)
	}
}

func TestCheckConfiguration_SQLShape(t *testing.T) {
	schema := []props.ConfigurableProp{{Name: "sql", Type: props.TypeSQL}}

	good := map[string]any{"sql": map[string]any{"app": "postgresql", "query": "select 1", "params": []any{}}}
	if problems := CheckConfiguration(good, schema, nil); len(problems) != 0 {
		t.Fatalf("expected sql value to be valid, got %v", problems)
	}

	bad := map[string]any{"sql": map[string]any{"query": "select 1"}}
	problems := CheckConfiguration(bad, schema, nil)
	if len(problems) != 1 || !strings.HasPrefix(problems[0], "Invalid type for sql") {
		t.Fatalf("expected sql shape error, got %v", problems)
	}
}

func TestCheckConfiguration_UnknownTypeFailsClosed(t *testing.T) {
	schema := []props.ConfigurableProp{{Name: "mystery", Type: props.PropType("$.unknown.thing")}}
	problems := CheckConfiguration(map[string]any{"mystery": "x"}, schema, nil)
	if len(problems) != 1 || !strings.Contains(problems[0], "unsupported prop type") {
		t.Fatalf("expected unknown type to be rejected, got %v", problems)
	}
}

func TestCheckConfiguration_IntegerRejectsFractions(t *testing.T) {
	schema := []props.ConfigurableProp{{Name: "n", Type: props.TypeInteger}}
	problems := CheckConfiguration(map[string]any{"n": 1.5}, schema, nil)
	want := []string{"Invalid type for n: expected integer got number"}
	if diff := cmp.Diff(want, problems); diff != "" {
		t.Fatalf("problems mismatch (-want +got):\n%s", diff)
	}
}
