package trigger

import (
	"encoding/json"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/triage-ai/palisade/services/integration_engine/internal/clone"
	"github.com/triage-ai/palisade/services/integration_engine/internal/errs"
)

// Builder turns caller-supplied trigger configurations into their persisted form.
type Builder struct {
	now func() time.Time
}

// NewBuilder creates a Builder. A nil clock defaults to time.Now.
func NewBuilder(now func() time.Time) *Builder {
	if now == nil {
		now = time.Now
	}
	return &Builder{now: now}
}

// Build decodes raw as a configuration of type t. Scheduled configurations get
// LastRun set to now and NextRunTime computed from the cron expression.
func (b *Builder) Build(t Type, raw json.RawMessage) (Configuration, error) {
	switch t {
	case TypeEmail, TypeScheduled, TypeIntegration:
	default:
		return nil, errs.BadRequest("unsupported trigger type %q", t)
	}
	cfg, err := DecodeConfiguration(t, raw)
	if err != nil {
		return nil, errs.BadRequest("invalid %s trigger configuration: %v", t, err)
	}
	return b.finish(cfg)
}

func (b *Builder) finish(cfg Configuration) (Configuration, error) {
	switch c := cfg.(type) {
	case *EmailConfig:
		return c, nil
	case *IntegrationConfig:
		if c.IntegrationID == "" || c.ComponentID == "" {
			return nil, errs.BadRequest("integration trigger requires integrationId and componentId")
		}
		return c, nil
	case *ScheduledConfig:
		return b.schedule(c.CronExpression)
	default:
		return nil, errs.BadRequest("unsupported trigger configuration %T", cfg)
	}
}

func (b *Builder) schedule(expr string) (*ScheduledConfig, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, errs.BadRequest("invalid cron expression %q: %v", expr, err)
	}
	now := b.now().UTC()
	return &ScheduledConfig{
		CronExpression: expr,
		LastRun:        now,
		NextRunTime:    sched.Next(now),
	}, nil
}

// StripForClone prepares a configuration for a cloned document: integration
// triggers point at the mapped integration and lose their remote deployment,
// scheduled triggers are rebuilt.
func (b *Builder) StripForClone(cfg Configuration, mapping *clone.Mapping) (Configuration, error) {
	switch c := cfg.(type) {
	case *EmailConfig:
		out := *c
		return &out, nil
	case *ScheduledConfig:
		return b.schedule(c.CronExpression)
	case *IntegrationConfig:
		target, ok := mapping.ByID[c.IntegrationID]
		if !ok {
			return nil, errs.NotFound("no cloned integration for %s", c.IntegrationID)
		}
		out := *c
		out.IntegrationID = target.ID
		out.TriggerID = ""
		return &out, nil
	default:
		return nil, errs.BadRequest("unsupported trigger configuration %T", cfg)
	}
}
