package schema

import (
	"context"

	"go.uber.org/zap"

	"github.com/triage-ai/palisade/services/integration_engine/internal/errs"
	"github.com/triage-ai/palisade/services/integration_engine/internal/integration"
	"github.com/triage-ai/palisade/services/integration_engine/internal/props"
	"github.com/triage-ai/palisade/services/integration_engine/internal/remote"
)

// Validator checks proposed component configurations, including the props a
// configuration reveals through registry reloads.
type Validator struct {
	client     remote.Client
	assembler  *Assembler
	logger     *zap.Logger
	transitive bool
}

// ValidatorOption customizes a Validator.
type ValidatorOption func(*Validator)

// WithTransitiveReload makes the reload pass also reload props that were
// themselves revealed by a reload. Each prop is reloaded at most once.
// Without it, only props declared in the original schema are reloaded.
func WithTransitiveReload() ValidatorOption {
	return func(v *Validator) { v.transitive = true }
}

// NewValidator creates a Validator.
func NewValidator(client remote.Client, assembler *Assembler, logger *zap.Logger, opts ...ValidatorOption) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	v := &Validator{client: client, assembler: assembler, logger: logger}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate assembles the component schema for integ and validates config against it.
// It returns the final schema, which includes props revealed by reloads.
func (v *Validator) Validate(ctx context.Context, componentID string, integ *integration.Integration, config map[string]any) ([]props.ConfigurableProp, error) {
	schema, err := v.assembler.Assemble(ctx, componentID, integ)
	if err != nil {
		return nil, err
	}
	return v.ValidateAgainst(ctx, componentID, integ, config, schema)
}

// ValidateAgainst validates config against an already assembled schema.
// Failures are reported as *errs.ValidationError carrying every problem at once.
func (v *Validator) ValidateAgainst(
	ctx context.Context,
	componentID string,
	integ *integration.Integration,
	config map[string]any,
	schema []props.ConfigurableProp,
) ([]props.ConfigurableProp, error) {
	if problems := CheckConfiguration(config, schema, v.logger); len(problems) > 0 {
		return schema, &errs.ValidationError{Errors: problems, Schema: schema}
	}
	return v.validateChoices(ctx, componentID, integ, config, schema)
}

// validateChoices reloads every reload-flagged prop with its chosen value,
// appends the revealed props (enriched with remote options) to the schema and
// validates the whole configuration again.
func (v *Validator) validateChoices(
	ctx context.Context,
	componentID string,
	integ *integration.Integration,
	config map[string]any,
	schema []props.ConfigurableProp,
) ([]props.ConfigurableProp, error) {
	account, ok := integ.Account()
	if !ok {
		return schema, nil
	}

	current := append([]props.ConfigurableProp(nil), schema...)
	seeds := v.assembler.Seeds(schema, account)

	var queue []props.ConfigurableProp
	for _, p := range schema {
		if p.ReloadProps {
			queue = append(queue, p)
		}
	}

	reloaded := make(map[string]struct{})
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if _, done := reloaded[p.Name]; done {
			continue
		}
		reloaded[p.Name] = struct{}{}

		value, present := config[p.Name]
		if !present || value == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return current, err
		}

		configured := copyMap(seeds)
		configured[p.Name] = value
		res, err := v.client.Reload(ctx, remote.ReloadRequest{
			ComponentID:     componentID,
			ConfiguredProps: configured,
			Account:         account,
		})
		if err != nil {
			return current, errs.Upstream(err)
		}
		if len(res.Errors) > 0 {
			return current, &errs.ValidationError{Errors: res.Errors, Schema: current}
		}

		known := props.Names(current)
		var revealed []props.ConfigurableProp
		for _, np := range props.Relevant(res.DynamicProps) {
			if _, dup := known[np.Name]; dup {
				continue
			}
			revealed = append(revealed, np)
		}
		if len(revealed) == 0 {
			continue
		}

		enriched, err := v.assembler.Enrich(ctx, componentID, account, revealed, seeds)
		if err != nil {
			return current, err
		}
		current = append(current, enriched...)
		v.logger.Debug("reload revealed props",
			zap.String("component_id", componentID),
			zap.String("prop", p.Name),
			zap.Int("revealed", len(enriched)),
		)

		if problems := CheckConfiguration(config, current, v.logger); len(problems) > 0 {
			return current, &errs.ValidationError{Errors: problems, Schema: current}
		}

		if v.transitive {
			for _, np := range enriched {
				if np.ReloadProps {
					queue = append(queue, np)
				}
			}
		}
	}
	return current, nil
}
