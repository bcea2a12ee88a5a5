package schema

import (
	"context"

	"go.uber.org/zap"

	"github.com/triage-ai/palisade/services/integration_engine/internal/errs"
	"github.com/triage-ai/palisade/services/integration_engine/internal/integration"
	"github.com/triage-ai/palisade/services/integration_engine/internal/props"
	"github.com/triage-ai/palisade/services/integration_engine/internal/remote"
)

// Assembler builds the user-facing configuration schema of a component.
type Assembler struct {
	client   remote.Client
	defaults map[string]any
	logger   *zap.Logger
}

// NewAssembler creates an Assembler. defaults are product-wide seed values
// (e.g. a bot name or icon) applied to props of the same name.
func NewAssembler(client remote.Client, defaults map[string]any, logger *zap.Logger) *Assembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assembler{client: client, defaults: defaults, logger: logger}
}

// Assemble returns the component's relevant props. For an integration without a
// linked account every prop is optional and nothing is fetched remotely; otherwise
// dynamic props carry their remote option sets. Any remote failure aborts.
func (a *Assembler) Assemble(ctx context.Context, componentID string, integ *integration.Integration) ([]props.ConfigurableProp, error) {
	if integ.Type != integration.TypePipedream {
		return nil, errs.BadRequest("integration %q of type %s has no component schema", integ.Name, integ.Type)
	}

	comp, err := a.client.GetComponent(ctx, componentID)
	if err != nil {
		return nil, errs.Upstream(err)
	}
	relevant := props.Relevant(comp.ConfigurableProps)

	account, ok := integ.Account()
	if !ok {
		return props.BestEffort(relevant), nil
	}
	return a.Enrich(ctx, componentID, account, relevant, a.Seeds(comp.ConfigurableProps, account))
}

// Seeds are the configured values sent along with option and reload queries:
// app props bound to the linked account plus product defaults.
func (a *Assembler) Seeds(declared []props.ConfigurableProp, account integration.Account) map[string]any {
	seeds := make(map[string]any)
	if account.AppName != "" {
		seeds[account.AppName] = remote.AppSeed(account)
	}
	for _, p := range declared {
		if p.Type == props.TypeApp {
			seeds[p.Name] = remote.AppSeed(account)
			continue
		}
		if v, ok := a.defaults[p.Name]; ok {
			seeds[p.Name] = v
		}
	}
	return seeds
}

// Enrich attaches remote option sets to the dynamic props in in. The input slice is not modified.
func (a *Assembler) Enrich(
	ctx context.Context,
	componentID string,
	account integration.Account,
	in []props.ConfigurableProp,
	seeds map[string]any,
) ([]props.ConfigurableProp, error) {
	out := make([]props.ConfigurableProp, len(in))
	for i, p := range in {
		if p.IsDynamic() {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			opts, err := a.client.FetchRemoteOptions(ctx, remote.OptionsRequest{
				ComponentID:     componentID,
				PropName:        p.Name,
				ConfiguredProps: copyMap(seeds),
				Account:         account,
			})
			if err != nil {
				return nil, errs.Upstream(err)
			}
			p.RemoteOptionValues = props.NewOptionSet(opts...)
			a.logger.Debug("fetched remote options",
				zap.String("component_id", componentID),
				zap.String("prop", p.Name),
				zap.Int("options", len(opts)),
			)
		}
		out[i] = p
	}
	return out, nil
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
