package props

// ConfigurableProp is one field of a component's configuration schema.
type ConfigurableProp struct {
	Name          string   `json:"name"`
	Type          PropType `json:"type"`
	Label         string   `json:"label,omitempty"`
	Description   string   `json:"description,omitempty"`
	Optional      bool     `json:"optional,omitempty"`
	RemoteOptions bool     `json:"remoteOptions,omitempty"`
	ReloadProps   bool     `json:"reloadProps,omitempty"`
	Default       any      `json:"default,omitempty"`
	// App is the app slug of an app-typed prop.
	App string `json:"app,omitempty"`

	// RemoteOptionValues is attached by the schema assembler; nil when the
	// prop has no registry-supplied allowed values.
	RemoteOptionValues *OptionSet `json:"remoteOptionValues,omitempty"`
}

// IsDynamic reports whether the prop's allowed values must be fetched from the registry.
func (p ConfigurableProp) IsDynamic() bool {
	return p.RemoteOptions || p.Type.hasDynamicPrefix()
}

// Relevant drops props whose type is internal plumbing.
func Relevant(in []ConfigurableProp) []ConfigurableProp {
	out := make([]ConfigurableProp, 0, len(in))
	for _, p := range in {
		if p.Type.Irrelevant() {
			continue
		}
		out = append(out, p)
	}
	return out
}

// BestEffort returns copies of the props with every prop optional and without
// remote-option or reload markers.
func BestEffort(in []ConfigurableProp) []ConfigurableProp {
	out := make([]ConfigurableProp, len(in))
	for i, p := range in {
		p.Optional = true
		p.RemoteOptions = false
		p.ReloadProps = false
		p.RemoteOptionValues = nil
		out[i] = p
	}
	return out
}

// Names returns the set of prop names in the list.
func Names(in []ConfigurableProp) map[string]struct{} {
	names := make(map[string]struct{}, len(in))
	for _, p := range in {
		names[p.Name] = struct{}{}
	}
	return names
}
