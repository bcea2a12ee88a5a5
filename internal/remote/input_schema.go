package remote

import "github.com/triage-ai/palisade/services/integration_engine/internal/props"

// InputSchema turns a component's user-facing props into a JSON Schema object
// suitable as a function-calling input schema.
func InputSchema(in []props.ConfigurableProp) map[string]any {
	properties := make(map[string]any)
	required := []string{}
	for _, p := range props.Relevant(in) {
		if p.Type.Shape() == props.ShapeDisplay {
			continue
		}
		def := jsonType(p.Type)
		if p.Description != "" {
			def["description"] = p.Description
		} else if p.Label != "" {
			def["description"] = p.Label
		}
		properties[p.Name] = def
		if !p.Optional {
			required = append(required, p.Name)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

func jsonType(t props.PropType) map[string]any {
	switch t.Shape() {
	case props.ShapeString:
		return map[string]any{"type": "string"}
	case props.ShapeStringArray:
		return map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
	case props.ShapeBoolean:
		return map[string]any{"type": "boolean"}
	case props.ShapeInteger:
		return map[string]any{"type": "integer"}
	case props.ShapeIntegerArray:
		return map[string]any{"type": "array", "items": map[string]any{"type": "integer"}}
	case props.ShapeObject, props.ShapeSQL:
		return map[string]any{"type": "object"}
	default:
		return map[string]any{}
	}
}
