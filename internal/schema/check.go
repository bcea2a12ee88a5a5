package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.uber.org/zap"

	"github.com/triage-ai/palisade/services/integration_engine/internal/props"
)

// sqlShape is the value shape of sql-typed props.
var sqlShape = mustCompile("sql-prop.json", `{
	"type": "object",
	"required": ["app", "query", "params"],
	"properties": {
		"app": {"type": "string"},
		"query": {"type": "string"},
		"params": {"type": "array"}
	}
}`)

func mustCompile(name, src string) *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(src))
	if err != nil {
		panic(fmt.Sprintf("schema %s: %v", name, err))
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, doc); err != nil {
		panic(fmt.Sprintf("schema %s: %v", name, err))
	}
	return c.MustCompile(name)
}

// CheckConfiguration validates config against schema and returns every problem
// found. A nil result means the configuration is valid. config is not modified.
func CheckConfiguration(config map[string]any, schema []props.ConfigurableProp, logger *zap.Logger) []string {
	if logger == nil {
		logger = zap.NewNop()
	}
	var problems []string
	for _, p := range schema {
		value, present := config[p.Name]
		if present && value == nil {
			present = false
		}
		if !present {
			if p.Optional || p.Type.Shape() == props.ShapeDisplay {
				continue
			}
			problems = append(problems, fmt.Sprintf("Missing value for %s", p.Name))
			continue
		}

		if msg := checkType(p, value, logger); msg != "" {
			problems = append(problems, msg)
			continue
		}
		if p.RemoteOptionValues != nil {
			if msg := checkOptions(p, value); msg != "" {
				problems = append(problems, msg)
			}
		}
	}
	return problems
}

func checkType(p props.ConfigurableProp, value any, logger *zap.Logger) string {
	ok := false
	switch p.Type.Shape() {
	case props.ShapeString:
		_, ok = value.(string)
	case props.ShapeStringArray:
		ok = allOf(value, func(v any) bool { _, s := v.(string); return s })
	case props.ShapeBoolean:
		_, ok = value.(bool)
	case props.ShapeInteger:
		ok = isInteger(value)
	case props.ShapeIntegerArray:
		ok = allOf(value, isInteger)
	case props.ShapeObject:
		ok = isObject(value)
	case props.ShapeAny, props.ShapeDisplay:
		ok = true
	case props.ShapeSQL:
		ok = sqlShape.Validate(toJSONValue(value)) == nil
		if !ok {
			return fmt.Sprintf("Invalid type for %s: expected sql {app, query, params[]} got %s", p.Name, kindOf(value))
		}
	default:
		logger.Warn("unsupported configurable prop type",
			zap.String("prop", p.Name),
			zap.String("type", string(p.Type)),
		)
		return fmt.Sprintf("Invalid type for %s: unsupported prop type %s", p.Name, p.Type)
	}
	if ok {
		return ""
	}
	return fmt.Sprintf("Invalid type for %s: expected %s got %s", p.Name, p.Type, kindOf(value))
}

func checkOptions(p props.ConfigurableProp, value any) string {
	set := p.RemoteOptionValues
	if items, isList := asList(value); isList {
		var invalid []string
		for _, item := range items {
			if !set.Contains(item) {
				invalid = append(invalid, props.FormatValue(item))
			}
		}
		if len(invalid) == 0 {
			return ""
		}
		return fmt.Sprintf("Invalid value for %s: %s. Expected one of: %s", p.Name, strings.Join(invalid, ", "), set)
	}
	if set.Contains(value) {
		return ""
	}
	return fmt.Sprintf("Invalid value for %s: %s. Expected one of: %s", p.Name, props.FormatValue(value), set)
}

func asList(v any) ([]any, bool) {
	if items, ok := v.([]any); ok {
		return items, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}

func allOf(v any, pred func(any) bool) bool {
	items, ok := asList(v)
	if !ok {
		return false
	}
	for _, item := range items {
		if !pred(item) {
			return false
		}
	}
	return true
}

func isInteger(v any) bool {
	switch x := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float64:
		return x == math.Trunc(x) && !math.IsInf(x, 0)
	case float32:
		f := float64(x)
		return f == math.Trunc(f) && !math.IsInf(f, 0)
	case json.Number:
		_, err := x.Int64()
		return err == nil
	}
	return false
}

func isObject(v any) bool {
	if _, ok := v.(map[string]any); ok {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.IsValid() && rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float32, float64, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "number"
	}
	if _, ok := asList(v); ok {
		return "array"
	}
	if isObject(v) {
		return "object"
	}
	return fmt.Sprintf("%T", v)
}

// toJSONValue converts arbitrary Go values to the generic form the schema validator expects.
func toJSONValue(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	out, err := jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
	if err != nil {
		return v
	}
	return out
}
