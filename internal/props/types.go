package props

import "strings"

// PropType is the declared type of a configurable prop as reported by the
// component registry. Types outside the catalog are Unknown and fail closed.
type PropType string

const (
	TypeString       PropType = "string"
	TypeStringArray  PropType = "string[]"
	TypeBoolean      PropType = "boolean"
	TypeInteger      PropType = "integer"
	TypeIntegerArray PropType = "integer[]"
	TypeObject       PropType = "object"
	TypeAny          PropType = "any"
	TypeSQL          PropType = "sql"
	TypeAlert        PropType = "alert"
	TypeApp          PropType = "app"
	TypeDir          PropType = "dir"
	TypeDataStore    PropType = "data_store"
	TypeHTTPRequest  PropType = "http_request"

	TypeDiscordChannel      PropType = "$.discord.channel"
	TypeDiscordChannelArray PropType = "$.discord.channel[]"
	TypeAirtableBaseID      PropType = "$.airtable.baseId"
	TypeAirtableTableID     PropType = "$.airtable.tableId"
	TypeAirtableViewID      PropType = "$.airtable.viewId"
	TypeAirtableFieldID     PropType = "$.airtable.fieldId"

	TypeDBService        PropType = "$.service.db"
	TypeHTTPService      PropType = "$.service.http"
	TypeHTTPInterface    PropType = "$.interface.http"
	TypeTimerInterface   PropType = "$.interface.timer"
	TypeAppHookInterface PropType = "$.interface.apphook"
)

// Shape is the value shape a prop type accepts.
type Shape int

const (
	ShapeUnknown Shape = iota
	ShapeString
	ShapeStringArray
	ShapeBoolean
	ShapeInteger
	ShapeIntegerArray
	ShapeObject
	ShapeAny
	ShapeSQL
	ShapeDisplay // display-only, never required, any value accepted
)

var catalog = map[PropType]Shape{
	TypeString:       ShapeString,
	TypeStringArray:  ShapeStringArray,
	TypeBoolean:      ShapeBoolean,
	TypeInteger:      ShapeInteger,
	TypeIntegerArray: ShapeIntegerArray,
	TypeObject:       ShapeObject,
	TypeAny:          ShapeAny,
	TypeSQL:          ShapeSQL,
	TypeAlert:        ShapeDisplay,
	TypeApp:          ShapeObject,
	TypeDir:          ShapeString,
	TypeDataStore:    ShapeObject,
	TypeHTTPRequest:  ShapeObject,

	TypeDiscordChannel:      ShapeString,
	TypeDiscordChannelArray: ShapeStringArray,
	TypeAirtableBaseID:      ShapeString,
	TypeAirtableTableID:     ShapeString,
	TypeAirtableViewID:      ShapeString,
	TypeAirtableFieldID:     ShapeString,

	TypeDBService:        ShapeObject,
	TypeHTTPService:      ShapeObject,
	TypeHTTPInterface:    ShapeObject,
	TypeTimerInterface:   ShapeObject,
	TypeAppHookInterface: ShapeObject,
}

// irrelevant holds internal plumbing types that are never user-facing.
var irrelevant = map[PropType]struct{}{
	TypeApp:              {},
	TypeDBService:        {},
	TypeHTTPService:      {},
	TypeHTTPInterface:    {},
	TypeTimerInterface:   {},
	TypeAppHookInterface: {},
}

// dynamicPrefixes mark app-specific types whose values always come from the registry.
var dynamicPrefixes = []string{"$.discord.", "$.airtable."}

// Shape returns the accepted value shape, or ShapeUnknown if t is not in the catalog.
func (t PropType) Shape() Shape {
	return catalog[t]
}

// Known reports whether t is part of the catalog.
func (t PropType) Known() bool {
	_, ok := catalog[t]
	return ok
}

// Irrelevant reports whether props of this type are excluded from user configuration.
func (t PropType) Irrelevant() bool {
	_, ok := irrelevant[t]
	return ok
}

func (t PropType) hasDynamicPrefix() bool {
	for _, p := range dynamicPrefixes {
		if strings.HasPrefix(string(t), p) {
			return true
		}
	}
	return false
}

// IsArray reports whether the type holds a list of values.
func (t PropType) IsArray() bool {
	return strings.HasSuffix(string(t), "[]")
}
