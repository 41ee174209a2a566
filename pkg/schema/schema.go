// Package schema generates JSON Schema definitions from Go types. The
// schemas describe tool parameters and structured-output shapes sent to
// model providers.
package schema

import (
	"encoding/json"
	"reflect"
	"strings"
)

// Schema is a JSON Schema node.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
}

// Of generates a Schema for the Go type T.
//
// Recognized struct tags:
//   - json: property name, same convention as encoding/json
//   - desc: property description
//   - required: "true" marks the property required
//   - enum: comma-separated allowed values (strings)
func Of[T any]() *Schema {
	var zero T
	return FromType(reflect.TypeOf(zero))
}

// FromType generates a Schema for a reflect.Type.
func FromType(t reflect.Type) *Schema {
	if t == nil {
		return &Schema{Type: "object"}
	}
	if t.Kind() == reflect.Pointer {
		return FromType(t.Elem())
	}
	switch t.Kind() {
	case reflect.String:
		return &Schema{Type: "string"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &Schema{Type: "integer"}
	case reflect.Float32, reflect.Float64:
		return &Schema{Type: "number"}
	case reflect.Bool:
		return &Schema{Type: "boolean"}
	case reflect.Slice, reflect.Array:
		return &Schema{Type: "array", Items: FromType(t.Elem())}
	case reflect.Struct:
		return fromStruct(t)
	default:
		return &Schema{Type: "object"}
	}
}

func fromStruct(t reflect.Type) *Schema {
	s := &Schema{Type: "object", Properties: make(map[string]*Schema)}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name := field.Name
		if tag, ok := field.Tag.Lookup("json"); ok {
			parts := strings.Split(tag, ",")
			if parts[0] == "-" {
				continue
			}
			if parts[0] != "" {
				name = parts[0]
			}
		}

		prop := FromType(field.Type)
		if desc := field.Tag.Get("desc"); desc != "" {
			prop.Description = desc
		}
		if enum := field.Tag.Get("enum"); enum != "" {
			for _, v := range strings.Split(enum, ",") {
				prop.Enum = append(prop.Enum, strings.TrimSpace(v))
			}
		}
		s.Properties[name] = prop

		if field.Tag.Get("required") == "true" {
			s.Required = append(s.Required, name)
		}
	}
	return s
}

// Object builds an object schema from property name/schema pairs.
func Object(props map[string]*Schema, required ...string) *Schema {
	return &Schema{Type: "object", Properties: props, Required: required}
}

// String builds a described string schema.
func String(description string) *Schema {
	return &Schema{Type: "string", Description: description}
}

// Map renders the schema as the map form expected by provider SDKs that
// take raw JSON-schema maps.
func (s *Schema) Map() map[string]any {
	data, err := json.Marshal(s)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{"type": "object"}
	}
	return out
}

// JSON renders the schema as its JSON text.
func (s *Schema) JSON() string {
	data, err := json.Marshal(s)
	if err != nil {
		return `{"type":"object"}`
	}
	return string(data)
}
