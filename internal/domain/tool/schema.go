// Package tool contains the domain types for tool definitions: the typed
// input schema, validation against it, the per-session schema projection,
// and constraint injection.
package tool

import (
	"fmt"
	"strings"
)

// FieldType enumerates the JSON types a schema field can declare.
type FieldType string

const (
	// TypeString is a JSON string field.
	TypeString FieldType = "string"
	// TypeInteger is a JSON integer field.
	TypeInteger FieldType = "integer"
	// TypeNumber is a JSON number field.
	TypeNumber FieldType = "number"
	// TypeBoolean is a JSON boolean field.
	TypeBoolean FieldType = "boolean"
	// TypeStringArray is a JSON array of strings.
	TypeStringArray FieldType = "array"
)

// Field describes one input parameter of a tool.
type Field struct {
	// Name is the parameter name as it appears in tool arguments.
	Name string
	// Type is the JSON type the value must have.
	Type FieldType
	// Description is surfaced to the agent in tools/list.
	Description string
	// Required marks the field as mandatory.
	Required bool
	// Enum restricts string values to the listed options. Empty = any.
	Enum []string
}

// Schema is an ordered list of fields. Order is preserved when rendering
// the JSON schema so tool listings are stable across requests.
type Schema []Field

// Get returns the field with the given name.
func (s Schema) Get(name string) (Field, bool) {
	for _, f := range s {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Has returns true if the schema declares the field.
func (s Schema) Has(name string) bool {
	_, ok := s.Get(name)
	return ok
}

// Without returns a projected view of the schema with the named fields
// removed. Fields not present are ignored. The receiver is not modified.
func (s Schema) Without(names ...string) Schema {
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		drop[n] = struct{}{}
	}
	out := make(Schema, 0, len(s))
	for _, f := range s {
		if _, skip := drop[f.Name]; !skip {
			out = append(out, f)
		}
	}
	return out
}

// JSONSchema renders the schema as a JSON Schema object suitable for the
// MCP tools/list response and for LLM function declarations.
func (s Schema) JSONSchema() map[string]any {
	properties := make(map[string]any, len(s))
	required := []string{}
	for _, f := range s {
		prop := map[string]any{"type": string(f.Type)}
		if f.Type == TypeStringArray {
			prop["items"] = map[string]any{"type": "string"}
		}
		if f.Description != "" {
			prop["description"] = f.Description
		}
		if len(f.Enum) > 0 {
			prop["enum"] = f.Enum
		}
		properties[f.Name] = prop
		if f.Required {
			required = append(required, f.Name)
		}
	}
	schema := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// Validate checks args against the schema and returns one message per
// violation. An empty slice means the arguments are valid.
func (s Schema) Validate(args map[string]any) []string {
	var problems []string
	for _, f := range s {
		value, present := args[f.Name]
		if !present {
			if f.Required {
				problems = append(problems, fmt.Sprintf("missing required parameter %q", f.Name))
			}
			continue
		}
		if msg := checkType(f, value); msg != "" {
			problems = append(problems, msg)
		}
	}
	for name := range args {
		if !s.Has(name) {
			problems = append(problems, fmt.Sprintf("unknown parameter %q", name))
		}
	}
	return problems
}

// checkType validates a single value against its field declaration.
func checkType(f Field, value any) string {
	switch f.Type {
	case TypeString:
		str, ok := value.(string)
		if !ok {
			return fmt.Sprintf("parameter %q must be a string", f.Name)
		}
		if len(f.Enum) > 0 && !contains(f.Enum, str) {
			return fmt.Sprintf("parameter %q must be one of: %s", f.Name, strings.Join(f.Enum, ", "))
		}
	case TypeInteger:
		// JSON numbers decode as float64; accept whole values only.
		num, ok := value.(float64)
		if !ok || num != float64(int64(num)) {
			if _, isInt := value.(int); !isInt {
				return fmt.Sprintf("parameter %q must be an integer", f.Name)
			}
		}
	case TypeNumber:
		switch value.(type) {
		case float64, int:
		default:
			return fmt.Sprintf("parameter %q must be a number", f.Name)
		}
	case TypeBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Sprintf("parameter %q must be a boolean", f.Name)
		}
	case TypeStringArray:
		items, ok := value.([]any)
		if !ok {
			if _, strSlice := value.([]string); strSlice {
				return ""
			}
			return fmt.Sprintf("parameter %q must be an array of strings", f.Name)
		}
		for _, item := range items {
			if _, ok := item.(string); !ok {
				return fmt.Sprintf("parameter %q must contain only strings", f.Name)
			}
		}
	}
	return ""
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
