// Package schema defines the declarative parameter/output schema tree
// used for tool arguments and structured output, its conversion to the
// wire JSON-Schema dialect, and the strict-mode adjustment the
// OpenRouter API requires.
package schema

import "fmt"

// Schema is a declarative, schema-language-agnostic node: an object,
// array, or scalar with optional children. It deliberately covers only
// the subset of JSON Schema the chat-completions tool interface uses.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
}

// Object is a convenience constructor for an object schema.
func Object(properties map[string]*Schema, required ...string) *Schema {
	return &Schema{Type: "object", Properties: properties, Required: required}
}

// String is a convenience constructor for a described string schema.
func String(description string) *Schema {
	return &Schema{Type: "string", Description: description}
}

// Convert serializes the declarative tree to the wire JSON-Schema
// dialect as a plain map. A node without a type is a caller bug and
// fails rather than producing a schema the provider would reject.
func Convert(s *Schema) (map[string]any, error) {
	if s == nil {
		return nil, fmt.Errorf("nil schema")
	}
	if s.Type == "" {
		return nil, fmt.Errorf("schema node missing type")
	}

	out := map[string]any{"type": s.Type}
	if s.Description != "" {
		out["description"] = s.Description
	}
	if len(s.Enum) > 0 {
		enum := make([]any, len(s.Enum))
		for i, e := range s.Enum {
			enum[i] = e
		}
		out["enum"] = enum
	}
	if s.Properties != nil {
		props := make(map[string]any, len(s.Properties))
		for name, child := range s.Properties {
			conv, err := Convert(child)
			if err != nil {
				return nil, fmt.Errorf("property %q: %w", name, err)
			}
			props[name] = conv
		}
		out["properties"] = props
	}
	if len(s.Required) > 0 {
		req := make([]any, len(s.Required))
		for i, r := range s.Required {
			req[i] = r
		}
		out["required"] = req
	}
	if s.Items != nil {
		items, err := Convert(s.Items)
		if err != nil {
			return nil, fmt.Errorf("items: %w", err)
		}
		out["items"] = items
	}
	return out, nil
}
