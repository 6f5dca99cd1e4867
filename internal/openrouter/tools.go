package openrouter

import (
	"fmt"

	"github.com/ferrule/courier/internal/schema"
)

// FormatTool builds the wire declaration for a callable function. The
// parameter schema is converted as declared; the strict-mode
// adjustment applies only to structured output, where the provider
// enforces the schema on generation.
func FormatTool(name, description string, params *schema.Schema) (Tool, error) {
	converted, err := schema.Convert(params)
	if err != nil {
		return Tool{}, fmt.Errorf("tool %s: %w", name, err)
	}
	return Tool{
		Type: "function",
		Function: FunctionDef{
			Name:        name,
			Description: description,
			Parameters:  converted,
		},
	}, nil
}

// FormatResponseFormat builds the strict structured-output request
// for a named output schema.
func FormatResponseFormat(name string, s *schema.Schema) (*ResponseFormat, error) {
	converted, err := schema.Convert(s)
	if err != nil {
		return nil, fmt.Errorf("structured output %s: %w", name, err)
	}
	if err := schema.Adjust(converted); err != nil {
		return nil, fmt.Errorf("structured output %s: %w", name, err)
	}
	return &ResponseFormat{
		Type: "json_schema",
		JSONSchema: JSONSchema{
			Name:   name,
			Strict: true,
			Schema: converted,
		},
	}, nil
}
