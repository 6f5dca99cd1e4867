package openrouter

import (
	"reflect"
	"testing"

	"github.com/ferrule/courier/internal/schema"
)

func TestFormatTool(t *testing.T) {
	params := schema.Object(map[string]*schema.Schema{
		"entity_id": schema.String("target entity"),
		"area":      schema.String("optional area filter"),
	}, "entity_id")

	tool, err := FormatTool("get_state", "Read an entity state", params)
	if err != nil {
		t.Fatalf("FormatTool: %v", err)
	}
	if tool.Type != "function" || tool.Function.Name != "get_state" {
		t.Errorf("got %+v", tool)
	}
	if tool.Function.Description != "Read an entity state" {
		t.Errorf("description = %q", tool.Function.Description)
	}

	// The parameter schema goes out exactly as declared: optional
	// parameters stay optional with their scalar type.
	props := tool.Function.Parameters["properties"].(map[string]any)
	area := props["area"].(map[string]any)
	if got := area["type"]; got != "string" {
		t.Errorf("optional parameter type = %v, want string", got)
	}
	req := tool.Function.Parameters["required"].([]any)
	if !reflect.DeepEqual(req, []any{"entity_id"}) {
		t.Errorf("required = %v, want [entity_id]", req)
	}
}

func TestFormatToolKeepsOptionalParameters(t *testing.T) {
	tool, err := FormatTool("list_entities", "", schema.Object(map[string]*schema.Schema{
		"domain": schema.String("domain filter"),
	}))
	if err != nil {
		t.Fatalf("FormatTool: %v", err)
	}
	if _, present := tool.Function.Parameters["required"]; present {
		t.Errorf("required present: %v", tool.Function.Parameters["required"])
	}
	domain := tool.Function.Parameters["properties"].(map[string]any)["domain"].(map[string]any)
	if got := domain["type"]; got != "string" {
		t.Errorf("domain type = %v, want string", got)
	}
}

func TestFormatToolNoDescription(t *testing.T) {
	tool, err := FormatTool("noop", "", schema.Object(nil))
	if err != nil {
		t.Fatalf("FormatTool: %v", err)
	}
	if tool.Function.Description != "" {
		t.Errorf("description = %q", tool.Function.Description)
	}
}

func TestFormatResponseFormat(t *testing.T) {
	out, err := FormatResponseFormat("report", schema.Object(map[string]*schema.Schema{
		"summary": schema.String("one line"),
		"detail":  schema.String("optional elaboration"),
	}, "summary"))
	if err != nil {
		t.Fatalf("FormatResponseFormat: %v", err)
	}
	if out.Type != "json_schema" {
		t.Errorf("type = %q", out.Type)
	}
	if out.JSONSchema.Name != "report" || !out.JSONSchema.Strict {
		t.Errorf("got %+v", out.JSONSchema)
	}
	if out.JSONSchema.Schema["type"] != "object" {
		t.Errorf("schema = %v", out.JSONSchema.Schema)
	}

	// Structured output, unlike tool parameters, gets the strict-mode
	// adjustment: optional properties are widened and made required.
	detail := out.JSONSchema.Schema["properties"].(map[string]any)["detail"].(map[string]any)
	if got, want := detail["type"], []any{"string", "null"}; !reflect.DeepEqual(got, want) {
		t.Errorf("detail type = %v, want %v", got, want)
	}
	if req := out.JSONSchema.Schema["required"].([]any); len(req) != 2 {
		t.Errorf("required = %v", req)
	}
}

func TestFormatToolBadSchema(t *testing.T) {
	if _, err := FormatTool("bad", "", &schema.Schema{}); err == nil {
		t.Fatal("expected error for schema without type")
	}
}
