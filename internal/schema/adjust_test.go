package schema

import (
	"reflect"
	"sort"
	"testing"
)

func TestAdjustWidensOptionalProperties(t *testing.T) {
	node := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":  map[string]any{"type": "string"},
			"count": map[string]any{"type": "integer"},
		},
		"required": []any{"name"},
	}

	if err := Adjust(node); err != nil {
		t.Fatalf("Adjust: %v", err)
	}

	props := node["properties"].(map[string]any)
	name := props["name"].(map[string]any)
	if got := name["type"]; got != "string" {
		t.Errorf("required property widened: got %v", got)
	}
	count := props["count"].(map[string]any)
	if got, want := count["type"], []any{"integer", "null"}; !reflect.DeepEqual(got, want) {
		t.Errorf("optional property type = %v, want %v", got, want)
	}

	var required []string
	for _, r := range node["required"].([]any) {
		required = append(required, r.(string))
	}
	sort.Strings(required)
	if want := []string{"count", "name"}; !reflect.DeepEqual(required, want) {
		t.Errorf("required = %v, want %v", required, want)
	}
}

func TestAdjustRecursesNested(t *testing.T) {
	node := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"items": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"label": map[string]any{"type": "string"},
					},
				},
			},
		},
		"required": []any{"items"},
	}

	if err := Adjust(node); err != nil {
		t.Fatalf("Adjust: %v", err)
	}

	inner := node["properties"].(map[string]any)["items"].(map[string]any)["items"].(map[string]any)
	label := inner["properties"].(map[string]any)["label"].(map[string]any)
	if got, want := label["type"], []any{"string", "null"}; !reflect.DeepEqual(got, want) {
		t.Errorf("nested label type = %v, want %v", got, want)
	}
	if got, want := inner["required"], []any{"label"}; !reflect.DeepEqual(got, want) {
		t.Errorf("nested required = %v, want %v", got, want)
	}
}

func TestAdjustIdempotent(t *testing.T) {
	node := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "string"},
			"b": map[string]any{"type": "number"},
		},
		"required": []any{"a"},
	}

	if err := Adjust(node); err != nil {
		t.Fatalf("first Adjust: %v", err)
	}
	first := deepCopy(node)
	if err := Adjust(node); err != nil {
		t.Fatalf("second Adjust: %v", err)
	}
	if !reflect.DeepEqual(node, first) {
		t.Errorf("second pass changed the schema:\n got %#v\nwant %#v", node, first)
	}
}

func TestAdjustLeavesChildlessContainers(t *testing.T) {
	obj := map[string]any{"type": "object"}
	if err := Adjust(obj); err != nil {
		t.Fatalf("Adjust object: %v", err)
	}
	if len(obj) != 1 {
		t.Errorf("object without properties changed: %#v", obj)
	}

	arr := map[string]any{"type": "array"}
	if err := Adjust(arr); err != nil {
		t.Fatalf("Adjust array: %v", err)
	}
	if len(arr) != 1 {
		t.Errorf("array without items changed: %#v", arr)
	}
}

func TestAdjustMissingType(t *testing.T) {
	if err := Adjust(map[string]any{"properties": map[string]any{}}); err == nil {
		t.Fatal("expected error for node without a type")
	}
	node := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"bad": map[string]any{"description": "no type"},
		},
	}
	if err := Adjust(node); err == nil {
		t.Fatal("expected error for property without a type")
	}
}

func deepCopy(node map[string]any) map[string]any {
	out := make(map[string]any, len(node))
	for k, v := range node {
		switch t := v.(type) {
		case map[string]any:
			out[k] = deepCopy(t)
		case []any:
			cp := make([]any, len(t))
			for i, e := range t {
				if m, ok := e.(map[string]any); ok {
					cp[i] = deepCopy(m)
				} else {
					cp[i] = e
				}
			}
			out[k] = cp
		default:
			out[k] = v
		}
	}
	return out
}
