package schema

import (
	"fmt"
	"sort"
)

// Adjust rewrites a wire schema in place so it satisfies the strict
// structured-output contract: every object property is listed in
// required, and properties that were originally optional have their
// type widened to a union with "null" so the model can omit a value
// without violating the schema. The transform recurses through object
// properties and array items and is idempotent.
func Adjust(node map[string]any) error {
	if node == nil {
		return nil
	}
	typ, ok := node["type"]
	if !ok {
		return fmt.Errorf("schema node missing type")
	}

	switch typ {
	case "object":
		props, ok := node["properties"].(map[string]any)
		if !ok {
			return nil
		}
		required := requiredSet(node)

		names := make([]string, 0, len(props))
		for name := range props {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			child, ok := props[name].(map[string]any)
			if !ok {
				return fmt.Errorf("property %q: not an object", name)
			}
			if err := Adjust(child); err != nil {
				return fmt.Errorf("property %q: %w", name, err)
			}
			if _, was := required[name]; !was {
				child["type"] = widenNullable(child["type"])
				appendRequired(node, name)
			}
		}
	case "array":
		items, ok := node["items"].(map[string]any)
		if !ok {
			return nil
		}
		if err := Adjust(items); err != nil {
			return fmt.Errorf("items: %w", err)
		}
	}
	return nil
}

func requiredSet(node map[string]any) map[string]struct{} {
	set := make(map[string]struct{})
	req, _ := node["required"].([]any)
	for _, r := range req {
		if s, ok := r.(string); ok {
			set[s] = struct{}{}
		}
	}
	return set
}

func appendRequired(node map[string]any, name string) {
	req, _ := node["required"].([]any)
	node["required"] = append(req, name)
}

// widenNullable turns a scalar type into a [type, "null"] union. A
// union that already admits null is left alone so repeated adjustment
// does not stack wrappers.
func widenNullable(typ any) any {
	switch t := typ.(type) {
	case []any:
		for _, member := range t {
			if member == "null" {
				return t
			}
		}
		return append(t, "null")
	default:
		return []any{typ, "null"}
	}
}
