package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/ferrule/courier/internal/fetch"
	"github.com/ferrule/courier/internal/homeassistant"
	"github.com/ferrule/courier/internal/schema"
)

// RegisterBuiltins wires the standard tool set: Home Assistant state
// and service tools when a client is configured, plus fetch_page.
func RegisterBuiltins(r *Registry, ha *homeassistant.Client, fetcher *fetch.Fetcher) error {
	if ha != nil {
		for _, t := range haTools(ha) {
			if err := r.Register(t); err != nil {
				return err
			}
		}
	}
	if fetcher != nil {
		if err := r.Register(fetchPageTool(fetcher)); err != nil {
			return err
		}
	}
	return nil
}

func haTools(ha *homeassistant.Client) []Tool {
	return []Tool{
		{
			Name:        "get_state",
			Description: "Get the current state and attributes of a Home Assistant entity.",
			Parameters: schema.Object(map[string]*schema.Schema{
				"entity_id": schema.String("Entity ID, for example light.kitchen"),
			}, "entity_id"),
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				entityID, err := stringArg(args, "entity_id")
				if err != nil {
					return nil, err
				}
				state, err := ha.GetState(ctx, entityID)
				if err != nil {
					return nil, err
				}
				return map[string]any{
					"entity_id":     state.EntityID,
					"state":         state.State,
					"friendly_name": state.FriendlyName(),
					"attributes":    state.Attributes,
				}, nil
			},
		},
		{
			Name:        "list_entities",
			Description: "List Home Assistant entities with their current states, optionally filtered by domain.",
			Parameters: schema.Object(map[string]*schema.Schema{
				"domain": schema.String("Optional domain filter, for example light or sensor"),
			}),
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				domain := optionalStringArg(args, "domain")
				states, err := ha.GetStates(ctx)
				if err != nil {
					return nil, err
				}
				entities := make([]map[string]any, 0, len(states))
				for _, s := range states {
					if domain != "" && !strings.HasPrefix(s.EntityID, domain+".") {
						continue
					}
					entities = append(entities, map[string]any{
						"entity_id":     s.EntityID,
						"state":         s.State,
						"friendly_name": s.FriendlyName(),
					})
				}
				return map[string]any{"entities": entities, "count": len(entities)}, nil
			},
		},
		{
			Name:        "call_service",
			Description: "Call a Home Assistant service, for example light.turn_on with an entity_id.",
			Parameters: schema.Object(map[string]*schema.Schema{
				"domain":    schema.String("Service domain, for example light"),
				"service":   schema.String("Service name, for example turn_on"),
				"entity_id": schema.String("Target entity ID"),
			}, "domain", "service"),
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				domain, err := stringArg(args, "domain")
				if err != nil {
					return nil, err
				}
				service, err := stringArg(args, "service")
				if err != nil {
					return nil, err
				}
				data := map[string]any{}
				if entityID := optionalStringArg(args, "entity_id"); entityID != "" {
					data["entity_id"] = entityID
				}
				changed, err := ha.CallService(ctx, domain, service, data)
				if err != nil {
					return nil, err
				}
				ids := make([]string, len(changed))
				for i, s := range changed {
					ids[i] = s.EntityID
				}
				return map[string]any{
					"result":           fmt.Sprintf("called %s.%s", domain, service),
					"changed_entities": ids,
				}, nil
			},
		},
	}
}

func fetchPageTool(fetcher *fetch.Fetcher) Tool {
	return Tool{
		Name:        "fetch_page",
		Description: "Fetch a web page and return its readable text content.",
		Parameters: schema.Object(map[string]*schema.Schema{
			"url": schema.String("Absolute URL of the page to fetch"),
		}, "url"),
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			pageURL, err := stringArg(args, "url")
			if err != nil {
				return nil, err
			}
			return fetcher.Fetch(ctx, pageURL)
		},
	}
}
