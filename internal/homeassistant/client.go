// Package homeassistant is a minimal REST client for the Home
// Assistant HTTP API, covering the calls the built-in tools need.
package homeassistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/ferrule/courier/internal/httpkit"
)

const (
	requestTimeout = 30 * time.Second
	errorBodyLimit = 4 * 1024
)

// State is an entity state as returned by /api/states.
type State struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes,omitempty"`
	LastChanged time.Time      `json:"last_changed,omitempty"`
	LastUpdated time.Time      `json:"last_updated,omitempty"`
}

// FriendlyName returns the friendly_name attribute or the entity ID.
func (s State) FriendlyName() string {
	if name, ok := s.Attributes["friendly_name"].(string); ok && name != "" {
		return name
	}
	return s.EntityID
}

type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
	logger  *slog.Logger
}

func NewClient(baseURL, token string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpc:   httpkit.NewClient(httpkit.WithTimeout(requestTimeout)),
		logger:  logger,
	}
}

// Ping verifies connectivity and authentication.
func (c *Client) Ping(ctx context.Context) error {
	var out struct {
		Message string `json:"message"`
	}
	return c.get(ctx, "/api/", &out)
}

// GetState fetches a single entity state.
func (c *Client) GetState(ctx context.Context, entityID string) (*State, error) {
	var state State
	if err := c.get(ctx, "/api/states/"+url.PathEscape(entityID), &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// GetStates fetches all entity states.
func (c *Client) GetStates(ctx context.Context) ([]State, error) {
	var states []State
	if err := c.get(ctx, "/api/states", &states); err != nil {
		return nil, err
	}
	return states, nil
}

// CallService invokes a Home Assistant service and returns the states
// it changed.
func (c *Client) CallService(ctx context.Context, domain, service string, data map[string]any) ([]State, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode service data: %w", err)
	}
	path := fmt.Sprintf("/api/services/%s/%s", url.PathEscape(domain), url.PathEscape(service))
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	c.logger.Debug("calling service", "domain", domain, "service", service)
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s.%s: %w", domain, service, err)
	}
	if resp.StatusCode != http.StatusOK {
		detail := httpkit.ReadErrorBody(resp.Body, errorBodyLimit)
		return nil, fmt.Errorf("call %s.%s: status %d: %s", domain, service, resp.StatusCode, detail)
	}
	defer httpkit.DrainAndClose(resp.Body, errorBodyLimit)

	var changed []State
	if err := json.NewDecoder(resp.Body).Decode(&changed); err != nil {
		return nil, fmt.Errorf("decode service response: %w", err)
	}
	return changed, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		detail := httpkit.ReadErrorBody(resp.Body, errorBodyLimit)
		return fmt.Errorf("GET %s: status %d: %s", path, resp.StatusCode, detail)
	}
	defer httpkit.DrainAndClose(resp.Body, errorBodyLimit)

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}
