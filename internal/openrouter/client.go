package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ferrule/courier/internal/config"
	"github.com/ferrule/courier/internal/httpkit"
)

const (
	chatCompletionsPath = "/chat/completions"
	requestTimeout      = 120 * time.Second
	errorBodyLimit      = 16 * 1024
)

// Client talks to an OpenRouter-compatible chat-completions endpoint.
type Client struct {
	httpc    *http.Client
	baseURL  string
	apiKey   string
	siteURL  string
	siteName string
	logger   *slog.Logger
}

// NewClient builds a client from configuration. The underlying HTTP
// client injects the service user agent and shares the pooled
// transport.
func NewClient(cfg config.OpenRouterConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpc:    httpkit.NewClient(httpkit.WithTimeout(requestTimeout)),
		baseURL:  cfg.BaseURL,
		apiKey:   cfg.APIKey,
		siteURL:  cfg.SiteURL,
		siteName: cfg.SiteName,
		logger:   logger,
	}
}

// CreateChatCompletion performs one chat-completions call. Non-2xx
// responses come back as *APIError; transport failures are returned
// wrapped.
func (c *Client) CreateChatCompletion(ctx context.Context, req Request) (*Response, error) {
	req.RequireParameters = true
	if req.ToolChoice == "" && len(req.Tools) > 0 {
		req.ToolChoice = "auto"
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatCompletionsPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.siteURL != "" {
		httpReq.Header.Set("HTTP-Referer", c.siteURL)
	}
	if c.siteName != "" {
		httpReq.Header.Set("X-Title", c.siteName)
	}

	c.logger.Debug("chat completion request",
		"model", req.Model,
		"messages", len(req.Messages),
		"tools", len(req.Tools))

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw := httpkit.ReadErrorBody(resp.Body, errorBodyLimit)
		apiErr := ParseAPIError(resp.StatusCode, []byte(raw))
		c.logger.Warn("chat completion failed",
			"status", resp.StatusCode,
			"provider", apiErr.ProviderName(),
			"message", apiErr.Message)
		return nil, apiErr
	}
	defer httpkit.DrainAndClose(resp.Body, errorBodyLimit)

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode chat response: %w", err)
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("chat response contained no choices")
	}
	if out.Usage != nil {
		c.logger.Debug("chat completion usage",
			"model", out.Model,
			"input_tokens", out.Usage.PromptTokens,
			"output_tokens", out.Usage.CompletionTokens)
	}
	return &out, nil
}
