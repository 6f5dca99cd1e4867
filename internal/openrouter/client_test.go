package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ferrule/courier/internal/config"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.OpenRouterConfig{
		APIKey:   "sk-test",
		BaseURL:  srv.URL,
		SiteURL:  "https://example.com",
		SiteName: "Courier",
	}, nil)
}

func TestCreateChatCompletion(t *testing.T) {
	var got Request
	var header http.Header
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		header = r.Header.Clone()
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(Response{
			ID:       "gen-1",
			Provider: "OpenAI",
			Choices:  []Choice{{Message: Message{Role: "assistant", Content: "hi"}}},
			Usage:    &Usage{PromptTokens: 12, CompletionTokens: 3},
		})
	})

	resp, err := client.CreateChatCompletion(context.Background(), Request{
		Model:    "openai/gpt-4o-mini",
		Messages: []Message{{Role: "user", Content: "hello"}},
		Tools:    []Tool{{Type: "function", Function: FunctionDef{Name: "noop", Parameters: map[string]any{"type": "object"}}}},
	})
	if err != nil {
		t.Fatalf("CreateChatCompletion: %v", err)
	}
	if resp.Text() != "hi" {
		t.Errorf("Text() = %q", resp.Text())
	}

	if h := header.Get("Authorization"); h != "Bearer sk-test" {
		t.Errorf("Authorization = %q", h)
	}
	if h := header.Get("HTTP-Referer"); h != "https://example.com" {
		t.Errorf("HTTP-Referer = %q", h)
	}
	if h := header.Get("X-Title"); h != "Courier" {
		t.Errorf("X-Title = %q", h)
	}
	if !got.RequireParameters {
		t.Error("require_parameters not set")
	}
	if got.ToolChoice != "auto" {
		t.Errorf("tool_choice = %q", got.ToolChoice)
	}
}

func TestCreateChatCompletionAPIError(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":{"message":"no capacity","metadata":{"provider_name":"DeepInfra"}}}`))
	})

	_, err := client.CreateChatCompletion(context.Background(), Request{Model: "m"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.Status != 503 || apiErr.Provider != "DeepInfra" {
		t.Errorf("got %+v", apiErr)
	}
}

func TestCreateChatCompletionNoChoices(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Response{ID: "gen-2"})
	})
	if _, err := client.CreateChatCompletion(context.Background(), Request{Model: "m"}); err == nil {
		t.Fatal("expected error for empty choices")
	}
}
