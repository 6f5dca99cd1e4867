package openrouter

import (
	"strings"
	"testing"
)

func TestParseAPIError(t *testing.T) {
	body := `{"error":{"message":"Provider returned error","metadata":{"provider_name":"DeepInfra","raw":"upstream 503"}}}`
	err := ParseAPIError(503, []byte(body))
	if err.Status != 503 || err.Message != "Provider returned error" {
		t.Errorf("got %+v", err)
	}
	if err.Provider != "DeepInfra" || err.ProviderName() != "DeepInfra" {
		t.Errorf("provider = %q", err.Provider)
	}
	if err.Raw != "upstream 503" {
		t.Errorf("raw = %q", err.Raw)
	}
}

func TestParseAPIErrorMalformedBody(t *testing.T) {
	err := ParseAPIError(500, []byte("<html>oops</html>"))
	if err.Status != 500 || err.Message != "" {
		t.Errorf("got %+v", err)
	}
	if err.Raw != "<html>oops</html>" {
		t.Errorf("raw = %q", err.Raw)
	}
	if err.ProviderName() != "Unknown" {
		t.Errorf("ProviderName = %q", err.ProviderName())
	}
}

func TestAPIErrorString(t *testing.T) {
	err := &APIError{Status: 429, Message: "rate limited", Provider: "OpenAI"}
	msg := err.Error()
	for _, want := range []string{"429", "rate limited", "OpenAI"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q missing %q", msg, want)
		}
	}
}
