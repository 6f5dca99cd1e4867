package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
listen:
  port: 9000
openrouter:
  api_key: test-key
  model: openai/gpt-4o
  site_name: My House
agent:
  max_tool_iterations: 5
  max_retries: 1
log_level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Listen.Port != 9000 {
		t.Errorf("Listen.Port = %d, want 9000", cfg.Listen.Port)
	}
	if cfg.OpenRouter.Model != "openai/gpt-4o" {
		t.Errorf("OpenRouter.Model = %q", cfg.OpenRouter.Model)
	}
	if cfg.OpenRouter.BaseURL != "https://openrouter.ai/api/v1" {
		t.Errorf("BaseURL default not applied: %q", cfg.OpenRouter.BaseURL)
	}
	if cfg.Agent.MaxToolIterationsOrDefault() != 5 {
		t.Errorf("MaxToolIterations = %d, want 5", cfg.Agent.MaxToolIterationsOrDefault())
	}
	if cfg.Agent.MaxRetriesOrDefault() != 1 {
		t.Errorf("MaxRetries = %d, want 1", cfg.Agent.MaxRetriesOrDefault())
	}
}

func TestLoadRequiresModel(t *testing.T) {
	path := writeConfig(t, `
openrouter:
  api_key: test-key
  model: ""
`)

	if _, err := Load(path); err == nil {
		t.Fatal("Load succeeded with empty model, want error")
	}
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("COURIER_TEST_KEY", "sk-or-secret")
	path := writeConfig(t, `
openrouter:
  api_key: ${COURIER_TEST_KEY}
  model: openai/gpt-4o-mini
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.OpenRouter.APIKey != "sk-or-secret" {
		t.Errorf("APIKey = %q, env expansion failed", cfg.OpenRouter.APIKey)
	}
}

func TestAgentDefaults(t *testing.T) {
	var a AgentConfig

	if got := a.MaxToolIterationsOrDefault(); got != 10 {
		t.Errorf("MaxToolIterationsOrDefault = %d, want 10", got)
	}
	if got := a.MaxRetriesOrDefault(); got != 2 {
		t.Errorf("MaxRetriesOrDefault = %d, want 2", got)
	}
	if got := a.ServiceUnavailableDelay(); got != 5*time.Second {
		t.Errorf("ServiceUnavailableDelay = %v, want 5s", got)
	}
	if got := a.RateLimitDelay(); got != 10*time.Second {
		t.Errorf("RateLimitDelay = %v, want 10s", got)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"info", slog.LevelInfo, false},
		{"TRACE", LevelTrace, false},
		{"Debug", slog.LevelDebug, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{" info ", slog.LevelInfo, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := ParseLogLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLogLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
