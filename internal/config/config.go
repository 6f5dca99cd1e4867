// Package config handles Courier configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/courier/config.yaml, /etc/courier/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "courier", "config.yaml"))
	}

	paths = append(paths, "/etc/courier/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all Courier configuration.
type Config struct {
	Listen        ListenConfig        `yaml:"listen"`
	OpenRouter    OpenRouterConfig    `yaml:"openrouter"`
	Agent         AgentConfig         `yaml:"agent"`
	HomeAssistant HomeAssistantConfig `yaml:"homeassistant"`
	MQTT          MQTTConfig          `yaml:"mqtt"`
	DataDir       string              `yaml:"data_dir"`
	LogLevel      string              `yaml:"log_level"`
}

// ListenConfig defines the API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// OpenRouterConfig defines the OpenRouter API connection settings.
type OpenRouterConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"` // Default: https://openrouter.ai/api/v1
	Model   string `yaml:"model"`
	// SiteURL and SiteName populate OpenRouter's attribution headers
	// (HTTP-Referer and X-Title).
	SiteURL  string `yaml:"site_url"`
	SiteName string `yaml:"site_name"`
}

// AgentConfig bounds the conversation loop and its retry policy.
type AgentConfig struct {
	// SystemPrompt is prepended to every conversation as a system turn.
	SystemPrompt string `yaml:"system_prompt"`
	// MaxToolIterations caps request/tool rounds per conversation run (default 10).
	MaxToolIterations int `yaml:"max_tool_iterations"`
	// MaxRetries caps retries per outbound API call (default 2, so up to 3 attempts).
	MaxRetries int `yaml:"max_retries"`
	// ServiceUnavailableDelaySec is the 503 backoff base in seconds (default 5).
	ServiceUnavailableDelaySec int `yaml:"service_unavailable_delay_sec"`
	// RateLimitDelaySec is the 429 backoff base in seconds (default 10).
	RateLimitDelaySec int `yaml:"rate_limit_delay_sec"`
}

// MaxToolIterationsOrDefault returns the configured iteration ceiling,
// falling back to 10.
func (a AgentConfig) MaxToolIterationsOrDefault() int {
	if a.MaxToolIterations > 0 {
		return a.MaxToolIterations
	}
	return 10
}

// MaxRetriesOrDefault returns the configured retry ceiling, falling back to 2.
func (a AgentConfig) MaxRetriesOrDefault() int {
	if a.MaxRetries > 0 {
		return a.MaxRetries
	}
	return 2
}

// ServiceUnavailableDelay returns the 503 backoff base as a duration.
func (a AgentConfig) ServiceUnavailableDelay() time.Duration {
	if a.ServiceUnavailableDelaySec > 0 {
		return time.Duration(a.ServiceUnavailableDelaySec) * time.Second
	}
	return 5 * time.Second
}

// RateLimitDelay returns the 429 backoff base as a duration.
func (a AgentConfig) RateLimitDelay() time.Duration {
	if a.RateLimitDelaySec > 0 {
		return time.Duration(a.RateLimitDelaySec) * time.Second
	}
	return 10 * time.Second
}

// HomeAssistantConfig defines HA connection settings for the built-in tools.
type HomeAssistantConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

// MQTTConfig defines the optional MQTT presence publisher.
type MQTTConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Broker          string `yaml:"broker"` // e.g. mqtt://broker.local:1883
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	DeviceName      string `yaml:"device_name"`      // HA device name (default "Courier")
	DiscoveryPrefix string `yaml:"discovery_prefix"` // default "homeassistant"
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	if cfg.OpenRouter.Model == "" {
		return nil, fmt.Errorf("openrouter.model is required")
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Listen: ListenConfig{Port: 8098},
		OpenRouter: OpenRouterConfig{
			BaseURL: "https://openrouter.ai/api/v1",
			Model:   "openai/gpt-4o-mini",
		},
		MQTT: MQTTConfig{
			DeviceName:      "Courier",
			DiscoveryPrefix: "homeassistant",
		},
		DataDir: ".",
	}
}
