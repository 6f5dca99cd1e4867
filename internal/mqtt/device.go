// Package mqtt publishes service presence and daily token usage to
// Home Assistant over MQTT discovery.
package mqtt

import (
	"fmt"
	"strings"

	"github.com/ferrule/courier/internal/buildinfo"
)

// Device identifies this service in Home Assistant's device registry.
type Device struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
	SWVersion    string   `json:"sw_version"`
}

// SensorConfig is a Home Assistant MQTT discovery payload for one
// sensor entity.
type SensorConfig struct {
	Name              string `json:"name"`
	UniqueID          string `json:"unique_id"`
	StateTopic        string `json:"state_topic"`
	AvailabilityTopic string `json:"availability_topic"`
	UnitOfMeasurement string `json:"unit_of_measurement,omitempty"`
	Icon              string `json:"icon,omitempty"`
	StateClass        string `json:"state_class,omitempty"`
	Device            Device `json:"device"`
}

func newDevice(name string) Device {
	return Device{
		Identifiers:  []string{slug(name)},
		Name:         name,
		Manufacturer: "Ferrule",
		Model:        "Courier",
		SWVersion:    buildinfo.Version,
	}
}

// slug lowercases a device name into a topic-safe identifier.
func slug(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "_")
}

// topics computes the topic layout for a device slug.
type topics struct {
	availability string
	inputTokens  string
	outputTokens string
	requests     string
}

func newTopics(deviceSlug string) topics {
	base := "courier/" + deviceSlug
	return topics{
		availability: base + "/availability",
		inputTokens:  base + "/input_tokens",
		outputTokens: base + "/output_tokens",
		requests:     base + "/requests",
	}
}

func discoveryTopic(prefix, deviceSlug, object string) string {
	return fmt.Sprintf("%s/sensor/%s/%s/config", prefix, deviceSlug, object)
}
