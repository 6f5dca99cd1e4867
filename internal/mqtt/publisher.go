package mqtt

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/ferrule/courier/internal/config"
)

const (
	keepAliveSeconds = 30
	publishInterval  = 30 * time.Second
	publishTimeout   = 10 * time.Second
)

// Publisher maintains the broker connection, announces the device via
// retained discovery configs, and publishes token usage states. The
// broker's last-will marks the device offline if the process dies.
type Publisher struct {
	cfg    config.MQTTConfig
	cm     *autopaho.ConnectionManager
	tokens *DailyTokens
	topics topics
	slug   string
	logger *slog.Logger
}

func NewPublisher(cfg config.MQTTConfig, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	deviceSlug := slug(cfg.DeviceName)
	return &Publisher{
		cfg:    cfg,
		tokens: NewDailyTokens(),
		topics: newTopics(deviceSlug),
		slug:   deviceSlug,
		logger: logger,
	}
}

// Start connects to the broker. Discovery configs and the online
// availability state are (re)published on every successful connect so
// a restarted broker relearns the device.
func (p *Publisher) Start(ctx context.Context) error {
	broker, err := url.Parse(p.cfg.Broker)
	if err != nil {
		return fmt.Errorf("parse broker url: %w", err)
	}

	clientCfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{broker},
		KeepAlive:                     keepAliveSeconds,
		CleanStartOnInitialConnection: true,
		ConnectUsername:               p.cfg.Username,
		ConnectPassword:               []byte(p.cfg.Password),
		WillMessage: &paho.WillMessage{
			Topic:   p.topics.availability,
			Payload: []byte("offline"),
			QoS:     1,
			Retain:  true,
		},
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			p.logger.Info("mqtt connected", "broker", p.cfg.Broker)
			ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
			defer cancel()
			if err := p.publishDiscovery(ctx, cm); err != nil {
				p.logger.Error("publish discovery", "error", err)
			}
			p.publish(ctx, cm, p.topics.availability, []byte("online"), true)
			p.publishStates(ctx, cm)
		},
		OnConnectError: func(err error) {
			p.logger.Warn("mqtt connect failed", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: "courier-" + p.slug,
		},
	}

	if broker.Scheme == "mqtts" || broker.Scheme == "ssl" {
		clientCfg.TlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	cm, err := autopaho.NewConnection(ctx, clientCfg)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	p.cm = cm
	return nil
}

// Run periodically republishes the token states until ctx is done.
func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(publishInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
			p.publishStates(pubCtx, p.cm)
			cancel()
		}
	}
}

// AddUsage records token usage; the next state publish reflects it.
func (p *Publisher) AddUsage(input, output int) {
	p.tokens.Add(input, output)
}

// Close marks the device offline and disconnects cleanly.
func (p *Publisher) Close(ctx context.Context) error {
	if p.cm == nil {
		return nil
	}
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	p.publish(pubCtx, p.cm, p.topics.availability, []byte("offline"), true)
	cancel()
	return p.cm.Disconnect(ctx)
}

func (p *Publisher) sensorConfigs() map[string]SensorConfig {
	device := newDevice(p.cfg.DeviceName)
	return map[string]SensorConfig{
		"input_tokens": {
			Name:              "Input tokens today",
			UniqueID:          p.slug + "_input_tokens",
			StateTopic:        p.topics.inputTokens,
			AvailabilityTopic: p.topics.availability,
			UnitOfMeasurement: "tokens",
			Icon:              "mdi:import",
			StateClass:        "total_increasing",
			Device:            device,
		},
		"output_tokens": {
			Name:              "Output tokens today",
			UniqueID:          p.slug + "_output_tokens",
			StateTopic:        p.topics.outputTokens,
			AvailabilityTopic: p.topics.availability,
			UnitOfMeasurement: "tokens",
			Icon:              "mdi:export",
			StateClass:        "total_increasing",
			Device:            device,
		},
		"requests": {
			Name:              "Requests today",
			UniqueID:          p.slug + "_requests",
			StateTopic:        p.topics.requests,
			AvailabilityTopic: p.topics.availability,
			UnitOfMeasurement: "requests",
			Icon:              "mdi:chat-processing",
			StateClass:        "total_increasing",
			Device:            device,
		},
	}
}

func (p *Publisher) publishDiscovery(ctx context.Context, cm *autopaho.ConnectionManager) error {
	for object, cfg := range p.sensorConfigs() {
		payload, err := json.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("encode discovery for %s: %w", object, err)
		}
		topic := discoveryTopic(p.cfg.DiscoveryPrefix, p.slug, object)
		p.publish(ctx, cm, topic, payload, true)
	}
	return nil
}

func (p *Publisher) publishStates(ctx context.Context, cm *autopaho.ConnectionManager) {
	if cm == nil {
		return
	}
	input, output, requests := p.tokens.Totals()
	p.publish(ctx, cm, p.topics.inputTokens, []byte(strconv.FormatInt(input, 10)), false)
	p.publish(ctx, cm, p.topics.outputTokens, []byte(strconv.FormatInt(output, 10)), false)
	p.publish(ctx, cm, p.topics.requests, []byte(strconv.FormatInt(requests, 10)), false)
}

func (p *Publisher) publish(ctx context.Context, cm *autopaho.ConnectionManager, topic string, payload []byte, retain bool) {
	if cm == nil {
		return
	}
	_, err := cm.Publish(ctx, &paho.Publish{
		Topic:   topic,
		Payload: payload,
		QoS:     1,
		Retain:  retain,
	})
	if err != nil {
		p.logger.Warn("mqtt publish failed", "topic", topic, "error", err)
	}
}
