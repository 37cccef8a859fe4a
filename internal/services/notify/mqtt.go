package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"facewatch/internal/config"
	"facewatch/internal/logger"
	"facewatch/internal/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTTransport publishes alerts as JSON to a broker topic.
type MQTTTransport struct {
	client    mqtt.Client
	topic     string
	published atomic.Int64
}

// DialMQTT connects to the configured broker with automatic reconnection.
func DialMQTT(cfg config.MQTTConfig, log *logger.Logger) (mqtt.Client, error) {
	broker := cfg.Broker
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		log.Info("📡 MQTT connected to %s", broker)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warning("MQTT connection lost, reconnecting: %v", err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return nil, fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connection failed: %w", err)
	}
	return client, nil
}

func NewMQTTTransport(client mqtt.Client, topic string) *MQTTTransport {
	return &MQTTTransport{client: client, topic: topic}
}

func (t *MQTTTransport) Name() string { return "mqtt" }

// Deliver publishes with QoS 1 and waits for the broker acknowledgement
// until ctx ends.
func (t *MQTTTransport) Deliver(ctx context.Context, alert models.Alert) error {
	if !t.client.IsConnected() {
		return fmt.Errorf("mqtt not connected")
	}

	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	token := t.client.Publish(t.topic, 1, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publish timeout: %w", ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}

	t.published.Add(1)
	return nil
}

// Published returns the number of acknowledged alerts.
func (t *MQTTTransport) Published() int64 {
	return t.published.Load()
}

// Close disconnects from the broker.
func (t *MQTTTransport) Close() {
	t.client.Disconnect(250)
}
