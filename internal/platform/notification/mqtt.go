package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

var (
	// ErrMQTTNotConnected is returned when publishing on a disconnected client.
	ErrMQTTNotConnected = errors.New("mqtt: client not connected")

	// ErrMQTTPublishFailed is returned when the broker did not acknowledge a publish.
	ErrMQTTPublishFailed = errors.New("mqtt: publish failed")
)

const (
	mqttConnectTimeout = 10 * time.Second
	mqttPublishTimeout = 5 * time.Second
	mqttQoS            = 1
)

// MQTTOptions configures the broker connection.
type MQTTOptions struct {
	Broker   string // e.g. tcp://localhost:1883
	ClientID string
	Username string
	Password string
}

type mqttPublisher interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
}

// MQTTNotifier publishes events to an MQTT topic with QoS 1.
type MQTTNotifier struct {
	client mqttPublisher
	topic  string
}

func NewMQTTNotifier(client mqttPublisher, topic string) *MQTTNotifier {
	return &MQTTNotifier{client: client, topic: topic}
}

// ConnectMQTT dials the broker with auto-reconnect enabled.
func ConnectMQTT(opts MQTTOptions) (pahomqtt.Client, error) {
	o := pahomqtt.NewClientOptions()
	o.AddBroker(opts.Broker)
	o.SetClientID(opts.ClientID)
	if opts.Username != "" {
		o.SetUsername(opts.Username)
		o.SetPassword(opts.Password)
	}
	o.SetCleanSession(true)
	o.SetAutoReconnect(true)
	o.SetConnectTimeout(mqttConnectTimeout)

	client := pahomqtt.NewClient(o)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("mqtt: connect timeout after %v", mqttConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect %s: %w", opts.Broker, err)
	}
	return client, nil
}

func (n *MQTTNotifier) Notify(ctx context.Context, e Event) error {
	if !n.client.IsConnected() {
		return ErrMQTTNotConnected
	}
	payload, err := e.Payload()
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	timeout := mqttPublishTimeout
	if dl, ok := ctx.Deadline(); ok && time.Until(dl) < timeout {
		timeout = time.Until(dl)
	}

	token := n.client.Publish(n.topic, mqttQoS, false, payload)
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%w: timeout after %v", ErrMQTTPublishFailed, timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrMQTTPublishFailed, err)
	}
	return nil
}
