package notifier

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/julianstephens/habitrefresh/internal/constants"
	"github.com/julianstephens/habitrefresh/internal/logger"
)

type MQTTOptions struct {
	Broker   string
	Topic    string
	ClientID string
	Username string
	Password string
}

// MQTTBroadcaster publishes render requests as retained QoS 1 messages so a
// consumer that connects later still sees the latest state.
type MQTTBroadcaster struct {
	client paho.Client
	topic  string
}

func NewMQTTBroadcaster(opts MQTTOptions) (*MQTTBroadcaster, error) {
	if opts.Topic == "" {
		opts.Topic = constants.DefaultRenderTopic
	}
	if opts.ClientID == "" {
		opts.ClientID = constants.DefaultMQTTClientID
	}

	clientOpts := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(func(paho.Client) {
			logger.Info("connected to broker", "broker", opts.Broker)
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logger.Warn("broker connection lost", "error", err)
		})
	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
		clientOpts.SetPassword(opts.Password)
	}

	client := paho.NewClient(clientOpts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return &MQTTBroadcaster{client: client, topic: opts.Topic}, nil
}

func (b *MQTTBroadcaster) Broadcast(req RenderRequest) error {
	payload, err := EncodeRenderRequest(req)
	if err != nil {
		return fmt.Errorf("encode render request: %w", err)
	}

	token := b.client.Publish(b.topic, 1, true, payload)
	if !token.WaitTimeout(constants.PublishTimeout) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

func (b *MQTTBroadcaster) IsConnected() bool {
	return b.client.IsConnected()
}

func (b *MQTTBroadcaster) Close() error {
	b.client.Disconnect(1000)
	return nil
}
