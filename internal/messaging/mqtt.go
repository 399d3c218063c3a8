package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"relay-service/internal/config"
	"relay-service/internal/logger"
	"relay-service/internal/types"
)

const connectionTimeout = 5 * time.Second

// MqttClient publishes the status as a retained JSON document, so a
// dashboard subscribing late still sees the current state.
type MqttClient struct {
	config autopaho.ClientConfig
	conn   *autopaho.ConnectionManager
	topic  string
	logger *logger.Logger
}

func NewMqttClient(cfg config.MQTTConfig, l *logger.Logger) (*MqttClient, error) {
	addr, err := url.Parse(cfg.Broker)
	if err != nil {
		return nil, fmt.Errorf("invalid MQTT broker %q: %w", cfg.Broker, err)
	}

	mc := &MqttClient{
		topic:  StatusTopic(cfg.TopicPrefix),
		logger: l,
	}
	mc.config = autopaho.ClientConfig{
		BrokerUrls:     []*url.URL{addr},
		KeepAlive:      20,
		OnConnectionUp: mc.onConnUp,
		OnConnectError: mc.onConnError,
		ClientConfig: paho.ClientConfig{
			ClientID:           cfg.ClientID,
			OnClientError:      mc.onConnError,
			OnServerDisconnect: mc.onSrvDisconnect,
		},
	}
	return mc, nil
}

// StatusTopic is where the status document lives under prefix.
func StatusTopic(prefix string) string {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return "status"
	}
	return prefix + "/status"
}

func (mc *MqttClient) Name() string { return "mqtt" }

func (mc *MqttClient) onConnUp(cm *autopaho.ConnectionManager, connAck *paho.Connack) {
	mc.logger.Infof("Connected to MQTT broker")
}

func (mc *MqttClient) onConnError(err error) {
	mc.logger.Warnf("MQTT connection error: %v", err)
}

func (mc *MqttClient) onSrvDisconnect(d *paho.Disconnect) {
	mc.logger.Infof("Disconnected from MQTT broker")
}

// Connect starts the connection manager. It keeps reconnecting in the
// background even when the first attempt times out.
func (mc *MqttClient) Connect(ctx context.Context) error {
	cm, err := autopaho.NewConnection(ctx, mc.config)
	if err != nil {
		return err
	}
	mc.conn = cm

	ctx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()
	if err := cm.AwaitConnection(ctx); err != nil {
		return fmt.Errorf("MQTT broker not reachable yet: %w", err)
	}
	return nil
}

func (mc *MqttClient) PublishStatus(ctx context.Context, st types.Status) error {
	if mc.conn == nil {
		return fmt.Errorf("MQTT client not connected")
	}
	payload, err := json.Marshal(st)
	if err != nil {
		return err
	}
	_, err = mc.conn.Publish(ctx, &paho.Publish{
		Topic:   mc.topic,
		QoS:     1,
		Retain:  true,
		Payload: payload,
	})
	return err
}

func (mc *MqttClient) Disconnect(ctx context.Context) error {
	if mc.conn == nil {
		return nil
	}
	return mc.conn.Disconnect(ctx)
}
