package telemetry

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
)

// MQTTSink publishes events to an MQTT broker under a configurable topic
// prefix.
type MQTTSink struct {
	client mqtt.Client
	prefix string
	logger *zap.Logger
}

// NewMQTTSink connects to the broker. Auto-reconnect is on, so a broker
// restart only drops events published during the gap.
func NewMQTTSink(broker, clientID, prefix string, logger *zap.Logger) (*MQTTSink, error) {
	log := logger.Named("mqtt")

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(connectTimeout).
		SetOnConnectHandler(func(mqtt.Client) {
			log.Info("Connected to MQTT broker", zap.String("broker", broker))
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warn("MQTT connection lost", zap.Error(err))
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt connect timed out after %s", connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}

	return &MQTTSink{client: client, prefix: prefix, logger: log}, nil
}

func (s *MQTTSink) Transition(ev TransitionEvent) {
	s.publish("occupancy", ev)
}

func (s *MQTTSink) Outcome(ev OutcomeEvent) {
	s.publish("power", ev)
}

func (s *MQTTSink) Heartbeat(ev HeartbeatEvent) {
	s.publish("heartbeat", ev)
}

func (s *MQTTSink) Close() error {
	s.client.Disconnect(250)
	return nil
}

func (s *MQTTSink) publish(suffix string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("Failed to encode event", zap.String("topic", suffix), zap.Error(err))
		return
	}

	topic := s.prefix + "/" + suffix
	token := s.client.Publish(topic, 1, false, data)
	if !token.WaitTimeout(publishTimeout) {
		s.logger.Warn("MQTT publish timed out", zap.String("topic", topic))
		return
	}
	if err := token.Error(); err != nil {
		s.logger.Warn("MQTT publish failed", zap.String("topic", topic), zap.Error(err))
	}
}
