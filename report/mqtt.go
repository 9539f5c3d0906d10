package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"i4.energy/across/pulsemon/monitor"
)

const (
	DefaultMQTTClientID = "pulsemon-1"
	DefaultMQTTTopic    = "pulsemon"

	publishTimeout = 5 * time.Second
	queueSize      = 256
)

var (
	// ErrNoBroker is returned by DialMQTT when no broker URL is configured.
	ErrNoBroker = errors.New("report: MQTT broker is required")
)

// SMSRequest is the payload accepted on the <topic>/sms/send command topic
// and by the HTTP /sms endpoint.
type SMSRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

// MQTTConfig configures the broker connection.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Topic    string
	Username string
	Password string
	// OnSMS, if set, is subscribed to <Topic>/sms/send.
	OnSMS func(SMSRequest)
	Logger *slog.Logger
}

// SMSTopic is the command topic outbound SMS requests arrive on.
func (c MQTTConfig) SMSTopic() string {
	return c.Topic + "/sms/send"
}

// DialMQTT connects to the broker with auto reconnect. The command
// subscription is renewed on every (re)connect.
func DialMQTT(config MQTTConfig) (mqtt.Client, error) {
	if config.Broker == "" {
		return nil, ErrNoBroker
	}
	if config.ClientID == "" {
		config.ClientID = DefaultMQTTClientID
	}
	if config.Topic == "" {
		config.Topic = DefaultMQTTTopic
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	logger := config.Logger.With("component", "mqtt")

	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(config.ClientID)
	if config.Username != "" {
		opts.SetUsername(config.Username)
		opts.SetPassword(config.Password)
	}
	opts.SetOrderMatters(false)
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("connection lost", "error", err)
	})
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		logger.Info("connected", "broker", config.Broker)
		if config.OnSMS == nil {
			return
		}
		topic := config.SMSTopic()
		token := c.Subscribe(topic, 0, func(_ mqtt.Client, m mqtt.Message) {
			req, err := decodeSMSRequest(m.Payload())
			if err != nil {
				logger.Warn("bad SMS request", "topic", m.Topic(), "error", err)
				return
			}
			config.OnSMS(req)
		})
		if token.Wait() && token.Error() != nil {
			logger.Error("subscribe failed", "topic", topic, "error", token.Error())
		}
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to %s: %w", config.Broker, token.Error())
	}
	return client, nil
}

func decodeSMSRequest(payload []byte) (SMSRequest, error) {
	var req SMSRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return req, fmt.Errorf("decode: %w", err)
	}
	req.To = strings.TrimSpace(req.To)
	if req.To == "" || req.Message == "" {
		return req, errors.New("missing to/message")
	}
	return req, nil
}

// MQTTPublisher publishes every event as JSON. Samples go to
// <topic>/samples, alarm transitions to <topic>/alarm (retained, so a new
// subscriber learns the current alarm state).
type MQTTPublisher struct {
	client mqtt.Client
	topic  string
	logger *slog.Logger
	edges  edgeDetector
	queue  chan Event
}

func NewMQTTPublisher(client mqtt.Client, topic string, logger *slog.Logger) *MQTTPublisher {
	if topic == "" {
		topic = DefaultMQTTTopic
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MQTTPublisher{
		client: client,
		topic:  topic,
		logger: logger.With("component", "mqtt-publisher"),
		queue:  make(chan Event, queueSize),
	}
}

// Observe implements monitor.Observer. Events that do not fit in the queue
// are dropped.
func (p *MQTTPublisher) Observe(r monitor.Reading) {
	for _, e := range eventsFor(&p.edges, r) {
		select {
		case p.queue <- e:
		default:
			p.logger.Warn("publish queue full, event dropped", "kind", e.Kind)
		}
	}
}

// Run publishes queued events until ctx is done, then disconnects.
func (p *MQTTPublisher) Run(ctx context.Context) error {
	defer p.client.Disconnect(500)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e := <-p.queue:
			if err := p.publish(e); err != nil {
				p.logger.Warn("publish failed", "kind", e.Kind, "error", err)
			}
		}
	}
}

func (p *MQTTPublisher) publish(e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	topic, retained := p.topic+"/samples", false
	if e.Kind != KindSample {
		topic, retained = p.topic+"/alarm", true
	}

	token := p.client.Publish(topic, 0, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}
