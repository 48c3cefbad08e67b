package mqtt

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	paho "github.com/eclipse/paho.mqtt.golang"
)

// outboxLimit bounds the events kept while the broker is unreachable.
const outboxLimit = 64

// RealPublisher publishes to an actual MQTT broker.
type RealPublisher struct {
	client      paho.Client
	buttonTopic string
	systemTopic string

	mu  sync.Mutex
	buf *outbox
}

// NewRealPublisher starts connecting to the given broker in the background.
// Events published before the first connection are buffered.
func NewRealPublisher(broker, node string) (*RealPublisher, error) {
	p := &RealPublisher{
		buttonTopic: ButtonTopic(node),
		systemTopic: SystemTopic(node),
		buf:         newOutbox(outboxLimit),
	}

	will, err := FormatSystemPayload(SystemEvent{Event: "OFFLINE", Reason: "LWT"})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("gpio-shutdown-" + node).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetBinaryWill(p.systemTopic, will, 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warn("mqtt connection lost", "err", err)
		})

	p.client = paho.NewClient(opts)
	p.client.Connect()
	return p, nil
}

// onConnect replays events buffered while disconnected, oldest first.
func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	msgs, dropped := p.buf.take()
	p.mu.Unlock()

	log.Info("mqtt connected", "replay", len(msgs), "dropped", dropped)
	for _, m := range msgs {
		c.Publish(m.topic, m.qos, m.retained, m.payload)
	}
}

// IsConnected reports whether the client currently has a broker connection.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// PublishButton sends a button edge without waiting for delivery.
func (p *RealPublisher) PublishButton(event ButtonEvent) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	p.send(bufferedMsg{topic: p.buttonTopic, payload: payload})
	return nil
}

// PublishSystem sends a system lifecycle event and waits for delivery when connected.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events - we want to ensure delivery
	token := p.send(bufferedMsg{topic: p.systemTopic, payload: payload, qos: 1, retained: event.Retained})
	if token == nil {
		return nil
	}
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish system timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish system: %w", err)
	}
	return nil
}

// send publishes msg if connected, otherwise buffers it and returns nil.
func (p *RealPublisher) send(msg bufferedMsg) paho.Token {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.client.IsConnectionOpen() {
		p.buf.add(msg)
		return nil
	}
	return p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
