package mqtt

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/ers/core/events"
	coremon "github.com/kilianp07/ers/core/monitoring"
	"github.com/kilianp07/ers/infra/logger"
)

// EventPublisher sends every event as JSON to <prefix>/<event-name>.
// It implements events.Publisher.
type EventPublisher struct {
	cli     pahoClient
	cfg     Config
	log     logger.Logger
	allowed map[string]bool
	backoff time.Duration
	sleep   func(time.Duration)

	sent   atomic.Uint64
	failed atomic.Uint64
}

// NewEventPublisher connects to the broker. When an LWT topic is set the
// online payload is published on every (re)connection.
func NewEventPublisher(cfg Config, log logger.Logger) (*EventPublisher, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.New("mqtt")
	}
	p := &EventPublisher{
		cfg:     cfg,
		log:     log,
		backoff: time.Duration(cfg.BackoffMS) * time.Millisecond,
		sleep:   time.Sleep,
	}
	if len(cfg.Events) > 0 {
		p.allowed = make(map[string]bool, len(cfg.Events))
		for _, name := range cfg.Events {
			p.allowed[name] = true
		}
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected to %s", cfg.Broker)
		if cfg.LWTTopic != "" && cfg.OnlinePayload != "" {
			if token := c.Publish(cfg.LWTTopic, cfg.LWTQoS, cfg.LWTRetain, cfg.OnlinePayload); token.Wait() && token.Error() != nil {
				log.Errorf("online status publish: %v", token.Error())
			}
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, token.Error())
	}
	p.cli = c
	return p, nil
}

// Topic returns the topic an event name is published on.
func (p *EventPublisher) Topic(name string) string {
	return p.cfg.TopicPrefix + "/" + name
}

func (p *EventPublisher) qos(name string) byte {
	if q, ok := p.cfg.QoS[name]; ok {
		return q
	}
	return p.cfg.QoS["default"]
}

// Publish sends e and logs failures. Events filtered out by the Events
// list are ignored.
func (p *EventPublisher) Publish(e events.Event) {
	if err := p.Send(e); err != nil {
		p.log.Errorf("publish %s: %v", e.EventName(), err)
	}
}

// Send publishes e, retrying with exponential backoff. The last error is
// reported to the monitor.
func (p *EventPublisher) Send(e events.Event) error {
	name := e.EventName()
	if p.allowed != nil && !p.allowed[name] {
		return nil
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	topic := p.Topic(name)
	qos := p.qos(name)

	var publishErr error
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		token := p.cli.Publish(topic, qos, p.cfg.Retain, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			p.sent.Add(1)
			p.log.Debugf("published %s", topic)
			return nil
		}
		p.log.Warnf("publish attempt %d to %s failed: %v", attempt+1, topic, publishErr)
		if attempt < p.cfg.MaxRetries {
			p.sleep(p.backoff * time.Duration(1<<attempt))
		}
	}
	p.failed.Add(1)
	coremon.CaptureException(publishErr, map[string]string{"module": "mqtt", "event": name, "topic": topic})
	return fmt.Errorf("publish %s: %w", topic, publishErr)
}

// Stats returns the number of delivered and failed events.
func (p *EventPublisher) Stats() (sent, failed uint64) {
	return p.sent.Load(), p.failed.Load()
}

// Disconnect publishes the LWT payload when configured and closes the
// connection.
func (p *EventPublisher) Disconnect() {
	if p.cli == nil || !p.cli.IsConnected() {
		return
	}
	if p.cfg.LWTTopic != "" && p.cfg.OnlinePayload != "" {
		p.cli.Publish(p.cfg.LWTTopic, p.cfg.LWTQoS, p.cfg.LWTRetain, p.cfg.LWTPayload).WaitTimeout(time.Second)
	}
	p.cli.Disconnect(250)
}
