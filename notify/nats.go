package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSBroadcaster implements Broadcaster over core NATS pub/sub.
// Core NATS is at-most-once delivery, which is exactly the contract:
// the side channel never carries authoritative state.
type NATSBroadcaster struct {
	conn    *nats.Conn
	config  NATSConfig
	ownConn bool
}

// NATSConfig holds NATS broadcaster configuration.
type NATSConfig struct {
	Config // Embed base config

	// URL is the NATS server URL (e.g., "nats://localhost:4222").
	URL string

	// Name is the client name for identification.
	Name string

	// Subject the events are published on.
	// Default: "taskledger.events"
	Subject string

	// ReconnectWait is the time to wait between reconnection attempts.
	ReconnectWait time.Duration

	// MaxReconnects is the maximum number of reconnection attempts.
	// -1 = unlimited
	MaxReconnects int

	// ConnectTimeout for initial connection.
	ConnectTimeout time.Duration
}

// DefaultNATSConfig returns configuration with sensible defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		Config:         DefaultConfig(),
		URL:            nats.DefaultURL,
		Subject:        "taskledger.events",
		ReconnectWait:  2 * time.Second,
		MaxReconnects:  -1, // Unlimited
		ConnectTimeout: 5 * time.Second,
	}
}

// NewNATSBroadcaster connects to NATS and creates a broadcaster.
func NewNATSBroadcaster(cfg NATSConfig) (*NATSBroadcaster, error) {
	applyNATSDefaults(&cfg)

	opts := []nats.Option{
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.Timeout(cfg.ConnectTimeout),
	}
	if cfg.Name != "" {
		opts = append(opts, nats.Name(cfg.Name))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &NATSBroadcaster{conn: conn, config: cfg, ownConn: true}, nil
}

// NewNATSBroadcasterFromConn creates a broadcaster on an existing
// connection. Close leaves the connection open for its owner.
func NewNATSBroadcasterFromConn(conn *nats.Conn, cfg NATSConfig) *NATSBroadcaster {
	applyNATSDefaults(&cfg)
	return &NATSBroadcaster{conn: conn, config: cfg}
}

func applyNATSDefaults(cfg *NATSConfig) {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.Subject == "" {
		cfg.Subject = DefaultNATSConfig().Subject
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = DefaultNATSConfig().ReconnectWait
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultNATSConfig().ConnectTimeout
	}
}

// Publish sends an event to all subscribers.
func (b *NATSBroadcaster) Publish(event Event) error {
	if err := ValidateEvent(event); err != nil {
		return err
	}
	if b.conn.IsClosed() {
		return ErrClosed
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	if err := b.conn.Publish(b.config.Subject, data); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

// Subscribe creates a subscription to the event stream.
// Payloads that do not decode as events are ignored: the side channel is
// not relied on for correctness.
func (b *NATSBroadcaster) Subscribe() (Subscription, error) {
	if b.conn.IsClosed() {
		return nil, ErrClosed
	}

	ch := make(chan Event, b.config.BufferSize)

	natsSub, err := b.conn.Subscribe(b.config.Subject, func(m *nats.Msg) {
		var event Event
		if err := json.Unmarshal(m.Data, &event); err != nil {
			return
		}
		if ValidateEvent(event) != nil {
			return
		}
		select {
		case ch <- event:
		default:
			// Buffer full, drop event
		}
	})
	if err != nil {
		close(ch)
		return nil, fmt.Errorf("nats subscribe: %w", err)
	}

	return &natsEventSub{sub: natsSub, ch: ch}, nil
}

// Close shuts down the broadcaster. Connections passed in via
// NewNATSBroadcasterFromConn stay open.
func (b *NATSBroadcaster) Close() error {
	if b.ownConn {
		b.conn.Close()
	}
	return nil
}

// Conn returns the underlying NATS connection for advanced use.
func (b *NATSBroadcaster) Conn() *nats.Conn {
	return b.conn
}

// natsEventSub wraps a NATS subscription.
type natsEventSub struct {
	sub *nats.Subscription
	ch  chan Event
}

// Events returns the event channel.
func (s *natsEventSub) Events() <-chan Event {
	return s.ch
}

// Unsubscribe cancels the subscription.
func (s *natsEventSub) Unsubscribe() error {
	err := s.sub.Unsubscribe()
	close(s.ch)
	return err
}
