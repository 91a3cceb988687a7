package oplog

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSLog implements Log on a NATS JetStream stream. The stream sequence
// number is the operation sequence: JetStream assigns it once, totally
// ordered, and every node reads the same numbering.
type NATSLog struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	stream jetstream.Stream
	config NATSLogConfig
	closed atomic.Bool
}

// NATSLogConfig holds NATS log configuration.
type NATSLogConfig struct {
	// Conn is the NATS connection to use.
	Conn *nats.Conn

	// Stream is the JetStream stream name.
	// Default: "TASKLEDGER_OPS"
	Stream string

	// Subject operations are published on.
	// Default: "taskledger.ops"
	Subject string

	// BufferSize for subscription channels.
	// Default: 256
	BufferSize int

	// Replicas is the stream replication factor.
	// Default: 1
	Replicas int
}

// DefaultNATSLogConfig returns configuration with sensible defaults.
func DefaultNATSLogConfig() NATSLogConfig {
	return NATSLogConfig{
		Stream:     "TASKLEDGER_OPS",
		Subject:    "taskledger.ops",
		BufferSize: 256,
		Replicas:   1,
	}
}

// NewNATSLog creates (or attaches to) the operation stream.
func NewNATSLog(cfg NATSLogConfig) (*NATSLog, error) {
	if cfg.Conn == nil {
		return nil, fmt.Errorf("nats connection required")
	}
	if cfg.Stream == "" {
		cfg.Stream = DefaultNATSLogConfig().Stream
	}
	if cfg.Subject == "" {
		cfg.Subject = DefaultNATSLogConfig().Subject
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultNATSLogConfig().BufferSize
	}
	if cfg.Replicas <= 0 {
		cfg.Replicas = DefaultNATSLogConfig().Replicas
	}

	js, err := jetstream.New(cfg.Conn)
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      cfg.Stream,
		Subjects:  []string{cfg.Subject},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		Replicas:  cfg.Replicas,
	})
	if err != nil {
		return nil, fmt.Errorf("create stream: %w", err)
	}

	return &NATSLog{
		conn:   cfg.Conn,
		js:     js,
		stream: stream,
		config: cfg,
	}, nil
}

// Append publishes an operation and returns the stream sequence
// JetStream assigned to it.
func (l *NATSLog) Append(op Operation) (uint64, error) {
	if err := ValidateOperation(op); err != nil {
		return 0, err
	}
	if l.closed.Load() {
		return 0, ErrClosed
	}

	op.Seq = 0 // assigned by the stream
	data, err := json.Marshal(op)
	if err != nil {
		return 0, fmt.Errorf("encode operation: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ack, err := l.js.Publish(ctx, l.config.Subject, data)
	if err != nil {
		return 0, fmt.Errorf("publish operation: %w", err)
	}
	return ack.Sequence, nil
}

// Replay invokes fn for stored operations with Seq >= fromSeq, stopping
// at the stream end observed when the replay started.
func (l *NATSLog) Replay(fromSeq uint64, fn func(Operation) error) error {
	if l.closed.Load() {
		return ErrClosed
	}
	if fromSeq < 1 {
		fromSeq = 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	info, err := l.stream.Info(ctx)
	if err != nil {
		return fmt.Errorf("stream info: %w", err)
	}
	last := info.State.LastSeq
	if last == 0 || fromSeq > last {
		return nil
	}

	cons, err := l.js.OrderedConsumer(ctx, l.config.Stream, jetstream.OrderedConsumerConfig{
		DeliverPolicy: jetstream.DeliverByStartSequencePolicy,
		OptStartSeq:   fromSeq,
	})
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}

	it, err := cons.Messages()
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	defer it.Stop()

	for {
		msg, err := it.Next()
		if err != nil {
			return fmt.Errorf("next operation: %w", err)
		}
		op, err := decodeOperation(msg)
		if err != nil {
			// Only Append writes this subject; an undecodable entry is
			// stream corruption and replay cannot continue past it.
			return err
		}
		if err := fn(op); err != nil {
			return err
		}
		if op.Seq >= last {
			return nil
		}
	}
}

// Subscribe delivers operations from fromSeq in order, backlog first,
// then live appends.
func (l *NATSLog) Subscribe(fromSeq uint64) (LogSubscription, error) {
	if l.closed.Load() {
		return nil, ErrClosed
	}
	if fromSeq < 1 {
		fromSeq = 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cons, err := l.js.OrderedConsumer(ctx, l.config.Stream, jetstream.OrderedConsumerConfig{
		DeliverPolicy: jetstream.DeliverByStartSequencePolicy,
		OptStartSeq:   fromSeq,
	})
	if err != nil {
		return nil, fmt.Errorf("create consumer: %w", err)
	}

	sub := &natsLogSub{
		raw:  make(chan Operation),
		ch:   make(chan Operation, l.config.BufferSize),
		done: make(chan struct{}),
	}
	go sub.forward()

	cc, err := cons.Consume(func(msg jetstream.Msg) {
		op, err := decodeOperation(msg)
		if err != nil {
			// Corrupt entry; restart-time Replay surfaces it loudly.
			return
		}
		select {
		case sub.raw <- op:
		case <-sub.done:
		}
	})
	if err != nil {
		sub.stop()
		return nil, fmt.Errorf("consume: %w", err)
	}
	sub.cc = cc
	return sub, nil
}

// LastSeq returns the highest sequence number in the stream.
func (l *NATSLog) LastSeq() (uint64, error) {
	if l.closed.Load() {
		return 0, ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	info, err := l.stream.Info(ctx)
	if err != nil {
		return 0, fmt.Errorf("stream info: %w", err)
	}
	return info.State.LastSeq, nil
}

// Close shuts down the log. Active subscriptions are owned by their
// creators and should be unsubscribed first; the NATS connection is
// owned by the caller and stays open.
func (l *NATSLog) Close() error {
	l.closed.Store(true)
	return nil
}

// decodeOperation rebuilds an envelope from a stream message. The
// authoritative sequence comes from stream metadata, not the payload.
func decodeOperation(msg jetstream.Msg) (Operation, error) {
	var op Operation
	if err := json.Unmarshal(msg.Data(), &op); err != nil {
		return Operation{}, fmt.Errorf("decode operation: %w", err)
	}
	meta, err := msg.Metadata()
	if err != nil {
		return Operation{}, fmt.Errorf("operation metadata: %w", err)
	}
	op.Seq = meta.Sequence.Stream
	return op, nil
}

// natsLogSub wraps an ordered JetStream consumer. A forwarding goroutine
// owns the outbound channel so the consume callback never races its
// close.
type natsLogSub struct {
	cc     jetstream.ConsumeContext
	raw    chan Operation
	ch     chan Operation
	done   chan struct{}
	closed atomic.Bool
}

func (s *natsLogSub) forward() {
	defer close(s.ch)
	for {
		select {
		case op := <-s.raw:
			select {
			case s.ch <- op:
			case <-s.done:
				return
			}
		case <-s.done:
			return
		}
	}
}

// Operations returns the operation channel.
func (s *natsLogSub) Operations() <-chan Operation {
	return s.ch
}

// Unsubscribe cancels the subscription.
func (s *natsLogSub) Unsubscribe() error {
	s.stop()
	return nil
}

func (s *natsLogSub) stop() {
	if s.closed.Swap(true) {
		return
	}
	close(s.done)
	if s.cc != nil {
		s.cc.Stop()
	}
}
