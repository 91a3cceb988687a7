package notify

import (
	"sync"
	"sync/atomic"
)

// MemoryBroadcaster implements Broadcaster using in-process channels.
// Useful for testing and single-process scenarios.
type MemoryBroadcaster struct {
	config Config

	mu     sync.RWMutex
	subs   []*memorySub
	closed atomic.Bool
}

type memorySub struct {
	ch     chan Event
	closed atomic.Bool
	b      *MemoryBroadcaster
}

// NewMemoryBroadcaster creates a new in-process broadcaster.
func NewMemoryBroadcaster(cfg Config) *MemoryBroadcaster {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}

	return &MemoryBroadcaster{
		config: cfg,
	}
}

// Publish sends an event to all subscribers.
func (b *MemoryBroadcaster) Publish(event Event) error {
	if err := ValidateEvent(event); err != nil {
		return err
	}
	if b.closed.Load() {
		return ErrClosed
	}

	b.mu.RLock()
	subs := b.subs
	b.mu.RUnlock()

	for _, sub := range subs {
		if !sub.closed.Load() {
			select {
			case sub.ch <- event:
			default:
				// Buffer full, drop event
			}
		}
	}

	return nil
}

// Subscribe creates a subscription to the event stream.
func (b *MemoryBroadcaster) Subscribe() (Subscription, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}

	sub := &memorySub{
		ch: make(chan Event, b.config.BufferSize),
		b:  b,
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	return sub, nil
}

// Close shuts down the broadcaster.
func (b *MemoryBroadcaster) Close() error {
	if b.closed.Swap(true) {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		if !sub.closed.Swap(true) {
			close(sub.ch)
		}
	}
	b.subs = nil

	return nil
}

// Events returns the event channel.
func (s *memorySub) Events() <-chan Event {
	return s.ch
}

// Unsubscribe cancels the subscription.
func (s *memorySub) Unsubscribe() error {
	if s.closed.Swap(true) {
		return nil
	}

	s.b.mu.Lock()
	defer s.b.mu.Unlock()

	for i, sub := range s.b.subs {
		if sub == s {
			s.b.subs = append(s.b.subs[:i], s.b.subs[i+1:]...)
			break
		}
	}

	close(s.ch)
	return nil
}
