package notify

import (
	"errors"
)

// Common errors.
var (
	ErrClosed       = errors.New("broadcaster closed")
	ErrInvalidEvent = errors.New("invalid event")
)

// Event types carried on the side channel.
const (
	EventTaskUpdate = "task_update"
	EventChat       = "chat"
)

// Event is a single broadcast payload. Task updates carry ID and Status;
// chat messages carry Text. Events are never persisted and never part of
// replicated state.
type Event struct {
	Type   string `json:"type"`
	ID     string `json:"id,omitempty"`
	Status string `json:"status,omitempty"`
	Text   string `json:"text,omitempty"`
}

// TaskUpdate builds a task_update event.
func TaskUpdate(id, status string) Event {
	return Event{Type: EventTaskUpdate, ID: id, Status: status}
}

// Chat builds a chat event.
func Chat(text string) Event {
	return Event{Type: EventChat, Text: text}
}

// Broadcaster provides fire-and-forget event fan-out.
type Broadcaster interface {
	// Publish sends an event to all subscribers. Delivery is
	// best-effort: slow subscribers miss events rather than block the
	// publisher.
	Publish(event Event) error

	// Subscribe creates a subscription to the event stream.
	Subscribe() (Subscription, error)

	// Close shuts down the broadcaster.
	Close() error
}

// Subscription represents an active subscription.
type Subscription interface {
	// Events returns the channel of incoming events.
	// The channel is closed when the subscription ends.
	Events() <-chan Event

	// Unsubscribe cancels the subscription.
	Unsubscribe() error
}

// Config holds common broadcaster configuration.
type Config struct {
	// BufferSize for subscription channels.
	// Default: 256
	BufferSize int
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BufferSize: 256,
	}
}

// ValidateEvent checks that an event is publishable.
func ValidateEvent(event Event) error {
	switch event.Type {
	case EventTaskUpdate:
		if event.ID == "" || event.Status == "" {
			return ErrInvalidEvent
		}
	case EventChat:
		if event.Text == "" {
			return ErrInvalidEvent
		}
	default:
		return ErrInvalidEvent
	}
	return nil
}
