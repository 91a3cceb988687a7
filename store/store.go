package store

import (
	"errors"
)

// Common errors.
var (
	ErrNotFound   = errors.New("key not found")
	ErrClosed     = errors.New("store closed")
	ErrInvalidKey = errors.New("invalid key")
)

// MaxKeyLen bounds key length. Identities flow into index key names
// (tasks:assignee:<identity>), so the bound is generous.
const MaxKeyLen = 4096

// Store provides deterministic key-value and named-set storage for the
// ledger state machine. Implementations must not consult the clock,
// randomness, or the network inside these primitives: given the same
// call sequence, every backend observes the same state.
type Store interface {
	// Get retrieves a value by key.
	// Returns ErrNotFound if the key does not exist.
	Get(key string) ([]byte, error)

	// Set stores a value, creating or replacing the key.
	Set(key string, value []byte) error

	// Increment atomically increments the named counter and returns the
	// new value. The first increment of an unseen key returns 1.
	Increment(key string) (int64, error)

	// SAdd adds a member to the named set. Adding an existing member is
	// a no-op.
	SAdd(key, member string) error

	// SRem removes a member from the named set. Removing an absent
	// member is a no-op.
	SRem(key, member string) error

	// SMembers returns all members of the named set in lexicographic
	// order. An absent set yields an empty slice, not an error.
	SMembers(key string) ([]string, error)

	// Close shuts down the store and releases resources.
	Close() error
}

// ValidateKey checks if a key is valid.
func ValidateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLen {
		return ErrInvalidKey
	}
	for i := 0; i < len(key); i++ {
		if key[i] == '\n' || key[i] == '\r' {
			return ErrInvalidKey
		}
	}
	return nil
}
