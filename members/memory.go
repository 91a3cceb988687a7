package members

import (
	"sync"
)

// MemoryRoster is a mutable in-memory Roster.
// Suitable for testing and for demos that grant capabilities at runtime.
type MemoryRoster struct {
	mu       sync.RWMutex
	admins   map[string]struct{}
	writers  map[string]struct{}
	openJoin bool
	closed   bool
}

// NewMemoryRoster creates an empty mutable roster.
func NewMemoryRoster() *MemoryRoster {
	return &MemoryRoster{
		admins:  make(map[string]struct{}),
		writers: make(map[string]struct{}),
	}
}

// GrantAdmin adds the identity to the admin set.
func (r *MemoryRoster) GrantAdmin(identity string) error {
	if err := ValidateIdentity(identity); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	r.admins[identity] = struct{}{}
	return nil
}

// RevokeAdmin removes the identity from the admin set.
// Revoking a non-admin is a no-op.
func (r *MemoryRoster) RevokeAdmin(identity string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	delete(r.admins, identity)
	return nil
}

// GrantWrite adds the identity to the writer set.
func (r *MemoryRoster) GrantWrite(identity string) error {
	if err := ValidateIdentity(identity); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	r.writers[identity] = struct{}{}
	return nil
}

// RevokeWrite removes the identity from the writer set.
func (r *MemoryRoster) RevokeWrite(identity string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	delete(r.writers, identity)
	return nil
}

// SetOpenJoin toggles whether any identity may write.
func (r *MemoryRoster) SetOpenJoin(open bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.openJoin = open
}

// IsAdmin reports whether the identity holds the admin capability.
func (r *MemoryRoster) IsAdmin(identity string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return false
	}
	_, ok := r.admins[identity]
	return ok
}

// CanWrite reports whether the identity may submit transactions.
func (r *MemoryRoster) CanWrite(identity string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed || identity == "" {
		return false
	}
	if r.openJoin {
		return true
	}
	if _, ok := r.admins[identity]; ok {
		return true
	}
	_, ok := r.writers[identity]
	return ok
}

// Close marks the roster closed; all capability checks fail afterwards.
func (r *MemoryRoster) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	r.admins = nil
	r.writers = nil
	return nil
}
