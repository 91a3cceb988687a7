// Package members provides the membership roster a ledger node consults
// for authorization.
//
// The deterministic core asks one question (IsAdmin, for cancel_task);
// the gateway asks a second (CanWrite) before accepting a transaction at
// all. Identities are opaque strings compared exactly; the roster never
// validates that an identity exists anywhere else.
package members

import (
	"errors"
	"strings"
)

// Common errors.
var (
	ErrClosed          = errors.New("roster closed")
	ErrInvalidIdentity = errors.New("invalid identity")
)

// Roster answers membership questions for a set of identities.
type Roster interface {
	// IsAdmin reports whether the identity holds the admin capability.
	IsAdmin(identity string) bool

	// CanWrite reports whether the identity may submit transactions.
	// Admins can always write; writers can write; with open join enabled
	// anyone can write.
	CanWrite(identity string) bool
}

// ValidateIdentity checks if an identity is usable as a signer.
func ValidateIdentity(identity string) error {
	if strings.TrimSpace(identity) == "" {
		return ErrInvalidIdentity
	}
	return nil
}

// StaticRoster is an immutable Roster built from configuration.
// Suitable for production nodes whose membership comes from the config
// file; concurrent reads need no locking.
type StaticRoster struct {
	admins   map[string]struct{}
	writers  map[string]struct{}
	openJoin bool
}

// StaticRosterConfig holds the membership lists for a StaticRoster.
type StaticRosterConfig struct {
	// Admins hold the admin capability.
	Admins []string

	// Writers may submit transactions but are not admins.
	Writers []string

	// OpenJoin, when true, lets any identity submit transactions.
	OpenJoin bool
}

// NewStaticRoster creates a roster from fixed membership lists.
// Blank entries are ignored.
func NewStaticRoster(cfg StaticRosterConfig) *StaticRoster {
	r := &StaticRoster{
		admins:   make(map[string]struct{}),
		writers:  make(map[string]struct{}),
		openJoin: cfg.OpenJoin,
	}
	for _, id := range cfg.Admins {
		if id = strings.TrimSpace(id); id != "" {
			r.admins[id] = struct{}{}
		}
	}
	for _, id := range cfg.Writers {
		if id = strings.TrimSpace(id); id != "" {
			r.writers[id] = struct{}{}
		}
	}
	return r
}

// IsAdmin reports whether the identity holds the admin capability.
func (r *StaticRoster) IsAdmin(identity string) bool {
	_, ok := r.admins[identity]
	return ok
}

// CanWrite reports whether the identity may submit transactions.
func (r *StaticRoster) CanWrite(identity string) bool {
	if identity == "" {
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

// Admins returns the admin identities in no particular order.
func (r *StaticRoster) Admins() []string {
	out := make([]string, 0, len(r.admins))
	for id := range r.admins {
		out = append(out, id)
	}
	return out
}
