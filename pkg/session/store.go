// Package session provides a per-visitor key/value store scoped under a
// namespace, used to hold checkout state between storefront requests.
package session

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Namespace is the default key namespace.
const Namespace = "fez_delivery_plugin"

// ErrNoSession is returned when a session id is empty.
var ErrNoSession = errors.New("session: empty session id")

// Store is a scoped key/value store. All keys live under (namespace, session id).
type Store interface {
	// Get returns a value and whether it was present.
	Get(ctx context.Context, sid, key string) (string, bool, error)

	// GetAll returns every key of the session.
	GetAll(ctx context.Context, sid string) (map[string]string, error)

	// SetMany writes several keys in one call.
	SetMany(ctx context.Context, sid string, values map[string]string) error

	// Replace removes unset and writes values in one call. Either both
	// apply or neither does.
	Replace(ctx context.Context, sid string, unset []string, values map[string]string) error

	// Unset removes keys in one call. Missing keys are ignored.
	Unset(ctx context.Context, sid string, keys ...string) error

	// Destroy removes the whole session.
	Destroy(ctx context.Context, sid string) error
}

// NewID returns a fresh random session id.
func NewID() string {
	return uuid.NewString()
}
