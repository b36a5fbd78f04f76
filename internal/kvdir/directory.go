// Package kvdir is the thin typed interface over a TTL'd key-value store
// that records session->container bindings and ownership. It performs no
// policy: the Session Registry decides when records are created, refreshed,
// or removed; this package only guarantees the forward and reverse keys stay
// consistent with each other.
package kvdir

import (
	"context"
	"time"
)

// Record is the value stored under the forward key session:{user}:{sid}.
// Image and Persist are carried alongside the binding so a stale-container
// recreation (Registry.Resolve) can rebuild the container identically to
// how it was first created, without the caller re-supplying them.
type Record struct {
	ContainerID string `json:"container_id"`
	VolumeName  string `json:"volume_name,omitempty"`
	Image       string `json:"image"`
	Persist     bool   `json:"persist"`
}

// ReverseRecord is the value stored under the reverse key container:{cid},
// used by the reaper to map a listed container back to its owning session.
type ReverseRecord struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
}

// Directory is the KV-backed session directory (spec §4.1). Implementations
// must make PutSession and DeleteSession atomic across both the forward and
// reverse keys.
type Directory interface {
	// GetSession returns the record for (user, sid), or ok=false if absent
	// or expired.
	GetSession(ctx context.Context, user, sid string) (rec Record, ok bool, err error)

	// PutSession atomically writes both the forward and reverse keys with
	// the given ttl.
	PutSession(ctx context.Context, user, sid string, rec Record, ttl time.Duration) error

	// RefreshTTL extends the TTL on both the forward and reverse keys. It
	// is a no-op, not an error, if the forward key is absent.
	RefreshTTL(ctx context.Context, user, sid string, ttl time.Duration) error

	// DeleteSession removes both the forward and reverse keys.
	DeleteSession(ctx context.Context, user, sid string) error

	// GetReverse returns the owning (user, sid) for a container_id, used by
	// the reaper during reconciliation.
	GetReverse(ctx context.Context, containerID string) (rec ReverseRecord, ok bool, err error)

	// Close releases the underlying store connection.
	Close() error
}

func forwardKey(user, sid string) string {
	return "session:" + user + ":" + sid
}

func reverseKey(containerID string) string {
	return "container:" + containerID
}
