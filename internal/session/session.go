// Package session stores authentication sessions keyed by bearer token.
//
// Two backends are provided. MemoryStore keeps sessions in process memory and
// loses them on restart. RedisStore keeps them in Redis with a native TTL so
// they survive restarts and can be shared between instances.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a token is unknown or its session has expired.
var ErrNotFound = errors.New("session not found")

// Session is the identity bound to a token.
type Session struct {
	UserID    uint      `json:"user_id"`
	Username  string    `json:"username"`
	ProjectID uint      `json:"project_id"`
	Roles     []string  `json:"roles"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HasRole reports whether the session carries role.
func (s Session) HasRole(role string) bool {
	for _, r := range s.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Store persists sessions with a time-to-live.
type Store interface {
	// Put stores s under token for ttl.
	Put(ctx context.Context, token string, s Session, ttl time.Duration) error

	// Get returns the session for token, or ErrNotFound.
	Get(ctx context.Context, token string) (Session, error)

	// Delete removes token. Deleting an unknown token is not an error.
	Delete(ctx context.Context, token string) error
}
