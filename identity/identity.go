package identity

import (
	"context"
	"time"
)

// Session is an authenticated identity held by a gateway. Token is opaque to everything
// except the gateway that issued it.
type Session struct {
	UserID    string    `json:"user_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Valid reports whether the session is present and not expired at now.
// A zero ExpiresAt never expires.
func (s *Session) Valid(now time.Time) bool {
	if s == nil || s.UserID == "" {
		return false
	}
	return s.ExpiresAt.IsZero() || now.Before(s.ExpiresAt)
}

type EventType int

const (
	EventEstablished EventType = iota + 1
	EventCleared
)

func (t EventType) String() string {
	switch t {
	case EventEstablished:
		return "established"
	case EventCleared:
		return "cleared"
	}
	return "unknown"
}

// Event is a session change. Session is nil for EventCleared.
type Event struct {
	Type    EventType
	Session *Session
}

// Metadata is attached to an account at sign-up
type Metadata struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// SignUpResult carries the new account id; Session is nil when the provider
// requires email confirmation first.
type SignUpResult struct {
	UserID  string
	Session *Session
}

// Gateway is the external identity provider
type Gateway interface {
	// GetCurrentSession returns nil, nil when no session is active
	GetCurrentSession(ctx context.Context) (*Session, error)
	// OnSessionChange delivers events in the order they happened until the returned
	// func is called, which closes the channel
	OnSessionChange() (<-chan Event, func())
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string, meta Metadata) (*SignUpResult, error)
	SignOut(ctx context.Context) error
}
