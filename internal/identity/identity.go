// Package identity is the client side of the GenMode identity provider. It signs users in
// and out, keeps the current session in the durable cache, refreshes it when the access
// token lapses and announces every change on a subscription channel.
package identity

import (
	"errors"
	"fmt"
	"time"
)

// EventType names a session change.
type EventType string

const (
	EventInitialSession EventType = "INITIAL_SESSION"
	EventSignedIn       EventType = "SIGNED_IN"
	EventSignedOut      EventType = "SIGNED_OUT"
	EventTokenRefreshed EventType = "TOKEN_REFRESHED"
	EventUserUpdated    EventType = "USER_UPDATED"
)

// Event is delivered to subscribers. Session is nil when no user is signed in. Seq
// increases by one for every event a Client emits, so a subscriber can tell whether an
// event predates a call it made itself.
type Event struct {
	Type    EventType
	Session *Session
	Seq     uint64
}

// User is the account attached to a session.
type User struct {
	ID        string            `json:"id"`
	Email     string            `json:"email"`
	Metadata  map[string]string `json:"user_metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at,omitempty"`
}

// Session is a signed-in user together with the tokens that authenticate them.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// Expired reports whether the access token is unusable at now, allowing for margin.
func (s *Session) Expired(now time.Time, margin time.Duration) bool {
	if s == nil {
		return true
	}
	return !now.Add(margin).Before(s.ExpiresAt)
}

func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.User.Metadata != nil {
		c.User.Metadata = make(map[string]string, len(s.User.Metadata))
		for k, v := range s.User.Metadata {
			c.User.Metadata[k] = v
		}
	}
	return &c
}

// ErrNoSession is returned by operations that need a signed-in user.
var ErrNoSession = errors.New("identity: no active session")

// Error reports a rejected provider call. Code and Message come from the provider when it
// answered; Err holds transport or decoding failures.
type Error struct {
	Op      string
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Err != nil:
		return fmt.Sprintf("identity: %s: %v", e.Op, e.Err)
	case e.Code != "":
		return fmt.Sprintf("identity: %s: %s (%d %s)", e.Op, e.Message, e.Status, e.Code)
	default:
		return fmt.Sprintf("identity: %s: status %d", e.Op, e.Status)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// UserMessage returns text suitable for end users.
func (e *Error) UserMessage() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return "Could not reach the sign-in service. Please try again."
}
