package session

import (
	"context"
	"errors"
	"time"
)

const (
	LevelInfo    = "info"
	LevelSuccess = "success"
	LevelWarning = "warning"
	LevelError   = "error"
)

var (
	ErrNotFound      = errors.New("session not found")
	ErrCorrupt       = errors.New("session payload is malformed")
	ErrInvalidCookie = errors.New("invalid session cookie")
)

// Message is a one-shot notice shown to the user on their next page view.
type Message struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

// Data is the payload persisted per session. UserID is nil for anonymous
// sessions that only carry flash messages.
type Data struct {
	UserID    *int64    `json:"user_id,omitempty"`
	Flashes   []Message `json:"flashes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Session struct {
	ID   string
	Data Data
	// fresh marks a session that has no cookie on the client yet.
	fresh bool
}

func (s *Session) Authenticated() bool {
	return s != nil && s.Data.UserID != nil
}

func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.Data.ExpiresAt)
}

// addFlash queues msg unless it repeats the most recently queued message.
func (s *Session) addFlash(msg Message) bool {
	if n := len(s.Data.Flashes); n > 0 && s.Data.Flashes[n-1] == msg {
		return false
	}
	s.Data.Flashes = append(s.Data.Flashes, msg)
	return true
}

type ctxKey string

const contextSessionKey ctxKey = "session"

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextSessionKey, s)
}

func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(contextSessionKey).(*Session)
	return s, ok && s != nil
}
