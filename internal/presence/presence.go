package presence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sara-platform/portal/internal/session"
)

const (
	DefaultOnlineWindow = 5 * time.Minute

	StrategyTimestamp = "timestamp"
	StrategySessions  = "sessions"
)

type RepositoryAPI interface {
	// TouchLastActivity writes only the last_activity column of one user.
	TouchLastActivity(ctx context.Context, userID int64, at time.Time) error
	ActiveSince(ctx context.Context, since time.Time) ([]int64, error)
}

// SessionSource enumerates stored sessions.
type SessionSource interface {
	Scan(ctx context.Context, fn func(*session.Session) error) error
}

type Option func(*Tracker)

func WithSessions(src SessionSource) Option {
	return func(t *Tracker) { t.sessions = src }
}

func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

func WithWindow(window time.Duration) Option {
	return func(t *Tracker) {
		if window > 0 {
			t.window = window
		}
	}
}

type Tracker struct {
	repo     RepositoryAPI
	sessions SessionSource
	window   time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

func NewTracker(repo RepositoryAPI, logger *slog.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		repo:   repo,
		window: DefaultOnlineWindow,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tracker) Window() time.Duration {
	return t.window
}

func (t *Tracker) Touch(ctx context.Context, userID int64) error {
	if err := t.repo.TouchLastActivity(ctx, userID, t.now()); err != nil {
		return fmt.Errorf("touch user %d: %w", userID, err)
	}
	return nil
}

// IsOnline reports whether lastActivity falls within the online window.
func (t *Tracker) IsOnline(lastActivity *time.Time) bool {
	return isOnlineAt(lastActivity, t.now(), t.window)
}

func isOnlineAt(lastActivity *time.Time, now time.Time, window time.Duration) bool {
	if lastActivity == nil {
		return false
	}
	return now.Before(lastActivity.Add(window))
}

// OnlineUserIDs derives the online set from last_activity recency.
func (t *Tracker) OnlineUserIDs(ctx context.Context) (map[int64]struct{}, error) {
	ids, err := t.repo.ActiveSince(ctx, t.now().Add(-t.window))
	if err != nil {
		return nil, fmt.Errorf("list recently active users: %w", err)
	}
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// SessionOnlineUserIDs derives the online set from live sessions. Anonymous
// and expired sessions are skipped.
func (t *Tracker) SessionOnlineUserIDs(ctx context.Context) (map[int64]struct{}, error) {
	if t.sessions == nil {
		return nil, fmt.Errorf("session scan is not configured")
	}

	now := t.now()
	set := make(map[int64]struct{})
	err := t.sessions.Scan(ctx, func(s *session.Session) error {
		if s.Data.UserID == nil || s.Expired(now) {
			return nil
		}
		set[*s.Data.UserID] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan sessions: %w", err)
	}
	return set, nil
}

// Online dispatches to the configured derivation strategy.
func (t *Tracker) Online(ctx context.Context, strategy string) (map[int64]struct{}, error) {
	if strategy == StrategySessions {
		return t.SessionOnlineUserIDs(ctx)
	}
	return t.OnlineUserIDs(ctx)
}
