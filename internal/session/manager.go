package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type Backend interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, sess *Session) error
	Delete(ctx context.Context, id string) error
}

type Options struct {
	CookieName string
	Secure     bool
	TTL        time.Duration
}

// Manager ties the signed cookie to the stored session record.
type Manager struct {
	store  Backend
	codec  *CookieCodec
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

func NewManager(store Backend, codec *CookieCodec, opts Options, logger *slog.Logger) *Manager {
	return &Manager{
		store:  store,
		codec:  codec,
		opts:   opts,
		logger: logger,
		now:    time.Now,
	}
}

// Load resolves the request's session. A missing, forged, expired or
// vanished session yields (nil, nil); only store failures are errors.
func (m *Manager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(m.opts.CookieName)
	if err != nil || cookie.Value == "" {
		return nil, nil
	}

	id, err := m.codec.Decode(cookie.Value)
	if err != nil {
		m.logger.DebugContext(ctx, "ignoring session cookie", "error", err)
		return nil, nil
	}

	sess, err := m.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrCorrupt) {
			return nil, nil
		}
		return nil, err
	}
	if sess.Expired(m.now()) {
		return nil, nil
	}
	return sess, nil
}

func (m *Manager) newSession() *Session {
	now := m.now()
	return &Session{
		ID: uuid.NewString(),
		Data: Data{
			CreatedAt: now,
			ExpiresAt: now.Add(m.opts.TTL),
		},
		fresh: true,
	}
}

// Start opens an authenticated session under a new id. Pending flash
// messages of the previous session are carried over and the old record is removed.
func (m *Manager) Start(ctx context.Context, w http.ResponseWriter, previous *Session, userID int64) (*Session, error) {
	sess := m.newSession()
	sess.Data.UserID = &userID
	if previous != nil {
		sess.Data.Flashes = previous.Data.Flashes
	}

	if err := m.persist(ctx, w, sess); err != nil {
		return nil, err
	}
	if previous != nil {
		if err := m.store.Delete(ctx, previous.ID); err != nil {
			m.logger.WarnContext(ctx, "failed to drop previous session", "error", err)
		}
	}
	return sess, nil
}

// Destroy removes the session record and expires the cookie.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, sess *Session) error {
	http.SetCookie(w, &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	if sess == nil {
		return nil
	}
	return m.store.Delete(ctx, sess.ID)
}

// AddFlash queues a message on the request's session, opening an anonymous
// session when there is none. It returns the session that now holds the message.
// The message is dropped when it repeats the last queued one.
func (m *Manager) AddFlash(ctx context.Context, w http.ResponseWriter, sess *Session, msg Message) (*Session, error) {
	if sess == nil {
		sess = m.newSession()
	}
	if !sess.addFlash(msg) {
		return sess, nil
	}
	return sess, m.persist(ctx, w, sess)
}

// PopFlashes drains the queued messages.
func (m *Manager) PopFlashes(ctx context.Context, w http.ResponseWriter, sess *Session) ([]Message, error) {
	if sess == nil || len(sess.Data.Flashes) == 0 {
		return []Message{}, nil
	}
	msgs := sess.Data.Flashes
	sess.Data.Flashes = nil
	if err := m.persist(ctx, w, sess); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (m *Manager) persist(ctx context.Context, w http.ResponseWriter, sess *Session) error {
	if err := m.store.Save(ctx, sess); err != nil {
		return err
	}
	if !sess.fresh {
		return nil
	}

	value, err := m.codec.Encode(sess.ID, sess.Data.ExpiresAt)
	if err != nil {
		return fmt.Errorf("encode session cookie: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    value,
		Path:     "/",
		Expires:  sess.Data.ExpiresAt,
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	sess.fresh = false
	return nil
}
