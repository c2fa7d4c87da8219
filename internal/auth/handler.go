package auth

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/sara-platform/portal/internal/session"
	"github.com/sara-platform/portal/internal/transport"
)

type ServiceAPI interface {
	Authenticate(ctx context.Context, dto LoginDTO, sourceAddr string) (*Identity, error)
}

type SessionAPI interface {
	Start(ctx context.Context, w http.ResponseWriter, previous *session.Session, userID int64) (*session.Session, error)
	Destroy(ctx context.Context, w http.ResponseWriter, sess *session.Session) error
	AddFlash(ctx context.Context, w http.ResponseWriter, sess *session.Session, msg session.Message) (*session.Session, error)
	PopFlashes(ctx context.Context, w http.ResponseWriter, sess *session.Session) ([]session.Message, error)
}

type Handler struct {
	*transport.BaseHandler
	Service  ServiceAPI
	Sessions SessionAPI
	HomePath string
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI, sessions SessionAPI, homePath string) *Handler {
	if homePath == "" {
		homePath = "/"
	}
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
		Sessions:    sessions,
		HomePath:    homePath,
	}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var dto LoginDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	previous, _ := session.FromContext(ctx)
	identity, err := h.Service.Authenticate(ctx, dto, ClientAddress(r))
	if err != nil {
		if errors.Is(err, ErrSourceDenied) {
			if _, ferr := h.Sessions.AddFlash(ctx, w, previous, session.Message{Level: session.LevelError, Text: ErrSourceDenied.Message}); ferr != nil {
				h.Logger.WarnContext(ctx, "Handler: failed to queue login flash", "error", ferr)
			}
		}
		h.Logger.WarnContext(ctx, "Handler: authentication failed", "username", dto.Username, "error", err)
		h.HandleServiceError(w, r, err)
		return
	}

	if _, err := h.Sessions.Start(ctx, w, previous, identity.UserID); err != nil {
		h.Logger.ErrorContext(ctx, "Handler: failed to start session", "user_id", identity.UserID, "error", err)
		h.HandleServiceError(w, r, err)
		return
	}

	h.Logger.InfoContext(ctx, "Handler: user logged in", "user_id", identity.UserID)
	h.WriteJSON(w, http.StatusOK, LoginResponse{
		Message:     "Welcome, " + identity.Username + ".",
		RedirectURL: SafeRedirect(dto.Next, h.HomePath),
	})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, _ := session.FromContext(ctx)
	if err := h.Sessions.Destroy(ctx, w, sess); err != nil {
		h.Logger.ErrorContext(ctx, "Handler: failed to destroy session", "error", err)
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, LoginResponse{
		Message:     "You have been logged out.",
		RedirectURL: h.HomePath,
	})
}

// Messages drains the flash messages queued on the session.
func (h *Handler) Messages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, _ := session.FromContext(ctx)
	msgs, err := h.Sessions.PopFlashes(ctx, w, sess)
	if err != nil {
		h.Logger.ErrorContext(ctx, "Handler: failed to read flash messages", "error", err)
		h.HandleServiceError(w, r, err)
		return
	}

	resp := MessagesResponse{Messages: make([]MessageResponse, 0, len(msgs))}
	for _, m := range msgs {
		resp.Messages = append(resp.Messages, MessageResponse{Level: m.Level, Text: m.Text})
	}
	h.WriteJSON(w, http.StatusOK, resp)
}

// SafeRedirect returns next when it is a local absolute path, fallback otherwise.
func SafeRedirect(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return fallback
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return fallback
	}
	return next
}
