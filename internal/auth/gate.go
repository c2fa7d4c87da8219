package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sara-platform/portal/internal"
	"github.com/sara-platform/portal/internal/core/events"
	"github.com/sara-platform/portal/internal/metrics"
	"github.com/sara-platform/portal/internal/session"
	"github.com/sara-platform/portal/internal/transport"
)

// Gate outcomes, also used as the metrics label.
const (
	OutcomeAllowed         = "allowed"
	OutcomeSuperuser       = "superuser"
	OutcomeUnauthenticated = "unauthenticated"
	OutcomeDenied          = "denied"
	OutcomeMisconfigured   = "misconfigured"
	OutcomeError           = "error"
)

const (
	MessageMisconfigured = "Permission configuration error (route without namespace or action)."
	MessageNotPermitted  = "You do not have permission to access this feature."
)

// GrantChecker answers whether a user holds the module identified by
// (namespace, action).
type GrantChecker interface {
	HasGrant(ctx context.Context, userID int64, namespace, action string) (bool, error)
}

// Flasher queues one-shot messages on the requester's session.
type Flasher interface {
	AddFlash(ctx context.Context, w http.ResponseWriter, sess *session.Session, msg session.Message) (*session.Session, error)
}

type GateConfig struct {
	// HomePath is the login fallback when no usable Referer exists.
	HomePath string
	// ListingPath receives authenticated users that were denied.
	ListingPath string
}

// Gate guards module routes. Every decision produces at most one flash
// message and one redirect; store failures deny with a 500.
type Gate struct {
	*transport.BaseHandler
	grants    GrantChecker
	flasher   Flasher
	publisher events.Publisher
	cfg       GateConfig
}

func NewGate(baseHandler *transport.BaseHandler, grants GrantChecker, flasher Flasher, publisher events.Publisher, cfg GateConfig) *Gate {
	if cfg.HomePath == "" {
		cfg.HomePath = "/"
	}
	if cfg.ListingPath == "" {
		cfg.ListingPath = "/users/"
	}
	return &Gate{
		BaseHandler: baseHandler,
		grants:      grants,
		flasher:     flasher,
		publisher:   publisher,
		cfg:         cfg,
	}
}

// Decide evaluates the gate for an identity. It has no side effects.
func (g *Gate) Decide(ctx context.Context, identity *Identity, namespace, action string) (string, error) {
	if identity == nil {
		return OutcomeUnauthenticated, nil
	}
	if identity.IsSuperuser {
		return OutcomeSuperuser, nil
	}
	if namespace == "" || action == "" {
		return OutcomeMisconfigured, nil
	}

	ok, err := g.grants.HasGrant(ctx, identity.UserID, namespace, action)
	if err != nil {
		return OutcomeError, err
	}
	if !ok {
		return OutcomeDenied, nil
	}
	return OutcomeAllowed, nil
}

// Require protects a route with the module identified by (namespace, action).
func (g *Gate) Require(namespace, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			identity, _ := IdentityFromContext(ctx)

			outcome, err := g.Decide(ctx, identity, namespace, action)
			metrics.GateDecisionsTotal.WithLabelValues(outcome, namespace).Inc()

			switch outcome {
			case OutcomeAllowed, OutcomeSuperuser:
				next.ServeHTTP(w, r)
			case OutcomeUnauthenticated:
				g.redirectToLogin(w, r, namespace)
			case OutcomeMisconfigured:
				g.Logger.ErrorContext(ctx, "gate: route is missing namespace or action",
					"path", r.URL.Path,
					"namespace", namespace,
					"action", action,
					"user_id", identity.UserID)
				g.publishDenied(ctx, identity.UserID, namespace, action, OutcomeMisconfigured)
				g.deny(w, r, MessageMisconfigured)
			case OutcomeDenied:
				g.Logger.WarnContext(ctx, "gate: module not granted",
					"path", r.URL.Path,
					"namespace", namespace,
					"action", action,
					"user_id", identity.UserID)
				g.publishDenied(ctx, identity.UserID, namespace, action, OutcomeDenied)
				g.deny(w, r, MessageNotPermitted)
			default:
				g.Logger.ErrorContext(ctx, "gate: grant lookup failed",
					"path", r.URL.Path,
					"namespace", namespace,
					"action", action,
					"error", err)
				g.WriteAppError(w, internal.NewInternalError("Internal server error", err))
			}
		})
	}
}

// RequireLogin only applies the unauthenticated branch of the gate.
func (g *Gate) RequireLogin(namespace string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := IdentityFromContext(r.Context()); ok {
				next.ServeHTTP(w, r)
				return
			}
			metrics.GateDecisionsTotal.WithLabelValues(OutcomeUnauthenticated, namespace).Inc()
			g.redirectToLogin(w, r, namespace)
		})
	}
}

func (g *Gate) redirectToLogin(w http.ResponseWriter, r *http.Request, namespace string) {
	g.flash(w, r, session.Message{Level: session.LevelInfo, Text: LoginRequiredMessage(namespace)})
	g.Redirect(w, r, LoginRedirectTarget(r, g.cfg.HomePath))
}

func (g *Gate) deny(w http.ResponseWriter, r *http.Request, text string) {
	g.flash(w, r, session.Message{Level: session.LevelError, Text: text})
	g.Redirect(w, r, g.cfg.ListingPath)
}

func (g *Gate) flash(w http.ResponseWriter, r *http.Request, msg session.Message) {
	sess, _ := session.FromContext(r.Context())
	if _, err := g.flasher.AddFlash(r.Context(), w, sess, msg); err != nil {
		g.Logger.WarnContext(r.Context(), "gate: failed to queue flash message", "error", err)
	}
}

func (g *Gate) publishDenied(ctx context.Context, userID int64, namespace, action, reason string) {
	if g.publisher == nil {
		return
	}
	if err := g.publisher.Publish(ctx, events.NewAccessDeniedEvent(userID, namespace, action, reason)); err != nil {
		g.Logger.WarnContext(ctx, "gate: failed to publish access denied event", "error", err)
	}
}

func LoginRequiredMessage(namespace string) string {
	if namespace == "" {
		return "Restricted access. Log in to continue."
	}
	return fmt.Sprintf("Restricted access. Log in to access the %s application.", strings.ToUpper(namespace))
}

// LoginRedirectTarget picks where an anonymous requester is sent back to: the
// Referer when it points at another page of this host, the home path
// otherwise. The originally requested URI is carried in the next parameter.
func LoginRedirectTarget(r *http.Request, homePath string) string {
	target := homePath
	if ref := r.Referer(); ref != "" {
		if u, err := url.Parse(ref); err == nil && sameHost(u, r) {
			refPath := u.Path
			if refPath == "" {
				refPath = "/"
			}
			if refPath != r.URL.Path {
				target = (&url.URL{Path: refPath, RawQuery: u.RawQuery}).String()
			}
		}
	}
	return WithNext(target, r.URL.RequestURI())
}

// WithNext sets the next query parameter of target, replacing any existing value.
func WithNext(target, next string) string {
	u, err := url.Parse(target)
	if err != nil {
		u = &url.URL{Path: "/"}
	}
	q := u.Query()
	q.Set("next", next)
	u.RawQuery = q.Encode()
	return u.String()
}

func sameHost(u *url.URL, r *http.Request) bool {
	if u.Host == "" {
		return u.Scheme == ""
	}
	return strings.EqualFold(u.Host, r.Host)
}
