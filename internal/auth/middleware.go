package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sara-platform/portal/internal"
	"github.com/sara-platform/portal/internal/session"
	"github.com/sara-platform/portal/internal/transport"
	"github.com/sara-platform/portal/pkg/logger"
)

type SessionLoader interface {
	Load(ctx context.Context, r *http.Request) (*session.Session, error)
}

type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, userID int64, sourceAddr string) (*Identity, error)
}

// SessionMiddleware puts the request's session and, when it is authenticated
// and still valid, the requester identity into the context. A session store
// failure leaves the request anonymous; an identity store failure answers 500
// so an outage is not mistaken for a logout.
func SessionMiddleware(sessions SessionLoader, identities IdentityResolver, lg *slog.Logger) func(http.Handler) http.Handler {
	base := transport.NewBaseHandler(lg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			sess, err := sessions.Load(ctx, r)
			if err != nil {
				lg.ErrorContext(ctx, "session middleware: failed to load session", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if sess == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx = session.WithSession(ctx, sess)

			if sess.Authenticated() {
				identity, err := identities.ResolveIdentity(ctx, *sess.Data.UserID, ClientAddress(r))
				switch {
				case err != nil:
					lg.ErrorContext(ctx, "session middleware: failed to resolve identity",
						"user_id", *sess.Data.UserID,
						"error", err)
					base.WriteAppError(w, internal.NewInternalError("Internal server error", err))
					return
				case identity == nil:
					lg.DebugContext(ctx, "session middleware: session user no longer valid", "user_id", *sess.Data.UserID)
				default:
					ctx = WithIdentity(ctx, identity)
					ctx = logger.With(ctx, "user_id", identity.UserID)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
