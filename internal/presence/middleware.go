package presence

import (
	"context"
	"net/http"

	"github.com/sara-platform/portal/internal/metrics"
)

// UserResolver extracts the authenticated user id from a request context.
type UserResolver func(ctx context.Context) (int64, bool)

// Middleware stamps last_activity for authenticated requests once the
// downstream handler has run. Failures are logged and never reach the client.
func Middleware(tracker *Tracker, resolve UserResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)

			userID, ok := resolve(r.Context())
			if !ok {
				return
			}
			if err := tracker.Touch(context.WithoutCancel(r.Context()), userID); err != nil {
				metrics.TouchErrorsTotal.Inc()
				tracker.logger.WarnContext(r.Context(), "failed to update last activity", "user_id", userID, "error", err)
			}
		})
	}
}
