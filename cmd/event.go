package cmd

import (
	"context"
	"log/slog"

	"github.com/sara-platform/portal/internal"
	"github.com/sara-platform/portal/internal/core/events"
)

// registerAuditSubscribers writes an audit line for every security relevant
// event on the bus. The trace id survives because handlers receive the
// publishing request's context without its cancellation.
func registerAuditSubscribers(bus *events.EventBus, lg *slog.Logger) {
	audit := lg.With("component", "audit")

	bus.Subscribe(events.EventTypeUserLoggedIn, func(ctx context.Context, event events.Event) error {
		e, ok := event.(*events.UserLoggedInEvent)
		if !ok {
			return nil
		}
		audit.InfoContext(ctx, "user logged in",
			"event_id", e.EventID(),
			"trace_id", internal.TraceIDFromContext(ctx),
			"user_id", e.UserID,
			"source_address", e.SourceAddress)
		return nil
	})

	bus.Subscribe(events.EventTypeAccessDenied, func(ctx context.Context, event events.Event) error {
		e, ok := event.(*events.AccessDeniedEvent)
		if !ok {
			return nil
		}
		audit.WarnContext(ctx, "access denied",
			"event_id", e.EventID(),
			"trace_id", internal.TraceIDFromContext(ctx),
			"user_id", e.UserID,
			"namespace", e.Namespace,
			"action", e.Action,
			"reason", e.Reason)
		return nil
	})

	bus.Subscribe(events.EventTypeGrantsReplaced, func(ctx context.Context, event events.Event) error {
		e, ok := event.(*events.GrantsReplacedEvent)
		if !ok {
			return nil
		}
		audit.InfoContext(ctx, "module grants replaced",
			"event_id", e.EventID(),
			"trace_id", internal.TraceIDFromContext(ctx),
			"user_id", e.UserID,
			"actor_id", e.ActorID,
			"module_ids", e.ModuleIDs)
		return nil
	})
}
