package rest

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sara-platform/portal/internal/application"
	"github.com/sara-platform/portal/internal/auth"
	"github.com/sara-platform/portal/internal/presence"
	"github.com/sara-platform/portal/internal/transport/middleware"
	"github.com/sara-platform/portal/internal/transport/swagger"
	"github.com/sara-platform/portal/internal/user"
)

// ProtectedApplication is a sub-application whose entry page sits behind the
// authorization gate.
type ProtectedApplication struct {
	Path      string
	Namespace string
	Action    string
}

var ProtectedApplications = []ProtectedApplication{
	{Path: "/phoenix/", Namespace: "phoenix", Action: "home"},
	{Path: "/nexus/", Namespace: "nexus", Action: "home"},
}

type Dependencies struct {
	Logger       *slog.Logger
	Health       *HealthHandler
	OpenAPI      http.Handler
	Sessions     auth.SessionLoader
	Identities   auth.IdentityResolver
	Gate         *auth.Gate
	Presence     *presence.Tracker
	Auth         *auth.Handler
	Users        *user.Handler
	Applications *application.Handler
}

func RegisterAllRoutes(router chi.Router, deps Dependencies) {
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.TraceID)
	router.Use(middleware.Recovery)
	router.Use(middleware.Logging)
	router.Use(middleware.Metrics)
	router.Use(auth.SessionMiddleware(deps.Sessions, deps.Identities, deps.Logger))
	// every authenticated request stamps last_activity, whatever the gate decides
	router.Use(presence.Middleware(deps.Presence, auth.UserIDFromContext))

	router.Handle("/metrics", promhttp.Handler())
	if deps.OpenAPI != nil {
		router.Handle(swagger.SpecPath, deps.OpenAPI)
		router.Handle("/swagger/*", swagger.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", deps.Health.Health)
		r.Get("/ping", deps.Health.Ping)
	})

	if deps.Auth != nil {
		router.Post("/api/login/", deps.Auth.Login)
		router.Post("/logout/", deps.Auth.Logout)
		router.Get("/api/messages", deps.Auth.Messages)
	}

	if deps.Applications != nil {
		router.With(deps.Gate.RequireLogin("")).Get("/api/applications", deps.Applications.GetApplications)

		for _, app := range ProtectedApplications {
			router.With(deps.Gate.Require(app.Namespace, app.Action)).
				Get(app.Path, deps.Applications.Landing(app.Namespace, app.Action))
		}
	}

	if deps.Users != nil {
		router.Group(func(pr chi.Router) {
			pr.Use(deps.Gate.RequireLogin(""))

			pr.Get("/users/", deps.Users.ListDirectory)
			pr.Get("/users/{id}", deps.Users.GetProfile)

			pr.Route("/management/users", func(mr chi.Router) {
				mr.Get("/", deps.Users.ListManageable)
				mr.Post("/", deps.Users.CreateUser)
				mr.Put("/{id}", deps.Users.UpdateUser)
				mr.Delete("/{id}", deps.Users.DeleteUser)
				mr.Put("/{id}/password", deps.Users.ResetPassword)
				mr.Get("/{id}/access", deps.Users.GetAccess)
				mr.Put("/{id}/access", deps.Users.SetAccess)
				mr.Put("/{id}/access/{moduleID}", deps.Users.GrantModule)
				mr.Delete("/{id}/access/{moduleID}", deps.Users.RevokeModule)
			})

			pr.Put("/profile/", deps.Users.UpdateProfile)
			pr.Put("/profile/password/", deps.Users.ChangePassword)
			pr.Post("/set-theme/", deps.Users.SetTheme)
		})
	}
}
