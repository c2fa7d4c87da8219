package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/sara-platform/portal/api"
	"github.com/sara-platform/portal/internal"
	"github.com/sara-platform/portal/internal/access"
	accessPostgres "github.com/sara-platform/portal/internal/access/postgres"
	"github.com/sara-platform/portal/internal/application"
	applicationPostgres "github.com/sara-platform/portal/internal/application/postgres"
	"github.com/sara-platform/portal/internal/auth"
	authPostgres "github.com/sara-platform/portal/internal/auth/postgres"
	"github.com/sara-platform/portal/internal/core/events"
	"github.com/sara-platform/portal/internal/presence"
	presencePostgres "github.com/sara-platform/portal/internal/presence/postgres"
	"github.com/sara-platform/portal/internal/session"
	"github.com/sara-platform/portal/internal/transport"
	"github.com/sara-platform/portal/internal/transport/rest"
	"github.com/sara-platform/portal/internal/transport/swagger"
	"github.com/sara-platform/portal/internal/user"
	userPostgres "github.com/sara-platform/portal/internal/user/postgres"
	"github.com/sara-platform/portal/pkg/logger"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server together with the presence sweeper`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return startHTTPServer(cmd.Context())
	},
}

// Dependencies are the long-lived connections shared by every command.
type Dependencies struct {
	Config *internal.Config
	Gorm   *gorm.DB
	DB     *sqlx.DB
	Redis  *redis.Client
	Bus    *events.EventBus
	Logger *slog.Logger
}

func (d *Dependencies) Close() {
	d.Bus.Wait()
	if err := d.Redis.Close(); err != nil {
		d.Logger.Error("redis close error", "error", err)
	}
	if err := d.DB.Close(); err != nil {
		d.Logger.Error("database close error", "error", err)
	}
}

func initializeDependencies(ctx context.Context) (*Dependencies, error) {
	cfg, err := loadConfig(ctx, configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	lg := logger.LoggerWrapper()

	db, err := initDB(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Warn),
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open gorm session: %w", err)
	}

	redisClient, err := session.Connect(ctx, session.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Timeout:  cfg.Redis.Timeout,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	bus := events.NewEventBus(lg)
	registerAuditSubscribers(bus, lg)

	return &Dependencies{
		Config: cfg,
		Gorm:   gormDB,
		DB:     db,
		Redis:  redisClient,
		Bus:    bus,
		Logger: lg,
	}, nil
}

// initDB opens the pgx pool that both sqlx and gorm run on.
func initDB(ctx context.Context, cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	db, err := sqlx.Open(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := internal.WithTimeout(ctx, 0)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// newTracker builds the presence tracker. The session scan is only wired in
// when it is the configured strategy.
func newTracker(deps *Dependencies, store *session.Store) *presence.Tracker {
	opts := []presence.Option{presence.WithWindow(deps.Config.Presence.OnlineWindow)}
	if deps.Config.Presence.Strategy == presence.StrategySessions {
		opts = append(opts, presence.WithSessions(store))
	}
	return presence.NewTracker(presencePostgres.NewPresenceRepository(deps.DB), deps.Logger, opts...)
}

func buildRouter(ctx context.Context, deps *Dependencies, tracker *presence.Tracker, store *session.Store) (*chi.Mux, error) {
	cfg := deps.Config
	lg := deps.Logger

	doc, err := swagger.Parse(ctx, api.OpenAPI)
	if err != nil {
		return nil, err
	}

	sessions := session.NewManager(store, session.NewCookieCodec(cfg.Security.SessionSecret), session.Options{
		CookieName: cfg.Security.CookieName,
		Secure:     cfg.Security.CookieSecure,
		TTL:        cfg.Security.SessionTTL,
	}, lg)

	base := transport.NewBaseHandler(lg)
	authService := auth.NewService(authPostgres.NewRepository(deps.Gorm), deps.Bus, lg)
	accessService := access.NewService(accessPostgres.NewAccessRepository(deps.Gorm), deps.Bus, lg)
	appService := application.NewService(applicationPostgres.NewApplicationRepository(deps.Gorm), lg)
	userService := user.NewService(userPostgres.NewUserRepository(deps.Gorm), accessService, appService, tracker, cfg.Security.BCryptCost, lg)

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, rest.Dependencies{
		Logger: lg,
		Health: rest.NewHealthHandler(base, map[string]rest.Pinger{
			"postgres": deps.DB,
			"redis":    rest.PingFunc(store.Ping),
		}),
		OpenAPI:    doc,
		Sessions:   sessions,
		Identities: authService,
		Gate: auth.NewGate(base, accessService, sessions, deps.Bus, auth.GateConfig{
			HomePath:    cfg.Portal.HomePath,
			ListingPath: cfg.Portal.DefaultListingPath,
		}),
		Presence:     tracker,
		Auth:         auth.NewHandler(base, authService, sessions, cfg.Portal.HomePath),
		Users:        user.NewHandler(base, userService),
		Applications: application.NewHandler(base, appService),
	})
	return router, nil
}

func startHTTPServer(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	deps, err := initializeDependencies(ctx)
	if err != nil {
		return err
	}
	defer deps.Close()

	store := session.NewStore(deps.Redis, deps.Logger)
	tracker := newTracker(deps, store)

	router, err := buildRouter(ctx, deps, tracker, store)
	if err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}

	sweeper, err := presence.NewSweeper(tracker, deps.Config.Presence.Strategy, deps.Config.Presence.SweepSchedule)
	if err != nil {
		return err
	}
	sweeper.Start()

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		deps.Logger.Info("starting HTTP server", "address", addr)
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("received signal, shutting down", "signal", sig)
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			<-sweeper.Stop().Done()
			return fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		deps.Logger.Error("server shutdown error", "error", err)
	}
	<-sweeper.Stop().Done()

	deps.Logger.Info("server stopped")
	return nil
}
