package internal

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"http_server" env:", prefix=HTTP_"`
	Database DatabaseConfig `mapstructure:"database" env:", prefix=DATABASE_"`
	Redis    RedisConfig    `mapstructure:"redis" env:", prefix=REDIS_"`
	Security SecurityConfig `mapstructure:"security" env:", prefix=SECURITY_"`
	Presence PresenceConfig `mapstructure:"presence" env:", prefix=PRESENCE_"`
	Portal   PortalConfig   `mapstructure:"portal" env:", prefix=PORTAL_"`
	Logging  LoggingConfig  `mapstructure:"logging" env:", prefix=LOG_"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port" env:"PORT, default=8080"`
	BaseURL           string        `mapstructure:"base_url" env:"BASE_URL"`
	AllowedOrigins    string        `mapstructure:"allowed_origins" env:"ALLOWED_ORIGINS"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" env:"READ_HEADER_TIMEOUT, default=5s"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout" env:"READ_TIMEOUT, default=15s"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout" env:"IDLE_TIMEOUT, default=60s"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout" env:"WRITE_TIMEOUT, default=15s"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" env:"MAX_OPEN_CONNS, default=20"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" env:"MAX_IDLE_CONNS, default=5"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" env:"CONN_MAX_LIFETIME, default=30m"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" env:"CONN_MAX_IDLE_TIME, default=5m"`
	Source          string        `mapstructure:"source" env:"SOURCE, required"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr" env:"ADDR, default=localhost:6379"`
	Password string        `mapstructure:"password" env:"PASSWORD"`
	DB       int           `mapstructure:"db" env:"DB, default=0"`
	Timeout  time.Duration `mapstructure:"timeout" env:"TIMEOUT, default=5s"`
}

type SecurityConfig struct {
	BCryptCost    int           `mapstructure:"bcrypt_cost" env:"BCRYPT_COST, default=12"`
	SessionSecret string        `mapstructure:"session_secret" env:"SESSION_SECRET, required"`
	SessionTTL    time.Duration `mapstructure:"session_ttl" env:"SESSION_TTL, default=336h"`
	CookieName    string        `mapstructure:"cookie_name" env:"COOKIE_NAME, default=portal_session"`
	CookieSecure  bool          `mapstructure:"cookie_secure" env:"COOKIE_SECURE, default=true"`
}

type PresenceConfig struct {
	// Strategy is "timestamp" (last_activity recency) or "sessions" (live session scan).
	Strategy      string        `mapstructure:"strategy" env:"STRATEGY, default=timestamp"`
	OnlineWindow  time.Duration `mapstructure:"online_window" env:"ONLINE_WINDOW, default=5m"`
	SweepSchedule string        `mapstructure:"sweep_schedule" env:"SWEEP_SCHEDULE, default=@every 1m"`
}

type PortalConfig struct {
	HomePath           string `mapstructure:"home_path" env:"HOME_PATH, default=/"`
	DefaultListingPath string `mapstructure:"default_listing_path" env:"DEFAULT_LISTING_PATH, default=/users/"`
	ManagementPath     string `mapstructure:"management_path" env:"MANAGEMENT_PATH, default=/management/users/"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" env:"LEVEL, default=info"`
	Format string `mapstructure:"format" env:"FORMAT, default=json"`
}

// LoadConfigFromEnv reads the whole configuration from environment variables
// (container deployments).
func LoadConfigFromEnv(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("process env config: %w", err)
	}
	return &cfg, nil
}

// ApplyDefaults fills zero values left by a partial config file.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Security.CookieName == "" {
		c.Security.CookieName = "portal_session"
	}
	if c.Security.SessionTTL <= 0 {
		c.Security.SessionTTL = 14 * 24 * time.Hour
	}
	if c.Security.BCryptCost == 0 {
		c.Security.BCryptCost = 12
	}
	if c.Presence.Strategy == "" {
		c.Presence.Strategy = "timestamp"
	}
	if c.Presence.OnlineWindow <= 0 {
		c.Presence.OnlineWindow = 5 * time.Minute
	}
	if c.Presence.SweepSchedule == "" {
		c.Presence.SweepSchedule = "@every 1m"
	}
	if c.Portal.HomePath == "" {
		c.Portal.HomePath = "/"
	}
	if c.Portal.DefaultListingPath == "" {
		c.Portal.DefaultListingPath = "/users/"
	}
	if c.Portal.ManagementPath == "" {
		c.Portal.ManagementPath = "/management/users/"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if err := c.Presence.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("presence config: %v", err))
	}

	if err := c.Portal.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("portal config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.Source == "" {
		return errors.New("source is required")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *SecurityConfig) Validate() error {
	if len(c.SessionSecret) < 32 {
		return errors.New("session secret must be at least 32 characters")
	}
	if c.BCryptCost < 10 || c.BCryptCost > 15 {
		return errors.New("bcrypt_cost must be between 10 and 15")
	}
	return nil
}

func (c *PresenceConfig) Validate() error {
	switch c.Strategy {
	case "timestamp", "sessions":
	default:
		return fmt.Errorf("unknown presence strategy %q", c.Strategy)
	}
	if c.OnlineWindow <= 0 {
		return errors.New("online_window must be positive")
	}
	if _, err := cron.ParseStandard(c.SweepSchedule); err != nil {
		return fmt.Errorf("invalid sweep_schedule: %w", err)
	}
	return nil
}

func (c *PortalConfig) Validate() error {
	for name, p := range map[string]string{
		"home_path":            c.HomePath,
		"default_listing_path": c.DefaultListingPath,
		"management_path":      c.ManagementPath,
	} {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("%s must be an absolute path", name)
		}
	}
	return nil
}
