package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultLabID is the lab used by the CLI in local mode when PATHLAB_LAB_ID
// is not set.
const DefaultLabID = "00000000-0000-0000-0000-000000000001"

// Config holds application configuration.
type Config struct {
	// Application
	AppEnv    string
	LogLevel  string
	LogFormat string
	LabID     string
	LabName   string

	// Database
	DatabaseURL    string
	DatabaseDriver string
	SQLitePath     string
	LocalMode      bool

	// Redis backs the cross-process locks. Empty uses in-process locks.
	RedisURL string

	// RabbitMQ receives lifecycle events. Empty delivers them in process.
	RabbitMQURL string
	// AuditLogEnabled logs in-process events. Off, they are dropped.
	AuditLogEnabled bool

	// Lifecycle
	TrialPlanName   string
	DefaultPlanName string
	LabLockTTL      time.Duration

	// Expiry sweep
	SweepEnabled  bool
	SweepInterval time.Duration
	SweepLockTTL  time.Duration

	// Outbox
	OutboxPollInterval     time.Duration
	OutboxBatchSize        int
	OutboxMaxRetries       int
	OutboxStatsInterval    time.Duration
	OutboxRetentionDays    int
	OutboxCleanupInterval  time.Duration
	OutboxProcessorEnabled bool

	// Worker
	WorkerHealthAddr string
}

// Load reads configuration from the environment, after loading a .env
// file if one exists. Malformed values and invalid settings are all
// reported together.
func Load() (*Config, error) {
	_ = godotenv.Load()

	env := &envReader{}
	databaseURL := env.str("DATABASE_URL", "")
	cfg := &Config{
		AppEnv:    env.str("APP_ENV", "development"),
		LogLevel:  env.str("LOG_LEVEL", "info"),
		LogFormat: env.str("LOG_FORMAT", ""),
		LabID:     env.str("PATHLAB_LAB_ID", DefaultLabID),
		LabName:   env.str("PATHLAB_LAB_NAME", "Local Lab"),

		DatabaseURL:    databaseURL,
		DatabaseDriver: strings.ToLower(env.str("DATABASE_DRIVER", detectDriver(databaseURL))),
		SQLitePath:     env.str("SQLITE_PATH", defaultSQLitePath()),

		RedisURL:    env.str("REDIS_URL", ""),
		RabbitMQURL: env.str("RABBITMQ_URL", ""),

		AuditLogEnabled: env.bool("AUDIT_LOG_ENABLED", true),

		TrialPlanName:   env.str("TRIAL_PLAN_NAME", "Trial"),
		DefaultPlanName: env.str("DEFAULT_PLAN_NAME", "Basic"),
		LabLockTTL:      env.duration("LAB_LOCK_TTL", 30*time.Second),

		SweepEnabled:  env.bool("SWEEP_ENABLED", true),
		SweepInterval: env.duration("SWEEP_INTERVAL", 24*time.Hour),
		SweepLockTTL:  env.duration("SWEEP_LOCK_TTL", 30*time.Minute),

		OutboxPollInterval:     env.duration("OUTBOX_POLL_INTERVAL", time.Second),
		OutboxBatchSize:        env.int("OUTBOX_BATCH_SIZE", 100),
		OutboxMaxRetries:       env.int("OUTBOX_MAX_RETRIES", 5),
		OutboxStatsInterval:    env.duration("OUTBOX_STATS_INTERVAL", 30*time.Second),
		OutboxRetentionDays:    env.int("OUTBOX_RETENTION_DAYS", 7),
		OutboxCleanupInterval:  env.duration("OUTBOX_CLEANUP_INTERVAL", time.Hour),
		OutboxProcessorEnabled: env.bool("OUTBOX_PROCESSOR_ENABLED", true),

		WorkerHealthAddr: env.str("WORKER_HEALTH_ADDR", "0.0.0.0:8081"),
	}
	cfg.LocalMode = cfg.IsSQLite()

	if err := errors.Join(append(env.errs, cfg.Validate())...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("DATABASE_DRIVER: unsupported driver %q", c.DatabaseDriver))
	}
	if c.DatabaseDriver == "postgres" && c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL: required for the postgres driver"))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("SWEEP_INTERVAL: must be positive, got %s", c.SweepInterval))
	}
	if c.SweepLockTTL <= 0 {
		errs = append(errs, fmt.Errorf("SWEEP_LOCK_TTL: must be positive, got %s", c.SweepLockTTL))
	}
	if c.OutboxBatchSize <= 0 {
		errs = append(errs, fmt.Errorf("OUTBOX_BATCH_SIZE: must be positive, got %d", c.OutboxBatchSize))
	}
	if c.LabLockTTL <= 0 {
		errs = append(errs, fmt.Errorf("LAB_LOCK_TTL: must be positive, got %s", c.LabLockTTL))
	}
	if strings.TrimSpace(c.TrialPlanName) == "" {
		errs = append(errs, errors.New("TRIAL_PLAN_NAME: must not be empty"))
	}
	return errors.Join(errs...)
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// IsSQLite returns true if the SQLite driver is selected.
func (c *Config) IsSQLite() bool {
	return c.DatabaseDriver == "sqlite"
}

// IsPostgres returns true if the PostgreSQL driver is selected.
func (c *Config) IsPostgres() bool {
	return c.DatabaseDriver == "postgres"
}

// OutboxRetention is OutboxRetentionDays as a duration.
func (c *Config) OutboxRetention() time.Duration {
	return time.Duration(c.OutboxRetentionDays) * 24 * time.Hour
}

// detectDriver mirrors the connection factory: no URL means local SQLite.
func detectDriver(url string) string {
	switch {
	case url == "":
		return "sqlite"
	case strings.HasPrefix(url, "sqlite://"), strings.HasPrefix(url, "file:"),
		strings.HasSuffix(url, ".db"), strings.HasSuffix(url, ".sqlite"), strings.HasSuffix(url, ".sqlite3"):
		return "sqlite"
	default:
		return "postgres"
	}
}

// envReader reads typed variables and collects the ones that fail to
// parse. Unset or empty variables take the default.
type envReader struct {
	errs []error
}

func (r *envReader) str(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (r *envReader) int(key string, def int) int {
	return parse(r, key, def, strconv.Atoi)
}

func (r *envReader) bool(key string, def bool) bool {
	return parse(r, key, def, strconv.ParseBool)
}

func (r *envReader) duration(key string, def time.Duration) time.Duration {
	return parse(r, key, def, time.ParseDuration)
}

func parse[T any](r *envReader, key string, def T, fn func(string) (T, error)) T {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := fn(strings.TrimSpace(raw))
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid value %q", key, raw))
		return def
	}
	return v
}

func defaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".pathlab", "data.db")
	}
	return filepath.Join(home, ".pathlab", "data.db")
}
