package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	sharedApplication "github.com/sohel7709/pathlab/internal/shared/application"
	"github.com/sohel7709/pathlab/internal/shared/infrastructure/database"
	_ "github.com/sohel7709/pathlab/internal/shared/infrastructure/database/postgres" // Register PostgreSQL driver
	_ "github.com/sohel7709/pathlab/internal/shared/infrastructure/database/sqlite"   // Register SQLite driver
	"github.com/sohel7709/pathlab/internal/shared/infrastructure/eventbus"
	"github.com/sohel7709/pathlab/internal/shared/infrastructure/lock"
	"github.com/sohel7709/pathlab/internal/shared/infrastructure/migrations"
	"github.com/sohel7709/pathlab/internal/shared/infrastructure/outbox"
	"github.com/sohel7709/pathlab/internal/subscription/application"
	"github.com/sohel7709/pathlab/internal/subscription/application/subscribers"
	"github.com/sohel7709/pathlab/internal/subscription/application/workers"
	"github.com/sohel7709/pathlab/internal/subscription/domain"
	"github.com/sohel7709/pathlab/pkg/config"
	"github.com/sohel7709/pathlab/pkg/observability"
)

// Container holds all application dependencies.
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	// Metrics is backed by Prometheus so the worker can export it.
	Metrics *observability.PrometheusMetrics

	// Database
	DBConn   database.Connection
	DBDriver database.Driver

	// Redis
	RedisClient *redis.Client

	// Repositories (use interfaces for driver-agnostic access)
	PlanRepo         domain.PlanRepository
	SubscriptionRepo domain.SubscriptionRepository
	LabRepo          domain.LabRepository
	OutboxRepo       outbox.Repository

	// Unit of Work
	UnitOfWork sharedApplication.UnitOfWork

	// Locker serialises lifecycle changes per lab and sweeps across processes.
	Locker lock.Locker

	// Publishers
	EventPublisher    eventbus.Publisher
	InProcessEventBus *eventbus.InProcessEventBus
	AuditSubscriber   *subscribers.AuditSubscriber

	// Lifecycle
	Lifecycle    *application.LifecycleService
	Sweeper      *application.Sweeper
	Entitlements *application.EntitlementService

	// Background processing
	SweepWorker     *workers.ExpirySweepWorker
	OutboxProcessor *outbox.Processor
}

// NewContainer creates and wires all dependencies. The database driver comes
// from the configuration; SQLite needs no other service, PostgreSQL usually
// runs next to Redis and RabbitMQ.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewPrometheusMetrics(),
	}

	if err := c.initDatabase(ctx); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.initRepositories(ctx); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.initLocker(ctx); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.initPublisher(); err != nil {
		c.Close()
		return nil, err
	}

	deps := application.Dependencies{
		Plans:         c.PlanRepo,
		Subscriptions: c.SubscriptionRepo,
		Labs:          c.LabRepo,
		Outbox:        c.OutboxRepo,
		UnitOfWork:    c.UnitOfWork,
		Locker:        c.Locker,
		Metrics:       c.Metrics,
		Logger:        logger,
		LockTTL:       cfg.LabLockTTL,
	}
	c.Lifecycle = application.NewLifecycleService(deps, application.LifecycleConfig{
		TrialPlanName: cfg.TrialPlanName,
	})
	sweepConfig := application.DefaultSweepConfig()
	sweepConfig.DefaultPlanName = cfg.DefaultPlanName
	c.Sweeper = application.NewSweeper(deps, sweepConfig)
	c.Entitlements = application.NewEntitlementService(c.Lifecycle)

	c.SweepWorker = workers.NewExpirySweepWorker(c.Sweeper, c.Locker, nil, workers.ExpirySweepWorkerConfig{
		Interval: cfg.SweepInterval,
		LockTTL:  cfg.SweepLockTTL,
	}, logger)

	processorConfig := outbox.DefaultProcessorConfig()
	processorConfig.PollInterval = cfg.OutboxPollInterval
	processorConfig.BatchSize = cfg.OutboxBatchSize
	processorConfig.MaxRetries = cfg.OutboxMaxRetries
	processorConfig.Retention = cfg.OutboxRetention()
	processorConfig.CleanupInterval = cfg.OutboxCleanupInterval
	c.OutboxProcessor = outbox.NewProcessor(c.OutboxRepo, c.EventPublisher, processorConfig, logger, c.Metrics)

	logger.Info("container initialized",
		"driver", c.DBDriver,
		"distributed_lock", c.RedisClient != nil,
		"in_process_events", c.InProcessEventBus != nil,
	)
	return c, nil
}

func (c *Container) initDatabase(ctx context.Context) error {
	dbConfig := database.Config{
		Driver:     database.Driver(c.Config.DatabaseDriver),
		URL:        c.Config.DatabaseURL,
		SQLitePath: c.Config.SQLitePath,
	}
	conn, err := database.NewConnection(ctx, dbConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}
	c.DBConn = conn
	c.DBDriver = conn.Driver()
	c.UnitOfWork = database.NewUnitOfWork(conn)
	c.Logger.Info("connected to database", "driver", c.DBDriver)

	c.Logger.Debug("running migrations")
	if err := migrations.Run(ctx, conn); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (c *Container) initRepositories(ctx context.Context) error {
	repos, err := NewRepositories(c.DBConn)
	if err != nil {
		return err
	}
	c.PlanRepo = repos.Plans
	c.SubscriptionRepo = repos.Subscriptions
	c.LabRepo = repos.Labs
	c.OutboxRepo = repos.Outbox

	catalog := DefaultCatalog(c.Config.TrialPlanName, c.Config.DefaultPlanName)
	if _, err := SeedCatalog(ctx, c.PlanRepo, catalog, c.Logger); err != nil {
		return fmt.Errorf("failed to seed plan catalog: %w", err)
	}
	return nil
}

// initLocker connects to Redis when configured. Without Redis, or when it is
// unreachable in development, locks only hold within this process.
func (c *Container) initLocker(ctx context.Context) error {
	c.Locker = lock.NewMemoryLock()
	if c.Config.RedisURL == "" {
		return nil
	}

	opt, err := redis.ParseURL(c.Config.RedisURL)
	if err != nil {
		if !c.Config.IsDevelopment() {
			return fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		c.Logger.Warn("invalid Redis URL, using in-process locks", "error", err)
		return nil
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		if !c.Config.IsDevelopment() {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		c.Logger.Warn("Redis not available, using in-process locks", "error", err)
		return nil
	}
	c.RedisClient = client
	c.Locker = lock.NewRedisLock(client)
	c.Logger.Info("connected to Redis")
	return nil
}

// initPublisher picks RabbitMQ when configured and otherwise delivers events
// to the in-process audit subscriber, or drops them when the audit log is off.
func (c *Container) initPublisher() error {
	if c.Config.RabbitMQURL != "" {
		publisher, err := eventbus.NewRabbitMQPublisher(c.Config.RabbitMQURL, c.Logger)
		if err == nil {
			c.EventPublisher = publisher
			return nil
		}
		if !c.Config.IsDevelopment() {
			return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		c.Logger.Warn("RabbitMQ not available, delivering events in process", "error", err)
	}

	if !c.Config.AuditLogEnabled {
		c.EventPublisher = eventbus.NewNoopPublisher(c.Logger)
		return nil
	}

	c.InProcessEventBus = eventbus.NewInProcessEventBus(c.Logger)
	c.AuditSubscriber = subscribers.NewAuditSubscriber(c.Logger, c.Metrics)
	c.InProcessEventBus.RegisterConsumer(c.AuditSubscriber)
	c.EventPublisher = c.InProcessEventBus
	return nil
}

// EnsureLocalLab registers the configured local lab so the CLI can operate
// on it without a separate provisioning step.
func (c *Container) EnsureLocalLab(ctx context.Context) (*domain.Lab, error) {
	labID, err := uuid.Parse(c.Config.LabID)
	if err != nil {
		return nil, fmt.Errorf("invalid PATHLAB_LAB_ID %q: %w", c.Config.LabID, err)
	}
	return c.Lifecycle.EnsureLab(ctx, labID, c.Config.LabName)
}

// HealthRegistry returns the readiness checks for the wired infrastructure.
func (c *Container) HealthRegistry() *observability.HealthRegistry {
	registry := observability.NewHealthRegistry()
	registry.Register("database", observability.PingHealthChecker("database", observability.HealthStatusUnhealthy, c.DBConn.Ping))
	if c.RedisClient != nil {
		registry.Register("redis", observability.PingHealthChecker("redis", observability.HealthStatusDegraded, func(ctx context.Context) error {
			return c.RedisClient.Ping(ctx).Err()
		}))
	}
	if pinger, ok := c.EventPublisher.(interface{ Ping(context.Context) error }); ok {
		registry.Register("rabbitmq", observability.PingHealthChecker("rabbitmq", observability.HealthStatusDegraded, pinger.Ping))
	}
	return registry
}

// Close cleans up all resources.
func (c *Container) Close() {
	if c.SweepWorker != nil && c.SweepWorker.IsRunning() {
		c.SweepWorker.Stop()
		c.Logger.Info("expiry sweep worker stopped")
	}

	if c.OutboxProcessor != nil {
		c.OutboxProcessor.Stop()
	}

	if c.EventPublisher != nil {
		if err := c.EventPublisher.Close(); err != nil {
			c.Logger.Warn("error closing event publisher", "error", err)
		}
	}

	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Logger.Warn("error closing Redis connection", "error", err)
		} else {
			c.Logger.Info("Redis connection closed")
		}
	}

	if c.DBConn != nil {
		if err := c.DBConn.Close(); err != nil {
			c.Logger.Warn("error closing database connection", "error", err)
		} else {
			c.Logger.Info("database connection closed", "driver", c.DBDriver)
		}
	}
}
