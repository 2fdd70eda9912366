package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/approvals/internal/application/dispatcher"
	"github.com/garyjia/approvals/internal/application/listener"
	"github.com/garyjia/approvals/internal/application/settings"
	"github.com/garyjia/approvals/internal/application/validator"
	"github.com/garyjia/approvals/internal/config"
	"github.com/garyjia/approvals/internal/infrastructure/metrics"
	"github.com/garyjia/approvals/internal/infrastructure/persistence/sqldb"
	"github.com/garyjia/approvals/pkg/database"
)

// Container manages all application dependencies and lifecycle.
// Components are initialized in order and torn down in reverse.
type Container struct {
	config *config.Config
	logger *zap.Logger

	// Options applied at Start
	validator validator.TransitionValidator
	actions   *listener.ActionRegistry
	extra     []listener.Listener

	// Infrastructure - Data
	conn         *database.DB
	db           *sqldb.DB
	repositories *RepositoryBundle

	// Infrastructure - Observability
	metrics *metrics.Metrics

	// Application
	settings   *settings.Resolver
	dispatcher dispatcher.Dispatcher
	listeners  []listener.Listener
	services   *ServiceBundle

	// Lifecycle
	mu     sync.RWMutex
	ready  atomic.Bool
	closed atomic.Bool
}

// Option customizes the container before Start.
type Option func(*Container)

// WithValidator replaces the validator named in configuration.
func WithValidator(v validator.TransitionValidator) Option {
	return func(c *Container) {
		c.validator = v
	}
}

// WithAction binds a custom action name used in events_custom_actions.
func WithAction(name string, action listener.Action) Option {
	return func(c *Container) {
		c.actions.Register(name, action)
	}
}

// WithListener subscribes an additional listener after the built-in ones.
func WithListener(l listener.Listener) Option {
	return func(c *Container) {
		c.extra = append(c.extra, l)
	}
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *config.Config, logger *zap.Logger, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Container{
		config:  cfg,
		logger:  logger,
		actions: listener.NewActionRegistry(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Start initializes all components in dependency order:
// 1. Settings resolver
// 2. Database, migrations and repositories
// 3. Metrics
// 4. Event dispatcher and listeners
// 5. Application services
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}

	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.logger.Info("Starting container initialization")

	// Step 1: Resolve approval settings
	resolver, err := c.config.Resolver()
	if err != nil {
		return fmt.Errorf("failed to build approval settings: %w", err)
	}
	c.settings = resolver
	c.logger.Info("Approval settings loaded", zap.Strings("subject_types", resolver.SubjectTypes()))

	// Step 2: Initialize database and repositories
	if err := c.initDatabase(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized")

	// Step 3: Initialize metrics
	c.metrics = ProvideMetrics(&c.config.Metrics)
	c.logger.Info("Metrics initialized", zap.Bool("enabled", c.metrics != nil))

	// Step 4: Initialize dispatcher and listeners
	c.initDispatcher()
	c.logger.Info("Dispatcher initialized", zap.Int("listeners", len(c.listeners)))

	// Step 5: Initialize application services
	c.initServices()
	c.logger.Info("Application services initialized")

	c.ready.Store(true)
	c.logger.Info("Container started successfully")

	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	var errs []error

	// Services and metrics hold no resources of their own

	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
	}

	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	// Check database
	if c.conn != nil && !c.closed.Load() {
		if err := c.conn.PingContext(ctx); err != nil {
			status.Components["database"] = ComponentHealth{
				Healthy: false,
				Message: fmt.Sprintf("ping failed: %v", err),
			}
			status.Overall = false
		} else {
			status.Components["database"] = ComponentHealth{Healthy: true}
		}
	} else {
		status.Components["database"] = ComponentHealth{
			Healthy: false,
			Message: "not initialized",
		}
		status.Overall = false
	}

	// Check dispatcher
	if c.dispatcher != nil {
		status.Components["dispatcher"] = ComponentHealth{
			Healthy: true,
			Message: fmt.Sprintf("listener count: %d", len(c.listeners)),
		}
	} else {
		status.Components["dispatcher"] = ComponentHealth{
			Healthy: false,
			Message: "not initialized",
		}
		status.Overall = false
	}

	// Check services
	if c.services != nil {
		status.Components["services"] = ComponentHealth{Healthy: true}
	} else {
		status.Components["services"] = ComponentHealth{
			Healthy: false,
			Message: "not initialized",
		}
		status.Overall = false
	}

	return status
}

// initDatabase opens the database, applies migrations and builds the
// repositories.
func (c *Container) initDatabase(ctx context.Context) error {
	dbBundle, err := ProvideDatabase(ctx, &c.config.Database, c.logger.Named("database"))
	if err != nil {
		return err
	}

	c.conn = dbBundle.Conn
	c.db = dbBundle.TransactionMgr
	c.repositories = ProvideRepositories(c.db, c.logger)
	return nil
}

// initDispatcher creates the dispatcher and subscribes every listener.
func (c *Container) initDispatcher() {
	c.dispatcher = ProvideDispatcher(c.logger)

	c.listeners = ProvideListeners(&ListenerDeps{
		Config:   c.config,
		Settings: c.settings,
		Actions:  c.actions,
		Owners:   c.repositories.Subjects,
		Metrics:  c.metrics,
		Logger:   c.logger.Named("events"),
	})
	c.listeners = append(c.listeners, c.extra...)

	listener.Register(c.dispatcher, c.listeners...)
}

// initServices creates the application services.
func (c *Container) initServices() {
	v := c.validator
	if v == nil {
		v = ProvideValidator(c.config.Approvals.Validator, c.settings)
	}

	c.services = ProvideServices(&ServiceDeps{
		Repos:      c.repositories,
		TxManager:  c.db,
		Settings:   c.settings,
		Dispatcher: c.dispatcher,
		Validator:  v,
		Metrics:    c.metrics,
		Logger:     c.logger,
	})
}

// Getters for accessing container components

// DB returns the transaction manager.
func (c *Container) DB() *sqldb.DB {
	return c.db
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Settings returns the approval settings resolver.
func (c *Container) Settings() *settings.Resolver {
	return c.settings
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Listeners returns the subscribed listeners in dispatch order.
func (c *Container) Listeners() []listener.Listener {
	return c.listeners
}

// Metrics returns nil when metrics are disabled.
func (c *Container) Metrics() *metrics.Metrics {
	return c.metrics
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *config.Config {
	return c.config
}
