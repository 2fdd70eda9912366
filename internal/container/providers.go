package container

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/approvals/internal/application/dispatcher"
	"github.com/garyjia/approvals/internal/application/listener"
	"github.com/garyjia/approvals/internal/application/notification"
	"github.com/garyjia/approvals/internal/application/port"
	"github.com/garyjia/approvals/internal/application/service"
	"github.com/garyjia/approvals/internal/application/settings"
	"github.com/garyjia/approvals/internal/application/validator"
	"github.com/garyjia/approvals/internal/application/visibility"
	"github.com/garyjia/approvals/internal/config"
	"github.com/garyjia/approvals/internal/infrastructure/external/notifier"
	"github.com/garyjia/approvals/internal/infrastructure/external/webhook"
	"github.com/garyjia/approvals/internal/infrastructure/metrics"
	"github.com/garyjia/approvals/internal/infrastructure/persistence/repository"
	"github.com/garyjia/approvals/internal/infrastructure/persistence/sqldb"
	"github.com/garyjia/approvals/migrations"
	"github.com/garyjia/approvals/pkg/database"
)

// DatabaseBundle groups database-related components.
type DatabaseBundle struct {
	Conn           *database.DB
	TransactionMgr *sqldb.DB
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Records  *repository.AuditRecordRepository
	Subjects *repository.SubjectRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Approval   service.ApprovalService
	Subject    service.SubjectService
	Statistics service.StatisticsService
	Scopes     *visibility.Scopes
}

// ProvideDatabase opens the configured database and brings its schema up
// to date.
func ProvideDatabase(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	conn, err := database.New(database.Config{
		Driver:          cfg.Driver,
		Path:            cfg.Path,
		DSN:             cfg.DSN,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	migrator := database.NewMigrator(conn, logger)
	if err := migrator.RunMigrations(ctx, migrations.FS, migrations.Dir(conn.Driver())); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		Conn:           conn,
		TransactionMgr: sqldb.NewDB(conn, logger),
	}, nil
}

// ProvideRepositories creates all repository instances.
func ProvideRepositories(db *sqldb.DB, logger *zap.Logger) *RepositoryBundle {
	return &RepositoryBundle{
		Records:  repository.NewAuditRecordRepository(db, logger.Named("records")),
		Subjects: repository.NewSubjectRepository(db, logger.Named("subjects")),
	}
}

// ProvideMetrics returns nil when metrics are disabled.
func ProvideMetrics(cfg *config.MetricsConfig) *metrics.Metrics {
	if !cfg.Enabled {
		return nil
	}
	return metrics.New()
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) dispatcher.Dispatcher {
	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(NewZapAdapter(logger.Named("dispatcher"))),
	)
}

// ListenerDeps holds the dependencies for the built-in listeners.
type ListenerDeps struct {
	Config   *config.Config
	Settings *settings.Resolver
	Actions  *listener.ActionRegistry
	Owners   notification.Owners
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

// ProvideListeners builds the built-in listeners in the order they run.
func ProvideListeners(deps *ListenerDeps) []listener.Listener {
	logger := NewZapAdapter(deps.Logger)
	recorder := recorderOf(deps.Metrics)

	client := webhook.NewClient(nil, deps.Config.Webhook.UserAgent, deps.Logger.Named("webhook"))

	listeners := []listener.Listener{
		listener.NewLoggingListener(deps.Settings, logger),
		listener.NewWebhookListener(deps.Settings, client, logger.Channel("webhook"),
			listener.WithTimeout(deps.Config.Webhook.Timeout),
			listener.WithRecorder(recorder)),
		listener.NewCustomActionListener(deps.Settings, deps.Actions, logger.Channel("actions"), recorder),
		notification.NewListener(
			deps.Config.NotificationConfig(),
			deps.Owners,
			ProvideNotificationSender(&deps.Config.Notifications, client, deps.Logger),
			logger.Channel("notifications"),
		),
	}
	if deps.Metrics != nil {
		listeners = append(listeners, listener.NewMetricsListener(deps.Metrics))
	}
	return listeners
}

// ProvideNotificationSender posts to the configured endpoint, or logs the
// notifications when none is set.
func ProvideNotificationSender(cfg *config.NotificationsConfig, poster port.WebhookPoster, logger *zap.Logger) port.NotificationSender {
	if cfg.Endpoint == "" {
		return notifier.NewLogSender(logger.Named("notifications"))
	}
	return notifier.NewHTTPSender(poster, cfg.Endpoint, cfg.Headers, cfg.Timeout)
}

// ServiceDeps holds dependencies for creating services.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Settings   *settings.Resolver
	Dispatcher dispatcher.Dispatcher
	Validator  validator.TransitionValidator
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps) *ServiceBundle {
	logger := NewZapAdapter(deps.Logger.Named("service"))
	scopes := visibility.NewScopes(deps.Settings)

	opts := []service.Option{}
	if deps.Validator != nil {
		opts = append(opts, service.WithValidator(deps.Validator))
	}
	if deps.Metrics != nil {
		opts = append(opts, service.WithTransitionRecorder(deps.Metrics))
	}

	approvals := service.NewApprovalService(deps.Repos.Records, deps.Settings, deps.Dispatcher, logger, opts...)

	return &ServiceBundle{
		Approval:   approvals,
		Subject:    service.NewSubjectService(deps.Repos.Subjects, deps.Repos.Records, approvals, scopes, deps.TxManager, logger),
		Statistics: service.NewStatisticsService(deps.Repos.Subjects, deps.Repos.Records, scopes, deps.Settings, logger),
		Scopes:     scopes,
	}
}

// ProvideValidator maps the configured rule set name to a validator.
func ProvideValidator(name string, reasons validator.ReasonPolicy) validator.TransitionValidator {
	if name == "strict" {
		return validator.NewStrict(reasons)
	}
	return validator.Permissive{}
}

// recorderOf keeps a nil *metrics.Metrics from becoming a non-nil interface.
func recorderOf(m *metrics.Metrics) listener.Recorder {
	if m == nil {
		return nil
	}
	return m
}
