package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/garyjia/approvals/internal/application/notification"
	"github.com/garyjia/approvals/internal/application/settings"
	"github.com/garyjia/approvals/pkg/utils"
)

// EnvPrefix namespaces environment overrides, e.g. APPROVALS_SERVER_PORT
const EnvPrefix = "APPROVALS"

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Approvals     ApprovalsConfig     `mapstructure:"approvals"`
	Webhook       WebhookConfig       `mapstructure:"webhook"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`
	Logger        LoggerConfig        `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// ApprovalsConfig is the layered per-subject-type settings tree
type ApprovalsConfig struct {
	// Validator is "permissive" or "strict"
	Validator string                 `mapstructure:"validator"`
	Default   map[string]interface{} `mapstructure:"default"`
	Types     map[string]interface{} `mapstructure:"types"`
}

// WebhookConfig holds the outbound HTTP client settings
type WebhookConfig struct {
	UserAgent string        `mapstructure:"user_agent"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// NotificationsConfig holds approval notification settings
type NotificationsConfig struct {
	Enabled     bool              `mapstructure:"enabled"`
	OnApproved  bool              `mapstructure:"on_approved"`
	OnRejected  bool              `mapstructure:"on_rejected"`
	OnPending   bool              `mapstructure:"on_pending"`
	NotifyOwner bool              `mapstructure:"notify_owner"`
	AdminEmail  string            `mapstructure:"admin_email"`
	Endpoint    string            `mapstructure:"endpoint"`
	Headers     map[string]string `mapstructure:"headers"`
	Timeout     time.Duration     `mapstructure:"timeout"`
}

// MetricsConfig holds Prometheus exposition settings
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoggerConfig holds logger configuration
type LoggerConfig = utils.LoggerConfig

// Load loads configuration from file and environment variables. An empty
// configPath searches ./configs and the working directory for config.yaml.
// A .env file next to the config file, or in the working directory, is
// loaded first and never overrides variables already set.
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(configPath); err != nil {
		return nil, err
	}

	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}
	v.SetConfigType("yaml")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadDotEnv(configPath string) error {
	candidates := []string{".env"}
	if configPath != "" {
		candidates = append([]string{filepath.Join(filepath.Dir(configPath), ".env")}, candidates...)
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := gotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.path", "data/approvals.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	// Approval engine defaults
	v.SetDefault("approvals.validator", "permissive")

	// Webhook client defaults
	v.SetDefault("webhook.user_agent", "approvals/1.0")
	v.SetDefault("webhook.timeout", 30*time.Second)

	// Notification defaults
	n := notification.DefaultConfig()
	v.SetDefault("notifications.enabled", n.Enabled)
	v.SetDefault("notifications.on_approved", n.OnApproved)
	v.SetDefault("notifications.on_rejected", n.OnRejected)
	v.SetDefault("notifications.on_pending", n.OnPending)
	v.SetDefault("notifications.notify_owner", n.NotifyOwner)
	v.SetDefault("notifications.timeout", 10*time.Second)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds the secrets that are usually kept out of the file
func bindEnvVars(v *viper.Viper) error {
	bindings := map[string]string{
		"database.dsn":              "APPROVALS_DATABASE_DSN",
		"notifications.admin_email": "APPROVALS_ADMIN_EMAIL",
		"notifications.endpoint":    "APPROVALS_NOTIFICATIONS_ENDPOINT",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch strings.ToLower(c.Database.Driver) {
	case "", "sqlite", "sqlite3":
		if c.Database.Path == "" {
			return errors.New("database.path is required for sqlite")
		}
	case "mysql":
		if c.Database.DSN == "" {
			return errors.New("database.dsn is required for mysql")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with '/': %q", c.Metrics.Path)
	}

	if email := strings.TrimSpace(c.Notifications.AdminEmail); email != "" {
		if err := utils.ValidateEmail(email); err != nil {
			return fmt.Errorf("notifications.admin_email: %w", err)
		}
	}

	switch c.Approvals.Validator {
	case "", "permissive", "strict":
	default:
		return fmt.Errorf("approvals.validator must be permissive or strict, got %q", c.Approvals.Validator)
	}

	types, err := c.Approvals.TypeSettings()
	if err != nil {
		return err
	}
	if err := settings.NewResolver(c.Approvals.Defaults(), types).ValidateAll(); err != nil {
		return err
	}

	return nil
}

// Defaults returns the built-in approval defaults overlaid with the
// configured global map
func (a ApprovalsConfig) Defaults() map[string]interface{} {
	merged := settings.DefaultValues()
	for k, v := range a.Default {
		merged[strings.ToLower(k)] = v
	}
	return merged
}

// TypeSettings returns the per-type override maps. A type listed without
// any keys gets an empty map.
func (a ApprovalsConfig) TypeSettings() (map[string]map[string]interface{}, error) {
	out := make(map[string]map[string]interface{}, len(a.Types))
	for name, raw := range a.Types {
		if raw == nil {
			out[name] = map[string]interface{}{}
			continue
		}
		values, err := cast.ToStringMapE(raw)
		if err != nil {
			return nil, fmt.Errorf("approvals.types.%s must be a map: %w", name, err)
		}
		out[name] = values
	}
	return out, nil
}

// Resolver builds the settings resolver for the approval engine
func (c *Config) Resolver() (*settings.Resolver, error) {
	types, err := c.Approvals.TypeSettings()
	if err != nil {
		return nil, err
	}
	return settings.NewResolver(c.Approvals.Defaults(), types), nil
}

// NotificationConfig converts the notifications section
func (c *Config) NotificationConfig() notification.Config {
	return notification.Config{
		Enabled:     c.Notifications.Enabled,
		OnApproved:  c.Notifications.OnApproved,
		OnRejected:  c.Notifications.OnRejected,
		OnPending:   c.Notifications.OnPending,
		NotifyOwner: c.Notifications.NotifyOwner,
		AdminEmail:  c.Notifications.AdminEmail,
	}
}
