package config

import (
	"fmt"
	"time"
)

// Config holds runtime configuration for the AI-Chef bot.
type Config struct {
	AppEnv string `mapstructure:"-"`

	Logger     LoggerConfig     `mapstructure:"logger"`
	Sentry     SentryConfig     `mapstructure:"sentry"`
	Server     ServerConfig     `mapstructure:"server" validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database" validate:"required"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Bot        BotConfig        `mapstructure:"bot" validate:"required"`
	Completion CompletionConfig `mapstructure:"completion" validate:"required"`
	Payment    PaymentConfig    `mapstructure:"payment" validate:"required"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher"`
	Users      UsersConfig      `mapstructure:"users"`
}

type LoggerConfig struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=text json"`
	// File enables rotated file output in addition to stdout when set.
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type SentryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn" validate:"required_if=Enabled true"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port" validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host" validate:"required"`
	Port     string `mapstructure:"port" validate:"required"`
	User     string `mapstructure:"user" validate:"required"`
	Password string `mapstructure:"password" validate:"required"`
	Name     string `mapstructure:"name" validate:"required"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (c DatabaseConfig) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
		sslMode,
	)
}

type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
}

// BotConfig selects the message delivery mode. Webhook and polling are
// mutually exclusive at the Telegram API level; the mode is fixed for the
// process lifetime.
type BotConfig struct {
	Token string `mapstructure:"token" validate:"required"`
	Mode  string `mapstructure:"mode" validate:"required,oneof=webhook polling"`
	// PollTimeout is the long-poll timeout passed to getUpdates.
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
	// DedupWindow bounds the recent-history window used to drop redelivered
	// webhook updates.
	DedupWindow time.Duration `mapstructure:"dedup_window"`
	AdminIDs    []int64       `mapstructure:"admin_ids"`
}

type CompletionConfig struct {
	APIKey   string        `mapstructure:"api_key" validate:"required"`
	FolderID string        `mapstructure:"folder_id" validate:"required"`
	Model    string        `mapstructure:"model"`
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type PaymentConfig struct {
	ShopID    string `mapstructure:"shop_id" validate:"required"`
	SecretKey string `mapstructure:"secret_key" validate:"required"`
	// WebhookSecret signs provider notifications (HMAC-SHA256 over the body).
	WebhookSecret     string          `mapstructure:"webhook_secret" validate:"required"`
	ReturnURL         string          `mapstructure:"return_url" validate:"required,url"`
	BaseURL           string          `mapstructure:"base_url"`
	Timeout           time.Duration   `mapstructure:"timeout"`
	ReconcileInterval time.Duration   `mapstructure:"reconcile_interval"`
	ReconcileMinAge   time.Duration   `mapstructure:"reconcile_min_age"`
	Packages          []PackageConfig `mapstructure:"packages" validate:"required,min=1,dive"`
}

type PackageConfig struct {
	Key        string `mapstructure:"key" validate:"required"`
	Name       string `mapstructure:"name" validate:"required"`
	Tokens     int64  `mapstructure:"tokens" validate:"required,gt=0"`
	PriceMinor int64  `mapstructure:"price_minor" validate:"required,gt=0"`
}

type DispatcherConfig struct {
	// RecipeCost is the token cost charged per generation request.
	RecipeCost      int64         `mapstructure:"recipe_cost" validate:"omitempty,gt=0"`
	MaxPromptLength int           `mapstructure:"max_prompt_length"`
	RateLimit       int           `mapstructure:"rate_limit"`
	RateWindow      time.Duration `mapstructure:"rate_window"`
	// RefundOnFailure recredits the debit when the completion backend
	// reports that no work was performed. Debits are never reversed for
	// failures that may have started work.
	RefundOnFailure bool `mapstructure:"refund_on_failure"`
}

type UsersConfig struct {
	// FreeStartBalance is granted once, when a user record is first created.
	FreeStartBalance int64 `mapstructure:"free_start_balance"`
}
