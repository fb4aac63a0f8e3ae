// Package config provides configuration loading and validation utilities.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultRecipeCost      = 1
	defaultMaxPromptLength = 500
	defaultRateLimit       = 1
)

// Load reads configuration from YAML files and environment variables,
// validates it, and returns the resulting Config.
func Load() (*Config, *viper.Viper, error) {
	if err := godotenv.Load(".env.local", ".env"); err != nil {
		// missing env files are fine, real deployments use the environment
		_ = err
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	v := viper.New()
	v.SetConfigFile(fmt.Sprintf("./configs/%s.yaml", env))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.AppEnv = env

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return nil, nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, v, nil
}

// WatchLogLevel re-reads the config file on change and reports the new log
// level. Only the level is hot-reloadable; everything else, the transport
// mode in particular, stays fixed for the process lifetime.
func WatchLogLevel(v *viper.Viper, onChange func(level string)) {
	if v == nil || onChange == nil {
		return
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}

		if level := v.GetString("logger.level"); level != "" {
			onChange(level)
		}
	})
	v.WatchConfig()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "text")
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("bot.mode", "polling")
	v.SetDefault("bot.poll_timeout", "30s")
	v.SetDefault("bot.dedup_window", "10m")
	v.SetDefault("completion.model", "yandexgpt-lite")
	v.SetDefault("completion.base_url", "https://llm.api.cloud.yandex.net")
	v.SetDefault("completion.timeout", "30s")
	v.SetDefault("payment.base_url", "https://api.yookassa.ru/v3")
	v.SetDefault("payment.timeout", "10s")
	v.SetDefault("payment.reconcile_interval", "1m")
	v.SetDefault("payment.reconcile_min_age", "2m")
	v.SetDefault("dispatcher.recipe_cost", defaultRecipeCost)
	v.SetDefault("dispatcher.max_prompt_length", defaultMaxPromptLength)
	v.SetDefault("dispatcher.rate_limit", defaultRateLimit)
	v.SetDefault("dispatcher.rate_window", "15s")
	v.SetDefault("dispatcher.refund_on_failure", false)
	v.SetDefault("users.free_start_balance", 3)
}
