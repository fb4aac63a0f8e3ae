// Package health aggregates component liveness checks for /healthz.
package health

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"
	telebot "gopkg.in/telebot.v3"
)

// Checkable reports whether one component is usable.
type Checkable interface {
	HealthCheck(ctx context.Context) error
}

// Report is the aggregated outcome of all registered checks.
type Report struct {
	Healthy    bool              `json:"healthy"`
	Components map[string]string `json:"components"`
}

// Checker runs the registered checks and aggregates their statuses.
type Checker struct {
	log    *slog.Logger
	names  []string
	checks map[string]Checkable
}

func NewChecker(log *slog.Logger) *Checker {
	if log == nil {
		log = slog.Default()
	}

	return &Checker{
		log:    log,
		checks: make(map[string]Checkable),
	}
}

// AddCheck registers a component. Later checks run in registration order.
func (c *Checker) AddCheck(name string, check Checkable) {
	if name == "" || check == nil {
		return
	}

	if _, exists := c.checks[name]; !exists {
		c.names = append(c.names, name)
	}
	c.checks[name] = check
}

// Check runs every registered check.
func (c *Checker) Check(ctx context.Context) Report {
	report := Report{
		Healthy:    true,
		Components: make(map[string]string, len(c.checks)),
	}

	for _, name := range c.names {
		if err := c.checks[name].HealthCheck(ctx); err != nil {
			report.Healthy = false
			report.Components[name] = err.Error()
			c.log.Error("health check failed",
				slog.String("component", name),
				slog.Any("error", err),
			)
			continue
		}

		report.Components[name] = "ok"
	}

	return report
}

// DBChecker pings Postgres.
type DBChecker struct {
	db *sql.DB
}

func NewDBChecker(db *sql.DB) *DBChecker {
	return &DBChecker{db: db}
}

func (c *DBChecker) HealthCheck(ctx context.Context) error {
	if c == nil || c.db == nil {
		return sql.ErrConnDone
	}
	return c.db.PingContext(ctx)
}

// Pinger is the subset of the Redis client used for health checks.
type Pinger interface {
	Ping(ctx context.Context) *goredis.StatusCmd
}

// RedisChecker pings Redis.
type RedisChecker struct {
	pinger Pinger
}

func NewRedisChecker(pinger Pinger) *RedisChecker {
	return &RedisChecker{pinger: pinger}
}

func (c *RedisChecker) HealthCheck(ctx context.Context) error {
	if c == nil || c.pinger == nil {
		return goredis.ErrClosed
	}
	return c.pinger.Ping(ctx).Err()
}

// TelegramChecker verifies the bot session was established.
type TelegramChecker struct {
	bot *telebot.Bot
}

func NewTelegramChecker(bot *telebot.Bot) *TelegramChecker {
	return &TelegramChecker{bot: bot}
}

func (c *TelegramChecker) HealthCheck(context.Context) error {
	if c == nil || c.bot == nil || c.bot.Me == nil {
		return errors.New("telegram bot is not initialized")
	}
	return nil
}
