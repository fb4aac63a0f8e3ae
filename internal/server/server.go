// Package server exposes the HTTP surface: payment and Telegram
// webhooks, health, and metrics.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ai-chef/recipe-bot/internal/health"
	"github.com/ai-chef/recipe-bot/pkg/config"
	"github.com/ai-chef/recipe-bot/pkg/graceful"
	"github.com/ai-chef/recipe-bot/pkg/logger"
)

const healthCheckTimeout = 5 * time.Second

// Options collects the handlers mounted on the mux. TelegramWebhook is
// nil in polling mode; /webhook/telegram then answers 404.
type Options struct {
	PaymentWebhook  http.Handler
	TelegramWebhook http.Handler
	Health          *health.Checker
}

// New builds the graceful HTTP server with all routes mounted.
func New(cfg config.ServerConfig, opts Options, log *slog.Logger) *graceful.Server {
	if log == nil {
		log = slog.Default()
	}

	mux := http.NewServeMux()

	if opts.PaymentWebhook != nil {
		mux.Handle("/webhook/payment", opts.PaymentWebhook)
	}

	if opts.TelegramWebhook != nil {
		mux.Handle("/webhook/telegram", opts.TelegramWebhook)
	}

	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", healthzHandler(opts.Health))

	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      logger.Middleware(mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return graceful.NewServer("api", srv, cfg.ShutdownTimeout, log)
}

func healthzHandler(checker *health.Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if checker == nil {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"healthy":true}`))
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		report := checker.Check(ctx)
		if !report.Healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		_ = json.NewEncoder(w).Encode(report)
	}
}
