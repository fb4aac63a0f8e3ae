package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	_ "github.com/lib/pq"

	"github.com/ai-chef/recipe-bot/internal/bot"
	"github.com/ai-chef/recipe-bot/internal/completion"
	"github.com/ai-chef/recipe-bot/internal/database"
	"github.com/ai-chef/recipe-bot/internal/health"
	"github.com/ai-chef/recipe-bot/internal/ledger"
	"github.com/ai-chef/recipe-bot/internal/notify"
	"github.com/ai-chef/recipe-bot/internal/payment"
	"github.com/ai-chef/recipe-bot/internal/ratelimit"
	"github.com/ai-chef/recipe-bot/internal/repository"
	"github.com/ai-chef/recipe-bot/internal/server"
	"github.com/ai-chef/recipe-bot/internal/transport"
	"github.com/ai-chef/recipe-bot/internal/user"
	"github.com/ai-chef/recipe-bot/pkg/config"
	"github.com/ai-chef/recipe-bot/pkg/graceful"
	"github.com/ai-chef/recipe-bot/pkg/logger"
	"github.com/ai-chef/recipe-bot/pkg/redis"
)

const limiterCleanupInterval = 10 * time.Minute

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, v, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.Sentry.Enabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.AppEnv,
		}); err != nil {
			return fmt.Errorf("init sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	log := logger.New(*cfg)
	slog.SetDefault(log)
	config.WatchLogLevel(v, logger.SetLevel)

	log.Info("starting recipe bot",
		slog.String("env", cfg.AppEnv),
		slog.String("mode", cfg.Bot.Mode),
		slog.String("http_port", cfg.Server.Port),
	)

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			log.Error("error closing database", slog.Any("error", cerr))
		}
	}()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	migrator := database.NewMigrator(db, log)
	if err := migrator.ApplyDir(ctx, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = redis.New(ctx, redis.Config{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			PoolTimeout:  cfg.Redis.PoolTimeout,
			IdleTimeout:  cfg.Redis.IdleTimeout,
			MaxRetries:   cfg.Redis.MaxRetries,
		})
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer func() { _ = redisClient.Close() }()
	} else {
		log.Warn("redis not configured, using in-memory dedup and rate limiting")
	}

	tb, err := bot.NewTelebot(cfg.Bot)
	if err != nil {
		return err
	}

	// Storage and domain services.
	ledgerStore := ledger.NewPostgresStore(db, log)
	userRepo := repository.NewUserRepository(db, log)
	recipeRepo := repository.NewRecipeRepository(db, log)
	paymentRepo := payment.NewRepository(db, log)
	userService := user.NewService(userRepo, cfg.Users.FreeStartBalance, log)

	catalog := payment.NewCatalog(cfg.Payment.Packages)
	provider := payment.NewProviderClient(
		cfg.Payment.BaseURL,
		cfg.Payment.ShopID,
		cfg.Payment.SecretKey,
		cfg.Payment.ReturnURL,
		cfg.Payment.Timeout,
		log,
	)
	backend := completion.NewYandexGPTClient(cfg.Completion, log)

	emitter := notify.NewEmitter(tb, log)
	processor := payment.NewProcessor(ledgerStore, paymentRepo, emitter, log)

	var limiter ratelimit.Limiter
	memoryLimiter := ratelimit.NewMemoryLimiter(cfg.Dispatcher.RateLimit, cfg.Dispatcher.RateWindow)
	if redisClient != nil {
		limiter = ratelimit.NewRedisLimiter(redisClient, cfg.Dispatcher.RateLimit, cfg.Dispatcher.RateWindow, log)
	} else {
		limiter = memoryLimiter
		go cleanupLoop(ctx, memoryLimiter)
	}

	b := bot.New(tb, *cfg, bot.Dependencies{
		Users:      userService,
		UserRepo:   userRepo,
		RecipeRepo: recipeRepo,
		Ledger:     ledgerStore,
		Backend:    backend,
		Limiter:    limiter,
		Catalog:    catalog,
		Provider:   provider,
		Payments:   paymentRepo,
		Processor:  processor,
	}, log)

	// Update ingestion: exactly one of webhook or polling.
	var deduper transport.Deduper
	if redisClient != nil {
		deduper = transport.NewRedisDeduper(redisClient, cfg.Bot.DedupWindow)
	} else {
		deduper = transport.NewMemoryDeduper(cfg.Bot.DedupWindow)
	}

	router := transport.NewRouter(b.HandleUpdate, deduper, log)

	var telegramWebhook http.Handler
	if cfg.Bot.Mode == "webhook" {
		telegramWebhook, err = router.WebhookHandler()
		if err != nil {
			return fmt.Errorf("claim webhook mode: %w", err)
		}
	} else {
		go func() {
			if err := router.Poll(ctx, transport.BotFetcher(tb), transport.PollConfig{
				Timeout: cfg.Bot.PollTimeout,
			}); err != nil && ctx.Err() == nil {
				log.Error("polling stopped", slog.Any("error", err))
				stop()
			}
		}()
	}

	reconciler := payment.NewReconciler(
		paymentRepo,
		provider,
		processor,
		cfg.Payment.ReconcileInterval,
		cfg.Payment.ReconcileMinAge,
		log,
	)
	go reconciler.Run(ctx)

	checker := health.NewChecker(log)
	checker.AddCheck("database", health.NewDBChecker(db))
	if redisClient != nil {
		checker.AddCheck("redis", health.NewRedisChecker(redisClient.Client))
	}
	checker.AddCheck("telegram", health.NewTelegramChecker(tb))

	gateway := payment.NewGateway(cfg.Payment.WebhookSecret, log)
	srv := server.New(cfg.Server, server.Options{
		PaymentWebhook:  server.NewPaymentWebhookHandler(gateway, processor, log),
		TelegramWebhook: telegramWebhook,
		Health:          checker,
	}, log)

	return serve(ctx, srv, log)
}

func serve(ctx context.Context, srv *graceful.Server, log *slog.Logger) error {
	err := srv.ListenAndServe(ctx)
	log.Info("recipe bot stopped")
	return err
}

func cleanupLoop(ctx context.Context, limiter *ratelimit.MemoryLimiter) {
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Cleanup(limiterCleanupInterval)
		}
	}
}
