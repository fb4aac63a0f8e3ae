package bot

import (
	"context"
	"fmt"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/ai-chef/recipe-bot/internal/bot/handlers"
	"github.com/ai-chef/recipe-bot/internal/bot/keyboard"
	"github.com/ai-chef/recipe-bot/internal/completion"
	apperrors "github.com/ai-chef/recipe-bot/internal/errors"
	"github.com/ai-chef/recipe-bot/internal/ledger"
	"github.com/ai-chef/recipe-bot/internal/payment"
	"github.com/ai-chef/recipe-bot/internal/ratelimit"
	"github.com/ai-chef/recipe-bot/internal/repository"
	"github.com/ai-chef/recipe-bot/internal/user"
	"github.com/ai-chef/recipe-bot/pkg/config"
)

const (
	CommandStart   = "/start"
	CommandRecipe  = "/recipe"
	CommandBalance = "/balance"
	CommandBuy     = "/buy"
	CommandHelp    = "/help"
	CommandAdmin   = "/admin"
)

// Dependencies carries everything the bot handlers need.
type Dependencies struct {
	Users      *user.Service
	UserRepo   repository.UserRepository
	RecipeRepo repository.RecipeRepository
	Ledger     ledger.Store
	Backend    completion.Client
	Limiter    ratelimit.Limiter
	Catalog    *payment.Catalog
	Provider   *payment.ProviderClient
	Payments   payment.Repository
	Processor  *payment.Processor
}

// Bot wraps telebot with the command router. Updates are fed in through
// HandleUpdate by the transport layer; telebot's own pollers are never
// started.
type Bot struct {
	telebot    *telebot.Bot
	router     *Router
	keyboard   *keyboard.Builder
	errHandler *apperrors.Handler
	log        *slog.Logger
}

// NewTelebot establishes the Telegram session. Created separately from
// the Bot so callers can build senders (the notification emitter) before
// the command surface is wired.
func NewTelebot(cfg config.BotConfig) (*telebot.Bot, error) {
	tb, err := telebot.NewBot(telebot.Settings{
		Token: cfg.Token,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize telebot: %w", err)
	}

	return tb, nil
}

// New wires the full command surface around an existing telebot
// instance.
func New(tb *telebot.Bot, cfg config.Config, deps Dependencies, log *slog.Logger) *Bot {
	if log == nil {
		log = slog.Default()
	}

	b := &Bot{
		telebot:    tb,
		router:     NewRouter(log),
		keyboard:   keyboard.NewBuilder(log),
		errHandler: apperrors.NewHandler(log, cfg.Sentry.Enabled),
		log:        log,
	}

	b.setupRouter(cfg, deps)
	return b
}

// HandleUpdate routes one update through the middleware chain. This is
// the single entry point for both ingestion modes; ctx carries the
// ingestion deadline into the handlers.
func (b *Bot) HandleUpdate(ctx context.Context, u telebot.Update) error {
	c := b.telebot.NewContext(u)
	handlers.BindContext(c, ctx)

	return b.router.Route(c)
}

// Telebot exposes the underlying instance for sending and health checks.
func (b *Bot) Telebot() *telebot.Bot {
	return b.telebot
}

func (b *Bot) setupRouter(cfg config.Config, deps Dependencies) {
	b.router.Use(RecoveryMiddleware(b.log, b.errHandler))
	b.router.Use(ErrorHandlingMiddleware(b.errHandler))
	b.router.Use(LoggingMiddleware(b.log))
	b.router.Use(AuthMiddleware(deps.Users, b.log))
	b.router.Use(LastSeenMiddleware(deps.Users))
	b.router.Use(MetricsMiddleware())

	recipeFlow := handlers.NewRecipeFlow(
		deps.Ledger,
		deps.Backend,
		deps.Limiter,
		deps.RecipeRepo,
		deps.Catalog,
		b.keyboard,
		handlers.RecipeFlowConfig{
			Cost:            cfg.Dispatcher.RecipeCost,
			MaxPromptLength: cfg.Dispatcher.MaxPromptLength,
			RefundOnFailure: cfg.Dispatcher.RefundOnFailure,
		},
		b.log,
	)

	b.router.RegisterCommand(CommandStart, handlers.NewStartHandler(deps.Users, b.keyboard, b.log))
	b.router.RegisterCommand(CommandRecipe, recipeFlow.HandleCommand)
	b.router.RegisterCommand(CommandBalance, handlers.NewBalanceHandler(deps.UserRepo, b.log))
	b.router.RegisterCommand(CommandHelp, handlers.NewHelpHandler())
	b.router.RegisterCommand(CommandAdmin, handlers.NewAdminHandler(
		deps.UserRepo, deps.RecipeRepo, cfg.Bot.AdminIDs, b.log,
	))

	b.router.SetDefault(handlers.NewTextHandler(b.keyboard))

	if deps.Catalog != nil {
		buyHandler := handlers.NewBuyHandler(deps.Catalog, b.keyboard)
		b.router.RegisterCommand(CommandBuy, buyHandler)
		b.router.RegisterCallback("show_packages", handlers.CallbackHandler(buyHandler))
	}

	if deps.Provider != nil {
		b.router.RegisterCallback(keyboard.BuyPrefix, handlers.NewBuyCallback(
			deps.Provider, deps.Payments, deps.Catalog, b.keyboard, b.log,
		))
		b.router.RegisterCallback(keyboard.CheckPaymentPrefix, handlers.NewCheckPaymentCallback(
			deps.Provider, deps.Processor, b.log,
		))
	}

	b.router.RegisterCallback(keyboard.MakeRecipeData, recipeFlow.HandleMakeRecipeCallback)
	b.router.RegisterCallback("show_balance", handlers.CallbackHandler(
		handlers.NewBalanceHandler(deps.UserRepo, b.log),
	))
}
