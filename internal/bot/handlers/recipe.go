package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	telebot "gopkg.in/telebot.v3"

	"github.com/ai-chef/recipe-bot/internal/bot/keyboard"
	"github.com/ai-chef/recipe-bot/internal/completion"
	"github.com/ai-chef/recipe-bot/internal/domain"
	"github.com/ai-chef/recipe-bot/internal/ledger"
	"github.com/ai-chef/recipe-bot/internal/payment"
	"github.com/ai-chef/recipe-bot/internal/ratelimit"
	"github.com/ai-chef/recipe-bot/internal/repository"
	"github.com/ai-chef/recipe-bot/pkg/metrics"
)

const generateTimeout = 90 * time.Second

// RecipeFlowConfig tunes the costed generation flow.
type RecipeFlowConfig struct {
	Cost            int64
	MaxPromptLength int
	RefundOnFailure bool
}

// RecipeFlow runs the paid generation pipeline: rate limit, debit,
// completion, reply. Each inbound message produces exactly one outbound
// message on every path the flow finishes itself; unexpected errors are
// returned so the error middleware sends the single failure notice.
type RecipeFlow struct {
	ledger   ledger.Store
	backend  completion.Client
	limiter  ratelimit.Limiter
	recipes  repository.RecipeRepository
	catalog  *payment.Catalog
	keyboard *keyboard.Builder
	cfg      RecipeFlowConfig
	log      *slog.Logger
}

func NewRecipeFlow(
	store ledger.Store,
	backend completion.Client,
	limiter ratelimit.Limiter,
	recipes repository.RecipeRepository,
	catalog *payment.Catalog,
	kb *keyboard.Builder,
	cfg RecipeFlowConfig,
	log *slog.Logger,
) *RecipeFlow {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Cost <= 0 {
		cfg.Cost = 1
	}

	return &RecipeFlow{
		ledger:   store,
		backend:  backend,
		limiter:  limiter,
		recipes:  recipes,
		catalog:  catalog,
		keyboard: kb,
		cfg:      cfg,
		log:      log,
	}
}

// HandleCommand serves "/recipe <продукты>".
func (f *RecipeFlow) HandleCommand(c telebot.Context) error {
	prompt := strings.TrimSpace(strings.TrimPrefix(c.Text(), "/recipe"))
	if prompt == "" {
		return c.Send(
			"✍️ Напишите продукты после команды, например:\n`/recipe курица, рис, морковь`",
			telebot.ModeMarkdown,
		)
	}

	return f.run(c, prompt)
}

// HandleText serves a plain message already confirmed as a prompt.
func (f *RecipeFlow) HandleText(c telebot.Context) error {
	return f.run(c, strings.TrimSpace(c.Text()))
}

// HandleMakeRecipeCallback serves the "приготовить из этого" button. The
// button message is a reply to the user's original text, which carries
// the prompt.
func (f *RecipeFlow) HandleMakeRecipeCallback(c telebot.Context) error {
	cb := c.Callback()
	if cb == nil {
		return nil
	}

	if cb.Message == nil || cb.Message.ReplyTo == nil || strings.TrimSpace(cb.Message.ReplyTo.Text) == "" {
		_ = c.Respond(&telebot.CallbackResponse{})
		return c.Send(
			"✍️ Пришлите список продуктов одним сообщением, и я придумаю рецепт.",
		)
	}

	_ = c.Respond(&telebot.CallbackResponse{Text: "Готовлю рецепт..."})
	return f.run(c, strings.TrimSpace(cb.Message.ReplyTo.Text))
}

func (f *RecipeFlow) run(c telebot.Context, prompt string) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	ctx := RequestContext(c)
	userID := sender.ID

	if f.cfg.MaxPromptLength > 0 && len([]rune(prompt)) > f.cfg.MaxPromptLength {
		return c.Send(fmt.Sprintf(
			"✂️ Слишком длинный список: сократите его до %d символов.",
			f.cfg.MaxPromptLength,
		))
	}

	if f.limiter != nil {
		decision, err := f.limiter.Allow(ctx, userID)
		if err != nil {
			f.log.Warn("rate limiter unavailable, allowing request",
				slog.Int64("user_id", userID),
				slog.Any("error", err),
			)
		} else if !decision.Allowed {
			wait := decision.RetryAfter(time.Now()).Round(time.Second)
			return c.Send(fmt.Sprintf(
				"⏳ Слишком много запросов. Попробуйте через %s.", wait,
			))
		}
	}

	applied, err := f.ledger.Debit(ctx, userID, f.cfg.Cost)
	if err != nil {
		return fmt.Errorf("debit user %d: %w", userID, err)
	}

	metrics.RecordDebit(applied)

	if !applied {
		return c.Send(
			"😔 *Рецепты закончились.*\n\nВыберите пакет, чтобы продолжить готовить:",
			telebot.ModeMarkdown,
			f.packagesMarkup(),
		)
	}

	genCtx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	text, err := f.backend.Generate(genCtx, prompt)
	if err != nil {
		return f.handleBackendFailure(ctx, c, userID, err)
	}

	f.saveHistory(ctx, userID, prompt, text)

	return c.Send(text, telebot.ModeMarkdown)
}

// handleBackendFailure notifies the user once and refunds the debit only
// when the policy is on and the backend performed no work.
func (f *RecipeFlow) handleBackendFailure(ctx context.Context, c telebot.Context, userID int64, genErr error) error {
	refunded := false
	if f.cfg.RefundOnFailure && errors.Is(genErr, completion.ErrUnavailable) {
		eventID := "refund:" + uuid.NewString()
		applied, err := f.ledger.Credit(ctx, userID, f.cfg.Cost, 0, eventID)
		if err != nil {
			f.log.Error("failed to refund debit",
				slog.Int64("user_id", userID),
				slog.String("event_id", eventID),
				slog.Any("error", err),
			)
		}
		refunded = applied
	}

	f.log.Error("completion failed",
		slog.Int64("user_id", userID),
		slog.Bool("refunded", refunded),
		slog.Any("error", genErr),
	)

	msg := "😓 Не получилось придумать рецепт. Попробуйте ещё раз чуть позже."
	if refunded {
		msg += "\n\n💳 Рецепт не списан."
	}

	return c.Send(msg)
}

func (f *RecipeFlow) saveHistory(ctx context.Context, userID int64, prompt, response string) {
	if f.recipes == nil {
		return
	}

	err := f.recipes.Save(ctx, &domain.Recipe{
		UserID:    userID,
		Prompt:    prompt,
		Response:  response,
		CostUnits: f.cfg.Cost,
	})
	if err != nil {
		f.log.Warn("failed to save recipe history",
			slog.Int64("user_id", userID),
			slog.Any("error", err),
		)
	}
}

func (f *RecipeFlow) packagesMarkup() *telebot.ReplyMarkup {
	if f.keyboard == nil {
		return &telebot.ReplyMarkup{}
	}

	return f.keyboard.Packages(f.catalog)
}
