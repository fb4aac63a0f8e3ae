package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/ai-chef/recipe-bot/internal/bot/keyboard"
	"github.com/ai-chef/recipe-bot/internal/domain"
	"github.com/ai-chef/recipe-bot/internal/payment"
)

// StatusChecker polls the provider for the current payment state.
type StatusChecker interface {
	PaymentByID(ctx context.Context, paymentID string) (*domain.PaymentEvent, error)
}

// NewCheckPaymentCallback polls the provider and routes a succeeded
// payment through the credit processor, reusing the webhook's
// idempotency guard. Checking an already credited payment is harmless.
func NewCheckPaymentCallback(provider StatusChecker, processor *payment.Processor, log *slog.Logger) CallbackHandler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		cb := c.Callback()
		if cb == nil {
			return nil
		}

		paymentID := strings.TrimPrefix(strings.TrimSpace(cb.Data), keyboard.CheckPaymentPrefix)
		if paymentID == "" {
			return c.Respond(&telebot.CallbackResponse{Text: "Платёж не найден"})
		}

		ctx := RequestContext(c)

		event, err := provider.PaymentByID(ctx, paymentID)
		if err != nil {
			return fmt.Errorf("check payment %s: %w", paymentID, err)
		}

		switch event.Status {
		case domain.PaymentSucceeded:
			credited, err := processor.Process(ctx, event)
			if err != nil {
				return fmt.Errorf("credit checked payment %s: %w", paymentID, err)
			}

			if credited {
				// The processor already sent the confirmation message.
				return c.Respond(&telebot.CallbackResponse{Text: "Оплата зачислена! 🎉"})
			}
			return c.Respond(&telebot.CallbackResponse{Text: "Этот платёж уже зачислен ✅"})

		case domain.PaymentCanceled:
			return c.Respond(&telebot.CallbackResponse{
				Text:      "Платёж отменён ❌",
				ShowAlert: true,
			})

		default:
			return c.Respond(&telebot.CallbackResponse{
				Text: "Платёж ещё не завершён, попробуйте позже ⏳",
			})
		}
	}
}
