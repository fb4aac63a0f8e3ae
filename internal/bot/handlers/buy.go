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

// PaymentCreator starts a provider payment for a package.
type PaymentCreator interface {
	CreatePayment(ctx context.Context, userID int64, pkg payment.Package) (*payment.CreatedPayment, error)
}

// NewBuyHandler shows the package catalog.
func NewBuyHandler(catalog *payment.Catalog, kb *keyboard.Builder) Handler {
	return func(c telebot.Context) error {
		return c.Send(catalog.FormatList(), telebot.ModeMarkdown, kb.Packages(catalog))
	}
}

// NewBuyCallback creates the provider payment for the chosen package and
// replies with pay and status-check buttons.
func NewBuyCallback(
	provider PaymentCreator,
	payments payment.Repository,
	catalog *payment.Catalog,
	kb *keyboard.Builder,
	log *slog.Logger,
) CallbackHandler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		cb := c.Callback()
		sender := c.Sender()
		if cb == nil || sender == nil {
			return nil
		}

		key := strings.TrimPrefix(strings.TrimSpace(cb.Data), keyboard.BuyPrefix)
		pkg, ok := catalog.Get(key)
		if !ok {
			return c.Respond(&telebot.CallbackResponse{Text: "Пакет больше не доступен"})
		}

		ctx := RequestContext(c)

		created, err := provider.CreatePayment(ctx, sender.ID, pkg)
		if err != nil {
			return fmt.Errorf("create payment for user %d: %w", sender.ID, err)
		}

		if payments != nil {
			link := &domain.Payment{
				PaymentID:   created.ID,
				UserID:      sender.ID,
				PackageKey:  pkg.Key,
				AmountMinor: pkg.PriceMinor,
				Tokens:      pkg.Tokens,
			}
			if err := payments.SavePending(ctx, link); err != nil {
				log.Warn("failed to save pending payment",
					slog.String("payment_id", created.ID),
					slog.Any("error", err),
				)
			}
		}

		_ = c.Respond(&telebot.CallbackResponse{})

		return c.Send(fmt.Sprintf(
			"🧾 *%s*\n\nК оплате: *%d ₽*\n\n"+
				"После оплаты нажмите «Проверить оплату» — рецепты зачислятся автоматически.",
			pkg.Name, pkg.PriceMinor/100,
		), telebot.ModeMarkdown, kb.Payment(created.ConfirmationURL, created.ID))
	}
}
