package keyboard

import (
	"fmt"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/ai-chef/recipe-bot/internal/payment"
)

// Callback data prefixes routed by the bot.
const (
	BuyPrefix          = "buy_"
	CheckPaymentPrefix = "check_payment_"
	MakeRecipeData     = "make_recipe"
)

// Builder creates the inline keyboards used across handlers.
type Builder struct {
	log *slog.Logger
}

// NewBuilder returns a new Builder instance.
func NewBuilder(log *slog.Logger) *Builder {
	return &Builder{log: log}
}

// MainMenu builds the default menu under the greeting message.
func (b *Builder) MainMenu() *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{}
	markup.InlineKeyboard = [][]telebot.InlineButton{
		{
			{
				Text: "🍳 Новый рецепт",
				Data: MakeRecipeData,
			},
		},
		{
			{
				Text: "💳 Купить рецепты",
				Data: "show_packages",
			},
			{
				Text: "💰 Баланс",
				Data: "show_balance",
			},
		},
	}
	return markup
}

// Packages builds one button per purchasable package.
func (b *Builder) Packages(catalog *payment.Catalog) *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{}
	if catalog == nil {
		return markup
	}

	for _, pkg := range catalog.All() {
		markup.InlineKeyboard = append(markup.InlineKeyboard, []telebot.InlineButton{
			{
				Text: fmt.Sprintf("%s — %d ₽", pkg.Name, pkg.PriceMinor/100),
				Data: BuyPrefix + pkg.Key,
			},
		})
	}

	return markup
}

// Payment builds the pay link plus a status check button for a created
// payment.
func (b *Builder) Payment(confirmationURL, paymentID string) *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{}
	markup.InlineKeyboard = [][]telebot.InlineButton{
		{
			{
				Text: "💳 Оплатить",
				URL:  confirmationURL,
			},
		},
		{
			{
				Text: "🔄 Проверить оплату",
				Data: CheckPaymentPrefix + paymentID,
			},
		},
	}
	return markup
}

// MakeRecipe builds the single "cook from this" button offered under
// plain text messages.
func (b *Builder) MakeRecipe() *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{}
	markup.InlineKeyboard = [][]telebot.InlineButton{
		{
			{
				Text: "👨‍🍳 Приготовить из этого",
				Data: MakeRecipeData,
			},
		},
	}
	return markup
}
