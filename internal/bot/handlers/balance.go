package handlers

import (
	"errors"
	"fmt"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/ai-chef/recipe-bot/internal/repository"
)

// NewBalanceHandler reports the balance and usage totals.
func NewBalanceHandler(users repository.UserRepository, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}

		u, err := users.FindByID(RequestContext(c), sender.ID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return c.Send("Нажмите /start, чтобы начать.")
			}
			return fmt.Errorf("load user %d: %w", sender.ID, err)
		}

		return c.Send(fmt.Sprintf(
			"💳 *Ваш баланс: %d рецептов*\n\n"+
				"📖 Всего приготовлено: %d\n"+
				"💰 Всего потрачено: %d ₽",
			u.Balance, u.TotalRequests, u.TotalSpentMinor/100,
		), telebot.ModeMarkdown)
	}
}
