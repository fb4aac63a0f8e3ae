package handlers

import (
	"fmt"
	"log/slog"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/ai-chef/recipe-bot/internal/bot/keyboard"
	"github.com/ai-chef/recipe-bot/internal/user"
)

// NewStartHandler greets the user and creates the account with its free
// starting balance on first contact.
func NewStartHandler(users *user.Service, kb *keyboard.Builder, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}

		ctx := RequestContext(c)

		u, err := users.GetOrCreate(ctx, sender)
		if err != nil {
			return fmt.Errorf("get or create user %d: %w", sender.ID, err)
		}

		name := sender.FirstName
		if name == "" {
			name = "шеф"
		}

		var text string
		if time.Since(u.CreatedAt) < time.Minute {
			text = fmt.Sprintf(
				"👋 Привет, %s!\n\nЯ — *AI-Шеф*: пришлите список продуктов, "+
					"а я придумаю рецепт.\n\n🎁 Вам начислено *%d бесплатных рецептов*.",
				name, u.Balance,
			)
		} else {
			text = fmt.Sprintf(
				"👋 С возвращением, %s!\n\n💳 Ваш баланс: *%d рецептов*.",
				name, u.Balance,
			)
		}

		opts := []interface{}{telebot.ModeMarkdown}
		if kb != nil {
			opts = append(opts, kb.MainMenu())
		}

		return c.Send(text, opts...)
	}
}
