package handlers

import (
	"fmt"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/ai-chef/recipe-bot/internal/repository"
)

// NewAdminHandler reports aggregate usage to allowlisted administrators.
func NewAdminHandler(
	users repository.UserRepository,
	recipes repository.RecipeRepository,
	adminIDs []int64,
	log *slog.Logger,
) Handler {
	if log == nil {
		log = slog.Default()
	}

	allowed := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		allowed[id] = struct{}{}
	}

	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}

		if _, ok := allowed[sender.ID]; !ok {
			log.Warn("admin command from non-admin", slog.Int64("user_id", sender.ID))
			return c.Send("Неизвестная команда. /help — список команд.")
		}

		ctx := RequestContext(c)

		stats, err := users.Stats(ctx)
		if err != nil {
			return fmt.Errorf("load stats: %w", err)
		}

		recipesToday := int64(0)
		if recipes != nil {
			if n, err := recipes.CountToday(ctx); err == nil {
				recipesToday = n
			} else {
				log.Warn("failed to count recipes", slog.Any("error", err))
			}
		}

		return c.Send(fmt.Sprintf(
			"📊 *Статистика*\n\n"+
				"👥 Пользователей: %d\n"+
				"🟢 Активны сегодня: %d\n"+
				"📖 Рецептов всего: %d\n"+
				"🍳 Рецептов сегодня: %d\n"+
				"💰 Выручка: %d ₽",
			stats.TotalUsers,
			stats.ActiveToday,
			stats.TotalRequests,
			recipesToday,
			stats.TotalSpentMinor/100,
		), telebot.ModeMarkdown)
	}
}
