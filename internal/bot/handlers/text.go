package handlers

import (
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/ai-chef/recipe-bot/internal/bot/keyboard"
)

// NewTextHandler offers to cook from a plain message. The offer is sent
// as a reply so the callback can recover the original продукты list.
func NewTextHandler(kb *keyboard.Builder) Handler {
	return func(c telebot.Context) error {
		text := strings.TrimSpace(c.Text())
		if text == "" {
			return nil
		}

		return c.Reply(
			"🥕 Похоже на список продуктов! Приготовить из этого рецепт?",
			kb.MakeRecipe(),
		)
	}
}
