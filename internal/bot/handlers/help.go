package handlers

import (
	telebot "gopkg.in/telebot.v3"
)

const helpText = "🤖 *Что я умею*\n\n" +
	"Пришлите список продуктов одним сообщением — я придумаю рецепт " +
	"из того, что есть.\n\n" +
	"*Команды:*\n" +
	"/recipe <продукты> — рецепт из продуктов\n" +
	"/balance — баланс и статистика\n" +
	"/buy — купить пакет рецептов\n" +
	"/help — эта справка"

// NewHelpHandler sends the command reference.
func NewHelpHandler() Handler {
	return func(c telebot.Context) error {
		return c.Send(helpText, telebot.ModeMarkdown)
	}
}
