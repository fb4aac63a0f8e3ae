// Package notify delivers outbound user messages. Delivery is best
// effort with a single retry; failures are reported to the caller but
// must never influence balances or payment state.
package notify

import (
	"context"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v3"

	apperrors "github.com/ai-chef/recipe-bot/internal/errors"
	"github.com/ai-chef/recipe-bot/pkg/metrics"
)

// Sender is the outbound side of a telebot instance.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

const retryDelay = 500 * time.Millisecond

// Emitter sends messages to Telegram chats with one immediate retry.
type Emitter struct {
	sender Sender
	log    *slog.Logger
}

func NewEmitter(sender Sender, log *slog.Logger) *Emitter {
	if log == nil {
		log = slog.Default()
	}

	return &Emitter{sender: sender, log: log}
}

// Notify sends text to the user's chat. Markdown is the default parse
// mode; extra telebot send options may be appended.
func (e *Emitter) Notify(ctx context.Context, userID int64, text string, opts ...interface{}) error {
	sendOpts := append([]interface{}{tele.ModeMarkdown}, opts...)
	recipient := tele.ChatID(userID)

	_, err := e.sender.Send(recipient, text, sendOpts...)
	if err == nil {
		metrics.RecordNotification("delivered")
		return nil
	}

	e.log.Warn("notification delivery failed, retrying once",
		slog.Int64("user_id", userID),
		slog.Any("error", err),
	)

	select {
	case <-ctx.Done():
		metrics.RecordNotification("failed")
		return ctx.Err()
	case <-time.After(retryDelay):
	}

	if _, err = e.sender.Send(recipient, text, sendOpts...); err != nil {
		metrics.RecordNotification("failed")
		e.log.Error("notification delivery failed",
			slog.Int64("user_id", userID),
			slog.Any("error", err),
		)

		return apperrors.NewTransportDeliveryError(err)
	}

	metrics.RecordNotification("delivered_after_retry")
	return nil
}
