package payment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ai-chef/recipe-bot/internal/domain"
	apperrors "github.com/ai-chef/recipe-bot/internal/errors"
	"github.com/ai-chef/recipe-bot/internal/ledger"
	"github.com/ai-chef/recipe-bot/pkg/metrics"
)

// Notifier delivers a user-facing message. Delivery failures never affect
// ledger state.
type Notifier interface {
	Notify(ctx context.Context, userID int64, text string, opts ...interface{}) error
}

// Processor applies payment events to the ledger exactly once.
type Processor struct {
	ledger   ledger.Store
	payments Repository
	notifier Notifier
	log      *slog.Logger
}

// NewProcessor wires the credit pipeline. payments and notifier may be nil
// (audit trail and confirmation messages are best effort).
func NewProcessor(store ledger.Store, payments Repository, notifier Notifier, log *slog.Logger) *Processor {
	if log == nil {
		log = slog.Default()
	}

	return &Processor{
		ledger:   store,
		payments: payments,
		notifier: notifier,
		log:      log,
	}
}

// Process credits the event to the ledger. The outcome contract:
//
//   - non-actionable event: (false, nil) — acknowledge, never credit;
//   - duplicate event id: (false, nil) — acknowledge, balance unchanged;
//   - transient storage failure after bounded internal retries: the
//     retryable error propagates so the webhook answers retry-eligible and
//     the provider redelivers;
//   - otherwise: (true, nil) and a confirmation notification.
func (p *Processor) Process(ctx context.Context, event *domain.PaymentEvent) (bool, error) {
	if event == nil || !event.Actionable {
		metrics.RecordPaymentEvent(metrics.PaymentIgnored)
		return false, nil
	}

	var applied bool
	err := apperrors.WithRetry(ctx, func() error {
		var creditErr error
		applied, creditErr = p.ledger.Credit(ctx, event.UserID, event.Tokens, event.AmountMinor, event.ID)
		return creditErr
	})
	if err != nil {
		metrics.RecordPaymentEvent(metrics.PaymentFailed)
		return false, fmt.Errorf("credit event %s: %w", event.ID, err)
	}

	if !applied {
		metrics.RecordPaymentEvent(metrics.PaymentDuplicate)
		p.log.Info("duplicate payment event acknowledged",
			slog.String("event_id", event.ID),
			slog.Int64("user_id", event.UserID),
		)
		return false, nil
	}

	metrics.RecordPaymentEvent(metrics.PaymentCredited)
	metrics.RecordCreditedTokens(event.Tokens)

	p.log.Info("payment credited",
		slog.String("event_id", event.ID),
		slog.Int64("user_id", event.UserID),
		slog.Int64("tokens", event.Tokens),
	)

	p.recordAudit(ctx, event)
	p.confirm(ctx, event)

	return true, nil
}

func (p *Processor) recordAudit(ctx context.Context, event *domain.PaymentEvent) {
	if p.payments == nil {
		return
	}

	if err := p.payments.MarkStatus(ctx, event.ID, domain.PaymentSucceeded, event.Raw); err != nil {
		p.log.Warn("failed to record payment audit status",
			slog.String("event_id", event.ID),
			slog.Any("error", err),
		)
	}
}

func (p *Processor) confirm(ctx context.Context, event *domain.PaymentEvent) {
	if p.notifier == nil {
		return
	}

	balance, err := p.ledger.GetBalance(ctx, event.UserID)
	if err != nil {
		p.log.Warn("failed to read balance for confirmation",
			slog.Int64("user_id", event.UserID),
			slog.Any("error", err),
		)
		balance = -1
	}

	text := "🎉 *Оплата прошла успешно!*\n\nПриятной готовки! 👨‍🍳"
	if balance >= 0 {
		text = fmt.Sprintf(
			"🎉 *Оплата прошла успешно!*\n\n💳 Ваш баланс: *%d рецептов*\n\nПриятной готовки! 👨‍🍳",
			balance,
		)
	}

	if err := p.notifier.Notify(ctx, event.UserID, text); err != nil {
		p.log.Warn("failed to deliver credit confirmation",
			slog.Int64("user_id", event.UserID),
			slog.Any("error", err),
		)
	}
}
