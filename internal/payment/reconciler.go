package payment

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/ai-chef/recipe-bot/internal/domain"
)

const reconcileBatchSize = 50

// StatusChecker fetches the current provider-side state of a payment.
type StatusChecker interface {
	PaymentByID(ctx context.Context, paymentID string) (*domain.PaymentEvent, error)
}

// Reconciler periodically re-checks payments that are still pending locally
// and routes succeeded ones through the Processor. This covers webhook
// deliveries that never arrived; the ledger's idempotency guard makes the
// overlap with a late webhook harmless.
type Reconciler struct {
	repo      Repository
	provider  StatusChecker
	processor *Processor
	interval  time.Duration
	minAge    time.Duration
	log       *slog.Logger
}

// NewReconciler builds a reconciler loop.
func NewReconciler(repo Repository, provider StatusChecker, processor *Processor, interval, minAge time.Duration, log *slog.Logger) *Reconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if minAge <= 0 {
		minAge = 2 * time.Minute
	}
	if log == nil {
		log = slog.Default()
	}

	return &Reconciler{
		repo:      repo,
		provider:  provider,
		processor: processor,
		interval:  interval,
		minAge:    minAge,
		log:       log,
	}
}

// Run executes reconcile passes until ctx is canceled.
func (r *Reconciler) Run(ctx context.Context) {
	if r.repo == nil || r.provider == nil || r.processor == nil {
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.reconcileOnce(ctx)
		}
	}
}

func (r *Reconciler) reconcileOnce(ctx context.Context) {
	pending, err := r.repo.PendingOlderThan(ctx, r.minAge, reconcileBatchSize)
	if err != nil {
		r.log.Warn("failed to list pending payments", slog.Any("error", err))
		return
	}

	for _, p := range pending {
		select {
		case <-ctx.Done():
			return
		default:
		}

		event, err := r.provider.PaymentByID(ctx, p.PaymentID)
		if err != nil {
			r.log.Warn("failed to check payment status",
				slog.String("payment_id", p.PaymentID),
				slog.Any("error", err),
			)
			continue
		}

		switch event.Status {
		case domain.PaymentSucceeded:
			if _, err := r.processor.Process(ctx, event); err != nil {
				r.log.Warn("failed to credit reconciled payment",
					slog.String("payment_id", p.PaymentID),
					slog.Any("error", err),
				)
			}
		case domain.PaymentCanceled:
			if err := r.repo.MarkStatus(ctx, p.PaymentID, domain.PaymentCanceled, json.RawMessage(event.Raw)); err != nil {
				r.log.Warn("failed to mark payment canceled",
					slog.String("payment_id", p.PaymentID),
					slog.Any("error", err),
				)
			}
		default:
			// still pending at the provider, pick it up next pass
		}
	}
}
