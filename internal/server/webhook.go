package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	apperrors "github.com/ai-chef/recipe-bot/internal/errors"
	"github.com/ai-chef/recipe-bot/internal/payment"
	"github.com/ai-chef/recipe-bot/pkg/logger"
	"github.com/ai-chef/recipe-bot/pkg/metrics"
)

const maxWebhookBody = 1 << 20

// PaymentWebhookHandler verifies, parses, and credits provider
// notifications. Response contract: 401 for a failed signature, 400 for
// a malformed body, 500 only for transient local failures (the provider
// redelivers), 200 for everything handled — including duplicates and
// ignored statuses.
type PaymentWebhookHandler struct {
	gateway   *payment.Gateway
	processor *payment.Processor
	log       *slog.Logger
}

func NewPaymentWebhookHandler(gateway *payment.Gateway, processor *payment.Processor, log *slog.Logger) *PaymentWebhookHandler {
	if log == nil {
		log = slog.Default()
	}

	return &PaymentWebhookHandler{
		gateway:   gateway,
		processor: processor,
		log:       log,
	}
}

func (h *PaymentWebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	log := h.log.With(slog.String("correlation_id", logger.CorrelationIDFromContext(ctx)))

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		log.Warn("failed to read webhook body", slog.Any("error", err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	event, err := h.gateway.ParseNotification(body, r.Header.Get(payment.SignatureHeader))
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) && appErr.Code == "E110" {
			metrics.RecordPaymentEvent(metrics.PaymentRejected)
			log.Warn("webhook signature rejected", slog.Any("error", err))
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		metrics.RecordPaymentEvent(metrics.PaymentRejected)
		log.Warn("webhook body rejected", slog.Any("error", err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if _, err := h.processor.Process(ctx, event); err != nil {
		if apperrors.IsRetryable(err) {
			log.Error("transient failure processing payment event",
				slog.String("event_id", event.ID),
				slog.Any("error", err),
			)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		log.Error("failed to process payment event",
			slog.String("event_id", event.ID),
			slog.Any("error", err),
		)
	}

	w.WriteHeader(http.StatusOK)
}
