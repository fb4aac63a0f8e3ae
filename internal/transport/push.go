package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/ai-chef/recipe-bot/pkg/metrics"
)

const pushDispatchTimeout = 30 * time.Second

// WebhookHandler claims webhook mode and returns the HTTP handler for
// inbound updates. The request is acknowledged before the update is
// handled; Telegram retries only on non-2xx, so duplicates are filtered
// through the dedup window instead.
func (r *Router) WebhookHandler() (http.Handler, error) {
	if err := r.claim(ModeWebhook); err != nil {
		return nil, err
	}

	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		var u tele.Update
		if err := json.NewDecoder(req.Body).Decode(&u); err != nil {
			metrics.RecordUpdate(string(ModeWebhook), "rejected")
			r.log.Warn("malformed webhook update", slog.Any("error", err))
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		if u.ID != 0 && r.dedup != nil {
			seen, err := r.dedup.Seen(req.Context(), u.ID)
			if err != nil {
				// Losing the window is safer than dropping an
				// update: fall through and process.
				r.log.Warn("dedup check failed",
					slog.Int("update_id", u.ID),
					slog.Any("error", err),
				)
			}
			if seen {
				metrics.RecordUpdate(string(ModeWebhook), "duplicate")
				r.log.Info("duplicate update dropped",
					slog.Int("update_id", u.ID),
				)
				w.WriteHeader(http.StatusOK)
				return
			}
		}

		w.WriteHeader(http.StatusOK)

		go func() {
			ctx, cancel := context.WithTimeout(context.WithoutCancel(req.Context()), pushDispatchTimeout)
			defer cancel()

			if err := r.dispatch(ctx, u); err != nil {
				metrics.RecordUpdate(string(ModeWebhook), "failed")
				r.log.Error("webhook update handling failed",
					slog.Int("update_id", u.ID),
					slog.Any("error", err),
				)
				return
			}

			metrics.RecordUpdate(string(ModeWebhook), "ok")
		}()
	}), nil
}
