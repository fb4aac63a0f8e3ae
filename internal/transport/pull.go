package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	tele "gopkg.in/telebot.v3"

	apperrors "github.com/ai-chef/recipe-bot/internal/errors"
	"github.com/ai-chef/recipe-bot/pkg/metrics"
)

// UpdateFetcher pulls a batch of updates starting at offset. timeout is
// the long-poll duration in seconds.
type UpdateFetcher func(ctx context.Context, offset, timeout int) ([]tele.Update, error)

// PollConfig tunes the pull loop. Zero values fall back to defaults.
type PollConfig struct {
	Timeout    time.Duration
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

func (c *PollConfig) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MinBackoff <= 0 {
		c.MinBackoff = time.Second
	}
	if c.MaxBackoff < c.MinBackoff {
		c.MaxBackoff = 30 * time.Second
	}
}

// BotFetcher adapts a telebot instance to UpdateFetcher via the raw
// getUpdates call.
func BotFetcher(b *tele.Bot) UpdateFetcher {
	return func(_ context.Context, offset, timeout int) ([]tele.Update, error) {
		params := map[string]string{
			"offset":  strconv.Itoa(offset),
			"timeout": strconv.Itoa(timeout),
		}

		data, err := b.Raw("getUpdates", params)
		if err != nil {
			return nil, apperrors.NewBackendError("telegram", err)
		}

		var resp struct {
			Result []tele.Update `json:"result"`
		}
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, apperrors.NewBackendError("telegram", err)
		}

		return resp.Result, nil
	}
}

// Poll runs the pull loop until ctx is cancelled. The offset advances
// past an update only after its handler returns nil, so a failed update
// is fetched again on the next round. Fetch and handler failures share a
// capped exponential backoff that resets after a clean round.
func (r *Router) Poll(ctx context.Context, fetch UpdateFetcher, cfg PollConfig) error {
	if err := r.claim(ModePolling); err != nil {
		return err
	}

	cfg.applyDefaults()

	offset := 0
	backoff := cfg.MinBackoff
	timeoutSec := int(cfg.Timeout / time.Second)

	r.log.Info("starting update polling",
		slog.Duration("timeout", cfg.Timeout),
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		updates, err := fetch(ctx, offset, timeoutSec)
		if err != nil {
			metrics.RecordFetchFailure()
			r.log.Warn("update fetch failed",
				slog.Int("offset", offset),
				slog.Duration("backoff", backoff),
				slog.Any("error", err),
			)

			backoff = r.sleep(ctx, backoff, cfg.MaxBackoff)
			continue
		}

		clean := true
		for _, u := range updates {
			if err := r.dispatch(ctx, u); err != nil {
				metrics.RecordUpdate(string(ModePolling), "failed")
				r.log.Error("update handling failed, will refetch",
					slog.Int("update_id", u.ID),
					slog.Any("error", err),
				)

				clean = false
				break
			}

			offset = u.ID + 1
			metrics.RecordUpdate(string(ModePolling), "ok")
		}

		if !clean {
			backoff = r.sleep(ctx, backoff, cfg.MaxBackoff)
			continue
		}

		backoff = cfg.MinBackoff
	}
}

// sleep waits for the current backoff (or ctx cancel) and returns the
// next, capped backoff value.
func (r *Router) sleep(ctx context.Context, backoff, max time.Duration) time.Duration {
	select {
	case <-ctx.Done():
	case <-time.After(backoff):
	}

	next := backoff * 2
	if next > max {
		next = max
	}

	return next
}
