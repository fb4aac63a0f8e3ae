// Package transport ingests Telegram updates over exactly one of two
// modes: a push webhook or long polling. A Router instance is bound to a
// single mode for its lifetime; claiming the second mode fails.
package transport

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	tele "gopkg.in/telebot.v3"
)

type Mode string

const (
	ModePolling Mode = "polling"
	ModeWebhook Mode = "webhook"
)

// ErrModeConflict is returned when both ingestion modes are requested on
// the same Router.
var ErrModeConflict = errors.New("transport: ingestion mode already claimed")

// Handler processes a single inbound update. A non-nil error means the
// update was not processed and must not be considered delivered.
type Handler func(ctx context.Context, u tele.Update) error

// Router owns the single active ingestion mode and hands every accepted
// update to the configured Handler.
type Router struct {
	handler Handler
	dedup   Deduper
	log     *slog.Logger

	mu   sync.Mutex
	mode Mode
}

func NewRouter(handler Handler, dedup Deduper, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}

	return &Router{
		handler: handler,
		dedup:   dedup,
		log:     log,
	}
}

func (r *Router) claim(mode Mode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.mode != "" && r.mode != mode {
		return ErrModeConflict
	}

	r.mode = mode
	return nil
}

func (r *Router) dispatch(ctx context.Context, u tele.Update) error {
	if r.handler == nil {
		return nil
	}

	return r.handler(ctx, u)
}
