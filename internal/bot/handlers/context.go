package handlers

import (
	"context"

	telebot "gopkg.in/telebot.v3"
)

// contextKey is the telebot per-update store slot holding the ingestion
// context (webhook dispatch timeout or the polling loop's lifetime).
const contextKey = "ingest_ctx"

// BindContext attaches ctx to a telebot context so handlers inherit the
// ingestion deadline and shutdown cancellation.
func BindContext(c telebot.Context, ctx context.Context) {
	c.Set(contextKey, ctx)
}

// RequestContext returns the bound ingestion context, falling back to
// context.Background() for updates created outside the transport layer.
func RequestContext(c telebot.Context) context.Context {
	if c == nil {
		return context.Background()
	}

	if ctx, ok := c.Get(contextKey).(context.Context); ok && ctx != nil {
		return ctx
	}

	return context.Background()
}
