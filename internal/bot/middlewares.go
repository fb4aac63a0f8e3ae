package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/ai-chef/recipe-bot/internal/bot/handlers"
	apperrors "github.com/ai-chef/recipe-bot/internal/errors"
	"github.com/ai-chef/recipe-bot/internal/user"
	"github.com/ai-chef/recipe-bot/pkg/metrics"
)

// RecoveryMiddleware catches panics, reports them via the centralized
// handler, and notifies the user.
func RecoveryMiddleware(log *slog.Logger, errHandler *apperrors.Handler) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("panic recovered in handler",
						slog.Any("panic", r),
						slog.String("stack", string(debug.Stack())),
					)

					userMsg := "⚠️ Что-то пошло не так. Попробуйте позже."
					if errHandler != nil {
						panicErr := apperrors.NewStorageError(fmt.Errorf("panic recovered: %v", r))
						if msg, _ := errHandler.Handle(handlers.RequestContext(c), panicErr); msg != "" {
							userMsg = msg
						}
					}

					if c != nil {
						if sendErr := c.Send(userMsg); sendErr != nil {
							log.Error("failed to notify user about panic", slog.Any("error", sendErr))
						}
					}

					err = nil
				}
			}()

			return next(c)
		}
	}
}

// ErrorHandlingMiddleware centralizes error reporting and guarantees the
// user gets exactly one message when a handler fails: the error is
// swallowed here after the notice is sent.
func ErrorHandlingMiddleware(errHandler *apperrors.Handler) handlers.Middleware {
	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			userMsg := "Произошла ошибка. Попробуйте позже"
			if errHandler != nil {
				if msg, _ := errHandler.Handle(handlers.RequestContext(c), err); msg != "" {
					userMsg = msg
				}
			}

			if c != nil {
				_ = c.Send(userMsg)
			}

			return nil
		}
	}
}

// LoggingMiddleware logs basic telemetry about incoming updates.
func LoggingMiddleware(log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			start := time.Now()
			userID := int64(0)
			if c != nil && c.Sender() != nil {
				userID = c.Sender().ID
			}

			log.Info("handling update",
				slog.Int64("user_id", userID),
				slog.String("action", updateAction(c)),
			)

			err := next(c)

			log.Info("handled update",
				slog.Int64("user_id", userID),
				slog.String("action", updateAction(c)),
				slog.Duration("duration", time.Since(start)),
				slog.Any("error", err),
			)

			return err
		}
	}
}

// AuthMiddleware lazily creates the user record (with the free starting
// balance) before any handler runs.
func AuthMiddleware(users *user.Service, log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			if users == nil || c == nil || c.Sender() == nil {
				return next(c)
			}

			if _, err := users.GetOrCreate(handlers.RequestContext(c), c.Sender()); err != nil {
				log.Error("failed to ensure user record",
					slog.Int64("user_id", c.Sender().ID),
					slog.Any("error", err),
				)
				return err
			}

			return next(c)
		}
	}
}

// LastSeenMiddleware records user activity without blocking the flow.
func LastSeenMiddleware(users *user.Service) handlers.Middleware {
	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			if users != nil && c != nil && c.Sender() != nil {
				go users.UpdateLastSeen(context.Background(), c.Sender().ID)
			}

			return next(c)
		}
	}
}

// MetricsMiddleware records per-command counters and latency.
func MetricsMiddleware() handlers.Middleware {
	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			start := time.Now()
			err := next(c)

			status := "ok"
			if err != nil {
				status = "error"
			}
			metrics.RecordCommand(commandLabel(c), status, time.Since(start))

			return err
		}
	}
}

func updateAction(c telebot.Context) string {
	if c == nil {
		return ""
	}

	if cb := c.Callback(); cb != nil {
		return cb.Data
	}

	return c.Text()
}

// commandLabel keeps metric cardinality bounded: commands and callback
// prefixes only, free text collapses to one label.
func commandLabel(c telebot.Context) string {
	action := updateAction(c)

	if cb := c.Callback(); cb != nil {
		if idx := strings.IndexAny(action, "_"); idx > 0 {
			return "cb:" + action[:idx]
		}
		return "cb:" + action
	}

	if strings.HasPrefix(action, "/") {
		return commandName(action)
	}

	return "text"
}
