// Package graceful runs the bot's HTTP front end (payment webhook, health,
// metrics) and drains in-flight requests on shutdown.
package graceful

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Server drives an http.Server from a context: serving starts immediately
// and a canceled context triggers a bounded drain.
type Server struct {
	name    string
	srv     *http.Server
	timeout time.Duration
	log     *slog.Logger
}

// NewServer wraps srv. name tags the log lines so multiple listeners stay
// distinguishable.
func NewServer(name string, srv *http.Server, timeout time.Duration, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}

	return &Server{
		name:    name,
		srv:     srv,
		timeout: timeout,
		log:     log,
	}
}

// ListenAndServe serves until ctx is canceled, then shuts down with the
// configured drain timeout. A listener failure before cancellation is
// returned immediately.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}

	serveErr := make(chan error, 1)

	go func() {
		s.log.Info("http server listening",
			slog.String("server", s.name),
			slog.String("addr", s.srv.Addr),
		)

		err := s.srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		serveErr <- err
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("%s server: %w", s.name, err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("draining http server",
		slog.String("server", s.name),
		slog.Duration("timeout", s.timeout),
	)

	drainCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.srv.Shutdown(drainCtx); err != nil {
		return fmt.Errorf("shut down %s server: %w", s.name, err)
	}

	// ListenAndServe has returned by the time Shutdown does.
	if err := <-serveErr; err != nil {
		return fmt.Errorf("%s server: %w", s.name, err)
	}

	return nil
}
