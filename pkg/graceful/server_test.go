package graceful

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestServer_DrainsOnContextCancel(t *testing.T) {
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NewServeMux()}
	s := NewServer("api", srv, time.Second, testLogger())

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- s.ListenAndServe(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err, "a clean drain is not an error")
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down after cancellation")
	}
}

func TestServer_ListenerFailureIsReturned(t *testing.T) {
	srv := &http.Server{Addr: "256.0.0.1:bad", Handler: http.NewServeMux()}
	s := NewServer("api", srv, time.Second, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.ListenAndServe(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api server")
}

func TestServer_NilHTTPServerIsNoOp(t *testing.T) {
	s := NewServer("api", nil, time.Second, testLogger())
	assert.NoError(t, s.ListenAndServe(context.Background()))
}
