package completion

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ai-chef/recipe-bot/pkg/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(baseURL string) *YandexGPTClient {
	return NewYandexGPTClient(config.CompletionConfig{
		APIKey:   "test-key",
		FolderID: "b1g-folder",
		Model:    "yandexgpt-lite/latest",
		BaseURL:  baseURL,
		Timeout:  2 * time.Second,
	}, testLogger())
}

func completionBody(text string) string {
	return `{"result":{"alternatives":[{"message":{"role":"assistant","text":"` + text + `"}}]}}`
}

func TestGenerate_Success(t *testing.T) {
	var gotReq completionRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/foundationModels/v1/completion", r.URL.Path)
		assert.Equal(t, "Api-Key test-key", r.Header.Get("Authorization"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_, _ = w.Write([]byte(completionBody("Омлет с сыром")))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)

	text, err := client.Generate(context.Background(), "яйца, сыр")
	require.NoError(t, err)
	assert.Equal(t, "Омлет с сыром", text)

	assert.Equal(t, "gpt://b1g-folder/yandexgpt-lite/latest", gotReq.ModelURI)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Equal(t, "яйца, сыр", gotReq.Messages[1].Text)
}

func TestGenerate_ServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)

	_, err := client.Generate(context.Background(), "яйца")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable, "5xx means no work was performed")
}

func TestGenerate_ClientErrorIsNotUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"bad prompt"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)

	_, err := client.Generate(context.Background(), "яйца")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnavailable))
}

func TestGenerate_EmptyAlternativesIsBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"result":{"alternatives":[]}}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)

	_, err := client.Generate(context.Background(), "яйца")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnavailable))
}

func TestGenerate_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	ctx := context.Background()

	// Drive the breaker open, then the next call is shed without a request.
	for i := 0; i < 10; i++ {
		_, err := client.Generate(ctx, "яйца")
		require.Error(t, err)
	}

	srv.Close()
	_, err := client.Generate(ctx, "яйца")
	require.ErrorIs(t, err, ErrUnavailable)
}
