// Package completion generates recipe texts through the YandexGPT
// completion API.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/ai-chef/recipe-bot/internal/errors"
	"github.com/ai-chef/recipe-bot/pkg/config"
	"github.com/ai-chef/recipe-bot/pkg/metrics"
)

// ErrUnavailable means the backend refused or never received the
// request, so no completion work was performed.
var ErrUnavailable = errors.New("completion backend unavailable")

// Client produces a completion for a user prompt.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

const systemPrompt = "Ты — опытный шеф-повар. Пользователь присылает список продуктов, " +
	"а ты отвечаешь рецептом блюда из этих продуктов: название, ингредиенты, " +
	"пошаговое приготовление. Отвечай только по теме кулинарии."

type completionRequest struct {
	ModelURI          string            `json:"modelUri"`
	CompletionOptions completionOptions `json:"completionOptions"`
	Messages          []message         `json:"messages"`
}

type completionOptions struct {
	Stream      bool    `json:"stream"`
	Temperature float64 `json:"temperature"`
	MaxTokens   string  `json:"maxTokens"`
}

type message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type completionResponse struct {
	Result struct {
		Alternatives []struct {
			Message message `json:"message"`
		} `json:"alternatives"`
	} `json:"result"`
}

// YandexGPTClient calls the foundation-models completion endpoint with
// Api-Key auth. A circuit breaker sheds load while the backend is down.
type YandexGPTClient struct {
	httpClient *http.Client
	breaker    *apperrors.CircuitBreaker
	log        *slog.Logger

	apiKey   string
	modelURI string
	baseURL  string
}

func NewYandexGPTClient(cfg config.CompletionConfig, log *slog.Logger) *YandexGPTClient {
	if log == nil {
		log = slog.Default()
	}

	return &YandexGPTClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    apperrors.NewCircuitBreaker(),
		log:        log,
		apiKey:     cfg.APIKey,
		modelURI:   fmt.Sprintf("gpt://%s/%s", cfg.FolderID, cfg.Model),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
	}
}

// Generate returns the recipe text for prompt. ErrUnavailable is
// returned when the breaker is open or the request never reached the
// backend; in both cases no work was billed upstream.
func (c *YandexGPTClient) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()

	var text string
	err := c.breaker.Call(func() error {
		var callErr error
		text, callErr = c.complete(ctx, prompt)
		return callErr
	})
	if err != nil {
		metrics.RecordCompletion("error", time.Since(start))

		if errors.Is(err, apperrors.ErrCircuitOpen) {
			c.log.Warn("completion request shed by open circuit")
			return "", fmt.Errorf("%w: circuit open", ErrUnavailable)
		}

		return "", err
	}

	metrics.RecordCompletion("ok", time.Since(start))
	return text, nil
}

func (c *YandexGPTClient) complete(ctx context.Context, prompt string) (string, error) {
	reqBody := completionRequest{
		ModelURI: c.modelURI,
		CompletionOptions: completionOptions{
			Temperature: 0.6,
			MaxTokens:   "2000",
		},
		Messages: []message{
			{Role: "system", Text: systemPrompt},
			{Role: "user", Text: prompt},
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	url := c.baseURL + "/foundationModels/v1/completion"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build completion request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Api-Key "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", apperrors.NewBackendError("yandexgpt", fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return "", fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		return "", apperrors.NewBackendError("yandexgpt",
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var parsed completionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", apperrors.NewBackendError("yandexgpt", fmt.Errorf("decode response: %w", err))
	}

	if len(parsed.Result.Alternatives) == 0 {
		return "", apperrors.NewBackendError("yandexgpt", errors.New("empty alternatives"))
	}

	answer := strings.TrimSpace(parsed.Result.Alternatives[0].Message.Text)
	if answer == "" {
		return "", apperrors.NewBackendError("yandexgpt", errors.New("empty completion text"))
	}

	return answer, nil
}
