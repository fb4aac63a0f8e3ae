package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ai-chef/recipe-bot/internal/domain"
	apperrors "github.com/ai-chef/recipe-bot/internal/errors"
)

// CreatedPayment is the result of creating a payment link.
type CreatedPayment struct {
	ID              string
	ConfirmationURL string
	AmountMinor     int64
	Tokens          int64
}

// ProviderClient talks to the YooKassa payments API.
type ProviderClient struct {
	httpClient *http.Client
	baseURL    string
	shopID     string
	secretKey  string
	returnURL  string
	log        *slog.Logger
}

// NewProviderClient builds a payments API client with a bounded timeout.
func NewProviderClient(baseURL, shopID, secretKey, returnURL string, timeout time.Duration, log *slog.Logger) *ProviderClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}

	return &ProviderClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		shopID:     shopID,
		secretKey:  secretKey,
		returnURL:  returnURL,
		log:        log,
	}
}

// CreatePayment creates a redirect payment for pkg. The application user id
// and token count are embedded in the payment metadata, which is the only
// link the webhook has back to the user.
func (c *ProviderClient) CreatePayment(ctx context.Context, userID int64, pkg Package) (*CreatedPayment, error) {
	body := map[string]interface{}{
		"amount": map[string]string{
			"value":    formatAmount(pkg.PriceMinor),
			"currency": "RUB",
		},
		"confirmation": map[string]string{
			"type":       "redirect",
			"return_url": c.returnURL,
		},
		"capture":     true,
		"description": fmt.Sprintf("AI-Шеф: %s (%d рецептов)", pkg.Name, pkg.Tokens),
		"metadata": map[string]string{
			"user_id":     strconv.FormatInt(userID, 10),
			"package_key": pkg.Key,
			"tokens":      strconv.FormatInt(pkg.Tokens, 10),
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode payment request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payments", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build payment request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotence-Key", uuid.NewString())
	req.SetBasicAuth(c.shopID, c.secretKey)

	obj, err := c.do(req)
	if err != nil {
		return nil, err
	}

	c.log.Info("payment created",
		slog.String("payment_id", obj.ID),
		slog.Int64("user_id", userID),
		slog.String("package", pkg.Key),
	)

	return &CreatedPayment{
		ID:              obj.ID,
		ConfirmationURL: obj.Confirmation.ConfirmationURL,
		AmountMinor:     pkg.PriceMinor,
		Tokens:          pkg.Tokens,
	}, nil
}

// PaymentByID fetches the current payment state and normalizes it into the
// same event shape the webhook produces, so duplicate-safe crediting goes
// through one path.
func (c *ProviderClient) PaymentByID(ctx context.Context, paymentID string) (*domain.PaymentEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/payments/"+paymentID, nil)
	if err != nil {
		return nil, fmt.Errorf("build payment status request: %w", err)
	}
	req.SetBasicAuth(c.shopID, c.secretKey)

	obj, err := c.do(req)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("encode payment object: %w", err)
	}

	return eventFromObject(*obj, raw), nil
}

func (c *ProviderClient) do(req *http.Request) (*paymentObject, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewBackendError("payment provider", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apperrors.NewBackendError("payment provider", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.NewBackendError(
			"payment provider",
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(data, 200)),
		)
	}

	var obj paymentObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, apperrors.NewBackendError("payment provider", fmt.Errorf("decode response: %w", err))
	}

	return &obj, nil
}

func formatAmount(minor int64) string {
	return fmt.Sprintf("%d.%02d", minor/100, minor%100)
}

func truncate(data []byte, n int) string {
	if len(data) <= n {
		return string(data)
	}
	return string(data[:n]) + "..."
}
