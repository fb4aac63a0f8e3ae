package server

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ai-chef/recipe-bot/internal/health"
	"github.com/ai-chef/recipe-bot/internal/ledger"
	"github.com/ai-chef/recipe-bot/internal/payment"
)

const testSecret = "wh-secret"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sign(t *testing.T, body []byte) string {
	t.Helper()

	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func succeededBody(paymentID string, userID, tokens int64) []byte {
	return []byte(fmt.Sprintf(`{
		"type": "notification",
		"event": "payment.succeeded",
		"object": {
			"id": %q,
			"status": "succeeded",
			"amount": {"value": "290.00", "currency": "RUB"},
			"metadata": {"user_id": "%d", "tokens": "%d"}
		}
	}`, paymentID, userID, tokens))
}

func newWebhookHandler(store ledger.Store) *PaymentWebhookHandler {
	gateway := payment.NewGateway(testSecret, testLogger())
	processor := payment.NewProcessor(store, nil, nil, testLogger())
	return NewPaymentWebhookHandler(gateway, processor, testLogger())
}

func post(h http.Handler, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook/payment", strings.NewReader(string(body)))
	if signature != "" {
		req.Header.Set(payment.SignatureHeader, signature)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPaymentWebhook_CreditsOnce(t *testing.T) {
	store := ledger.NewMemoryStore()
	h := newWebhookHandler(store)

	body := succeededBody("pay_777", 42, 100)

	rec := post(h, body, sign(t, body))
	assert.Equal(t, http.StatusOK, rec.Code)

	balance, err := store.GetBalance(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)
}

func TestPaymentWebhook_ReplayIsAcknowledgedWithoutRecredit(t *testing.T) {
	store := ledger.NewMemoryStore()
	h := newWebhookHandler(store)

	body := succeededBody("pay_777", 42, 100)
	signature := sign(t, body)

	rec := post(h, body, signature)
	require.Equal(t, http.StatusOK, rec.Code)

	// Spend part of the credit, then replay the same notification.
	applied, err := store.Debit(context.Background(), 42, 10)
	require.NoError(t, err)
	require.True(t, applied)

	rec = post(h, body, signature)
	assert.Equal(t, http.StatusOK, rec.Code, "replay must still be acknowledged")

	balance, err := store.GetBalance(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(90), balance, "replay must not change the balance")
}

func TestPaymentWebhook_BadSignatureRejected(t *testing.T) {
	store := ledger.NewMemoryStore()
	h := newWebhookHandler(store)

	body := succeededBody("pay_777", 42, 100)

	rec := post(h, body, "deadbeef")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = post(h, body, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	balance, err := store.GetBalance(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance, "rejected notifications never credit")
}

func TestPaymentWebhook_MalformedBodyRejected(t *testing.T) {
	h := newWebhookHandler(ledger.NewMemoryStore())

	body := []byte(`{"event": "payment.succeeded", "object": `)
	rec := post(h, body, sign(t, body))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPaymentWebhook_NonSucceededIsAcknowledged(t *testing.T) {
	store := ledger.NewMemoryStore()
	h := newWebhookHandler(store)

	body := []byte(`{
		"event": "payment.canceled",
		"object": {"id": "pay_8", "status": "canceled", "metadata": {"user_id": "42", "tokens": "10"}}
	}`)

	rec := post(h, body, sign(t, body))
	assert.Equal(t, http.StatusOK, rec.Code)

	balance, err := store.GetBalance(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestHealthzHandler(t *testing.T) {
	checker := health.NewChecker(testLogger())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	healthzHandler(checker)(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var report health.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.True(t, report.Healthy)
}
