package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ai-chef/recipe-bot/internal/domain"
	apperrors "github.com/ai-chef/recipe-bot/internal/errors"
)

const testWebhookSecret = "test-webhook-secret"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sign(t *testing.T, body []byte) string {
	t.Helper()

	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func succeededBody(paymentID string, userID int64, tokens int64) []byte {
	return []byte(fmt.Sprintf(`{
		"type": "notification",
		"event": "payment.succeeded",
		"object": {
			"id": %q,
			"status": "succeeded",
			"amount": {"value": "290.00", "currency": "RUB"},
			"metadata": {"user_id": "%d", "package_key": "medium", "tokens": "%d"}
		}
	}`, paymentID, userID, tokens))
}

func TestGateway_ParseNotification(t *testing.T) {
	gw := NewGateway(testWebhookSecret, testLogger())

	t.Run("valid succeeded payment", func(t *testing.T) {
		body := succeededBody("pay_123", 42, 25)

		event, err := gw.ParseNotification(body, sign(t, body))
		require.NoError(t, err)

		assert.Equal(t, "pay_123", event.ID)
		assert.Equal(t, int64(42), event.UserID)
		assert.Equal(t, int64(25), event.Tokens)
		assert.Equal(t, int64(29000), event.AmountMinor)
		assert.Equal(t, domain.PaymentSucceeded, event.Status)
		assert.True(t, event.Actionable)
		assert.JSONEq(t, string(body), string(event.Raw))
	})

	t.Run("missing signature", func(t *testing.T) {
		body := succeededBody("pay_123", 42, 25)

		_, err := gw.ParseNotification(body, "")
		require.Error(t, err)

		var appErr *apperrors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "E110", appErr.Code)
	})

	t.Run("tampered body", func(t *testing.T) {
		body := succeededBody("pay_123", 42, 25)
		signature := sign(t, body)

		tampered := succeededBody("pay_123", 42, 9999)
		_, err := gw.ParseNotification(tampered, signature)
		require.Error(t, err)

		var appErr *apperrors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "E110", appErr.Code)
		assert.False(t, appErr.Retryable)
	})

	t.Run("non-succeeded event is parsed but not actionable", func(t *testing.T) {
		body := []byte(`{
			"type": "notification",
			"event": "payment.canceled",
			"object": {
				"id": "pay_456",
				"status": "canceled",
				"amount": {"value": "150.00", "currency": "RUB"},
				"metadata": {"user_id": "42", "tokens": "10"}
			}
		}`)

		event, err := gw.ParseNotification(body, sign(t, body))
		require.NoError(t, err)
		assert.False(t, event.Actionable)
		assert.Equal(t, domain.PaymentCanceled, event.Status)
	})

	t.Run("succeeded without metadata is not actionable", func(t *testing.T) {
		body := []byte(`{
			"type": "notification",
			"event": "payment.succeeded",
			"object": {
				"id": "pay_789",
				"status": "succeeded",
				"amount": {"value": "150.00", "currency": "RUB"}
			}
		}`)

		event, err := gw.ParseNotification(body, sign(t, body))
		require.NoError(t, err)
		assert.False(t, event.Actionable)
	})

	t.Run("malformed json with valid signature", func(t *testing.T) {
		body := []byte(`{"event": "payment.succeeded", "object":`)

		_, err := gw.ParseNotification(body, sign(t, body))
		require.Error(t, err)

		var appErr *apperrors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "E100", appErr.Code)
	})
}

func TestParseAmountMinor(t *testing.T) {
	testCases := []struct {
		value    string
		expected int64
	}{
		{"290.00", 29000},
		{"99.90", 9990},
		{"1.05", 105},
		{"100", 10000},
		{"0.5", 50},
		{"", 0},
		{"abc", 0},
	}

	for _, tc := range testCases {
		t.Run(tc.value, func(t *testing.T) {
			assert.Equal(t, tc.expected, parseAmountMinor(tc.value))
		})
	}
}
