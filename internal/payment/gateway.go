// Package payment turns provider notifications into exactly-once balance
// credits.
package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ai-chef/recipe-bot/internal/domain"
	apperrors "github.com/ai-chef/recipe-bot/internal/errors"
)

// SignatureHeader carries the hex-encoded HMAC-SHA256 of the request body.
const SignatureHeader = "X-Webhook-Signature"

const succeededEvent = "payment.succeeded"

// notification is the provider webhook envelope.
type notification struct {
	Type   string        `json:"type"`
	Event  string        `json:"event"`
	Object paymentObject `json:"object"`
}

// paymentObject is the provider payment resource, shared by the webhook
// payload and the payments API.
type paymentObject struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount struct {
		Value    string `json:"value"`
		Currency string `json:"currency"`
	} `json:"amount"`
	Confirmation struct {
		ConfirmationURL string `json:"confirmation_url"`
	} `json:"confirmation"`
	Metadata map[string]string `json:"metadata"`
}

// Gateway verifies and normalizes provider webhook payloads.
type Gateway struct {
	secret []byte
	log    *slog.Logger
}

// NewGateway creates an adapter bound to the configured webhook secret.
func NewGateway(secret string, log *slog.Logger) *Gateway {
	if log == nil {
		log = slog.Default()
	}

	return &Gateway{
		secret: []byte(secret),
		log:    log,
	}
}

// ParseNotification authenticates the raw webhook body and maps it to a
// PaymentEvent. A bad signature fails with a verification error and no side
// effects. A well-signed body that cannot be credited (unknown status,
// missing metadata) yields a non-actionable event so the caller still
// acknowledges the delivery.
func (g *Gateway) ParseNotification(body []byte, signature string) (*domain.PaymentEvent, error) {
	if err := g.verifySignature(body, signature); err != nil {
		return nil, err
	}

	var n notification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, apperrors.NewValidationError(fmt.Sprintf("malformed notification body: %v", err))
	}

	if n.Object.ID == "" {
		return nil, apperrors.NewValidationError("notification is missing payment id")
	}

	event := eventFromObject(n.Object, body)

	if n.Event != succeededEvent {
		event.Actionable = false
	}

	if event.Status == domain.PaymentSucceeded && !event.Actionable {
		g.log.Warn("succeeded payment with unusable metadata, will never credit",
			slog.String("event_id", event.ID),
		)
	}

	return event, nil
}

func (g *Gateway) verifySignature(body []byte, signature string) error {
	if signature == "" {
		return apperrors.NewVerificationError("missing signature")
	}

	provided, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return apperrors.NewVerificationError("signature is not valid hex")
	}

	mac := hmac.New(sha256.New, g.secret)
	mac.Write(body)

	if !hmac.Equal(provided, mac.Sum(nil)) {
		return apperrors.NewVerificationError("signature mismatch")
	}

	return nil
}

// eventFromObject maps a provider payment resource to the normalized event.
// The user id and token count come from metadata written when the payment
// link was created; the adapter never invents this mapping.
func eventFromObject(obj paymentObject, raw []byte) *domain.PaymentEvent {
	event := &domain.PaymentEvent{
		ID:          obj.ID,
		Status:      domain.PaymentStatus(obj.Status),
		AmountMinor: parseAmountMinor(obj.Amount.Value),
		Raw:         json.RawMessage(raw),
	}

	userID, _ := strconv.ParseInt(obj.Metadata["user_id"], 10, 64)
	tokens, _ := strconv.ParseInt(obj.Metadata["tokens"], 10, 64)
	event.UserID = userID
	event.Tokens = tokens

	event.Actionable = event.Status == domain.PaymentSucceeded && userID > 0 && tokens > 0

	return event
}

// parseAmountMinor converts a decimal money string such as "290.00" into
// minor units. Unparseable values become zero; the token count in metadata
// is what gets credited, the money amount is audit data.
func parseAmountMinor(value string) int64 {
	if value == "" {
		return 0
	}

	whole, frac, _ := strings.Cut(value, ".")

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0
	}

	var cents int64
	if frac != "" {
		if len(frac) > 2 {
			frac = frac[:2]
		}
		for len(frac) < 2 {
			frac += "0"
		}
		cents, _ = strconv.ParseInt(frac, 10, 64)
	}

	return units*100 + cents
}
