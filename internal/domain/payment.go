package domain

import (
	"encoding/json"
	"time"
)

// PaymentStatus mirrors the provider-side payment lifecycle.
type PaymentStatus string

const (
	PaymentPending           PaymentStatus = "pending"
	PaymentWaitingForCapture PaymentStatus = "waiting_for_capture"
	PaymentSucceeded         PaymentStatus = "succeeded"
	PaymentCanceled          PaymentStatus = "canceled"
)

// PaymentEvent is a normalized provider notification. It is immutable once
// created by the gateway adapter.
type PaymentEvent struct {
	// ID is the provider payment identifier, globally unique per provider.
	ID     string
	UserID int64
	// Tokens is the number of recipe tokens to credit.
	Tokens      int64
	AmountMinor int64
	Status      PaymentStatus
	// Actionable is true only for succeeded payments carrying valid
	// metadata. Non-actionable events are acknowledged but never credited.
	Actionable bool
	// Raw keeps the provider payload for audit.
	Raw json.RawMessage
}

// Payment is a payment link created for a user, tracked until the provider
// reports a terminal status.
type Payment struct {
	PaymentID   string
	UserID      int64
	PackageKey  string
	AmountMinor int64
	Tokens      int64
	Status      PaymentStatus
	CreatedAt   time.Time
}
