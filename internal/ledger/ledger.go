// Package ledger holds the single source of truth for user token balances.
//
// All components treat the ledger as authoritative and never cache balances
// beyond the scope of one request. Per-user operations are serialized by the
// backing store, so concurrent credits and debits always resolve to a balance
// consistent with some serial order.
package ledger

import (
	"context"
	"errors"
)

// ErrInvalidAmount rejects non-positive credit and debit amounts.
var ErrInvalidAmount = errors.New("ledger: amount must be positive")

// Store is the balance ledger contract.
//
// Credit is idempotent per eventID: the processed-payment record is written
// with an atomic insert-if-absent in the same transaction as the balance
// increment, so a given event credits the ledger at most once no matter how
// many times it is delivered, sequentially or concurrently. A duplicate
// returns applied=false with a nil error. amountMinor is the money paid for
// the credit and accumulates into the user's purchase total in the same
// transaction; free and refund credits pass zero.
//
// Debit is conditional: it returns applied=false without touching the
// balance when amount exceeds the current balance. The balance never goes
// negative.
type Store interface {
	GetBalance(ctx context.Context, userID int64) (int64, error)
	Credit(ctx context.Context, userID, amount, amountMinor int64, eventID string) (applied bool, err error)
	Debit(ctx context.Context, userID, amount int64) (applied bool, err error)
}
