package ledger

import (
	"context"
	"errors"
	"sync"
)

// MemoryStore is an in-memory Store used in tests and for local development
// without a database. A single mutex serializes all operations, which gives
// the same per-user ordering guarantees as the SQL implementation.
type MemoryStore struct {
	mu        sync.Mutex
	balances  map[int64]int64
	spent     map[int64]int64
	processed map[string]struct{}
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory ledger.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		balances:  make(map[int64]int64),
		spent:     make(map[int64]int64),
		processed: make(map[string]struct{}),
	}
}

// GetBalance returns the current balance, or zero for unknown users.
func (s *MemoryStore) GetBalance(_ context.Context, userID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.balances[userID], nil
}

// Credit applies a payment at most once per eventID.
func (s *MemoryStore) Credit(_ context.Context, userID, amount, amountMinor int64, eventID string) (bool, error) {
	if amount <= 0 || amountMinor < 0 {
		return false, ErrInvalidAmount
	}
	if eventID == "" {
		return false, errors.New("ledger: event id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, seen := s.processed[eventID]; seen {
		return false, nil
	}

	s.processed[eventID] = struct{}{}
	s.balances[userID] += amount
	s.spent[userID] += amountMinor

	return true, nil
}

// TotalSpent returns the money accumulated by applied credits for userID.
func (s *MemoryStore) TotalSpent(userID int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.spent[userID]
}

// Debit refuses amounts above the current balance.
func (s *MemoryStore) Debit(_ context.Context, userID, amount int64) (bool, error) {
	if amount <= 0 {
		return false, ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.balances[userID] < amount {
		return false, nil
	}

	s.balances[userID] -= amount

	return true, nil
}
