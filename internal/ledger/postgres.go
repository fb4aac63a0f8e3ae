package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	apperrors "github.com/ai-chef/recipe-bot/internal/errors"
)

// PostgresStore implements Store on top of a users table and a
// processed_payments table. Atomicity comes from single-statement
// conditional writes and row-level locking, not application locks.
type PostgresStore struct {
	db  *sql.DB
	log *slog.Logger
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a SQL-backed ledger.
func NewPostgresStore(db *sql.DB, log *slog.Logger) *PostgresStore {
	if log == nil {
		log = slog.Default()
	}

	return &PostgresStore{
		db:  db,
		log: log,
	}
}

// GetBalance returns the current balance, or zero for unknown users.
func (s *PostgresStore) GetBalance(ctx context.Context, userID int64) (int64, error) {
	const query = `SELECT balance FROM users WHERE id = $1`

	var balance int64
	if err := s.db.QueryRowContext(ctx, query, userID).Scan(&balance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}

		return 0, apperrors.NewStorageError(fmt.Errorf("select balance: %w", err))
	}

	return balance, nil
}

// Credit applies a payment exactly once. The processed_payments insert,
// the balance increment and the purchase total commit in one transaction;
// a conflicting event_id makes the insert a no-op and the whole credit is
// skipped.
func (s *PostgresStore) Credit(ctx context.Context, userID, amount, amountMinor int64, eventID string) (bool, error) {
	if amount <= 0 || amountMinor < 0 {
		return false, ErrInvalidAmount
	}
	if eventID == "" {
		return false, errors.New("ledger: event id is required")
	}

	const insertRecord = `
		INSERT INTO processed_payments (event_id, user_id, amount)
		VALUES ($1, $2, $3)
		ON CONFLICT (event_id) DO NOTHING
	`
	const upsertBalance = `
		INSERT INTO users (id, balance, total_spent_minor, created_at, last_seen_at)
		VALUES ($1, $2, $3, now(), now())
		ON CONFLICT (id) DO UPDATE SET
			balance = users.balance + EXCLUDED.balance,
			total_spent_minor = users.total_spent_minor + EXCLUDED.total_spent_minor
	`

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, apperrors.NewStorageError(fmt.Errorf("begin credit tx: %w", err))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx, insertRecord, eventID, userID, amount)
	if err != nil {
		return false, apperrors.NewStorageError(fmt.Errorf("insert processed payment: %w", err))
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return false, apperrors.NewStorageError(fmt.Errorf("credit rows affected: %w", err))
	}

	if inserted == 0 {
		// Already credited by an earlier delivery.
		s.log.Info("duplicate payment event skipped",
			slog.String("event_id", eventID),
			slog.Int64("user_id", userID),
		)
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, upsertBalance, userID, amount, amountMinor); err != nil {
		return false, apperrors.NewStorageError(fmt.Errorf("apply credit: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return false, apperrors.NewStorageError(fmt.Errorf("commit credit: %w", err))
	}

	return true, nil
}

// Debit decrements the balance with a single conditional UPDATE. Zero rows
// affected means insufficient balance.
func (s *PostgresStore) Debit(ctx context.Context, userID, amount int64) (bool, error) {
	if amount <= 0 {
		return false, ErrInvalidAmount
	}

	const query = `
		UPDATE users
		SET balance = balance - $2,
		    total_requests = total_requests + 1
		WHERE id = $1 AND balance >= $2
	`

	res, err := s.db.ExecContext(ctx, query, userID, amount)
	if err != nil {
		return false, apperrors.NewStorageError(fmt.Errorf("apply debit: %w", err))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, apperrors.NewStorageError(fmt.Errorf("debit rows affected: %w", err))
	}

	return affected > 0, nil
}
