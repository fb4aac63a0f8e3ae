package payment

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ai-chef/recipe-bot/internal/domain"
	apperrors "github.com/ai-chef/recipe-bot/internal/errors"
)

// Repository tracks payment links from creation until the provider reports
// a terminal status. It is audit data next to the ledger, not part of the
// idempotency guard.
type Repository interface {
	SavePending(ctx context.Context, p *domain.Payment) error
	MarkStatus(ctx context.Context, paymentID string, status domain.PaymentStatus, raw json.RawMessage) error
	PendingOlderThan(ctx context.Context, age time.Duration, limit int) ([]domain.Payment, error)
}

type sqlRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewRepository creates a SQL-backed payment repository.
func NewRepository(db *sql.DB, log *slog.Logger) Repository {
	if log == nil {
		log = slog.Default()
	}

	return &sqlRepository{
		db:  db,
		log: log,
	}
}

// SavePending upserts the payment link so a retried /buy click stays one row.
func (r *sqlRepository) SavePending(ctx context.Context, p *domain.Payment) error {
	const query = `
		INSERT INTO payments (payment_id, user_id, package_key, amount_minor, tokens, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (payment_id) DO NOTHING
	`

	if _, err := r.db.ExecContext(
		ctx,
		query,
		p.PaymentID,
		p.UserID,
		p.PackageKey,
		p.AmountMinor,
		p.Tokens,
		domain.PaymentPending,
	); err != nil {
		return apperrors.NewStorageError(fmt.Errorf("insert payment: %w", err))
	}

	return nil
}

// MarkStatus records the provider-reported status and retains the last raw
// payload for audit.
func (r *sqlRepository) MarkStatus(ctx context.Context, paymentID string, status domain.PaymentStatus, raw json.RawMessage) error {
	const query = `
		UPDATE payments
		SET status = $2,
		    raw_payload = COALESCE($3, raw_payload)
		WHERE payment_id = $1
	`

	var payload interface{}
	if len(raw) > 0 {
		payload = []byte(raw)
	}

	if _, err := r.db.ExecContext(ctx, query, paymentID, status, payload); err != nil {
		return apperrors.NewStorageError(fmt.Errorf("update payment status: %w", err))
	}

	return nil
}

// PendingOlderThan lists payments still pending after age, oldest first.
func (r *sqlRepository) PendingOlderThan(ctx context.Context, age time.Duration, limit int) ([]domain.Payment, error) {
	const query = `
		SELECT payment_id, user_id, package_key, amount_minor, tokens, status, created_at
		FROM payments
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, domain.PaymentPending, time.Now().Add(-age), limit)
	if err != nil {
		return nil, apperrors.NewStorageError(fmt.Errorf("select pending payments: %w", err))
	}
	defer func() {
		_ = rows.Close()
	}()

	var payments []domain.Payment
	for rows.Next() {
		var p domain.Payment
		if err := rows.Scan(
			&p.PaymentID,
			&p.UserID,
			&p.PackageKey,
			&p.AmountMinor,
			&p.Tokens,
			&p.Status,
			&p.CreatedAt,
		); err != nil {
			return nil, apperrors.NewStorageError(fmt.Errorf("scan pending payment: %w", err))
		}
		payments = append(payments, p)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError(fmt.Errorf("iterate pending payments: %w", err))
	}

	return payments, nil
}
