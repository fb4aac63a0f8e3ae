package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ai-chef/recipe-bot/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// UserRepository defines persistence operations for users. Balance
// changes do not go through here; they belong to the ledger.
type UserRepository interface {
	FindByID(ctx context.Context, id int64) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) error
	TouchLastSeen(ctx context.Context, id int64) error
	Stats(ctx context.Context) (*Stats, error)
}

// Stats is the aggregate snapshot shown to administrators.
type Stats struct {
	TotalUsers      int64
	ActiveToday     int64
	TotalRequests   int64
	TotalSpentMinor int64
}

type userRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewUserRepository creates a SQL-backed user repository.
func NewUserRepository(db *sql.DB, log *slog.Logger) UserRepository {
	return &userRepository{
		db:  db,
		log: log,
	}
}

// FindByID retrieves a user by Telegram identifier.
func (r *userRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	const query = `
		SELECT id, username, first_name, balance, total_requests, total_spent_minor, created_at, last_seen_at
		FROM users
		WHERE id = $1
	`

	row := r.db.QueryRowContext(ctx, query, id)

	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.FirstName,
		&user.Balance,
		&user.TotalRequests,
		&user.TotalSpentMinor,
		&user.CreatedAt,
		&user.LastSeenAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}

		if r.log != nil {
			r.log.Error("failed to fetch user", slog.Int64("user_id", id), slog.Any("error", err))
		}
		return nil, fmt.Errorf("select user: %w", err)
	}

	return &user, nil
}

// Create persists a new user. A concurrent insert of the same id wins
// silently so two first messages from one user cannot fail.
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
		INSERT INTO users (id, username, first_name, balance, created_at, last_seen_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (id) DO NOTHING
	`

	if _, err := r.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.Username,
		user.FirstName,
		user.Balance,
		user.CreatedAt,
	); err != nil {
		if r.log != nil {
			r.log.Error("failed to create user", slog.Int64("user_id", user.ID), slog.Any("error", err))
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// TouchLastSeen bumps the activity timestamp.
func (r *userRepository) TouchLastSeen(ctx context.Context, id int64) error {
	const query = `UPDATE users SET last_seen_at = now() WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("touch last seen: %w", err)
	}

	return nil
}

// Stats aggregates usage counters across all users.
func (r *userRepository) Stats(ctx context.Context) (*Stats, error) {
	const query = `
		SELECT
			count(*),
			count(*) FILTER (WHERE last_seen_at >= date_trunc('day', now())),
			COALESCE(sum(total_requests), 0),
			COALESCE(sum(total_spent_minor), 0)
		FROM users
	`

	var stats Stats
	if err := r.db.QueryRowContext(ctx, query).Scan(
		&stats.TotalUsers,
		&stats.ActiveToday,
		&stats.TotalRequests,
		&stats.TotalSpentMinor,
	); err != nil {
		return nil, fmt.Errorf("select user stats: %w", err)
	}

	return &stats, nil
}
