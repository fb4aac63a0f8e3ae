// Package user manages user records and their lifecycle.
package user

import (
	"context"
	"errors"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/ai-chef/recipe-bot/internal/domain"
	"github.com/ai-chef/recipe-bot/internal/repository"
)

// Service lazily creates users on first contact and tracks activity.
type Service struct {
	repo             repository.UserRepository
	freeStartBalance int64
	log              *slog.Logger
}

func NewService(repo repository.UserRepository, freeStartBalance int64, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}

	return &Service{
		repo:             repo,
		freeStartBalance: freeStartBalance,
		log:              log,
	}
}

// GetOrCreate returns the stored user, creating one with the free
// starting balance on first contact.
func (s *Service) GetOrCreate(ctx context.Context, from *tele.User) (*domain.User, error) {
	if from == nil || from.ID == 0 {
		return nil, errors.New("update has no sender")
	}

	existing, err := s.repo.FindByID(ctx, from.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	created := &domain.User{
		ID:         from.ID,
		Username:   from.Username,
		FirstName:  from.FirstName,
		Balance:    s.freeStartBalance,
		CreatedAt:  now,
		LastSeenAt: now,
	}

	if err := s.repo.Create(ctx, created); err != nil {
		return nil, err
	}

	s.log.Info("new user registered",
		slog.Int64("user_id", created.ID),
		slog.String("username", created.Username),
		slog.Int64("free_balance", s.freeStartBalance),
	)

	// A concurrent first message may have won the insert; read back the
	// authoritative row.
	stored, err := s.repo.FindByID(ctx, from.ID)
	if err != nil {
		return created, nil
	}

	return stored, nil
}

// UpdateLastSeen bumps the activity timestamp, best effort.
func (s *Service) UpdateLastSeen(ctx context.Context, userID int64) {
	if err := s.repo.TouchLastSeen(ctx, userID); err != nil {
		s.log.Warn("failed to update last seen",
			slog.Int64("user_id", userID),
			slog.Any("error", err),
		)
	}
}
