package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/ai-chef/recipe-bot/internal/domain"
)

// RecipeRepository persists generated recipes.
type RecipeRepository interface {
	Save(ctx context.Context, recipe *domain.Recipe) error
	CountToday(ctx context.Context) (int64, error)
}

type recipeRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewRecipeRepository creates a SQL-backed recipe repository.
func NewRecipeRepository(db *sql.DB, log *slog.Logger) RecipeRepository {
	return &recipeRepository{
		db:  db,
		log: log,
	}
}

// Save stores a generated recipe. Failures are logged by the caller;
// history is best effort and never blocks a reply.
func (r *recipeRepository) Save(ctx context.Context, recipe *domain.Recipe) error {
	const query = `
		INSERT INTO recipes (user_id, prompt, response, cost_units, created_at)
		VALUES ($1, $2, $3, $4, now())
	`

	if _, err := r.db.ExecContext(
		ctx,
		query,
		recipe.UserID,
		recipe.Prompt,
		recipe.Response,
		recipe.CostUnits,
	); err != nil {
		if r.log != nil {
			r.log.Error("failed to save recipe", slog.Int64("user_id", recipe.UserID), slog.Any("error", err))
		}
		return fmt.Errorf("insert recipe: %w", err)
	}

	return nil
}

// CountToday returns how many recipes were generated since midnight.
func (r *recipeRepository) CountToday(ctx context.Context) (int64, error) {
	const query = `SELECT count(*) FROM recipes WHERE created_at >= date_trunc('day', now())`

	var count int64
	if err := r.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count recipes: %w", err)
	}

	return count, nil
}
