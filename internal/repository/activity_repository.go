package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"promptvault/internal/domain"
)

// ActivityRepository реализует ActivityStore поверх Postgres
type ActivityRepository struct {
	db *sqlx.DB
}

func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

func (r *ActivityRepository) Insert(ctx context.Context, entry *domain.ActivityEntry) error {
	query := `
        INSERT INTO activity_log (prompt_uuid, operation, version_number, actor)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at`

	err := r.db.QueryRowContext(
		ctx,
		query,
		entry.PromptUUID,
		entry.Operation,
		entry.VersionNumber,
		entry.Actor,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert activity entry: %w", err)
	}

	return nil
}

func (r *ActivityRepository) ListByPrompt(ctx context.Context, promptUUID uuid.UUID, limit int) ([]domain.ActivityEntry, error) {
	var entries []domain.ActivityEntry
	query := `
        SELECT * FROM activity_log
        WHERE prompt_uuid = $1
        ORDER BY created_at DESC, id DESC
        LIMIT $2`

	if err := r.db.SelectContext(ctx, &entries, query, promptUUID, limit); err != nil {
		return nil, fmt.Errorf("failed to list activity entries: %w", err)
	}

	return entries, nil
}
