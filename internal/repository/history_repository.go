package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"promptvault/internal/domain"
)

// HistoryRepository реализует HistoryStore поверх Postgres
type HistoryRepository struct {
	db *sqlx.DB
}

func NewHistoryRepository(db *sqlx.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// isSequenceConflict распознает ошибки, после которых транзакцию
// нумерации имеет смысл повторить: нарушение уникальности (23505),
// сбой сериализации (40001) и дедлок (40P01)
func isSequenceConflict(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code {
	case "23505", "40001", "40P01":
		return true
	}
	return false
}

func (r *HistoryRepository) WithinTx(ctx context.Context, fn func(tx HistoryTx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&historyTx{tx: tx}); err != nil {
		if isSequenceConflict(err) {
			return fmt.Errorf("%w: %v", domain.ErrVersionConflict, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		if isSequenceConflict(err) {
			return fmt.Errorf("%w: %v", domain.ErrVersionConflict, err)
		}
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *HistoryRepository) PromptByUUID(ctx context.Context, promptUUID uuid.UUID) (*domain.Prompt, error) {
	var prompt domain.Prompt
	query := `SELECT * FROM prompts WHERE uuid = $1`

	err := r.db.GetContext(ctx, &prompt, query, promptUUID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: prompt %s", domain.ErrNotFound, promptUUID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prompt: %w", err)
	}

	return &prompt, nil
}

func (r *HistoryRepository) ListPrompts(ctx context.Context, ownerID string) ([]domain.Prompt, error) {
	var prompts []domain.Prompt
	query := `SELECT * FROM prompts WHERE owner_id = $1 ORDER BY updated_at DESC`

	if err := r.db.SelectContext(ctx, &prompts, query, ownerID); err != nil {
		return nil, fmt.Errorf("failed to list prompts: %w", err)
	}

	return prompts, nil
}

// DeletePrompt удаляет промпт; версии и журнал активности удаляются
// каскадом по внешнему ключу
func (r *HistoryRepository) DeletePrompt(ctx context.Context, promptUUID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM prompts WHERE uuid = $1`, promptUUID)
	if err != nil {
		return fmt.Errorf("failed to delete prompt: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: prompt %s", domain.ErrNotFound, promptUUID)
	}

	return nil
}

func (r *HistoryRepository) VersionByID(ctx context.Context, id int64) (*domain.PromptVersion, error) {
	return versionByID(ctx, r.db, id)
}

func (r *HistoryRepository) ListVersions(ctx context.Context, promptUUID uuid.UUID, limit, offset int) ([]domain.PromptVersion, int64, error) {
	var versions []domain.PromptVersion
	query := `
        SELECT * FROM prompt_versions
        WHERE prompt_uuid = $1
        ORDER BY version_number DESC
        LIMIT $2 OFFSET $3`

	if err := r.db.SelectContext(ctx, &versions, query, promptUUID, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("failed to list versions: %w", err)
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM prompt_versions WHERE prompt_uuid = $1`
	if err := r.db.GetContext(ctx, &total, countQuery, promptUUID); err != nil {
		return nil, 0, fmt.Errorf("failed to count versions: %w", err)
	}

	return versions, total, nil
}

func (r *HistoryRepository) UpdateAnnotation(ctx context.Context, id int64, annotation string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE prompt_versions SET annotation = $1 WHERE id = $2`, annotation, id)
	if err != nil {
		return fmt.Errorf("failed to update annotation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: version %d", domain.ErrNotFound, id)
	}

	return nil
}

// historyTx реализует HistoryTx поверх sqlx.Tx
type historyTx struct {
	tx *sqlx.Tx
}

func (t *historyTx) InsertPrompt(ctx context.Context, prompt *domain.Prompt) error {
	query := `
        INSERT INTO prompts (uuid, owner_id, title, description, content, variables, current_version)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING created_at, updated_at`

	err := t.tx.QueryRowContext(
		ctx,
		query,
		prompt.UUID,
		prompt.OwnerID,
		prompt.Title,
		prompt.Description,
		prompt.Content,
		prompt.Variables,
		prompt.CurrentVersion,
	).Scan(&prompt.CreatedAt, &prompt.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert prompt: %w", err)
	}

	return nil
}

func (t *historyTx) PromptForUpdate(ctx context.Context, promptUUID uuid.UUID) (*domain.Prompt, error) {
	var prompt domain.Prompt
	query := `SELECT * FROM prompts WHERE uuid = $1 FOR UPDATE`

	err := t.tx.GetContext(ctx, &prompt, query, promptUUID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: prompt %s", domain.ErrNotFound, promptUUID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock prompt: %w", err)
	}

	return &prompt, nil
}

func (t *historyTx) UpdatePromptFields(ctx context.Context, prompt *domain.Prompt) error {
	query := `
        UPDATE prompts
        SET title = $1,
            description = $2,
            content = $3,
            variables = $4,
            current_version = $5,
            updated_at = CURRENT_TIMESTAMP
        WHERE uuid = $6
        RETURNING updated_at`

	err := t.tx.QueryRowContext(
		ctx,
		query,
		prompt.Title,
		prompt.Description,
		prompt.Content,
		prompt.Variables,
		prompt.CurrentVersion,
		prompt.UUID,
	).Scan(&prompt.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update prompt fields: %w", err)
	}

	return nil
}

func (t *historyTx) InsertVersion(ctx context.Context, version *domain.PromptVersion) error {
	query := `
        INSERT INTO prompt_versions
            (prompt_uuid, version_number, title, content, variables, change_summary, annotation, is_snapshot, created_by)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING id, created_at`

	err := t.tx.QueryRowContext(
		ctx,
		query,
		version.PromptUUID,
		version.VersionNumber,
		version.Title,
		version.Content,
		version.Variables,
		version.ChangeSummary,
		version.Annotation,
		version.IsSnapshot,
		version.CreatedBy,
	).Scan(&version.ID, &version.CreatedAt)
	if err != nil {
		if isSequenceConflict(err) {
			return fmt.Errorf("%w: prompt %s number %d", domain.ErrVersionConflict, version.PromptUUID, version.VersionNumber)
		}
		return fmt.Errorf("failed to insert version: %w", err)
	}

	return nil
}

func (t *historyTx) VersionByID(ctx context.Context, id int64) (*domain.PromptVersion, error) {
	return versionByID(ctx, t.tx, id)
}

func (t *historyTx) DeleteVersion(ctx context.Context, id int64) error {
	result, err := t.tx.ExecContext(ctx, `DELETE FROM prompt_versions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete version: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: version %d", domain.ErrNotFound, id)
	}

	return nil
}

func (t *historyTx) CountVersions(ctx context.Context, promptUUID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM prompt_versions WHERE prompt_uuid = $1`

	if err := t.tx.GetContext(ctx, &count, query, promptUUID); err != nil {
		return 0, fmt.Errorf("failed to count versions: %w", err)
	}

	return count, nil
}

func versionByID(ctx context.Context, q sqlx.QueryerContext, id int64) (*domain.PromptVersion, error) {
	var version domain.PromptVersion
	query := `SELECT * FROM prompt_versions WHERE id = $1`

	err := sqlx.GetContext(ctx, q, &version, query, id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: version %d", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get version: %w", err)
	}

	return &version, nil
}
