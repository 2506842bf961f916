// store.go описывает контракты хранилища истории версий.
// Отделены от sqlx-реализации, чтобы сервисный слой можно было
// тестировать на in-memory хранилище (internal/repository/memory).
package repository

import (
	"context"

	"github.com/google/uuid"

	"promptvault/internal/domain"
)

// HistoryTx операции, доступные внутри одной транзакции истории.
// Чтение промпта блокирует его строку до конца транзакции, поэтому
// конкурентные писатели одного промпта сериализуются, а разные
// промпты друг друга не блокируют.
type HistoryTx interface {
	// InsertPrompt вставляет новый промпт
	InsertPrompt(ctx context.Context, prompt *domain.Prompt) error

	// PromptForUpdate читает промпт и удерживает блокировку его строки.
	// Возвращает domain.ErrNotFound, если промпта нет.
	PromptForUpdate(ctx context.Context, promptUUID uuid.UUID) (*domain.Prompt, error)

	// UpdatePromptFields перезаписывает изменяемые поля промпта
	// (title, description, content, variables, current_version)
	UpdatePromptFields(ctx context.Context, prompt *domain.Prompt) error

	// InsertVersion вставляет запись версии. При нарушении уникальности
	// (prompt_uuid, version_number) возвращает domain.ErrVersionConflict.
	InsertVersion(ctx context.Context, version *domain.PromptVersion) error

	// VersionByID читает версию; domain.ErrNotFound, если её нет
	VersionByID(ctx context.Context, id int64) (*domain.PromptVersion, error)

	// DeleteVersion удаляет запись версии
	DeleteVersion(ctx context.Context, id int64) error

	// CountVersions возвращает количество версий промпта
	CountVersions(ctx context.Context, promptUUID uuid.UUID) (int, error)
}

// HistoryStore хранилище промптов и их версий
type HistoryStore interface {
	// WithinTx выполняет fn в одной транзакции. Ошибка fn откатывает
	// транзакцию. Конфликт сериализации или нарушение уникальности
	// нумерации возвращается как domain.ErrVersionConflict.
	WithinTx(ctx context.Context, fn func(tx HistoryTx) error) error

	// PromptByUUID читает промпт без блокировки
	PromptByUUID(ctx context.Context, promptUUID uuid.UUID) (*domain.Prompt, error)

	// ListPrompts возвращает промпты владельца, свежие первыми
	ListPrompts(ctx context.Context, ownerID string) ([]domain.Prompt, error)

	// DeletePrompt удаляет промпт вместе с историей версий
	DeletePrompt(ctx context.Context, promptUUID uuid.UUID) error

	// VersionByID читает версию без блокировки
	VersionByID(ctx context.Context, id int64) (*domain.PromptVersion, error)

	// ListVersions возвращает страницу версий промпта по убыванию
	// version_number и общее количество версий
	ListVersions(ctx context.Context, promptUUID uuid.UUID, limit, offset int) ([]domain.PromptVersion, int64, error)

	// UpdateAnnotation меняет заметку версии, не трогая остальные поля
	UpdateAnnotation(ctx context.Context, id int64, annotation string) error
}

// ActivityStore журнал активности по промптам
type ActivityStore interface {
	Insert(ctx context.Context, entry *domain.ActivityEntry) error
	ListByPrompt(ctx context.Context, promptUUID uuid.UUID, limit int) ([]domain.ActivityEntry, error)
}
