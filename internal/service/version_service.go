package service

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"

	"promptvault/internal/domain"
	"promptvault/internal/repository"
)

const (
	defaultPageSize  = 20
	maxPageSize      = 100
	maxActivityLimit = 100
)

// ActivityLog журнал активности, пишущийся в режиме fire-and-forget:
// ошибка записи никогда не откатывает версионную операцию
type ActivityLog interface {
	Record(entry domain.ActivityEntry)
	List(ctx context.Context, promptUUID uuid.UUID, limit int) ([]domain.ActivityEntry, error)
}

// VersionService оркестрирует операции над историей версий промпта.
// Каждая мутирующая операция выполняется одной транзакцией: чтение
// номера, вставка версии и обновление полей промпта атомарны.
type VersionService struct {
	store    repository.HistoryStore
	seq      *Sequencer
	activity ActivityLog
}

func NewVersionService(store repository.HistoryStore, seq *Sequencer, activity ActivityLog) *VersionService {
	return &VersionService{
		store:    store,
		seq:      seq,
		activity: activity,
	}
}

// ownedBy проверяет владельца промпта
func ownedBy(prompt *domain.Prompt, ownerID string) error {
	if prompt.OwnerID != ownerID {
		return fmt.Errorf("%w: prompt %s", domain.ErrForbidden, prompt.UUID)
	}
	return nil
}

func validateAnnotation(annotation string, required bool) error {
	length := utf8.RuneCountInString(annotation)
	if required && length == 0 {
		return fmt.Errorf("%w: annotation is required", domain.ErrValidation)
	}
	if length > domain.MaxAnnotationLength {
		return fmt.Errorf("%w: annotation exceeds %d characters", domain.ErrValidation, domain.MaxAnnotationLength)
	}
	return nil
}

// snapshotOf формирует запись версии из текущего состояния промпта
func snapshotOf(prompt *domain.Prompt, summary, annotation string, isSnapshot bool, createdBy string) *domain.PromptVersion {
	return &domain.PromptVersion{
		PromptUUID:    prompt.UUID,
		VersionNumber: prompt.CurrentVersion,
		Title:         prompt.Title,
		Content:       prompt.Content,
		Variables:     append(domain.Variables(nil), prompt.Variables...),
		ChangeSummary: summary,
		Annotation:    annotation,
		IsSnapshot:    isSnapshot,
		CreatedBy:     createdBy,
	}
}

func (s *VersionService) record(promptUUID uuid.UUID, operation string, versionNumber *int, actor string) {
	s.activity.Record(domain.ActivityEntry{
		PromptUUID:    promptUUID,
		Operation:     operation,
		VersionNumber: versionNumber,
		Actor:         actor,
	})
}

// CreateInitial создает промпт вместе с версией 1. Версия 1 всегда
// снимок с описанием "Initial version".
func (s *VersionService) CreateInitial(ctx context.Context, prompt *domain.Prompt) (*domain.PromptVersion, error) {
	if prompt.OwnerID == "" {
		return nil, fmt.Errorf("%w: owner id is required", domain.ErrValidation)
	}
	if prompt.Title == "" {
		return nil, fmt.Errorf("%w: title is required", domain.ErrValidation)
	}
	if prompt.Content == "" {
		return nil, fmt.Errorf("%w: content is required", domain.ErrValidation)
	}
	if err := prompt.Variables.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	if prompt.UUID == uuid.Nil {
		prompt.UUID = uuid.New()
	}
	prompt.CurrentVersion = 1

	var created *domain.PromptVersion
	err := s.store.WithinTx(ctx, func(tx repository.HistoryTx) error {
		if err := tx.InsertPrompt(ctx, prompt); err != nil {
			return err
		}
		created = snapshotOf(prompt, domain.SummaryInitial, "", true, prompt.OwnerID)
		return tx.InsertVersion(ctx, created)
	})
	if err != nil {
		return nil, err
	}

	s.record(prompt.UUID, domain.ActivityPromptCreated, &created.VersionNumber, prompt.OwnerID)
	return created, nil
}

// RecordEdit применяет набор изменений к промпту. Новая версия
// создается только когда переданный content отличается от текущего
// (точное сравнение строк); правка одних title/description/variables
// историю не пополняет. Возвращает созданную версию или nil.
func (s *VersionService) RecordEdit(ctx context.Context, promptUUID uuid.UUID, ownerID string, changes domain.PromptChanges) (*domain.PromptVersion, error) {
	if changes.Title.IsNull() {
		return nil, fmt.Errorf("%w: title cannot be null", domain.ErrValidation)
	}
	if changes.Content.IsNull() {
		return nil, fmt.Errorf("%w: content cannot be null", domain.ErrValidation)
	}
	if content, ok := changes.Content.Value(); ok && content == "" {
		return nil, fmt.Errorf("%w: content cannot be empty", domain.ErrValidation)
	}
	if title, ok := changes.Title.Value(); ok && title == "" {
		return nil, fmt.Errorf("%w: title cannot be empty", domain.ErrValidation)
	}
	if vars, ok := changes.Variables.Value(); ok {
		if err := domain.Variables(vars).Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
	}

	var created *domain.PromptVersion
	err := s.seq.Run(ctx, func(tx repository.HistoryTx) error {
		created = nil

		next, prompt, err := s.seq.NextVersionNumber(ctx, tx, promptUUID)
		if err != nil {
			return err
		}
		if err := ownedBy(prompt, ownerID); err != nil {
			return err
		}

		contentChanged := false
		if content, ok := changes.Content.Value(); ok && content != prompt.Content {
			contentChanged = true
		}

		if title, ok := changes.Title.Value(); ok {
			prompt.Title = title
		}
		if changes.Description.IsSet() {
			if desc, ok := changes.Description.Value(); ok {
				prompt.Description = &desc
			} else {
				prompt.Description = nil
			}
		}
		if content, ok := changes.Content.Value(); ok {
			prompt.Content = content
		}
		if changes.Variables.IsSet() {
			vars, _ := changes.Variables.Value()
			prompt.Variables = vars
		}

		if contentChanged {
			prompt.CurrentVersion = next
			created = snapshotOf(prompt, domain.SummaryContentUpdated, "", false, ownerID)
			if err := tx.InsertVersion(ctx, created); err != nil {
				return err
			}
		}

		return tx.UpdatePromptFields(ctx, prompt)
	})
	if err != nil {
		return nil, err
	}

	if created != nil {
		s.record(promptUUID, domain.ActivityVersionCreated, &created.VersionNumber, ownerID)
	} else {
		s.record(promptUUID, domain.ActivityPromptUpdated, nil, ownerID)
	}
	return created, nil
}

// CreateSnapshot создает ручной снимок текущего состояния промпта.
// Изменения контента не требуется, заметка обязательна.
func (s *VersionService) CreateSnapshot(ctx context.Context, promptUUID uuid.UUID, ownerID, annotation string) (*domain.PromptVersion, error) {
	if err := validateAnnotation(annotation, true); err != nil {
		return nil, err
	}

	var created *domain.PromptVersion
	err := s.seq.Run(ctx, func(tx repository.HistoryTx) error {
		next, prompt, err := s.seq.NextVersionNumber(ctx, tx, promptUUID)
		if err != nil {
			return err
		}
		if err := ownedBy(prompt, ownerID); err != nil {
			return err
		}

		prompt.CurrentVersion = next
		created = snapshotOf(prompt, domain.SummaryManualSnapshot, annotation, true, ownerID)
		if err := tx.InsertVersion(ctx, created); err != nil {
			return err
		}

		return tx.UpdatePromptFields(ctx, prompt)
	})
	if err != nil {
		return nil, err
	}

	s.record(promptUUID, domain.ActivitySnapshotCreated, &created.VersionNumber, ownerID)
	return created, nil
}

// Restore переносит снимок целевой версии обратно в промпт и добавляет
// новую версию-снимок "Restored from version N". Промежуточная история
// не удаляется и не меняется: таймлайн только растет вперед.
func (s *VersionService) Restore(ctx context.Context, versionID int64, ownerID, annotation string) (*domain.Prompt, *domain.PromptVersion, error) {
	if err := validateAnnotation(annotation, false); err != nil {
		return nil, nil, err
	}

	target, err := s.store.VersionByID(ctx, versionID)
	if err != nil {
		return nil, nil, err
	}

	var restored *domain.Prompt
	var created *domain.PromptVersion
	err = s.seq.Run(ctx, func(tx repository.HistoryTx) error {
		next, prompt, err := s.seq.NextVersionNumber(ctx, tx, target.PromptUUID)
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: prompt of version %d no longer exists", domain.ErrInvalidOperation, versionID)
		}
		if err != nil {
			return err
		}
		if err := ownedBy(prompt, ownerID); err != nil {
			return err
		}

		prompt.Title = target.Title
		prompt.Content = target.Content
		prompt.Variables = append(domain.Variables(nil), target.Variables...)
		prompt.CurrentVersion = next

		created = snapshotOf(prompt, domain.SummaryRestoredFrom(target.VersionNumber), annotation, true, ownerID)
		if err := tx.InsertVersion(ctx, created); err != nil {
			return err
		}
		if err := tx.UpdatePromptFields(ctx, prompt); err != nil {
			return err
		}

		restored = prompt
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.record(target.PromptUUID, domain.ActivityVersionRestored, &created.VersionNumber, ownerID)
	return restored, created, nil
}

// UpdateAnnotation меняет заметку версии. Версию не создает, пустая
// строка очищает заметку.
func (s *VersionService) UpdateAnnotation(ctx context.Context, versionID int64, ownerID, annotation string) error {
	if err := validateAnnotation(annotation, false); err != nil {
		return err
	}

	version, err := s.store.VersionByID(ctx, versionID)
	if err != nil {
		return err
	}
	prompt, err := s.store.PromptByUUID(ctx, version.PromptUUID)
	if err != nil {
		return err
	}
	if err := ownedBy(prompt, ownerID); err != nil {
		return err
	}

	if err := s.store.UpdateAnnotation(ctx, versionID, annotation); err != nil {
		return err
	}

	s.record(version.PromptUUID, domain.ActivityAnnotationUpdated, &version.VersionNumber, ownerID)
	return nil
}

// DeleteVersion удаляет версию. Снимки и последнюю оставшуюся версию
// промпта удалить нельзя. Удаление версии из середины истории оставляет
// дыру в нумерации: номер версии — ключ порядка, а не плотный индекс.
func (s *VersionService) DeleteVersion(ctx context.Context, versionID int64, ownerID string) error {
	var deleted *domain.PromptVersion
	err := s.store.WithinTx(ctx, func(tx repository.HistoryTx) error {
		version, err := tx.VersionByID(ctx, versionID)
		if err != nil {
			return err
		}
		prompt, err := tx.PromptForUpdate(ctx, version.PromptUUID)
		if err != nil {
			return err
		}
		if err := ownedBy(prompt, ownerID); err != nil {
			return err
		}

		if version.IsSnapshot {
			return fmt.Errorf("%w: cannot delete a snapshot", domain.ErrInvalidOperation)
		}

		count, err := tx.CountVersions(ctx, version.PromptUUID)
		if err != nil {
			return err
		}
		if count <= 1 {
			return fmt.Errorf("%w: cannot delete the last remaining version", domain.ErrInvalidOperation)
		}

		deleted = version
		return tx.DeleteVersion(ctx, versionID)
	})
	if err != nil {
		return err
	}

	s.record(deleted.PromptUUID, domain.ActivityVersionDeleted, &deleted.VersionNumber, ownerID)
	return nil
}

// ListVersions возвращает страницу истории по убыванию номера версии
// и общее количество версий для пагинации. limit ограничен [1,100].
func (s *VersionService) ListVersions(ctx context.Context, promptUUID uuid.UUID, ownerID string, limit, offset int) ([]domain.PromptVersion, int64, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	prompt, err := s.store.PromptByUUID(ctx, promptUUID)
	if err != nil {
		return nil, 0, err
	}
	if err := ownedBy(prompt, ownerID); err != nil {
		return nil, 0, err
	}

	return s.store.ListVersions(ctx, promptUUID, limit, offset)
}

// ListActivity возвращает последние записи журнала активности промпта
func (s *VersionService) ListActivity(ctx context.Context, promptUUID uuid.UUID, ownerID string, limit int) ([]domain.ActivityEntry, error) {
	if limit <= 0 || limit > maxActivityLimit {
		limit = maxActivityLimit
	}

	prompt, err := s.store.PromptByUUID(ctx, promptUUID)
	if err != nil {
		return nil, err
	}
	if err := ownedBy(prompt, ownerID); err != nil {
		return nil, err
	}

	return s.activity.List(ctx, promptUUID, limit)
}

// GetPrompt возвращает промпт владельца
func (s *VersionService) GetPrompt(ctx context.Context, promptUUID uuid.UUID, ownerID string) (*domain.Prompt, error) {
	prompt, err := s.store.PromptByUUID(ctx, promptUUID)
	if err != nil {
		return nil, err
	}
	if err := ownedBy(prompt, ownerID); err != nil {
		return nil, err
	}
	return prompt, nil
}

// ListPrompts возвращает все промпты владельца
func (s *VersionService) ListPrompts(ctx context.Context, ownerID string) ([]domain.Prompt, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner id is required", domain.ErrValidation)
	}
	return s.store.ListPrompts(ctx, ownerID)
}

// DeletePrompt удаляет промпт вместе со всей историей версий
func (s *VersionService) DeletePrompt(ctx context.Context, promptUUID uuid.UUID, ownerID string) error {
	prompt, err := s.store.PromptByUUID(ctx, promptUUID)
	if err != nil {
		return err
	}
	if err := ownedBy(prompt, ownerID); err != nil {
		return err
	}

	if err := s.store.DeletePrompt(ctx, promptUUID); err != nil {
		return err
	}

	s.record(promptUUID, domain.ActivityPromptDeleted, nil, ownerID)
	return nil
}
