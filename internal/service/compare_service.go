package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"promptvault/internal/domain"
	"promptvault/internal/repository"
)

// CompareService отдает две версии промпта для сравнения на стороне
// клиента. Сам diff здесь не вычисляется: фасад только безопасно
// достает оба снимка и проверяет, что они принадлежат одному промпту.
type CompareService struct {
	store repository.HistoryStore
}

func NewCompareService(store repository.HistoryStore) *CompareService {
	return &CompareService{store: store}
}

// Compare возвращает обе версии целиком. Версия чужого промпта —
// ErrInvalidOperation, отсутствующая версия — ErrNotFound.
func (s *CompareService) Compare(ctx context.Context, promptUUID uuid.UUID, ownerID string, fromID, toID int64) (*domain.PromptVersion, *domain.PromptVersion, error) {
	prompt, err := s.store.PromptByUUID(ctx, promptUUID)
	if err != nil {
		return nil, nil, err
	}
	if err := ownedBy(prompt, ownerID); err != nil {
		return nil, nil, err
	}

	from, err := s.store.VersionByID(ctx, fromID)
	if err != nil {
		return nil, nil, err
	}
	to, err := s.store.VersionByID(ctx, toID)
	if err != nil {
		return nil, nil, err
	}

	if from.PromptUUID != promptUUID {
		return nil, nil, fmt.Errorf("%w: version %d belongs to another prompt", domain.ErrInvalidOperation, fromID)
	}
	if to.PromptUUID != promptUUID {
		return nil, nil, fmt.Errorf("%w: version %d belongs to another prompt", domain.ErrInvalidOperation, toID)
	}

	return from, to, nil
}
