package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"promptvault/internal/domain"
	"promptvault/internal/repository"
	"promptvault/internal/service/s3"
)

// exportPageSize размер страницы при выгрузке истории
const exportPageSize = 100

// HistoryArchive полный слепок истории промпта для выгрузки
type HistoryArchive struct {
	Prompt     *domain.Prompt         `json:"prompt"`
	Versions   []domain.PromptVersion `json:"versions"`
	ExportedAt time.Time              `json:"exported_at"`
	ExportedBy string                 `json:"exported_by"`
}

// ExportService выгружает историю версий промпта в S3 одним
// JSON-архивом
type ExportService struct {
	store    repository.HistoryStore
	storage  s3.Storage
	activity ActivityLog
}

func NewExportService(store repository.HistoryStore, storage s3.Storage, activity ActivityLog) *ExportService {
	return &ExportService{
		store:    store,
		storage:  storage,
		activity: activity,
	}
}

// ExportHistory собирает все версии промпта и загружает архив в S3.
// Возвращает ключ загруженного объекта.
func (s *ExportService) ExportHistory(ctx context.Context, promptUUID uuid.UUID, ownerID string) (string, error) {
	prompt, err := s.store.PromptByUUID(ctx, promptUUID)
	if err != nil {
		return "", err
	}
	if err := ownedBy(prompt, ownerID); err != nil {
		return "", err
	}

	archive := HistoryArchive{
		Prompt:     prompt,
		ExportedAt: time.Now().UTC(),
		ExportedBy: ownerID,
	}

	// Собираем историю постранично, свежие версии первыми
	offset := 0
	for {
		versions, total, err := s.store.ListVersions(ctx, promptUUID, exportPageSize, offset)
		if err != nil {
			return "", fmt.Errorf("failed to collect history: %w", err)
		}
		archive.Versions = append(archive.Versions, versions...)
		offset += len(versions)
		if len(versions) == 0 || int64(offset) >= total {
			break
		}
	}

	data, err := json.MarshalIndent(archive, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal archive: %w", err)
	}

	key := fmt.Sprintf("prompt_exports/%s/%s/%d.json", ownerID, promptUUID, time.Now().Unix())
	if err := s.storage.UploadBytes(key, data); err != nil {
		log.Error().Err(err).Str("key", key).Msg("history export upload failed")
		return "", fmt.Errorf("%w: export upload failed: %v", domain.ErrTransient, err)
	}

	s.activity.Record(domain.ActivityEntry{
		PromptUUID: promptUUID,
		Operation:  domain.ActivityHistoryExported,
		Actor:      ownerID,
	})

	return key, nil
}
