// domain/prompt_version.go
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MaxAnnotationLength максимальная длина пользовательской заметки к версии
const MaxAnnotationLength = 500

// Стандартные описания изменений
const (
	SummaryInitial        = "Initial version"
	SummaryContentUpdated = "Content updated"
	SummaryManualSnapshot = "Manual snapshot"
)

// SummaryRestoredFrom возвращает описание для версии, созданной восстановлением
func SummaryRestoredFrom(versionNumber int) string {
	return fmt.Sprintf("Restored from version %d", versionNumber)
}

// PromptVersion представляет один полный снимок состояния промпта.
// Запись неизменяема после создания, кроме поля Annotation.
type PromptVersion struct {
	ID            int64     `json:"id" db:"id"`
	PromptUUID    uuid.UUID `json:"prompt_uuid" db:"prompt_uuid"`
	VersionNumber int       `json:"version_number" db:"version_number"`
	Title         string    `json:"title" db:"title"`
	Content       string    `json:"content" db:"content"`
	Variables     Variables `json:"variables" db:"variables"`
	ChangeSummary string    `json:"change_summary" db:"change_summary"`
	Annotation    string    `json:"annotation" db:"annotation"`
	IsSnapshot    bool      `json:"is_snapshot" db:"is_snapshot"`
	CreatedBy     string    `json:"created_by" db:"created_by"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
