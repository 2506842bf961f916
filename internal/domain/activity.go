package domain

import (
	"time"

	"github.com/google/uuid"
)

// Операции, фиксируемые в журнале активности
const (
	ActivityVersionCreated    = "version.created"
	ActivitySnapshotCreated   = "snapshot.created"
	ActivityVersionRestored   = "version.restored"
	ActivityVersionDeleted    = "version.deleted"
	ActivityAnnotationUpdated = "annotation.updated"
	ActivityPromptCreated     = "prompt.created"
	ActivityPromptUpdated     = "prompt.updated"
	ActivityPromptDeleted     = "prompt.deleted"
	ActivityHistoryExported   = "history.exported"
)

// ActivityEntry одна запись журнала активности по промпту
type ActivityEntry struct {
	ID            int64     `json:"id" db:"id"`
	PromptUUID    uuid.UUID `json:"prompt_uuid" db:"prompt_uuid"`
	Operation     string    `json:"operation" db:"operation"`
	VersionNumber *int      `json:"version_number,omitempty" db:"version_number"`
	Actor         string    `json:"actor" db:"actor"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
