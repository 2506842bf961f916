package domain

import (
	"time"

	"github.com/google/uuid"
)

// Prompt представляет версионируемый промпт пользователя
type Prompt struct {
	UUID           uuid.UUID `json:"uuid" db:"uuid"`
	OwnerID        string    `json:"owner_id" db:"owner_id"`
	Title          string    `json:"title" db:"title"`
	Description    *string   `json:"description,omitempty" db:"description"`
	Content        string    `json:"content" db:"content"`
	Variables      Variables `json:"variables" db:"variables"`
	CurrentVersion int       `json:"current_version" db:"current_version"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// PromptChanges описывает частичное обновление промпта. Каждое поле
// различает "не передано", "передан null" и "передано значение",
// чтобы не угадывать намерение клиента по отсутствию ключа.
type PromptChanges struct {
	Title       FieldChange[string]     `json:"title"`
	Description FieldChange[string]     `json:"description"`
	Content     FieldChange[string]     `json:"content"`
	Variables   FieldChange[[]Variable] `json:"variables"`
}
