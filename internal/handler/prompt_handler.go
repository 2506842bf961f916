package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"promptvault/internal/auth"
	"promptvault/internal/domain"
	"promptvault/internal/metrics"
	"promptvault/internal/service"
	"promptvault/internal/validation"
)

type PromptHandler struct {
	versionService *service.VersionService
	metrics        *metrics.Metrics
}

func NewPromptHandler(versionService *service.VersionService, m *metrics.Metrics) *PromptHandler {
	return &PromptHandler{
		versionService: versionService,
		metrics:        m,
	}
}

// CreatePromptRequest тело запроса на создание промпта
type CreatePromptRequest struct {
	Title       string            `json:"title" validate:"required,max=200"`
	Description *string           `json:"description" validate:"omitempty,max=2000"`
	Content     string            `json:"content" validate:"required"`
	Variables   []domain.Variable `json:"variables" validate:"omitempty,dive"`
}

// CreatePromptResponse промпт вместе с его первой версией
type CreatePromptResponse struct {
	Prompt         *domain.Prompt        `json:"prompt"`
	InitialVersion *domain.PromptVersion `json:"initial_version"`
}

// UpdatePromptResponse результат сохранения правки
type UpdatePromptResponse struct {
	Prompt *domain.Prompt `json:"prompt"`
	// Version присутствует только если правка изменила контент
	Version *domain.PromptVersion `json:"version,omitempty"`
}

// CreatePrompt создает промпт и его начальную версию
func (h *PromptHandler) CreatePrompt(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req CreatePromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := validation.ValidateStruct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	prompt := &domain.Prompt{
		OwnerID:     userID,
		Title:       req.Title,
		Description: req.Description,
		Content:     req.Content,
		Variables:   req.Variables,
	}

	version, err := h.versionService.CreateInitial(r.Context(), prompt)
	h.metrics.ObserveOperation("prompt.create", err)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, CreatePromptResponse{
		Prompt:         prompt,
		InitialVersion: version,
	})
}

// ListPrompts возвращает промпты пользователя
func (h *PromptHandler) ListPrompts(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	prompts, err := h.versionService.ListPrompts(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, prompts)
}

// GetPrompt возвращает один промпт
func (h *PromptHandler) GetPrompt(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	promptUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		http.Error(w, "Invalid UUID format", http.StatusBadRequest)
		return
	}

	prompt, err := h.versionService.GetPrompt(r.Context(), promptUUID, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, prompt)
}

// UpdatePrompt применяет частичное обновление промпта. Версия
// создается только при изменении контента.
func (h *PromptHandler) UpdatePrompt(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	promptUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		http.Error(w, "Invalid UUID format", http.StatusBadRequest)
		return
	}

	var changes domain.PromptChanges
	if err := json.NewDecoder(r.Body).Decode(&changes); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	version, err := h.versionService.RecordEdit(r.Context(), promptUUID, userID, changes)
	h.metrics.ObserveOperation("prompt.update", err)
	if err != nil {
		writeError(w, err)
		return
	}

	prompt, err := h.versionService.GetPrompt(r.Context(), promptUUID, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, UpdatePromptResponse{
		Prompt:  prompt,
		Version: version,
	})
}

// DeletePrompt удаляет промпт вместе с историей
func (h *PromptHandler) DeletePrompt(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	promptUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		http.Error(w, "Invalid UUID format", http.StatusBadRequest)
		return
	}

	err = h.versionService.DeletePrompt(r.Context(), promptUUID, userID)
	h.metrics.ObserveOperation("prompt.delete", err)
	if err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
