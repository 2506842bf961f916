package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"promptvault/internal/auth"
	"promptvault/internal/domain"
	"promptvault/internal/metrics"
	"promptvault/internal/service"
	"promptvault/internal/validation"
)

type VersionHandler struct {
	versionService *service.VersionService
	compareService *service.CompareService
	exportService  *service.ExportService
	metrics        *metrics.Metrics
}

// NewVersionHandler создает хендлер истории версий. exportService
// может быть nil, если выгрузка в S3 не сконфигурирована.
func NewVersionHandler(
	versionService *service.VersionService,
	compareService *service.CompareService,
	exportService *service.ExportService,
	m *metrics.Metrics,
) *VersionHandler {
	return &VersionHandler{
		versionService: versionService,
		compareService: compareService,
		exportService:  exportService,
		metrics:        m,
	}
}

// SnapshotRequest тело запроса на ручной снимок
type SnapshotRequest struct {
	Annotation string `json:"annotation" validate:"required,min=1,max=500"`
}

// AnnotationRequest тело запроса на изменение заметки
type AnnotationRequest struct {
	Annotation string `json:"annotation" validate:"max=500"`
}

// RestoreRequest тело запроса на восстановление версии
type RestoreRequest struct {
	Annotation string `json:"annotation" validate:"max=500"`
}

// ListVersionsResponse страница истории с общим количеством версий
type ListVersionsResponse struct {
	Versions []domain.PromptVersion `json:"versions"`
	Total    int64                  `json:"total"`
	Limit    int                    `json:"limit"`
	Offset   int                    `json:"offset"`
}

// CompareResponse обе версии целиком; diff вычисляет клиент
type CompareResponse struct {
	From *domain.PromptVersion `json:"from"`
	To   *domain.PromptVersion `json:"to"`
}

// RestoreResponse обновленный промпт и добавленная версия
type RestoreResponse struct {
	Prompt  *domain.Prompt        `json:"prompt"`
	Version *domain.PromptVersion `json:"version"`
}

// ExportResponse ключ выгруженного архива истории
type ExportResponse struct {
	Key string `json:"key"`
}

func promptUUIDParam(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "uuid"))
	return id, err == nil
}

func versionIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil
}

// ListVersions возвращает историю версий промпта
func (h *VersionHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	promptUUID, ok := promptUUIDParam(r)
	if !ok {
		http.Error(w, "Invalid UUID format", http.StatusBadRequest)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	versions, total, err := h.versionService.ListVersions(r.Context(), promptUUID, userID, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	writeJSON(w, http.StatusOK, ListVersionsResponse{
		Versions: versions,
		Total:    total,
		Limit:    limit,
		Offset:   offset,
	})
}

// CreateSnapshot создает ручной снимок текущего состояния
func (h *VersionHandler) CreateSnapshot(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	promptUUID, ok := promptUUIDParam(r)
	if !ok {
		http.Error(w, "Invalid UUID format", http.StatusBadRequest)
		return
	}

	var req SnapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := validation.ValidateStruct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	version, err := h.versionService.CreateSnapshot(r.Context(), promptUUID, userID, req.Annotation)
	h.metrics.ObserveOperation("snapshot.create", err)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, version)
}

// Compare возвращает две версии одного промпта
func (h *VersionHandler) Compare(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	promptUUID, ok := promptUUIDParam(r)
	if !ok {
		http.Error(w, "Invalid UUID format", http.StatusBadRequest)
		return
	}

	fromID, err := strconv.ParseInt(r.URL.Query().Get("from"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid 'from' version id", http.StatusBadRequest)
		return
	}
	toID, err := strconv.ParseInt(r.URL.Query().Get("to"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid 'to' version id", http.StatusBadRequest)
		return
	}

	from, to, err := h.compareService.Compare(r.Context(), promptUUID, userID, fromID, toID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, CompareResponse{From: from, To: to})
}

// Restore восстанавливает промпт из версии, добавляя новую
// версию-снимок поверх истории
func (h *VersionHandler) Restore(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	versionID, ok := versionIDParam(r)
	if !ok {
		http.Error(w, "Invalid version id", http.StatusBadRequest)
		return
	}

	// Тело опционально: заметка может отсутствовать
	var req RestoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := validation.ValidateStruct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	prompt, version, err := h.versionService.Restore(r.Context(), versionID, userID, req.Annotation)
	h.metrics.ObserveOperation("version.restore", err)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, RestoreResponse{Prompt: prompt, Version: version})
}

// UpdateAnnotation меняет заметку версии; пустая строка очищает её
func (h *VersionHandler) UpdateAnnotation(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	versionID, ok := versionIDParam(r)
	if !ok {
		http.Error(w, "Invalid version id", http.StatusBadRequest)
		return
	}

	var req AnnotationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := validation.ValidateStruct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = h.versionService.UpdateAnnotation(r.Context(), versionID, userID, req.Annotation)
	h.metrics.ObserveOperation("annotation.update", err)
	if err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// DeleteVersion удаляет версию с учетом ограничений истории
func (h *VersionHandler) DeleteVersion(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	versionID, ok := versionIDParam(r)
	if !ok {
		http.Error(w, "Invalid version id", http.StatusBadRequest)
		return
	}

	err = h.versionService.DeleteVersion(r.Context(), versionID, userID)
	h.metrics.ObserveOperation("version.delete", err)
	if err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ExportHistory выгружает архив истории промпта в S3
func (h *VersionHandler) ExportHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if h.exportService == nil {
		http.Error(w, "History export is not configured", http.StatusServiceUnavailable)
		return
	}

	promptUUID, ok := promptUUIDParam(r)
	if !ok {
		http.Error(w, "Invalid UUID format", http.StatusBadRequest)
		return
	}

	key, err := h.exportService.ExportHistory(r.Context(), promptUUID, userID)
	h.metrics.ObserveOperation("history.export", err)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ExportResponse{Key: key})
}

// ListActivity возвращает журнал активности промпта
func (h *VersionHandler) ListActivity(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	promptUUID, ok := promptUUIDParam(r)
	if !ok {
		http.Error(w, "Invalid UUID format", http.StatusBadRequest)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := h.versionService.ListActivity(r.Context(), promptUUID, userID, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, entries)
}
