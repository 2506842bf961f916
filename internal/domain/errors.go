package domain

import "errors"

// Классификация ошибок движка версий. Сервисы оборачивают их через %w,
// хендлеры сопоставляют через errors.Is.
var (
	// ErrNotFound промпт или версия не существует
	ErrNotFound = errors.New("not found")

	// ErrForbidden вызывающий не является владельцем промпта
	ErrForbidden = errors.New("access denied")

	// ErrInvalidOperation операция противоречит инвариантам истории:
	// удаление снимка, удаление последней версии, сравнение версий
	// разных промптов, восстановление версии без родительского промпта
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrValidation некорректные входные данные
	ErrValidation = errors.New("validation failed")

	// ErrTransient конфликт сериализации или таймаут хранилища,
	// не исчерпанный внутренними повторами; запрос безопасно повторить
	ErrTransient = errors.New("transient storage error")

	// ErrVersionConflict нарушение уникальности (prompt_uuid, version_number);
	// внутренний сигнал для повтора транзакции нумерации
	ErrVersionConflict = errors.New("version number conflict")
)
