// Package activity реализует журнал активности по промптам.
// Запись асинхронная и fire-and-forget: сбой журнала логируется,
// но никогда не откатывает успешную версионную операцию.
package activity

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"promptvault/internal/domain"
	"promptvault/internal/repository"
)

const (
	bufferSize   = 256
	writeTimeout = 5 * time.Second
)

type Logger struct {
	store   repository.ActivityStore
	entries chan domain.ActivityEntry
	wg      sync.WaitGroup

	closeOnce sync.Once
}

func NewLogger(store repository.ActivityStore) *Logger {
	l := &Logger{
		store:   store,
		entries: make(chan domain.ActivityEntry, bufferSize),
	}

	l.wg.Add(1)
	go l.run()

	return l
}

func (l *Logger) run() {
	defer l.wg.Done()

	for entry := range l.entries {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := l.store.Insert(ctx, &entry); err != nil {
			log.Warn().
				Err(err).
				Str("operation", entry.Operation).
				Str("prompt", entry.PromptUUID.String()).
				Msg("failed to write activity entry")
		}
		cancel()
	}
}

// Record ставит запись в очередь. Не блокирует: при переполненном
// буфере запись отбрасывается с предупреждением в лог.
func (l *Logger) Record(entry domain.ActivityEntry) {
	select {
	case l.entries <- entry:
	default:
		log.Warn().
			Str("operation", entry.Operation).
			Msg("activity buffer full, entry dropped")
	}
}

// List возвращает последние записи журнала по промпту
func (l *Logger) List(ctx context.Context, promptUUID uuid.UUID, limit int) ([]domain.ActivityEntry, error) {
	return l.store.ListByPrompt(ctx, promptUUID, limit)
}

// Close дописывает накопленные записи и останавливает журнал
func (l *Logger) Close() {
	l.closeOnce.Do(func() {
		close(l.entries)
	})
	l.wg.Wait()
}
