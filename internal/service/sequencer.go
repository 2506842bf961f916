package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"promptvault/internal/domain"
	"promptvault/internal/repository"
)

const (
	maxSequenceAttempts = 5
	sequenceBackoff     = 25 * time.Millisecond
)

// Sequencer выдает номера версий без коллизий при конкурентных
// писателях одного промпта. Номер читается под блокировкой строки
// промпта (FOR UPDATE), а уникальный индекс (prompt_uuid, version_number)
// страхует от потерянных обновлений: при конфликте вся транзакция
// повторяется с заново вычисленным номером.
type Sequencer struct {
	store    repository.HistoryStore
	attempts int
	backoff  time.Duration
}

func NewSequencer(store repository.HistoryStore) *Sequencer {
	return &Sequencer{
		store:    store,
		attempts: maxSequenceAttempts,
		backoff:  sequenceBackoff,
	}
}

// NextVersionNumber возвращает следующий номер версии промпта и сам
// промпт, строка которого остается заблокированной до конца транзакции
func (s *Sequencer) NextVersionNumber(ctx context.Context, tx repository.HistoryTx, promptUUID uuid.UUID) (int, *domain.Prompt, error) {
	prompt, err := tx.PromptForUpdate(ctx, promptUUID)
	if err != nil {
		return 0, nil, err
	}
	return prompt.CurrentVersion + 1, prompt, nil
}

// Run выполняет fn в транзакции, повторяя её ограниченное число раз
// при конфликте нумерации. fn обязана заново вычислять номер версии на
// каждой попытке. Исчерпание попыток возвращается как domain.ErrTransient.
func (s *Sequencer) Run(ctx context.Context, fn func(tx repository.HistoryTx) error) error {
	var err error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		err = s.store.WithinTx(ctx, fn)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return err
		}

		log.Warn().
			Int("attempt", attempt).
			Err(err).
			Msg("version sequence conflict, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.backoff * time.Duration(attempt)):
		}
	}

	return fmt.Errorf("%w: sequencing failed after %d attempts: %v", domain.ErrTransient, s.attempts, err)
}
