// Package memory содержит in-memory реализацию хранилища истории.
// Используется в тестах сервисного и HTTP-слоев вместо Postgres;
// соблюдает те же контракты, включая уникальность
// (prompt_uuid, version_number) и откат транзакции при ошибке.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"promptvault/internal/domain"
	"promptvault/internal/repository"
)

type Store struct {
	mu             sync.Mutex
	prompts        map[uuid.UUID]*domain.Prompt
	versions       map[int64]*domain.PromptVersion
	nextVersionID  int64
	activities     []domain.ActivityEntry
	nextActivityID int64
}

func New() *Store {
	return &Store{
		prompts:  make(map[uuid.UUID]*domain.Prompt),
		versions: make(map[int64]*domain.PromptVersion),
	}
}

func clonePrompt(p *domain.Prompt) *domain.Prompt {
	cp := *p
	cp.Variables = append(domain.Variables(nil), p.Variables...)
	if p.Description != nil {
		d := *p.Description
		cp.Description = &d
	}
	return &cp
}

func cloneVersion(v *domain.PromptVersion) *domain.PromptVersion {
	cv := *v
	cv.Variables = append(domain.Variables(nil), v.Variables...)
	return &cv
}

// WithinTx сериализует транзакции общим мьютексом и откатывает
// изменения fn через снимок состояния
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.HistoryTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.snapshotLocked()
	if err := fn(&memTx{store: s}); err != nil {
		s.restoreLocked(snapshot)
		return err
	}
	return nil
}

type storeSnapshot struct {
	prompts       map[uuid.UUID]*domain.Prompt
	versions      map[int64]*domain.PromptVersion
	nextVersionID int64
}

func (s *Store) snapshotLocked() storeSnapshot {
	snap := storeSnapshot{
		prompts:       make(map[uuid.UUID]*domain.Prompt, len(s.prompts)),
		versions:      make(map[int64]*domain.PromptVersion, len(s.versions)),
		nextVersionID: s.nextVersionID,
	}
	for k, v := range s.prompts {
		snap.prompts[k] = clonePrompt(v)
	}
	for k, v := range s.versions {
		snap.versions[k] = cloneVersion(v)
	}
	return snap
}

func (s *Store) restoreLocked(snap storeSnapshot) {
	s.prompts = snap.prompts
	s.versions = snap.versions
	s.nextVersionID = snap.nextVersionID
}

func (s *Store) PromptByUUID(ctx context.Context, promptUUID uuid.UUID) (*domain.Prompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prompt, ok := s.prompts[promptUUID]
	if !ok {
		return nil, fmt.Errorf("%w: prompt %s", domain.ErrNotFound, promptUUID)
	}
	return clonePrompt(prompt), nil
}

func (s *Store) ListPrompts(ctx context.Context, ownerID string) ([]domain.Prompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var prompts []domain.Prompt
	for _, p := range s.prompts {
		if p.OwnerID == ownerID {
			prompts = append(prompts, *clonePrompt(p))
		}
	}
	sort.Slice(prompts, func(i, j int) bool {
		return prompts[i].UpdatedAt.After(prompts[j].UpdatedAt)
	})
	return prompts, nil
}

func (s *Store) DeletePrompt(ctx context.Context, promptUUID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.prompts[promptUUID]; !ok {
		return fmt.Errorf("%w: prompt %s", domain.ErrNotFound, promptUUID)
	}
	delete(s.prompts, promptUUID)
	for id, v := range s.versions {
		if v.PromptUUID == promptUUID {
			delete(s.versions, id)
		}
	}
	return nil
}

func (s *Store) VersionByID(ctx context.Context, id int64) (*domain.PromptVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.versionByIDLocked(id)
}

func (s *Store) versionByIDLocked(id int64) (*domain.PromptVersion, error) {
	version, ok := s.versions[id]
	if !ok {
		return nil, fmt.Errorf("%w: version %d", domain.ErrNotFound, id)
	}
	return cloneVersion(version), nil
}

func (s *Store) ListVersions(ctx context.Context, promptUUID uuid.UUID, limit, offset int) ([]domain.PromptVersion, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []domain.PromptVersion
	for _, v := range s.versions {
		if v.PromptUUID == promptUUID {
			all = append(all, *cloneVersion(v))
		}
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].VersionNumber > all[j].VersionNumber
	})

	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (s *Store) UpdateAnnotation(ctx context.Context, id int64, annotation string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	version, ok := s.versions[id]
	if !ok {
		return fmt.Errorf("%w: version %d", domain.ErrNotFound, id)
	}
	version.Annotation = annotation
	return nil
}

func (s *Store) Insert(ctx context.Context, entry *domain.ActivityEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextActivityID++
	entry.ID = s.nextActivityID
	entry.CreatedAt = time.Now()
	s.activities = append(s.activities, *entry)
	return nil
}

func (s *Store) ListByPrompt(ctx context.Context, promptUUID uuid.UUID, limit int) ([]domain.ActivityEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []domain.ActivityEntry
	for i := len(s.activities) - 1; i >= 0 && len(entries) < limit; i-- {
		if s.activities[i].PromptUUID == promptUUID {
			entries = append(entries, s.activities[i])
		}
	}
	return entries, nil
}

// memTx работает с уже заблокированным Store
type memTx struct {
	store *Store
}

func (t *memTx) InsertPrompt(ctx context.Context, prompt *domain.Prompt) error {
	if _, ok := t.store.prompts[prompt.UUID]; ok {
		return fmt.Errorf("prompt %s already exists", prompt.UUID)
	}
	now := time.Now()
	prompt.CreatedAt = now
	prompt.UpdatedAt = now
	t.store.prompts[prompt.UUID] = clonePrompt(prompt)
	return nil
}

func (t *memTx) PromptForUpdate(ctx context.Context, promptUUID uuid.UUID) (*domain.Prompt, error) {
	prompt, ok := t.store.prompts[promptUUID]
	if !ok {
		return nil, fmt.Errorf("%w: prompt %s", domain.ErrNotFound, promptUUID)
	}
	return clonePrompt(prompt), nil
}

func (t *memTx) UpdatePromptFields(ctx context.Context, prompt *domain.Prompt) error {
	existing, ok := t.store.prompts[prompt.UUID]
	if !ok {
		return fmt.Errorf("%w: prompt %s", domain.ErrNotFound, prompt.UUID)
	}
	prompt.CreatedAt = existing.CreatedAt
	prompt.UpdatedAt = time.Now()
	t.store.prompts[prompt.UUID] = clonePrompt(prompt)
	return nil
}

func (t *memTx) InsertVersion(ctx context.Context, version *domain.PromptVersion) error {
	for _, v := range t.store.versions {
		if v.PromptUUID == version.PromptUUID && v.VersionNumber == version.VersionNumber {
			return fmt.Errorf("%w: prompt %s number %d",
				domain.ErrVersionConflict, version.PromptUUID, version.VersionNumber)
		}
	}
	t.store.nextVersionID++
	version.ID = t.store.nextVersionID
	version.CreatedAt = time.Now()
	t.store.versions[version.ID] = cloneVersion(version)
	return nil
}

func (t *memTx) VersionByID(ctx context.Context, id int64) (*domain.PromptVersion, error) {
	return t.store.versionByIDLocked(id)
}

func (t *memTx) DeleteVersion(ctx context.Context, id int64) error {
	if _, ok := t.store.versions[id]; !ok {
		return fmt.Errorf("%w: version %d", domain.ErrNotFound, id)
	}
	delete(t.store.versions, id)
	return nil
}

func (t *memTx) CountVersions(ctx context.Context, promptUUID uuid.UUID) (int, error) {
	count := 0
	for _, v := range t.store.versions {
		if v.PromptUUID == promptUUID {
			count++
		}
	}
	return count, nil
}
