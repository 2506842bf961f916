package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptvault/internal/domain"
	"promptvault/internal/repository"
	"promptvault/internal/repository/memory"
	"promptvault/internal/service"
)

// recordingLog синхронный журнал активности для тестов
type recordingLog struct {
	mu      sync.Mutex
	entries []domain.ActivityEntry
}

func (l *recordingLog) Record(entry domain.ActivityEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

func (l *recordingLog) List(ctx context.Context, promptUUID uuid.UUID, limit int) ([]domain.ActivityEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []domain.ActivityEntry
	for i := len(l.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if l.entries[i].PromptUUID == promptUUID {
			out = append(out, l.entries[i])
		}
	}
	return out, nil
}

func (l *recordingLog) operations() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	ops := make([]string, len(l.entries))
	for i, e := range l.entries {
		ops[i] = e.Operation
	}
	return ops
}

func newTestService(t *testing.T) (*memory.Store, *service.VersionService, *recordingLog) {
	t.Helper()
	store := memory.New()
	log := &recordingLog{}
	svc := service.NewVersionService(store, service.NewSequencer(store), log)
	return store, svc, log
}

func createPrompt(t *testing.T, svc *service.VersionService, owner, title, content string) *domain.Prompt {
	t.Helper()
	prompt := &domain.Prompt{
		OwnerID: owner,
		Title:   title,
		Content: content,
	}
	_, err := svc.CreateInitial(context.Background(), prompt)
	require.NoError(t, err)
	return prompt
}

func setContent(content string) domain.PromptChanges {
	return domain.PromptChanges{Content: domain.Set(content)}
}

func TestCreateInitial(t *testing.T) {
	ctx := context.Background()
	_, svc, log := newTestService(t)

	prompt := &domain.Prompt{
		OwnerID: "user-1",
		Title:   "Greeting",
		Content: "Hello {{name}}",
		Variables: domain.Variables{
			{Name: "name", Type: domain.VariableText, Placeholder: "Имя"},
		},
	}
	version, err := svc.CreateInitial(ctx, prompt)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, prompt.UUID)
	assert.Equal(t, 1, prompt.CurrentVersion)
	assert.Equal(t, 1, version.VersionNumber)
	assert.True(t, version.IsSnapshot)
	assert.Equal(t, domain.SummaryInitial, version.ChangeSummary)
	assert.Equal(t, "Hello {{name}}", version.Content)
	assert.Contains(t, log.operations(), domain.ActivityPromptCreated)
}

func TestCreateInitialValidation(t *testing.T) {
	ctx := context.Background()
	_, svc, _ := newTestService(t)

	tests := []struct {
		name   string
		prompt *domain.Prompt
	}{
		{"missing owner", &domain.Prompt{Title: "t", Content: "c"}},
		{"missing title", &domain.Prompt{OwnerID: "u", Content: "c"}},
		{"missing content", &domain.Prompt{OwnerID: "u", Title: "t"}},
		{"bad variables", &domain.Prompt{OwnerID: "u", Title: "t", Content: "c",
			Variables: domain.Variables{{Name: "x", Type: domain.VariableSelect}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateInitial(ctx, tt.prompt)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestRecordEditCreatesVersionOnContentChange(t *testing.T) {
	ctx := context.Background()
	_, svc, log := newTestService(t)
	prompt := createPrompt(t, svc, "user-1", "Greeting", "Hello {{name}}")

	version, err := svc.RecordEdit(ctx, prompt.UUID, "user-1", setContent("Hello {{name}}, welcome back"))
	require.NoError(t, err)
	require.NotNil(t, version)

	assert.Equal(t, 2, version.VersionNumber)
	assert.False(t, version.IsSnapshot)
	assert.Equal(t, domain.SummaryContentUpdated, version.ChangeSummary)

	updated, err := svc.GetPrompt(ctx, prompt.UUID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, updated.CurrentVersion)
	assert.Equal(t, "Hello {{name}}, welcome back", updated.Content)
	assert.Contains(t, log.operations(), domain.ActivityVersionCreated)
}

func TestRecordEditSameContentSkipsVersion(t *testing.T) {
	ctx := context.Background()
	_, svc, _ := newTestService(t)
	prompt := createPrompt(t, svc, "user-1", "Greeting", "Hello {{name}}")

	changes := domain.PromptChanges{
		Title:   domain.Set("Greeting v2"),
		Content: domain.Set("Hello {{name}}"),
	}
	version, err := svc.RecordEdit(ctx, prompt.UUID, "user-1", changes)
	require.NoError(t, err)
	assert.Nil(t, version, "identical content must not extend history")

	updated, err := svc.GetPrompt(ctx, prompt.UUID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Greeting v2", updated.Title)
	assert.Equal(t, 1, updated.CurrentVersion)

	_, total, err := svc.ListVersions(ctx, prompt.UUID, "user-1", 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestRecordEditValidation(t *testing.T) {
	ctx := context.Background()
	_, svc, _ := newTestService(t)
	prompt := createPrompt(t, svc, "user-1", "Greeting", "Hello")

	tests := []struct {
		name    string
		changes domain.PromptChanges
	}{
		{"null title", domain.PromptChanges{Title: domain.SetNull[string]()}},
		{"null content", domain.PromptChanges{Content: domain.SetNull[string]()}},
		{"empty title", domain.PromptChanges{Title: domain.Set("")}},
		{"empty content", domain.PromptChanges{Content: domain.Set("")}},
		{"bad variables", domain.PromptChanges{
			Variables: domain.Set([]domain.Variable{{Name: "x", Type: "bogus"}}),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RecordEdit(ctx, prompt.UUID, "user-1", tt.changes)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestRecordEditClearsDescription(t *testing.T) {
	ctx := context.Background()
	_, svc, _ := newTestService(t)
	prompt := createPrompt(t, svc, "user-1", "Greeting", "Hello")

	_, err := svc.RecordEdit(ctx, prompt.UUID, "user-1", domain.PromptChanges{
		Description: domain.Set("черновик приветствия"),
	})
	require.NoError(t, err)

	updated, err := svc.GetPrompt(ctx, prompt.UUID, "user-1")
	require.NoError(t, err)
	require.NotNil(t, updated.Description)
	assert.Equal(t, "черновик приветствия", *updated.Description)

	_, err = svc.RecordEdit(ctx, prompt.UUID, "user-1", domain.PromptChanges{
		Description: domain.SetNull[string](),
	})
	require.NoError(t, err)

	updated, err = svc.GetPrompt(ctx, prompt.UUID, "user-1")
	require.NoError(t, err)
	assert.Nil(t, updated.Description)
}

func TestCreateSnapshot(t *testing.T) {
	ctx := context.Background()
	_, svc, log := newTestService(t)
	prompt := createPrompt(t, svc, "user-1", "Greeting", "Hello")

	version, err := svc.CreateSnapshot(ctx, prompt.UUID, "user-1", "before big rewrite")
	require.NoError(t, err)

	assert.Equal(t, 2, version.VersionNumber)
	assert.True(t, version.IsSnapshot)
	assert.Equal(t, domain.SummaryManualSnapshot, version.ChangeSummary)
	assert.Equal(t, "before big rewrite", version.Annotation)
	assert.Equal(t, "Hello", version.Content, "snapshot captures content as-is")
	assert.Contains(t, log.operations(), domain.ActivitySnapshotCreated)

	_, err = svc.CreateSnapshot(ctx, prompt.UUID, "user-1", "")
	assert.ErrorIs(t, err, domain.ErrValidation)

	long := make([]rune, domain.MaxAnnotationLength+1)
	for i := range long {
		long[i] = 'ф'
	}
	_, err = svc.CreateSnapshot(ctx, prompt.UUID, "user-1", string(long))
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRestoreIsNonDestructive(t *testing.T) {
	ctx := context.Background()
	_, svc, _ := newTestService(t)
	prompt := createPrompt(t, svc, "user-1", "Greeting", "Hello {{name}}")

	v2, err := svc.RecordEdit(ctx, prompt.UUID, "user-1", setContent("Hello {{name}}, welcome"))
	require.NoError(t, err)
	_, err = svc.RecordEdit(ctx, prompt.UUID, "user-1", setContent("Hi there"))
	require.NoError(t, err)

	restored, created, err := svc.Restore(ctx, v2.ID, "user-1", "откат эксперимента")
	require.NoError(t, err)

	assert.Equal(t, "Hello {{name}}, welcome", restored.Content)
	assert.Equal(t, 4, restored.CurrentVersion)
	assert.Equal(t, 4, created.VersionNumber)
	assert.True(t, created.IsSnapshot)
	assert.Equal(t, domain.SummaryRestoredFrom(2), created.ChangeSummary)
	assert.Equal(t, "откат эксперимента", created.Annotation)

	// промежуточные версии не тронуты
	versions, total, err := svc.ListVersions(ctx, prompt.UUID, "user-1", 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	numbers := make([]int, len(versions))
	for i, v := range versions {
		numbers[i] = v.VersionNumber
	}
	assert.Equal(t, []int{4, 3, 2, 1}, numbers)
}

func TestRestoreUnknownVersion(t *testing.T) {
	_, svc, _ := newTestService(t)
	_, _, err := svc.Restore(context.Background(), 404, "user-1", "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateAnnotation(t *testing.T) {
	ctx := context.Background()
	_, svc, _ := newTestService(t)
	prompt := createPrompt(t, svc, "user-1", "Greeting", "Hello")

	v2, err := svc.RecordEdit(ctx, prompt.UUID, "user-1", setContent("Hi"))
	require.NoError(t, err)

	require.NoError(t, svc.UpdateAnnotation(ctx, v2.ID, "user-1", "keeper"))
	versions, _, err := svc.ListVersions(ctx, prompt.UUID, "user-1", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, "keeper", versions[0].Annotation)

	// пустая строка очищает заметку
	require.NoError(t, svc.UpdateAnnotation(ctx, v2.ID, "user-1", ""))
	versions, _, err = svc.ListVersions(ctx, prompt.UUID, "user-1", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, "", versions[0].Annotation)

	err = svc.UpdateAnnotation(ctx, v2.ID, "other-user", "hijack")
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestDeleteVersionGuards(t *testing.T) {
	ctx := context.Background()
	_, svc, _ := newTestService(t)
	prompt := createPrompt(t, svc, "user-1", "Greeting", "Hello")

	v2, err := svc.RecordEdit(ctx, prompt.UUID, "user-1", setContent("Hi"))
	require.NoError(t, err)
	_, err = svc.RecordEdit(ctx, prompt.UUID, "user-1", setContent("Hey"))
	require.NoError(t, err)

	snap, err := svc.CreateSnapshot(ctx, prompt.UUID, "user-1", "milestone")
	require.NoError(t, err)

	err = svc.DeleteVersion(ctx, snap.ID, "user-1")
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)

	err = svc.DeleteVersion(ctx, v2.ID, "other-user")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	require.NoError(t, svc.DeleteVersion(ctx, v2.ID, "user-1"))

	// удаление из середины оставляет дыру в нумерации
	versions, total, err := svc.ListVersions(ctx, prompt.UUID, "user-1", 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	numbers := make([]int, len(versions))
	for i, v := range versions {
		numbers[i] = v.VersionNumber
	}
	assert.Equal(t, []int{4, 3, 1}, numbers)

	// следующий номер продолжает расти от current_version
	v5, err := svc.RecordEdit(ctx, prompt.UUID, "user-1", setContent("Hello again"))
	require.NoError(t, err)
	assert.Equal(t, 5, v5.VersionNumber)
}

func TestDeleteLastRemainingVersion(t *testing.T) {
	ctx := context.Background()
	store, svc, _ := newTestService(t)

	// единственная обычная версия встречается только в осиротевшей
	// истории, поэтому состояние готовится напрямую
	prompt := &domain.Prompt{
		UUID:           uuid.New(),
		OwnerID:        "user-1",
		Title:          "Orphan",
		Content:        "body",
		CurrentVersion: 1,
	}
	var only *domain.PromptVersion
	err := store.WithinTx(ctx, func(tx repository.HistoryTx) error {
		if err := tx.InsertPrompt(ctx, prompt); err != nil {
			return err
		}
		only = &domain.PromptVersion{
			PromptUUID:    prompt.UUID,
			VersionNumber: 1,
			Title:         prompt.Title,
			Content:       prompt.Content,
			ChangeSummary: domain.SummaryContentUpdated,
			CreatedBy:     "user-1",
		}
		return tx.InsertVersion(ctx, only)
	})
	require.NoError(t, err)

	err = svc.DeleteVersion(ctx, only.ID, "user-1")
	require.ErrorIs(t, err, domain.ErrInvalidOperation)
	assert.Contains(t, err.Error(), "last remaining version")
}

func TestListVersionsPaging(t *testing.T) {
	ctx := context.Background()
	_, svc, _ := newTestService(t)
	prompt := createPrompt(t, svc, "user-1", "Greeting", "v1")

	for i := 2; i <= 6; i++ {
		_, err := svc.RecordEdit(ctx, prompt.UUID, "user-1", setContent(fmt.Sprintf("v%d", i)))
		require.NoError(t, err)
	}

	page, total, err := svc.ListVersions(ctx, prompt.UUID, "user-1", 2, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 6, total)
	require.Len(t, page, 2)
	assert.Equal(t, 4, page[0].VersionNumber)
	assert.Equal(t, 3, page[1].VersionNumber)

	// limit вне диапазона нормализуется, а не отклоняется
	page, total, err = svc.ListVersions(ctx, prompt.UUID, "user-1", -1, -10)
	require.NoError(t, err)
	assert.EqualValues(t, 6, total)
	assert.Len(t, page, 6)

	page, _, err = svc.ListVersions(ctx, prompt.UUID, "user-1", 10, 100)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestOwnershipChecks(t *testing.T) {
	ctx := context.Background()
	_, svc, _ := newTestService(t)
	prompt := createPrompt(t, svc, "user-1", "Greeting", "Hello")

	_, err := svc.GetPrompt(ctx, prompt.UUID, "other-user")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.GetPrompt(ctx, uuid.New(), "user-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.RecordEdit(ctx, prompt.UUID, "other-user", setContent("hijack"))
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, _, err = svc.ListVersions(ctx, prompt.UUID, "other-user", 10, 0)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	err = svc.DeletePrompt(ctx, prompt.UUID, "other-user")
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestDeletePromptRemovesHistory(t *testing.T) {
	ctx := context.Background()
	_, svc, log := newTestService(t)
	prompt := createPrompt(t, svc, "user-1", "Greeting", "Hello")
	_, err := svc.RecordEdit(ctx, prompt.UUID, "user-1", setContent("Hi"))
	require.NoError(t, err)

	require.NoError(t, svc.DeletePrompt(ctx, prompt.UUID, "user-1"))

	_, err = svc.GetPrompt(ctx, prompt.UUID, "user-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Contains(t, log.operations(), domain.ActivityPromptDeleted)
}

func TestConcurrentRecordEdits(t *testing.T) {
	ctx := context.Background()
	_, svc, _ := newTestService(t)
	prompt := createPrompt(t, svc, "user-1", "Greeting", "v0")

	const writers = 20
	var wg sync.WaitGroup
	errs := make(chan error, writers)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.RecordEdit(ctx, prompt.UUID, "user-1", setContent(fmt.Sprintf("concurrent edit %d", i)))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	versions, total, err := svc.ListVersions(ctx, prompt.UUID, "user-1", 100, 0)
	require.NoError(t, err)
	require.EqualValues(t, writers+1, total)

	// номера уникальны и непрерывны: 1..21
	seen := make(map[int]bool, len(versions))
	for _, v := range versions {
		assert.False(t, seen[v.VersionNumber], "duplicate version number %d", v.VersionNumber)
		seen[v.VersionNumber] = true
	}
	for n := 1; n <= writers+1; n++ {
		assert.True(t, seen[n], "missing version number %d", n)
	}

	updated, err := svc.GetPrompt(ctx, prompt.UUID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, writers+1, updated.CurrentVersion)
}
