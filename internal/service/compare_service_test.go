package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptvault/internal/domain"
	"promptvault/internal/repository/memory"
	"promptvault/internal/service"
)

func TestCompare(t *testing.T) {
	ctx := context.Background()
	store, svc, _ := newTestService(t)
	cmp := service.NewCompareService(store)
	prompt := createPrompt(t, svc, "user-1", "Greeting", "Hello {{name}}")

	v2, err := svc.RecordEdit(ctx, prompt.UUID, "user-1", setContent("Hello {{name}}, welcome"))
	require.NoError(t, err)

	versions, _, err := svc.ListVersions(ctx, prompt.UUID, "user-1", 10, 0)
	require.NoError(t, err)
	v1 := versions[len(versions)-1]

	from, to, err := cmp.Compare(ctx, prompt.UUID, "user-1", v1.ID, v2.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hello {{name}}", from.Content)
	assert.Equal(t, "Hello {{name}}, welcome", to.Content)
	assert.Equal(t, 1, from.VersionNumber)
	assert.Equal(t, 2, to.VersionNumber)
}

func TestCompareGuards(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	log := &recordingLog{}
	svc := service.NewVersionService(store, service.NewSequencer(store), log)
	cmp := service.NewCompareService(store)

	first := createPrompt(t, svc, "user-1", "First", "one")
	second := createPrompt(t, svc, "user-1", "Second", "two")

	fv, err := svc.RecordEdit(ctx, first.UUID, "user-1", setContent("one bis"))
	require.NoError(t, err)
	sv, err := svc.RecordEdit(ctx, second.UUID, "user-1", setContent("two bis"))
	require.NoError(t, err)

	// версии разных промптов сравнивать нельзя
	_, _, err = cmp.Compare(ctx, first.UUID, "user-1", fv.ID, sv.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)

	_, _, err = cmp.Compare(ctx, first.UUID, "user-1", fv.ID, 9999)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, _, err = cmp.Compare(ctx, first.UUID, "other-user", fv.ID, fv.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, _, err = cmp.Compare(ctx, uuid.New(), "user-1", fv.ID, fv.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
