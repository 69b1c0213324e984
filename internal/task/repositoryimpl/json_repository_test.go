package repositoryimpl

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/changepilot/changepilot/internal/intent"
	"github.com/changepilot/changepilot/internal/task"
	"github.com/changepilot/changepilot/pkg/cerr"
	"github.com/changepilot/changepilot/pkg/storage"
)

func newTestStorage(t *testing.T) *storage.LocalStorage {
	t.Helper()
	s, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return s
}

func newTestRepository(t *testing.T) *JSONRepository {
	t.Helper()
	return NewJSONRepository(newTestStorage(t))
}

func newTestTask(description string) *task.Task {
	d := &intent.Descriptor{
		Type:        intent.TypeCopyChange,
		Description: description,
		Scope:       []string{"app/components/Hero.tsx"},
		Rules:       intent.RulesFor(intent.TypeCopyChange),
		AutoCommit:  true,
		Confidence:  0.6,
	}
	return task.New(d, task.Source{Message: description, Sender: "whatsapp:+1555", Timestamp: time.Now().UTC()})
}

func TestJSONRepositoryLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	created := newTestTask("Change button text in hero")
	require.NoError(t, repo.Create(ctx, created))

	err := repo.Create(ctx, created)
	assert.True(t, cerr.IsCode(err, cerr.AlreadyExists))

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, task.StatusPending, got.Status)

	claimed, err := repo.UpdateStatus(ctx, created.ID, task.StatusProcessing, nil)
	require.NoError(t, err)
	assert.Equal(t, task.StatusProcessing, claimed.Status)
	require.NotNil(t, claimed.UpdatedAt)

	// Re-claiming is allowed; moving back to pending is not.
	_, err = repo.UpdateStatus(ctx, created.ID, task.StatusProcessing, nil)
	require.NoError(t, err)
	_, err = repo.UpdateStatus(ctx, created.ID, task.StatusPending, nil)
	assert.True(t, cerr.IsCode(err, cerr.FailedPrecondition))

	resolved, err := repo.UpdateStatus(ctx, created.ID, task.StatusSuccess, &task.Result{Details: "applied"})
	require.NoError(t, err)
	require.NotNil(t, resolved.Result)
	assert.Equal(t, task.StatusSuccess, resolved.Result.Status)
	assert.Equal(t, "applied", resolved.Result.Details)
}

func TestJSONRepositoryArchival(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	created := newTestTask("Change the cta wording")
	require.NoError(t, repo.Create(ctx, created))

	_, err := repo.UpdateStatus(ctx, created.ID, task.StatusFailed, &task.Result{Details: "edit rejected"})
	require.NoError(t, err)

	// Gone from the active listing, still readable by id.
	active, err := repo.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, active)

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusFailed, got.Status)

	// Archived tasks are immutable.
	_, err = repo.UpdateStatus(ctx, created.ID, task.StatusProcessing, nil)
	assert.True(t, cerr.IsCode(err, cerr.FailedPrecondition))

	err = repo.Delete(ctx, created.ID)
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
}

func TestJSONRepositoryList(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	first := newTestTask("first")
	require.NoError(t, repo.Create(ctx, first))
	second := newTestTask("second")
	require.NoError(t, repo.Create(ctx, second))

	_, err := repo.UpdateStatus(ctx, second.ID, task.StatusProcessing, nil)
	require.NoError(t, err)

	all, err := repo.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID, "newest first")
	assert.Equal(t, first.ID, all[1].ID)

	pending, err := repo.List(ctx, task.StatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, first.ID, pending[0].ID)
}

func TestJSONRepositoryListSkipsCorrupt(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)
	repo := NewJSONRepository(store)

	created := newTestTask("keep me")
	require.NoError(t, repo.Create(ctx, created))
	require.NoError(t, store.Write(ctx, "tasks/garbage.json", []byte("{not json")))

	all, err := repo.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, created.ID, all[0].ID)
}

func TestJSONRepositoryGetMissing(t *testing.T) {
	repo := newTestRepository(t)
	_, err := repo.Get(context.Background(), "01NOTTHERE")
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
}
