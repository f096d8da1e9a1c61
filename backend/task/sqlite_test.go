package task

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "tasks.db")
	store, err := NewSQLiteStore(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func TestSQLiteStore_AddAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	steps := []Step{
		{ID: uuid.New(), Text: "Check the cancellation policy", TimeEstimate: "5 min"},
		{ID: uuid.New(), Text: "Send the cancellation request"},
	}

	created, err := store.AddTask(ctx, "Cancel gym membership", "admin", steps)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.False(t, created.CreateTime.IsZero())

	got, err := store.GetTask(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Cancel gym membership", got.Title)
	assert.Equal(t, "admin", got.Category)
	require.Len(t, got.Steps, 2)
	assert.Equal(t, steps[0].ID, got.Steps[0].ID)
	assert.Equal(t, "5 min", got.Steps[0].TimeEstimate)
	assert.False(t, got.Steps[0].Done)
}

func TestSQLiteStore_GetTaskNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetTask(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestSQLiteStore_GetTasksOrdered(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.AddTask(ctx, "Renew passport", "", nil)
	require.NoError(t, err)
	second, err := store.AddTask(ctx, "Pay electricity bill", "", nil)
	require.NoError(t, err)

	tasks, err := store.GetTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, first.ID, tasks[0].ID)
	assert.Equal(t, second.ID, tasks[1].ID)
	assert.NotNil(t, tasks[0].Steps, "steps should round-trip as an empty slice")
}

func TestSQLiteStore_UpdateTask(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.AddTask(ctx, "Lern guitar", "", nil)
	require.NoError(t, err)

	title := "Learn guitar"
	category := "hobby"
	updated, err := store.UpdateTask(ctx, created.ID, TaskUpdate{Title: &title, Category: &category})
	require.NoError(t, err)
	assert.Equal(t, "Learn guitar", updated.Title)
	assert.Equal(t, "hobby", updated.Category)

	got, err := store.GetTask(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Learn guitar", got.Title)
	assert.Equal(t, "hobby", got.Category)
}

func TestSQLiteStore_AppendSteps(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.AddTask(ctx, "Fix leaking faucet", "", []Step{
		{ID: uuid.New(), Text: "Identify the faucet model"},
	})
	require.NoError(t, err)

	extra := Step{ID: uuid.New(), Text: "Buy a replacement cartridge"}
	updated, err := store.AppendSteps(ctx, created.ID, []Step{extra})
	require.NoError(t, err)
	require.Len(t, updated.Steps, 2)
	assert.Equal(t, extra.ID, updated.Steps[1].ID)
}

func TestSQLiteStore_ToggleStep(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	stepID := uuid.New()
	created, err := store.AddTask(ctx, "Call the dentist", "", []Step{
		{ID: stepID, Text: "Find the phone number"},
	})
	require.NoError(t, err)

	require.NoError(t, store.ToggleStep(ctx, created.ID, stepID))

	got, err := store.GetTask(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, got.Steps[0].Done)

	require.NoError(t, store.ToggleStep(ctx, created.ID, stepID))

	got, err = store.GetTask(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, got.Steps[0].Done)
}

func TestSQLiteStore_ToggleStepUnknownStep(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.AddTask(ctx, "Write a blog post", "", nil)
	require.NoError(t, err)

	err = store.ToggleStep(ctx, created.ID, uuid.New())
	assert.ErrorIs(t, err, ErrStepNotFound)
}
