package recall

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wthorbecke/gather/backend/task"
)

type stubTaskStore struct {
	task.Store
	tasks []*task.Task
}

func (s *stubTaskStore) GetTasks(_ context.Context) ([]*task.Task, error) {
	return s.tasks, nil
}

func TestTaskSource_FindsRelatedTitles(t *testing.T) {
	store := &stubTaskStore{tasks: []*task.Task{
		{ID: uuid.New(), Title: "Renew passport"},
		{ID: uuid.New(), Title: "Pay electricity bill"},
	}}
	source := NewTaskSource(store)

	memory, err := source.Lookup(context.Background(), "renew my driving passport")
	require.NoError(t, err)
	assert.Equal(t, "Related past tasks: Renew passport", memory)
}

func TestTaskSource_NoMatchReturnsEmpty(t *testing.T) {
	store := &stubTaskStore{tasks: []*task.Task{
		{ID: uuid.New(), Title: "Clean the garage"},
	}}
	source := NewTaskSource(store)

	memory, err := source.Lookup(context.Background(), "Call the dentist")
	require.NoError(t, err)
	assert.Empty(t, memory)
}
