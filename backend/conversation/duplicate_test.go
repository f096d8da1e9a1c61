package conversation

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wthorbecke/gather/backend/task"
)

func taskList(titles ...string) []*task.Task {
	tasks := make([]*task.Task, 0, len(titles))
	for _, title := range titles {
		tasks = append(tasks, &task.Task{ID: uuid.New(), Title: title})
	}
	return tasks
}

func TestFindDuplicateTask(t *testing.T) {
	tests := []struct {
		name      string
		existing  []string
		candidate string
		wantDup   string
	}{
		{
			name:      "exact match after normalization",
			existing:  []string{"Cancel gym membership"},
			candidate: "cancel gym membership!",
			wantDup:   "Cancel gym membership",
		},
		{
			name:      "stopwords ignored",
			existing:  []string{"Cancel gym membership"},
			candidate: "cancel my gym membership",
			wantDup:   "Cancel gym membership",
		},
		{
			name:      "substring containment",
			existing:  []string{"Renew passport before the summer trip"},
			candidate: "Renew passport",
			wantDup:   "Renew passport before the summer trip",
		},
		{
			name:      "short substring is not enough",
			existing:  []string{"Call mom"},
			candidate: "Call",
			wantDup:   "",
		},
		{
			name:      "keyword overlap",
			existing:  []string{"Pay the electricity bill for March"},
			candidate: "pay electricity bill",
			wantDup:   "Pay the electricity bill for March",
		},
		{
			name:      "single shared token is not a duplicate",
			existing:  []string{"Buy birthday present for Sam"},
			candidate: "Buy groceries",
			wantDup:   "",
		},
		{
			name:      "unrelated tasks",
			existing:  []string{"Clean the garage", "Call the dentist"},
			candidate: "Write a blog post",
			wantDup:   "",
		},
		{
			name:      "empty candidate",
			existing:  []string{"Clean the garage"},
			candidate: "   ",
			wantDup:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dup := FindDuplicateTask(taskList(tt.existing...), tt.candidate)
			if tt.wantDup == "" {
				assert.Nil(t, dup)
				return
			}
			require.NotNil(t, dup)
			assert.Equal(t, tt.wantDup, dup.Title)
		})
	}
}

func TestNormalizeTitle(t *testing.T) {
	assert.Equal(t, "cancel gym membership", normalizeTitle("  Cancel   GYM membership!!  "))
	assert.Equal(t, "pay 2 bills", normalizeTitle("Pay 2 bills."))
	assert.Equal(t, "", normalizeTitle("?!"))
}

func TestBypassToken_SingleUse(t *testing.T) {
	token := NewBypassToken("Cancel gym membership")

	assert.False(t, token.Consume("Renew passport"), "wrong title must not consume")
	assert.True(t, token.Consume("cancel gym membership!"))
	assert.False(t, token.Consume("Cancel gym membership"), "token is one-shot")
}

func TestBypassToken_NilIsSafe(t *testing.T) {
	var token *BypassToken
	assert.False(t, token.Consume("anything"))
}
