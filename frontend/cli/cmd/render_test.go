package cmd

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/wthorbecke/gather/backend/conversation"
	"github.com/wthorbecke/gather/backend/stream"
	"github.com/wthorbecke/gather/backend/task"
)

func TestRenderCard(t *testing.T) {
	t.Run("question with quick replies", func(t *testing.T) {
		out := renderCard(conversation.Card{
			Kind:         conversation.CardQuestion,
			Text:         "Which gym is it?",
			QuickReplies: []string{"Planet Fitness", "Other"},
		})
		assert.Contains(t, out, "? Which gym is it?")
		assert.Contains(t, out, "Planet Fitness | Other")
	})

	t.Run("question shows gathering progress", func(t *testing.T) {
		out := renderCard(conversation.Card{
			Kind:          conversation.CardQuestion,
			Text:          "When works best for you?",
			QuestionIndex: 2,
			QuestionTotal: 3,
		})
		assert.Contains(t, out, "? When works best for you? (2/3)")
	})

	t.Run("error offers retry", func(t *testing.T) {
		out := renderCard(conversation.Card{
			Kind:      conversation.CardError,
			Text:      "Something went wrong.",
			Retryable: true,
		})
		assert.Contains(t, out, "/retry")
	})

	t.Run("answer with sources and actions", func(t *testing.T) {
		out := renderCard(conversation.Card{
			Kind:    conversation.CardAnswer,
			Text:    "Renewal takes 4-6 weeks.",
			Sources: []stream.SourceRef{{Name: "Passport office", URL: "https://example.org"}},
			Actions: []stream.ProposedAction{{Type: "create_task", Label: "Track this"}},
		})
		assert.Contains(t, out, "Renewal takes 4-6 weeks.")
		assert.Contains(t, out, "Passport office")
		assert.Contains(t, out, "Track this")
	})
}

func TestRenderTask(t *testing.T) {
	out := renderTask(&task.Task{
		ID:       uuid.New(),
		Title:    "Renew passport",
		Category: "admin",
		Steps: []task.Step{
			{ID: uuid.New(), Text: "Check the expiry date", Done: true},
			{ID: uuid.New(), Text: "Book an appointment", TimeEstimate: "10 min"},
		},
	})

	assert.Contains(t, out, "Renew passport [admin]")
	assert.Contains(t, out, "[x] Check the expiry date")
	assert.Contains(t, out, "[ ] Book an appointment (10 min)")
}

func TestTaskProgress(t *testing.T) {
	progress := taskProgress(&task.Task{Steps: []task.Step{
		{Done: true}, {Done: false}, {Done: true},
	}})
	assert.Equal(t, "2/3", progress)
}

func TestSecretNameFor(t *testing.T) {
	name, err := secretNameFor("anthropic")
	assert.NoError(t, err)
	assert.Equal(t, secretAnthropicKey, name)

	_, err = secretNameFor("grok")
	assert.Error(t, err)
}
