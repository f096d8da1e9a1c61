package conversation

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wthorbecke/gather/backend/model"
)

func TestHistory_KeepsRecentTurns(t *testing.T) {
	history := NewHistory(3)

	for i := 0; i < 5; i++ {
		history.Append(model.RoleUser, fmt.Sprintf("message %d", i))
	}

	messages := history.ModelMessages()
	require.Len(t, messages, 3)
	assert.Equal(t, "message 2", messages[0].Content)
	assert.Equal(t, "message 4", messages[2].Content)
}

func TestHistory_DefaultLimit(t *testing.T) {
	history := NewHistory(0)

	for i := 0; i < DefaultHistoryLimit+5; i++ {
		history.Append(model.RoleAssistant, "turn")
	}

	assert.Len(t, history.Turns(), DefaultHistoryLimit)
}

func TestHistory_PreservesRoles(t *testing.T) {
	history := NewHistory(10)
	history.Append(model.RoleUser, "Renew my passport")
	history.Append(model.RoleAssistant, "Created the task.")

	messages := history.ModelMessages()
	require.Len(t, messages, 2)
	assert.Equal(t, model.RoleUser, messages[0].Role)
	assert.Equal(t, model.RoleAssistant, messages[1].Role)
}
