package conversation

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wthorbecke/gather/backend/stream"
	"github.com/wthorbecke/gather/backend/task"
)

func TestValidateActions(t *testing.T) {
	stepID := uuid.New()
	current := &task.Task{
		ID:    uuid.New(),
		Title: "Renew passport",
		Steps: []task.Step{{ID: stepID, Text: "Book an appointment"}},
	}

	tests := []struct {
		name    string
		action  stream.ProposedAction
		current *task.Task
		valid   bool
	}{
		{
			name:    "mark_step_done with known step",
			action:  stream.ProposedAction{Type: ActionMarkStepDone, StepID: stepID.String()},
			current: current,
			valid:   true,
		},
		{
			name:    "mark_step_done with unknown step",
			action:  stream.ProposedAction{Type: ActionMarkStepDone, StepID: uuid.NewString()},
			current: current,
			valid:   false,
		},
		{
			name:    "mark_step_done with garbage step id",
			action:  stream.ProposedAction{Type: ActionMarkStepDone, StepID: "step-7"},
			current: current,
			valid:   false,
		},
		{
			name:    "mark_step_done without a current task",
			action:  stream.ProposedAction{Type: ActionMarkStepDone, StepID: stepID.String()},
			current: nil,
			valid:   false,
		},
		{
			name:    "focus_step with known step",
			action:  stream.ProposedAction{Type: ActionFocusStep, StepID: stepID.String()},
			current: current,
			valid:   true,
		},
		{
			name:    "create_task with title",
			action:  stream.ProposedAction{Type: ActionCreateTask, Title: "Get passport photos"},
			current: nil,
			valid:   true,
		},
		{
			name:    "create_task with blank title",
			action:  stream.ProposedAction{Type: ActionCreateTask, Title: "   "},
			current: current,
			valid:   false,
		},
		{
			name:    "show_sources always allowed",
			action:  stream.ProposedAction{Type: ActionShowSources},
			current: nil,
			valid:   true,
		},
		{
			name:    "unknown type fails closed",
			action:  stream.ProposedAction{Type: "delete_everything"},
			current: current,
			valid:   false,
		},
		{
			name:    "empty type fails closed",
			action:  stream.ProposedAction{},
			current: current,
			valid:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			valid := ValidateActions([]stream.ProposedAction{tt.action}, tt.current)
			if tt.valid {
				require.Len(t, valid, 1)
				assert.Equal(t, tt.action, valid[0])
			} else {
				assert.Empty(t, valid)
			}
		})
	}
}

func TestValidateActions_KeepsOrderAndDropsInvalid(t *testing.T) {
	stepID := uuid.New()
	current := &task.Task{ID: uuid.New(), Steps: []task.Step{{ID: stepID}}}

	actions := []stream.ProposedAction{
		{Type: ActionShowSources},
		{Type: "reboot"},
		{Type: ActionMarkStepDone, StepID: stepID.String()},
	}

	valid := ValidateActions(actions, current)
	require.Len(t, valid, 2)
	assert.Equal(t, ActionShowSources, valid[0].Type)
	assert.Equal(t, ActionMarkStepDone, valid[1].Type)
}
