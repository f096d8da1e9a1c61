package conversation

import (
	"strings"

	"github.com/google/uuid"

	"github.com/wthorbecke/gather/backend/stream"
	"github.com/wthorbecke/gather/backend/task"
)

// Action types the engine is willing to execute. Anything else coming from
// the model is dropped.
const (
	ActionMarkStepDone = "mark_step_done"
	ActionFocusStep    = "focus_step"
	ActionCreateTask   = "create_task"
	ActionShowSources  = "show_sources"
)

// ValidateActions filters model-proposed actions down to the ones that are
// allowed and well-formed against the current task. It is a pure function;
// invalid actions are dropped, never repaired.
func ValidateActions(actions []stream.ProposedAction, current *task.Task) []stream.ProposedAction {
	var valid []stream.ProposedAction
	for _, action := range actions {
		if isValidAction(action, current) {
			valid = append(valid, action)
		}
	}
	return valid
}

func isValidAction(action stream.ProposedAction, current *task.Task) bool {
	switch action.Type {
	case ActionMarkStepDone, ActionFocusStep:
		if current == nil {
			return false
		}
		stepID, err := uuid.Parse(action.StepID)
		if err != nil {
			return false
		}
		return current.Step(stepID) != nil

	case ActionCreateTask:
		return strings.TrimSpace(action.Title) != ""

	case ActionShowSources:
		return true

	default:
		return false
	}
}
