package task

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrTaskNotFound = errors.New("task not found")
	ErrStepNotFound = errors.New("step not found")
)

type StepSource struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type StepAction struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

type Step struct {
	ID           uuid.UUID   `json:"id"`
	Text         string      `json:"text"`
	Summary      string      `json:"summary,omitempty"`
	Detail       string      `json:"detail,omitempty"`
	TimeEstimate string      `json:"timeEstimate,omitempty"`
	Source       *StepSource `json:"source,omitempty"`
	Action       *StepAction `json:"action,omitempty"`
	Done         bool        `json:"done"`
}

type Task struct {
	ID         uuid.UUID `json:"id"`
	Title      string    `json:"title"`
	Category   string    `json:"category,omitempty"`
	Steps      []Step    `json:"steps"`
	CreateTime time.Time `json:"createTime"`
	UpdateTime time.Time `json:"updateTime"`
}

// Step returns the step with the given id, or nil.
func (t *Task) Step(id uuid.UUID) *Step {
	for i := range t.Steps {
		if t.Steps[i].ID == id {
			return &t.Steps[i]
		}
	}
	return nil
}

// TaskUpdate is a partial update; nil fields are left untouched.
type TaskUpdate struct {
	Title    *string
	Category *string
}

// Store is the persistence collaborator. The engine treats it as a
// fallible external system and does not manage its consistency.
type Store interface {
	AddTask(ctx context.Context, title, category string, steps []Step) (*Task, error)
	GetTask(ctx context.Context, id uuid.UUID) (*Task, error)
	GetTasks(ctx context.Context) ([]*Task, error)
	UpdateTask(ctx context.Context, id uuid.UUID, update TaskUpdate) (*Task, error)
	AppendSteps(ctx context.Context, id uuid.UUID, steps []Step) (*Task, error)
	ToggleStep(ctx context.Context, taskID, stepID uuid.UUID) error
}
