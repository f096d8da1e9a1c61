// Package breakdown turns a task title into a short list of concrete steps.
// It asks the model first and falls back to deterministic keyword templates
// whenever the remote call or its output is unusable, so step generation
// itself never fails.
package breakdown

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/invopop/jsonschema"

	"github.com/wthorbecke/gather/backend/model"
	"github.com/wthorbecke/gather/backend/task"
)

const proposeStepsTool = "propose_steps"

const generatorSystemPrompt = `You break personal tasks into small, concrete steps.
Propose between 3 and 7 steps. Each step must be a single action the user can
take. Prefer steps that take under an hour. Use the propose_steps tool.`

type proposedStep struct {
	Text         string `json:"text" jsonschema:"description=The step as a single imperative sentence"`
	Summary      string `json:"summary,omitempty" jsonschema:"description=Optional shorter label for compact display"`
	Detail       string `json:"detail,omitempty" jsonschema:"description=Optional extra guidance shown on expand"`
	TimeEstimate string `json:"timeEstimate,omitempty" jsonschema:"description=Rough duration such as '10 min'"`
	SourceName   string `json:"sourceName,omitempty" jsonschema:"description=Name of the source this step is based on"`
	SourceURL    string `json:"sourceUrl,omitempty"`
	ActionText   string `json:"actionText,omitempty" jsonschema:"description=Label for a helpful link such as 'Open form'"`
	ActionURL    string `json:"actionUrl,omitempty"`
}

type proposedPlan struct {
	Category string         `json:"category,omitempty" jsonschema:"description=Short category such as admin or finance"`
	Steps    []proposedStep `json:"steps"`
}

type Generator struct {
	provider  model.Provider
	modelName string
}

func NewGenerator(provider model.Provider, modelName string) *Generator {
	return &Generator{provider: provider, modelName: modelName}
}

// GenerateSteps produces steps for a task title. The memory argument carries
// optional recall context and may be empty. The boolean reports whether the
// deterministic fallback was used instead of the model.
func (g *Generator) GenerateSteps(ctx context.Context, title, memory string) ([]task.Step, string, bool) {
	plan, err := g.propose(ctx, title, memory)
	if err != nil {
		slog.Warn("step generation fell back to templates",
			"title", title,
			"error", err,
		)
		return FallbackSteps(title), FallbackCategory(title), true
	}

	steps := make([]task.Step, 0, len(plan.Steps))
	for _, p := range plan.Steps {
		step := task.Step{
			ID:           uuid.New(),
			Text:         strings.TrimSpace(p.Text),
			Summary:      p.Summary,
			Detail:       p.Detail,
			TimeEstimate: p.TimeEstimate,
		}
		if p.SourceName != "" || p.SourceURL != "" {
			step.Source = &task.StepSource{Name: p.SourceName, URL: p.SourceURL}
		}
		if p.ActionText != "" || p.ActionURL != "" {
			step.Action = &task.StepAction{Text: p.ActionText, URL: p.ActionURL}
		}
		steps = append(steps, step)
	}

	return steps, plan.Category, false
}

func (g *Generator) propose(ctx context.Context, title, memory string) (*proposedPlan, error) {
	if g.provider == nil {
		return nil, fmt.Errorf("no provider configured")
	}

	prompt := "Break this task into steps: " + title
	if memory != "" {
		prompt += "\n\nContext about the user: " + memory
	}

	response, err := g.provider.Invoke(ctx, model.ChatRequest{
		Model:       g.modelName,
		MaxTokens:   1024,
		Temperature: 0.2,
		System:      generatorSystemPrompt,
		Messages:    []model.Message{{Role: model.RoleUser, Content: prompt}},
		Tools: []model.ToolSpec{{
			Name:        proposeStepsTool,
			Description: "Propose the concrete steps for the task",
			Schema:      planSchema(),
		}},
	})
	if err != nil {
		return nil, err
	}

	call := response.ToolUse(proposeStepsTool)
	if call == nil {
		return nil, fmt.Errorf("model did not call %s", proposeStepsTool)
	}

	var plan proposedPlan
	if err := json.Unmarshal(call.Input, &plan); err != nil {
		return nil, fmt.Errorf("malformed %s payload: %w", proposeStepsTool, err)
	}

	return validatePlan(&plan)
}

func validatePlan(plan *proposedPlan) (*proposedPlan, error) {
	var kept []proposedStep
	for _, step := range plan.Steps {
		if strings.TrimSpace(step.Text) == "" {
			continue
		}
		kept = append(kept, step)
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("plan contained no usable steps")
	}
	plan.Steps = kept
	return plan, nil
}

func planSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	return reflector.Reflect(&proposedPlan{})
}
