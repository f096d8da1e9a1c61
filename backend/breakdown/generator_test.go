package breakdown

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wthorbecke/gather/backend/model"
	"github.com/wthorbecke/gather/shared"
)

type scriptedProvider struct {
	response *model.ChatResponse
	err      error
	requests []model.ChatRequest
}

func (p *scriptedProvider) Invoke(_ context.Context, req model.ChatRequest, _ ...model.InvokeOption) (*model.ChatResponse, error) {
	p.requests = append(p.requests, req)
	return p.response, p.err
}

func toolResponse(t *testing.T, plan proposedPlan) *model.ChatResponse {
	t.Helper()

	input, err := json.Marshal(plan)
	require.NoError(t, err)

	return &model.ChatResponse{Content: []model.ContentBlock{
		&model.ToolUseBlock{ID: "tool_1", Tool: proposeStepsTool, Input: input},
	}}
}

func TestGenerator_UsesModelPlan(t *testing.T) {
	provider := &scriptedProvider{response: toolResponse(t, proposedPlan{
		Category: "admin",
		Steps: []proposedStep{
			{Text: "Check your passport's expiry date", TimeEstimate: "5 min"},
			{Text: "Book a renewal appointment", SourceName: "Passport office", SourceURL: "https://example.org/renew"},
			{Text: "Gather the required documents", ActionText: "Open checklist", ActionURL: "https://example.org/checklist"},
		},
	})}
	generator := NewGenerator(provider, "claude-3-5-sonnet-latest")

	steps, category, usedFallback := generator.GenerateSteps(context.Background(), "Renew passport", "Related past tasks: Renew ID card")

	assert.False(t, usedFallback)
	assert.Equal(t, "admin", category)
	require.Len(t, steps, 3)
	assert.Equal(t, "Check your passport's expiry date", steps[0].Text)
	require.NotNil(t, steps[1].Source)
	assert.Equal(t, "Passport office", steps[1].Source.Name)
	require.NotNil(t, steps[2].Action)
	assert.Equal(t, "Open checklist", steps[2].Action.Text)

	require.Len(t, provider.requests, 1)
	req := provider.requests[0]
	require.Len(t, req.Tools, 1)
	assert.Equal(t, proposeStepsTool, req.Tools[0].Name)
	assert.Contains(t, req.Messages[0].Content, "Renew passport")
	assert.Contains(t, req.Messages[0].Content, "Renew ID card")
}

func TestGenerator_ProviderErrorFallsBack(t *testing.T) {
	provider := &scriptedProvider{err: shared.Errorf(shared.ErrorSourceProvider, "model call failed")}
	generator := NewGenerator(provider, "claude-3-5-sonnet-latest")

	steps, category, usedFallback := generator.GenerateSteps(context.Background(), "Cancel gym membership", "")

	assert.True(t, usedFallback)
	assert.Equal(t, "admin", category)
	require.Len(t, steps, 3)
	assert.Contains(t, steps[0].Text, "cancellation")
}

func TestGenerator_MissingToolCallFallsBack(t *testing.T) {
	provider := &scriptedProvider{response: &model.ChatResponse{Content: []model.ContentBlock{
		&model.TextBlock{Text: "Here are some steps: ..."},
	}}}
	generator := NewGenerator(provider, "claude-3-5-sonnet-latest")

	steps, _, usedFallback := generator.GenerateSteps(context.Background(), "Pay the water bill", "")

	assert.True(t, usedFallback)
	require.Len(t, steps, 3)
}

func TestGenerator_MalformedPayloadFallsBack(t *testing.T) {
	provider := &scriptedProvider{response: &model.ChatResponse{Content: []model.ContentBlock{
		&model.ToolUseBlock{ID: "tool_1", Tool: proposeStepsTool, Input: json.RawMessage(`{"steps": "not a list"}`)},
	}}}
	generator := NewGenerator(provider, "claude-3-5-sonnet-latest")

	_, _, usedFallback := generator.GenerateSteps(context.Background(), "Learn the ukulele", "")
	assert.True(t, usedFallback)
}

func TestGenerator_BlankStepsFallsBack(t *testing.T) {
	provider := &scriptedProvider{response: toolResponse(t, proposedPlan{
		Steps: []proposedStep{{Text: "   "}, {Text: ""}},
	})}
	generator := NewGenerator(provider, "claude-3-5-sonnet-latest")

	_, _, usedFallback := generator.GenerateSteps(context.Background(), "Write thank-you cards", "")
	assert.True(t, usedFallback)
}

func TestGenerator_NilProviderFallsBack(t *testing.T) {
	generator := NewGenerator(nil, "")

	steps, _, usedFallback := generator.GenerateSteps(context.Background(), "Fix the bike", "")
	assert.True(t, usedFallback)
	require.Len(t, steps, 3)
}
