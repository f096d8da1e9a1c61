package model

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/wthorbecke/gather/shared/resilience"
)

const defaultMaxTokens = 1024

type AnthropicProvider struct {
	client         *anthropic.Client
	retryConfig    *resilience.RetryConfig
	retryHooks     []resilience.RetryHook
	circuitBreaker *resilience.CircuitBreaker
}

func NewAnthropicProvider(apiKey string, opts ...ProviderOption) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	providerOptions := DefaultProviderOptions("anthropic")
	for _, opt := range opts {
		opt(providerOptions)
	}

	clientOptions := []option.RequestOption{option.WithAPIKey(apiKey)}
	if providerOptions.URL != "" {
		clientOptions = append(clientOptions, option.WithBaseURL(providerOptions.URL))
	}

	hooks := providerOptions.RetryHooks
	if providerOptions.Metrics != nil {
		hooks = append(hooks, NewMetricsHook("anthropic", providerOptions.Metrics))
	}

	return &AnthropicProvider{
		client:         anthropic.NewClient(clientOptions...),
		retryConfig:    providerOptions.RetryConfig,
		retryHooks:     hooks,
		circuitBreaker: providerOptions.CircuitBreaker,
	}, nil
}

func (p *AnthropicProvider) Invoke(ctx context.Context, req ChatRequest, opts ...InvokeOption) (*ChatResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	options := &InvokeOptions{}
	for _, opt := range opts {
		opt(options)
	}

	if p.circuitBreaker != nil && !p.circuitBreaker.Allow() {
		return nil, &ProviderError{
			Provider:   "anthropic",
			Kind:       ErrorKindOverloaded,
			Message:    "circuit open",
			RetryAfter: DefaultRetryAfter(ErrorKindOverloaded),
		}
	}

	params := p.buildParams(req)

	resp, err := CallWithRetry(ctx, "anthropic", p.retryConfig, p.retryHooks,
		func(ctx context.Context) (*ChatResponse, error) {
			return p.streamOnce(ctx, params, options)
		})

	if p.circuitBreaker != nil {
		p.circuitBreaker.RecordResult(err)
	}

	return resp, err
}

func (p *AnthropicProvider) buildParams(req ChatRequest) anthropic.MessageNewParams {
	lastUserIndex := -1
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == RoleUser {
			lastUserIndex = i
			break
		}
	}

	anthropicMessages := make([]anthropic.MessageParam, len(req.Messages))
	for i, message := range req.Messages {
		block := anthropic.NewTextBlock(message.Content)
		if i == lastUserIndex {
			block.CacheControl = anthropic.F(anthropic.CacheControlEphemeralParam{
				Type: anthropic.F(anthropic.CacheControlEphemeralTypeEphemeral),
			})
		}

		switch message.Role {
		case RoleAssistant:
			anthropicMessages[i] = anthropic.NewAssistantMessage(block)
		default:
			anthropicMessages[i] = anthropic.NewUserMessage(block)
		}
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.F(req.Model),
		MaxTokens:   anthropic.F(maxTokens),
		Temperature: anthropic.F(req.Temperature),
		Messages:    anthropic.F(anthropicMessages),
	}

	if req.System != "" {
		params.System = anthropic.F([]anthropic.TextBlockParam{
			{
				Type: anthropic.F(anthropic.TextBlockParamTypeText),
				Text: anthropic.F(req.System),
				CacheControl: anthropic.F(anthropic.CacheControlEphemeralParam{
					Type: anthropic.F(anthropic.CacheControlEphemeralTypeEphemeral),
				}),
			},
		})
	}

	if len(req.Tools) > 0 {
		var tools []anthropic.ToolUnionUnionParam
		for _, tool := range req.Tools {
			tools = append(tools, anthropic.ToolParam{
				Name:        anthropic.F(tool.Name),
				Description: anthropic.F(tool.Description),
				InputSchema: anthropic.F(tool.Schema),
			})
		}
		params.ToolChoice = anthropic.F(anthropic.ToolChoiceUnionParam(anthropic.ToolChoiceAutoParam{
			Type: anthropic.F(anthropic.ToolChoiceAutoTypeAuto),
		}))
		params.Tools = anthropic.F(tools)
	}

	return params
}

func (p *AnthropicProvider) streamOnce(ctx context.Context, params anthropic.MessageNewParams, options *InvokeOptions) (*ChatResponse, error) {
	stream := p.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	anthropicMessage := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		anthropicMessage.Accumulate(event)

		switch delta := event.Delta.(type) {
		case anthropic.ContentBlockDeltaEventDelta:
			if delta.Text != "" && options.StreamCallback != nil {
				options.StreamCallback(ctx, delta.Text)
			}
		}
	}

	if stream.Err() != nil {
		return nil, p.parseError(stream.Err())
	}

	content := make([]ContentBlock, 0, len(anthropicMessage.Content))
	for _, block := range anthropicMessage.Content {
		switch block := block.AsUnion().(type) {
		case anthropic.TextBlock:
			content = append(content, &TextBlock{Text: block.Text})
		case anthropic.ToolUseBlock:
			content = append(content, &ToolUseBlock{
				ID:    block.ID,
				Tool:  block.Name,
				Input: block.Input,
			})
		}
	}

	return &ChatResponse{
		Content:    content,
		StopReason: string(anthropicMessage.StopReason),
		Usage: Usage{
			InputTokens:  anthropicMessage.Usage.InputTokens,
			OutputTokens: anthropicMessage.Usage.OutputTokens,
		},
	}, nil
}

func (p *AnthropicProvider) parseError(err error) *ProviderError {
	apiErr, ok := err.(*anthropic.Error)
	if !ok {
		return Classify("anthropic", err)
	}

	kind := KindForStatus(apiErr.StatusCode)
	pe := &ProviderError{
		Provider:   "anthropic",
		Kind:       kind,
		Message:    fmt.Sprintf("request failed with status %d", apiErr.StatusCode),
		StatusCode: apiErr.StatusCode,
		RetryAfter: DefaultRetryAfter(kind),
		Err:        err,
	}

	if apiErr.Response != nil {
		if retryAfter := apiErr.Response.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, parseErr := strconv.Atoi(retryAfter); parseErr == nil {
				pe.RetryAfter = time.Duration(seconds) * time.Second
			}
		}
	}

	return pe
}

func validateRequest(req ChatRequest) error {
	if req.Model == "" {
		return fmt.Errorf("model is required")
	}
	if len(req.Messages) == 0 {
		return fmt.Errorf("at least one message is required")
	}
	return nil
}

var _ Provider = (*AnthropicProvider)(nil)
