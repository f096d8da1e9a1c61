package model

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/wthorbecke/gather/shared/resilience"
)

// OpenAIProvider talks to any OpenAI-compatible chat completion endpoint.
// It does not stream; the whole completion arrives as a single response,
// which the stream consumer treats as one terminal done event.
type OpenAIProvider struct {
	client         *openai.Client
	retryConfig    *resilience.RetryConfig
	retryHooks     []resilience.RetryHook
	circuitBreaker *resilience.CircuitBreaker
}

func NewOpenAIProvider(apiKey string, opts ...ProviderOption) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	providerOptions := DefaultProviderOptions("openai")
	for _, opt := range opts {
		opt(providerOptions)
	}

	clientOptions := []option.RequestOption{option.WithAPIKey(apiKey)}
	if providerOptions.URL != "" {
		clientOptions = append(clientOptions, option.WithBaseURL(providerOptions.URL))
	}

	hooks := providerOptions.RetryHooks
	if providerOptions.Metrics != nil {
		hooks = append(hooks, NewMetricsHook("openai", providerOptions.Metrics))
	}

	return &OpenAIProvider{
		client:         openai.NewClient(clientOptions...),
		retryConfig:    providerOptions.RetryConfig,
		retryHooks:     hooks,
		circuitBreaker: providerOptions.CircuitBreaker,
	}, nil
}

func (p *OpenAIProvider) Invoke(ctx context.Context, req ChatRequest, opts ...InvokeOption) (*ChatResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	options := &InvokeOptions{}
	for _, opt := range opts {
		opt(options)
	}

	if p.circuitBreaker != nil && !p.circuitBreaker.Allow() {
		return nil, &ProviderError{
			Provider:   "openai",
			Kind:       ErrorKindOverloaded,
			Message:    "circuit open",
			RetryAfter: DefaultRetryAfter(ErrorKindOverloaded),
		}
	}

	params := p.buildParams(req)

	resp, err := CallWithRetry(ctx, "openai", p.retryConfig, p.retryHooks,
		func(ctx context.Context) (*ChatResponse, error) {
			return p.completeOnce(ctx, params)
		})

	if p.circuitBreaker != nil {
		p.circuitBreaker.RecordResult(err)
	}

	if err == nil && options.StreamCallback != nil {
		// No incremental delivery here; surface the whole text at once so
		// callers observe the same callback contract as streaming providers.
		options.StreamCallback(ctx, resp.Text())
	}

	return resp, err
}

func (p *OpenAIProvider) buildParams(req ChatRequest) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, message := range req.Messages {
		switch message.Role {
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(message.Content))
		default:
			messages = append(messages, openai.UserMessage(message.Content))
		}
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	return openai.ChatCompletionNewParams{
		Model:       openai.F(req.Model),
		Messages:    openai.F(messages),
		MaxTokens:   openai.F(maxTokens),
		Temperature: openai.F(req.Temperature),
	}
}

func (p *OpenAIProvider) completeOnce(ctx context.Context, params openai.ChatCompletionNewParams) (*ChatResponse, error) {
	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, p.parseError(err)
	}

	if len(completion.Choices) == 0 {
		return nil, &ProviderError{
			Provider: "openai",
			Kind:     ErrorKindServer,
			Message:  "completion contained no choices",
		}
	}

	choice := completion.Choices[0]
	return &ChatResponse{
		Content:    []ContentBlock{&TextBlock{Text: choice.Message.Content}},
		StopReason: string(choice.FinishReason),
		Usage: Usage{
			InputTokens:  completion.Usage.PromptTokens,
			OutputTokens: completion.Usage.CompletionTokens,
		},
	}, nil
}

func (p *OpenAIProvider) parseError(err error) *ProviderError {
	apiErr, ok := err.(*openai.Error)
	if !ok {
		return Classify("openai", err)
	}

	kind := KindForStatus(apiErr.StatusCode)
	return &ProviderError{
		Provider:   "openai",
		Kind:       kind,
		Message:    fmt.Sprintf("request failed with status %d", apiErr.StatusCode),
		StatusCode: apiErr.StatusCode,
		RetryAfter: DefaultRetryAfter(kind),
		Err:        err,
	}
}

var _ Provider = (*OpenAIProvider)(nil)
