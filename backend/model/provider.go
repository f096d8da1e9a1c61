package model

import (
	"context"
	"encoding/json"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/wthorbecke/gather/shared/resilience"
)

// Provider is the single remote call the rest of the engine depends on.
// Implementations classify their errors into ProviderError kinds and retry
// internally; callers only ever see success or an exhausted/fatal error.
type Provider interface {
	Invoke(ctx context.Context, req ChatRequest, opts ...InvokeOption) (*ChatResponse, error)
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type ToolSpec struct {
	Name        string
	Description string
	Schema      any
}

type ChatRequest struct {
	Model       string
	MaxTokens   int64
	Temperature float64
	System      string
	Messages    []Message
	Tools       []ToolSpec
}

type ContentBlockType string

const (
	ContentBlockTypeText    ContentBlockType = "text"
	ContentBlockTypeToolUse ContentBlockType = "tool_use"
)

type ContentBlock interface {
	Type() ContentBlockType
}

type TextBlock struct {
	Text string
}

func (t *TextBlock) Type() ContentBlockType {
	return ContentBlockTypeText
}

type ToolUseBlock struct {
	ID    string          `json:"id"`
	Tool  string          `json:"tool"`
	Input json.RawMessage `json:"input"`
}

func (t *ToolUseBlock) Type() ContentBlockType {
	return ContentBlockTypeToolUse
}

type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

type ChatResponse struct {
	Content    []ContentBlock
	StopReason string
	Usage      Usage
}

// Text concatenates all text blocks of the response.
func (r *ChatResponse) Text() string {
	var out string
	for _, block := range r.Content {
		if text, ok := block.(*TextBlock); ok {
			out += text.Text
		}
	}
	return out
}

// ToolUse returns the first tool_use block with the given name, or nil.
func (r *ChatResponse) ToolUse(name string) *ToolUseBlock {
	for _, block := range r.Content {
		if call, ok := block.(*ToolUseBlock); ok && call.Tool == name {
			return call
		}
	}
	return nil
}

type InvokeOptions struct {
	StreamCallback func(ctx context.Context, chunk string)
}

type InvokeOption func(*InvokeOptions)

func WithStreamHandler(handler func(ctx context.Context, chunk string)) InvokeOption {
	return func(o *InvokeOptions) {
		o.StreamCallback = handler
	}
}

type ProviderOptions struct {
	URL            string
	RetryConfig    *resilience.RetryConfig
	RetryHooks     []resilience.RetryHook
	CircuitBreaker *resilience.CircuitBreaker
	Metrics        *prometheus.Registry
}

type ProviderOption func(*ProviderOptions)

func WithURL(url string) ProviderOption {
	return func(o *ProviderOptions) {
		o.URL = url
	}
}

func WithRetryConfig(cfg *resilience.RetryConfig) ProviderOption {
	return func(o *ProviderOptions) {
		o.RetryConfig = cfg
	}
}

func WithRetryHooks(hooks ...resilience.RetryHook) ProviderOption {
	return func(o *ProviderOptions) {
		o.RetryHooks = append(o.RetryHooks, hooks...)
	}
}

func WithCircuitBreaker(breaker *resilience.CircuitBreaker) ProviderOption {
	return func(o *ProviderOptions) {
		o.CircuitBreaker = breaker
	}
}

func WithMetrics(registry *prometheus.Registry) ProviderOption {
	return func(o *ProviderOptions) {
		o.Metrics = registry
	}
}

func DefaultProviderOptions(name string) *ProviderOptions {
	return &ProviderOptions{
		RetryConfig:    resilience.DefaultRetryConfig(),
		CircuitBreaker: resilience.NewCircuitBreaker(name, 5, 30*time.Second),
	}
}
