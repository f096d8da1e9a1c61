// Package analytics sends anonymous product events. All emit functions are
// nil-safe and fire-and-forget so the engine never blocks or fails on
// analytics.
package analytics

import (
	"log/slog"

	"github.com/posthog/posthog-go"
)

type Emitter struct {
	client posthog.Client
	userID string
}

// NewEmitter creates an emitter. An empty API key disables analytics
// entirely; every Emit* call becomes a no-op.
func NewEmitter(apiKey, userID string) *Emitter {
	if apiKey == "" {
		return nil
	}

	client, err := posthog.NewWithConfig(apiKey, posthog.Config{})
	if err != nil {
		slog.Warn("analytics disabled", "error", err)
		return nil
	}

	return &Emitter{client: client, userID: userID}
}

func (e *Emitter) Close() {
	if e != nil && e.client != nil {
		e.client.Close()
	}
}

func (e *Emitter) capture(event string, properties posthog.Properties) {
	if e == nil || e.client == nil {
		return
	}

	err := e.client.Enqueue(posthog.Capture{
		DistinctId: e.userID,
		Event:      event,
		Properties: properties,
	})
	if err != nil {
		slog.Debug("failed to enqueue analytics event", "event", event, "error", err)
	}
}

func (e *Emitter) EmitConversationStarted() {
	e.capture("conversation_started", nil)
}

func (e *Emitter) EmitTaskCreated(category string, stepCount int, usedFallback bool) {
	e.capture("task_created", posthog.NewProperties().
		Set("category", category).
		Set("step_count", stepCount).
		Set("used_fallback", usedFallback),
	)
}

func (e *Emitter) EmitDuplicateDetected(resolution string) {
	e.capture("duplicate_detected", posthog.NewProperties().
		Set("resolution", resolution),
	)
}

func (e *Emitter) EmitActionApplied(actionType string) {
	e.capture("action_applied", posthog.NewProperties().
		Set("action_type", actionType),
	)
}

func (e *Emitter) EmitProviderError(kind string) {
	e.capture("provider_error", posthog.NewProperties().
		Set("kind", kind),
	)
}
