package stream

import (
	"bufio"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
)

type EventKind string

const (
	EventKindToken   EventKind = "token"
	EventKindSources EventKind = "sources"
	EventKindActions EventKind = "actions"
	EventKindDone    EventKind = "done"
	EventKindError   EventKind = "error"
)

type SourceRef struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ProposedAction is a model-suggested side effect. It is untrusted input
// until it passes the action validator.
type ProposedAction struct {
	Type    string `json:"type"`
	StepID  string `json:"stepId,omitempty"`
	Title   string `json:"title,omitempty"`
	Context string `json:"context,omitempty"`
	Label   string `json:"label,omitempty"`
}

// FinalPayload is the structured result carried by a done event. Its text,
// when present, supersedes the accumulated token buffer.
type FinalPayload struct {
	Text         string           `json:"text,omitempty"`
	Sources      []SourceRef      `json:"sources,omitempty"`
	Actions      []ProposedAction `json:"actions,omitempty"`
	QuickReplies []string         `json:"quickReplies,omitempty"`
}

type Event struct {
	Kind    EventKind        `json:"kind"`
	Token   string           `json:"token,omitempty"`
	Sources []SourceRef      `json:"sources,omitempty"`
	Actions []ProposedAction `json:"actions,omitempty"`
	Final   *FinalPayload    `json:"final,omitempty"`
	Err     error            `json:"-"`
}

type Callbacks struct {
	OnToken   func(token string)
	OnSources func(sources []SourceRef)
	OnActions func(actions []ProposedAction)
	OnDone    func(final FinalPayload)
	OnError   func(err error)
}

// Consumer ingests a sequence of typed events and accumulates partial
// results. Tokens are surfaced in arrival order; a done payload wins over
// the accumulated buffer; malformed events are skipped; a transport error
// terminates consumption. Retrying is the provider layer's job, never this
// one's.
type Consumer struct {
	callbacks Callbacks

	buf        strings.Builder
	sources    []SourceRef
	actions    []ProposedAction
	final      *FinalPayload
	terminated bool
}

func NewConsumer(callbacks Callbacks) *Consumer {
	return &Consumer{callbacks: callbacks}
}

// Feed dispatches one event. Events arriving after a terminal done or
// error are ignored.
func (c *Consumer) Feed(event Event) {
	if c.terminated {
		return
	}

	switch event.Kind {
	case EventKindToken:
		if event.Token == "" {
			return
		}
		c.buf.WriteString(event.Token)
		if c.callbacks.OnToken != nil {
			c.callbacks.OnToken(event.Token)
		}

	case EventKindSources:
		c.sources = append(c.sources, event.Sources...)
		if c.callbacks.OnSources != nil {
			c.callbacks.OnSources(event.Sources)
		}

	case EventKindActions:
		c.actions = append(c.actions, event.Actions...)
		if c.callbacks.OnActions != nil {
			c.callbacks.OnActions(event.Actions)
		}

	case EventKindDone:
		c.terminated = true
		final := FinalPayload{}
		if event.Final != nil {
			final = *event.Final
		}
		if final.Text == "" {
			final.Text = c.buf.String()
		}
		if len(final.Sources) == 0 {
			final.Sources = c.sources
		}
		if len(final.Actions) == 0 {
			final.Actions = c.actions
		}
		c.final = &final
		if c.callbacks.OnDone != nil {
			c.callbacks.OnDone(final)
		}

	case EventKindError:
		c.terminated = true
		if c.callbacks.OnError != nil {
			c.callbacks.OnError(event.Err)
		}

	default:
		slog.Debug("skipping malformed stream event", "kind", event.Kind)
	}
}

// ConsumeBody treats an entire non-streaming response body as a single
// terminal done event. Callers must not assume incremental delivery
// happened.
func (c *Consumer) ConsumeBody(body string) {
	c.Feed(Event{Kind: EventKindDone, Final: &FinalPayload{Text: body}})
}

// Text returns the final text when a done event arrived, otherwise the
// partial accumulated buffer.
func (c *Consumer) Text() string {
	if c.final != nil {
		return c.final.Text
	}
	return c.buf.String()
}

func (c *Consumer) Final() *FinalPayload {
	return c.final
}

func (c *Consumer) Done() bool {
	return c.terminated
}

// ConsumeSSE reads server-sent-events-style frames ("event:" and "data:"
// lines) until the stream ends. Frames that fail to decode are skipped; a
// read error fires OnError and stops consumption.
func (c *Consumer) ConsumeSSE(r io.Reader) {
	scanner := bufio.NewScanner(r)

	var eventName string
	var data strings.Builder

	flush := func() {
		defer func() {
			eventName = ""
			data.Reset()
		}()

		if data.Len() == 0 {
			return
		}

		event := Event{}
		if err := json.Unmarshal([]byte(data.String()), &event); err != nil {
			slog.Debug("skipping undecodable stream frame", "error", err)
			return
		}
		if event.Kind == "" && eventName != "" {
			event.Kind = EventKind(eventName)
		}
		c.Feed(event)
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		c.Feed(Event{Kind: EventKindError, Err: err})
		return
	}

	if !c.terminated {
		// Stream closed without a done frame; finalize with what arrived.
		c.Feed(Event{Kind: EventKindDone})
	}
}
