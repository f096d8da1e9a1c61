package stream

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsumer_TokensAccumulateInOrder(t *testing.T) {
	t.Parallel()

	var received []string
	consumer := NewConsumer(Callbacks{
		OnToken: func(token string) { received = append(received, token) },
	})

	consumer.Feed(Event{Kind: EventKindToken, Token: "Renew "})
	consumer.Feed(Event{Kind: EventKindToken, Token: "your "})
	consumer.Feed(Event{Kind: EventKindToken, Token: "passport"})

	assert.Equal(t, []string{"Renew ", "your ", "passport"}, received)
	assert.Equal(t, "Renew your passport", consumer.Text())
	assert.False(t, consumer.Done())
}

func TestConsumer_DonePayloadSupersedesBuffer(t *testing.T) {
	t.Parallel()

	var final FinalPayload
	consumer := NewConsumer(Callbacks{
		OnDone: func(f FinalPayload) { final = f },
	})

	consumer.Feed(Event{Kind: EventKindToken, Token: "partial text"})
	consumer.Feed(Event{Kind: EventKindDone, Final: &FinalPayload{Text: "structured final"}})

	assert.Equal(t, "structured final", final.Text)
	assert.Equal(t, "structured final", consumer.Text())
	assert.True(t, consumer.Done())
}

func TestConsumer_DoneWithoutPayloadUsesBuffer(t *testing.T) {
	t.Parallel()

	consumer := NewConsumer(Callbacks{})
	consumer.Feed(Event{Kind: EventKindToken, Token: "hello "})
	consumer.Feed(Event{Kind: EventKindToken, Token: "there"})
	consumer.Feed(Event{Kind: EventKindDone})

	require.NotNil(t, consumer.Final())
	assert.Equal(t, "hello there", consumer.Final().Text)
}

func TestConsumer_SourcesAndActionsCarryIntoFinal(t *testing.T) {
	t.Parallel()

	consumer := NewConsumer(Callbacks{})
	sources := []SourceRef{{Name: "travel.state.gov", URL: "https://travel.state.gov"}}
	actions := []ProposedAction{{Type: "show_sources", Label: "Sources"}}

	consumer.Feed(Event{Kind: EventKindSources, Sources: sources})
	consumer.Feed(Event{Kind: EventKindActions, Actions: actions})
	consumer.Feed(Event{Kind: EventKindDone})

	final := consumer.Final()
	require.NotNil(t, final)
	if diff := cmp.Diff(sources, final.Sources); diff != "" {
		t.Errorf("sources mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(actions, final.Actions); diff != "" {
		t.Errorf("actions mismatch (-want +got):\n%s", diff)
	}
}

func TestConsumer_MalformedEventSkipped(t *testing.T) {
	t.Parallel()

	consumer := NewConsumer(Callbacks{})
	consumer.Feed(Event{Kind: "garbage"})
	consumer.Feed(Event{Kind: EventKindToken, Token: "still alive"})

	assert.Equal(t, "still alive", consumer.Text())
	assert.False(t, consumer.Done())
}

func TestConsumer_ErrorTerminates(t *testing.T) {
	t.Parallel()

	var got error
	consumer := NewConsumer(Callbacks{
		OnError: func(err error) { got = err },
	})

	boom := errors.New("connection reset")
	consumer.Feed(Event{Kind: EventKindError, Err: boom})
	consumer.Feed(Event{Kind: EventKindToken, Token: "ignored"})

	assert.Equal(t, boom, got)
	assert.True(t, consumer.Done())
	assert.Equal(t, "", consumer.Text())
}

func TestConsumer_EventsAfterDoneIgnored(t *testing.T) {
	t.Parallel()

	consumer := NewConsumer(Callbacks{})
	consumer.Feed(Event{Kind: EventKindDone, Final: &FinalPayload{Text: "final"}})
	consumer.Feed(Event{Kind: EventKindToken, Token: "late token"})

	assert.Equal(t, "final", consumer.Text())
}

func TestConsumer_ConsumeBodyDegradesToSingleDone(t *testing.T) {
	t.Parallel()

	var tokens []string
	var final FinalPayload
	consumer := NewConsumer(Callbacks{
		OnToken: func(token string) { tokens = append(tokens, token) },
		OnDone:  func(f FinalPayload) { final = f },
	})

	consumer.ConsumeBody("entire response at once")

	assert.Empty(t, tokens)
	assert.Equal(t, "entire response at once", final.Text)
	assert.True(t, consumer.Done())
}

func TestConsumer_ConsumeSSE(t *testing.T) {
	t.Parallel()

	frames := strings.Join([]string{
		`event: token`,
		`data: {"kind":"token","token":"step one"}`,
		``,
		`data: not-json-at-all`,
		``,
		`event: sources`,
		`data: {"kind":"sources","sources":[{"name":"docs","url":"https://example.com"}]}`,
		``,
		`event: done`,
		`data: {"kind":"done","final":{"text":"all done"}}`,
		``,
	}, "\n")

	var final FinalPayload
	consumer := NewConsumer(Callbacks{
		OnDone: func(f FinalPayload) { final = f },
	})
	consumer.ConsumeSSE(strings.NewReader(frames))

	assert.Equal(t, "all done", final.Text)
	assert.True(t, consumer.Done())
}

func TestConsumer_ConsumeSSEWithoutDoneFinalizes(t *testing.T) {
	t.Parallel()

	frames := "data: {\"kind\":\"token\",\"token\":\"dangling\"}\n\n"

	consumer := NewConsumer(Callbacks{})
	consumer.ConsumeSSE(strings.NewReader(frames))

	assert.True(t, consumer.Done())
	assert.Equal(t, "dangling", consumer.Text())
}

type failingReader struct {
	data string
	read bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if !r.read {
		r.read = true
		return copy(p, r.data), nil
	}
	return 0, errors.New("transport failure")
}

var _ io.Reader = (*failingReader)(nil)

func TestConsumer_ConsumeSSETransportError(t *testing.T) {
	t.Parallel()

	var got error
	consumer := NewConsumer(Callbacks{
		OnError: func(err error) { got = err },
	})
	consumer.ConsumeSSE(&failingReader{data: "data: {\"kind\":\"token\",\"token\":\"x\"}\n\n"})

	require.Error(t, got)
	assert.True(t, consumer.Done())
}
