package conversation

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wthorbecke/gather/backend/event"
	"github.com/wthorbecke/gather/backend/stream"
)

type CardKind string

const (
	CardNone        CardKind = "none"
	CardThinking    CardKind = "thinking"
	CardStreaming   CardKind = "streaming"
	CardQuestion    CardKind = "question"
	CardDuplicate   CardKind = "duplicate"
	CardTaskCreated CardKind = "task_created"
	CardAnswer      CardKind = "answer"
	CardError       CardKind = "error"
)

// Card is the single piece of assistant UI shown above the input field.
type Card struct {
	Kind         CardKind                `json:"kind"`
	Text         string                  `json:"text,omitempty"`
	QuickReplies []string                `json:"quickReplies,omitempty"`
	Sources      []stream.SourceRef      `json:"sources,omitempty"`
	Actions      []stream.ProposedAction `json:"actions,omitempty"`
	TaskID       *uuid.UUID              `json:"taskId,omitempty"`
	Retryable    bool                    `json:"retryable,omitempty"`

	// QuestionIndex and QuestionTotal place a question card in its
	// gathering sequence, 1-based.
	QuestionIndex int `json:"questionIndex,omitempty"`
	QuestionTotal int `json:"questionTotal,omitempty"`
}

// DefaultDismissDelay is how long a task_created card stays up in compact
// mode before dismissing itself.
const DefaultDismissDelay = 3 * time.Second

// CardSlot holds the one active card for a conversation. Showing a card
// replaces whatever was there; every change is published on the event
// router as card.changed (or card.dismissed).
type CardSlot struct {
	conversationID uuid.UUID
	router         *event.Router
	compact        bool
	dismissDelay   time.Duration

	mu         sync.Mutex
	card       Card
	generation int
	timer      *time.Timer
}

type CardSlotOption func(*CardSlot)

// WithCompactMode enables auto-dismiss of task_created cards.
func WithCompactMode() CardSlotOption {
	return func(s *CardSlot) {
		s.compact = true
	}
}

func WithDismissDelay(delay time.Duration) CardSlotOption {
	return func(s *CardSlot) {
		s.dismissDelay = delay
	}
}

func NewCardSlot(conversationID uuid.UUID, router *event.Router, opts ...CardSlotOption) *CardSlot {
	slot := &CardSlot{
		conversationID: conversationID,
		router:         router,
		dismissDelay:   DefaultDismissDelay,
		card:           Card{Kind: CardNone},
	}
	for _, opt := range opts {
		opt(slot)
	}
	return slot
}

// Show replaces the current card. A pending auto-dismiss of the previous
// card is invalidated.
func (s *CardSlot) Show(card Card) {
	s.mu.Lock()
	s.generation++
	s.stopTimerLocked()
	s.card = card

	if card.Kind == CardTaskCreated && s.compact {
		generation := s.generation
		s.timer = time.AfterFunc(s.dismissDelay, func() {
			s.dismissIfCurrent(generation)
		})
	}
	snapshot := s.card
	s.mu.Unlock()

	s.publish("card.changed", snapshot)
}

// AppendStreaming adds a token chunk. A thinking card upgrades to a
// streaming card on the first chunk; any other card is replaced.
func (s *CardSlot) AppendStreaming(chunk string) {
	s.mu.Lock()
	if s.card.Kind != CardStreaming {
		s.generation++
		s.stopTimerLocked()
		s.card = Card{Kind: CardStreaming}
	}
	s.card.Text += chunk
	snapshot := s.card
	s.mu.Unlock()

	s.publish("card.changed", snapshot)
}

// Dismiss clears the slot.
func (s *CardSlot) Dismiss() {
	s.mu.Lock()
	s.generation++
	s.stopTimerLocked()
	s.card = Card{Kind: CardNone}
	s.mu.Unlock()

	s.publish("card.dismissed", Card{Kind: CardNone})
}

func (s *CardSlot) Current() Card {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.card
}

// dismissIfCurrent clears the card only when no newer card replaced it in
// the meantime.
func (s *CardSlot) dismissIfCurrent(generation int) {
	s.mu.Lock()
	if s.generation != generation {
		s.mu.Unlock()
		return
	}
	s.generation++
	s.card = Card{Kind: CardNone}
	s.mu.Unlock()

	s.publish("card.dismissed", Card{Kind: CardNone})
}

func (s *CardSlot) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *CardSlot) publish(eventType string, card Card) {
	if s.router == nil {
		return
	}
	id := s.conversationID
	s.router.Publish(&event.StreamEvent{
		Type:           eventType,
		ConversationID: &id,
		Payload:        card,
	})
}

// summarizeForCard trims reply text so a compact card stays readable.
func summarizeForCard(text string, limit int) string {
	text = strings.TrimSpace(text)
	if limit <= 0 || len(text) <= limit {
		return text
	}
	cut := strings.LastIndex(text[:limit], " ")
	if cut <= 0 {
		cut = limit
	}
	return text[:cut] + "…"
}
