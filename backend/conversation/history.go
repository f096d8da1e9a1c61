package conversation

import (
	"sync"
	"time"

	"github.com/wthorbecke/gather/backend/model"
)

// DefaultHistoryLimit bounds how many turns are kept and sent to the model.
const DefaultHistoryLimit = 20

type Turn struct {
	Role      model.Role
	Content   string
	Timestamp time.Time
}

// History is a bounded log of conversation turns. Old turns fall off the
// front once the limit is reached.
type History struct {
	mu    sync.Mutex
	turns []Turn
	limit int
}

func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{limit: limit}
}

func (h *History) Append(role model.Role, content string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.turns = append(h.turns, Turn{Role: role, Content: content, Timestamp: time.Now()})
	if len(h.turns) > h.limit {
		h.turns = h.turns[len(h.turns)-h.limit:]
	}
}

// ModelMessages renders the retained window in provider message form.
func (h *History) ModelMessages() []model.Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	messages := make([]model.Message, 0, len(h.turns))
	for _, turn := range h.turns {
		messages = append(messages, model.Message{Role: turn.Role, Content: turn.Content})
	}
	return messages
}

func (h *History) Turns() []Turn {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}
