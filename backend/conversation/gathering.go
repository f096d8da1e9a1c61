package conversation

import (
	"strings"
	"sync"
	"time"

	"github.com/wthorbecke/gather/shared"
)

// OptionOther is the quick reply that switches a question to free-text entry.
const OptionOther = "Other"

// DefaultGatheringTimeout expires an abandoned gathering session.
const DefaultGatheringTimeout = 5 * time.Minute

type GatheringState string

const (
	GatheringActive    GatheringState = "active"
	GatheringFreeText  GatheringState = "awaiting_free_text"
	GatheringCompleted GatheringState = "completed"
	GatheringExpired   GatheringState = "expired"
)

// Question is one piece of context the engine wants before creating a task.
type Question struct {
	// Key identifies the answer for preference pre-fill (e.g. "gym.name").
	Key     string
	Prompt  string
	Options []string
}

// Session walks the user through gathering questions one at a time.
// Questions whose key already has a stored preference are pre-filled and
// skipped. A session left alone past its timeout expires.
type Session struct {
	timeout  time.Duration
	onExpire func()

	mu        sync.Mutex
	questions []Question
	index     int
	answers   map[string]string
	state     GatheringState
	timer     *time.Timer
}

type SessionOption func(*Session)

func WithGatheringTimeout(timeout time.Duration) SessionOption {
	return func(s *Session) {
		s.timeout = timeout
	}
}

// WithExpireFunc runs when the session times out, after the state flips to
// expired.
func WithExpireFunc(fn func()) SessionOption {
	return func(s *Session) {
		s.onExpire = fn
	}
}

// WithPrefill seeds answers, typically from the preference store. Questions
// whose key is seeded are skipped.
func WithPrefill(answers map[string]string) SessionOption {
	return func(s *Session) {
		for key, value := range answers {
			s.answers[key] = value
		}
	}
}

func NewSession(questions []Question, opts ...SessionOption) *Session {
	s := &Session{
		questions: questions,
		answers:   make(map[string]string),
		state:     GatheringActive,
		timeout:   DefaultGatheringTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.skipAnswered()
	if s.index >= len(s.questions) {
		s.state = GatheringCompleted
	} else {
		s.resetTimerLocked()
	}
	return s
}

// Current returns the question awaiting an answer. ok is false once the
// session is completed or expired.
func (s *Session) Current() (Question, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == GatheringCompleted || s.state == GatheringExpired {
		return Question{}, false
	}
	return s.questions[s.index], true
}

// SelectOption answers the current question with one of its quick replies.
// Selecting Other switches to free-text entry instead of advancing.
func (s *Session) SelectOption(option string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != GatheringActive {
		return shared.Errorf(shared.ErrorSourceUser, "no question is awaiting an option")
	}

	if option == OptionOther {
		s.state = GatheringFreeText
		s.resetTimerLocked()
		return nil
	}

	s.recordLocked(option)
	return nil
}

// AnswerFreeText answers the current question with typed text. It is valid
// both after selecting Other and for questions without options.
func (s *Session) AnswerFreeText(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != GatheringActive && s.state != GatheringFreeText {
		return shared.Errorf(shared.ErrorSourceUser, "no question is awaiting an answer")
	}

	s.recordLocked(text)
	return nil
}

// GoBack returns to the previous question so it can be re-answered. From
// free-text entry it returns to the same question's options.
func (s *Session) GoBack() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case GatheringFreeText:
		s.state = GatheringActive
		s.resetTimerLocked()
		return nil
	case GatheringActive:
		if s.index == 0 {
			return shared.Errorf(shared.ErrorSourceUser, "already at the first question")
		}
		s.index--
		delete(s.answers, s.questions[s.index].Key)
		s.resetTimerLocked()
		return nil
	default:
		return shared.Errorf(shared.ErrorSourceUser, "gathering session is over")
	}
}

// Progress reports the 1-based position of the current question.
func (s *Session) Progress() (index, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index + 1, len(s.questions)
}

func (s *Session) State() GatheringState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Answers returns a copy of all collected answers keyed by question key.
func (s *Session) Answers() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]string, len(s.answers))
	for key, value := range s.answers {
		out[key] = value
	}
	return out
}

func (s *Session) recordLocked(answer string) {
	s.answers[s.questions[s.index].Key] = answer
	s.index++
	s.state = GatheringActive
	s.skipAnswered()

	if s.index >= len(s.questions) {
		s.state = GatheringCompleted
		s.stopTimerLocked()
		return
	}
	s.resetTimerLocked()
}

func (s *Session) skipAnswered() {
	for s.index < len(s.questions) {
		if _, ok := s.answers[s.questions[s.index].Key]; !ok {
			return
		}
		s.index++
	}
}

func (s *Session) resetTimerLocked() {
	s.stopTimerLocked()
	if s.timeout <= 0 {
		return
	}
	s.timer = time.AfterFunc(s.timeout, s.expire)
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// DefaultQuestions maps common task shapes to the context worth asking for
// before creating the task. Unknown shapes get no questions.
func DefaultQuestions(title string) []Question {
	lowered := strings.ToLower(title)
	switch {
	case strings.Contains(lowered, "cancel"):
		return []Question{{
			Key:    "cancel.provider",
			Prompt: "Which company or service is this with?",
		}}
	case strings.Contains(lowered, "appointment") || strings.Contains(lowered, "schedule"):
		return []Question{{
			Key:     "schedule.time",
			Prompt:  "When works best for you?",
			Options: []string{"Morning", "Afternoon", "Evening"},
		}}
	default:
		return nil
	}
}

func (s *Session) expire() {
	s.mu.Lock()
	if s.state == GatheringCompleted || s.state == GatheringExpired {
		s.mu.Unlock()
		return
	}
	s.state = GatheringExpired
	onExpire := s.onExpire
	s.mu.Unlock()

	if onExpire != nil {
		onExpire()
	}
}
