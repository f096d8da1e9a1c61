package conversation

import (
	"strings"
	"sync"
	"unicode"

	"github.com/wthorbecke/gather/backend/task"
)

// Filler words that carry no meaning for duplicate comparison.
var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "my": true, "our": true,
	"to": true, "for": true, "of": true, "on": true, "in": true,
	"at": true, "and": true, "or": true, "with": true, "up": true,
	"out": true, "it": true, "this": true, "that": true, "some": true,
	"get": true, "go": true, "do": true, "make": true, "new": true,
}

const (
	// Substring matches shorter than this are too noisy to trust.
	minSubstringLength = 8

	minSharedTokens = 2
	minTokenOverlap = 0.6
)

// FindDuplicateTask returns the first existing task that looks like a
// duplicate of the candidate title, or nil. Comparison is by normalized
// exact match, then substring containment, then keyword overlap.
func FindDuplicateTask(tasks []*task.Task, title string) *task.Task {
	candidate := normalizeTitle(title)
	if candidate == "" {
		return nil
	}
	candidateTokens := meaningfulTokens(candidate)

	for _, t := range tasks {
		existing := normalizeTitle(t.Title)
		if existing == "" {
			continue
		}

		if existing == candidate {
			return t
		}

		if isSubstringMatch(existing, candidate) {
			return t
		}

		if hasTokenOverlap(meaningfulTokens(existing), candidateTokens) {
			return t
		}
	}

	return nil
}

// normalizeTitle lowercases, strips punctuation, and collapses whitespace.
func normalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func meaningfulTokens(normalized string) []string {
	var tokens []string
	for _, token := range strings.Fields(normalized) {
		if !stopwords[token] {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

func isSubstringMatch(a, b string) bool {
	shorter, longer := a, b
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	return len(shorter) >= minSubstringLength && strings.Contains(longer, shorter)
}

func hasTokenOverlap(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}

	shared := 0
	seen := make(map[string]bool, len(a))
	for _, token := range a {
		seen[token] = true
	}
	counted := make(map[string]bool)
	for _, token := range b {
		if seen[token] && !counted[token] {
			shared++
			counted[token] = true
		}
	}

	smaller := len(a)
	if len(b) < smaller {
		smaller = len(b)
	}

	return shared >= minSharedTokens && float64(shared) >= minTokenOverlap*float64(smaller)
}

// BypassToken authorizes exactly one duplicate-check bypass for a specific
// title. It replaces blanket "skip the next check" flags, which could leak
// onto an unrelated later submission.
type BypassToken struct {
	mu    sync.Mutex
	title string
	used  bool
}

func NewBypassToken(title string) *BypassToken {
	return &BypassToken{title: normalizeTitle(title)}
}

// Consume reports whether the token authorizes bypassing the check for this
// title. It succeeds at most once.
func (t *BypassToken) Consume(title string) bool {
	if t == nil {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.used || t.title != normalizeTitle(title) {
		return false
	}
	t.used = true
	return true
}
