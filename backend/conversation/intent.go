package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/invopop/jsonschema"

	"github.com/wthorbecke/gather/backend/model"
	"github.com/wthorbecke/gather/backend/task"
)

type Intent string

const (
	IntentNewTask    Intent = "new_task"
	IntentQuestion   Intent = "question"
	IntentTaskUpdate Intent = "task_update"
	IntentChitchat   Intent = "chitchat"
)

var interrogativePrefixes = []string{
	"how", "what", "when", "where", "why", "who", "which",
	"can", "could", "would", "should", "will",
	"is", "are", "was", "were", "am",
	"do", "does", "did", "need",
}

// IsQuestion applies a cheap heuristic: a trailing question mark or a
// leading interrogative word.
func IsQuestion(text string) bool {
	trimmed := strings.TrimSpace(strings.ToLower(text))
	if trimmed == "" {
		return false
	}
	if strings.HasSuffix(trimmed, "?") {
		return true
	}

	first := strings.Fields(trimmed)[0]
	first = strings.Trim(first, ".,!'\"")
	for _, prefix := range interrogativePrefixes {
		if first == prefix {
			return true
		}
	}
	return false
}

var completionPhrases = []string{
	"i did", "i've done", "i have done", "i finished", "i've finished",
	"i have finished", "i completed", "i've completed", "done with",
	"finished with", "just did", "just finished", "checked off",
}

// pastTenseClaim catches first-person past-tense reports ("I called them
// yesterday") that the phrase list misses.
var pastTenseClaim = regexp.MustCompile(`\bi (just )?[a-z]+ed\b`)

// negationPattern matches on word boundaries so "piano" is not read as a
// negation.
var negationPattern = regexp.MustCompile(`\b(haven't|have not|didn't|did not|not yet|couldn't|could not|can't|cannot|won't|will not|no|never)\b`)

// DetectCompletionIntent reports whether the text claims a step was
// completed, and which step of the current task it most plausibly refers
// to. Negated statements ("I haven't called yet") never match.
func DetectCompletionIntent(text string, current *task.Task) (uuid.UUID, bool) {
	if current == nil {
		return uuid.Nil, false
	}

	lowered := " " + strings.ToLower(strings.TrimSpace(text))
	if negationPattern.MatchString(lowered) {
		return uuid.Nil, false
	}

	claimed := pastTenseClaim.MatchString(lowered)
	for _, phrase := range completionPhrases {
		if strings.Contains(lowered, phrase) {
			claimed = true
			break
		}
	}
	if !claimed {
		return uuid.Nil, false
	}

	// Match the claim against open steps by keyword overlap; the step
	// sharing the most words wins. Tokens are stemmed so "called" matches
	// a "Call them" step.
	words := stemAll(meaningfulTokens(normalizeTitle(text)))
	bestID := uuid.Nil
	bestOverlap := 0
	for _, step := range current.Steps {
		if step.Done {
			continue
		}
		overlap := countShared(words, stemAll(meaningfulTokens(normalizeTitle(step.Text))))
		if overlap > bestOverlap {
			bestOverlap = overlap
			bestID = step.ID
		}
	}

	if bestOverlap == 0 {
		return uuid.Nil, false
	}
	return bestID, true
}

var expansionPhrases = []string{
	"break this down", "break it down", "break that down", "break down",
	"more steps", "smaller steps", "split this up", "split it up",
	"expand this", "expand it", "expand the steps",
}

// DetectExpansionIntent reports whether the text asks for the focused task
// to be broken into more steps.
func DetectExpansionIntent(text string) bool {
	lowered := strings.ToLower(text)
	for _, phrase := range expansionPhrases {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}

func stemToken(token string) string {
	switch {
	case len(token) > 5 && strings.HasSuffix(token, "ing"):
		return token[:len(token)-3]
	case len(token) > 4 && strings.HasSuffix(token, "ed"):
		return token[:len(token)-2]
	case len(token) > 3 && strings.HasSuffix(token, "s"):
		return token[:len(token)-1]
	}
	return token
}

func stemAll(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, token := range tokens {
		out[i] = stemToken(token)
	}
	return out
}

func countShared(a, b []string) int {
	seen := make(map[string]bool, len(a))
	for _, token := range a {
		seen[token] = true
	}
	shared := 0
	for _, token := range b {
		if seen[token] {
			shared++
			seen[token] = false
		}
	}
	return shared
}

const classifyIntentTool = "classify_intent"

const classifierSystemPrompt = `You classify a user's message in a personal
task assistant. Use the classify_intent tool with exactly one intent:
new_task (they want something tracked as a task), question (they want
information or advice), task_update (they report progress on an existing
task), or chitchat (anything else). When the intent is new_task and a key
detail is missing, include up to three clarifying questions, each with a
stable key, a short prompt, and optional answer choices.`

type clarifyingQuestion struct {
	Key     string   `json:"key" jsonschema:"description=Stable identifier for the answer (e.g. passport.state)"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options,omitempty"`
}

type intentVerdict struct {
	Intent    string               `json:"intent" jsonschema:"enum=new_task,enum=question,enum=task_update,enum=chitchat"`
	Questions []clarifyingQuestion `json:"questions,omitempty" jsonschema:"description=Clarifying questions to ask before creating a new task"`
}

// Classifier asks the model for the user's intent and falls back to the
// local heuristics when the call or its output is unusable.
type Classifier struct {
	provider  model.Provider
	modelName string
}

func NewClassifier(provider model.Provider, modelName string) *Classifier {
	return &Classifier{provider: provider, modelName: modelName}
}

// Classify returns the message's intent and, for a new task, any clarifying
// questions the model wants answered before creation.
func (c *Classifier) Classify(ctx context.Context, text string, history []model.Message) (Intent, []Question) {
	intent, questions, err := c.classifyRemote(ctx, text, history)
	if err != nil {
		slog.Debug("intent classification fell back to heuristics", "error", err)
		return heuristicIntent(text), nil
	}
	return intent, questions
}

func (c *Classifier) classifyRemote(ctx context.Context, text string, history []model.Message) (Intent, []Question, error) {
	if c == nil || c.provider == nil {
		return "", nil, fmt.Errorf("no provider configured")
	}

	messages := append(append([]model.Message{}, history...), model.Message{
		Role:    model.RoleUser,
		Content: text,
	})

	response, err := c.provider.Invoke(ctx, model.ChatRequest{
		Model:     c.modelName,
		MaxTokens: 256,
		System:    classifierSystemPrompt,
		Messages:  messages,
		Tools: []model.ToolSpec{{
			Name:        classifyIntentTool,
			Description: "Report the single intent of the user's last message",
			Schema:      intentSchema(),
		}},
	})
	if err != nil {
		return "", nil, err
	}

	call := response.ToolUse(classifyIntentTool)
	if call == nil {
		return "", nil, fmt.Errorf("model did not call %s", classifyIntentTool)
	}

	var verdict intentVerdict
	if err := json.Unmarshal(call.Input, &verdict); err != nil {
		return "", nil, fmt.Errorf("malformed %s payload: %w", classifyIntentTool, err)
	}

	switch Intent(verdict.Intent) {
	case IntentNewTask, IntentQuestion, IntentTaskUpdate, IntentChitchat:
		return Intent(verdict.Intent), gatheringQuestions(verdict.Questions), nil
	default:
		return "", nil, fmt.Errorf("unknown intent %q", verdict.Intent)
	}
}

// gatheringQuestions keeps only usable questions; a blank key falls back to
// the prompt so answers still land under a stable name.
func gatheringQuestions(proposed []clarifyingQuestion) []Question {
	var questions []Question
	for _, q := range proposed {
		prompt := strings.TrimSpace(q.Prompt)
		if prompt == "" {
			continue
		}
		key := strings.TrimSpace(q.Key)
		if key == "" {
			key = prompt
		}
		questions = append(questions, Question{Key: key, Prompt: prompt, Options: q.Options})
	}
	return questions
}

func heuristicIntent(text string) Intent {
	if IsQuestion(text) {
		return IntentQuestion
	}
	return IntentNewTask
}

func intentSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	return reflector.Reflect(&intentVerdict{})
}
