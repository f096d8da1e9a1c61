// Package conversation drives the assistant's conversation loop: it decides
// what a message means, keeps the single active card up to date, gathers
// missing context, guards against duplicate tasks, and turns confirmed
// requests into stored tasks with steps.
package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/invopop/jsonschema"

	"github.com/wthorbecke/gather/backend/analytics"
	"github.com/wthorbecke/gather/backend/breakdown"
	"github.com/wthorbecke/gather/backend/event"
	"github.com/wthorbecke/gather/backend/model"
	"github.com/wthorbecke/gather/backend/recall"
	"github.com/wthorbecke/gather/backend/stream"
	"github.com/wthorbecke/gather/backend/task"
	"github.com/wthorbecke/gather/shared"
)

const suggestActionsTool = "suggest_actions"

const answerSystemPrompt = `You are a concise personal task assistant. Answer
the user's question directly. When a concrete follow-up on their current task
makes sense, call the suggest_actions tool; otherwise just answer.`

type suggestedActions struct {
	Actions []stream.ProposedAction `json:"actions"`
}

// Config wires the orchestrator's collaborators. Provider, Store, Generator
// and Router are required; the rest degrade to no-ops when absent.
type Config struct {
	Provider    model.Provider
	ModelName   string
	Store       task.Store
	Recall      *recall.Service
	Generator   *breakdown.Generator
	Classifier  *Classifier
	Router      *event.Router
	Analytics   *analytics.Emitter
	Preferences PreferenceStore
	// Questions decides which context questions a new task needs. Nil
	// means tasks are created without gathering.
	Questions    func(title string) []Question
	HistoryLimit int
	Compact      bool
}

// PreferenceStore is the narrow slice of the preference store the
// orchestrator needs; it keeps the package testable without a filesystem.
type PreferenceStore interface {
	Get(key string) (string, bool)
	Set(key, value string) error
}

type pendingDuplicate struct {
	title    string
	existing *task.Task
	bypass   *BypassToken
}

// Orchestrator owns all conversation state. Collaborators are called with
// the state lock released; results are applied only if no newer submission
// superseded them in the meantime.
type Orchestrator struct {
	cfg     Config
	history *History
	cards   *CardSlot
	convID  uuid.UUID

	mu          sync.Mutex
	gathering   *Session
	pendingTask string
	duplicate   *pendingDuplicate
	lastInput   string
	focusedTask *uuid.UUID
	focusedStep *uuid.UUID
	seq         uint64
}

func NewOrchestrator(cfg Config) *Orchestrator {
	convID := uuid.New()

	cardOpts := []CardSlotOption{}
	if cfg.Compact {
		cardOpts = append(cardOpts, WithCompactMode())
	}

	o := &Orchestrator{
		cfg:     cfg,
		history: NewHistory(cfg.HistoryLimit),
		cards:   NewCardSlot(convID, cfg.Router, cardOpts...),
		convID:  convID,
	}
	cfg.Analytics.EmitConversationStarted()
	return o
}

func (o *Orchestrator) ConversationID() uuid.UUID {
	return o.convID
}

func (o *Orchestrator) Card() Card {
	return o.cards.Current()
}

func (o *Orchestrator) History() []Turn {
	return o.history.Turns()
}

// Submit processes one user message. The reply surfaces through the card
// slot and the event router rather than a return value.
func (o *Orchestrator) Submit(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return shared.Errorf(shared.ErrorSourceUser, "message is empty")
	}

	o.history.Append(model.RoleUser, text)

	o.mu.Lock()
	o.seq++
	seq := o.seq
	o.lastInput = text

	// An in-flight gathering session captures all input.
	if session := o.activeGatheringLocked(); session != nil {
		pending := o.pendingTask
		o.mu.Unlock()
		return o.answerGathering(ctx, session, pending, text)
	}

	// A new message while a duplicate prompt is up abandons that prompt.
	if o.duplicate != nil {
		o.duplicate = nil
	}
	home := o.focusedTask == nil
	o.mu.Unlock()

	// Fresh home submissions get the local duplicate check before any
	// remote work, so a duplicate prompt costs no round trip.
	if home && !IsQuestion(text) {
		tasks, err := o.cfg.Store.GetTasks(ctx)
		if err == nil && !o.superseded(seq) {
			if existing := FindDuplicateTask(tasks, text); existing != nil {
				o.promptDuplicate(text, existing)
				return nil
			}
		}
	}

	o.cards.Show(Card{Kind: CardThinking})

	// An explicit expansion request on the focused task skips
	// classification.
	if DetectExpansionIntent(text) {
		if current := o.focusedTaskSnapshot(ctx); current != nil {
			if o.superseded(seq) {
				return nil
			}
			return o.expandSteps(ctx, seq, current)
		}
	}

	intent, questions := o.classify(ctx, text)
	if o.superseded(seq) {
		return nil
	}

	switch intent {
	case IntentQuestion, IntentChitchat:
		return o.streamAnswer(ctx, seq, text)
	case IntentTaskUpdate:
		return o.handleTaskUpdate(ctx, seq, text)
	default:
		return o.handleNewTask(ctx, seq, text, questions)
	}
}

// Retry resubmits the message that produced the current error card.
func (o *Orchestrator) Retry(ctx context.Context) error {
	o.mu.Lock()
	last := o.lastInput
	o.mu.Unlock()

	if last == "" {
		return shared.Errorf(shared.ErrorSourceUser, "nothing to retry")
	}
	return o.Submit(ctx, last)
}

// SelectQuickReply answers the current question card with one of its
// options.
func (o *Orchestrator) SelectQuickReply(ctx context.Context, option string) error {
	o.mu.Lock()
	session := o.activeGatheringLocked()
	pending := o.pendingTask
	o.mu.Unlock()

	if session == nil {
		return shared.Errorf(shared.ErrorSourceUser, "no question is being asked")
	}

	if err := session.SelectOption(option); err != nil {
		return err
	}
	return o.afterGatheringStep(ctx, session, pending)
}

// GoBack re-opens the previous gathering question.
func (o *Orchestrator) GoBack(ctx context.Context) error {
	o.mu.Lock()
	session := o.activeGatheringLocked()
	pending := o.pendingTask
	o.mu.Unlock()

	if session == nil {
		return shared.Errorf(shared.ErrorSourceUser, "nothing to go back to")
	}

	if err := session.GoBack(); err != nil {
		return err
	}
	return o.afterGatheringStep(ctx, session, pending)
}

// ResolveDuplicate answers the duplicate prompt. createAnyway consumes the
// one-shot bypass token and creates the task; otherwise the existing task
// is surfaced instead.
func (o *Orchestrator) ResolveDuplicate(ctx context.Context, createAnyway bool) error {
	o.mu.Lock()
	pending := o.duplicate
	o.duplicate = nil
	o.mu.Unlock()

	if pending == nil {
		return shared.Errorf(shared.ErrorSourceUser, "no duplicate is awaiting a decision")
	}

	if !createAnyway {
		o.cfg.Analytics.EmitDuplicateDetected("kept_existing")
		id := pending.existing.ID
		o.showAnswer(stream.FinalPayload{
			Text: fmt.Sprintf("Keeping your existing task %q.", pending.existing.Title),
		}, &id)
		return nil
	}

	o.cfg.Analytics.EmitDuplicateDetected("created_anyway")
	if !pending.bypass.Consume(pending.title) {
		return shared.Errorf(shared.ErrorSourceConversation, "duplicate bypass was already used")
	}

	o.mu.Lock()
	o.seq++
	seq := o.seq
	o.mu.Unlock()

	o.cards.Show(Card{Kind: CardThinking})
	return o.createTask(ctx, seq, pending.title, "")
}

// ApplyAction executes a single validated action coming from the UI.
func (o *Orchestrator) ApplyAction(ctx context.Context, action stream.ProposedAction) error {
	current := o.focusedTaskSnapshot(ctx)
	if len(ValidateActions([]stream.ProposedAction{action}, current)) == 0 {
		return shared.Errorf(shared.ErrorSourceUser, "action %q is not allowed", action.Type)
	}

	o.cfg.Analytics.EmitActionApplied(action.Type)

	switch action.Type {
	case ActionMarkStepDone:
		stepID := uuid.MustParse(action.StepID)
		if err := o.cfg.Store.ToggleStep(ctx, current.ID, stepID); err != nil {
			return err
		}
		o.publishTaskEvent("task.updated", current.ID)
		return nil

	case ActionFocusStep:
		stepID := uuid.MustParse(action.StepID)
		o.mu.Lock()
		id := current.ID
		o.focusedTask = &id
		o.focusedStep = &stepID
		o.mu.Unlock()
		return nil

	case ActionCreateTask:
		o.mu.Lock()
		o.seq++
		seq := o.seq
		o.lastInput = action.Title
		o.mu.Unlock()

		o.cards.Show(Card{Kind: CardThinking})
		return o.handleNewTask(ctx, seq, action.Title, nil)

	case ActionShowSources:
		o.cards.Show(Card{Kind: CardAnswer, Text: action.Context})
		return nil
	}
	return nil
}

// --- new task flow ---

// handleNewTask creates a task from a title, preferring the classifier's
// clarifying questions over the configured hook.
func (o *Orchestrator) handleNewTask(ctx context.Context, seq uint64, title string, remote []Question) error {
	// Duplicate guard first; creating twice is worse than asking.
	tasks, err := o.cfg.Store.GetTasks(ctx)
	if err != nil {
		o.showError(err)
		return nil
	}
	if o.superseded(seq) {
		return nil
	}

	if existing := FindDuplicateTask(tasks, title); existing != nil {
		o.promptDuplicate(title, existing)
		return nil
	}

	// Ask for missing context before creating.
	questions := remote
	if len(questions) == 0 && o.cfg.Questions != nil {
		questions = o.cfg.Questions(title)
	}
	if len(questions) > 0 {
		session := NewSession(questions,
			WithPrefill(o.storedAnswers(questions)),
			WithExpireFunc(o.onGatheringExpired),
		)
		if session.State() != GatheringCompleted {
			o.mu.Lock()
			o.gathering = session
			o.pendingTask = title
			o.mu.Unlock()

			o.showQuestion(session)
			return nil
		}
		return o.createTask(ctx, seq, title, renderAnswers(session.Answers()))
	}

	return o.createTask(ctx, seq, title, "")
}

func (o *Orchestrator) promptDuplicate(title string, existing *task.Task) {
	o.mu.Lock()
	o.duplicate = &pendingDuplicate{
		title:    title,
		existing: existing,
		bypass:   NewBypassToken(title),
	}
	o.mu.Unlock()

	o.cards.Show(Card{
		Kind:         CardDuplicate,
		Text:         fmt.Sprintf("You already have %q. Create another one?", existing.Title),
		QuickReplies: []string{"Create anyway", "Keep existing"},
	})
}

func (o *Orchestrator) createTask(ctx context.Context, seq uint64, title, gathered string) error {
	memory := o.recallMemory(ctx, title)
	if gathered != "" {
		if memory != "" {
			memory += "\n"
		}
		memory += gathered
	}

	steps, category, usedFallback := o.cfg.Generator.GenerateSteps(ctx, title, memory)
	if o.superseded(seq) {
		return nil
	}

	created, err := o.cfg.Store.AddTask(ctx, title, category, steps)
	if err != nil {
		o.showError(err)
		return nil
	}

	o.mu.Lock()
	id := created.ID
	o.focusedTask = &id
	o.focusedStep = nil
	o.mu.Unlock()

	o.cfg.Analytics.EmitTaskCreated(category, len(steps), usedFallback)
	o.publishTaskEvent("task.created", created.ID)

	o.history.Append(model.RoleAssistant, fmt.Sprintf("Created task %q with %d steps.", title, len(steps)))
	o.cards.Show(Card{
		Kind:   CardTaskCreated,
		Text:   fmt.Sprintf("Added %q with %d steps.", created.Title, len(steps)),
		TaskID: &id,
	})
	return nil
}

// --- gathering flow ---

func (o *Orchestrator) activeGatheringLocked() *Session {
	if o.gathering == nil {
		return nil
	}
	switch o.gathering.State() {
	case GatheringActive, GatheringFreeText:
		return o.gathering
	default:
		o.gathering = nil
		o.pendingTask = ""
		return nil
	}
}

func (o *Orchestrator) answerGathering(ctx context.Context, session *Session, pending, text string) error {
	question, ok := session.Current()
	if !ok {
		return o.finishGathering(ctx, session, pending)
	}

	// Typed text that matches an option counts as selecting it.
	if session.State() == GatheringActive {
		for _, option := range question.Options {
			if strings.EqualFold(option, text) {
				if err := session.SelectOption(option); err != nil {
					return err
				}
				return o.afterGatheringStep(ctx, session, pending)
			}
		}
	}

	if err := session.AnswerFreeText(text); err != nil {
		return err
	}
	return o.afterGatheringStep(ctx, session, pending)
}

func (o *Orchestrator) afterGatheringStep(ctx context.Context, session *Session, pending string) error {
	switch session.State() {
	case GatheringCompleted:
		return o.finishGathering(ctx, session, pending)
	case GatheringFreeText:
		question, _ := session.Current()
		index, total := session.Progress()
		o.cards.Show(Card{
			Kind:          CardQuestion,
			Text:          question.Prompt,
			QuestionIndex: index,
			QuestionTotal: total,
		})
		return nil
	default:
		o.showQuestion(session)
		return nil
	}
}

func (o *Orchestrator) finishGathering(ctx context.Context, session *Session, pending string) error {
	answers := session.Answers()
	o.persistAnswers(answers)

	o.mu.Lock()
	o.gathering = nil
	o.pendingTask = ""
	o.seq++
	seq := o.seq
	o.mu.Unlock()

	o.cards.Show(Card{Kind: CardThinking})
	return o.createTask(ctx, seq, pending, renderAnswers(answers))
}

func (o *Orchestrator) onGatheringExpired() {
	o.mu.Lock()
	o.gathering = nil
	o.pendingTask = ""
	o.mu.Unlock()

	o.cards.Dismiss()
	slog.Info("gathering session expired", "conversation_id", o.convID)
}

func (o *Orchestrator) showQuestion(session *Session) {
	question, ok := session.Current()
	if !ok {
		return
	}

	replies := append([]string{}, question.Options...)
	if len(replies) > 0 {
		replies = append(replies, OptionOther)
	}
	index, total := session.Progress()
	o.cards.Show(Card{
		Kind:          CardQuestion,
		Text:          question.Prompt,
		QuickReplies:  replies,
		QuestionIndex: index,
		QuestionTotal: total,
	})
}

func (o *Orchestrator) storedAnswers(questions []Question) map[string]string {
	if o.cfg.Preferences == nil {
		return nil
	}
	answers := make(map[string]string)
	for _, question := range questions {
		if value, ok := o.cfg.Preferences.Get(question.Key); ok {
			answers[question.Key] = value
		}
	}
	return answers
}

func (o *Orchestrator) persistAnswers(answers map[string]string) {
	if o.cfg.Preferences == nil {
		return
	}
	for key, value := range answers {
		if err := o.cfg.Preferences.Set(key, value); err != nil {
			slog.Warn("failed to persist gathered answer", "key", key, "error", err)
		}
	}
}

func renderAnswers(answers map[string]string) string {
	if len(answers) == 0 {
		return ""
	}
	keys := make([]string, 0, len(answers))
	for key := range answers {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("Gathered context:")
	for _, key := range keys {
		b.WriteString("\n- " + key + ": " + answers[key])
	}
	return b.String()
}

// --- task update flow ---

func (o *Orchestrator) handleTaskUpdate(ctx context.Context, seq uint64, text string) error {
	current := o.focusedTaskSnapshot(ctx)
	if o.superseded(seq) {
		return nil
	}

	if current != nil && DetectExpansionIntent(text) {
		return o.expandSteps(ctx, seq, current)
	}

	if stepID, ok := DetectCompletionIntent(text, current); ok {
		if err := o.cfg.Store.ToggleStep(ctx, current.ID, stepID); err != nil {
			o.showError(err)
			return nil
		}
		o.publishTaskEvent("task.updated", current.ID)

		step := current.Step(stepID)
		o.history.Append(model.RoleAssistant, fmt.Sprintf("Marked %q as done.", step.Text))
		o.cards.Show(Card{
			Kind:   CardAnswer,
			Text:   fmt.Sprintf("Nice, marked %q as done.", step.Text),
			TaskID: &current.ID,
		})
		return nil
	}

	// No step matched; answer conversationally instead of guessing.
	return o.streamAnswer(ctx, seq, text)
}

// expandSteps appends freshly generated steps to the focused task.
func (o *Orchestrator) expandSteps(ctx context.Context, seq uint64, current *task.Task) error {
	memory := o.recallMemory(ctx, current.Title)
	if len(current.Steps) > 0 {
		existing := make([]string, 0, len(current.Steps))
		for _, step := range current.Steps {
			existing = append(existing, step.Text)
		}
		if memory != "" {
			memory += "\n"
		}
		memory += "Existing steps, do not repeat them: " + strings.Join(existing, "; ")
	}

	steps, _, _ := o.cfg.Generator.GenerateSteps(ctx, current.Title, memory)
	if o.superseded(seq) {
		return nil
	}

	updated, err := o.cfg.Store.AppendSteps(ctx, current.ID, steps)
	if err != nil {
		o.showError(err)
		return nil
	}
	o.publishTaskEvent("task.updated", updated.ID)

	reply := fmt.Sprintf("Added %d more steps to %q.", len(steps), updated.Title)
	o.history.Append(model.RoleAssistant, reply)
	o.cards.Show(Card{
		Kind:   CardAnswer,
		Text:   reply,
		TaskID: &updated.ID,
	})
	return nil
}

// --- question flow ---

func (o *Orchestrator) streamAnswer(ctx context.Context, seq uint64, text string) error {
	current := o.focusedTaskSnapshot(ctx)
	system := answerSystemPrompt
	if memory := o.recallMemory(ctx, text); memory != "" {
		system += "\n\n" + memory
	}
	if current != nil {
		system += "\n\nCurrent task: " + current.Title
		if step := o.focusedStepSnapshot(current); step != nil {
			system += "\nFocused step: " + step.Text
		}
	}
	if o.superseded(seq) {
		return nil
	}

	consumer := stream.NewConsumer(stream.Callbacks{
		OnToken: func(token string) {
			if !o.superseded(seq) {
				o.cards.AppendStreaming(token)
			}
		},
	})

	response, err := o.cfg.Provider.Invoke(ctx, model.ChatRequest{
		Model:       o.cfg.ModelName,
		MaxTokens:   1024,
		Temperature: 0.7,
		System:      system,
		Messages:    o.history.ModelMessages(),
		Tools: []model.ToolSpec{{
			Name:        suggestActionsTool,
			Description: "Suggest follow-up actions on the user's current task",
			Schema:      actionsSchema(),
		}},
	}, model.WithStreamHandler(func(_ context.Context, chunk string) {
		consumer.Feed(stream.Event{Kind: stream.EventKindToken, Token: chunk})
	}))
	if o.superseded(seq) {
		return nil
	}
	if err != nil {
		o.showProviderError(err)
		return nil
	}

	final := stream.FinalPayload{Text: response.Text()}
	if call := response.ToolUse(suggestActionsTool); call != nil {
		var suggested suggestedActions
		if err := json.Unmarshal(call.Input, &suggested); err == nil {
			final.Actions = ValidateActions(suggested.Actions, current)
		}
	}

	consumer.Feed(stream.Event{Kind: stream.EventKindDone, Final: &final})

	o.history.Append(model.RoleAssistant, consumer.Text())
	var taskID *uuid.UUID
	if current != nil {
		id := current.ID
		taskID = &id
	}
	o.showAnswer(*consumer.Final(), taskID)
	return nil
}

// --- shared helpers ---

func (o *Orchestrator) classify(ctx context.Context, text string) (Intent, []Question) {
	if o.cfg.Classifier == nil {
		return heuristicIntent(text), nil
	}
	return o.cfg.Classifier.Classify(ctx, text, o.history.ModelMessages())
}

func (o *Orchestrator) recallMemory(ctx context.Context, text string) string {
	if o.cfg.Recall == nil {
		return ""
	}
	memory, err := o.cfg.Recall.RelevantMemory(ctx, text)
	if err != nil {
		slog.Debug("memory lookup failed, continuing without it", "error", err)
		return ""
	}
	return memory
}

// focusedTaskSnapshot re-reads the focused task from the store so decisions
// are made against current state, not a stale copy.
func (o *Orchestrator) focusedTaskSnapshot(ctx context.Context) *task.Task {
	o.mu.Lock()
	focused := o.focusedTask
	o.mu.Unlock()

	if focused == nil {
		return nil
	}
	current, err := o.cfg.Store.GetTask(ctx, *focused)
	if err != nil {
		return nil
	}
	return current
}

// focusedStepSnapshot resolves the focused step against the current task.
// A step that no longer exists on the task clears the focus.
func (o *Orchestrator) focusedStepSnapshot(current *task.Task) *task.Step {
	o.mu.Lock()
	focused := o.focusedStep
	o.mu.Unlock()

	if focused == nil || current == nil {
		return nil
	}
	step := current.Step(*focused)
	if step == nil {
		o.mu.Lock()
		o.focusedStep = nil
		o.mu.Unlock()
	}
	return step
}

// superseded reports whether a newer submission arrived; stale work must
// not touch the card.
func (o *Orchestrator) superseded(seq uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.seq != seq
}

func (o *Orchestrator) showAnswer(final stream.FinalPayload, taskID *uuid.UUID) {
	text := final.Text
	if o.cfg.Compact {
		text = summarizeForCard(text, 280)
	}
	o.cards.Show(Card{
		Kind:    CardAnswer,
		Text:    text,
		Sources: final.Sources,
		Actions: final.Actions,
		TaskID:  taskID,
	})
}

func (o *Orchestrator) showError(err error) {
	slog.Error("conversation turn failed", "conversation_id", o.convID, "error", err)
	o.cards.Show(Card{
		Kind:      CardError,
		Text:      "Something went wrong. Want to try again?",
		Retryable: true,
	})
}

func (o *Orchestrator) showProviderError(err error) {
	var pe *model.ProviderError
	if errors.As(err, &pe) {
		o.cfg.Analytics.EmitProviderError(string(pe.Kind))
	}
	o.showError(err)
}

func (o *Orchestrator) publishTaskEvent(eventType string, taskID uuid.UUID) {
	if o.cfg.Router == nil {
		return
	}
	id := o.convID
	o.cfg.Router.Publish(&event.StreamEvent{
		Type:           eventType,
		ConversationID: &id,
		Payload:        taskID,
	})
}

func actionsSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	return reflector.Reflect(&suggestedActions{})
}
