package cmd

import (
	"fmt"
	"strings"

	"github.com/wthorbecke/gather/backend/conversation"
	"github.com/wthorbecke/gather/backend/task"
)

func renderCard(card conversation.Card) string {
	var b strings.Builder

	switch card.Kind {
	case conversation.CardThinking:
		b.WriteString("  … thinking")
	case conversation.CardQuestion:
		b.WriteString("  ? " + card.Text)
		if card.QuestionTotal > 0 {
			b.WriteString(fmt.Sprintf(" (%d/%d)", card.QuestionIndex, card.QuestionTotal))
		}
	case conversation.CardDuplicate:
		b.WriteString("  ! " + card.Text)
	case conversation.CardTaskCreated:
		b.WriteString("  ✓ " + card.Text)
	case conversation.CardError:
		b.WriteString("  ✗ " + card.Text)
		if card.Retryable {
			b.WriteString(" (/retry)")
		}
	default:
		b.WriteString("  " + card.Text)
	}

	if len(card.QuickReplies) > 0 {
		b.WriteString("\n    options: " + strings.Join(card.QuickReplies, " | "))
		b.WriteString("\n    (answer with /pick <option> or just type)")
	}
	for _, source := range card.Sources {
		b.WriteString(fmt.Sprintf("\n    source: %s <%s>", source.Name, source.URL))
	}
	for _, action := range card.Actions {
		label := action.Label
		if label == "" {
			label = action.Type
		}
		b.WriteString("\n    action: " + label)
	}

	return b.String()
}

func renderTask(t *task.Task) string {
	var b strings.Builder

	b.WriteString(t.Title)
	if t.Category != "" {
		b.WriteString(" [" + t.Category + "]")
	}

	for _, step := range t.Steps {
		box := "[ ]"
		if step.Done {
			box = "[x]"
		}
		b.WriteString(fmt.Sprintf("\n  %s %s", box, step.Text))
		if step.TimeEstimate != "" {
			b.WriteString(" (" + step.TimeEstimate + ")")
		}
		if step.Source != nil {
			b.WriteString(fmt.Sprintf("\n      source: %s <%s>", step.Source.Name, step.Source.URL))
		}
		if step.Action != nil {
			b.WriteString(fmt.Sprintf("\n      %s: %s", step.Action.Text, step.Action.URL))
		}
	}

	return b.String()
}

func taskProgress(t *task.Task) string {
	done := 0
	for _, step := range t.Steps {
		if step.Done {
			done++
		}
	}
	return fmt.Sprintf("%d/%d", done, len(t.Steps))
}
