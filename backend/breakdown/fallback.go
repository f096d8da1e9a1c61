package breakdown

import (
	"strings"

	"github.com/google/uuid"

	"github.com/wthorbecke/gather/backend/task"
)

type fallbackTemplate struct {
	keywords []string
	category string
	steps    [3]templateStep
}

type templateStep struct {
	text     string
	estimate string
}

// fallbackTemplates map common task phrasings to a generic three step plan.
// Matching is first-hit in order, so more specific phrasings come first.
var fallbackTemplates = []fallbackTemplate{
	{
		keywords: []string{"cancel"},
		category: "admin",
		steps: [3]templateStep{
			{"Look up the cancellation policy and notice period", "10 min"},
			{"Gather your account or membership details", "5 min"},
			{"Submit the cancellation request and keep the confirmation", "10 min"},
		},
	},
	{
		keywords: []string{"pay", "bill"},
		category: "finance",
		steps: [3]templateStep{
			{"Find the invoice or statement with the amount due", "5 min"},
			{"Check the due date and payment method", "5 min"},
			{"Make the payment and save the receipt", "5 min"},
		},
	},
	{
		keywords: []string{"clean", "organize", "declutter"},
		category: "home",
		steps: [3]templateStep{
			{"Pick one area to start with", "5 min"},
			{"Sort items into keep, donate, and discard", "30 min"},
			{"Put everything back and take out what goes", "15 min"},
		},
	},
	{
		keywords: []string{"call", "phone"},
		category: "admin",
		steps: [3]templateStep{
			{"Find the right phone number and opening hours", "5 min"},
			{"Write down what you want to ask or say", "5 min"},
			{"Make the call and note the outcome", "10 min"},
		},
	},
	{
		keywords: []string{"buy", "shop", "purchase"},
		category: "errands",
		steps: [3]templateStep{
			{"Decide exactly what you need and your budget", "10 min"},
			{"Compare a few options or stores", "15 min"},
			{"Place the order or go pick it up", "15 min"},
		},
	},
	{
		keywords: []string{"fix", "repair"},
		category: "home",
		steps: [3]templateStep{
			{"Figure out what is broken and what it needs", "15 min"},
			{"Get the parts or tools required", "30 min"},
			{"Do the repair or book someone who can", "1 hour"},
		},
	},
	{
		keywords: []string{"learn", "practice", "study"},
		category: "growth",
		steps: [3]templateStep{
			{"Pick one beginner resource to follow", "15 min"},
			{"Block a recurring practice slot in your calendar", "5 min"},
			{"Do the first session", "30 min"},
		},
	},
	{
		keywords: []string{"write", "create", "draft"},
		category: "creative",
		steps: [3]templateStep{
			{"Jot down the rough idea and who it is for", "10 min"},
			{"Write a messy first draft without editing", "30 min"},
			{"Revise it once and share or save it", "20 min"},
		},
	},
	{
		keywords: []string{"appointment", "schedule", "book"},
		category: "admin",
		steps: [3]templateStep{
			{"Check your calendar for open slots", "5 min"},
			{"Contact them to book a time", "10 min"},
			{"Add the appointment and any prep to your calendar", "5 min"},
		},
	},
	{
		keywords: []string{"email", "contact", "reply"},
		category: "admin",
		steps: [3]templateStep{
			{"Find the right contact and address", "5 min"},
			{"Draft the message with your key points", "10 min"},
			{"Send it and set a reminder to follow up", "5 min"},
		},
	},
}

var genericTemplate = fallbackTemplate{
	category: "general",
	steps: [3]templateStep{
		{"Clarify what finished looks like", "5 min"},
		{"Identify the first small action you can take today", "5 min"},
		{"Schedule time to do it and follow through", "10 min"},
	},
}

// FallbackSteps produces a deterministic three step plan for a task title.
// It never fails and never returns an empty list.
func FallbackSteps(title string) []task.Step {
	template := matchTemplate(title)

	steps := make([]task.Step, 0, len(template.steps))
	for _, s := range template.steps {
		steps = append(steps, task.Step{
			ID:           uuid.New(),
			Text:         s.text,
			TimeEstimate: s.estimate,
			Done:         false,
		})
	}
	return steps
}

// FallbackCategory returns the category the fallback plan files the task under.
func FallbackCategory(title string) string {
	return matchTemplate(title).category
}

func matchTemplate(title string) fallbackTemplate {
	lowered := strings.ToLower(title)
	for _, template := range fallbackTemplates {
		for _, keyword := range template.keywords {
			if strings.Contains(lowered, keyword) {
				return template
			}
		}
	}
	return genericTemplate
}
