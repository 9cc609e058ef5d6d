package dialogs

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dialogpipe/dialogpipe/internal/dialog"
	"github.com/dialogpipe/dialogpipe/internal/models"
)

const promptIDBugTypeName = "bugTypeQuery.name"

// ValueKeyBugType seeds the bug type query dialog with an entity extracted by
// the recognizer, skipping the prompt.
const ValueKeyBugType = "bugType"

// Recognizer entities arrive with the user's raw punctuation attached.
var bugTypeCleanup = regexp.MustCompile(`[^a-zA-Z0-9 -]`)

var bugCategoryDescriptions = map[string]string{
	"Security":    "a vulnerability that exposes data or access it should not.",
	"Crash":       "the application terminates unexpectedly.",
	"Power":       "abnormal battery drain or energy use.",
	"Performance": "the application is functional but unacceptably slow.",
	"Usability":   "the application works but is confusing or hard to operate.",
	"Serious Bug": "a defect with major impact that needs priority handling.",
	"Other":       "anything that does not fit the other categories.",
}

// RegisterBugTypeQuery adds the bug type lookup dialog and its prompt to set.
func RegisterBugTypeQuery(set *dialog.DialogSet) error {
	if err := set.Add(dialog.NewTextPrompt(promptIDBugTypeName)); err != nil {
		return err
	}
	return set.Add(NewBugTypeQueryDialog())
}

// NewBugTypeQueryDialog builds the two-step bug type lookup flow. When the
// recognizer already extracted a bug type entity the first step passes it
// through; otherwise it asks.
func NewBugTypeQueryDialog() *dialog.WaterfallDialog {
	steps := []dialog.WaterfallStep{
		{Name: "name", Run: bugTypeNameStep},
		{Name: "answer", Run: bugTypeAnswerStep},
	}
	return dialog.NewWaterfallDialog(DialogIDBugTypeQuery, steps)
}

func bugTypeNameStep(sc *dialog.WaterfallStepContext) (dialog.DialogTurnResult, error) {
	if seeded := sc.Values()[ValueKeyBugType]; seeded != "" {
		return sc.Next(seeded)
	}
	return sc.Prompt(promptIDBugTypeName, models.PromptOptions{
		Prompt: "Which bug type would you like to know about?",
	})
}

func bugTypeAnswerStep(sc *dialog.WaterfallStepContext) (dialog.DialogTurnResult, error) {
	queried := CleanBugType(sc.Result)
	for _, category := range BugCategories {
		if strings.EqualFold(queried, category) {
			sc.SendMessage(fmt.Sprintf("Yes! %s is a bug type!", category))
			if desc, ok := bugCategoryDescriptions[category]; ok {
				sc.SendMessage(fmt.Sprintf("%s means %s", category, desc))
			}
			return sc.End(category)
		}
	}
	sc.SendMessage(fmt.Sprintf("I'm sorry, %q is not a bug type I recognize.", queried))
	return sc.End("")
}

// CleanBugType strips punctuation a recognizer entity may carry, keeping
// letters, digits, spaces, and hyphens.
func CleanBugType(raw string) string {
	return strings.TrimSpace(bugTypeCleanup.ReplaceAllString(raw, ""))
}
