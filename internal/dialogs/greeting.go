// Package dialogs defines the concrete conversation flows built on the dialog
// engine: greeting, bug report intake, and bug type lookup.
package dialogs

import (
	"fmt"
	"log/slog"

	"github.com/dialogpipe/dialogpipe/internal/dialog"
	"github.com/dialogpipe/dialogpipe/internal/models"
)

// Dialog ids registered by this package. Prompt ids are namespaced under their
// owning dialog.
const (
	DialogIDGreeting     = "greeting"
	DialogIDBugReport    = "bugReport"
	DialogIDBugTypeQuery = "bugTypeQuery"

	promptIDGreetingName = "greeting.name"
)

// Register adds every dialog and prompt this package defines to set.
func Register(set *dialog.DialogSet) error {
	if err := RegisterGreeting(set); err != nil {
		return err
	}
	if err := RegisterBugReport(set); err != nil {
		return err
	}
	if err := RegisterBugTypeQuery(set); err != nil {
		return err
	}
	return nil
}

// RegisterGreeting adds the greeting dialog and its name prompt to set.
func RegisterGreeting(set *dialog.DialogSet) error {
	if err := set.Add(dialog.NewTextPrompt(promptIDGreetingName)); err != nil {
		return err
	}
	return set.Add(NewGreetingDialog())
}

// NewGreetingDialog builds the two-step greeting flow. The first step asks for
// the user's name unless the profile already has one; the second greets them.
func NewGreetingDialog() *dialog.WaterfallDialog {
	steps := []dialog.WaterfallStep{
		{Name: "name", Run: greetingNameStep},
		{Name: "final", Run: greetingFinalStep},
	}
	return dialog.NewWaterfallDialog(DialogIDGreeting, steps)
}

func greetingNameStep(sc *dialog.WaterfallStepContext) (dialog.DialogTurnResult, error) {
	profile, err := sc.Turn().UserProfile()
	if err != nil {
		return dialog.DialogTurnResult{}, fmt.Errorf("failed to load user profile: %w", err)
	}
	if profile.Name != "" {
		slog.Debug("GreetingDialog: name already known, skipping prompt", "user", sc.Turn().UserID())
		return sc.Next(profile.Name)
	}

	conv, err := sc.Turn().ConversationData()
	if err != nil {
		return dialog.DialogTurnResult{}, fmt.Errorf("failed to load conversation data: %w", err)
	}
	conv.PromptedForName = true
	return sc.Prompt(promptIDGreetingName, models.PromptOptions{
		Prompt: "What is your name?",
	})
}

func greetingFinalStep(sc *dialog.WaterfallStepContext) (dialog.DialogTurnResult, error) {
	profile, err := sc.Turn().UserProfile()
	if err != nil {
		return dialog.DialogTurnResult{}, fmt.Errorf("failed to load user profile: %w", err)
	}
	profile.Name = sc.Result
	sc.SendMessage(fmt.Sprintf("Hi %s. How can I help you today?", profile.Name))
	return sc.End(profile.Name)
}
