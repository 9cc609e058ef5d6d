package dialogs

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dialogpipe/dialogpipe/internal/dialog"
	"github.com/dialogpipe/dialogpipe/internal/models"
)

// Prompt ids owned by the bug report dialog.
const (
	promptIDBugDescription = "bugReport.description"
	promptIDCallbackTime   = "bugReport.callbackTime"
	promptIDPhoneNumber    = "bugReport.phoneNumber"
	promptIDBugCategory    = "bugReport.category"
)

// Callback window accepted by the time prompt, inclusive at both ends.
var (
	callbackWindowStart = dialog.TimeOfDay{Hour: 9}
	callbackWindowEnd   = dialog.TimeOfDay{Hour: 17}
)

// BugCategories lists the accepted bug types, in the order presented to the
// user.
var BugCategories = []string{
	"Security",
	"Crash",
	"Power",
	"Performance",
	"Usability",
	"Serious Bug",
	"Other",
}

// RegisterBugReport adds the bug report dialog and its prompts to set.
func RegisterBugReport(set *dialog.DialogSet) error {
	if err := set.Add(dialog.NewTextPrompt(promptIDBugDescription)); err != nil {
		return err
	}
	if err := set.Add(dialog.NewTimePrompt(promptIDCallbackTime, callbackWindowStart, callbackWindowEnd)); err != nil {
		return err
	}
	if err := set.Add(dialog.NewPatternPrompt(promptIDPhoneNumber, dialog.PhonePattern)); err != nil {
		return err
	}
	if err := set.Add(dialog.NewChoicePrompt(promptIDBugCategory)); err != nil {
		return err
	}
	return set.Add(NewBugReportDialog())
}

// NewBugReportDialog builds the five-step bug report intake flow: description,
// callback time, phone number, bug category, then a summary that commits the
// report to the user profile.
func NewBugReportDialog() *dialog.WaterfallDialog {
	steps := []dialog.WaterfallStep{
		{Name: "description", Run: bugDescriptionStep},
		{Name: "callbackTime", Run: bugCallbackTimeStep},
		{Name: "phoneNumber", Run: bugPhoneNumberStep},
		{Name: "category", Run: bugCategoryStep},
		{Name: "summary", Run: bugSummaryStep},
	}
	return dialog.NewWaterfallDialog(DialogIDBugReport, steps)
}

func bugDescriptionStep(sc *dialog.WaterfallStepContext) (dialog.DialogTurnResult, error) {
	return sc.Prompt(promptIDBugDescription, models.PromptOptions{
		Prompt: "Enter a description for your report",
	})
}

func bugCallbackTimeStep(sc *dialog.WaterfallStepContext) (dialog.DialogTurnResult, error) {
	return sc.Prompt(promptIDCallbackTime, models.PromptOptions{
		Prompt:      "Please enter in a callback time",
		RetryPrompt: "The value entered must be between the hours of 9AM and 5PM.",
	})
}

func bugPhoneNumberStep(sc *dialog.WaterfallStepContext) (dialog.DialogTurnResult, error) {
	return sc.Prompt(promptIDPhoneNumber, models.PromptOptions{
		Prompt:      "Please enter in a phone number that we can call you back at",
		RetryPrompt: "Please enter a valid phone number",
	})
}

func bugCategoryStep(sc *dialog.WaterfallStepContext) (dialog.DialogTurnResult, error) {
	return sc.Prompt(promptIDBugCategory, models.PromptOptions{
		Prompt:  "Please enter the type of bug.",
		Choices: BugCategories,
	})
}

func bugSummaryStep(sc *dialog.WaterfallStepContext) (dialog.DialogTurnResult, error) {
	values := sc.Values()
	callbackTime, err := dialog.ParseTimeValue(values["callbackTime"])
	if err != nil {
		return dialog.DialogTurnResult{}, fmt.Errorf("invalid stored callback time %q: %w", values["callbackTime"], err)
	}

	profile, err := sc.Turn().UserProfile()
	if err != nil {
		return dialog.DialogTurnResult{}, fmt.Errorf("failed to load user profile: %w", err)
	}
	profile.BugDescription = values["description"]
	profile.CallbackTime = callbackTime
	profile.PhoneNumber = values["phoneNumber"]
	profile.BugCategory = values["category"]

	slog.Info("BugReportDialog: report captured",
		"user", sc.Turn().UserID(), "category", profile.BugCategory)

	sc.SendMessage("Here is a summary of your bug report:")
	sc.SendMessage(fmt.Sprintf("Description: %s", profile.BugDescription))
	sc.SendMessage(fmt.Sprintf("Callback Time: %s", profile.CallbackTime.Format(time.Kitchen)))
	sc.SendMessage(fmt.Sprintf("Phone Number: %s", profile.PhoneNumber))
	sc.SendMessage(fmt.Sprintf("Bug: %s", profile.BugCategory))
	return sc.End(profile.BugCategory)
}
