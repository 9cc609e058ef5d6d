package dialog

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dialogpipe/dialogpipe/internal/models"
)

// PromptOptionFormat is the format string for rendering one enumerated choice.
const PromptOptionFormat = "\n%d. %s"

// PhonePattern matches phone numbers with an optional country code, optional
// separators, and exactly 10 significant digits.
var PhonePattern = regexp.MustCompile(`^(\+\d{1,2}\s?)?\(?\d{3}\)?[\s.-]?\d{3}[\s.-]?\d{4}$`)

// PromptValidator inspects one raw reply against the prompt's options and
// either accepts it with a canonical value or rejects it, driving a re-prompt.
type PromptValidator func(input string, opts models.PromptOptions) (value string, ok bool)

// Prompt is a single-step reusable dialog: it renders a question, waits one
// turn for a reply, validates it, and either ends with the accepted value or
// re-prompts. Retries are unbounded.
type Prompt struct {
	id        string
	validator PromptValidator
}

// NewPrompt creates a prompt dialog with a custom validator.
func NewPrompt(id string, validator PromptValidator) *Prompt {
	return &Prompt{id: id, validator: validator}
}

// NewTextPrompt creates a prompt accepting any non-empty trimmed text.
func NewTextPrompt(id string) *Prompt {
	return NewPrompt(id, TextValidator)
}

// NewChoicePrompt creates a prompt accepting only the configured choice
// labels (case-insensitive) or their 1-based position in the rendered list.
func NewChoicePrompt(id string) *Prompt {
	return NewPrompt(id, ChoiceValidator)
}

// NewTimePrompt creates a prompt accepting a date/time expression whose
// time-of-day falls within the inclusive [start, end] window.
func NewTimePrompt(id string, start, end TimeOfDay) *Prompt {
	return NewPrompt(id, TimeWindowValidator(start, end))
}

// NewPatternPrompt creates a prompt accepting only replies that fully match
// pattern.
func NewPatternPrompt(id string, pattern *regexp.Regexp) *Prompt {
	return NewPrompt(id, PatternValidator(pattern))
}

// ID returns the prompt's registered id.
func (p *Prompt) ID() string {
	return p.id
}

// Begin renders the prompt and suspends the dialog. Options must be a
// models.PromptOptions value.
func (p *Prompt) Begin(dc *DialogContext, instance *models.DialogInstance, options any) (DialogTurnResult, error) {
	opts, ok := options.(models.PromptOptions)
	if !ok {
		return DialogTurnResult{}, fmt.Errorf("prompt %s requires PromptOptions, got %T", p.id, options)
	}
	instance.Prompt = &models.PromptState{Options: opts}
	dc.Turn().SendMessage(renderPrompt(opts.Prompt, opts.Choices))
	slog.Debug("Prompt.Begin: suspended", "prompt", p.id)
	return DialogTurnResult{Status: DialogTurnStatusWaiting}, nil
}

// Continue validates the inbound reply. Acceptance ends the prompt and
// delivers the canonical value to the parent; rejection re-sends the retry
// text (falling back to the original prompt) and suspends again.
func (p *Prompt) Continue(dc *DialogContext, instance *models.DialogInstance) (DialogTurnResult, error) {
	if instance.Prompt == nil {
		return DialogTurnResult{}, fmt.Errorf("prompt %s has no suspended state", p.id)
	}
	opts := instance.Prompt.Options
	input := strings.TrimSpace(dc.Turn().Activity().Text)

	value, ok := p.validator(input, opts)
	if !ok {
		instance.Prompt.RetryCount++
		slog.Debug("Prompt.Continue: reply rejected", "prompt", p.id, "retry_count", instance.Prompt.RetryCount)
		retry := opts.RetryPrompt
		if retry == "" {
			retry = opts.Prompt
		}
		dc.Turn().SendMessage(renderPrompt(retry, opts.Choices))
		return DialogTurnResult{Status: DialogTurnStatusWaiting}, nil
	}

	slog.Debug("Prompt.Continue: reply accepted", "prompt", p.id)
	instance.Prompt = nil
	return dc.EndDialog(value)
}

// Resume re-renders the prompt. A child ending underneath a prompt is not a
// normal occurrence; the prompt simply asks again.
func (p *Prompt) Resume(dc *DialogContext, instance *models.DialogInstance, result string) (DialogTurnResult, error) {
	if instance.Prompt != nil {
		dc.Turn().SendMessage(renderPrompt(instance.Prompt.Options.Prompt, instance.Prompt.Options.Choices))
	}
	return DialogTurnResult{Status: DialogTurnStatusWaiting}, nil
}

func renderPrompt(text string, choices []string) string {
	if len(choices) == 0 {
		return text
	}
	var sb strings.Builder
	sb.WriteString(text)
	for i, choice := range choices {
		sb.WriteString(fmt.Sprintf(PromptOptionFormat, i+1, choice))
	}
	return sb.String()
}

// TextValidator accepts any non-empty trimmed text.
func TextValidator(input string, _ models.PromptOptions) (string, bool) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", false
	}
	return trimmed, true
}

// ChoiceValidator accepts replies matching a configured choice label
// case-insensitively, or the 1-based number of a choice as rendered. The
// canonical label is returned.
func ChoiceValidator(input string, opts models.PromptOptions) (string, bool) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", false
	}
	for _, choice := range opts.Choices {
		if strings.EqualFold(trimmed, choice) {
			return choice, true
		}
	}
	if n, err := strconv.Atoi(trimmed); err == nil && n >= 1 && n <= len(opts.Choices) {
		return opts.Choices[n-1], true
	}
	return "", false
}

// TimeOfDay is a wall-clock position within a day.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) minutes() int {
	return t.Hour*60 + t.Minute
}

// Layouts tried when parsing time expressions. Date-bearing layouts come
// first; time-only layouts are combined with the current date.
var (
	dateTimeLayouts = []string{
		time.RFC3339,
		"2006-01-02 15:04",
		"2006-01-02 3:04 PM",
	}
	timeOnlyLayouts = []string{
		"15:04:05",
		"15:04",
		"3:04 PM",
		"3:04PM",
		"3 PM",
		"3PM",
	}
)

// TimeWindowValidator accepts a parseable date/time expression whose
// time-of-day falls inside the inclusive [start, end] window. The canonical
// value is the RFC 3339 rendering of the parsed time.
func TimeWindowValidator(start, end TimeOfDay) PromptValidator {
	return func(input string, _ models.PromptOptions) (string, bool) {
		parsed, ok := parseTimeExpression(input)
		if !ok {
			return "", false
		}
		at := parsed.Hour()*60 + parsed.Minute()
		if at < start.minutes() || at > end.minutes() {
			return "", false
		}
		return parsed.Format(time.RFC3339), true
	}
}

// PatternValidator accepts replies fully matching pattern.
func PatternValidator(pattern *regexp.Regexp) PromptValidator {
	return func(input string, _ models.PromptOptions) (string, bool) {
		trimmed := strings.TrimSpace(input)
		if !pattern.MatchString(trimmed) {
			return "", false
		}
		return trimmed, true
	}
}

func parseTimeExpression(input string) (time.Time, bool) {
	trimmed := strings.ToUpper(strings.TrimSpace(input))
	if trimmed == "" {
		return time.Time{}, false
	}
	for _, layout := range dateTimeLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed, true
		}
	}
	now := time.Now()
	for _, layout := range timeOnlyLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return time.Date(now.Year(), now.Month(), now.Day(),
				parsed.Hour(), parsed.Minute(), 0, 0, now.Location()), true
		}
	}
	return time.Time{}, false
}

// ParseTimeValue decodes a canonical time value produced by a time prompt.
func ParseTimeValue(value string) (time.Time, error) {
	return time.Parse(time.RFC3339, value)
}
