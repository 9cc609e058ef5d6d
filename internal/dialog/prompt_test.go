package dialog

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/dialogpipe/dialogpipe/internal/models"
)

func TestTextValidator(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"Ada", "Ada", true},
		{"  Ada Lovelace  ", "Ada Lovelace", true},
		{"", "", false},
		{"   ", "", false},
	}
	for _, tt := range tests {
		got, ok := TextValidator(tt.input, models.PromptOptions{})
		if ok != tt.ok || got != tt.want {
			t.Errorf("TextValidator(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}

func TestChoiceValidator(t *testing.T) {
	opts := models.PromptOptions{Choices: []string{"Security", "Crash", "Other"}}
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"Security", "Security", true},
		{"security", "Security", true},
		{"CRASH", "Crash", true},
		{"1", "Security", true},
		{"3", "Other", true},
		{"0", "", false},
		{"4", "", false},
		{"nonsense", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ChoiceValidator(tt.input, opts)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ChoiceValidator(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}

func TestTimeWindowValidator(t *testing.T) {
	validate := TimeWindowValidator(TimeOfDay{Hour: 9}, TimeOfDay{Hour: 17})
	tests := []struct {
		input string
		ok    bool
	}{
		{"13:00", true},
		{"09:00", true},
		{"17:00", true},
		{"08:59", false},
		{"17:01", false},
		{"2 PM", true},
		{"2:30 pm", true},
		{"8 AM", false},
		{"not a time", false},
		{"", false},
	}
	for _, tt := range tests {
		value, ok := validate(tt.input, models.PromptOptions{})
		if ok != tt.ok {
			t.Errorf("TimeWindowValidator(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			continue
		}
		if !ok {
			continue
		}
		if _, err := time.Parse(time.RFC3339, value); err != nil {
			t.Errorf("TimeWindowValidator(%q) produced non-RFC3339 value %q", tt.input, value)
		}
	}
}

func TestTimeWindowValidatorCanonicalValue(t *testing.T) {
	validate := TimeWindowValidator(TimeOfDay{Hour: 9}, TimeOfDay{Hour: 17})
	value, ok := validate("13:45", models.PromptOptions{})
	if !ok {
		t.Fatal("expected 13:45 to be accepted")
	}
	parsed, err := ParseTimeValue(value)
	if err != nil {
		t.Fatalf("ParseTimeValue failed: %v", err)
	}
	if parsed.Hour() != 13 || parsed.Minute() != 45 {
		t.Errorf("expected 13:45, got %02d:%02d", parsed.Hour(), parsed.Minute())
	}
}

func TestPhonePattern(t *testing.T) {
	validate := PatternValidator(PhonePattern)
	tests := []struct {
		input string
		ok    bool
	}{
		{"555-123-4567", true},
		{"+1 (555) 123-4567", true},
		{"(555) 123-4567", true},
		{"5551234567", true},
		{"555.123.4567", true},
		{"12345", false},
		{"call me", false},
		{"", false},
	}
	for _, tt := range tests {
		_, ok := validate(tt.input, models.PromptOptions{})
		if ok != tt.ok {
			t.Errorf("PhonePattern(%q) ok = %v, want %v", tt.input, ok, tt.ok)
		}
	}
}

func TestPromptRetriesUntilValid(t *testing.T) {
	set := NewDialogSet()
	if err := set.Add(NewPatternPrompt("phonePrompt", PhonePattern)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	sm := newTestStateManager()

	tc := newTestTurn(t, sm, "start")
	dc, err := NewDialogContext(set, tc)
	if err != nil {
		t.Fatalf("NewDialogContext failed: %v", err)
	}
	opts := models.PromptOptions{
		Prompt:      "What number can we call you at?",
		RetryPrompt: "Please enter a valid phone number",
	}
	if _, err := dc.BeginDialog("phonePrompt", opts); err != nil {
		t.Fatalf("BeginDialog failed: %v", err)
	}
	if err := tc.SaveChanges(); err != nil {
		t.Fatalf("SaveChanges failed: %v", err)
	}

	// Several invalid replies in a row each trigger the retry text and keep
	// the prompt suspended. There is no retry limit.
	for i := 0; i < 5; i++ {
		tc = newTestTurn(t, sm, fmt.Sprintf("bogus-%d", i))
		dc, err = NewDialogContext(set, tc)
		if err != nil {
			t.Fatalf("NewDialogContext failed: %v", err)
		}
		result, err := dc.ContinueDialog()
		if err != nil {
			t.Fatalf("ContinueDialog failed: %v", err)
		}
		if result.Status != DialogTurnStatusWaiting {
			t.Fatalf("retry %d: expected waiting, got %s", i, result.Status)
		}
		if len(tc.Replies()) != 1 || tc.Replies()[0].Text != "Please enter a valid phone number" {
			t.Errorf("retry %d: unexpected replies %+v", i, tc.Replies())
		}
		if err := tc.SaveChanges(); err != nil {
			t.Fatalf("SaveChanges failed: %v", err)
		}
	}

	tc = newTestTurn(t, sm, "555-123-4567")
	dc, err = NewDialogContext(set, tc)
	if err != nil {
		t.Fatalf("NewDialogContext failed: %v", err)
	}
	result, err := dc.ContinueDialog()
	if err != nil {
		t.Fatalf("ContinueDialog failed: %v", err)
	}
	if result.Status != DialogTurnStatusComplete {
		t.Errorf("expected complete, got %s", result.Status)
	}
	if result.Result != "555-123-4567" {
		t.Errorf("expected accepted value, got %q", result.Result)
	}
}

func TestPromptRetryFallsBackToPrompt(t *testing.T) {
	set := NewDialogSet()
	if err := set.Add(NewTextPrompt("textPrompt")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	sm := newTestStateManager()

	tc := newTestTurn(t, sm, "start")
	dc, err := NewDialogContext(set, tc)
	if err != nil {
		t.Fatalf("NewDialogContext failed: %v", err)
	}
	if _, err := dc.BeginDialog("textPrompt", models.PromptOptions{Prompt: "Say something"}); err != nil {
		t.Fatalf("BeginDialog failed: %v", err)
	}
	if err := tc.SaveChanges(); err != nil {
		t.Fatalf("SaveChanges failed: %v", err)
	}

	tc = newTestTurn(t, sm, "   ")
	dc, err = NewDialogContext(set, tc)
	if err != nil {
		t.Fatalf("NewDialogContext failed: %v", err)
	}
	if _, err := dc.ContinueDialog(); err != nil {
		t.Fatalf("ContinueDialog failed: %v", err)
	}
	if len(tc.Replies()) != 1 || tc.Replies()[0].Text != "Say something" {
		t.Errorf("expected original prompt as retry text, got %+v", tc.Replies())
	}
}

func TestPromptRendersNumberedChoices(t *testing.T) {
	set := NewDialogSet()
	if err := set.Add(NewChoicePrompt("choicePrompt")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	tc := newTestTurn(t, newTestStateManager(), "start")
	dc, err := NewDialogContext(set, tc)
	if err != nil {
		t.Fatalf("NewDialogContext failed: %v", err)
	}
	opts := models.PromptOptions{
		Prompt:  "Please choose the type of bug.",
		Choices: []string{"Security", "Crash"},
	}
	if _, err := dc.BeginDialog("choicePrompt", opts); err != nil {
		t.Fatalf("BeginDialog failed: %v", err)
	}
	replies := tc.Replies()
	if len(replies) != 1 {
		t.Fatalf("expected one reply, got %d", len(replies))
	}
	text := replies[0].Text
	if !strings.Contains(text, "1. Security") || !strings.Contains(text, "2. Crash") {
		t.Errorf("expected numbered choices in render, got %q", text)
	}
}

func TestPromptBeginRejectsWrongOptionsType(t *testing.T) {
	set := NewDialogSet()
	if err := set.Add(NewTextPrompt("textPrompt")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	tc := newTestTurn(t, newTestStateManager(), "start")
	dc, err := NewDialogContext(set, tc)
	if err != nil {
		t.Fatalf("NewDialogContext failed: %v", err)
	}
	if _, err := dc.BeginDialog("textPrompt", 42); err == nil {
		t.Error("expected error for non-PromptOptions options")
	}
}
