package dialog

import (
	"testing"

	"github.com/dialogpipe/dialogpipe/internal/models"
)

func TestWaterfallRunsStepsAcrossTurns(t *testing.T) {
	steps := []WaterfallStep{
		{Name: "first", Run: func(sc *WaterfallStepContext) (DialogTurnResult, error) {
			sc.SendMessage("question one")
			return DialogTurnResult{Status: DialogTurnStatusWaiting}, nil
		}},
		{Name: "second", Run: func(sc *WaterfallStepContext) (DialogTurnResult, error) {
			return sc.End("got " + sc.Result)
		}},
	}
	set := NewDialogSet()
	if err := set.Add(NewWaterfallDialog("wf", steps)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	sm := newTestStateManager()

	tc1 := newTestTurn(t, sm, "start")
	dc1, err := NewDialogContext(set, tc1)
	if err != nil {
		t.Fatalf("NewDialogContext failed: %v", err)
	}
	result, err := dc1.BeginDialog("wf", nil)
	if err != nil {
		t.Fatalf("BeginDialog failed: %v", err)
	}
	if result.Status != DialogTurnStatusWaiting {
		t.Fatalf("expected waiting after first step, got %s", result.Status)
	}
	if len(tc1.Replies()) != 1 || tc1.Replies()[0].Text != "question one" {
		t.Errorf("unexpected replies %+v", tc1.Replies())
	}
	if err := tc1.SaveChanges(); err != nil {
		t.Fatalf("SaveChanges failed: %v", err)
	}

	tc2 := newTestTurn(t, sm, "answer")
	dc2, err := NewDialogContext(set, tc2)
	if err != nil {
		t.Fatalf("NewDialogContext failed: %v", err)
	}
	result, err = dc2.ContinueDialog()
	if err != nil {
		t.Fatalf("ContinueDialog failed: %v", err)
	}
	if result.Status != DialogTurnStatusComplete {
		t.Errorf("expected complete, got %s", result.Status)
	}
	if result.Result != "got answer" {
		t.Errorf("expected result from second step, got %q", result.Result)
	}
}

func TestWaterfallRecordsStepResults(t *testing.T) {
	var captured map[string]string
	steps := []WaterfallStep{
		{Name: "color", Run: func(sc *WaterfallStepContext) (DialogTurnResult, error) {
			return sc.Next("blue")
		}},
		{Name: "size", Run: func(sc *WaterfallStepContext) (DialogTurnResult, error) {
			return sc.Next("large")
		}},
		{Name: "summary", Run: func(sc *WaterfallStepContext) (DialogTurnResult, error) {
			captured = sc.Values()
			return sc.End("")
		}},
	}
	set := NewDialogSet()
	if err := set.Add(NewWaterfallDialog("wf", steps)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	tc := newTestTurn(t, newTestStateManager(), "go")
	dc, err := NewDialogContext(set, tc)
	if err != nil {
		t.Fatalf("NewDialogContext failed: %v", err)
	}

	if _, err := dc.BeginDialog("wf", nil); err != nil {
		t.Fatalf("BeginDialog failed: %v", err)
	}
	if captured["color"] != "blue" {
		t.Errorf("expected color=blue, got %q", captured["color"])
	}
	if captured["size"] != "large" {
		t.Errorf("expected size=large, got %q", captured["size"])
	}
}

func TestWaterfallSeedValues(t *testing.T) {
	steps := []WaterfallStep{
		{Name: "only", Run: func(sc *WaterfallStepContext) (DialogTurnResult, error) {
			return sc.End(sc.Values()["seeded"])
		}},
	}
	set := NewDialogSet()
	if err := set.Add(NewWaterfallDialog("wf", steps)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	tc := newTestTurn(t, newTestStateManager(), "go")
	dc, err := NewDialogContext(set, tc)
	if err != nil {
		t.Fatalf("NewDialogContext failed: %v", err)
	}

	result, err := dc.BeginDialog("wf", map[string]string{"seeded": "hello"})
	if err != nil {
		t.Fatalf("BeginDialog failed: %v", err)
	}
	if result.Result != "hello" {
		t.Errorf("expected seeded value, got %q", result.Result)
	}
}

func TestWaterfallZeroStepsEndsImmediately(t *testing.T) {
	set := NewDialogSet()
	if err := set.Add(NewWaterfallDialog("empty", nil)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	tc := newTestTurn(t, newTestStateManager(), "go")
	dc, err := NewDialogContext(set, tc)
	if err != nil {
		t.Fatalf("NewDialogContext failed: %v", err)
	}

	result, err := dc.BeginDialog("empty", nil)
	if err != nil {
		t.Fatalf("BeginDialog failed: %v", err)
	}
	if result.Status != DialogTurnStatusComplete {
		t.Errorf("expected complete, got %s", result.Status)
	}
	if dc.StackDepth() != 0 {
		t.Errorf("expected empty stack, depth %d", dc.StackDepth())
	}
}

func TestWaterfallPromptRoundTrip(t *testing.T) {
	steps := []WaterfallStep{
		{Name: "ask", Run: func(sc *WaterfallStepContext) (DialogTurnResult, error) {
			return sc.Prompt("textPrompt", models.PromptOptions{Prompt: "What is your name?"})
		}},
		{Name: "done", Run: func(sc *WaterfallStepContext) (DialogTurnResult, error) {
			return sc.End("Hello " + sc.Result)
		}},
	}
	set := NewDialogSet()
	if err := set.Add(NewWaterfallDialog("wf", steps)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := set.Add(NewTextPrompt("textPrompt")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	sm := newTestStateManager()

	tc1 := newTestTurn(t, sm, "start")
	dc1, err := NewDialogContext(set, tc1)
	if err != nil {
		t.Fatalf("NewDialogContext failed: %v", err)
	}
	result, err := dc1.BeginDialog("wf", nil)
	if err != nil {
		t.Fatalf("BeginDialog failed: %v", err)
	}
	if result.Status != DialogTurnStatusWaiting {
		t.Fatalf("expected waiting on prompt, got %s", result.Status)
	}
	if dc1.StackDepth() != 2 {
		t.Fatalf("expected prompt stacked on waterfall, depth %d", dc1.StackDepth())
	}
	if dc1.ActiveDialogID() != "textPrompt" {
		t.Errorf("expected textPrompt active, got %q", dc1.ActiveDialogID())
	}
	if err := tc1.SaveChanges(); err != nil {
		t.Fatalf("SaveChanges failed: %v", err)
	}

	// The reply flows through the prompt, which validates it and resumes the
	// waterfall with the accepted value as the next step's Result.
	tc2 := newTestTurn(t, sm, "Ada")
	dc2, err := NewDialogContext(set, tc2)
	if err != nil {
		t.Fatalf("NewDialogContext failed: %v", err)
	}
	result, err = dc2.ContinueDialog()
	if err != nil {
		t.Fatalf("ContinueDialog failed: %v", err)
	}
	if result.Status != DialogTurnStatusComplete {
		t.Errorf("expected complete, got %s", result.Status)
	}
	if result.Result != "Hello Ada" {
		t.Errorf("expected greeting result, got %q", result.Result)
	}
}

func TestWaterfallEarlyEndSkipsRemainingSteps(t *testing.T) {
	ran := false
	steps := []WaterfallStep{
		{Name: "bail", Run: func(sc *WaterfallStepContext) (DialogTurnResult, error) {
			return sc.End("early")
		}},
		{Name: "never", Run: func(sc *WaterfallStepContext) (DialogTurnResult, error) {
			ran = true
			return sc.End("")
		}},
	}
	set := NewDialogSet()
	if err := set.Add(NewWaterfallDialog("wf", steps)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	tc := newTestTurn(t, newTestStateManager(), "go")
	dc, err := NewDialogContext(set, tc)
	if err != nil {
		t.Fatalf("NewDialogContext failed: %v", err)
	}

	result, err := dc.BeginDialog("wf", nil)
	if err != nil {
		t.Fatalf("BeginDialog failed: %v", err)
	}
	if result.Result != "early" {
		t.Errorf("expected early result, got %q", result.Result)
	}
	if ran {
		t.Error("second step should not have run")
	}
}
