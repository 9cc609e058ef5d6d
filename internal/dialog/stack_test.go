package dialog

import (
	"context"
	"errors"
	"testing"

	"github.com/dialogpipe/dialogpipe/internal/models"
	"github.com/dialogpipe/dialogpipe/internal/store"
)

func newTestTurn(t *testing.T, sm StateManager, text string) *TurnContext {
	t.Helper()
	activity := models.Activity{
		Type:         models.ActivityTypeMessage,
		Text:         text,
		From:         models.ChannelAccount{ID: "user-1", Name: "Test User"},
		Conversation: "conv-1",
	}
	return NewTurnContext(context.Background(), activity, sm)
}

func newTestStateManager() StateManager {
	return NewStoreBasedStateManager(store.NewInMemoryStore())
}

// scriptedDialog is a minimal dialog for exercising stack mechanics. It waits
// on Begin and ends with the inbound text on Continue.
type scriptedDialog struct {
	id string
}

func (d *scriptedDialog) ID() string { return d.id }

func (d *scriptedDialog) Begin(dc *DialogContext, instance *models.DialogInstance, options any) (DialogTurnResult, error) {
	dc.Turn().SendMessage("begun " + d.id)
	return DialogTurnResult{Status: DialogTurnStatusWaiting}, nil
}

func (d *scriptedDialog) Continue(dc *DialogContext, instance *models.DialogInstance) (DialogTurnResult, error) {
	return dc.EndDialog(dc.Turn().Activity().Text)
}

func (d *scriptedDialog) Resume(dc *DialogContext, instance *models.DialogInstance, result string) (DialogTurnResult, error) {
	return dc.EndDialog("child said " + result)
}

func TestContinueDialogEmptyStack(t *testing.T) {
	set := NewDialogSet()
	tc := newTestTurn(t, newTestStateManager(), "hello")
	dc, err := NewDialogContext(set, tc)
	if err != nil {
		t.Fatalf("NewDialogContext failed: %v", err)
	}

	result, err := dc.ContinueDialog()
	if err != nil {
		t.Fatalf("ContinueDialog failed: %v", err)
	}
	if result.Status != DialogTurnStatusEmpty {
		t.Errorf("expected empty status, got %s", result.Status)
	}
}

func TestBeginDialogUnknownID(t *testing.T) {
	set := NewDialogSet()
	tc := newTestTurn(t, newTestStateManager(), "hello")
	dc, err := NewDialogContext(set, tc)
	if err != nil {
		t.Fatalf("NewDialogContext failed: %v", err)
	}

	_, err = dc.BeginDialog("missing", nil)
	if !errors.Is(err, models.ErrUnknownDialog) {
		t.Errorf("expected ErrUnknownDialog, got %v", err)
	}
	if dc.StackDepth() != 0 {
		t.Errorf("stack should stay empty after failed begin, depth %d", dc.StackDepth())
	}
}

func TestBeginAndContinueAcrossTurns(t *testing.T) {
	set := NewDialogSet()
	if err := set.Add(&scriptedDialog{id: "scripted"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	sm := newTestStateManager()

	// Turn 1: begin the dialog, which suspends waiting for input.
	tc1 := newTestTurn(t, sm, "start")
	dc1, err := NewDialogContext(set, tc1)
	if err != nil {
		t.Fatalf("NewDialogContext failed: %v", err)
	}
	result, err := dc1.BeginDialog("scripted", nil)
	if err != nil {
		t.Fatalf("BeginDialog failed: %v", err)
	}
	if result.Status != DialogTurnStatusWaiting {
		t.Fatalf("expected waiting status, got %s", result.Status)
	}
	if dc1.ActiveDialogID() != "scripted" {
		t.Errorf("expected active dialog scripted, got %q", dc1.ActiveDialogID())
	}
	if err := tc1.SaveChanges(); err != nil {
		t.Fatalf("SaveChanges failed: %v", err)
	}

	// Turn 2: a fresh context rehydrates the stack and the dialog completes.
	tc2 := newTestTurn(t, sm, "payload")
	dc2, err := NewDialogContext(set, tc2)
	if err != nil {
		t.Fatalf("NewDialogContext failed: %v", err)
	}
	if dc2.StackDepth() != 1 {
		t.Fatalf("expected rehydrated stack depth 1, got %d", dc2.StackDepth())
	}
	result, err = dc2.ContinueDialog()
	if err != nil {
		t.Fatalf("ContinueDialog failed: %v", err)
	}
	if result.Status != DialogTurnStatusComplete {
		t.Errorf("expected complete status, got %s", result.Status)
	}
	if result.Result != "payload" {
		t.Errorf("expected result payload, got %q", result.Result)
	}
	if dc2.StackDepth() != 0 {
		t.Errorf("expected empty stack after completion, depth %d", dc2.StackDepth())
	}
}

func TestEndDialogResumesParent(t *testing.T) {
	set := NewDialogSet()
	if err := set.Add(&scriptedDialog{id: "parent"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := set.Add(&scriptedDialog{id: "child"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	tc := newTestTurn(t, newTestStateManager(), "go")
	dc, err := NewDialogContext(set, tc)
	if err != nil {
		t.Fatalf("NewDialogContext failed: %v", err)
	}

	if _, err := dc.BeginDialog("parent", nil); err != nil {
		t.Fatalf("BeginDialog parent failed: %v", err)
	}
	if _, err := dc.BeginDialog("child", nil); err != nil {
		t.Fatalf("BeginDialog child failed: %v", err)
	}
	if dc.StackDepth() != 2 {
		t.Fatalf("expected stack depth 2, got %d", dc.StackDepth())
	}

	// Ending the child pops it and hands the result to the parent's Resume,
	// which in turn ends the parent.
	result, err := dc.EndDialog("done")
	if err != nil {
		t.Fatalf("EndDialog failed: %v", err)
	}
	if result.Status != DialogTurnStatusComplete {
		t.Errorf("expected complete status, got %s", result.Status)
	}
	if result.Result != "child said done" {
		t.Errorf("unexpected final result %q", result.Result)
	}
}

func TestContinueDialogUnregisteredTopIsHardError(t *testing.T) {
	sm := newTestStateManager()
	data := &models.ConversationData{
		DialogStack: []models.DialogInstance{{ID: "retired"}},
	}
	if err := sm.SaveConversationData(context.Background(), "conv-1", data); err != nil {
		t.Fatalf("SaveConversationData failed: %v", err)
	}

	set := NewDialogSet()
	tc := newTestTurn(t, sm, "hello")
	dc, err := NewDialogContext(set, tc)
	if err != nil {
		t.Fatalf("NewDialogContext failed: %v", err)
	}
	_, err = dc.ContinueDialog()
	if !errors.Is(err, models.ErrUnknownDialog) {
		t.Errorf("expected ErrUnknownDialog, got %v", err)
	}
}

func TestReplaceDialog(t *testing.T) {
	set := NewDialogSet()
	if err := set.Add(&scriptedDialog{id: "first"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := set.Add(&scriptedDialog{id: "second"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	tc := newTestTurn(t, newTestStateManager(), "go")
	dc, err := NewDialogContext(set, tc)
	if err != nil {
		t.Fatalf("NewDialogContext failed: %v", err)
	}

	if _, err := dc.BeginDialog("first", nil); err != nil {
		t.Fatalf("BeginDialog failed: %v", err)
	}
	if _, err := dc.ReplaceDialog("second", nil); err != nil {
		t.Fatalf("ReplaceDialog failed: %v", err)
	}
	if dc.StackDepth() != 1 {
		t.Errorf("expected stack depth 1 after replace, got %d", dc.StackDepth())
	}
	if dc.ActiveDialogID() != "second" {
		t.Errorf("expected active dialog second, got %q", dc.ActiveDialogID())
	}
}

func TestDialogSetDuplicateID(t *testing.T) {
	set := NewDialogSet()
	if err := set.Add(&scriptedDialog{id: "dup"}); err != nil {
		t.Fatalf("first Add failed: %v", err)
	}
	if err := set.Add(&scriptedDialog{id: "dup"}); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}
