package dialog

import (
	"fmt"
	"log/slog"

	"github.com/dialogpipe/dialogpipe/internal/models"
)

// DialogContext binds the dialog registry, the turn, and the persisted dialog
// stack for one turn. All stack operations are transformations of the
// conversation data value loaded at the start of the turn; nothing survives in
// memory between turns.
type DialogContext struct {
	set  *DialogSet
	turn *TurnContext
	data *models.ConversationData
}

// NewDialogContext creates a dialog context over the turn's conversation state.
func NewDialogContext(set *DialogSet, turn *TurnContext) (*DialogContext, error) {
	data, err := turn.ConversationData()
	if err != nil {
		return nil, err
	}
	return &DialogContext{set: set, turn: turn, data: data}, nil
}

// Turn returns the turn context this dialog context operates in.
func (dc *DialogContext) Turn() *TurnContext {
	return dc.turn
}

// StackDepth returns the number of suspended dialog levels.
func (dc *DialogContext) StackDepth() int {
	return len(dc.data.DialogStack)
}

// ActiveDialogID returns the id of the top-of-stack dialog, or "" when the
// stack is empty.
func (dc *DialogContext) ActiveDialogID() string {
	if len(dc.data.DialogStack) == 0 {
		return ""
	}
	return dc.data.DialogStack[len(dc.data.DialogStack)-1].ID
}

// RootDialogID returns the id of the bottom-of-stack dialog, or "" when the
// stack is empty. The root identifies which flow the conversation is in.
func (dc *DialogContext) RootDialogID() string {
	if len(dc.data.DialogStack) == 0 {
		return ""
	}
	return dc.data.DialogStack[0].ID
}

func (dc *DialogContext) top() *models.DialogInstance {
	return &dc.data.DialogStack[len(dc.data.DialogStack)-1]
}

// BeginDialog pushes a new instance of the dialog registered under dialogID
// and invokes its start behavior. Unknown ids are a hard error.
func (dc *DialogContext) BeginDialog(dialogID string, options any) (DialogTurnResult, error) {
	d, ok := dc.set.Find(dialogID)
	if !ok {
		slog.Error("DialogContext.BeginDialog: dialog not registered", "dialog", dialogID)
		return DialogTurnResult{}, fmt.Errorf("%w: %s", models.ErrUnknownDialog, dialogID)
	}
	dc.data.DialogStack = append(dc.data.DialogStack, models.DialogInstance{ID: dialogID})
	slog.Debug("DialogContext.BeginDialog: pushed", "dialog", dialogID, "stack_depth", len(dc.data.DialogStack))
	return d.Begin(dc, dc.top(), options)
}

// ContinueDialog resumes the top-of-stack dialog with the current turn's
// input. An empty stack yields DialogTurnStatusEmpty so the caller can run
// root dispatch instead.
func (dc *DialogContext) ContinueDialog() (DialogTurnResult, error) {
	if len(dc.data.DialogStack) == 0 {
		slog.Debug("DialogContext.ContinueDialog: stack empty")
		return DialogTurnResult{Status: DialogTurnStatusEmpty}, nil
	}
	inst := dc.top()
	d, ok := dc.set.Find(inst.ID)
	if !ok {
		// The persisted stack references a dialog that no longer exists. This
		// is fatal for the turn; the caller decides how to surface it.
		slog.Error("DialogContext.ContinueDialog: stack references unregistered dialog", "dialog", inst.ID)
		return DialogTurnResult{}, fmt.Errorf("%w: %s", models.ErrUnknownDialog, inst.ID)
	}
	slog.Debug("DialogContext.ContinueDialog: resuming", "dialog", inst.ID, "stack_depth", len(dc.data.DialogStack))
	return d.Continue(dc, inst)
}

// EndDialog pops the top instance. If the stack remains non-empty, the new
// top dialog resumes with result as the incoming value; otherwise the turn
// completes with result.
func (dc *DialogContext) EndDialog(result string) (DialogTurnResult, error) {
	if len(dc.data.DialogStack) == 0 {
		return DialogTurnResult{}, fmt.Errorf("cannot end dialog: stack is empty")
	}
	ended := dc.data.DialogStack[len(dc.data.DialogStack)-1]
	dc.data.DialogStack = dc.data.DialogStack[:len(dc.data.DialogStack)-1]
	slog.Debug("DialogContext.EndDialog: popped", "dialog", ended.ID, "stack_depth", len(dc.data.DialogStack))

	if len(dc.data.DialogStack) == 0 {
		return DialogTurnResult{Status: DialogTurnStatusComplete, Result: result}, nil
	}
	inst := dc.top()
	d, ok := dc.set.Find(inst.ID)
	if !ok {
		slog.Error("DialogContext.EndDialog: parent dialog not registered", "dialog", inst.ID)
		return DialogTurnResult{}, fmt.Errorf("%w: %s", models.ErrUnknownDialog, inst.ID)
	}
	return d.Resume(dc, inst, result)
}

// ReplaceDialog pops the top instance without resuming its parent and begins
// dialogID in its place.
func (dc *DialogContext) ReplaceDialog(dialogID string, options any) (DialogTurnResult, error) {
	if len(dc.data.DialogStack) > 0 {
		dc.data.DialogStack = dc.data.DialogStack[:len(dc.data.DialogStack)-1]
	}
	return dc.BeginDialog(dialogID, options)
}
