// Package dialog implements the dialog orchestration engine for DialogPipe.
//
// Dialogs are resumable units of multi-turn conversation logic. A persisted
// stack of dialog instances tracks which dialogs are suspended mid-sequence;
// each inbound message advances the top of the stack by exactly one step.
// There is no in-process continuation between turns: all suspended state is
// serialized into the conversation scope and rehydrated on the next message.
package dialog

import (
	"fmt"
	"log/slog"

	"github.com/dialogpipe/dialogpipe/internal/models"
)

// DialogTurnStatus describes where a dialog left the turn.
type DialogTurnStatus string

const (
	// DialogTurnStatusEmpty means the stack was empty: no active dialog.
	DialogTurnStatusEmpty DialogTurnStatus = "empty"
	// DialogTurnStatusWaiting means a prompt is outstanding and the turn ends here.
	DialogTurnStatusWaiting DialogTurnStatus = "waiting"
	// DialogTurnStatusComplete means the active dialog ended this turn.
	DialogTurnStatusComplete DialogTurnStatus = "complete"
)

// DialogTurnResult is the outcome of advancing a dialog by one step.
// Result carries the dialog's final value when Status is Complete.
type DialogTurnResult struct {
	Status DialogTurnStatus
	Result string
}

// Dialog is a registered, resumable unit of conversation logic.
//
// Begin runs when the dialog is pushed onto the stack. Continue runs when an
// inbound message arrives while the dialog is on top. Resume runs when a child
// dialog ends and delivers its result to this dialog.
type Dialog interface {
	ID() string
	Begin(dc *DialogContext, instance *models.DialogInstance, options any) (DialogTurnResult, error)
	Continue(dc *DialogContext, instance *models.DialogInstance) (DialogTurnResult, error)
	Resume(dc *DialogContext, instance *models.DialogInstance, result string) (DialogTurnResult, error)
}

// DialogSet is the registry mapping dialog ids to definitions. Registration
// happens once at startup; lookups happen on every turn.
type DialogSet struct {
	dialogs map[string]Dialog
}

// NewDialogSet creates an empty dialog registry.
func NewDialogSet() *DialogSet {
	return &DialogSet{dialogs: make(map[string]Dialog)}
}

// Add registers a dialog definition. Duplicate ids are a configuration error.
func (ds *DialogSet) Add(d Dialog) error {
	if d.ID() == "" {
		return fmt.Errorf("dialog id cannot be empty")
	}
	if _, exists := ds.dialogs[d.ID()]; exists {
		return fmt.Errorf("dialog %q already registered", d.ID())
	}
	ds.dialogs[d.ID()] = d
	slog.Debug("DialogSet.Add: dialog registered", "dialog", d.ID())
	return nil
}

// Find returns the dialog registered under id.
func (ds *DialogSet) Find(id string) (Dialog, bool) {
	d, ok := ds.dialogs[id]
	return d, ok
}
