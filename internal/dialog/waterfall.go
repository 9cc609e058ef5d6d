package dialog

import (
	"log/slog"
	"strings"

	"github.com/dialogpipe/dialogpipe/internal/models"
)

// WaterfallStep is one named step of a waterfall dialog. Name doubles as the
// key under which the step's result is recorded in the values bag when the
// next step runs; an empty name records nothing.
type WaterfallStep struct {
	Name string
	Run  func(sc *WaterfallStepContext) (DialogTurnResult, error)
}

// WaterfallDialog sequences a fixed, ordered list of steps, executing one step
// per turn. Suspended position and captured values live in the dialog
// instance and are persisted with the conversation.
type WaterfallDialog struct {
	id    string
	steps []WaterfallStep
}

// NewWaterfallDialog creates a waterfall dialog from an ordered step list.
func NewWaterfallDialog(id string, steps []WaterfallStep) *WaterfallDialog {
	return &WaterfallDialog{id: id, steps: steps}
}

// ID returns the dialog's registered id.
func (w *WaterfallDialog) ID() string {
	return w.id
}

// Begin initializes the run at step 0. Options of type map[string]string seed
// the values bag. A waterfall with zero steps ends immediately with an empty
// result.
func (w *WaterfallDialog) Begin(dc *DialogContext, instance *models.DialogInstance, options any) (DialogTurnResult, error) {
	instance.StepIndex = 0
	instance.Values = make(map[string]string)
	if seed, ok := options.(map[string]string); ok {
		for k, v := range seed {
			instance.Values[k] = v
		}
	}
	if len(w.steps) == 0 {
		slog.Debug("WaterfallDialog.Begin: no steps, ending immediately", "dialog", w.id)
		return dc.EndDialog("")
	}
	return w.runStep(dc, instance, "")
}

// Continue treats the inbound message text as the current step's result. This
// only happens when the waterfall itself is on top of the stack while waiting,
// i.e. a step suspended without pushing a prompt.
func (w *WaterfallDialog) Continue(dc *DialogContext, instance *models.DialogInstance) (DialogTurnResult, error) {
	return w.Resume(dc, instance, strings.TrimSpace(dc.Turn().Activity().Text))
}

// Resume records result under the just-completed step's name, advances the
// step index by one, and runs the next step. Reaching the end of the list ends
// the dialog with result as its final value.
func (w *WaterfallDialog) Resume(dc *DialogContext, instance *models.DialogInstance, result string) (DialogTurnResult, error) {
	return w.advance(dc, instance, result)
}

// advance moves past the step at instance.StepIndex, which completed with
// result. Instance mutations must happen before the next step runs: a step may
// push onto the stack, and the instance pointer is only stable until then.
func (w *WaterfallDialog) advance(dc *DialogContext, instance *models.DialogInstance, result string) (DialogTurnResult, error) {
	if instance.StepIndex < len(w.steps) {
		if name := w.steps[instance.StepIndex].Name; name != "" {
			if instance.Values == nil {
				instance.Values = make(map[string]string)
			}
			instance.Values[name] = result
		}
	}
	instance.StepIndex++
	if instance.StepIndex >= len(w.steps) {
		slog.Debug("WaterfallDialog.advance: all steps done", "dialog", w.id)
		return dc.EndDialog(result)
	}
	return w.runStep(dc, instance, result)
}

func (w *WaterfallDialog) runStep(dc *DialogContext, instance *models.DialogInstance, result string) (DialogTurnResult, error) {
	step := w.steps[instance.StepIndex]
	slog.Debug("WaterfallDialog.runStep: executing step", "dialog", w.id, "step", step.Name, "index", instance.StepIndex)
	sc := &WaterfallStepContext{dc: dc, waterfall: w, instance: instance, Result: result}
	return step.Run(sc)
}

// WaterfallStepContext is handed to each step function. Result is the prior
// step's result; the step decides how the turn proceeds by calling exactly one
// of Prompt, Begin, Next, or End before returning.
type WaterfallStepContext struct {
	dc        *DialogContext
	waterfall *WaterfallDialog
	instance  *models.DialogInstance

	// Result is the value produced by the previous step (or the prompt reply
	// that resumed this waterfall).
	Result string
}

// Turn returns the turn context of the current turn.
func (sc *WaterfallStepContext) Turn() *TurnContext {
	return sc.dc.Turn()
}

// Values is the per-run value bag, alive for this waterfall run only.
func (sc *WaterfallStepContext) Values() map[string]string {
	if sc.instance.Values == nil {
		sc.instance.Values = make(map[string]string)
	}
	return sc.instance.Values
}

// SendMessage queues an outbound reply.
func (sc *WaterfallStepContext) SendMessage(text string) {
	sc.dc.Turn().SendMessage(text)
}

// Prompt suspends the waterfall behind the prompt dialog registered under
// promptID. The validated reply arrives as the next step's Result.
func (sc *WaterfallStepContext) Prompt(promptID string, opts models.PromptOptions) (DialogTurnResult, error) {
	return sc.dc.BeginDialog(promptID, opts)
}

// Begin suspends the waterfall behind a child dialog; the child's final value
// arrives as the next step's Result.
func (sc *WaterfallStepContext) Begin(dialogID string, options any) (DialogTurnResult, error) {
	return sc.dc.BeginDialog(dialogID, options)
}

// Next completes the current step immediately with value and runs the next
// step in the same turn.
func (sc *WaterfallStepContext) Next(value string) (DialogTurnResult, error) {
	return sc.waterfall.advance(sc.dc, sc.instance, value)
}

// End ends the waterfall early with value, skipping any remaining steps.
func (sc *WaterfallStepContext) End(value string) (DialogTurnResult, error) {
	return sc.dc.EndDialog(value)
}
