// Package bot dispatches inbound activities to the dialog engine and routes
// new conversations by recognized intent.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dialogpipe/dialogpipe/internal/dialog"
	"github.com/dialogpipe/dialogpipe/internal/dialogs"
	"github.com/dialogpipe/dialogpipe/internal/messaging"
	"github.com/dialogpipe/dialogpipe/internal/models"
	"github.com/dialogpipe/dialogpipe/internal/recognizer"
	"github.com/dialogpipe/dialogpipe/internal/store"
)

const (
	// WelcomeMessage greets users added to a conversation.
	WelcomeMessage = "Hello and welcome! I can take bug reports and answer questions about bug types."
	// apologyMessage is sent when the persisted dialog state cannot be resumed.
	apologyMessage = "I'm sorry, something went wrong on our end. Let's start over."
	// DefaultReminderLead is how long before the agreed callback time the
	// reminder message goes out.
	DefaultReminderLead = 30 * time.Minute
)

// Opts holds optional collaborators for the bot.
type Opts struct {
	Recognizer   recognizer.Recognizer
	Messaging    messaging.Service
	Store        store.Store
	Timer        dialog.Timer
	ReminderLead time.Duration
}

// Option defines a configuration option for the bot.
type Option func(*Opts)

// WithRecognizer sets the intent recognizer used for root dispatch.
func WithRecognizer(r recognizer.Recognizer) Option {
	return func(o *Opts) { o.Recognizer = r }
}

// WithMessagingService sets the delivery channel consumed by Start.
func WithMessagingService(s messaging.Service) Option {
	return func(o *Opts) { o.Messaging = s }
}

// WithStore sets the store used for the receipt and response audit trail.
func WithStore(st store.Store) Option {
	return func(o *Opts) { o.Store = st }
}

// WithTimer sets the timer used to schedule callback reminders.
func WithTimer(t dialog.Timer) Option {
	return func(o *Opts) { o.Timer = t }
}

// WithReminderLead sets how long before the callback time the reminder fires.
func WithReminderLead(d time.Duration) Option {
	return func(o *Opts) { o.ReminderLead = d }
}

// Bot processes inbound activities one turn at a time. Turns within the same
// conversation are serialized; different conversations proceed concurrently.
type Bot struct {
	set   *dialog.DialogSet
	state dialog.StateManager

	recognizer   recognizer.Recognizer
	messaging    messaging.Service
	store        store.Store
	timer        dialog.Timer
	reminderLead time.Duration

	mu        sync.Mutex
	convLocks map[string]*sync.Mutex
}

// New creates a Bot over a dialog registry and state manager.
func New(set *dialog.DialogSet, state dialog.StateManager, opts ...Option) *Bot {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.ReminderLead == 0 {
		cfg.ReminderLead = DefaultReminderLead
	}
	return &Bot{
		set:          set,
		state:        state,
		recognizer:   cfg.Recognizer,
		messaging:    cfg.Messaging,
		store:        cfg.Store,
		timer:        cfg.Timer,
		reminderLead: cfg.ReminderLead,
		convLocks:    make(map[string]*sync.Mutex),
	}
}

func (b *Bot) lockConversation(conversationID string) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	mu, ok := b.convLocks[conversationID]
	if !ok {
		mu = &sync.Mutex{}
		b.convLocks[conversationID] = mu
	}
	return mu
}

// ProcessActivity advances the conversation by one turn and returns the
// replies produced. State is committed once at end of turn; replies are
// returned even alongside an error so callers can still deliver an apology.
func (b *Bot) ProcessActivity(ctx context.Context, activity models.Activity) ([]models.Reply, error) {
	if err := activity.Validate(); err != nil {
		return nil, err
	}

	mu := b.lockConversation(activity.Conversation)
	mu.Lock()
	defer mu.Unlock()

	tc := dialog.NewTurnContext(ctx, activity, b.state)
	dc, err := dialog.NewDialogContext(b.set, tc)
	if err != nil {
		return nil, err
	}

	switch activity.Type {
	case models.ActivityTypeConversationUpdate:
		if err := b.handleMembersAdded(dc, tc); err != nil {
			return tc.Replies(), err
		}
	case models.ActivityTypeMessage:
		if err := b.handleMessage(dc, tc); err != nil {
			return tc.Replies(), err
		}
	}

	if err := tc.SaveChanges(); err != nil {
		slog.Error("Bot.ProcessActivity: save failed", "error", err, "conversation", activity.Conversation)
		return tc.Replies(), err
	}
	return tc.Replies(), nil
}

// handleMembersAdded welcomes each newly added user and starts the greeting
// dialog. The bot's own membership event is ignored.
func (b *Bot) handleMembersAdded(dc *dialog.DialogContext, tc *dialog.TurnContext) error {
	activity := tc.Activity()
	for _, member := range activity.MembersAdded {
		if member.ID == activity.Recipient.ID {
			continue
		}
		tc.SendMessage(WelcomeMessage)
		if _, err := dc.BeginDialog(dialogs.DialogIDGreeting, nil); err != nil {
			return err
		}
	}
	return nil
}

// handleMessage continues the active dialog, falling through to intent-based
// root dispatch when the stack is empty.
func (b *Bot) handleMessage(dc *dialog.DialogContext, tc *dialog.TurnContext) error {
	rootID := dc.RootDialogID()

	result, err := dc.ContinueDialog()
	if err != nil {
		if errors.Is(err, models.ErrUnknownDialog) {
			// The persisted stack references a dialog this build no longer
			// registers. Clear the conversation out of band so the next
			// message dispatches fresh; the in-memory turn is not committed.
			tc.SendMessage(apologyMessage)
			if resetErr := b.state.ResetConversation(tc.Context(), tc.ConversationID()); resetErr != nil {
				slog.Error("Bot.handleMessage: reset after unknown dialog failed", "error", resetErr)
			}
		}
		return err
	}

	if result.Status == dialog.DialogTurnStatusEmpty {
		rootID, result, err = b.dispatchRoot(dc, tc)
		if err != nil {
			return err
		}
	}

	if result.Status == dialog.DialogTurnStatusComplete {
		b.onDialogComplete(tc, rootID)
	}
	return nil
}

// dispatchRoot classifies the utterance and begins the dialog mapped to the
// top intent. Recognizer failures and unmapped intents fall back to the
// greeting dialog.
func (b *Bot) dispatchRoot(dc *dialog.DialogContext, tc *dialog.TurnContext) (string, dialog.DialogTurnResult, error) {
	intent := models.IntentNone
	var entities map[string][]string

	text := strings.TrimSpace(tc.Activity().Text)
	if b.recognizer != nil && text != "" {
		recognized, err := b.recognizer.Classify(tc.Context(), text)
		if err != nil {
			slog.Warn("Bot.dispatchRoot: recognizer unavailable, falling back to greeting", "error", err)
		} else {
			intent = recognized.TopIntent()
			entities = recognized.Entities
		}
	}
	slog.Debug("Bot.dispatchRoot: routing", "intent", intent, "conversation", tc.ConversationID())

	switch intent {
	case models.IntentNewBugReport:
		result, err := dc.BeginDialog(dialogs.DialogIDBugReport, nil)
		return dialogs.DialogIDBugReport, result, err
	case models.IntentQueryBugType:
		var seed map[string]string
		if values := entities[models.EntityBugType]; len(values) > 0 {
			seed = map[string]string{dialogs.ValueKeyBugType: values[0]}
		}
		result, err := dc.BeginDialog(dialogs.DialogIDBugTypeQuery, seed)
		return dialogs.DialogIDBugTypeQuery, result, err
	default:
		result, err := dc.BeginDialog(dialogs.DialogIDGreeting, nil)
		return dialogs.DialogIDGreeting, result, err
	}
}

// onDialogComplete runs post-completion side effects. A finished bug report
// schedules a reminder ahead of the agreed callback time.
func (b *Bot) onDialogComplete(tc *dialog.TurnContext, rootID string) {
	if rootID != dialogs.DialogIDBugReport || b.timer == nil || b.messaging == nil {
		return
	}
	profile, err := tc.UserProfile()
	if err != nil || profile.CallbackTime.IsZero() {
		return
	}

	to := tc.UserID()
	callback := profile.CallbackTime
	reminder := fmt.Sprintf("Reminder: our support team will call you at %s about your %s report.",
		callback.Format(time.Kitchen), strings.ToLower(profile.BugCategory))
	id, err := b.timer.ScheduleAt(callback.Add(-b.reminderLead), func() {
		if err := b.messaging.SendMessage(context.Background(), to, reminder); err != nil {
			slog.Error("Bot: callback reminder delivery failed", "error", err, "to", to)
		}
	})
	if err != nil {
		slog.Error("Bot: failed to schedule callback reminder", "error", err, "to", to)
		return
	}
	slog.Info("Bot: callback reminder scheduled", "timer_id", id, "to", to, "callback", callback)
}

// Start consumes inbound messages from the messaging service until ctx is
// cancelled or the service closes its response channel.
func (b *Bot) Start(ctx context.Context) error {
	if b.messaging == nil {
		return fmt.Errorf("no messaging service configured")
	}
	if err := b.messaging.Start(ctx); err != nil {
		return fmt.Errorf("failed to start messaging service: %w", err)
	}
	go b.consumeReceipts(ctx)

	slog.Info("Bot started, consuming responses")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case response, ok := <-b.messaging.Responses():
			if !ok {
				slog.Info("Bot: response channel closed, stopping")
				return nil
			}
			b.handleResponse(ctx, response)
		}
	}
}

// handleResponse turns one inbound provider message into an activity, runs the
// turn, and delivers the replies.
func (b *Bot) handleResponse(ctx context.Context, response models.Response) {
	if b.store != nil {
		if err := b.store.AddResponse(response); err != nil {
			slog.Error("Bot.handleResponse: failed to record response", "error", err, "from", response.From)
		}
	}

	activity := models.Activity{
		Type:         models.ActivityTypeMessage,
		ID:           uuid.NewString(),
		Text:         response.Body,
		From:         models.ChannelAccount{ID: response.From},
		Conversation: response.From,
		Time:         response.Time,
	}

	replies, err := b.ProcessActivity(ctx, activity)
	if err != nil {
		slog.Error("Bot.handleResponse: turn failed", "error", err, "from", response.From)
	}
	for _, reply := range replies {
		if err := b.messaging.SendMessage(ctx, reply.To, reply.Text); err != nil {
			slog.Error("Bot.handleResponse: reply delivery failed", "error", err, "to", reply.To)
		}
	}
}

// consumeReceipts records delivery receipts until the channel closes.
func (b *Bot) consumeReceipts(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case receipt, ok := <-b.messaging.Receipts():
			if !ok {
				return
			}
			if b.store != nil {
				if err := b.store.AddReceipt(receipt); err != nil {
					slog.Error("Bot.consumeReceipts: failed to record receipt", "error", err, "to", receipt.To)
				}
			}
		}
	}
}
