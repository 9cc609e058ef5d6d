package dialog

import (
	"context"
	"fmt"

	"github.com/dialogpipe/dialogpipe/internal/models"
)

// TurnContext is the per-inbound-message value carrying the activity, the
// reply sink, and lazily loaded scoped state. All mutations stay in memory
// until SaveChanges commits them at the end of the turn.
type TurnContext struct {
	ctx      context.Context
	activity models.Activity
	state    StateManager

	replies      []models.Reply
	profile      *models.UserProfile
	conversation *models.ConversationData
}

// NewTurnContext creates a turn context for one inbound activity.
func NewTurnContext(ctx context.Context, activity models.Activity, state StateManager) *TurnContext {
	return &TurnContext{ctx: ctx, activity: activity, state: state}
}

// Context returns the request context for this turn.
func (tc *TurnContext) Context() context.Context {
	return tc.ctx
}

// Activity returns the inbound activity driving this turn.
func (tc *TurnContext) Activity() models.Activity {
	return tc.activity
}

// UserID returns the sender's identity, keying user-scoped state.
func (tc *TurnContext) UserID() string {
	return tc.activity.From.ID
}

// ConversationID keys conversation-scoped state.
func (tc *TurnContext) ConversationID() string {
	return tc.activity.Conversation
}

// SendMessage queues an outbound reply to the sender.
func (tc *TurnContext) SendMessage(text string) {
	tc.replies = append(tc.replies, models.Reply{To: tc.activity.From.ID, Text: text})
}

// Replies returns the outbound messages queued during this turn.
func (tc *TurnContext) Replies() []models.Reply {
	return tc.replies
}

// UserProfile returns the user-scoped profile, loading it on first access.
// A missing record yields a default-constructed profile.
func (tc *TurnContext) UserProfile() (*models.UserProfile, error) {
	if tc.profile != nil {
		return tc.profile, nil
	}
	profile, err := tc.state.GetUserProfile(tc.ctx, tc.UserID())
	if err != nil {
		return nil, err
	}
	tc.profile = profile
	return tc.profile, nil
}

// ConversationData returns the conversation-scoped state, loading it on first
// access. A missing record yields default-constructed data with an empty stack.
func (tc *TurnContext) ConversationData() (*models.ConversationData, error) {
	if tc.conversation != nil {
		return tc.conversation, nil
	}
	conv, err := tc.state.GetConversationData(tc.ctx, tc.ConversationID())
	if err != nil {
		return nil, err
	}
	tc.conversation = conv
	return tc.conversation, nil
}

// SaveChanges persists every scope touched during the turn. It is the single
// commit point: callers invoke it exactly once at end-of-turn, and a failure
// means none of the turn's effects should be considered committed.
func (tc *TurnContext) SaveChanges() error {
	if tc.profile != nil {
		if err := tc.state.SaveUserProfile(tc.ctx, tc.UserID(), tc.profile); err != nil {
			return fmt.Errorf("%w: user scope: %v", models.ErrPersistenceFailure, err)
		}
	}
	if tc.conversation != nil {
		if err := tc.state.SaveConversationData(tc.ctx, tc.ConversationID(), tc.conversation); err != nil {
			return fmt.Errorf("%w: conversation scope: %v", models.ErrPersistenceFailure, err)
		}
	}
	return nil
}
