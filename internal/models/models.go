// Package models defines the core data structures for DialogPipe.
//
// It includes the channel activity payload, durable user/conversation state,
// dialog stack records, and the shared API response envelope.
package models

import (
	"errors"
	"time"
)

// ActivityType identifies the kind of inbound channel activity.
type ActivityType string

const (
	// ActivityTypeMessage is a plain text message from a user.
	ActivityTypeMessage ActivityType = "message"
	// ActivityTypeConversationUpdate signals membership changes (users joining).
	ActivityTypeConversationUpdate ActivityType = "conversationUpdate"
)

// Validation constants for inbound activities.
const (
	// MaxActivityTextLength defines the maximum allowed length for activity text
	MaxActivityTextLength = 4096
)

// Error variables for better error handling and testability
var (
	ErrEmptyConversation   = errors.New("conversation id cannot be empty")
	ErrEmptySender         = errors.New("sender id cannot be empty")
	ErrInvalidActivityType = errors.New("invalid activity type")
	ErrActivityTextTooLong = errors.New("activity text exceeds maximum length")

	// ErrUnknownDialog is returned when the dialog stack references a dialog id
	// that is not present in the registry. This is fatal for the turn.
	ErrUnknownDialog = errors.New("unknown dialog id")
	// ErrNoActiveDialog is returned by Continue when the dialog stack is empty.
	ErrNoActiveDialog = errors.New("no active dialog")
	// ErrPersistenceFailure wraps store write failures at the end-of-turn commit.
	ErrPersistenceFailure = errors.New("state persistence failed")
	// ErrRecognizerUnavailable wraps recognizer transport failures.
	ErrRecognizerUnavailable = errors.New("recognizer unavailable")
)

// ChannelAccount identifies a user or bot on the channel.
type ChannelAccount struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Activity is the inbound channel payload driving a single turn.
type Activity struct {
	Type         ActivityType     `json:"type"`
	ID           string           `json:"id,omitempty"`
	Text         string           `json:"text,omitempty"`
	From         ChannelAccount   `json:"from"`
	Recipient    ChannelAccount   `json:"recipient,omitempty"`
	Conversation string           `json:"conversation"`
	MembersAdded []ChannelAccount `json:"members_added,omitempty"`
	Time         int64            `json:"time,omitempty"`
}

// Validate performs validation on an inbound Activity.
func (a *Activity) Validate() error {
	switch a.Type {
	case ActivityTypeMessage, ActivityTypeConversationUpdate:
	default:
		return ErrInvalidActivityType
	}
	if a.Conversation == "" {
		return ErrEmptyConversation
	}
	if a.From.ID == "" {
		return ErrEmptySender
	}
	if len(a.Text) > MaxActivityTextLength {
		return ErrActivityTextTooLong
	}
	return nil
}

// Reply is an outbound message produced during a turn.
type Reply struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

// UserProfile is durable state scoped to a user identity. It outlives any
// single dialog and is mutated only by dialog steps that explicitly write it.
type UserProfile struct {
	Name           string    `json:"name,omitempty"`
	BugDescription string    `json:"bug_description,omitempty"`
	CallbackTime   time.Time `json:"callback_time,omitempty"`
	PhoneNumber    string    `json:"phone_number,omitempty"`
	BugCategory    string    `json:"bug_category,omitempty"`
}

// Receipt records the delivery status of an outbound message.
type Receipt struct {
	To     string `json:"to"`
	Status string `json:"status"`
	Time   int64  `json:"time"`
}

// Message status constants for receipts.
const (
	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
	MessageStatusRead      = "read"
	MessageStatusFailed    = "failed"
)

// Response represents an incoming message from a participant on a channel.
type Response struct {
	From string `json:"from"`
	Body string `json:"body"`
	Time int64  `json:"time"`
}

// ScheduledMessage is a request to deliver a recurring message on a cron
// schedule.
type ScheduledMessage struct {
	Cron string `json:"cron"`
	To   string `json:"to"`
	Body string `json:"body"`
}

// Validate checks that all scheduled message fields are present.
func (m ScheduledMessage) Validate() error {
	if m.Cron == "" {
		return errors.New("cron expression is required")
	}
	if m.To == "" {
		return errors.New("recipient is required")
	}
	if m.Body == "" {
		return errors.New("message body is required")
	}
	return nil
}

// TimerInfo describes one pending scheduled callback.
type TimerInfo struct {
	ID          string    `json:"id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Remaining   string    `json:"remaining"`
	Description string    `json:"description"`
}

// APIStatus represents the status field of an API response.
type APIStatus string

const (
	APIStatusOK    APIStatus = "ok"
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}
