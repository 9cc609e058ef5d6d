// Package models defines persisted dialog state structures for DialogPipe.
package models

// StateScope is the persistence partition a record belongs to.
type StateScope string

const (
	// ScopeUser partitions records by user identity.
	ScopeUser StateScope = "user"
	// ScopeConversation partitions records by conversation id.
	ScopeConversation StateScope = "conversation"
)

// State record keys within a scope.
const (
	RecordKeyUserProfile      = "userProfile"
	RecordKeyConversationData = "conversationData"
)

// PromptOptions carries the render text for a prompt and its retry behavior.
type PromptOptions struct {
	Prompt      string   `json:"prompt"`
	RetryPrompt string   `json:"retry_prompt,omitempty"`
	Choices     []string `json:"choices,omitempty"`
}

// PromptState is the suspended state of an outstanding prompt. It exists only
// while the prompt is waiting for a reply and is discarded when the reply is
// accepted or the dialog ends.
type PromptState struct {
	Options    PromptOptions `json:"options"`
	RetryCount int           `json:"retry_count,omitempty"`
}

// DialogInstance is one suspended level of the dialog stack. The fields beyond
// ID are opaque to the stack; each dialog implementation reads its own part.
type DialogInstance struct {
	ID        string            `json:"id"`
	StepIndex int               `json:"step_index,omitempty"`
	Values    map[string]string `json:"values,omitempty"`
	Prompt    *PromptState      `json:"prompt,omitempty"`
}

// ConversationData is durable state scoped to a conversation. The dialog stack
// is the authoritative resumption pointer: top of the slice is the active
// dialog, and an empty stack means the next message triggers root dispatch.
type ConversationData struct {
	PromptedForName bool             `json:"prompted_for_name,omitempty"`
	DialogStack     []DialogInstance `json:"dialog_stack,omitempty"`
}
