// Package dialog provides concrete implementations of state management.
package dialog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dialogpipe/dialogpipe/internal/models"
	"github.com/dialogpipe/dialogpipe/internal/store"
)

// StateManager defines scoped access to the durable user and conversation
// records backing the dialog engine. Missing records are default-constructed,
// never an error.
type StateManager interface {
	GetUserProfile(ctx context.Context, userID string) (*models.UserProfile, error)
	SaveUserProfile(ctx context.Context, userID string, profile *models.UserProfile) error

	GetConversationData(ctx context.Context, conversationID string) (*models.ConversationData, error)
	SaveConversationData(ctx context.Context, conversationID string, data *models.ConversationData) error

	// ResetConversation removes all conversation-scoped state, clearing the
	// dialog stack out of band. The next message triggers root dispatch.
	ResetConversation(ctx context.Context, conversationID string) error
}

// StoreBasedStateManager implements StateManager using a Store backend.
type StoreBasedStateManager struct {
	store store.Store
}

// NewStoreBasedStateManager creates a new StateManager backed by a Store.
func NewStoreBasedStateManager(st store.Store) *StoreBasedStateManager {
	slog.Debug("Creating StoreBasedStateManager")
	return &StoreBasedStateManager{store: st}
}

// GetUserProfile retrieves the user profile, default-constructed if absent.
func (sm *StoreBasedStateManager) GetUserProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	data, err := sm.store.GetRecord(models.ScopeUser, userID, models.RecordKeyUserProfile)
	if err != nil {
		slog.Error("StateManager GetUserProfile error", "error", err, "userID", userID)
		return nil, err
	}
	if data == nil {
		slog.Debug("StateManager GetUserProfile not found, using default", "userID", userID)
		return &models.UserProfile{}, nil
	}
	var profile models.UserProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		slog.Error("StateManager GetUserProfile unmarshal failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to decode user profile for %s: %w", userID, err)
	}
	return &profile, nil
}

// SaveUserProfile persists the user profile.
func (sm *StoreBasedStateManager) SaveUserProfile(ctx context.Context, userID string, profile *models.UserProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		slog.Error("StateManager SaveUserProfile marshal failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to encode user profile for %s: %w", userID, err)
	}
	if err := sm.store.SaveRecord(models.ScopeUser, userID, models.RecordKeyUserProfile, data); err != nil {
		slog.Error("StateManager SaveUserProfile save error", "error", err, "userID", userID)
		return err
	}
	slog.Debug("StateManager SaveUserProfile succeeded", "userID", userID)
	return nil
}

// GetConversationData retrieves conversation state, default-constructed if absent.
func (sm *StoreBasedStateManager) GetConversationData(ctx context.Context, conversationID string) (*models.ConversationData, error) {
	data, err := sm.store.GetRecord(models.ScopeConversation, conversationID, models.RecordKeyConversationData)
	if err != nil {
		slog.Error("StateManager GetConversationData error", "error", err, "conversationID", conversationID)
		return nil, err
	}
	if data == nil {
		slog.Debug("StateManager GetConversationData not found, using default", "conversationID", conversationID)
		return &models.ConversationData{}, nil
	}
	var conv models.ConversationData
	if err := json.Unmarshal(data, &conv); err != nil {
		slog.Error("StateManager GetConversationData unmarshal failed", "error", err, "conversationID", conversationID)
		return nil, fmt.Errorf("failed to decode conversation data for %s: %w", conversationID, err)
	}
	return &conv, nil
}

// SaveConversationData persists conversation state, including the dialog stack.
func (sm *StoreBasedStateManager) SaveConversationData(ctx context.Context, conversationID string, data *models.ConversationData) error {
	raw, err := json.Marshal(data)
	if err != nil {
		slog.Error("StateManager SaveConversationData marshal failed", "error", err, "conversationID", conversationID)
		return fmt.Errorf("failed to encode conversation data for %s: %w", conversationID, err)
	}
	if err := sm.store.SaveRecord(models.ScopeConversation, conversationID, models.RecordKeyConversationData, raw); err != nil {
		slog.Error("StateManager SaveConversationData save error", "error", err, "conversationID", conversationID)
		return err
	}
	slog.Debug("StateManager SaveConversationData succeeded", "conversationID", conversationID, "stack_depth", len(data.DialogStack))
	return nil
}

// ResetConversation removes all conversation-scoped state.
func (sm *StoreBasedStateManager) ResetConversation(ctx context.Context, conversationID string) error {
	if err := sm.store.DeleteRecord(models.ScopeConversation, conversationID, models.RecordKeyConversationData); err != nil {
		slog.Error("StateManager ResetConversation error", "error", err, "conversationID", conversationID)
		return err
	}
	slog.Info("StateManager ResetConversation succeeded", "conversationID", conversationID)
	return nil
}
