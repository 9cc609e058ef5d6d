package dialog

import (
	"context"
	"testing"

	"github.com/dialogpipe/dialogpipe/internal/models"
	"github.com/dialogpipe/dialogpipe/internal/store"
)

func TestStateManagerDefaultsWhenMissing(t *testing.T) {
	sm := NewStoreBasedStateManager(store.NewInMemoryStore())
	ctx := context.Background()

	profile, err := sm.GetUserProfile(ctx, "nobody")
	if err != nil {
		t.Fatalf("GetUserProfile failed: %v", err)
	}
	if profile == nil || profile.Name != "" {
		t.Errorf("expected default profile, got %+v", profile)
	}

	conv, err := sm.GetConversationData(ctx, "nowhere")
	if err != nil {
		t.Fatalf("GetConversationData failed: %v", err)
	}
	if conv == nil || len(conv.DialogStack) != 0 {
		t.Errorf("expected default conversation data, got %+v", conv)
	}
}

func TestStateManagerRoundTrip(t *testing.T) {
	sm := NewStoreBasedStateManager(store.NewInMemoryStore())
	ctx := context.Background()

	profile := &models.UserProfile{Name: "Grace", PhoneNumber: "555-123-4567"}
	if err := sm.SaveUserProfile(ctx, "user-1", profile); err != nil {
		t.Fatalf("SaveUserProfile failed: %v", err)
	}
	loaded, err := sm.GetUserProfile(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetUserProfile failed: %v", err)
	}
	if loaded.Name != "Grace" || loaded.PhoneNumber != "555-123-4567" {
		t.Errorf("profile round trip mismatch: %+v", loaded)
	}

	conv := &models.ConversationData{
		PromptedForName: true,
		DialogStack: []models.DialogInstance{
			{ID: "bugReport", StepIndex: 2, Values: map[string]string{"description": "it crashed"}},
			{ID: "bugReport.callbackTime", Prompt: &models.PromptState{
				Options:    models.PromptOptions{Prompt: "When?", RetryPrompt: "Try again"},
				RetryCount: 3,
			}},
		},
	}
	if err := sm.SaveConversationData(ctx, "conv-1", conv); err != nil {
		t.Fatalf("SaveConversationData failed: %v", err)
	}
	loadedConv, err := sm.GetConversationData(ctx, "conv-1")
	if err != nil {
		t.Fatalf("GetConversationData failed: %v", err)
	}
	if len(loadedConv.DialogStack) != 2 {
		t.Fatalf("expected 2 stack entries, got %d", len(loadedConv.DialogStack))
	}
	if loadedConv.DialogStack[0].Values["description"] != "it crashed" {
		t.Errorf("values bag lost in round trip: %+v", loadedConv.DialogStack[0])
	}
	top := loadedConv.DialogStack[1]
	if top.Prompt == nil || top.Prompt.RetryCount != 3 || top.Prompt.Options.RetryPrompt != "Try again" {
		t.Errorf("prompt state lost in round trip: %+v", top)
	}
}

func TestStateManagerResetConversation(t *testing.T) {
	sm := NewStoreBasedStateManager(store.NewInMemoryStore())
	ctx := context.Background()

	conv := &models.ConversationData{
		DialogStack: []models.DialogInstance{{ID: "greeting"}},
	}
	if err := sm.SaveConversationData(ctx, "conv-1", conv); err != nil {
		t.Fatalf("SaveConversationData failed: %v", err)
	}
	if err := sm.ResetConversation(ctx, "conv-1"); err != nil {
		t.Fatalf("ResetConversation failed: %v", err)
	}
	loaded, err := sm.GetConversationData(ctx, "conv-1")
	if err != nil {
		t.Fatalf("GetConversationData failed: %v", err)
	}
	if len(loaded.DialogStack) != 0 {
		t.Errorf("expected cleared stack, got %+v", loaded.DialogStack)
	}
}

func TestTurnContextSaveChangesOnlyTouchedScopes(t *testing.T) {
	st := store.NewInMemoryStore()
	sm := NewStoreBasedStateManager(st)
	tc := newTestTurn(t, sm, "hello")

	// Nothing loaded: SaveChanges must not write any record.
	if err := tc.SaveChanges(); err != nil {
		t.Fatalf("SaveChanges failed: %v", err)
	}
	if data, err := st.GetRecord(models.ScopeUser, "user-1", models.RecordKeyUserProfile); err != nil || data != nil {
		t.Errorf("expected no user record, got %v (err %v)", data, err)
	}

	profile, err := tc.UserProfile()
	if err != nil {
		t.Fatalf("UserProfile failed: %v", err)
	}
	profile.Name = "Grace"
	if err := tc.SaveChanges(); err != nil {
		t.Fatalf("SaveChanges failed: %v", err)
	}
	data, err := st.GetRecord(models.ScopeUser, "user-1", models.RecordKeyUserProfile)
	if err != nil || data == nil {
		t.Errorf("expected persisted user record, got %v (err %v)", data, err)
	}
	if convData, err := st.GetRecord(models.ScopeConversation, "conv-1", models.RecordKeyConversationData); err != nil || convData != nil {
		t.Errorf("conversation scope should be untouched, got %v (err %v)", convData, err)
	}
}
