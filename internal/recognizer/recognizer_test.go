package recognizer

import (
	"context"
	"errors"
	"testing"

	"github.com/openai/openai-go"

	"github.com/dialogpipe/dialogpipe/internal/models"
)

// mockChatService implements chatService for testing.
type mockChatService struct {
	resp openai.ChatCompletion
	err  error
}

func (m *mockChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	return m.resp, m.err
}

func completionWith(content string) openai.ChatCompletion {
	return openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func TestClassifyIntent(t *testing.T) {
	client := &Client{chat: &mockChatService{
		resp: completionWith(`{"intent": "NewBugReportIntent", "score": 0.92, "bug_type": ""}`),
	}}

	result, err := client.Classify(context.Background(), "my app keeps crashing")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if result.TopIntent() != models.IntentNewBugReport {
		t.Errorf("expected NewBugReportIntent, got %s", result.TopIntent())
	}
	if len(result.Entities) != 0 {
		t.Errorf("expected no entities, got %v", result.Entities)
	}
}

func TestClassifyBugTypeEntity(t *testing.T) {
	client := &Client{chat: &mockChatService{
		resp: completionWith(`{"intent": "QueryBugTypeIntent", "score": 0.88, "bug_type": "security"}`),
	}}

	result, err := client.Classify(context.Background(), "is security a bug type?")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if result.TopIntent() != models.IntentQueryBugType {
		t.Errorf("expected QueryBugTypeIntent, got %s", result.TopIntent())
	}
	got := result.Entities[models.EntityBugType]
	if len(got) != 1 || got[0] != "security" {
		t.Errorf("expected security entity, got %v", result.Entities)
	}
}

func TestClassifyCodeFencedOutput(t *testing.T) {
	client := &Client{chat: &mockChatService{
		resp: completionWith("```json\n{\"intent\": \"GreetingIntent\", \"score\": 0.99, \"bug_type\": \"\"}\n```"),
	}}

	result, err := client.Classify(context.Background(), "hello there")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if result.TopIntent() != models.IntentGreeting {
		t.Errorf("expected GreetingIntent, got %s", result.TopIntent())
	}
}

func TestClassifyUnknownIntentMapsToNone(t *testing.T) {
	client := &Client{chat: &mockChatService{
		resp: completionWith(`{"intent": "MadeUpIntent", "score": 0.5, "bug_type": ""}`),
	}}

	result, err := client.Classify(context.Background(), "what is the weather")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if result.TopIntent() != models.IntentNone {
		t.Errorf("expected None, got %s", result.TopIntent())
	}
}

func TestClassifyServiceError(t *testing.T) {
	client := &Client{chat: &mockChatService{err: errors.New("service failure")}}

	_, err := client.Classify(context.Background(), "hello")
	if !errors.Is(err, models.ErrRecognizerUnavailable) {
		t.Errorf("expected ErrRecognizerUnavailable, got %v", err)
	}
}

func TestClassifyInvalidOutput(t *testing.T) {
	client := &Client{chat: &mockChatService{resp: completionWith("I think this is a greeting.")}}

	_, err := client.Classify(context.Background(), "hello")
	if !errors.Is(err, models.ErrRecognizerUnavailable) {
		t.Errorf("expected ErrRecognizerUnavailable, got %v", err)
	}
}

func TestClassifyNoChoices(t *testing.T) {
	client := &Client{chat: &mockChatService{resp: openai.ChatCompletion{}}}

	_, err := client.Classify(context.Background(), "hello")
	if !errors.Is(err, models.ErrRecognizerUnavailable) {
		t.Errorf("expected ErrRecognizerUnavailable, got %v", err)
	}
}

func TestNewClientNoKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := NewClient(); err == nil {
		t.Error("expected error when API key not provided, got nil")
	}
}

func TestNewClientWithKey(t *testing.T) {
	cli, err := NewClient(WithAPIKey("test-key"))
	if err != nil {
		t.Fatalf("expected no error with API key, got %v", err)
	}
	if cli == nil {
		t.Error("expected client instance, got nil")
	}
}
