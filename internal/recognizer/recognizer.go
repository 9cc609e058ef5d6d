// Package recognizer classifies user utterances into intents and entities
// using the OpenAI API.
package recognizer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/dialogpipe/dialogpipe/internal/models"
)

// Recognizer classifies one utterance. Implementations must be safe for
// concurrent use.
type Recognizer interface {
	Classify(ctx context.Context, text string) (models.RecognizerResult, error)
}

// chatService defines minimal interface for chat completions.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

// openAIChatService adapts the OpenAI SDK client to chatService.
type openAIChatService struct {
	client openai.Client
}

func (s *openAIChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

// Opts holds configuration options for the recognizer client.
type Opts struct {
	APIKey string
	Model  openai.ChatModel
}

// Option defines a configuration option for the recognizer client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key, overriding the OPENAI_API_KEY
// environment variable.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel sets the chat model used for classification.
func WithModel(model openai.ChatModel) Option {
	return func(o *Opts) { o.Model = model }
}

// Client is an OpenAI-backed Recognizer.
type Client struct {
	chat  chatService
	model openai.ChatModel
}

const classifySystemPrompt = `You classify messages sent to a software support agent.
Respond with only a JSON object, no prose, of the form:
{"intent": "<GreetingIntent|NewBugReportIntent|QueryBugTypeIntent|None>", "score": <0.0-1.0>, "bug_type": "<the bug type mentioned, or empty>"}
GreetingIntent: the user is greeting or making small talk.
NewBugReportIntent: the user wants to report a problem or bug.
QueryBugTypeIntent: the user asks whether something is a bug type or asks about a bug category.
None: anything else. Set bug_type only for QueryBugTypeIntent.`

// NewClient creates a recognizer backed by the OpenAI chat completions API.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	if cfg.Model == "" {
		cfg.Model = openai.ChatModelGPT4oMini
	}
	client := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	slog.Debug("Recognizer client created", "model", cfg.Model)
	return &Client{chat: &openAIChatService{client: client}, model: cfg.Model}, nil
}

// classification is the JSON shape the model is instructed to return.
type classification struct {
	Intent  string  `json:"intent"`
	Score   float64 `json:"score"`
	BugType string  `json:"bug_type"`
}

// Classify sends text to the model and decodes the structured result. Errors
// reaching or decoding the model are wrapped in ErrRecognizerUnavailable so
// callers can fall back to a default route.
func (c *Client) Classify(ctx context.Context, text string) (models.RecognizerResult, error) {
	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(classifySystemPrompt),
			openai.UserMessage(text),
		},
	}
	resp, err := c.chat.Create(ctx, params)
	if err != nil {
		slog.Error("Recognizer.Classify: chat completion failed", "error", err)
		return models.RecognizerResult{}, fmt.Errorf("%w: %v", models.ErrRecognizerUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return models.RecognizerResult{}, fmt.Errorf("%w: no choices returned", models.ErrRecognizerUnavailable)
	}

	var parsed classification
	content := stripCodeFences(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		slog.Error("Recognizer.Classify: invalid model output", "error", err, "content", content)
		return models.RecognizerResult{}, fmt.Errorf("%w: invalid classification output: %v", models.ErrRecognizerUnavailable, err)
	}

	result := models.RecognizerResult{}
	switch parsed.Intent {
	case models.IntentGreeting, models.IntentNewBugReport, models.IntentQueryBugType:
		result.Intents = []models.IntentScore{{Name: parsed.Intent, Score: parsed.Score}}
	default:
		result.Intents = []models.IntentScore{{Name: models.IntentNone, Score: parsed.Score}}
	}
	if parsed.BugType != "" {
		result.Entities = map[string][]string{
			models.EntityBugType: {parsed.BugType},
		}
	}
	slog.Debug("Recognizer.Classify: classified", "intent", result.TopIntent(), "score", parsed.Score)
	return result, nil
}

// stripCodeFences removes a markdown code fence wrapper some models add
// around JSON output.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}
