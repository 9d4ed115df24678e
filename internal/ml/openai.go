package ml

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
)

// OpenAIConfig holds configuration for the OpenAI chat completions model
type OpenAIConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// OpenAIModel implements the Model interface over the chat completions API
type OpenAIModel struct {
	config OpenAIConfig
	client *openai.Client
}

// OpenAIModelFactory implements ModelFactory for OpenAI models
type OpenAIModelFactory struct {
	config OpenAIConfig
}

// NewOpenAIModelFactory creates a new OpenAI model factory
func NewOpenAIModelFactory(config OpenAIConfig) *OpenAIModelFactory {
	return &OpenAIModelFactory{config: config}
}

// CreateModel creates a new OpenAI model instance
func (f *OpenAIModelFactory) CreateModel() (Model, error) {
	return &OpenAIModel{
		config: f.config,
	}, nil
}

// Load builds the API client
func (m *OpenAIModel) Load(ctx context.Context) error {
	if m.config.APIKey == "" {
		return fmt.Errorf("missing api key")
	}
	if m.config.BaseURL == "" {
		m.config.BaseURL = "https://api.openai.com/v1"
	}
	if m.config.Model == "" {
		m.config.Model = "gpt-4o"
	}
	if m.config.MaxTokens == 0 {
		m.config.MaxTokens = 300
	}
	if m.config.Timeout == 0 {
		m.config.Timeout = 60 * time.Second
	}

	// retries are owned by RetryPolicy
	client := openai.NewClient(
		option.WithAPIKey(m.config.APIKey),
		option.WithBaseURL(m.config.BaseURL),
		option.WithRequestTimeout(m.config.Timeout),
		option.WithMaxRetries(0),
	)
	m.client = &client
	return nil
}

// Complete sends one user message with the prompt and the image reference
func (m *OpenAIModel) Complete(ctx context.Context, ref string) (string, error) {
	if m.client == nil {
		return "", fmt.Errorf("model not loaded")
	}

	completion, err := m.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(m.config.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(AnalysisPrompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: ref}),
			}),
		},
		MaxTokens: openai.Int(int64(m.config.MaxTokens)),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("no choices in provider response")
	}

	content := completion.Choices[0].Message.Content
	zap.L().Debug("model reply", zap.String("content", content))
	return content, nil
}
