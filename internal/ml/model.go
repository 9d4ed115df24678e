package ml

import (
	"context"
	"fmt"

	"github.com/franckalain/traypositions/internal/config"
)

// Model represents a vision-capable chat model that can look at a tray image
type Model interface {
	// Load initializes the model with its configuration
	Load(ctx context.Context) error
	// Complete sends the analysis prompt with the image reference and returns
	// the raw text of the reply
	Complete(ctx context.Context, imageURL string) (string, error)
}

// ModelFactory creates a new model instance based on configuration
type ModelFactory interface {
	// CreateModel creates a new model instance
	CreateModel() (Model, error)
}

// NewModel creates a new model instance based on the configured model type
func NewModel(cfg *config.Config) (Model, error) {
	var factory ModelFactory

	switch cfg.Model.Type {
	case "openai", "":
		factory = NewOpenAIModelFactory(OpenAIConfig{
			APIKey:    cfg.Model.APIKey,
			BaseURL:   cfg.Model.BaseURL,
			Model:     cfg.Model.Name,
			MaxTokens: cfg.Model.MaxTokens,
			Timeout:   cfg.Model.Timeout.Std(),
		})
	default:
		return nil, fmt.Errorf("unsupported model type: %s", cfg.Model.Type)
	}
	return factory.CreateModel()
}
