package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/schema"
)

// ChatConfig represents the configuration for the synthesis engine.
type ChatConfig struct {
	Model           string
	Temperature     float64
	MaxTokens       int
	SystemTemplate  string
	ContextTemplate string
	BaseURL         string // Ollama server URL
}

// ChatEngine turns a hybrid-search report into a natural-language answer.
type ChatEngine struct {
	config ChatConfig
	llm    llms.Model
}

// NewChatEngine creates a ChatEngine with the given configuration.
func NewChatEngine(config ChatConfig) (*ChatEngine, error) {
	if config.Model == "" {
		config.Model = "mistral"
	}
	if config.Temperature <= 0 || config.Temperature > 1 {
		return nil, fmt.Errorf("temperature must be between 0 and 1")
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}
	if config.SystemTemplate == "" {
		config.SystemTemplate = "You are a research assistant. Answer the question using only the retrieval results below. Cite source titles where possible and say so when the results do not cover the question."
	}
	if config.ContextTemplate == "" {
		config.ContextTemplate = "Retrieval results:\n%s\n\nQuestion: %s"
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}

	llm, err := ollama.New(ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return &ChatEngine{
		config: config,
		llm:    llm,
	}, nil
}

// NewChatEngineWithModel creates a ChatEngine around an already-constructed
// model handle.
func NewChatEngineWithModel(config ChatConfig, model llms.Model) *ChatEngine {
	if config.SystemTemplate == "" {
		config.SystemTemplate = "You are a research assistant. Answer the question using only the retrieval results below. Cite source titles where possible and say so when the results do not cover the question."
	}
	if config.ContextTemplate == "" {
		config.ContextTemplate = "Retrieval results:\n%s\n\nQuestion: %s"
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}
	return &ChatEngine{config: config, llm: model}
}

// Synthesize generates an answer to query grounded in the retrieval report.
func (ce *ChatEngine) Synthesize(ctx context.Context, query, report string) (string, error) {
	content := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, ce.config.SystemTemplate),
		llms.TextParts(schema.ChatMessageTypeHuman,
			fmt.Sprintf(ce.config.ContextTemplate, report, query)),
	}

	response, err := ce.llm.GenerateContent(ctx, content,
		llms.WithMaxTokens(ce.config.MaxTokens),
		llms.WithTemperature(ce.config.Temperature),
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate answer: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}

	return response.Choices[0].Content, nil
}
