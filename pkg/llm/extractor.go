package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/xhad/scholar/internal/models"
)

// Only the head of the document goes to the model. Bounded cost and latency
// in exchange for recall on long documents.
const maxExtractionChars = 3000

const extractionPrompt = `Extract entities from this article. Return ONLY valid JSON, no markdown code blocks.

Article Title: %s
Article Text (first %d chars): %s

Extract:
- authors: People who wrote or are mentioned as authors
- topics: Main subjects/themes (e.g., "machine learning", "NLP")
- technologies: Tools, frameworks, models (e.g., "PyTorch", "GPT-4", "BERT")
- companies: Organizations mentioned (e.g., "OpenAI", "Google")
- concepts: Key technical concepts (e.g., "attention mechanism", "fine-tuning")

Return JSON format:
{"authors": [], "topics": [], "technologies": [], "companies": [], "concepts": []}`

// ExtractorConfig represents the configuration for the entity extractor.
type ExtractorConfig struct {
	Model   string
	BaseURL string // Ollama server URL
}

// Extractor pulls typed entities out of document text using a generative
// model prompted to emit strict JSON. The model's output is untrusted and
// parsed defensively.
type Extractor struct {
	model llms.Model
}

// NewExtractor creates an Extractor backed by an Ollama model.
func NewExtractor(config ExtractorConfig) (*Extractor, error) {
	if config.Model == "" {
		config.Model = "mistral"
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}

	model, err := ollama.New(
		ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize extraction model: %w", err)
	}

	return &Extractor{model: model}, nil
}

// NewExtractorWithModel creates an Extractor around an already-constructed
// model handle.
func NewExtractorWithModel(model llms.Model) *Extractor {
	return &Extractor{model: model}
}

// Extract returns the entities found in text. On any failure (model error,
// malformed output) it returns the empty bundle; extraction must never
// abort ingestion.
func (x *Extractor) Extract(ctx context.Context, text, title string) models.EntityBundle {
	if strings.TrimSpace(text) == "" {
		slog.Warn("empty text provided for entity extraction")
		return models.EntityBundle{}
	}
	if title == "" {
		title = "Unknown"
	}

	excerpt := text
	if len(excerpt) > maxExtractionChars {
		excerpt = excerpt[:maxExtractionChars]
	}

	prompt := fmt.Sprintf(extractionPrompt, title, maxExtractionChars, excerpt)

	response, err := llms.GenerateFromSinglePrompt(ctx, x.model, prompt)
	if err != nil {
		slog.Error("entity extraction failed", "error", err)
		return models.EntityBundle{}
	}

	var bundle models.EntityBundle
	if err := json.Unmarshal([]byte(stripCodeFences(response)), &bundle); err != nil {
		slog.Error("failed to parse extraction response as JSON", "error", err)
		return models.EntityBundle{}
	}

	slog.Info("extracted entities",
		"topics", len(bundle.Topics),
		"technologies", len(bundle.Technologies))
	return bundle
}

// stripCodeFences removes a surrounding markdown code block, which some
// models emit despite being told not to.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
