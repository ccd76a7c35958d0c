// Package openai implements intent.Extractor and intent.Embedder against
// OpenAI-compatible chat and embedding APIs.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/WessleyAI/carseek-mvp/engine/domain"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Config holds connection settings for the OpenAI-compatible backends.
type Config struct {
	// BaseURL is the API base, e.g. "https://api.openai.com/v1" or a
	// local OpenAI-compatible server.
	BaseURL string
	// Token is the API key; "none" works for local servers.
	Token string
	// ChatModel is used for intent extraction, e.g. "gpt-4o-mini".
	ChatModel string
	// EmbeddingModel must produce domain.EmbeddingDim-length vectors,
	// e.g. "text-embedding-3-small".
	EmbeddingModel string
}

func (c Config) validate() error {
	if c.BaseURL == "" {
		return errors.New("openai: base URL is required")
	}
	if c.ChatModel == "" || c.EmbeddingModel == "" {
		return errors.New("openai: chat and embedding models are required")
	}
	return nil
}

const extractionAttempts = 3

const systemPrompt = `You are a car search assistant. Extract structured car features from user queries.
Return JSON with these fields (all optional):
- brand: string (e.g. "Toyota", "BMW")
- model: string (e.g. "Camry", "3 Series")
- body_type: string (e.g. "SUV", "Sedan", "Truck")
- fuel_type: string (e.g. "Electric", "Hybrid", "Gasoline")
- min_year: number
- max_year: number
- min_price: number
- max_price: number
- max_mileage: number
- location: string
- desired_features: array of strings (e.g. ["leather seats", "sunroof"])

Only include fields mentioned in the query. Be flexible with synonyms.
Output ONLY valid JSON, starting with { and ending with }.`

// Extractor implements intent.Extractor using a chat model in JSON mode.
type Extractor struct {
	client llms.Model
	logger *slog.Logger
}

// NewExtractor creates an Extractor from cfg.
func NewExtractor(cfg Config) (*Extractor, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	client, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(cfg.Token),
		openai.WithModel(cfg.ChatModel),
	)
	if err != nil {
		return nil, fmt.Errorf("openai: new client: %w", err)
	}
	return &Extractor{
		client: client,
		logger: slog.Default().With("component", "openai-extractor"),
	}, nil
}

// ExtractIntent asks the chat model for structured filters. Malformed
// JSON is retried up to three times before failing.
func (e *Extractor) ExtractIntent(ctx context.Context, query string) (domain.Intent, error) {
	content := []llms.MessageContent{
		{Role: llms.ChatMessageTypeSystem, Parts: []llms.ContentPart{llms.TextPart(systemPrompt)}},
		{Role: llms.ChatMessageTypeHuman, Parts: []llms.ContentPart{llms.TextPart(query)}},
	}

	var lastErr error
	for attempt := 0; attempt < extractionAttempts; attempt++ {
		resp, err := e.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
		if err != nil {
			return domain.Intent{}, fmt.Errorf("openai: generate: %w", err)
		}
		if len(resp.Choices) == 0 {
			return domain.Intent{}, errors.New("openai: no choices returned")
		}

		var it domain.Intent
		raw := trimToJSON(resp.Choices[0].Content)
		if err := json.Unmarshal([]byte(raw), &it); err != nil {
			lastErr = fmt.Errorf("openai: malformed extraction JSON: %w", err)
			e.logger.Warn("malformed extraction output", "attempt", attempt+1, "err", err)
			continue
		}
		return it, nil
	}
	return domain.Intent{}, lastErr
}

// trimToJSON strips any preamble/epilogue around the outermost JSON object.
func trimToJSON(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

// Embedder implements intent.Embedder using the embeddings API.
type Embedder struct {
	embedder embeddings.Embedder
	logger   *slog.Logger
}

// NewEmbedder creates an Embedder from cfg.
func NewEmbedder(cfg Config) (*Embedder, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	client, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(cfg.Token),
		openai.WithEmbeddingModel(cfg.EmbeddingModel),
	)
	if err != nil {
		return nil, fmt.Errorf("openai: new client: %w", err)
	}
	emb, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("openai: new embedder: %w", err)
	}
	return &Embedder{
		embedder: emb,
		logger:   slog.Default().With("component", "openai-embedder"),
	}, nil
}

// Embed returns the embedding for text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("openai: embed: %w", err)
	}
	if err := domain.ValidateEmbedding(vec); err != nil {
		return nil, fmt.Errorf("openai: embed: %w", err)
	}
	return vec, nil
}
