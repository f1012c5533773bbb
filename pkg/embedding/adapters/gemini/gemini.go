package gemini

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/lexlapax/aimem/pkg/log"
)

var (
	// ErrEmptyAPIKey is returned when the API key is missing.
	ErrEmptyAPIKey = errors.New("API key cannot be empty")
)

// defaultDimensions is the output dimension of gemini-embedding-001.
const defaultDimensions = 3072

// batchSize is the maximum number of texts per embedding request.
const batchSize = 100

// Config holds the configuration for the Gemini embedding adapter.
type Config struct {
	// APIKey is the Gemini API key.
	APIKey string
	// Model is the embedding model, e.g. "gemini-embedding-001".
	Model string
}

// Adapter implements the embedding.Provider interface using the Gemini API.
type Adapter struct {
	client *genai.Client
	model  string
}

// NewAdapter creates a new Gemini embedding adapter.
func NewAdapter(ctx context.Context, config Config) (*Adapter, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}
	if config.Model == "" {
		config.Model = "gemini-embedding-001"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &Adapter{client: client, model: config.Model}, nil
}

// Embed generates an embedding for a single text.
func (a *Adapter) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := a.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for the given texts, preserving
// order. Requests are chunked to the API's per-call limit.
func (a *Adapter) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		embeddings, err := a.embed(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		results = append(results, embeddings...)
	}
	return results, nil
}

// embed issues one EmbedContent call for a chunk of texts.
func (a *Adapter) embed(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	log.Debug("Generating embeddings", "count", len(texts), "model", a.model)

	response, err := a.client.Models.EmbedContent(ctx, a.model, contents, nil)
	if err != nil {
		log.Error("Failed to generate embeddings", "error", err)
		return nil, err
	}
	if len(response.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(response.Embeddings))
	}

	embeddings := make([][]float32, len(response.Embeddings))
	for i, emb := range response.Embeddings {
		embeddings[i] = emb.Values
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension for the configured model.
func (a *Adapter) Dimensions() int {
	return defaultDimensions
}
