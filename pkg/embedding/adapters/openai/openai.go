package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/lexlapax/aimem/pkg/log"
)

var (
	// ErrEmptyAPIKey is returned when the API key is missing.
	ErrEmptyAPIKey = errors.New("API key cannot be empty")
)

// defaultDimensions is the output dimension of text-embedding-3-small.
const defaultDimensions = 1536

// Config holds the configuration for the OpenAI embedding adapter.
type Config struct {
	// APIKey is the OpenAI API key.
	APIKey string
	// Model is the embedding model, e.g. "text-embedding-3-small".
	Model string
	// BaseURL is the base URL for the OpenAI API (for testing).
	BaseURL string
	// Dimensions is the embedding dimension of the selected model.
	Dimensions int
}

// Adapter implements the embedding.Provider interface using the OpenAI API.
type Adapter struct {
	client     *openai.Client
	model      string
	dimensions int
}

// NewAdapter creates a new OpenAI embedding adapter.
func NewAdapter(config Config) (*Adapter, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	if config.Model == "" {
		config.Model = "text-embedding-3-small"
	}
	if config.Dimensions <= 0 {
		config.Dimensions = defaultDimensions
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &Adapter{
		client:     openai.NewClientWithConfig(clientConfig),
		model:      config.Model,
		dimensions: config.Dimensions,
	}, nil
}

// Embed generates an embedding for a single text.
func (a *Adapter) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := a.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for the given texts, preserving order.
func (a *Adapter) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	log.Debug("Generating embeddings", "count", len(texts), "model", a.model)

	request := openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(a.model),
	}

	response, err := a.client.CreateEmbeddings(ctx, request)
	if err != nil {
		log.Error("Failed to generate embeddings", "error", err)
		return nil, err
	}

	if len(response.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(response.Data))
	}

	embeddings := make([][]float32, len(response.Data))
	for i, data := range response.Data {
		embeddings[i] = data.Embedding
	}

	return embeddings, nil
}

// Dimensions returns the embedding dimension for the configured model.
func (a *Adapter) Dimensions() int {
	return a.dimensions
}
