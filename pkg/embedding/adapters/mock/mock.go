package mock

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
)

// ErrMockFailure is returned by a provider configured to fail.
var ErrMockFailure = errors.New("mock provider failure")

// Call represents a recorded method call on the mock provider.
type Call struct {
	// Method is the name of the method that was called.
	Method string

	// Texts contains the texts passed to the method.
	Texts []string
}

// Provider implements the embedding.Provider interface with
// deterministic embeddings derived from the input text. It records
// every call so tests can assert on provider usage.
type Provider struct {
	// cannedEmbeddings maps text to predetermined embeddings
	cannedEmbeddings map[string][]float32

	// dimensions is the dimension of generated embeddings
	dimensions int

	// shouldError indicates if the provider should return errors
	shouldError bool

	// mutex protects the maps and call history from concurrent access
	mutex sync.RWMutex

	// callHistory records all calls to Embed and EmbedBatch
	callHistory []Call
}

// Option is a function that configures a mock Provider.
type Option func(*Provider)

// WithEmbedding sets a canned embedding for a specific text.
func WithEmbedding(text string, embedding []float32) Option {
	return func(p *Provider) {
		p.cannedEmbeddings[text] = embedding
	}
}

// WithDimensions sets the dimension of generated embeddings.
func WithDimensions(dims int) Option {
	return func(p *Provider) {
		p.dimensions = dims
	}
}

// WithShouldError configures whether the provider returns errors.
func WithShouldError(shouldErr bool) Option {
	return func(p *Provider) {
		p.shouldError = shouldErr
	}
}

// NewProvider creates a new mock Provider with the given options.
func NewProvider(opts ...Option) *Provider {
	p := &Provider{
		cannedEmbeddings: make(map[string][]float32),
		dimensions:       8,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Embed returns the canned or derived embedding for the text.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch returns one embedding per text, preserving order.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	p.mutex.Lock()
	p.callHistory = append(p.callHistory, Call{Method: "EmbedBatch", Texts: texts})
	shouldError := p.shouldError
	p.mutex.Unlock()

	if shouldError {
		return nil, ErrMockFailure
	}

	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		p.mutex.RLock()
		canned, ok := p.cannedEmbeddings[text]
		p.mutex.RUnlock()
		if ok {
			embeddings[i] = canned
			continue
		}
		embeddings[i] = p.derive(text)
	}
	return embeddings, nil
}

// Dimensions returns the configured embedding dimension.
func (p *Provider) Dimensions() int {
	return p.dimensions
}

// Calls returns the recorded call history.
func (p *Provider) Calls() []Call {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	history := make([]Call, len(p.callHistory))
	copy(history, p.callHistory)
	return history
}

// SetShouldError toggles error behavior after construction.
func (p *Provider) SetShouldError(shouldErr bool) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.shouldError = shouldErr
}

// derive produces a deterministic pseudo-embedding from the text so
// that identical texts always map to identical vectors.
func (p *Provider) derive(text string) []float32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum32()

	vec := make([]float32, p.dimensions)
	for i := range vec {
		seed = seed*1664525 + 1013904223
		vec[i] = float32(seed%1000)/1000 - 0.5
	}
	return vec
}
