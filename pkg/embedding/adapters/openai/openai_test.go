package openai_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexlapax/aimem/pkg/embedding/adapters/openai"
)

// mockOpenAIServer creates a mock OpenAI server for testing.
func mockOpenAIServer(t *testing.T, statusCode int, responseBody string) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		_, err := w.Write([]byte(responseBody))
		require.NoError(t, err)
	}))
	return server
}

func TestNewAdapter_RequiresAPIKey(t *testing.T) {
	_, err := openai.NewAdapter(openai.Config{})
	assert.ErrorIs(t, err, openai.ErrEmptyAPIKey)
}

func TestNewAdapter_Defaults(t *testing.T) {
	adapter, err := openai.NewAdapter(openai.Config{APIKey: "test-key"})
	require.NoError(t, err)
	assert.Equal(t, 1536, adapter.Dimensions())
}

// TestEmbedBatch_Success tests successful embedding generation.
func TestEmbedBatch_Success(t *testing.T) {
	mockResponse := `{
		"object": "list",
		"data": [
			{
				"object": "embedding",
				"embedding": [0.1, 0.2, 0.3, 0.4, 0.5],
				"index": 0
			},
			{
				"object": "embedding",
				"embedding": [0.6, 0.7, 0.8, 0.9, 1.0],
				"index": 1
			}
		],
		"model": "text-embedding-3-small",
		"usage": {
			"prompt_tokens": 10,
			"total_tokens": 10
		}
	}`

	server := mockOpenAIServer(t, http.StatusOK, mockResponse)
	defer server.Close()

	adapter, err := openai.NewAdapter(openai.Config{
		APIKey:  "test-key",
		Model:   "text-embedding-3-small",
		BaseURL: server.URL,
	})
	require.NoError(t, err)

	embeddings, err := adapter.EmbedBatch(context.Background(), []string{"Hello world", "Testing embeddings"})
	require.NoError(t, err)
	require.Len(t, embeddings, 2)
	assert.Equal(t, []float32{0.1, 0.2, 0.3, 0.4, 0.5}, embeddings[0])
	assert.Equal(t, []float32{0.6, 0.7, 0.8, 0.9, 1.0}, embeddings[1])
}

// TestEmbedBatch_EmptyInput tests handling of empty input.
func TestEmbedBatch_EmptyInput(t *testing.T) {
	adapter, err := openai.NewAdapter(openai.Config{APIKey: "test-key"})
	require.NoError(t, err)

	embeddings, err := adapter.EmbedBatch(context.Background(), []string{})
	assert.NoError(t, err)
	assert.Empty(t, embeddings)
}

// TestEmbedBatch_APIError tests handling of API errors.
func TestEmbedBatch_APIError(t *testing.T) {
	errorResponse := `{
		"error": {
			"message": "The API key is invalid",
			"type": "invalid_request_error",
			"param": null,
			"code": "invalid_api_key"
		}
	}`

	server := mockOpenAIServer(t, http.StatusUnauthorized, errorResponse)
	defer server.Close()

	adapter, err := openai.NewAdapter(openai.Config{
		APIKey:  "invalid-key",
		BaseURL: server.URL,
	})
	require.NoError(t, err)

	embeddings, err := adapter.EmbedBatch(context.Background(), []string{"Hello world"})
	assert.Error(t, err)
	assert.Nil(t, embeddings)
	assert.Contains(t, err.Error(), "invalid")
}

// TestEmbedBatch_ResponseCountMismatch tests that a response with fewer
// embeddings than inputs is rejected instead of indexed blindly.
func TestEmbedBatch_ResponseCountMismatch(t *testing.T) {
	mockResponse := `{
		"object": "list",
		"data": [],
		"model": "text-embedding-3-small",
		"usage": {
			"prompt_tokens": 0,
			"total_tokens": 0
		}
	}`

	server := mockOpenAIServer(t, http.StatusOK, mockResponse)
	defer server.Close()

	adapter, err := openai.NewAdapter(openai.Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
	})
	require.NoError(t, err)

	embeddings, err := adapter.EmbedBatch(context.Background(), []string{"Hello world"})
	assert.Error(t, err)
	assert.Nil(t, embeddings)
	assert.Contains(t, err.Error(), "expected 1 embeddings, got 0")
}

// TestEmbed_EmptyResponseData tests that the single-text path surfaces an
// error when the API returns no embeddings.
func TestEmbed_EmptyResponseData(t *testing.T) {
	mockResponse := `{
		"object": "list",
		"data": [],
		"model": "text-embedding-3-small",
		"usage": {
			"prompt_tokens": 0,
			"total_tokens": 0
		}
	}`

	server := mockOpenAIServer(t, http.StatusOK, mockResponse)
	defer server.Close()

	adapter, err := openai.NewAdapter(openai.Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
	})
	require.NoError(t, err)

	embedding, err := adapter.Embed(context.Background(), "Hello world")
	assert.Error(t, err)
	assert.Nil(t, embedding)
}

// TestEmbed_Single tests the single-text convenience path.
func TestEmbed_Single(t *testing.T) {
	mockResponse := `{
		"object": "list",
		"data": [
			{
				"object": "embedding",
				"embedding": [0.5, 0.5],
				"index": 0
			}
		],
		"model": "text-embedding-3-small",
		"usage": {
			"prompt_tokens": 2,
			"total_tokens": 2
		}
	}`

	server := mockOpenAIServer(t, http.StatusOK, mockResponse)
	defer server.Close()

	adapter, err := openai.NewAdapter(openai.Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
	})
	require.NoError(t, err)

	embedding, err := adapter.Embed(context.Background(), "Hello world")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.5}, embedding)
}
