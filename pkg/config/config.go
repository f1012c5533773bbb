package config

// Config represents the top-level configuration for the aimem library.
type Config struct {
	// Storage configures the durable memory store
	Storage StorageConfig `yaml:"storage"`

	// Embedding configures the optional dense embedding provider
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Search configures retrieval defaults
	Search SearchConfig `yaml:"search"`

	// Dedup configures write-time deduplication
	Dedup DedupConfig `yaml:"dedup"`

	// Logging configures the logging behavior
	Logging LoggingConfig `yaml:"logging"`
}

// StorageConfig configures the durable memory store.
type StorageConfig struct {
	// Path is the SQLite database file path
	Path string `yaml:"path"`

	// DensePath is the on-disk location of the dense vector collection.
	// If empty, dense vectors are kept in memory only.
	DensePath string `yaml:"dense_path"`

	// DenseCollection is the name of the dense vector collection
	DenseCollection string `yaml:"dense_collection"`
}

// EmbeddingConfig configures the dense embedding provider.
type EmbeddingConfig struct {
	// Provider selects the dense embedding backend ("openai", "gemini", "none")
	Provider string `yaml:"provider"`

	// OpenAI configures the OpenAI embedding adapter
	OpenAI OpenAIConfig `yaml:"openai"`

	// Gemini configures the Gemini embedding adapter
	Gemini GeminiConfig `yaml:"gemini"`
}

// OpenAIConfig configures the OpenAI embedding adapter.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key
	APIKey string `yaml:"api_key"`

	// Model is the embedding model to use
	Model string `yaml:"model"`

	// BaseURL overrides the API base URL (for testing)
	BaseURL string `yaml:"base_url"`
}

// GeminiConfig configures the Gemini embedding adapter.
type GeminiConfig struct {
	// APIKey is the Gemini API key
	APIKey string `yaml:"api_key"`

	// Model is the embedding model to use
	Model string `yaml:"model"`
}

// SearchConfig configures retrieval defaults.
type SearchConfig struct {
	// DefaultLimit is the result limit applied when a caller passes none
	DefaultLimit int `yaml:"default_limit"`

	// MinScore is the minimum cosine similarity for semantic results
	MinScore float64 `yaml:"min_score"`

	// MinImportance is the default importance floor for all searches
	MinImportance float64 `yaml:"min_importance"`
}

// DedupConfig configures write-time deduplication.
type DedupConfig struct {
	// Threshold is the Jaccard similarity at or above which new content
	// is treated as a duplicate of an existing memory
	Threshold float64 `yaml:"threshold"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	// Level is the logging level ("debug", "info", "warn", "error")
	Level string `yaml:"level"`

	// Format is the log output format ("text", "json")
	Format string `yaml:"format"`
}

// DefaultConfig returns a configuration with all defaults applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}
