package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return LoadFromBytes(data)
}

// LoadFromBytes loads configuration from a byte slice.
func LoadFromBytes(data []byte) (*Config, error) {
	var config Config

	err := yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Apply environment variable overrides
	applyEnvironmentOverrides(&config)

	// Apply defaults and validate
	applyDefaults(&config)
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
func applyEnvironmentOverrides(config *Config) {
	// Database path override
	if path := os.Getenv("AIMEM_DB"); path != "" {
		config.Storage.Path = path
	}

	// OpenAI API key override
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.Embedding.OpenAI.APIKey = apiKey
	}

	// Gemini API key override
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.Embedding.Gemini.APIKey = apiKey
	}
}

// applyDefaults fills in default values for unset fields.
func applyDefaults(config *Config) {
	if config.Storage.Path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		config.Storage.Path = filepath.Join(home, ".aimemory", "memories.db")
	}
	if config.Storage.DenseCollection == "" {
		config.Storage.DenseCollection = "memories"
	}
	if config.Embedding.Provider == "" {
		config.Embedding.Provider = "none"
	}
	if config.Embedding.OpenAI.Model == "" {
		config.Embedding.OpenAI.Model = "text-embedding-3-small"
	}
	if config.Embedding.Gemini.Model == "" {
		config.Embedding.Gemini.Model = "gemini-embedding-001"
	}
	if config.Search.DefaultLimit <= 0 {
		config.Search.DefaultLimit = 10
	}
	if config.Search.MinScore <= 0 {
		config.Search.MinScore = 0.05
	}
	if config.Dedup.Threshold <= 0 {
		config.Dedup.Threshold = 0.7
	}
	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.Format == "" {
		config.Logging.Format = "text"
	}
}

// validateConfig validates the configuration.
func validateConfig(config *Config) error {
	switch strings.ToLower(config.Embedding.Provider) {
	case "none":
		// TF-IDF only, nothing to validate
	case "openai":
		// API key can be provided via environment variable at runtime,
		// so its absence here is not an error
	case "gemini":
		// Same as above
	default:
		return fmt.Errorf("unsupported embedding provider: %s", config.Embedding.Provider)
	}

	if config.Dedup.Threshold > 1 {
		return fmt.Errorf("dedup threshold must be in (0, 1], got %v", config.Dedup.Threshold)
	}
	if config.Search.MinImportance < 0 || config.Search.MinImportance > 1 {
		return fmt.Errorf("min importance must be in [0, 1], got %v", config.Search.MinImportance)
	}

	return nil
}
