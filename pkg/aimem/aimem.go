// Package aimem wires the memory engine together from configuration.
package aimem

import (
	"context"
	"fmt"
	"strings"

	"github.com/lexlapax/aimem/pkg/config"
	"github.com/lexlapax/aimem/pkg/embedding"
	"github.com/lexlapax/aimem/pkg/embedding/adapters/gemini"
	"github.com/lexlapax/aimem/pkg/embedding/adapters/openai"
	"github.com/lexlapax/aimem/pkg/log"
	"github.com/lexlapax/aimem/pkg/memory"
	"github.com/lexlapax/aimem/pkg/store"
	"github.com/lexlapax/aimem/pkg/store/chromem"
	"github.com/lexlapax/aimem/pkg/store/sqlite"
)

// NewEngineFromConfig builds a fully wired memory engine from the
// given configuration. The returned close function releases the
// underlying database handle.
func NewEngineFromConfig(ctx context.Context, cfg *config.Config) (*memory.Engine, func() error, error) {
	st, err := sqlite.Open(cfg.Storage.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open store: %w", err)
	}

	provider, err := buildProvider(ctx, cfg)
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	var dense store.DenseStore
	if provider != nil {
		denseStore, err := chromem.Open(cfg.Storage.DensePath, cfg.Storage.DenseCollection)
		if err != nil {
			st.Close()
			return nil, nil, fmt.Errorf("failed to open dense store: %w", err)
		}
		dense = denseStore
	}

	engine, err := memory.NewEngine(ctx, st, provider, dense, memory.Config{
		DedupThreshold: cfg.Dedup.Threshold,
		DefaultLimit:   cfg.Search.DefaultLimit,
		MinScore:       cfg.Search.MinScore,
		DecayTiers:     memory.DefaultDecayTiers(),
	})
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	return engine, st.Close, nil
}

// buildProvider creates the configured dense embedding provider, or
// nil when the engine should run TF-IDF only.
func buildProvider(ctx context.Context, cfg *config.Config) (embedding.Provider, error) {
	switch strings.ToLower(cfg.Embedding.Provider) {
	case "", "none":
		return nil, nil
	case "openai":
		if cfg.Embedding.OpenAI.APIKey == "" {
			log.Warn("OpenAI provider configured without API key, running TF-IDF only")
			return nil, nil
		}
		adapter, err := openai.NewAdapter(openai.Config{
			APIKey:  cfg.Embedding.OpenAI.APIKey,
			Model:   cfg.Embedding.OpenAI.Model,
			BaseURL: cfg.Embedding.OpenAI.BaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create openai provider: %w", err)
		}
		return adapter, nil
	case "gemini":
		if cfg.Embedding.Gemini.APIKey == "" {
			log.Warn("Gemini provider configured without API key, running TF-IDF only")
			return nil, nil
		}
		adapter, err := gemini.NewAdapter(ctx, gemini.Config{
			APIKey: cfg.Embedding.Gemini.APIKey,
			Model:  cfg.Embedding.Gemini.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini provider: %w", err)
		}
		return adapter, nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Embedding.Provider)
	}
}
