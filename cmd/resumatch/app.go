package main

import (
	"context"
	"fmt"
	"time"

	"github.com/xhad/resumatch/pkg/config"
	"github.com/xhad/resumatch/pkg/llm"
	"github.com/xhad/resumatch/pkg/matcher"
	"github.com/xhad/resumatch/pkg/parser"
	"github.com/xhad/resumatch/pkg/processor"
	"github.com/xhad/resumatch/pkg/scraper"
	"github.com/xhad/resumatch/pkg/store"
	"go.uber.org/zap"
)

// application bundles the long-lived components built from the config.
type application struct {
	config  *config.Config
	log     *zap.Logger
	store   store.VectorStore
	engine  *llm.ChatEngine
	matcher *matcher.Service
}

// openStore probes the embedding function and opens the configured vector
// store. Both failures are fatal for every command.
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.VectorStore, error) {
	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Provider:   cfg.Embedder.Provider,
		Model:      cfg.Embedder.Model,
		BaseURL:    cfg.Embedder.BaseURL,
		APIKey:     cfg.Embedder.APIKey,
		Dimensions: cfg.Store.VectorDim,
	})
	if err != nil {
		return nil, err
	}

	probeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	dim, err := llm.Probe(probeCtx, embedder)
	if err != nil {
		return nil, err
	}
	log.Info("embedding function ready",
		zap.String("provider", cfg.Embedder.Provider),
		zap.String("model", cfg.Embedder.Model),
		zap.Int("dimensions", dim),
	)

	switch cfg.Store.Driver {
	case config.DriverPGVector:
		if dim != cfg.Store.VectorDim {
			return nil, fmt.Errorf("embedding dimension %d does not match store.vector_dim %d", dim, cfg.Store.VectorDim)
		}
		return store.NewPGVector(ctx, store.PGVectorConfig{
			ConnString: cfg.Store.URL,
			TableName:  cfg.Store.TableName,
			VectorDim:  cfg.Store.VectorDim,
		}, embedder)
	default:
		return store.NewDisk(cfg.Store.Path, embedder)
	}
}

func newApplication(ctx context.Context, cfg *config.Config, log *zap.Logger) (*application, error) {
	vs, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}

	key, err := cfg.Credential()
	if err != nil {
		vs.Close()
		return nil, err
	}

	engine, err := llm.NewWithConfig(ctx, llm.ChatConfig{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      key,
		Temperature: cfg.LLMTemperature(),
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
		Structured:  cfg.LLM.Structured,
	})
	if err != nil {
		vs.Close()
		return nil, fmt.Errorf("failed to initialize chat engine: %w", err)
	}
	if key == "" && cfg.LLM.Provider != config.ProviderOllama {
		log.Warn("inference credential not configured, analyses will return an error",
			zap.String("provider", cfg.LLM.Provider))
	}

	proc := processor.New()
	svc, err := matcher.New(matcher.Config{
		NResults:      cfg.Retrieval.NResults,
		PreviewLength: cfg.Retrieval.PreviewLength,
		TempDir:       cfg.Server.TempDir,
	}, matcher.Deps{
		Parser:    parser.New(),
		Processor: &proc,
		Store:     vs,
		Critic:    engine,
		Fetcher: scraper.NewWithConfig(scraper.ScraperConfig{
			RateLimit:    cfg.Scraper.RateLimit,
			Timeout:      cfg.Scraper.Timeout,
			AllowPrivate: cfg.Scraper.AllowPrivate,
		}),
		Logger: log,
	})
	if err != nil {
		vs.Close()
		return nil, err
	}

	return &application{
		config:  cfg,
		log:     log,
		store:   vs,
		engine:  engine,
		matcher: svc,
	}, nil
}

func (a *application) Close() {
	a.store.Close()
	a.log.Sync()
}
