package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
)

// Embedder maps text to vectors. It matches langchaingo's embeddings.Embedder.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// EmbedderConfig represents the configuration for an embedding function.
type EmbedderConfig struct {
	Provider string // "ollama", "openai" or "hash"
	Model    string
	BaseURL  string
	APIKey   string

	// Dimensions only applies to the hash provider.
	Dimensions int
}

func NewEmbedderWithConfig(config EmbedderConfig) (Embedder, error) {
	switch config.Provider {
	case "", "ollama":
		if config.Model == "" {
			config.Model = "nomic-embed-text:latest"
		}
		if config.BaseURL == "" {
			config.BaseURL = "http://localhost:11434"
		}

		client, err := ollama.New(ollama.WithModel(config.Model), ollama.WithServerURL(config.BaseURL))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ollama embedder: %w", err)
		}
		emb, err := embeddings.NewEmbedder(client)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ollama embedder: %w", err)
		}
		return emb, nil

	case "openai":
		return newOpenAIEmbedder(config)

	case "hash":
		return NewHashEmbedder(config.Dimensions), nil

	default:
		return nil, fmt.Errorf("unknown embedder provider %q", config.Provider)
	}
}

// Probe embeds a fixed string and returns the vector dimension. It is run
// once at startup; a failure means nothing can be stored.
func Probe(ctx context.Context, e Embedder) (int, error) {
	vec, err := e.EmbedQuery(ctx, "embedding dimension probe")
	if err != nil {
		return 0, fmt.Errorf("embedding function unavailable: %w", err)
	}
	if len(vec) == 0 {
		return 0, errors.New("embedding function returned an empty vector")
	}
	return len(vec), nil
}

// openAIEmbedder talks to any OpenAI-compatible embeddings endpoint.
type openAIEmbedder struct {
	client *openai.Client
	model  string
}

func newOpenAIEmbedder(config EmbedderConfig) (*openAIEmbedder, error) {
	if config.APIKey == "" {
		return nil, errors.New("openai embedder requires an api key")
	}
	if config.Model == "" {
		config.Model = "text-embedding-3-small"
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &openAIEmbedder{
		client: openai.NewClientWithConfig(clientConfig),
		model:  config.Model,
	}, nil
}

func (e *openAIEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embeddings: got %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("openai embeddings: index %d out of range", d.Index)
		}
		v := make([]float32, len(d.Embedding))
		for i := range d.Embedding {
			v[i] = float32(d.Embedding[i])
		}
		vectors[d.Index] = v
	}
	return vectors, nil
}

func (e *openAIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}
