package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"google.golang.org/genai"
)

// Generator sends one prompt to a remote model and returns its text.
type Generator interface {
	Generate(ctx context.Context, prompt string, structured bool) (string, error)
}

// ChatConfig represents the configuration for a chat engine.
type ChatConfig struct {
	Provider    string // "huggingface", "ollama" or "gemini"
	Model       string
	BaseURL     string
	APIKey      string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration

	// Structured requests a JSON critique and falls back to text scraping.
	Structured bool
}

// ChatEngine produces match critiques. It never returns an error from
// Critique: failures are reported in the result.
type ChatEngine struct {
	config    ChatConfig
	generator Generator
	missing   string
}

// FailureKind classifies a failed critique.
type FailureKind string

const (
	FailureCredentials FailureKind = "missing_credentials"
	FailureTimeout     FailureKind = "timeout"
	FailureUpstream    FailureKind = "upstream_error"
	FailureEmpty       FailureKind = "empty_response"
)

type Failure struct {
	Kind    FailureKind
	Message string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Critique is the tagged result of an inference call. On failure Text holds
// a displayable error message and Failure is set.
type Critique struct {
	Text       string
	Score      int
	Structured bool
	Failure    *Failure
}

func (c Critique) OK() bool {
	return c.Failure == nil
}

func failed(kind FailureKind, message string) Critique {
	return Critique{
		Text:    "Error: " + message,
		Failure: &Failure{Kind: kind, Message: message},
	}
}

// NewWithConfig creates a ChatEngine. A missing credential is not an
// error; the engine then answers every call with a credentials failure.
func NewWithConfig(ctx context.Context, config ChatConfig) (*ChatEngine, error) {
	if config.Provider == "" {
		config.Provider = "huggingface"
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 500
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}

	ce := &ChatEngine{config: config}

	switch config.Provider {
	case "huggingface":
		if config.Model == "" {
			config.Model = "Qwen/Qwen2.5-72B-Instruct"
		}
		if config.BaseURL == "" {
			config.BaseURL = "https://router.huggingface.co/v1"
		}
		if strings.TrimSpace(config.APIKey) == "" {
			ce.missing = "HF_TOKEN not configured"
			break
		}
		model, err := openai.New(
			openai.WithToken(config.APIKey),
			openai.WithBaseURL(config.BaseURL),
			openai.WithModel(config.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize LLM: %w", err)
		}
		ce.generator = &modelGenerator{model: model, maxTokens: config.MaxTokens, temperature: config.Temperature}

	case "ollama":
		if config.Model == "" {
			config.Model = "qwen2.5"
		}
		if config.BaseURL == "" {
			config.BaseURL = "http://localhost:11434"
		}
		model, err := ollama.New(ollama.WithModel(config.Model), ollama.WithServerURL(config.BaseURL))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize LLM: %w", err)
		}
		ce.generator = &modelGenerator{model: model, maxTokens: config.MaxTokens, temperature: config.Temperature}

	case "gemini":
		if strings.TrimSpace(config.APIKey) == "" {
			ce.missing = "GOOGLE_API_KEY not configured"
			break
		}
		gen, err := newGeminiGenerator(ctx, config)
		if err != nil {
			return nil, err
		}
		ce.generator = gen

	default:
		return nil, fmt.Errorf("unknown llm provider %q", config.Provider)
	}

	ce.config = config
	return ce, nil
}

// NewWithGenerator wires an engine to an existing generator.
func NewWithGenerator(config ChatConfig, generator Generator) *ChatEngine {
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	ce := &ChatEngine{config: config, generator: generator}
	if generator == nil {
		ce.missing = "inference credential not configured"
	}
	return ce
}

// Model returns the configured model name.
func (ce *ChatEngine) Model() string {
	return ce.config.Model
}

// Critique asks the model to score the resume context against the job
// description. The call is bounded by the configured timeout.
func (ce *ChatEngine) Critique(ctx context.Context, resumeContext, jobDescription string) Critique {
	if ce.generator == nil {
		return failed(FailureCredentials, ce.missing)
	}

	ctx, cancel := context.WithTimeout(ctx, ce.config.Timeout)
	defer cancel()

	prompt := BuildPrompt(resumeContext, jobDescription, ce.config.Structured)

	raw, err := ce.generator.Generate(ctx, prompt, ce.config.Structured)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return failed(FailureTimeout, fmt.Sprintf("LLM did not answer within %s", ce.config.Timeout))
		}
		return failed(FailureUpstream, fmt.Sprintf("calling LLM: %v", err))
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return failed(FailureEmpty, "LLM returned an empty response")
	}

	if ce.config.Structured {
		if c, ok := parseStructured(raw); ok {
			return c
		}
	}

	return Critique{Text: raw, Score: ExtractScore(raw)}
}

// modelGenerator adapts a langchaingo chat model.
type modelGenerator struct {
	model       llms.Model
	maxTokens   int
	temperature float64
}

func (g *modelGenerator) Generate(ctx context.Context, prompt string, structured bool) (string, error) {
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	opts := []llms.CallOption{
		llms.WithMaxTokens(g.maxTokens),
		llms.WithTemperature(g.temperature),
	}
	if structured {
		opts = append(opts, llms.WithJSONMode())
	}

	resp, err := g.model.GenerateContent(ctx, content, opts...)
	if err != nil {
		return "", fmt.Errorf("chat error: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return "", errors.New("no response from LLM")
	}
	return resp.Choices[0].Content, nil
}

// geminiGenerator wraps the Google GenAI client.
type geminiGenerator struct {
	client      *genai.Client
	model       string
	maxTokens   int32
	temperature float32
}

func newGeminiGenerator(ctx context.Context, config ChatConfig) (*geminiGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  strings.TrimSpace(config.APIKey),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	model := strings.TrimSpace(config.Model)
	if model == "" {
		model = "gemini-2.5-flash"
	}

	return &geminiGenerator{
		client:      client,
		model:       model,
		maxTokens:   int32(config.MaxTokens),
		temperature: float32(config.Temperature),
	}, nil
}

func (g *geminiGenerator) Generate(ctx context.Context, prompt string, structured bool) (string, error) {
	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: g.maxTokens,
		Temperature:     genai.Ptr(g.temperature),
	}
	if structured {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || strings.TrimSpace(part.Text) == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(part.Text)
		}
	}

	return builder.String(), nil
}
