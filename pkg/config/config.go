package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Addr        string `yaml:"addr"`
		BodyLimitMB int    `yaml:"body_limit_mb"`
		TempDir     string `yaml:"temp_dir"`

		// AllowedOrigins restricts websocket clients; empty allows all.
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`

	LLM struct {
		Provider    string        `yaml:"provider"`
		BaseURL     string        `yaml:"base_url"`
		Model       string        `yaml:"model"`
		MaxTokens   int           `yaml:"max_tokens"`
		Temperature *float64      `yaml:"temperature"`
		Timeout     time.Duration `yaml:"timeout"`
		Structured  bool          `yaml:"structured"`
		APIKey      string        `yaml:"api_key"`
		APIKeyFile  string        `yaml:"api_key_file"`
	} `yaml:"llm"`

	Embedder struct {
		Provider string `yaml:"provider"`
		BaseURL  string `yaml:"base_url"`
		Model    string `yaml:"model"`
		APIKey   string `yaml:"api_key"`
	} `yaml:"embedder"`

	Store struct {
		Driver    string `yaml:"driver"`
		Path      string `yaml:"path"`
		URL       string `yaml:"url"`
		TableName string `yaml:"table_name"`
		VectorDim int    `yaml:"vector_dim"`
	} `yaml:"store"`

	Retrieval struct {
		NResults      int `yaml:"n_results"`
		PreviewLength int `yaml:"preview_length"`
	} `yaml:"retrieval"`

	Session struct {
		TTL time.Duration `yaml:"ttl"`
	} `yaml:"session"`

	Scraper struct {
		RateLimit float64       `yaml:"rate_limit"`
		Timeout   time.Duration `yaml:"timeout"`

		// AllowPrivate lets job posting URLs point at internal addresses.
		AllowPrivate bool `yaml:"allow_private"`
	} `yaml:"scraper"`

	Log struct {
		JSON  bool   `yaml:"json"`
		Debug bool   `yaml:"debug"`
		File  string `yaml:"file"`
	} `yaml:"log"`
}

// Provider names.
const (
	ProviderHuggingFace = "huggingface"
	ProviderOllama      = "ollama"
	ProviderGemini      = "gemini"
	ProviderOpenAI      = "openai"
	ProviderHash        = "hash"

	DriverDisk     = "disk"
	DriverPGVector = "pgvector"
)

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/resumatch/config.yaml"),
			"/etc/resumatch/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}
	if config.Server.BodyLimitMB == 0 {
		config.Server.BodyLimitMB = 10
	}

	if config.LLM.Provider == "" {
		config.LLM.Provider = ProviderHuggingFace
	}
	if config.LLM.BaseURL == "" {
		switch config.LLM.Provider {
		case ProviderHuggingFace:
			config.LLM.BaseURL = "https://router.huggingface.co/v1"
		case ProviderOllama:
			config.LLM.BaseURL = "http://localhost:11434"
		}
	}
	if config.LLM.Model == "" {
		switch config.LLM.Provider {
		case ProviderOllama:
			config.LLM.Model = "qwen2.5"
		case ProviderGemini:
			config.LLM.Model = "gemini-2.5-flash"
		default:
			config.LLM.Model = "Qwen/Qwen2.5-72B-Instruct"
		}
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 500
	}
	if config.LLM.Temperature == nil {
		temperature := 0.7
		config.LLM.Temperature = &temperature
	}
	if config.LLM.Timeout == 0 {
		config.LLM.Timeout = 60 * time.Second
	}

	if config.Embedder.Provider == "" {
		config.Embedder.Provider = ProviderOllama
	}
	if config.Embedder.BaseURL == "" && config.Embedder.Provider == ProviderOllama {
		config.Embedder.BaseURL = "http://localhost:11434"
	}
	if config.Embedder.Model == "" {
		if config.Embedder.Provider == ProviderOpenAI {
			config.Embedder.Model = "text-embedding-3-small"
		} else {
			config.Embedder.Model = "nomic-embed-text:latest"
		}
	}

	if config.Store.Driver == "" {
		config.Store.Driver = DriverDisk
	}
	if config.Store.Path == "" {
		config.Store.Path = "vector_db"
	}
	if config.Store.TableName == "" {
		config.Store.TableName = "resume_chunks"
	}
	if config.Store.VectorDim == 0 {
		config.Store.VectorDim = 768
	}

	if config.Retrieval.NResults == 0 {
		config.Retrieval.NResults = 5
	}
	if config.Retrieval.PreviewLength == 0 {
		config.Retrieval.PreviewLength = 200
	}

	if config.Scraper.RateLimit == 0 {
		config.Scraper.RateLimit = 1.0
	}
	if config.Scraper.Timeout == 0 {
		config.Scraper.Timeout = 30 * time.Second
	}
}

func mergeWithEnv(config *Config) {
	if port := os.Getenv("PORT"); port != "" {
		config.Server.Addr = ":" + port
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.Embedder.BaseURL = baseURL
		if config.LLM.Provider == ProviderOllama {
			config.LLM.BaseURL = baseURL
		}
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Store.URL = dbURL
	}
	if config.LLM.APIKey == "" {
		switch config.LLM.Provider {
		case ProviderGemini:
			config.LLM.APIKey = os.Getenv("GOOGLE_API_KEY")
		case ProviderHuggingFace, "":
			config.LLM.APIKey = os.Getenv("HF_TOKEN")
		}
	}
	if config.Embedder.APIKey == "" && config.Embedder.Provider == ProviderOpenAI {
		config.Embedder.APIKey = os.Getenv("OPENAI_API_KEY")
	}
}

// Credential resolves the inference credential. An empty string means the
// credential is absent, which is not fatal.
func (c *Config) Credential() (string, error) {
	if c.LLM.Provider == ProviderOllama {
		return "", nil
	}
	key, err := LoadSecret(SecretSource{
		Name:  c.LLM.Provider + " api key",
		Value: c.LLM.APIKey,
		File:  c.LLM.APIKeyFile,
	})
	if err != nil && c.LLM.APIKeyFile == "" {
		return "", nil
	}
	return key, err
}

// LLMTemperature returns the configured sampling temperature. An explicit
// 0 is kept.
func (c *Config) LLMTemperature() float64 {
	if c.LLM.Temperature == nil {
		return 0.7
	}
	return *c.LLM.Temperature
}
