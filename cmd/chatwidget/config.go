package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/MegaGrindStone/chat-widget/internal/handlers"
	"github.com/MegaGrindStone/chat-widget/internal/services"
	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type llmConfig interface {
	llm(systemPrompt string, e envConfig, logger *slog.Logger) (handlers.LLM, error)
}

// BaseLLMConfig contains the common fields for all LLM configurations.
type BaseLLMConfig struct {
	Provider   string                 `yaml:"provider"`
	Model      string                 `yaml:"model"`
	Parameters services.LLMParameters `yaml:"parameters"`
}

type config struct {
	Port            string        `yaml:"port"`
	BackendURL      string        `yaml:"backendURL"`
	SystemPrompt    string        `yaml:"systemPrompt"`
	HistoryLimit    int           `yaml:"historyLimit"`
	ExchangeTimeout time.Duration `yaml:"exchangeTimeout"`
	Markdown        bool          `yaml:"markdown"`
	StorePath       string        `yaml:"storePath"`
	LogLevel        string        `yaml:"logLevel"`
	LogFormat       string        `yaml:"logFormat"`
	LogFile         string        `yaml:"logFile"`
	LLM             llmConfig     `yaml:"llm"`

	env envConfig
}

// envConfig holds the environment overrides. Secrets are usually only given this way.
type envConfig struct {
	Port            string `env:"CHATWIDGET_PORT"`
	BackendURL      string `env:"CHATWIDGET_BACKEND_URL"`
	LogLevel        string `env:"CHATWIDGET_LOG_LEVEL"`
	OllamaHost      string `env:"OLLAMA_HOST"`
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
}

type ollamaConfig struct {
	BaseLLMConfig `yaml:",inline"`
	Host          string `yaml:"host"`
}

type openAIConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
	BaseURL       string `yaml:"baseURL"`
}

type anthropicConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
	Endpoint      string `yaml:"endpoint"`
	MaxTokens     int    `yaml:"maxTokens"`
}

const (
	defaultPort         = "8080"
	defaultOllamaHost   = "http://localhost:11434"
	defaultOllamaModel  = "gemma3:1b"
	defaultHistoryLimit = 20
)

func (c *config) UnmarshalYAML(value *yaml.Node) error {
	var rawConfig struct {
		Port            string         `yaml:"port"`
		BackendURL      string         `yaml:"backendURL"`
		SystemPrompt    string         `yaml:"systemPrompt"`
		HistoryLimit    int            `yaml:"historyLimit"`
		ExchangeTimeout time.Duration  `yaml:"exchangeTimeout"`
		Markdown        bool           `yaml:"markdown"`
		StorePath       string         `yaml:"storePath"`
		LogLevel        string         `yaml:"logLevel"`
		LogFormat       string         `yaml:"logFormat"`
		LogFile         string         `yaml:"logFile"`
		LLM             map[string]any `yaml:"llm"`
	}

	if err := value.Decode(&rawConfig); err != nil {
		return err
	}

	c.Port = rawConfig.Port
	c.BackendURL = rawConfig.BackendURL
	c.SystemPrompt = rawConfig.SystemPrompt
	c.HistoryLimit = rawConfig.HistoryLimit
	c.ExchangeTimeout = rawConfig.ExchangeTimeout
	c.Markdown = rawConfig.Markdown
	c.StorePath = rawConfig.StorePath
	c.LogLevel = rawConfig.LogLevel
	c.LogFormat = rawConfig.LogFormat
	c.LogFile = rawConfig.LogFile

	if rawConfig.LLM == nil {
		return nil
	}

	llmProvider, ok := rawConfig.LLM["provider"].(string)
	if !ok {
		return fmt.Errorf("llm provider is required")
	}

	llmRawYAML, err := yaml.Marshal(rawConfig.LLM)
	if err != nil {
		return err
	}

	var llm llmConfig
	switch llmProvider {
	case "ollama":
		llm = &ollamaConfig{}
	case "openai":
		llm = &openAIConfig{}
	case "anthropic":
		llm = &anthropicConfig{}
	default:
		return fmt.Errorf("unknown llm provider: %s", llmProvider)
	}

	if err := yaml.Unmarshal(llmRawYAML, llm); err != nil {
		return err
	}

	c.LLM = llm
	return nil
}

// loadConfig reads the YAML config at path, or the default location when path is empty, then applies
// the .env file and environment overrides. A missing config file is not an error.
func loadConfig(path string) (config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return config{}, fmt.Errorf("error loading .env file: %w", err)
	}

	if path == "" {
		dir, err := configDir()
		if err != nil {
			return config{}, err
		}
		path = filepath.Join(dir, "config.yaml")
	}

	cfg := config{}
	cfgFile, err := os.Open(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return config{}, fmt.Errorf("error opening config file: %w", err)
	default:
		defer cfgFile.Close()
		// An empty file carries no settings.
		if err := yaml.NewDecoder(cfgFile).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return config{}, fmt.Errorf("error decoding config file: %w", err)
		}
	}

	if err := env.Parse(&cfg.env); err != nil {
		return config{}, fmt.Errorf("error parsing environment: %w", err)
	}
	cfg.applyDefaults()

	return cfg, nil
}

func (c *config) applyDefaults() {
	if c.env.Port != "" {
		c.Port = c.env.Port
	}
	if c.env.BackendURL != "" {
		c.BackendURL = c.env.BackendURL
	}
	if c.env.LogLevel != "" {
		c.LogLevel = c.env.LogLevel
	}

	if c.Port == "" {
		c.Port = defaultPort
	}
	if c.BackendURL == "" {
		c.BackendURL = "http://127.0.0.1:" + c.Port + "/chat"
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = defaultSystemPrompt
	}
	if c.HistoryLimit == 0 {
		c.HistoryLimit = defaultHistoryLimit
	}
	if c.LLM == nil {
		c.LLM = &ollamaConfig{
			BaseLLMConfig: BaseLLMConfig{Provider: "ollama", Model: defaultOllamaModel},
		}
	}
}

// configDir returns the application directory under the user config dir, creating it if needed.
func configDir() (string, error) {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("error getting user config dir: %w", err)
	}
	dir := filepath.Join(cfgDir, "chatwidget")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("error creating config directory: %w", err)
	}
	return dir, nil
}

func (o ollamaConfig) llm(systemPrompt string, e envConfig, _ *slog.Logger) (handlers.LLM, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	host := o.Host
	if host == "" {
		host = e.OllamaHost
	}
	if host == "" {
		host = defaultOllamaHost
	}
	return services.NewOllama(host, o.Model, systemPrompt, o.Parameters)
}

func (o openAIConfig) llm(systemPrompt string, e envConfig, logger *slog.Logger) (handlers.LLM, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	apiKey := o.APIKey
	if apiKey == "" {
		apiKey = e.OpenAIAPIKey
	}
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	return services.NewOpenAI(apiKey, o.BaseURL, o.Model, systemPrompt, o.Parameters, logger), nil
}

func (a anthropicConfig) llm(systemPrompt string, e envConfig, _ *slog.Logger) (handlers.LLM, error) {
	if a.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if a.MaxTokens == 0 {
		return nil, fmt.Errorf("max_tokens is required")
	}

	apiKey := a.APIKey
	if apiKey == "" {
		apiKey = e.AnthropicAPIKey
	}
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	return services.NewAnthropic(apiKey, a.Endpoint, a.Model, systemPrompt, a.MaxTokens, a.Parameters), nil
}
