package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MegaGrindStone/alx/internal/chat"
	"github.com/MegaGrindStone/alx/internal/prompts"
	"github.com/MegaGrindStone/alx/internal/services"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type llmConfig interface {
	generator(ctx context.Context, logger *slog.Logger) (chat.Generator, error)
}

// BaseLLMConfig contains the common fields for all LLM configurations.
type BaseLLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

type config struct {
	Port               string        `yaml:"port"`
	PromptTemplate     string        `yaml:"promptTemplate"`
	SystemPrompt       string        `yaml:"systemPrompt"`
	DispatchTimeout    time.Duration `yaml:"dispatchTimeout"`
	SurfaceIdleTimeout time.Duration `yaml:"surfaceIdleTimeout"`
	LogLevel           string        `yaml:"logLevel"`
	LogFormat          string        `yaml:"logFormat"`
	LLM                llmConfig     `yaml:"llm"`
}

type geminiConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
	BaseURL       string `yaml:"baseURL"`
}

type anthropicConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
	MaxTokens     int    `yaml:"maxTokens"`
	BaseURL       string `yaml:"baseURL"`
}

type openAIConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string                 `yaml:"apiKey"`
	BaseURL       string                 `yaml:"baseURL"`
	MaxTokens     int                    `yaml:"maxTokens"`
	Parameters    services.LLMParameters `yaml:"parameters"`
}

type openRouterConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
	BaseURL       string `yaml:"baseURL"`
}

type ollamaConfig struct {
	BaseLLMConfig `yaml:",inline"`
	Host          string `yaml:"host"`
}

type bedrockConfig struct {
	BaseLLMConfig `yaml:",inline"`
	Region        string `yaml:"region"`
	MaxTokens     int    `yaml:"maxTokens"`
}

const (
	defaultPort               = "8080"
	defaultGeminiModel        = "gemini-1.5-flash"
	defaultDispatchTimeout    = 2 * time.Minute
	defaultSurfaceIdleTimeout = time.Hour
)

func defaultConfig() config {
	return config{
		Port:               defaultPort,
		PromptTemplate:     prompts.Default,
		DispatchTimeout:    defaultDispatchTimeout,
		SurfaceIdleTimeout: defaultSurfaceIdleTimeout,
		LogLevel:           "info",
		LogFormat:          "text",
		LLM: &geminiConfig{
			BaseLLMConfig: BaseLLMConfig{Provider: "gemini", Model: defaultGeminiModel},
		},
	}
}

// loadConfig reads the YAML configuration at path, or at the user config directory when path is empty.
// Variables from a .env file in the working directory are loaded first, so credentials can live there.
// A missing file yields the defaults.
func loadConfig(path string) (config, error) {
	// Missing .env is fine
	_ = godotenv.Load()

	if path == "" {
		cfgDir, err := os.UserConfigDir()
		if err != nil {
			return config{}, fmt.Errorf("error getting user config dir: %w", err)
		}
		path = filepath.Join(cfgDir, "alx", "config.yaml")
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return defaultConfig(), nil
		}
		return config{}, fmt.Errorf("error opening config file: %w", err)
	}
	defer f.Close()

	return decodeConfig(f)
}

func decodeConfig(r io.Reader) (config, error) {
	cfg := defaultConfig()
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return defaultConfig(), nil
		}
		return config{}, fmt.Errorf("error decoding config file: %w", err)
	}
	return cfg, nil
}

func (c *config) UnmarshalYAML(value *yaml.Node) error {
	var rawConfig struct {
		Port               string         `yaml:"port"`
		PromptTemplate     string         `yaml:"promptTemplate"`
		SystemPrompt       string         `yaml:"systemPrompt"`
		DispatchTimeout    *time.Duration `yaml:"dispatchTimeout"`
		SurfaceIdleTimeout time.Duration  `yaml:"surfaceIdleTimeout"`
		LogLevel           string         `yaml:"logLevel"`
		LogFormat          string         `yaml:"logFormat"`
		LLM                map[string]any `yaml:"llm"`
	}

	if err := value.Decode(&rawConfig); err != nil {
		return err
	}

	if rawConfig.Port != "" {
		c.Port = rawConfig.Port
	}
	if rawConfig.PromptTemplate != "" {
		c.PromptTemplate = rawConfig.PromptTemplate
	}
	c.SystemPrompt = rawConfig.SystemPrompt
	// An explicit zero disables the dispatch bound
	if rawConfig.DispatchTimeout != nil {
		c.DispatchTimeout = *rawConfig.DispatchTimeout
	}
	if rawConfig.SurfaceIdleTimeout > 0 {
		c.SurfaceIdleTimeout = rawConfig.SurfaceIdleTimeout
	}
	if rawConfig.LogLevel != "" {
		c.LogLevel = rawConfig.LogLevel
	}
	if rawConfig.LogFormat != "" {
		c.LogFormat = rawConfig.LogFormat
	}

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
	case "gemini":
		llm = &geminiConfig{}
	case "anthropic":
		llm = &anthropicConfig{}
	case "openai":
		llm = &openAIConfig{}
	case "openrouter":
		llm = &openRouterConfig{}
	case "ollama":
		llm = &ollamaConfig{}
	case "bedrock":
		llm = &bedrockConfig{}
	default:
		return fmt.Errorf("unknown llm provider: %s", llmProvider)
	}

	if err := yaml.Unmarshal(llmRawYAML, llm); err != nil {
		return err
	}

	c.LLM = llm
	return nil
}

// template resolves the instructional template: configured text wins over a named embedded template.
func (c config) template() (prompts.Template, error) {
	if c.SystemPrompt != "" {
		return prompts.FromText(c.SystemPrompt), nil
	}
	return prompts.Load(c.PromptTemplate)
}

func (c config) dispatcher(ctx context.Context, logger *slog.Logger) (chat.Dispatcher, error) {
	gen, err := c.LLM.generator(ctx, logger)
	if err != nil {
		return chat.Dispatcher{}, fmt.Errorf("error creating llm provider: %w", err)
	}
	tmpl, err := c.template()
	if err != nil {
		return chat.Dispatcher{}, err
	}
	return chat.NewDispatcher(gen, tmpl, c.DispatchTimeout, logger), nil
}

func (c config) logger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(c.LogFormat) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format: %s", c.LogFormat)
	}
}

func envOr(value, key string) string {
	if value != "" {
		return value
	}
	return os.Getenv(key)
}

func (g geminiConfig) generator(_ context.Context, logger *slog.Logger) (chat.Generator, error) {
	model := g.Model
	if model == "" {
		model = defaultGeminiModel
	}
	apiKey := envOr(g.APIKey, "GEMINI_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_GENERATIVE_AI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	return services.NewGemini(apiKey, model, g.BaseURL, logger), nil
}

func (a anthropicConfig) generator(_ context.Context, logger *slog.Logger) (chat.Generator, error) {
	if a.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if a.MaxTokens == 0 {
		return nil, fmt.Errorf("maxTokens is required")
	}
	return services.NewAnthropic(envOr(a.APIKey, "ANTHROPIC_API_KEY"), a.Model, a.MaxTokens, a.BaseURL, logger), nil
}

func (o openAIConfig) generator(_ context.Context, logger *slog.Logger) (chat.Generator, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	return services.NewOpenAI(envOr(o.APIKey, "OPENAI_API_KEY"), o.Model, o.BaseURL, o.MaxTokens, o.Parameters, logger), nil
}

func (o openRouterConfig) generator(_ context.Context, logger *slog.Logger) (chat.Generator, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	return services.NewOpenRouter(envOr(o.APIKey, "OPENROUTER_API_KEY"), o.Model, o.BaseURL, logger), nil
}

func (o ollamaConfig) generator(_ context.Context, logger *slog.Logger) (chat.Generator, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	return services.NewOllama(o.Host, o.Model, logger)
}

func (b bedrockConfig) generator(ctx context.Context, logger *slog.Logger) (chat.Generator, error) {
	if b.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if b.MaxTokens == 0 {
		return nil, fmt.Errorf("maxTokens is required")
	}
	return services.NewBedrock(ctx, envOr(b.Region, "AWS_REGION"), b.Model, b.MaxTokens, logger)
}
