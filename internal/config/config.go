package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var (
	ErrMissingAPIKey  = errors.New("completion service api key is not set")
	ErrMissingBaseURL = errors.New("completion service base url is not set")
)

const (
	defaultBaseURL        = "https://api.deepseek.com"
	defaultModel          = "deepseek-chat"
	defaultTimeout        = 120 * time.Second
	defaultMaxTokens      = 8000
	defaultTokenizerModel = "gpt-4"
	defaultMaxInsights    = 10
	defaultConcurrency    = 1
	defaultAddr           = ":8080"
	defaultMaxUploadMB    = 50
	defaultDriver         = "pgdriver"
	defaultLogLevel       = "info"
)

type Config struct {
	LogLevel string         `yaml:"log_level"`
	LLM      LLMConfig      `yaml:"llm"`
	Analyzer AnalyzerConfig `yaml:"analyzer"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
}

type LLMConfig struct {
	BaseURL  string        `yaml:"base_url"`
	Key      string        `yaml:"key"`
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"timeout"`
	JSONMode bool          `yaml:"json_mode"`
}

type AnalyzerConfig struct {
	MaxTokens         int    `yaml:"max_tokens"`
	Tokenizer         string `yaml:"tokenizer"` // "tiktoken" or "approx"
	TokenizerModel    string `yaml:"tokenizer_model"`
	MaxInsights       int    `yaml:"max_insights"`
	Concurrency       int    `yaml:"concurrency"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
}

type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxUploadMB    int64    `yaml:"max_upload_mb"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	Driver   string `yaml:"driver"` // "pgdriver" or "postgres"
	Debug    bool   `yaml:"debug"`
}

// Enabled reports whether a report store is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// LoadConfig reads the yaml file at path (a missing file is not an error),
// applies .env and environment overrides and fills defaults. It does not
// validate; call Validate before using the config to start the service.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	// .env is optional, existing environment wins
	_ = godotenv.Load()

	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := firstEnv("DEEPSEEK_API_KEY", "LLM_API_KEY"); v != "" {
		c.LLM.Key = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Addr = ":" + strings.TrimPrefix(v, ":")
	}
	if v := os.Getenv("FRONTEND_URL"); v != "" {
		c.Server.AllowedOrigins = append(c.Server.AllowedOrigins, v)
	}
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultBaseURL
	}
	if c.LLM.Model == "" {
		c.LLM.Model = defaultModel
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = defaultTimeout
	}
	if c.Analyzer.MaxTokens == 0 {
		c.Analyzer.MaxTokens = defaultMaxTokens
	}
	if c.Analyzer.Tokenizer == "" {
		c.Analyzer.Tokenizer = "tiktoken"
	}
	if c.Analyzer.TokenizerModel == "" {
		c.Analyzer.TokenizerModel = defaultTokenizerModel
	}
	if c.Analyzer.MaxInsights == 0 {
		c.Analyzer.MaxInsights = defaultMaxInsights
	}
	if c.Analyzer.Concurrency == 0 {
		c.Analyzer.Concurrency = defaultConcurrency
	}
	if c.Server.Addr == "" {
		c.Server.Addr = defaultAddr
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"http://localhost:3000"}
	}
	if c.Server.MaxUploadMB == 0 {
		c.Server.MaxUploadMB = defaultMaxUploadMB
	}
	if c.Database.Driver == "" {
		c.Database.Driver = defaultDriver
	}
}

// Validate reports configuration the service must refuse to start with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.LLM.Key) == "" {
		return ErrMissingAPIKey
	}
	if strings.TrimSpace(c.LLM.BaseURL) == "" {
		return ErrMissingBaseURL
	}
	if c.Analyzer.MaxTokens <= 0 {
		return fmt.Errorf("analyzer.max_tokens must be positive, got %d", c.Analyzer.MaxTokens)
	}
	if c.Analyzer.MaxInsights <= 0 {
		return fmt.Errorf("analyzer.max_insights must be positive, got %d", c.Analyzer.MaxInsights)
	}
	if c.Analyzer.Concurrency <= 0 {
		return fmt.Errorf("analyzer.concurrency must be positive, got %d", c.Analyzer.Concurrency)
	}
	switch c.Analyzer.Tokenizer {
	case "tiktoken", "approx":
	default:
		return fmt.Errorf("analyzer.tokenizer: unknown tokenizer %q", c.Analyzer.Tokenizer)
	}
	switch c.Database.Driver {
	case "pgdriver", "postgres":
	default:
		return fmt.Errorf("database.driver: unknown driver %q", c.Database.Driver)
	}
	return nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
