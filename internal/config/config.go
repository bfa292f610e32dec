package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	// DefaultMaxUploadBytes is 4.5 MB, the documented upload ceiling.
	DefaultMaxUploadBytes int64 = 4718592
	// DefaultCorpusBudget is compared against len(chars)/4 per file.
	DefaultCorpusBudget = 900 * 1024
)

type Config struct {
	Server struct {
		Port           int           `yaml:"port" toml:"port"`
		ReadTimeout    time.Duration `yaml:"readTimeout" toml:"readTimeout"`
		WriteTimeout   time.Duration `yaml:"writeTimeout" toml:"writeTimeout"`
		IdleTimeout    time.Duration `yaml:"idleTimeout" toml:"idleTimeout"`
		AllowedOrigins []string      `yaml:"allowedOrigins" toml:"allowedOrigins"`
	} `yaml:"server" toml:"server"`

	AI struct {
		Provider        string `yaml:"provider" toml:"provider"`
		Model           string `yaml:"model" toml:"model"`
		APIKey          string `yaml:"apiKey" toml:"apiKey"`
		BaseURL         string `yaml:"baseURL" toml:"baseURL"`
		MaxOutputTokens int    `yaml:"maxOutputTokens" toml:"maxOutputTokens"`
		ForceJSON       bool   `yaml:"forceJSON" toml:"forceJSON"`
	} `yaml:"ai" toml:"ai"`

	Limits struct {
		MaxUploadBytes    int64  `yaml:"maxUploadBytes" toml:"maxUploadBytes"`
		CorpusBudget      int    `yaml:"corpusBudget" toml:"corpusBudget"`
		MaxExtractedBytes int64  `yaml:"maxExtractedBytes" toml:"maxExtractedBytes"`
		ScratchDir        string `yaml:"scratchDir" toml:"scratchDir"`
	} `yaml:"limits" toml:"limits"`

	RateLimit struct {
		Enabled         bool `yaml:"enabled" toml:"enabled"`
		Capacity        int  `yaml:"capacity" toml:"capacity"`
		RefillPerSecond int  `yaml:"refillPerSecond" toml:"refillPerSecond"`
		MaxClients      int  `yaml:"maxClients" toml:"maxClients"`
	} `yaml:"rateLimit" toml:"rateLimit"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	cfg.Server.Port = 8080
	cfg.Server.ReadTimeout = 30 * time.Second
	// completion calls can take a while; no timeout is imposed beyond the provider's own
	cfg.Server.WriteTimeout = 5 * time.Minute
	cfg.Server.IdleTimeout = 60 * time.Second
	cfg.Server.AllowedOrigins = []string{"*"}

	cfg.AI.Provider = ProviderGemini
	cfg.AI.MaxOutputTokens = 8192
	cfg.AI.ForceJSON = true

	cfg.Limits.MaxUploadBytes = DefaultMaxUploadBytes
	cfg.Limits.CorpusBudget = DefaultCorpusBudget
	cfg.Limits.MaxExtractedBytes = 100 << 20
	cfg.Limits.ScratchDir = os.TempDir()

	cfg.RateLimit.Capacity = 10
	cfg.RateLimit.RefillPerSecond = 1
	cfg.RateLimit.MaxClients = 4096
	return &cfg
}

// Load reads .env, the config file at path (yaml or toml by extension) and
// environment overrides. A missing file is only an error when required is set.
func Load(path string, required bool) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(path, data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !required:
	default:
		return nil, err
	}

	cfg.applyEnv()
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		_, err := toml.Decode(string(data), cfg)
		return err
	default:
		return yaml.Unmarshal(data, cfg)
	}
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		if p, err := strconv.Atoi(strings.TrimPrefix(v, ":")); err == nil {
			c.Server.Port = p
		}
	}
	if v := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS")); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.Server.AllowedOrigins = origins
	}
	if v := strings.TrimSpace(os.Getenv("AI_PROVIDER")); v != "" {
		c.AI.Provider = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("AI_MODEL")); v != "" {
		c.AI.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")); v != "" {
		c.AI.BaseURL = v
	}
	if c.AI.APIKey == "" {
		switch c.AI.Provider {
		case ProviderOpenAI:
			c.AI.APIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
		default:
			c.AI.APIKey = firstNonEmpty(
				strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
				strings.TrimSpace(os.Getenv("GOOGLE_API_KEY")),
			)
		}
	}
	if v := strings.TrimSpace(os.Getenv("SCRATCH_DIR")); v != "" {
		c.Limits.ScratchDir = v
	}
}

func (c *Config) fillDefaults() {
	if c.AI.Provider == "" {
		c.AI.Provider = ProviderGemini
	}
	if c.AI.Model == "" {
		c.AI.Model = DefaultModel(c.AI.Provider)
	}
	if c.Limits.ScratchDir == "" {
		c.Limits.ScratchDir = os.TempDir()
	}
}

// Validate rejects provider names and limits the service cannot run with.
func (c *Config) Validate() error {
	switch c.AI.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown ai provider: %q (allowed: gemini, openai)", c.AI.Provider)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Limits.MaxUploadBytes <= 0 {
		return fmt.Errorf("limits.maxUploadBytes must be positive")
	}
	if c.Limits.CorpusBudget <= 0 {
		return fmt.Errorf("limits.corpusBudget must be positive")
	}
	if c.Limits.MaxExtractedBytes <= 0 {
		return fmt.Errorf("limits.maxExtractedBytes must be positive")
	}
	if c.RateLimit.Enabled && (c.RateLimit.Capacity <= 0 || c.RateLimit.RefillPerSecond <= 0) {
		return fmt.Errorf("rateLimit.capacity and rateLimit.refillPerSecond must be positive")
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

// DefaultModel picks a model when none is configured.
func DefaultModel(provider string) string {
	if provider == ProviderOpenAI {
		return "gpt-4o-mini"
	}
	return "gemini-2.5-flash"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
