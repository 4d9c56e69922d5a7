package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderStub   = "stub"
)

type Config struct {
	Server      ServerConfig
	Provider    string `env:"PROVIDER" envDefault:"gemini"`
	Gemini      GeminiConfig
	OpenAI      OpenAIConfig
	RedisConfig RedisConfig
	Upload      UploadConfig
	Session     SessionConfig
	CacheEnable bool `env:"CACHE_ENABLE"`
}

type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR" envDefault:"redis:6379"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB" envDefault:"0"`
	TTL      time.Duration `env:"REDIS_TTL" envDefault:"10m"`
}

type ServerConfig struct {
	Port            string        `env:"SERVER_PORT" envDefault:"8080"`
	Mode            string        `env:"SERVER_MODE" envDefault:"debug"`
	Timeout         time.Duration `env:"SERVER_TIMEOUT" envDefault:"2m"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	ThrottleLimit   int           `env:"SERVER_THROTTLE_LIMIT" envDefault:"50"`
}

type GeminiConfig struct {
	APIKey  string `env:"GEMINI_API_KEY"`
	BaseURL string `env:"GEMINI_BASE_URL"`
	Model   string `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash-image"`
}

type OpenAIConfig struct {
	APIKey  string `env:"OPENAI_API_KEY"`
	BaseURL string `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	Model   string `env:"OPENAI_MODEL" envDefault:"gpt-image-1"`
}

type UploadConfig struct {
	MaxSize      int64    `env:"UPLOAD_MAX_SIZE" envDefault:"10485760"`
	AllowedTypes []string `env:"UPLOAD_ALLOWED_TYPES" envDefault:"image/png,image/jpeg,image/gif,image/webp,image/bmp,image/tiff"`
}

type SessionConfig struct {
	TTL           time.Duration `env:"SESSION_TTL" envDefault:"30m"`
	SweepSchedule string        `env:"SESSION_SWEEP_SCHEDULE" envDefault:"@every 1m"`
}

// Load reads .env when present and then parses the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderGemini:
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is not set")
		}
	case ProviderOpenAI:
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is not set")
		}
	case ProviderStub:
	default:
		return fmt.Errorf("unknown provider {%s}", c.Provider)
	}
	if c.Upload.MaxSize <= 0 {
		return fmt.Errorf("UPLOAD_MAX_SIZE must be positive")
	}
	if len(c.Upload.AllowedTypes) == 0 {
		return fmt.Errorf("UPLOAD_ALLOWED_TYPES is empty")
	}
	for _, t := range c.Upload.AllowedTypes {
		// previews are served from our origin, so no markup formats
		if !strings.HasPrefix(t, "image/") || strings.Contains(t, "svg") {
			return fmt.Errorf("UPLOAD_ALLOWED_TYPES: {%s} is not a raster image type", t)
		}
	}
	return nil
}
