package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all server configuration loaded from environment variables.
type Config struct {
	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	MongoURI      string `env:"MONGODB_URI,required"`
	MongoDatabase string `env:"MONGODB_DATABASE" envDefault:"cleanscore"`

	RedisAddr string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisDB   int           `env:"REDIS_DB" envDefault:"0"`
	CacheTTL  time.Duration `env:"CACHE_TTL" envDefault:"24h"`

	JWTSecret      string   `env:"JWT_SECRET,required"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://localhost:5173"`

	OpenAIAPIKey       string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL      string        `env:"OPENAI_BASE_URL"`
	VisionModel        string        `env:"VISION_MODEL" envDefault:"gpt-4o"`
	AnalyzerTimeout    time.Duration `env:"ANALYZER_TIMEOUT" envDefault:"30s"`
	AnalyzerMaxRetries int           `env:"ANALYZER_MAX_RETRIES" envDefault:"0"`

	MaxImageBytes int64 `env:"MAX_IMAGE_BYTES" envDefault:"10485760"`
}

// Load reads the .env file if present and parses the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using process environment")
	}
	return Parse(env.Options{})
}

// Parse parses configuration using opts, which lets tests supply an
// explicit environment map.
func Parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("invalid PORT %d", cfg.Port)
	}
	if cfg.MaxImageBytes <= 0 {
		return Config{}, fmt.Errorf("MAX_IMAGE_BYTES must be positive")
	}
	if cfg.AnalyzerMaxRetries < 0 {
		return Config{}, fmt.Errorf("ANALYZER_MAX_RETRIES must not be negative")
	}
	return cfg, nil
}
