package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/robfig/cron/v3"
)

const (
	DecodeBackendRemote = "remote"
	DecodeBackendLocal  = "local"

	ClassifierBackendSidecar = "sidecar"
	ClassifierBackendOpenAI  = "openai"

	ChunkerBackendHeuristic = "heuristic"
	ChunkerBackendSidecar   = "sidecar"
)

type Config struct {
	ModelSidecarURL   string        `env:"MODEL_SIDECAR_URL,required,notEmpty"`
	SidecarTimeout    time.Duration `env:"SIDECAR_TIMEOUT"                     envDefault:"2m"`
	DecodeBackend     string        `env:"DECODE_BACKEND"                      envDefault:"remote"`
	ClassifierBackend string        `env:"CLASSIFIER_BACKEND"                  envDefault:"sidecar"`
	ChunkerBackend    string        `env:"CHUNKER_BACKEND"                     envDefault:"heuristic"`
	OpenAIAPIKey      string        `env:"OPENAI_API_KEY"`
	OpenAIModel       string        `env:"OPENAI_MODEL"`
	CatalogPath       string        `env:"CATALOG_PATH"`
	HTTPAddr          string        `env:"HTTP_ADDR"                           envDefault:":8080"`
	RequestTimeout    time.Duration `env:"REQUEST_TIMEOUT"                     envDefault:"2m"`
	APIRateLimit      int           `env:"API_RATE_LIMIT"                      envDefault:"30"`
	TelegramToken     string        `env:"TELEGRAM_TOKEN"`
	AllowedUsers      []int64       `env:"ALLOWED_USERS"`
	HealthCheckSpec   string        `env:"HEALTH_CHECK_SPEC"                   envDefault:"@every 1m"`
	SampleSeed        uint64        `env:"SAMPLE_SEED"`
	CacheSize         int           `env:"CACHE_SIZE"                          envDefault:"512"`
	CacheTTL          time.Duration `env:"CACHE_TTL"                           envDefault:"30m"`
	LogLevel          slog.Level    `env:"LOG_LEVEL"                           envDefault:"INFO"`
}

func LoadConfig() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	if err = cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error

	if u, err := url.Parse(c.ModelSidecarURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("MODEL_SIDECAR_URL is not an absolute URL: %q", c.ModelSidecarURL))
	}

	if c.SidecarTimeout <= 0 {
		errs = append(errs, errors.New("SIDECAR_TIMEOUT must be positive"))
	}

	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("REQUEST_TIMEOUT must be positive"))
	}

	switch c.DecodeBackend {
	case DecodeBackendRemote, DecodeBackendLocal:
	default:
		errs = append(errs, fmt.Errorf("DECODE_BACKEND is unknown: %q", c.DecodeBackend))
	}

	switch c.ClassifierBackend {
	case ClassifierBackendSidecar:
	case ClassifierBackendOpenAI:
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required by the openai classifier"))
		}
	default:
		errs = append(errs, fmt.Errorf("CLASSIFIER_BACKEND is unknown: %q", c.ClassifierBackend))
	}

	switch c.ChunkerBackend {
	case ChunkerBackendHeuristic, ChunkerBackendSidecar:
	default:
		errs = append(errs, fmt.Errorf("CHUNKER_BACKEND is unknown: %q", c.ChunkerBackend))
	}

	if _, err := cron.ParseStandard(c.HealthCheckSpec); err != nil {
		errs = append(errs, fmt.Errorf("HEALTH_CHECK_SPEC is invalid: %w", err))
	}

	if c.APIRateLimit < 0 {
		errs = append(errs, errors.New("API_RATE_LIMIT must not be negative"))
	}

	if c.CacheSize < 0 {
		errs = append(errs, errors.New("CACHE_SIZE must not be negative"))
	}

	if c.CacheSize > 0 && c.CacheTTL <= 0 {
		errs = append(errs, errors.New("CACHE_TTL must be positive when caching is on"))
	}

	return errors.Join(errs...)
}
