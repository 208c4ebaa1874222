package plainapi

import (
	"fmt"
	"os"
	"strconv"

	"github.com/plainapi/plainapi/helper"
	"github.com/plainapi/plainapi/model"
)

// Config holds the engine policy knobs. The retrieval constants are
// deliberately explicit configuration, not library defaults: the
// relevance floor and window sizes change answer quality and must be
// validated, not assumed.
type Config struct {
	// TopK is the number of passages requested per query.
	TopK int
	// MinScore is the cosine similarity relevance floor.
	MinScore float64
	// WindowTokens is the chunk window size in tokens.
	WindowTokens int
	// OverlapTokens is the overlap between consecutive chunks.
	OverlapTokens int
	// MaxConcurrentRequests bounds in-flight external calls, both for
	// serving queries and for ingestion embedding.
	MaxConcurrentRequests int
}

// DefaultConfig returns the configuration the documentation assistant
// ships with.
func DefaultConfig() Config {
	return Config{
		TopK:                  5,
		MinScore:              0.30,
		WindowTokens:          200,
		OverlapTokens:         40,
		MaxConcurrentRequests: 8,
	}
}

// NewConfigFromEnv reads the engine configuration from PLAINAPI_*
// environment variables, falling back to defaults for unset values.
func NewConfigFromEnv() (Config, error) {
	config := DefaultConfig()

	var err error
	if config.TopK, err = intEnv("PLAINAPI_TOP_K", config.TopK); err != nil {
		return Config{}, err
	}
	if config.MinScore, err = floatEnv("PLAINAPI_MIN_SCORE", config.MinScore); err != nil {
		return Config{}, err
	}
	if config.WindowTokens, err = intEnv("PLAINAPI_CHUNK_WINDOW", config.WindowTokens); err != nil {
		return Config{}, err
	}
	if config.OverlapTokens, err = intEnv("PLAINAPI_CHUNK_OVERLAP", config.OverlapTokens); err != nil {
		return Config{}, err
	}
	if config.MaxConcurrentRequests, err = intEnv("PLAINAPI_MAX_CONCURRENT", config.MaxConcurrentRequests); err != nil {
		return Config{}, err
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// Validate checks the configuration invariants.
func (c Config) Validate() error {
	if c.TopK < 1 {
		return helper.NewError("validate config", fmt.Errorf("%w: top-k must be >= 1, got %d", model.ErrInvalidInput, c.TopK))
	}
	if c.MinScore < -1 || c.MinScore > 1 {
		return helper.NewError("validate config", fmt.Errorf("%w: min score must be within [-1, 1], got %v", model.ErrInvalidInput, c.MinScore))
	}
	if c.WindowTokens <= 0 {
		return helper.NewError("validate config", fmt.Errorf("%w: chunk window must be positive, got %d", model.ErrInvalidInput, c.WindowTokens))
	}
	if c.OverlapTokens < 0 || c.OverlapTokens >= c.WindowTokens {
		return helper.NewError("validate config", fmt.Errorf("%w: chunk overlap must be within [0, window), got %d", model.ErrInvalidInput, c.OverlapTokens))
	}
	if c.MaxConcurrentRequests < 1 {
		return helper.NewError("validate config", fmt.Errorf("%w: max concurrent requests must be >= 1, got %d", model.ErrInvalidInput, c.MaxConcurrentRequests))
	}
	return nil
}

func intEnv(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, helper.NewError("parse "+key, fmt.Errorf("%w: %v", model.ErrInvalidInput, err))
	}
	return parsed, nil
}

func floatEnv(key string, fallback float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, helper.NewError("parse "+key, fmt.Errorf("%w: %v", model.ErrInvalidInput, err))
	}
	return parsed, nil
}
