// Package config reads runtime configuration from the process environment.
// Credentials are required and their absence is a fatal configuration error,
// never a retryable one.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// SearchCredentials configure the image search API.
type SearchCredentials struct {
	APIKey   string
	EngineID string
}

// TagOptions are the engine knobs shared between env and flags.
type TagOptions struct {
	Model          string
	Workers        int
	MaxRetries     int
	RequestTimeout time.Duration
	RateLimitRPS   float64
}

const defaultGeminiModel = "gemini-2.5-flash"

// LoadDotenv loads a .env file if one exists. Useful for local development;
// absence is not an error.
func LoadDotenv() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using process environment")
	}
}

// LoadSearchCredentials reads GOOGLE_API_KEY and GOOGLE_CX.
func LoadSearchCredentials() (SearchCredentials, error) {
	key := strings.TrimSpace(os.Getenv("GOOGLE_API_KEY"))
	cx := strings.TrimSpace(os.Getenv("GOOGLE_CX"))
	if key == "" || cx == "" {
		return SearchCredentials{}, fmt.Errorf("GOOGLE_API_KEY and GOOGLE_CX must be set")
	}
	return SearchCredentials{APIKey: key, EngineID: cx}, nil
}

// LoadGeminiAPIKey reads GEMINI_API_KEY, falling back to GOOGLE_API_KEY.
func LoadGeminiAPIKey() (string, error) {
	for _, name := range []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"} {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("GEMINI_API_KEY is required")
}

// LoadTagOptions reads engine defaults from the environment. Values feed
// flag defaults, so flags win when set explicitly.
func LoadTagOptions() (TagOptions, error) {
	workers, err := envInt("WORKERS", 12)
	if err != nil {
		return TagOptions{}, err
	}
	maxRetries, err := envInt("MAX_RETRIES", 3)
	if err != nil {
		return TagOptions{}, err
	}
	requestTimeout, err := envDuration("REQUEST_TIMEOUT", 60*time.Second)
	if err != nil {
		return TagOptions{}, err
	}
	rateLimitRPS, err := envFloat("RATE_LIMIT_RPS", 0)
	if err != nil {
		return TagOptions{}, err
	}

	model := strings.TrimSpace(os.Getenv("GEMINI_MODEL"))
	if model == "" {
		model = defaultGeminiModel
	}

	return TagOptions{
		Model:          model,
		Workers:        workers,
		MaxRetries:     maxRetries,
		RequestTimeout: requestTimeout,
		RateLimitRPS:   rateLimitRPS,
	}, nil
}

func envInt(varName string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}

func envFloat(varName string, fallback float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}

func envDuration(varName string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}
