package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

var ErrNoCipherKey = errors.New("FIELD_CIPHER_KEY is not set")

// Config is read once at startup and threaded through construction; nothing
// reads the environment after Load returns.
type Config struct {
	FieldCipherKey string

	LLMProvider string
	LLMURL      string
	LLMAPIKey   string
	LLMModel    string

	DashboardBaseURL string

	UpdateKeywords bool

	SweeperInterval time.Duration
	SweeperStale    time.Duration
}

func Load() (*Config, error) {
	godotenv.Load()

	cfg := &Config{
		FieldCipherKey:   os.Getenv("FIELD_CIPHER_KEY"),
		LLMProvider:      getString("LLM_PROVIDER", "openai"),
		LLMURL:           os.Getenv("LLM_URL"),
		LLMAPIKey:        os.Getenv("LLM_API_KEY"),
		LLMModel:         os.Getenv("LLM_MODEL"),
		DashboardBaseURL: os.Getenv("DASHBOARD_BASE_URL"),
	}

	if cfg.FieldCipherKey == "" {
		return nil, ErrNoCipherKey
	}

	var err error
	if cfg.UpdateKeywords, err = getBool("CLASSIFIER_UPDATE_KEYWORDS", true); err != nil {
		return nil, err
	}
	if cfg.SweeperInterval, err = getSeconds("SWEEPER_INTERVAL_SEC", 300); err != nil {
		return nil, err
	}
	if cfg.SweeperStale, err = getSeconds("SWEEPER_STALE_SEC", 600); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LLMEnabled reports whether the LLM path is configured at all. Absent, the
// classifier runs keyword-only and the advisor always falls back.
func (c *Config) LLMEnabled() bool {
	return c.LLMAPIKey != "" || c.LLMURL != ""
}

func (c *Config) SyncEnabled() bool {
	return c.DashboardBaseURL != ""
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getSeconds(key string, fallback int) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return time.Duration(fallback) * time.Second, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s: expected positive seconds, got %q", key, v)
	}
	return time.Duration(n) * time.Second, nil
}
