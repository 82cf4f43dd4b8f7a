package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the questmaster service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	LogPretty        bool

	TelegramToken string

	NarratorMode       string
	OpenAIAPIKey       string
	OpenAIBaseURL      string
	NarratorModel      string
	NarratorTimeout    time.Duration
	NarratorMaxRetries int

	DatabaseURL string
	SQLitePath  string
	RedisAddr   string

	AnswerMinLen int
	AnswerMaxLen int
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "questmaster"),
		TelegramToken:    stringsTrimSpace("TELEGRAM_TOKEN"),
		NarratorMode:     envOrDefault("NARRATOR_MODE", "auto"),
		OpenAIAPIKey:     stringsTrimSpace("OPENAI_API_KEY"),
		OpenAIBaseURL:    stringsTrimSpace("OPENAI_BASE_URL"),
		NarratorModel:    envOrDefault("NARRATOR_MODEL", "gpt-4o-mini"),
		DatabaseURL:      stringsTrimSpace("DATABASE_URL"),
		SQLitePath:       envOrDefault("SQLITE_PATH", "questmaster.db"),
		RedisAddr:        stringsTrimSpace("REDIS_ADDR"),

		ShutdownTimeout:    15 * time.Second,
		NarratorTimeout:    90 * time.Second,
		NarratorMaxRetries: 3,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.NarratorTimeout, err = durationFromEnv("NARRATOR_TIMEOUT", cfg.NarratorTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.NarratorMaxRetries, err = intFromEnv("NARRATOR_MAX_RETRIES", cfg.NarratorMaxRetries)
	if err != nil {
		return Config{}, err
	}
	cfg.AnswerMinLen, err = intFromEnv("ANSWER_MIN_LEN", 0)
	if err != nil {
		return Config{}, err
	}
	cfg.AnswerMaxLen, err = intFromEnv("ANSWER_MAX_LEN", 0)
	if err != nil {
		return Config{}, err
	}
	cfg.LogPretty, err = boolFromEnv("LOG_PRETTY", false)
	if err != nil {
		return Config{}, err
	}

	if cfg.NarratorTimeout < time.Second {
		return Config{}, fmt.Errorf("NARRATOR_TIMEOUT must be at least 1s")
	}
	if cfg.NarratorMaxRetries <= 0 {
		return Config{}, fmt.Errorf("NARRATOR_MAX_RETRIES must be positive")
	}
	if cfg.AnswerMinLen < 0 || cfg.AnswerMaxLen < 0 {
		return Config{}, fmt.Errorf("answer length limits must be >= 0")
	}
	if cfg.AnswerMaxLen > 0 && cfg.AnswerMinLen > cfg.AnswerMaxLen {
		return Config{}, fmt.Errorf("ANSWER_MIN_LEN must not exceed ANSWER_MAX_LEN")
	}
	switch strings.ToLower(cfg.NarratorMode) {
	case "auto", "openai", "mock":
	default:
		return Config{}, fmt.Errorf("NARRATOR_MODE must be auto, openai or mock")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
