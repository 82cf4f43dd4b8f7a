package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q", cfg.BindAddr)
	}
	if cfg.MetricsNamespace != "questmaster" {
		t.Fatalf("MetricsNamespace = %q", cfg.MetricsNamespace)
	}
	if cfg.NarratorMode != "auto" {
		t.Fatalf("NarratorMode = %q", cfg.NarratorMode)
	}
	if cfg.NarratorTimeout != 90*time.Second {
		t.Fatalf("NarratorTimeout = %v", cfg.NarratorTimeout)
	}
	if cfg.SQLitePath != "questmaster.db" {
		t.Fatalf("SQLitePath = %q", cfg.SQLitePath)
	}
	if cfg.AnswerMinLen != 0 || cfg.AnswerMaxLen != 0 {
		t.Fatalf("answer limits = %d/%d, want unset", cfg.AnswerMinLen, cfg.AnswerMaxLen)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_BIND_ADDR", ":9091")
	t.Setenv("NARRATOR_MODE", "mock")
	t.Setenv("NARRATOR_TIMEOUT", "30s")
	t.Setenv("NARRATOR_MAX_RETRIES", "5")
	t.Setenv("ANSWER_MIN_LEN", "2")
	t.Setenv("ANSWER_MAX_LEN", "200")
	t.Setenv("LOG_PRETTY", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":9091" || cfg.NarratorMode != "mock" {
		t.Fatalf("overrides ignored: %+v", cfg)
	}
	if cfg.NarratorTimeout != 30*time.Second || cfg.NarratorMaxRetries != 5 {
		t.Fatalf("narrator settings = %v/%d", cfg.NarratorTimeout, cfg.NarratorMaxRetries)
	}
	if cfg.AnswerMinLen != 2 || cfg.AnswerMaxLen != 200 || !cfg.LogPretty {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		key, value string
	}{
		{"NARRATOR_TIMEOUT", "oops"},
		{"NARRATOR_TIMEOUT", "100ms"},
		{"NARRATOR_MAX_RETRIES", "0"},
		{"NARRATOR_MODE", "telepathy"},
		{"ANSWER_MIN_LEN", "-1"},
		{"LOG_PRETTY", "maybe"},
	}
	for _, tc := range cases {
		t.Run(tc.key+"="+tc.value, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			if _, err := Load(); err == nil {
				t.Fatalf("Load() accepted %s=%s", tc.key, tc.value)
			}
		})
	}
}

func TestLoadRejectsMinAboveMax(t *testing.T) {
	t.Setenv("ANSWER_MIN_LEN", "50")
	t.Setenv("ANSWER_MAX_LEN", "10")
	if _, err := Load(); err == nil {
		t.Fatalf("Load() accepted min above max")
	}
}
