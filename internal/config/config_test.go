package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.DebounceWindow != 2500*time.Millisecond {
		t.Fatalf("expected default debounce window 2.5s, got %s", cfg.DebounceWindow)
	}
	if cfg.DebounceMaxWait != 15*time.Second {
		t.Fatalf("expected default debounce max wait 15s, got %s", cfg.DebounceMaxWait)
	}
	if cfg.LLMTimeout != 20*time.Second {
		t.Fatalf("expected default LLM timeout 20s, got %s", cfg.LLMTimeout)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DEBOUNCE_WINDOW", "1s")
	t.Setenv("REDIS_TLS", "true")
	t.Setenv("OPENAI_MODEL", "gpt-4o")

	cfg := Load()

	if cfg.DebounceWindow != time.Second {
		t.Fatalf("expected debounce window 1s, got %s", cfg.DebounceWindow)
	}
	if !cfg.RedisTLS {
		t.Fatalf("expected RedisTLS true")
	}
	if cfg.OpenAIModel != "gpt-4o" {
		t.Fatalf("expected model override, got %s", cfg.OpenAIModel)
	}
}

func TestDurationFallbackOnGarbage(t *testing.T) {
	t.Setenv("LLM_TIMEOUT", "not-a-duration")
	cfg := Load()
	if cfg.LLMTimeout != 20*time.Second {
		t.Fatalf("expected fallback 20s, got %s", cfg.LLMTimeout)
	}
}
