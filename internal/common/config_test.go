package common

import (
	"errors"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("OCR_PSM", "")
	t.Setenv("LLM_MAX_INPUT_CHARS", "")
	t.Setenv("OPENAI_MODEL", "")

	cfg := LoadConfig()
	if cfg.OCR.PSM != 6 || cfg.OCR.OEM != 3 || cfg.OCR.Lang != "eng" {
		t.Errorf("unexpected OCR defaults: %+v", cfg.OCR)
	}
	if cfg.LLM.MaxInputChars != 1500 {
		t.Errorf("expected 1500 max input chars, got %d", cfg.LLM.MaxInputChars)
	}
	if cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("expected gpt-4o-mini, got %q", cfg.LLM.Model)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("OCR_PSM", "4")
	t.Setenv("LLM_TIMEOUT", "10s")
	t.Setenv("LLM_PROVIDER", "OLLAMA")
	t.Setenv("GOPS", "true")

	cfg := LoadConfig()
	if cfg.OCR.PSM != 4 {
		t.Errorf("expected psm 4, got %d", cfg.OCR.PSM)
	}
	if cfg.LLM.Timeout != 10*time.Second {
		t.Errorf("expected 10s timeout, got %v", cfg.LLM.Timeout)
	}
	if cfg.LLM.Provider != "ollama" {
		t.Errorf("expected provider lowercased, got %q", cfg.LLM.Provider)
	}
	if !cfg.Server.EnableGops {
		t.Errorf("expected gops enabled")
	}
}

func TestValidate_RequiresAPIKeyForOpenAI(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("LLM_PROVIDER", "openai")
	cfg := LoadConfig()
	cfg.LLM.APIKey = ""

	err := cfg.Validate()
	if !errors.Is(err, ErrLLMUnavailable) {
		t.Fatalf("expected ErrLLMUnavailable, got %v", err)
	}

	cfg.LLM.Provider = "ollama"
	if err := cfg.Validate(); err != nil {
		t.Errorf("ollama needs no key, got %v", err)
	}
}

func TestResolveDSN_NoSecret(t *testing.T) {
	cfg := &Config{Database: DatabaseConfig{DSN: "file:x.db"}}
	got, err := cfg.ResolveDSN(t.Context())
	if err != nil || got != "file:x.db" {
		t.Errorf("expected DSN unchanged, got %q, %v", got, err)
	}
}
