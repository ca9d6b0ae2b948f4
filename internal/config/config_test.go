package config_test

import (
	"testing"

	"github.com/ImperatorDravidor/inflio-sub007/internal/config"
)

// fallbackEnv clears the variables Load reads and leaves both adapters in
// fallback mode so no remote URLs are required.
func fallbackEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "STORAGE_URL", "STORAGE_API_KEY", "TRANSCRIBE_URL",
		"LLM_GATEWAY_URL", "RETRY_MAX_ATTEMPTS", "DB_PATH", "CONTENT_DB_PATH",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("TRANSCRIPTION_MODE", "fallback")
	t.Setenv("ANALYSIS_MODE", "fallback")
}

func TestLoadDefaults(t *testing.T) {
	fallbackEnv(t)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("unexpected default port %q", cfg.Port)
	}
	if cfg.RetryMaxAttempts != 3 {
		t.Errorf("unexpected default retry attempts %d", cfg.RetryMaxAttempts)
	}
	if cfg.DBPath == cfg.ContentDBPath {
		t.Errorf("run and content stores must not share a database file, both %q", cfg.DBPath)
	}
}

func TestLoadRejectsSharedDatabaseFile(t *testing.T) {
	fallbackEnv(t)
	t.Setenv("DB_PATH", "shared.db")
	t.Setenv("CONTENT_DB_PATH", "shared.db")

	if _, err := config.Load(); err == nil {
		t.Fatal("expected error when both stores point at the same file")
	}
}

func TestLoadRequiresURLsInRealMode(t *testing.T) {
	fallbackEnv(t)
	t.Setenv("TRANSCRIPTION_MODE", "real")

	if _, err := config.Load(); err == nil {
		t.Fatal("expected error for real transcription mode without TRANSCRIBE_URL")
	}
}
