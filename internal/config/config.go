package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Mode selects the adapter strategy at startup. Fallback mode swaps the real
// remote adapter for the deterministic placeholder one, chosen once here
// instead of branching on credentials at call time.
type Mode string

const (
	ModeReal     Mode = "real"
	ModeFallback Mode = "fallback"
)

type Config struct {
	Port string

	// Media storage (signed URL exchange)
	StorageURL       string
	StorageAPIKey    string
	SignedURLTTL     time.Duration

	// Speech-to-text service
	TranscribeURL          string
	TranscribeAPIKey       string
	TranscribePollInterval time.Duration
	TranscribeTimeout      time.Duration
	TranscriptionMode      Mode

	// Text-analysis service
	AnalysisURL     string
	AnalysisAPIKey  string
	AnalysisModel   string
	AnalysisTimeout time.Duration
	AnalysisMode    Mode

	// Retry policy shared by the adapters
	RetryMaxAttempts  int
	RetryInitialDelay time.Duration

	// Per-run ceiling across all stages
	RunTimeout time.Duration

	// Run records and persisted content live in separate files so checkpoint
	// updates never contend with result saves for the write lock.
	DBPath        string
	ContentDBPath string
	ReportDir     string
}

// Load reads the full configuration from the environment once at startup.
func Load() (*Config, error) {
	cfg := &Config{
		Port:                   envOr("PORT", "8080"),
		StorageURL:             os.Getenv("STORAGE_URL"),
		StorageAPIKey:          os.Getenv("STORAGE_API_KEY"),
		SignedURLTTL:           envDuration("SIGNED_URL_TTL", time.Hour),
		TranscribeURL:          os.Getenv("TRANSCRIBE_URL"),
		TranscribeAPIKey:       os.Getenv("TRANSCRIBE_API_KEY"),
		TranscribePollInterval: envDuration("TRANSCRIBE_POLL_INTERVAL", 1500*time.Millisecond),
		TranscribeTimeout:      envDuration("TRANSCRIBE_TIMEOUT", 5*time.Minute),
		TranscriptionMode:      Mode(envOr("TRANSCRIPTION_MODE", string(ModeReal))),
		AnalysisURL:            os.Getenv("LLM_GATEWAY_URL"),
		AnalysisAPIKey:         os.Getenv("LLM_API_KEY"),
		AnalysisModel:          envOr("LLM_MODEL", "gpt-4o-mini"),
		AnalysisTimeout:        envDuration("ANALYSIS_TIMEOUT", 45*time.Second),
		AnalysisMode:           Mode(envOr("ANALYSIS_MODE", string(ModeReal))),
		RetryMaxAttempts:       envInt("RETRY_MAX_ATTEMPTS", 3),
		RetryInitialDelay:      envDuration("RETRY_INITIAL_DELAY", 5*time.Second),
		RunTimeout:             envDuration("RUN_TIMEOUT", 10*time.Minute),
		DBPath:                 envOr("DB_PATH", "pipeline.db"),
		ContentDBPath:          envOr("CONTENT_DB_PATH", "content.db"),
		ReportDir:              envOr("REPORT_DIR", "reports"),
	}

	if cfg.TranscriptionMode == ModeReal && cfg.TranscribeURL == "" {
		return nil, fmt.Errorf("TRANSCRIBE_URL required in real transcription mode")
	}
	if cfg.AnalysisMode == ModeReal && cfg.AnalysisURL == "" {
		return nil, fmt.Errorf("LLM_GATEWAY_URL required in real analysis mode")
	}
	if cfg.TranscriptionMode == ModeReal && cfg.StorageURL == "" {
		return nil, fmt.Errorf("STORAGE_URL required in real transcription mode")
	}
	if cfg.RetryMaxAttempts < 1 {
		return nil, fmt.Errorf("RETRY_MAX_ATTEMPTS must be >= 1")
	}
	if cfg.ContentDBPath == cfg.DBPath {
		return nil, fmt.Errorf("CONTENT_DB_PATH must differ from DB_PATH")
	}
	return cfg, nil
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDuration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
