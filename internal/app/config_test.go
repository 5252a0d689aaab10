package app

import (
	"testing"
	"time"

	"cbtsheet/internal/sheet"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{"SCRIPT_URL", "RESULT_REFRESH_SECONDS", "CORS_ALLOWED_ORIGINS", "DB_DSN", "UPLOAD_MAX_MB", "FEATURE_RESULT_DELETE"} {
		t.Setenv(k, "")
	}

	cfg := LoadConfig()
	if cfg.ScriptURL != sheet.DefaultScriptURL {
		t.Fatalf("unexpected script url: %s", cfg.ScriptURL)
	}
	if cfg.ResultRefresh != 10*time.Second {
		t.Fatalf("unexpected refresh interval: %s", cfg.ResultRefresh)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "*" {
		t.Fatalf("unexpected cors origins: %v", cfg.CORSAllowedOrigins)
	}
	if cfg.DBDSN != "" {
		t.Fatalf("db dsn should be empty by default")
	}
	if cfg.UploadMaxBytes != 10<<20 {
		t.Fatalf("unexpected upload limit: %d", cfg.UploadMaxBytes)
	}
	if !cfg.ResultDeleteEnabled {
		t.Fatalf("result delete should default to enabled")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("RESULT_REFRESH_SECONDS", "30")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("FEATURE_RESULT_STATUS", "off")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "-5")

	cfg := LoadConfig()
	if cfg.ResultRefresh != 30*time.Second {
		t.Fatalf("unexpected refresh interval: %s", cfg.ResultRefresh)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected cors origins: %v", cfg.CORSAllowedOrigins)
	}
	if cfg.ResultStatusEnabled {
		t.Fatalf("result status should be disabled")
	}
	if cfg.RateLimitPerMin != 120 {
		t.Fatalf("negative limit should fall back, got %d", cfg.RateLimitPerMin)
	}
}
