package config

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"MODE", "HTTP_ADDR", "DB_DRIVER", "MAX_UPLOAD_BYTES", "ENABLE_AUTH", "LEGACY_QUESTION_FALLBACK", "REQUEST_TIMEOUT"} {
		t.Setenv(k, "")
	}
	cfg := FromEnv()
	if cfg.Mode != ModeOffline {
		t.Fatalf("mode = %q", cfg.Mode)
	}
	if cfg.DBDriver != "sqlite" {
		t.Fatalf("driver = %q", cfg.DBDriver)
	}
	if cfg.MaxUploadBytes != 50<<20 {
		t.Fatalf("max upload = %d", cfg.MaxUploadBytes)
	}
	if cfg.EnableAuth {
		t.Fatal("auth should default off in offline mode")
	}
	if !cfg.LegacyQuestionFallback {
		t.Fatal("legacy fallback should default on")
	}
	if cfg.RequestTimeout != 2*time.Minute {
		t.Fatalf("timeout = %v", cfg.RequestTimeout)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("MODE", "online")
	t.Setenv("MAX_UPLOAD_BYTES", "1024")
	t.Setenv("LEGACY_QUESTION_FALLBACK", "no")
	t.Setenv("CORS_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("REQUEST_TIMEOUT", "5s")
	t.Setenv("ENABLE_AUTH", "")

	cfg := FromEnv()
	if !cfg.EnableAuth {
		t.Fatal("auth should default on in online mode")
	}
	if cfg.LogMode != "prod" {
		t.Fatalf("log mode = %q", cfg.LogMode)
	}
	if cfg.MaxUploadBytes != 1024 {
		t.Fatalf("max upload = %d", cfg.MaxUploadBytes)
	}
	if cfg.LegacyQuestionFallback {
		t.Fatal("legacy fallback should be off")
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("cors = %v", cfg.CORSOrigins)
	}
	if cfg.RequestTimeout != 5*time.Second {
		t.Fatalf("timeout = %v", cfg.RequestTimeout)
	}
}
