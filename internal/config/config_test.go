package config

import (
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"DB_DSN", "HTTP_ADDR", "LOG_LEVEL", "UPLOAD_DIR", "REDIS_DSN", "CORS_ORIGINS", "S3_BUCKET"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTPAddr != ":8080" {
		t.Errorf("expected default HTTP_ADDR :8080, got %s", cfg.HTTPAddr)
	}
	if cfg.UploadDir != "uploads" {
		t.Errorf("expected default UPLOAD_DIR uploads, got %s", cfg.UploadDir)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "http://localhost:3000" {
		t.Errorf("unexpected default CORS origins: %v", cfg.CORSOrigins)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":5000")
	t.Setenv("UPLOAD_DIR", "/srv/uploads")
	t.Setenv("CORS_ORIGINS", "https://a.example , https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTPAddr != ":5000" {
		t.Errorf("expected :5000, got %s", cfg.HTTPAddr)
	}
	if cfg.UploadDir != "/srv/uploads" {
		t.Errorf("expected /srv/uploads, got %s", cfg.UploadDir)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Errorf("expected trimmed origin list, got %v", cfg.CORSOrigins)
	}
}
