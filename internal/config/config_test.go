package config

import "testing"

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "secret")

	if _, err := Load(); err == nil {
		t.Error("expected error when DATABASE_URL is unset")
	}
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/strato")
	t.Setenv("JWT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Error("expected error when JWT_SECRET is unset")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/strato")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want :8080", cfg.ListenAddr)
	}
	if cfg.DefaultStorageLimitMB != 500 {
		t.Errorf("DefaultStorageLimitMB = %v, want 500", cfg.DefaultStorageLimitMB)
	}
	if cfg.MaxUploadSize != 100*1024*1024 {
		t.Errorf("MaxUploadSize = %d, want 100MB", cfg.MaxUploadSize)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/strato")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DEFAULT_STORAGE_LIMIT_MB", "1024")
	t.Setenv("S3_BUCKET", "drive-test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DefaultStorageLimitMB != 1024 {
		t.Errorf("DefaultStorageLimitMB = %v, want 1024", cfg.DefaultStorageLimitMB)
	}
	if cfg.S3Bucket != "drive-test" {
		t.Errorf("S3Bucket = %q, want drive-test", cfg.S3Bucket)
	}
}
