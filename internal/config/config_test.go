package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fetchd/internal/config"
)

func TestDefaultsValidate(t *testing.T) {
	cfg, _, exists, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatal("expected missing config file")
	}
	if cfg.Downloads.Workers != 4 {
		t.Fatalf("expected default workers 4, got %d", cfg.Downloads.Workers)
	}
	if cfg.Retention.MaxAgeHours != 3 {
		t.Fatalf("expected default retention 3h, got %d", cfg.Retention.MaxAgeHours)
	}
	if !filepath.IsAbs(cfg.Paths.DownloadDir) {
		t.Fatalf("expected expanded download dir, got %q", cfg.Paths.DownloadDir)
	}
}

func TestLoadParsesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
download_dir = "` + filepath.Join(dir, "media") + `"
api_bind = "127.0.0.1:9090"

[downloads]
workers = 2
queue_capacity = 16
public_prefix = "files"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected config at %q to be used, got %q exists=%v", path, resolved, exists)
	}
	if cfg.Paths.APIBind != "127.0.0.1:9090" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Downloads.Workers != 2 {
		t.Fatalf("unexpected workers: %d", cfg.Downloads.Workers)
	}
	if cfg.Downloads.PublicPrefix != "/files" {
		t.Fatalf("expected normalized public prefix, got %q", cfg.Downloads.PublicPrefix)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[downloads]\nworkers = 2\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("FETCHD_WORKERS", "8")
	t.Setenv("FETCHD_API_BIND", "127.0.0.1:7000")

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Downloads.Workers != 8 {
		t.Fatalf("expected env override workers 8, got %d", cfg.Downloads.Workers)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7000" {
		t.Fatalf("expected env override bind, got %q", cfg.Paths.APIBind)
	}
}

func TestValidateRejectsBadBind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[paths]\napi_bind = \"no-port\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil || !strings.Contains(err.Error(), "api_bind") {
		t.Fatalf("expected api_bind validation error, got %v", err)
	}
}

func TestValidateRejectsSmallQueue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[downloads]\nworkers = 8\nqueue_capacity = 2\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil || !strings.Contains(err.Error(), "queue_capacity") {
		t.Fatalf("expected queue_capacity validation error, got %v", err)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[downloads]") {
		t.Fatal("expected sample to contain downloads section")
	}
}
