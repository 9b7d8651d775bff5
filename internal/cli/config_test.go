package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/planviz/planviz/pkg/errors"
	"github.com/planviz/planviz/pkg/narrate"
)

// writeConfig writes a config file into a temp XDG_CONFIG_HOME and points the
// environment at it for the duration of the test.
func writeConfig(t *testing.T, content string) {
	t.Helper()
	dir := t.TempDir()
	appDir := filepath.Join(dir, appName)
	if err := os.MkdirAll(appDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(appDir, "config.toml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("XDG_CONFIG_HOME", dir)
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.Cache.Backend != cacheBackendFile {
		t.Errorf("default backend = %q, want %q", cfg.Cache.Backend, cacheBackendFile)
	}
	if cfg.Narrate.Model != narrate.DefaultModel {
		t.Errorf("default model = %q, want %q", cfg.Narrate.Model, narrate.DefaultModel)
	}
	if len(cfg.Render.Formats) != 1 || cfg.Render.Formats[0] != "svg" {
		t.Errorf("default formats = %v, want [svg]", cfg.Render.Formats)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	writeConfig(t, `
[render]
formats = ["png", "dot"]
detailed = true

[narrate]
model = "mistral"

[cache]
backend = "redis"
redis_addr = "cache.internal:6379"
`)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.Cache.Backend != cacheBackendRedis {
		t.Errorf("backend = %q, want redis", cfg.Cache.Backend)
	}
	if cfg.Cache.RedisAddr != "cache.internal:6379" {
		t.Errorf("redis addr = %q", cfg.Cache.RedisAddr)
	}
	if !cfg.Render.Detailed {
		t.Error("detailed should be true")
	}
	if cfg.Narrate.Model != "mistral" {
		t.Errorf("model = %q, want mistral", cfg.Narrate.Model)
	}
	// Host keeps its default when not set
	if cfg.Narrate.Host != narrate.DefaultHost {
		t.Errorf("host = %q, want default", cfg.Narrate.Host)
	}
}

func TestLoadConfigUnknownBackend(t *testing.T) {
	writeConfig(t, `
[cache]
backend = "memcached"
`)

	cfg, err := LoadConfig()
	if !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Fatalf("error = %v, want CONFIG_INVALID", err)
	}

	// Falls back to defaults so the CLI stays usable
	if cfg.Cache.Backend != cacheBackendFile {
		t.Errorf("fallback backend = %q, want file", cfg.Cache.Backend)
	}
}

func TestLoadConfigInvalidFormat(t *testing.T) {
	writeConfig(t, `
[render]
formats = ["pdf"]
`)

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestLoadConfigMalformed(t *testing.T) {
	writeConfig(t, "[[render\n")

	if _, err := LoadConfig(); !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Fatalf("error = %v, want CONFIG_INVALID", err)
	}
}
