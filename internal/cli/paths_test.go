package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCacheDir(t *testing.T) {
	// Clear XDG_CACHE_HOME to test default behavior
	oldXdg := os.Getenv("XDG_CACHE_HOME")
	os.Unsetenv("XDG_CACHE_HOME")
	defer func() {
		if oldXdg != "" {
			os.Setenv("XDG_CACHE_HOME", oldXdg)
		}
	}()

	dir, err := cacheDir()
	if err != nil {
		t.Fatalf("cacheDir() error: %v", err)
	}

	home, _ := os.UserHomeDir()
	expected := filepath.Join(home, ".cache", appName)
	if dir != expected {
		t.Errorf("cacheDir() = %q, want %q", dir, expected)
	}
}

func TestCacheDirXDG(t *testing.T) {
	customCache := "/tmp/custom-cache"
	oldXdg := os.Getenv("XDG_CACHE_HOME")
	os.Setenv("XDG_CACHE_HOME", customCache)
	defer func() {
		if oldXdg != "" {
			os.Setenv("XDG_CACHE_HOME", oldXdg)
		} else {
			os.Unsetenv("XDG_CACHE_HOME")
		}
	}()

	dir, err := cacheDir()
	if err != nil {
		t.Fatalf("cacheDir() error: %v", err)
	}

	expected := filepath.Join(customCache, appName)
	if dir != expected {
		t.Errorf("cacheDir() with XDG_CACHE_HOME = %q, want %q", dir, expected)
	}
}

func TestConfigPathXDG(t *testing.T) {
	oldXdg := os.Getenv("XDG_CONFIG_HOME")
	os.Setenv("XDG_CONFIG_HOME", "/tmp/custom-config")
	defer func() {
		if oldXdg != "" {
			os.Setenv("XDG_CONFIG_HOME", oldXdg)
		} else {
			os.Unsetenv("XDG_CONFIG_HOME")
		}
	}()

	path, err := configPath()
	if err != nil {
		t.Fatalf("configPath() error: %v", err)
	}

	expected := filepath.Join("/tmp/custom-config", appName, "config.toml")
	if path != expected {
		t.Errorf("configPath() = %q, want %q", path, expected)
	}
}

func TestBasePath(t *testing.T) {
	tests := []struct {
		name   string
		output string
		input  string
		want   string
	}{
		{"empty output strips input ext", "", "plan.json", "plan"},
		{"output with format ext stripped", "diagram.svg", "plan.json", "diagram"},
		{"output without format ext kept", "out/diagram", "plan.json", "out/diagram"},
		{"unknown ext kept", "diagram.bak", "plan.json", "diagram.bak"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := basePath(tt.output, tt.input); got != tt.want {
				t.Errorf("basePath(%q, %q) = %q, want %q", tt.output, tt.input, got, tt.want)
			}
		})
	}
}

func TestWriteArtifactsMultiple(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "plan")

	err := writeArtifacts(artifactWriteParams{
		artifacts: map[string][]byte{
			"svg": []byte("<svg/>"),
			"dot": []byte("digraph G {}"),
		},
		formats: []string{"svg", "dot"},
		input:   filepath.Join(dir, "plan.json"),
		output:  base,
	})
	if err != nil {
		t.Fatalf("writeArtifacts() error: %v", err)
	}

	for _, ext := range []string{"svg", "dot"} {
		data, err := os.ReadFile(base + "." + ext)
		if err != nil {
			t.Fatalf("read %s artifact: %v", ext, err)
		}
		if len(data) == 0 {
			t.Errorf("%s artifact is empty", ext)
		}
	}
}

func TestWriteArtifactsSingleDerivesPath(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "plan.json")

	err := writeArtifacts(artifactWriteParams{
		artifacts: map[string][]byte{"svg": []byte("<svg/>")},
		formats:   []string{"svg"},
		input:     input,
	})
	if err != nil {
		t.Fatalf("writeArtifacts() error: %v", err)
	}

	want := filepath.Join(dir, "plan.svg")
	if _, err := os.Stat(want); err != nil {
		t.Errorf("expected artifact at %s: %v", want, err)
	}

	if !strings.HasSuffix(want, ".svg") {
		t.Errorf("artifact path %q should end with .svg", want)
	}
}
