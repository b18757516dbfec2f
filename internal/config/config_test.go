package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/tmp/xdg-data")

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Backend.URL != "http://localhost:5000" {
		t.Errorf("backend url = %q", cfg.Backend.URL)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
	if cfg.Log.File != "/tmp/xdg-data/zplay/zplay.log" {
		t.Errorf("log file = %q", cfg.Log.File)
	}
	if cfg.Mock.ListenAddr != "localhost:5000" {
		t.Errorf("mock addr = %q", cfg.Mock.ListenAddr)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", `
backend:
  url: https://playlists.example.com
log:
  level: debug
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Backend.URL != "https://playlists.example.com" {
		t.Errorf("backend url = %q", cfg.Backend.URL)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
	// untouched keys keep their defaults
	if cfg.Mock.ListenAddr != "localhost:5000" {
		t.Errorf("mock addr = %q", cfg.Mock.ListenAddr)
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", "backend:\n  url: https://from-yaml.example\n")
	t.Setenv("ZPLAY_BACKEND__URL", "https://from-env.example")
	t.Setenv("ZPLAY_MOCK__LISTEN_ADDR", "127.0.0.1:9999")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Backend.URL != "https://from-env.example" {
		t.Errorf("backend url = %q", cfg.Backend.URL)
	}
	if cfg.Mock.ListenAddr != "127.0.0.1:9999" {
		t.Errorf("mock addr = %q", cfg.Mock.ListenAddr)
	}
}

func TestDotEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".env", "ZPLAY_LOG__LEVEL=warn\n")
	// godotenv sets process env; make sure it is restored after the test
	t.Setenv("ZPLAY_LOG__LEVEL", "")
	os.Unsetenv("ZPLAY_LOG__LEVEL")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Log.Level != "warn" {
		t.Errorf("log level = %q, want warn", cfg.Log.Level)
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad url", "backend:\n  url: not a url\n", "URL"},
		{"empty url", "backend:\n  url: \"\"\n", "URL"},
		{"bad level", "log:\n  level: loud\n", "Level"},
		{"bad addr", "mock:\n  listen_addr: nope\n", "ListenAddr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, "config.yaml", tt.yaml)

			_, err := Load(dir)
			if err == nil {
				t.Fatal("want validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}
}

func TestDirs(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/x/config")
	t.Setenv("XDG_DATA_HOME", "/x/data")

	if got := Dir(); got != "/x/config/zplay" {
		t.Errorf("Dir() = %q", got)
	}
	if got := DataDir(); got != "/x/data/zplay" {
		t.Errorf("DataDir() = %q", got)
	}
}
