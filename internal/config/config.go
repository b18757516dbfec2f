// Package config loads zplay's settings from defaults, an optional YAML
// file and ZPLAY_ environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	koanf "github.com/knadh/koanf/v2"
)

const (
	fileName  = "config.yaml"
	envFile   = ".env"
	envPrefix = "ZPLAY_"
)

// Backend locates the playlist backend.
type Backend struct {
	URL string `koanf:"url" validate:"required,url"`
}

// Log controls the diagnostics log file.
type Log struct {
	File  string `koanf:"file"  validate:"required"`
	Level string `koanf:"level" validate:"oneof=debug info warn error"`
}

// Mock configures `zplay mock`.
type Mock struct {
	ListenAddr string `koanf:"listen_addr" validate:"required,hostname_port"`
}

// Config is the merged configuration.
type Config struct {
	Backend Backend `koanf:"backend"`
	Log     Log     `koanf:"log"`
	Mock    Mock    `koanf:"mock"`
}

var validate = validator.New()

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Backend: Backend{URL: "http://localhost:5000"},
		Log: Log{
			File:  filepath.Join(DataDir(), "zplay.log"),
			Level: "info",
		},
		Mock: Mock{ListenAddr: "localhost:5000"},
	}
}

// Dir returns the default configuration directory for zplay.
func Dir() string {
	if d := os.Getenv("XDG_CONFIG_HOME"); d != "" {
		return d + "/zplay"
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".zplay"
	}
	return home + "/.config/zplay"
}

// DataDir returns the default data directory for zplay.
func DataDir() string {
	if d := os.Getenv("XDG_DATA_HOME"); d != "" {
		return d + "/zplay"
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".zplay"
	}
	return home + "/.local/share/zplay"
}

// Load reads dir/.env into the environment, then merges dir/config.yaml and
// ZPLAY_ variables over the defaults. ZPLAY_BACKEND__URL maps to backend.url.
// Missing files are not an error.
func Load(dir string) (*Config, error) {
	// variables already set in the environment win over .env
	if err := godotenv.Load(filepath.Join(dir, envFile)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load config: %s: %w", envFile, err)
	}

	k := koanf.New(".")

	path := filepath.Join(dir, fileName)
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config: %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(s, envPrefix), "__", "."))
	}), nil); err != nil {
		return nil, fmt.Errorf("load config: env: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: unmarshal: %w", err)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return &cfg, nil
}
