// Package config loads the command line configuration from a YAML file,
// an optional .env file and COZY_* environment variables, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/thellimist/cozyclient/internal/apierr"
)

// Storage backends.
const (
	StorageFile   = "file"
	StorageSQLite = "sqlite"
)

// Config is the command line configuration.
type Config struct {
	// URL of the instance, e.g. https://alice.cozy.example.net.
	URL string `yaml:"url" env:"COZY_URL" validate:"required,url"`
	// Storage is "file" or "sqlite".
	Storage     string `yaml:"storage" env:"COZY_STORAGE" validate:"oneof=file sqlite"`
	StoragePath string `yaml:"storage_path" env:"COZY_STORAGE_PATH"`

	Scopes      []string `yaml:"scopes" env:"COZY_SCOPES" envSeparator:" "`
	ClientName  string   `yaml:"client_name" env:"COZY_CLIENT_NAME" validate:"required"`
	SoftwareID  string   `yaml:"software_id" env:"COZY_SOFTWARE_ID" validate:"required"`
	RedirectURI string   `yaml:"redirect_uri" env:"COZY_REDIRECT_URI" validate:"omitempty,url"`

	// Token is an application token used for intents instead of the
	// stored OAuth credentials.
	Token   string `yaml:"token" env:"COZY_TOKEN"`
	LogFile string `yaml:"log_file" env:"COZY_LOG_FILE"`
}

// DefaultPath returns $COZYCLIENT_CONFIG, or ~/.cozyclient/config.yaml.
func DefaultPath() string {
	if p := os.Getenv("COZYCLIENT_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".cozyclient", "config.yaml")
	}
	return filepath.Join(home, ".cozyclient", "config.yaml")
}

// LoadDotEnv loads the given .env files into the environment, skipping
// those that do not exist. Variables already set are kept.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func defaults() *Config {
	return &Config{
		Storage:    StorageFile,
		Scopes:     []string{"io.cozy.files", "io.cozy.contacts"},
		ClientName: "cozyclient",
		SoftwareID: "github.com/thellimist/cozyclient",
	}
}

// Load reads path (DefaultPath when empty), applies environment overrides
// and validates the result. A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := defaults()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.StoragePath == "" {
		name := "credentials.json"
		if cfg.Storage == StorageSQLite {
			name = "credentials.db"
		}
		cfg.StoragePath = filepath.Join(filepath.Dir(path), name)
	}

	if err := apierr.Check(cfg, invalid); err != nil {
		return nil, err
	}
	return cfg, nil
}

func invalid(field string) string {
	return fmt.Sprintf("config: %q is missing or invalid", field)
}
