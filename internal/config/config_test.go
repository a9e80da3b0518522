package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/thellimist/cozyclient/internal/apierr"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, `
url: https://alice.cozy.example.net
storage: sqlite
scopes: [io.cozy.files]
client_name: my app
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.URL != "https://alice.cozy.example.net" || cfg.Storage != StorageSQLite {
		t.Errorf("got %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.Scopes, []string{"io.cozy.files"}) {
		t.Errorf("Scopes = %v", cfg.Scopes)
	}
	if cfg.ClientName != "my app" {
		t.Errorf("ClientName = %q", cfg.ClientName)
	}
	if cfg.SoftwareID != "github.com/thellimist/cozyclient" {
		t.Errorf("SoftwareID default lost: %q", cfg.SoftwareID)
	}
	if cfg.StoragePath != filepath.Join(dir, "credentials.db") {
		t.Errorf("StoragePath = %q", cfg.StoragePath)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "url: https://alice.cozy.example.net\n")

	t.Setenv("COZY_URL", "https://bob.cozy.example.net")
	t.Setenv("COZY_SCOPES", "io.cozy.files io.cozy.photos")
	t.Setenv("COZY_TOKEN", "apptoken")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.URL != "https://bob.cozy.example.net" {
		t.Errorf("URL = %q, env should win", cfg.URL)
	}
	if !reflect.DeepEqual(cfg.Scopes, []string{"io.cozy.files", "io.cozy.photos"}) {
		t.Errorf("Scopes = %v", cfg.Scopes)
	}
	if cfg.Token != "apptoken" {
		t.Errorf("Token = %q", cfg.Token)
	}
	if cfg.Storage != StorageFile || cfg.StoragePath != filepath.Join(dir, "credentials.json") {
		t.Errorf("storage = %q at %q", cfg.Storage, cfg.StoragePath)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("COZY_URL", "http://localhost:8080")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.URL != "http://localhost:8080" {
		t.Errorf("URL = %q", cfg.URL)
	}
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name, content, field string
	}{
		{"no url", "storage: file\n", "url"},
		{"bad storage", "url: https://a.example.net\nstorage: s3\n", "storage"},
		{"bad redirect", "url: https://a.example.net\nredirect_uri: not a url\n", "redirect_uri"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			writeFile(t, path, tt.content)

			_, err := Load(path)
			var ve *apierr.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tt.field {
				t.Errorf("Field = %q, want %q", ve.Field, tt.field)
			}
		})
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "url: [unterminated\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error, got nil")
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("COZYCLIENT_CONFIG", "/etc/cozy.yaml")
	if got := DefaultPath(); got != "/etc/cozy.yaml" {
		t.Errorf("DefaultPath() = %q", got)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	writeFile(t, envFile, "COZY_CLIENT_NAME=from-dotenv\n")
	t.Setenv("COZY_URL", "https://a.example.net")
	// Register for cleanup; godotenv does not override set variables.
	t.Setenv("COZY_CLIENT_NAME", "")
	os.Unsetenv("COZY_CLIENT_NAME")

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), envFile); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg, err := Load(filepath.Join(dir, "config.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ClientName != "from-dotenv" {
		t.Errorf("ClientName = %q", cfg.ClientName)
	}
}
