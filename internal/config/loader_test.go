package config_test

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/rahulhooda929/Simple-FAQ-SDR/internal/config"
)

func TestValidate_DuplicateToolNames(t *testing.T) {
	t.Parallel()
	yaml := `
agent:
  tools:
    - name: kb_search
      description: Search the knowledge base.
    - name: kb_search
      description: Search it again.
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for duplicate tool names, got nil")
	}
	if !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("error should mention duplicate, got: %v", err)
	}
}

func TestValidate_MissingToolName(t *testing.T) {
	t.Parallel()
	yaml := `
agent:
  tools:
    - description: A tool with no name.
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing tool name, got nil")
	}
	if !strings.Contains(err.Error(), "name is required") {
		t.Errorf("error should mention the missing name, got: %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: chatty
agent:
  tools:
    - name: ping
    - name: ping
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	// Both failures should be reported in the joined error.
	errStr := err.Error()
	if !strings.Contains(errStr, "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
	if !strings.Contains(errStr, "duplicate") {
		t.Errorf("error should mention duplicate, got: %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := config.Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestLoad_EnvCredentialFallback(t *testing.T) {
	t.Setenv(config.EnvAPIKey, "env-secret")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
live:
  provider: gemini-live
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Live.APIKey != "env-secret" {
		t.Errorf("live.api_key: got %q, want env fallback %q", cfg.Live.APIKey, "env-secret")
	}
}

func TestLoad_FileCredentialWinsOverEnv(t *testing.T) {
	t.Setenv(config.EnvAPIKey, "env-secret")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
live:
  api_key: file-secret
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Live.APIKey != "file-secret" {
		t.Errorf("live.api_key: got %q, want %q", cfg.Live.APIKey, "file-secret")
	}
}

func TestKnownLiveProviders(t *testing.T) {
	t.Parallel()
	// Sanity-check that the list is populated and covers the built-in provider.
	if len(config.KnownLiveProviders) == 0 {
		t.Fatal("KnownLiveProviders should not be empty")
	}
	if !slices.Contains(config.KnownLiveProviders, "gemini-live") {
		t.Error(`KnownLiveProviders should contain "gemini-live"`)
	}
}
