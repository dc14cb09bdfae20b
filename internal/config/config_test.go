package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Model != "sonnet" {
		t.Errorf("default model: %q", cfg.Model)
	}
	if cfg.MaxTokens != 8192 {
		t.Errorf("default max tokens: %d", cfg.MaxTokens)
	}
	if cfg.MaxFileSizeMB != 32 {
		t.Errorf("default max file size: %d", cfg.MaxFileSizeMB)
	}
	if cfg.MaxSearchesPerTurn != 5 {
		t.Errorf("default max searches: %d", cfg.MaxSearchesPerTurn)
	}
	if cfg.MaxSavedConversations != 10 {
		t.Errorf("default saved conversations: %d", cfg.MaxSavedConversations)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "model: opus\nmax_tokens: 4096\napi_key: from-file\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("ANTHROPIC_API_KEY", "from-env")
	t.Setenv("CACHET_MODEL", "")
	t.Setenv("CACHET_DATA_DIR", t.TempDir())

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Model != "opus" {
		t.Errorf("model from file: %q", cfg.Model)
	}
	if cfg.MaxTokens != 4096 {
		t.Errorf("max tokens from file: %d", cfg.MaxTokens)
	}
	// Environment beats the file.
	if cfg.APIKey != "from-env" {
		t.Errorf("api key: %q", cfg.APIKey)
	}

	t.Setenv("CACHET_MODEL", "claude-opus-4-20250514")
	cfg, err = Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Model != "claude-opus-4-20250514" {
		t.Errorf("model env override: %q", cfg.Model)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "k")
	t.Setenv("CACHET_DATA_DIR", t.TempDir())

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Model != "sonnet" || cfg.MaxTokens != 8192 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestResolveModel(t *testing.T) {
	tests := []struct{ in, want string }{
		{"sonnet", "claude-sonnet-4-20250514"},
		{"Sonnet", "claude-sonnet-4-20250514"},
		{"opus", "claude-opus-4-20250514"},
		{"claude-sonnet-4-20250514", "claude-sonnet-4-20250514"},
		{"some-future-model", "some-future-model"},
	}
	for _, tt := range tests {
		if got := ResolveModel(tt.in); got != tt.want {
			t.Errorf("ResolveModel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDisplayName(t *testing.T) {
	if got := DisplayName("claude-opus-4-20250514"); got != "opus" {
		t.Errorf("DisplayName = %q", got)
	}
	if got := DisplayName("custom-model"); got != "custom-model" {
		t.Errorf("DisplayName passthrough = %q", got)
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Error("expected error without api key")
	}
	cfg.APIKey = "k"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
