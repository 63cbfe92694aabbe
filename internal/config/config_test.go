package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Storage.Engine != "sqlite" {
		t.Errorf("engine = %q, want sqlite", cfg.Storage.Engine)
	}
	if cfg.LLM.Provider != "anthropic" {
		t.Errorf("provider = %q, want anthropic", cfg.LLM.Provider)
	}
	if cfg.LLM.EmbeddingModel != "text-embedding-3-small" {
		t.Errorf("embedding model = %q", cfg.LLM.EmbeddingModel)
	}
	if !cfg.Agent.AutoExecute {
		t.Error("auto_execute should default to true")
	}
	if cfg.ExpirySweepInterval() != time.Hour {
		t.Errorf("sweep interval = %v, want 1h", cfg.ExpirySweepInterval())
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("LIAISON_PORT", "9090")
	t.Setenv("LIAISON_STORAGE_ENGINE", "postgres")
	t.Setenv("LIAISON_STORAGE_DSN", "postgres://localhost/liaison")
	t.Setenv("LIAISON_AUTO_EXECUTE", "false")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Storage.Engine != "postgres" {
		t.Errorf("engine = %q, want postgres", cfg.Storage.Engine)
	}
	if cfg.Agent.AutoExecute {
		t.Error("auto_execute should be overridden to false")
	}
}

func TestLoadConfigPostgresRequiresDSN(t *testing.T) {
	t.Setenv("LIAISON_STORAGE_ENGINE", "postgres")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error when postgres engine has no DSN")
	}
}

func TestLoadConfigYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "liaison.yaml")
	data := []byte("server:\n  port: 8081\nllm:\n  provider: openai\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LIAISON_CONFIG", path)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Server.Port != 8081 {
		t.Errorf("port = %d, want 8081 from file", cfg.Server.Port)
	}
	if cfg.LLM.Provider != "openai" {
		t.Errorf("provider = %q, want openai from file", cfg.LLM.Provider)
	}
	// File values keep defaults for everything it doesn't mention.
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("host = %q, want default", cfg.Server.Host)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "liaison.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 8081\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LIAISON_CONFIG", path)
	t.Setenv("LIAISON_PORT", "9999")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("port = %d, env must win over file", cfg.Server.Port)
	}
}
