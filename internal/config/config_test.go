package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Loop.MaxIterations != 5 {
		t.Fatalf("max_iterations=%d", cfg.Loop.MaxIterations)
	}
	if cfg.Server.Addr != ":8000" {
		t.Fatalf("addr=%q", cfg.Server.Addr)
	}
}

func TestFileAndEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agentd.yaml")
	data := `
repo:
  url: https://github.com/acme/widgets.git
  work_dir: /tmp/agent
provider:
  model: file-model
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LLM_MODEL", "env-model")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Repo.URL != "https://github.com/acme/widgets.git" {
		t.Fatalf("repo.url=%q", cfg.Repo.URL)
	}
	if cfg.Repo.WorkDir != "/tmp/agent" {
		t.Fatalf("work_dir=%q", cfg.Repo.WorkDir)
	}
	if cfg.Provider.Model != "env-model" {
		t.Fatalf("model=%q", cfg.Provider.Model)
	}
}

func TestValidateAutomation(t *testing.T) {
	var cfg Config
	if err := cfg.ValidateAutomation(); !errors.Is(err, ErrMissingRepoURL) {
		t.Fatalf("err=%v", err)
	}
	cfg.Repo.URL = "https://github.com/acme/widgets.git"
	if err := cfg.ValidateAutomation(); err != nil {
		t.Fatalf("err=%v", err)
	}
}

func TestBaseURLNormalized(t *testing.T) {
	t.Setenv("LLM_BASE_URL", "https://api.example.com/v1/")
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider.BaseURL != "https://api.example.com/v1" {
		t.Fatalf("base_url=%q", cfg.Provider.BaseURL)
	}
}
