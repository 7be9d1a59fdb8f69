package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrMissingRepoURL 表示仓库自动化所需的远端地址未配置
// ErrMissingRepoURL means the remote URL required for repository automation is not set
var ErrMissingRepoURL = errors.New("repository URL is not configured (set REPO_URL)")

// RepoConfig 仓库自动化相关配置
// RepoConfig holds repository automation settings
type RepoConfig struct {
	URL     string `yaml:"url"`
	Token   string `yaml:"token"`
	WorkDir string `yaml:"work_dir"`
}

// ProviderConfig LLM 提供方配置
// ProviderConfig holds LLM backend settings
type ProviderConfig struct {
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	TimeoutMS  int    `yaml:"timeout_ms"`
	MaxRetries int    `yaml:"max_retries"`
}

// LoopConfig 自动化会话循环配置
// LoopConfig holds automation loop settings
type LoopConfig struct {
	MaxIterations int `yaml:"max_iterations"`
}

// ServerConfig HTTP 服务配置
// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type Config struct {
	Repo     RepoConfig     `yaml:"repo"`
	Provider ProviderConfig `yaml:"provider"`
	Loop     LoopConfig     `yaml:"loop"`
	Server   ServerConfig   `yaml:"server"`
}

// Load 读取配置文件（可选）并用环境变量覆盖
// Load reads an optional YAML config file, then applies environment overrides.
// Precedence: defaults < file < environment.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)
	normalize(&cfg)
	return cfg, nil
}

func defaults() Config {
	return Config{
		Repo: RepoConfig{
			WorkDir: "/app",
		},
		Provider: ProviderConfig{
			BaseURL:    "https://api.groq.com/openai/v1",
			Model:      "deepseek-r1-distill-llama-70b",
			TimeoutMS:  120000,
			MaxRetries: 3,
		},
		Loop: LoopConfig{
			MaxIterations: 5,
		},
		Server: ServerConfig{
			Addr: ":8000",
		},
	}
}

func applyEnv(cfg *Config) {
	setString(&cfg.Repo.URL, "REPO_URL")
	setString(&cfg.Repo.Token, "GITHUB_TOKEN")
	setString(&cfg.Repo.WorkDir, "AGENT_WORKDIR")
	setString(&cfg.Provider.BaseURL, "LLM_BASE_URL")
	setString(&cfg.Provider.APIKey, "LLM_API_KEY")
	setString(&cfg.Provider.Model, "LLM_MODEL")
	setString(&cfg.Server.Addr, "AGENTD_ADDR")
	setInt(&cfg.Provider.TimeoutMS, "LLM_TIMEOUT_MS")
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return
	}
	*dst = n
}

func normalize(cfg *Config) {
	cfg.Provider.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Provider.BaseURL), "/")
	if cfg.Loop.MaxIterations <= 0 {
		cfg.Loop.MaxIterations = 5
	}
	if cfg.Provider.MaxRetries <= 0 {
		cfg.Provider.MaxRetries = 3
	}
}

// ValidateAutomation 校验仓库自动化入口所需的配置
// ValidateAutomation checks the settings required by the repository automation
// entry point. The remote URL is mandatory; the token is optional.
func (c Config) ValidateAutomation() error {
	if strings.TrimSpace(c.Repo.URL) == "" {
		return ErrMissingRepoURL
	}
	return nil
}
