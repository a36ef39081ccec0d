// internal/config/config.go
//
// This package handles configuration and the .airway directory structure.
// Every directory airway runs in gets a .airway/ folder with its config file
// and the journey log.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// AirwayDir is the name of the directory we create in each working directory
	AirwayDir = ".airway"

	defaultAPIKeyEnv   = "OPENAI_API_KEY"
	defaultChatModel   = "gpt-4o-mini"
	defaultChatTimeout = 60 * time.Second
	defaultServerAddr  = ":8080"
)

const defaultProjectConfigYAML = `# airway configuration
version: 1

navigation:
  # Reject moves that are not legal successors in the step graph.
  strict: true

catalog:
  # Optional step catalog override, relative to this directory's parent.
  # steps: steps.yaml

chat:
  model: gpt-4o-mini
  # base_url: https://api.openai.com/v1
  api_key_env: OPENAI_API_KEY
  timeout: 60s

server:
  addr: ":8080"
`

// NavigationConfig controls the navigation engine.
type NavigationConfig struct {
	Strict *bool `yaml:"strict,omitempty"`
}

// CatalogConfig points at an optional step catalog override.
type CatalogConfig struct {
	Steps string `yaml:"steps,omitempty"`
}

// ChatConfig configures the reference assistant.
type ChatConfig struct {
	Model     string `yaml:"model,omitempty"`
	BaseURL   string `yaml:"base_url,omitempty"`
	APIKeyEnv string `yaml:"api_key_env,omitempty"`
	Timeout   string `yaml:"timeout,omitempty"`

	timeout time.Duration
}

// ServerConfig configures the HTTP boundary.
type ServerConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// ProjectConfig models .airway/config.yaml.
type ProjectConfig struct {
	Version    int              `yaml:"version"`
	Navigation NavigationConfig `yaml:"navigation"`
	Catalog    CatalogConfig    `yaml:"catalog"`
	Chat       ChatConfig       `yaml:"chat"`
	Server     ServerConfig     `yaml:"server"`
}

// Config holds the runtime configuration for airway.
type Config struct {
	// ProjectDir is the directory airway was started from
	ProjectDir string

	// AirwayProjectDir is ProjectDir/.airway
	AirwayProjectDir string

	Project ProjectConfig
}

// InitAirwayDir creates the .airway directory structure in the given
// directory and writes the default config file when none exists.
//
// .airway/
// ├── config.yaml
// └── logs/
func InitAirwayDir(projectDir string) error {
	airwayDir := filepath.Join(projectDir, AirwayDir)
	if err := os.MkdirAll(filepath.Join(airwayDir, "logs"), 0o755); err != nil {
		return fmt.Errorf("config: ensure airway dir: %w", err)
	}
	return ensureProjectConfig(filepath.Join(airwayDir, "config.yaml"))
}

// NewConfig loads the configuration for projectDir, falling back to defaults
// for anything the config file leaves out.
func NewConfig(projectDir string) (*Config, error) {
	cfg := &Config{
		ProjectDir:       projectDir,
		AirwayProjectDir: filepath.Join(projectDir, AirwayDir),
		Project:          defaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.AirwayProjectDir, "logs")
}

// JourneyLogPath returns the logbook file.
func (c *Config) JourneyLogPath() string {
	return filepath.Join(c.LogsDir(), "journey.log")
}

// ProjectConfigPath returns the on-disk location for the config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.AirwayProjectDir, "config.yaml")
}

// Strict reports whether transitions are validated against the step graph.
func (c *Config) Strict() bool {
	return c.Project.Navigation.Strict == nil || *c.Project.Navigation.Strict
}

// StepsCatalogPath returns the resolved catalog override, or "" for the
// embedded catalog.
func (c *Config) StepsCatalogPath() string {
	return c.Project.Catalog.Steps
}

// ChatModel returns the completion model.
func (c *Config) ChatModel() string {
	return c.Project.Chat.Model
}

// ChatBaseURL returns the completion endpoint override, if any.
func (c *Config) ChatBaseURL() string {
	return c.Project.Chat.BaseURL
}

// ChatAPIKey reads the API key from the configured environment variable.
func (c *Config) ChatAPIKey() string {
	return strings.TrimSpace(os.Getenv(c.Project.Chat.APIKeyEnv))
}

// ChatTimeout bounds a single chat request.
func (c *Config) ChatTimeout() time.Duration {
	return c.Project.Chat.timeout
}

// ServerAddr returns the listen address of the HTTP boundary.
func (c *Config) ServerAddr() string {
	return c.Project.Server.Addr
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var parsed ProjectConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize(c.ProjectDir)
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Project = parsed
	return nil
}

func defaultProjectConfig() ProjectConfig {
	pc := ProjectConfig{Version: 1}
	pc.applyDefaults()
	pc.Chat.timeout = defaultChatTimeout
	return pc
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if strings.TrimSpace(pc.Chat.Model) == "" {
		pc.Chat.Model = defaultChatModel
	}
	if strings.TrimSpace(pc.Chat.APIKeyEnv) == "" {
		pc.Chat.APIKeyEnv = defaultAPIKeyEnv
	}
	if strings.TrimSpace(pc.Chat.Timeout) == "" {
		pc.Chat.Timeout = defaultChatTimeout.String()
	}
	if strings.TrimSpace(pc.Server.Addr) == "" {
		pc.Server.Addr = defaultServerAddr
	}
}

func (pc *ProjectConfig) normalize(base string) {
	pc.Catalog.Steps = resolvePath(base, pc.Catalog.Steps)
	pc.Chat.Model = strings.TrimSpace(pc.Chat.Model)
	pc.Chat.BaseURL = strings.TrimRight(strings.TrimSpace(pc.Chat.BaseURL), "/")
	pc.Chat.APIKeyEnv = strings.TrimSpace(pc.Chat.APIKeyEnv)
	pc.Chat.Timeout = strings.TrimSpace(pc.Chat.Timeout)
	pc.Server.Addr = strings.TrimSpace(pc.Server.Addr)
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	timeout, err := time.ParseDuration(pc.Chat.Timeout)
	if err != nil {
		return fmt.Errorf("chat.timeout: %w", err)
	}
	if timeout <= 0 {
		return fmt.Errorf("chat.timeout must be positive")
	}
	pc.Chat.timeout = timeout
	if pc.Chat.BaseURL != "" && !strings.HasPrefix(pc.Chat.BaseURL, "http://") && !strings.HasPrefix(pc.Chat.BaseURL, "https://") {
		return fmt.Errorf("chat.base_url must be an http(s) URL")
	}
	return nil
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0o644)
}
