package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/neboloop/nebo-advisor/internal/defaults"
	"github.com/neboloop/nebo-advisor/internal/keyring"
	"github.com/neboloop/nebo-advisor/internal/logging"

	"gopkg.in/yaml.v3"
)

// Config holds the advisor configuration
type Config struct {
	// Provider selects the active entry in Providers (empty = first usable)
	Provider  string           `yaml:"provider"`
	Providers []ProviderConfig `yaml:"providers"`

	DataDir string `yaml:"data_dir"` // Platform data directory
	Root    string `yaml:"root"`     // Repository root persona paths resolve against

	Personas PersonasConfig `yaml:"personas"`
	RepoMap  RepoMapConfig  `yaml:"repomap"`
	Session  SessionConfig  `yaml:"session"`
}

// ProviderConfig holds configuration for a single provider
type ProviderConfig struct {
	Name      string `yaml:"name"`                 // Identifier for this provider
	Type      string `yaml:"type"`                 // "api" or "ollama"
	APIKey    string `yaml:"api_key,omitempty"`    // For API providers
	Model     string `yaml:"model,omitempty"`      // Main model
	WeakModel string `yaml:"weak_model,omitempty"` // Cheaper model for classification
	BaseURL   string `yaml:"base_url,omitempty"`   // For Ollama (default: http://localhost:11434)
}

// PersonasConfig controls where persona files live and how they may be created
type PersonasConfig struct {
	Dir        string `yaml:"dir"`         // Catalog directory, relative to Root
	Sandbox    bool   `yaml:"sandbox"`     // Reject suggested paths outside Root
	AutoCreate bool   `yaml:"auto_create"` // Answer creation prompts with yes when headless
}

// RepoMapConfig bounds the repository summary sent with each session
type RepoMapConfig struct {
	MaxFiles int      `yaml:"max_files"`
	Ignore   []string `yaml:"ignore"`
}

// SessionConfig selects where advice exchanges are recorded
type SessionConfig struct {
	Key          string `yaml:"key"`
	DBPath       string `yaml:"db_path"`
	HistoryLimit int    `yaml:"history_limit"`
}

// envKeys maps provider names to the environment variable holding their key
var envKeys = map[string]string{
	"anthropic": "ANTHROPIC_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"gemini":    "GEMINI_API_KEY",
}

// ErrNoProvider is returned when no configured provider is usable
var ErrNoProvider = errors.New("no usable provider configured")

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		DataDir: DefaultDataDir(),
		Personas: PersonasConfig{
			Dir:     "personas",
			Sandbox: true,
		},
		RepoMap: RepoMapConfig{
			MaxFiles: 200,
			Ignore:   []string{"node_modules/**", "vendor/**", ".git/**"},
		},
		Session: SessionConfig{
			Key:          "default",
			HistoryLimit: 20,
		},
	}
}

// DefaultDataDir returns the platform-appropriate data directory.
func DefaultDataDir() string {
	dir, err := defaults.DataDir()
	if err != nil {
		return ".nebo-advisor"
	}
	return dir
}

// Load loads config from the data directory's config.yaml
func Load() (*Config, error) {
	cfg := DefaultConfig()
	path := filepath.Join(cfg.DataDir, "config.yaml")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg.finish()
		return cfg, nil
	}
	return LoadFrom(path)
}

// LoadFrom loads config from a specific path
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.finish()
	return cfg, nil
}

// finish expands paths and secrets after decoding
func (c *Config) finish() {
	c.DataDir = expandHome(c.DataDir)
	c.Root = expandHome(os.ExpandEnv(c.Root))
	c.Session.DBPath = expandHome(os.ExpandEnv(c.Session.DBPath))

	for i := range c.Providers {
		p := &c.Providers[i]
		p.APIKey = os.ExpandEnv(p.APIKey)
		p.BaseURL = os.ExpandEnv(p.BaseURL)
		if p.Type == "" {
			p.Type = "api"
		}
		if p.Type == "api" && p.APIKey == "" {
			p.APIKey = lookupAPIKey(p.Name)
		}
	}
}

// lookupAPIKey falls back to the conventional env var, then the OS keychain
func lookupAPIKey(name string) string {
	if env, ok := envKeys[name]; ok {
		if v := os.Getenv(env); v != "" {
			return v
		}
	}
	key, err := keyring.GetAPIKey(name)
	if err != nil {
		if !errors.Is(err, keyring.ErrNotFound) {
			logging.Debugf("[config] keychain lookup for %s failed: %v", name, err)
		}
		return ""
	}
	return key
}

func expandHome(p string) string {
	if strings.HasPrefix(p, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, p[2:])
	}
	return p
}

// DBPath returns the path to the SQLite conversation database
func (c *Config) DBPath() string {
	if c.Session.DBPath != "" {
		return c.Session.DBPath
	}
	return defaults.DBPath(c.DataDir)
}

// RootDir returns the absolute repository root
func (c *Config) RootDir() (string, error) {
	root := c.Root
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		root = wd
	}
	return filepath.Abs(root)
}

// PersonasDir returns the persona catalog directory, resolved against the root
func (c *Config) PersonasDir() (string, error) {
	if filepath.IsAbs(c.Personas.Dir) {
		return c.Personas.Dir, nil
	}
	root, err := c.RootDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, c.Personas.Dir), nil
}

// GetProvider returns the provider config by name, or nil if not found
func (c *Config) GetProvider(name string) *ProviderConfig {
	for i := range c.Providers {
		if c.Providers[i].Name == name {
			return &c.Providers[i]
		}
	}
	return nil
}

// ActiveProvider resolves the provider to use. override beats the
// configured Provider, which beats the first usable entry.
func (c *Config) ActiveProvider(override string) (*ProviderConfig, error) {
	name := override
	if name == "" {
		name = c.Provider
	}
	if name != "" {
		p := c.GetProvider(name)
		if p == nil {
			return nil, fmt.Errorf("provider %q is not configured", name)
		}
		if !p.Usable() {
			return nil, fmt.Errorf("provider %q has no API key (set %s or run 'advisor auth set %s')",
				name, envKeys[name], name)
		}
		return p, nil
	}
	for i := range c.Providers {
		if c.Providers[i].Usable() {
			return &c.Providers[i], nil
		}
	}
	return nil, ErrNoProvider
}

// Usable reports whether the provider has what it needs to be constructed
func (p *ProviderConfig) Usable() bool {
	switch p.Type {
	case "ollama":
		return true
	default:
		return p.APIKey != ""
	}
}
