// Package config loads and validates toolmesh configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds all toolmesh configuration.
type Config struct {
	// HTTP server settings
	Server ServerConfig `json:"server"`

	// API authentication
	Auth AuthConfig `json:"auth"`

	// LLM provider settings
	Models ModelsConfig `json:"models"`

	// Built-in and manifest tool settings
	Tools ToolsConfig `json:"tools"`

	// Conversation history store
	History HistoryConfig `json:"history"`

	// Chat orchestration settings
	Chat ChatConfig `json:"chat"`
}

type ServerConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	DataDir  string `json:"dataDir"`
	LogLevel string `json:"logLevel"`
}

// AuthConfig controls the JWT middleware. An empty secret disables
// authentication (dev mode).
type AuthConfig struct {
	Secret            string `json:"secret,omitempty"`
	TokenExpiryMinutes int   `json:"tokenExpiryMinutes"`
}

type ModelsConfig struct {
	Providers map[string]ProviderConfig `json:"providers"`
	// Default model in "provider/model" form, used when a request names none
	Default string `json:"default"`
}

type ProviderConfig struct {
	Type    string  `json:"type"` // "openai", "anthropic", "ollama"
	BaseURL string  `json:"baseUrl,omitempty"`
	APIKey  string  `json:"apiKey,omitempty"`
	Models  []Model `json:"models"`
}

type Model struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ContextWindow int    `json:"contextWindow,omitempty"`
}

type ToolsConfig struct {
	GoogleAPIKey string `json:"googleApiKey,omitempty"`
	GoogleCSEID  string `json:"googleCseId,omitempty"`
	BingAPIKey   string `json:"bingApiKey,omitempty"`

	// File tool limits
	UploadDir        string   `json:"uploadDir"`
	MaxFileSizeBytes int64    `json:"maxFileSizeBytes"`
	AllowedFileTypes []string `json:"allowedFileTypes"`

	// Directory scanned for declarative command tools
	ManifestDir string `json:"manifestDir,omitempty"`
}

type HistoryConfig struct {
	Path string `json:"path"`
	// Messages kept in the prompt window per conversation
	WindowSize int `json:"windowSize"`
	// Conversations idle longer than this are pruned
	RetentionHours int `json:"retentionHours"`
	// Cron expression for the prune job
	CleanupSchedule string `json:"cleanupSchedule"`
}

type ChatConfig struct {
	MaxIterations    int     `json:"maxIterations"`
	MaxParallelTools int     `json:"maxParallelTools"`
	ErrorLimit       int     `json:"errorLimit"`
	MaxTokens        int     `json:"maxTokens"`
	Temperature      float64 `json:"temperature"`
	SystemPrompt     string  `json:"systemPrompt,omitempty"`
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:     "0.0.0.0",
			Port:     8420,
			DataDir:  "./data",
			LogLevel: "info",
		},
		Auth: AuthConfig{
			TokenExpiryMinutes: 30,
		},
		Models: ModelsConfig{
			Providers: map[string]ProviderConfig{},
		},
		Tools: ToolsConfig{
			UploadDir:        "./data/uploads",
			MaxFileSizeBytes: 10 * 1024 * 1024,
			AllowedFileTypes: []string{
				"txt", "md", "csv", "json", "xml", "yaml", "toml", "log",
			},
		},
		History: HistoryConfig{
			Path:            "./data/history.db",
			WindowSize:      20,
			RetentionHours:  24 * 7,
			CleanupSchedule: "0 3 * * *",
		},
		Chat: ChatConfig{
			MaxIterations:    10,
			MaxParallelTools: 5,
			ErrorLimit:       3,
			MaxTokens:        4096,
			Temperature:      0.7,
		},
	}
}

// Load reads config from a JSON file, fills defaults, applies environment
// overrides for secrets, and ensures the data directory exists.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnv()

	if err := os.MkdirAll(cfg.Server.DataDir, 0750); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	return cfg, nil
}

// Save writes config to a JSON file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0640)
}

// applyEnv lets secrets come from the environment instead of the config file.
func (c *Config) applyEnv() {
	if v := os.Getenv("TOOLMESH_JWT_SECRET"); v != "" {
		c.Auth.Secret = v
	}
	if v := os.Getenv("GOOGLE_API_KEY"); v != "" {
		c.Tools.GoogleAPIKey = v
	}
	if v := os.Getenv("GOOGLE_CSE_ID"); v != "" {
		c.Tools.GoogleCSEID = v
	}
	if v := os.Getenv("BING_API_KEY"); v != "" {
		c.Tools.BingAPIKey = v
	}
	for name, p := range c.Models.Providers {
		if p.APIKey != "" {
			continue
		}
		var envKey string
		switch p.Type {
		case "openai":
			envKey = "OPENAI_API_KEY"
		case "anthropic":
			envKey = "ANTHROPIC_API_KEY"
		default:
			continue
		}
		if v := os.Getenv(envKey); v != "" {
			p.APIKey = v
			c.Models.Providers[name] = p
		}
	}
}
