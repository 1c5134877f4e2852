package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Port != 8420 {
		t.Errorf("port = %d, want 8420", cfg.Server.Port)
	}
	if cfg.Chat.MaxIterations != 10 {
		t.Errorf("maxIterations = %d, want 10", cfg.Chat.MaxIterations)
	}
	if cfg.Tools.MaxFileSizeBytes != 10*1024*1024 {
		t.Errorf("maxFileSizeBytes = %d", cfg.Tools.MaxFileSizeBytes)
	}
	if cfg.History.WindowSize != 20 {
		t.Errorf("windowSize = %d, want 20", cfg.History.WindowSize)
	}
}

func TestLoadMergesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "toolmesh.json")
	content := `{
		"server": {"port": 9000, "dataDir": "` + dir + `/data"},
		"models": {
			"default": "openai/gpt-4o-mini",
			"providers": {
				"openai": {"type": "openai", "apiKey": "sk-test", "models": [{"id": "gpt-4o-mini", "name": "GPT-4o mini"}]}
			}
		}
	}`
	if err := os.WriteFile(path, []byte(content), 0640); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.Server.Port)
	}
	// Untouched sections keep defaults
	if cfg.Server.LogLevel != "info" {
		t.Errorf("logLevel = %q, want info", cfg.Server.LogLevel)
	}
	if cfg.Models.Default != "openai/gpt-4o-mini" {
		t.Errorf("default model = %q", cfg.Models.Default)
	}
	if _, err := os.Stat(filepath.Join(dir, "data")); err != nil {
		t.Errorf("data dir not created: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	os.WriteFile(path, []byte("{not json"), 0640)
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TOOLMESH_JWT_SECRET", "env-secret")
	t.Setenv("GOOGLE_API_KEY", "env-google")
	t.Setenv("OPENAI_API_KEY", "env-openai")

	cfg := DefaultConfig()
	cfg.Models.Providers["openai"] = ProviderConfig{Type: "openai"}
	cfg.applyEnv()

	if cfg.Auth.Secret != "env-secret" {
		t.Errorf("secret = %q", cfg.Auth.Secret)
	}
	if cfg.Tools.GoogleAPIKey != "env-google" {
		t.Errorf("google key = %q", cfg.Tools.GoogleAPIKey)
	}
	if cfg.Models.Providers["openai"].APIKey != "env-openai" {
		t.Errorf("openai key = %q", cfg.Models.Providers["openai"].APIKey)
	}
}

func TestEnvDoesNotClobberExplicitKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "env-openai")

	cfg := DefaultConfig()
	cfg.Models.Providers["openai"] = ProviderConfig{Type: "openai", APIKey: "from-file"}
	cfg.applyEnv()

	if cfg.Models.Providers["openai"].APIKey != "from-file" {
		t.Errorf("explicit key overridden: %q", cfg.Models.Providers["openai"].APIKey)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "toolmesh.json")
	cfg := DefaultConfig()
	cfg.Server.Port = 8888
	cfg.Server.DataDir = filepath.Dir(path)

	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 8888 {
		t.Errorf("port = %d, want 8888", loaded.Server.Port)
	}
}
