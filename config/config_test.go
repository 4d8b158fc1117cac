package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestServiceConfigApplyDefaults(t *testing.T) {
	t.Run("empty environment defaults to development", func(t *testing.T) {
		cfg := ServiceConfig{Name: "relay"}
		cfg.ApplyDefaults()
		if cfg.Environment != "development" {
			t.Errorf("expected 'development', got %q", cfg.Environment)
		}
		if !cfg.Debug {
			t.Error("expected debug=true for development")
		}
	})

	t.Run("production environment keeps debug false", func(t *testing.T) {
		cfg := ServiceConfig{Name: "relay", Environment: "production"}
		cfg.ApplyDefaults()
		if cfg.Debug {
			t.Error("expected debug=false for production")
		}
	})

	t.Run("service name propagates into logging", func(t *testing.T) {
		cfg := ServiceConfig{Name: "relay"}
		cfg.ApplyDefaults()
		if cfg.Logging.ServiceName != "relay" {
			t.Errorf("expected logging service name 'relay', got %q", cfg.Logging.ServiceName)
		}
	})

	t.Run("explicit logging service name wins", func(t *testing.T) {
		cfg := ServiceConfig{Name: "relay"}
		cfg.Logging.ServiceName = "custom"
		cfg.ApplyDefaults()
		if cfg.Logging.ServiceName != "custom" {
			t.Errorf("expected logging service name 'custom', got %q", cfg.Logging.ServiceName)
		}
	})
}

func TestServiceConfigValidate(t *testing.T) {
	valid := func(name, env string) ServiceConfig {
		cfg := ServiceConfig{Name: name, Environment: env}
		cfg.ApplyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		cfg     ServiceConfig
		wantErr bool
		errMsg  string
	}{
		{"valid development", valid("relay", "development"), false, ""},
		{"valid staging", valid("relay", "staging"), false, ""},
		{"valid production", valid("relay", "production"), false, ""},
		{"missing name", valid("", "production"), true, "config.name is required"},
		{"invalid environment", valid("relay", "invalid"), true, "config.environment must be one of"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if !strings.Contains(err.Error(), tc.errMsg) {
					t.Errorf("expected error containing %q, got %q", tc.errMsg, err.Error())
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestLoadConfigWithYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yml")

	yamlContent := `
name: relay
environment: staging
version: "1.0.0"
sse:
  keepalive_interval: 30s
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	type sseSection struct {
		KeepaliveInterval string `mapstructure:"keepalive_interval"`
	}
	type testConfig struct {
		ServiceConfig `mapstructure:",squash"`
		SSE           sseSection `mapstructure:"sse"`
	}

	var cfg testConfig
	err := LoadConfig("relay", &cfg, WithConfigFile(configPath))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Name != "relay" {
		t.Errorf("expected name 'relay', got %q", cfg.Name)
	}
	if cfg.Environment != "staging" {
		t.Errorf("expected environment 'staging', got %q", cfg.Environment)
	}
	if cfg.SSE.KeepaliveInterval != "30s" {
		t.Errorf("expected keepalive '30s', got %q", cfg.SSE.KeepaliveInterval)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	var cfg ServiceConfig
	// With no config file found, LoadConfig should still succeed (just empty config)
	err := LoadConfig("nonexistent-service", &cfg, WithConfigFile("/nonexistent/path.yml"))
	if err != nil {
		t.Fatalf("expected LoadConfig to succeed with missing file, got %v", err)
	}
}

func TestLoadAppliesDefaultsAndValidates(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yml")

	yamlContent := `
name: relay
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	var cfg ServiceConfig
	if err := Load("relay", &cfg, WithConfigFile(configPath)); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Environment != "development" {
		t.Errorf("expected defaulted environment 'development', got %q", cfg.Environment)
	}
	if cfg.Logging.ServiceName != "relay" {
		t.Errorf("expected logging service name 'relay', got %q", cfg.Logging.ServiceName)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yml")

	yamlContent := `
environment: production
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	var cfg ServiceConfig
	err := Load("relay", &cfg, WithConfigFile(configPath))
	if err == nil {
		t.Fatal("expected validation error for missing name")
	}
	if !strings.Contains(err.Error(), "config.name is required") {
		t.Errorf("expected name validation error, got %v", err)
	}
}

func TestResolverWithMockFS(t *testing.T) {
	fs := &mockFS{files: map[string]bool{
		"./cmd/relay/config.yml": true,
	}}
	resolver := &Resolver{FileSystem: fs}
	files := resolver.ResolveFiles("relay", LoaderConfig{})
	if files.ConfigFile != "./cmd/relay/config.yml" {
		t.Errorf("expected config file at ./cmd/relay/config.yml, got %q", files.ConfigFile)
	}
}

func TestResolverShortName(t *testing.T) {
	fs := &mockFS{files: map[string]bool{
		"./cmd/relay/config.yml": true,
	}}
	resolver := &Resolver{FileSystem: fs}
	files := resolver.ResolveFiles("streamkit-relay", LoaderConfig{})
	if files.ConfigFile != "./cmd/relay/config.yml" {
		t.Errorf("expected short-name fallback to find config, got %q", files.ConfigFile)
	}
}

type mockFS struct {
	files map[string]bool
}

func (m *mockFS) Exists(path string) bool   { return m.files[path] }
func (m *mockFS) LoadEnv(path string) error { return nil }
func (m *mockFS) Getwd() (string, error)    { return "/mock", nil }

func TestWithFileSystemOption(t *testing.T) {
	var lc LoaderConfig
	fs := &mockFS{}
	WithFileSystem(fs)(&lc)
	if lc.FileSystem == nil {
		t.Error("expected FileSystem to be set")
	}
}

func TestWithConfigFileOption(t *testing.T) {
	var lc LoaderConfig
	WithConfigFile("/path/to/config.yml")(&lc)
	if lc.ConfigFile != "/path/to/config.yml" {
		t.Errorf("expected config file path, got %q", lc.ConfigFile)
	}
}

func TestWithEnvFileOption(t *testing.T) {
	var lc LoaderConfig
	WithEnvFile("/path/to/.env")(&lc)
	if lc.EnvFile != "/path/to/.env" {
		t.Errorf("expected env file path, got %q", lc.EnvFile)
	}
}

func TestEnvKeyVariants(t *testing.T) {
	variants := generateEnvKeyVariants("SSE_KEEPALIVE_INTERVAL")
	want := map[string]bool{
		"sse_keepalive_interval": false,
		"sse.keepalive.interval": false,
		"sse.keepalive_interval": false,
	}
	for _, v := range variants {
		if _, ok := want[v]; ok {
			want[v] = true
		}
	}
	for k, seen := range want {
		if !seen {
			t.Errorf("expected variant %q in %v", k, variants)
		}
	}
}
