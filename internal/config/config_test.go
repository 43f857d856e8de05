package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Install: InstallConfig{URL: "file://./eclipse/"},
		Storage: StorageConfig{URI: "file://./eclipse/install/activation.json"},
		Server:  ServerConfig{Port: 8080, Host: "0.0.0.0"},
		Auth:    AuthConfig{Type: "none"},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Fetch:   FetchConfig{Timeout: 30 * time.Second},
	}
}

func TestMaskToken(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		expected string
	}{
		{name: "empty token", token: "", expected: ""},
		{name: "non-empty token", token: "my-secret-token", expected: "***"},
		{name: "short token", token: "x", expected: "***"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Storage: StorageConfig{Token: tt.token}}
			assert.Equal(t, tt.expected, cfg.MaskToken())
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "path without scheme", mutate: func(c *Config) { c.Storage.URI = "./activation.json" }},
		{name: "s3 storage", mutate: func(c *Config) { c.Storage.URI = "s3://minio.local:9000/bucket/activation.json" }},
		{name: "oci storage", mutate: func(c *Config) { c.Storage.URI = "oci://registry.example.com/team/activation" }},
		{name: "http install tree", mutate: func(c *Config) { c.Install.URL = "https://updates.example.com/tree" }},
		{
			name:   "empty storage URI",
			mutate: func(c *Config) { c.Storage.URI = "" },
			errMsg: "cannot be empty",
		},
		{
			name:   "unsupported storage scheme",
			mutate: func(c *Config) { c.Storage.URI = "gs://bucket/activation.json" },
			errMsg: "unsupported storage scheme",
		},
		{
			name:   "empty install URL",
			mutate: func(c *Config) { c.Install.URL = "" },
			errMsg: "install.url cannot be empty",
		},
		{
			name:   "install path without scheme",
			mutate: func(c *Config) { c.Install.URL = "./eclipse" },
			errMsg: "install.url must be a URL",
		},
		{
			name:   "port out of range",
			mutate: func(c *Config) { c.Server.Port = 70000 },
			errMsg: "server.port",
		},
		{
			name:   "unknown auth type",
			mutate: func(c *Config) { c.Auth.Type = "jwt" },
			errMsg: "auth.type",
		},
		{
			name:   "unknown log level",
			mutate: func(c *Config) { c.Logging.Level = "trace" },
			errMsg: "logging.level",
		},
		{
			name:   "unknown log format",
			mutate: func(c *Config) { c.Logging.Format = "xml" },
			errMsg: "logging.format",
		},
		{
			name:   "zero fetch timeout",
			mutate: func(c *Config) { c.Fetch.Timeout = 0 },
			errMsg: "fetch.timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "file://./eclipse/", cfg.Install.URL)
	assert.Equal(t, "file://./eclipse/install/activation.json", cfg.Storage.URI)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "none", cfg.Auth.Type)
	assert.Equal(t, 30*time.Second, cfg.Fetch.Timeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "umreg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
install:
  url: file:///opt/tree
server:
  port: 9090
fetch:
  timeout: 5s
`), 0644))
	t.Setenv("UMREG_SERVER_PORT", "9191")
	t.Setenv("UMREG_STORAGE_TOKEN", "secret")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "file:///opt/tree", cfg.Install.URL)
	assert.Equal(t, "file:///opt/tree/", cfg.InstallURL())
	assert.Equal(t, 9191, cfg.Server.Port, "environment overrides the file")
	assert.Equal(t, "secret", cfg.Storage.Token)
	assert.Equal(t, 5*time.Second, cfg.Fetch.Timeout)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}
