package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/criteo/install-registry/internal/fetch"
	"github.com/criteo/install-registry/internal/storage"
)

// EnvPrefix is the prefix of every environment variable read by umreg
const EnvPrefix = "UMREG"

// Config holds all configuration of one installation tree and its server
type Config struct {
	Install InstallConfig `mapstructure:"install"`
	Storage StorageConfig `mapstructure:"storage"`
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Logging LoggingConfig `mapstructure:"logging"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
}

// InstallConfig locates the installation tree
type InstallConfig struct {
	URL string `mapstructure:"url"` // base URL of the tree, e.g. file://./eclipse/
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

// StorageConfig locates the activation record (URI-based)
type StorageConfig struct {
	URI   string `mapstructure:"uri"`   // e.g. file://./eclipse/install/activation.json
	Token string `mapstructure:"token"` // Opaque token for storage authentication
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	Type      string `mapstructure:"type"`       // none | basic
	UsersFile string `mapstructure:"users_file"` // for basic auth
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug | info | warn | error
	Format string `mapstructure:"format"` // json | text
}

// FetchConfig tunes the remote site opener
type FetchConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// NewViper creates a new viper instance with defaults and environment binding.
// CLI flags are bound on top of it by the caller.
func NewViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("install.url", "file://./eclipse/")
	v.SetDefault("storage.uri", "file://./eclipse/install/activation.json")
	v.SetDefault("storage.token", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("auth.type", "none")
	v.SetDefault("auth.users_file", "./users.yaml")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("fetch.timeout", fetch.DefaultTimeout)

	// UMREG_STORAGE_URI, UMREG_INSTALL_URL, ...
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads defaults, the optional yaml config file and the environment
func Load(configFile string) (*Config, error) {
	v := NewViper()
	if configFile != "" {
		if err := ReadConfigFile(v, configFile); err != nil {
			return nil, err
		}
	}
	return LoadWithViper(v)
}

// ReadConfigFile merges the yaml file at path into v
func ReadConfigFile(v *viper.Viper, path string) error {
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return nil
}

// LoadWithViper loads configuration using a pre-configured viper instance
// This allows CLI flags to be bound before loading
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Install.URL == "" {
		return fmt.Errorf("install.url cannot be empty")
	}
	if !strings.Contains(c.Install.URL, "://") {
		return fmt.Errorf("install.url must be a URL (file://, http:// or https://)")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	if _, err := storage.ParseStorageURI(c.Storage.URI); err != nil {
		return fmt.Errorf("invalid storage URI: %w", err)
	}

	if c.Auth.Type != "none" && c.Auth.Type != "basic" {
		return fmt.Errorf("auth.type must be 'none' or 'basic'")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be debug, info, warn, or error")
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("logging.format must be json or text")
	}

	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be positive")
	}

	return nil
}

// InstallURL returns the tree URL with a trailing slash
func (c *Config) InstallURL() string {
	return fetch.WithTrailingSlash(c.Install.URL)
}

// GetParsedStorageURI returns the parsed storage URI
func (c *Config) GetParsedStorageURI() (*storage.StorageURI, error) {
	return storage.ParseStorageURI(c.Storage.URI)
}

// MaskToken returns a masked version of the storage token for logging
func (c *Config) MaskToken() string {
	if c.Storage.Token == "" {
		return ""
	}
	return "***"
}
