package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Remote   RemoteConfig   `mapstructure:"remote" validate:"required"`
	Catalog  CatalogConfig  `mapstructure:"catalog" validate:"required"`
	Sync     SyncConfig     `mapstructure:"sync"`
}

// DatabaseConfig holds local store settings
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// RemoteConfig holds remote notes endpoint settings
type RemoteConfig struct {
	BaseURL   string `mapstructure:"base_url" validate:"required,url"`
	TimeoutMs int    `mapstructure:"timeout_ms" validate:"min=1"`
}

// CatalogConfig holds character catalog API settings
type CatalogConfig struct {
	BaseURL   string `mapstructure:"base_url" validate:"required,url"`
	TimeoutMs int    `mapstructure:"timeout_ms" validate:"min=1"`
}

// SyncConfig holds outbox sync behavior settings
type SyncConfig struct {
	MaxAttempts     int `mapstructure:"max_attempts" validate:"min=1"`
	BackoffStepMs   int `mapstructure:"backoff_step_ms" validate:"min=0"`
	BackoffMaxMs    int `mapstructure:"backoff_max_ms" validate:"min=0"`
	ProbeIntervalMs int `mapstructure:"probe_interval_ms" validate:"min=100"`
}

// BackoffStep returns the per-attempt backoff increment
func (s *SyncConfig) BackoffStep() time.Duration {
	return time.Duration(s.BackoffStepMs) * time.Millisecond
}

// BackoffMax returns the backoff ceiling
func (s *SyncConfig) BackoffMax() time.Duration {
	return time.Duration(s.BackoffMaxMs) * time.Millisecond
}

// ProbeInterval returns the reachability probe period
func (s *SyncConfig) ProbeInterval() time.Duration {
	return time.Duration(s.ProbeIntervalMs) * time.Millisecond
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: filepath.Join(getDataDir(), "charnotes.db"),
		},
		Remote: RemoteConfig{
			BaseURL:   "https://jsonplaceholder.typicode.com",
			TimeoutMs: 15000,
		},
		Catalog: CatalogConfig{
			BaseURL:   "https://rickandmortyapi.com/api",
			TimeoutMs: 15000,
		},
		Sync: SyncConfig{
			MaxAttempts:     5,
			BackoffStepMs:   1000,
			BackoffMaxMs:    5000,
			ProbeIntervalMs: 30000,
		},
	}
}

// Load reads configuration from file and environment
func Load(configPath string) (*Config, error) {
	// Optional .env in the working directory
	_ = godotenv.Load()

	v := newViper(configPath)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is okay, defaults plus env are enough
	}

	return unmarshal(v)
}

// Viper returns a viper instance bound to the same file locations and env
// settings as Load. The daemon watches it for live reload.
func Viper(configPath string) *viper.Viper {
	return newViper(configPath)
}

// Unmarshal decodes and validates a viper instance into a Config.
// Used on live-reload events where the file has already been re-read.
func Unmarshal(v *viper.Viper) (*Config, error) {
	return unmarshal(v)
}

func newViper(configPath string) *viper.Viper {
	v := viper.New()

	// Set defaults
	defaults := DefaultConfig()
	v.SetDefault("database.path", defaults.Database.Path)
	v.SetDefault("remote.base_url", defaults.Remote.BaseURL)
	v.SetDefault("remote.timeout_ms", defaults.Remote.TimeoutMs)
	v.SetDefault("catalog.base_url", defaults.Catalog.BaseURL)
	v.SetDefault("catalog.timeout_ms", defaults.Catalog.TimeoutMs)
	v.SetDefault("sync.max_attempts", defaults.Sync.MaxAttempts)
	v.SetDefault("sync.backoff_step_ms", defaults.Sync.BackoffStepMs)
	v.SetDefault("sync.backoff_max_ms", defaults.Sync.BackoffMaxMs)
	v.SetDefault("sync.probe_interval_ms", defaults.Sync.ProbeIntervalMs)

	// Configure config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Search for config in standard locations
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(getConfigDir())
	}

	// Enable environment variable substitution
	v.AutomaticEnv()
	v.SetEnvPrefix("CHARNOTES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.Database.Path = expandPath(cfg.Database.Path)
	cfg.Remote.BaseURL = strings.TrimRight(cfg.Remote.BaseURL, "/")
	cfg.Catalog.BaseURL = strings.TrimRight(cfg.Catalog.BaseURL, "/")

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// getConfigDir returns the appropriate config directory for the OS
func getConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "charnotes")
		}
		return filepath.Join(os.Getenv("USERPROFILE"), ".config", "charnotes")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			return filepath.Join(xdgConfig, "charnotes")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "charnotes")
	}
}

// getDataDir returns the directory for the local database file
func getDataDir() string {
	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("LOCALAPPDATA"); appData != "" {
			return filepath.Join(appData, "charnotes")
		}
		return filepath.Join(os.Getenv("USERPROFILE"), ".local", "share", "charnotes")
	default:
		if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
			return filepath.Join(xdgData, "charnotes")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "charnotes")
	}
}

// GetConfigDir returns the config directory, creating it if needed
func GetConfigDir() (string, error) {
	dir := getConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

// EnsureDataDir creates the parent directory of the database file
func EnsureDataDir(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	return nil
}

// expandPath expands ~ and environment variables in a path
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path[1:])
	}
	return os.ExpandEnv(path)
}
