// Package config loads jobops settings from a YAML file, .env and the
// environment.
//
// Precedence, highest first:
//
//	JOBOPS_* environment variables (ANTHROPIC_API_KEY for assistant.api_key)
//	.env in the working directory or data directory
//	jobops.yaml (--config, the data directory, or the working directory)
//	built-in defaults
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/jobops/jobops/internal/logging"
	"github.com/jobops/jobops/internal/storage"
)

// FileName is the config file base name searched for.
const FileName = "jobops"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "JOBOPS"

// Config is the full settings tree.
type Config struct {
	DataDir       string              `mapstructure:"data_dir"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Remote        RemoteConfig        `mapstructure:"remote"`
	Assistant     AssistantConfig     `mapstructure:"assistant"`
	Server        ServerConfig        `mapstructure:"server"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Logging       logging.Config      `mapstructure:"logging"`

	// File is the config file that was read, or "" when none was found.
	File string `mapstructure:"-"`
}

// StorageConfig selects the local durable store.
type StorageConfig struct {
	storage.Config `mapstructure:",squash"`

	// SeedDemo loads the demo dataset on first run.
	SeedDemo bool `mapstructure:"seed_demo"`
}

// RemoteConfig configures the mirror endpoint.
type RemoteConfig struct {
	// Endpoint overrides the endpoint saved with "jobops endpoint set".
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// AssistantConfig configures the model behind the assistant.
type AssistantConfig struct {
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	MaxTokens int64  `mapstructure:"max_tokens"`
}

// ServerConfig configures "jobops serve" and "jobops mirror".
type ServerConfig struct {
	Port       int `mapstructure:"port"`
	MirrorPort int `mapstructure:"mirror_port"`
}

// NotificationsConfig configures transient notifications.
type NotificationsConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// Options tune Load.
type Options struct {
	// ConfigFile is an explicit file path; it must exist.
	ConfigFile string
	// DataDir overrides data_dir.
	DataDir string
}

// DefaultDataDir is ~/.jobops, or ./.jobops when there is no home directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".jobops"
	}
	return filepath.Join(home, ".jobops")
}

func setDefaults(v *viper.Viper) {
	lc := logging.DefaultConfig()

	v.SetDefault("data_dir", DefaultDataDir())
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.path", "")
	v.SetDefault("storage.redis_addr", "localhost:6379")
	v.SetDefault("storage.redis_password", "")
	v.SetDefault("storage.redis_db", 0)
	v.SetDefault("storage.seed_demo", true)
	v.SetDefault("remote.endpoint", "")
	v.SetDefault("remote.timeout", 30*time.Second)
	v.SetDefault("assistant.api_key", "")
	v.SetDefault("assistant.model", "")
	v.SetDefault("assistant.max_tokens", 1024)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mirror_port", 8090)
	v.SetDefault("notifications.ttl", 4*time.Second)
	v.SetDefault("logging.level", lc.Level)
	v.SetDefault("logging.format", lc.Format)
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", lc.MaxSizeMB)
	v.SetDefault("logging.max_backups", lc.MaxBackups)
	v.SetDefault("logging.max_age_days", lc.MaxAgeDays)
}

// Load builds the configuration.
func Load(opts Options) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("assistant.api_key", EnvPrefix+"_ASSISTANT_API_KEY", "ANTHROPIC_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind api key env: %w", err)
	}

	dataDir := opts.DataDir
	if dataDir == "" {
		dataDir = os.Getenv(EnvPrefix + "_DATA_DIR")
	}
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}
	loadEnvFiles(".env", filepath.Join(dataDir, ".env"))

	v.SetConfigType("yaml")
	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName(FileName)
		v.AddConfigPath(dataDir)
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	if opts.DataDir != "" {
		cfg.DataDir = opts.DataDir
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = filepath.Join(cfg.DataDir, "jobops.db")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// loadEnvFiles applies .env files that exist. Variables already set in the
// environment win.
func loadEnvFiles(paths ...string) {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
		}
	}
}

// Validate checks settings that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "sqlite", "redis", "memory":
	default:
		return fmt.Errorf("storage.driver must be sqlite, redis or memory, got %q", c.Storage.Driver)
	}
	if c.Remote.Timeout < 0 {
		return fmt.Errorf("remote.timeout must not be negative")
	}
	if c.Notifications.TTL < 0 {
		return fmt.Errorf("notifications.ttl must not be negative")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Server.MirrorPort < 0 || c.Server.MirrorPort > 65535 {
		return fmt.Errorf("server.mirror_port out of range: %d", c.Server.MirrorPort)
	}
	return nil
}
