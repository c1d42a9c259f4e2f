package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

// Config represents the chatlog configuration
type Config struct {
	DataDir       string  `yaml:"data_dir" toml:"data_dir" env:"CHATLOG_DATA_DIR" validate:"required"`
	Port          int     `yaml:"port" toml:"port" env:"CHATLOG_PORT" validate:"min=0,max=65535"`
	Bind          string  `yaml:"bind" toml:"bind" env:"CHATLOG_BIND"`
	APIKey        string  `yaml:"api_key" toml:"api_key" env:"CHATLOG_API_KEY"`
	MaxRecordSize int     `yaml:"max_record_size" toml:"max_record_size" env:"CHATLOG_MAX_RECORD_SIZE" validate:"min=1"`
	Workers       int     `yaml:"workers" toml:"workers" env:"CHATLOG_WORKERS" validate:"min=0,max=256"`
	Compression   string  `yaml:"compression" toml:"compression" env:"CHATLOG_COMPRESSION" validate:"oneof=fastest default better best"`
	Logging       Logging `yaml:"logging" toml:"logging"`
}

// Logging contains logging configuration
type Logging struct {
	Level  string `yaml:"level" toml:"level" env:"CHATLOG_LOG_LEVEL" validate:"oneof=trace debug info warn error disabled"`
	Format string `yaml:"format" toml:"format" env:"CHATLOG_LOG_FORMAT" validate:"oneof=console json"`
}

var validate = validator.New()

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		DataDir:       "./data",
		Port:          8080,
		Bind:          "127.0.0.1",
		MaxRecordSize: 64 * 1024,
		Workers:       0,
		Compression:   "default",
		Logging: Logging{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate checks field constraints
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Address returns the listen address for the API server
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Bind, c.Port)
}

// LoadConfig loads configuration from the specified path. Values missing from
// the file keep their defaults; CHATLOG_* environment variables override both.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	if !filepath.IsAbs(configPath) {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		configPath = absPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if isTOML(configPath) {
		err = toml.Unmarshal(data, config)
	} else {
		err = yaml.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return finish(config)
}

// LoadDefault returns the defaults with environment overrides applied
func LoadDefault() (*Config, error) {
	return finish(DefaultConfig())
}

func finish(config *Config) (*Config, error) {
	if err := cleanenv.ReadEnv(config); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// SaveConfig saves the configuration to the specified path with secure permissions
func SaveConfig(config *Config, configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var data []byte
	if isTOML(configPath) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(config); err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		data = buf.Bytes()
	} else {
		var err error
		data, err = yaml.Marshal(config)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
	}

	// API keys may live in the file
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetDefaultConfigPath returns the default configuration path for the current platform
func GetDefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./chatlog.yaml"
	}
	return filepath.Join(homeDir, ".config", "chatlog", "config.yaml")
}

// ConfigExists checks if a configuration file exists
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}
