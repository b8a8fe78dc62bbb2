package core

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Database struct {
	Type             string `yaml:"type"`
	ConnectionString string `yaml:"connectionString"`
}

// Cache configures the optional export result cache. An empty address
// disables caching entirely.
type Cache struct {
	Address    string `yaml:"address"`
	TTLSeconds int    `yaml:"ttlSeconds"`
}

type ServiceConfig struct {
	Port     int      `yaml:"port"`
	Database Database `yaml:"database"`
	Cache    Cache    `yaml:"cache"`
	// DefaultSweepDays is the retention horizon used when a sweep request
	// does not name one itself.
	DefaultSweepDays int `yaml:"defaultSweepDays"`
	// MaxUploadBytes caps a single uploaded file. Zero applies the 32 MB
	// default.
	MaxUploadBytes int64 `yaml:"maxUploadBytes"`
}

const defaultMaxUploadBytes = 32 << 20

// LoadConfig loads configuration from the specified YAML file.
func LoadConfig(configPath string) (*ServiceConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	var config ServiceConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", configPath, err)
	}
	return &config, nil
}

func validateConfig(config *ServiceConfig) error {
	if config.Database.Type == "" {
		return fmt.Errorf("database.type must be set")
	}
	if config.Database.ConnectionString == "" {
		return fmt.Errorf("database.connectionString must be set")
	}
	if config.DefaultSweepDays < 0 {
		return fmt.Errorf("defaultSweepDays must not be negative, got %d", config.DefaultSweepDays)
	}
	if config.DefaultSweepDays == 0 {
		config.DefaultSweepDays = 30
	}
	if config.MaxUploadBytes < 0 {
		return fmt.Errorf("maxUploadBytes must not be negative, got %d", config.MaxUploadBytes)
	}
	if config.MaxUploadBytes == 0 {
		config.MaxUploadBytes = defaultMaxUploadBytes
	}
	if config.Cache.TTLSeconds < 0 {
		return fmt.Errorf("cache.ttlSeconds must not be negative, got %d", config.Cache.TTLSeconds)
	}
	return nil
}
