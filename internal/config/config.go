package config

import (
	"errors"
	"fmt"
	"os"

	"coldbook/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig           `yaml:"app"`
	Database   DatabaseConfig      `yaml:"database"`
	Redis      RedisConfig         `yaml:"redis"`
	Booking    BookingConfig       `yaml:"booking"`
	Backup     BackupConfig        `yaml:"backup"`
	Monitoring MonitoringConfig    `yaml:"monitoring"`
	Logging    LoggingConfig       `yaml:"logging"`
	API        APIConfig           `yaml:"api"`
	Equipment  []*models.Equipment `yaml:"equipment"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// BookingConfig holds the engine's policy knobs. FutureOnly rejects
// intervals starting in the past; DefaultStatus is assigned when a create
// request carries no status.
type BookingConfig struct {
	FutureOnly    bool             `yaml:"future_only"`
	DefaultStatus string           `yaml:"default_status"`
	RateLimit     BookingRateLimit `yaml:"rate_limit"`
}

type BookingRateLimit struct {
	Attempts      int `yaml:"attempts"`
	WindowSeconds int `yaml:"window_seconds"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	Port      int                `yaml:"port"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; environment set by the runtime wins either way.
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Expand ${VAR} references before parsing so secrets stay out of YAML.
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if !models.IsKnownStatus(c.Booking.DefaultStatus) {
		return fmt.Errorf("unknown booking default status %q", c.Booking.DefaultStatus)
	}
	return ValidateEquipment(c.Equipment)
}

func ValidateEquipment(equipment []*models.Equipment) error {
	names := make(map[string]bool)
	for _, eq := range equipment {
		if eq.Name == "" {
			return errors.New("equipment entry without a name")
		}
		if names[eq.Name] {
			return fmt.Errorf("duplicate equipment name: %s", eq.Name)
		}
		names[eq.Name] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "coldbook"
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	if c.Booking.DefaultStatus == "" {
		c.Booking.DefaultStatus = models.StatusApproved
	}
	if c.Booking.RateLimit.Attempts == 0 {
		c.Booking.RateLimit.Attempts = models.DefaultAttemptLimit
	}
	if c.Booking.RateLimit.WindowSeconds == 0 {
		c.Booking.RateLimit.WindowSeconds = models.DefaultAttemptWindow
	}
}
