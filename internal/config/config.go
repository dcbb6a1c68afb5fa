package config

import (
	yamlenv "github.com/ifuryst/go-yaml-env"

	"github.com/jklovins/mediagen/pkg/logger"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Auth       AuthConfig       `yaml:"auth"`
	Database   DatabaseConfig   `yaml:"database"`
	Logger     logger.Config    `yaml:"logger"`
	Provider   ProviderConfig   `yaml:"provider"`
	Blob       BlobConfig       `yaml:"blob"`
	Generation GenerationConfig `yaml:"generation"`
}

type ServerConfig struct {
	Port     int    `yaml:"port"`
	Host     string `yaml:"host"`
	Mode     string `yaml:"mode"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// AuthConfig carries the single shared secret gating the JSON API.
type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

type DatabaseConfig struct {
	Type     string `yaml:"type"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
	TimeZone string `yaml:"timezone"`
}

// ProviderConfig configures the external asynchronous inference
// provider. ModelParameters are passed through to the provider's input
// object untouched apart from numeric coercion.
type ProviderConfig struct {
	APIKey          string            `yaml:"api_key"`
	EndpointID      string            `yaml:"endpoint_id"`
	BaseURL         string            `yaml:"base_url"`
	WebhookURL      string            `yaml:"webhook_url"`
	WebhookSecret   string            `yaml:"webhook_secret"`
	RequestTimeout  string            `yaml:"request_timeout"`
	ModelParameters map[string]string `yaml:"model_parameters"`
}

type BlobConfig struct {
	Endpoint      string `yaml:"endpoint"`
	AccessKey     string `yaml:"access_key"`
	SecretKey     string `yaml:"secret_key"`
	Bucket        string `yaml:"bucket"`
	UseSSL        bool   `yaml:"use_ssl"`
	PublicBaseURL string `yaml:"public_base_url"`
}

type GenerationConfig struct {
	Enabled            bool   `yaml:"enabled"`
	BatchCheckInterval string `yaml:"batch_check_interval"`
	SubmitInterval     string `yaml:"submit_interval"`
	ReclaimInterval    string `yaml:"reclaim_interval"`
	JobTimeoutMinutes  int    `yaml:"job_timeout_minutes"`
}

func LoadConfig(configPath string) (*Config, error) {
	cfg, err := yamlenv.LoadConfig[Config](configPath)
	if err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults fills every unset field with its default value.
func (cfg *Config) ApplyDefaults() {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5380
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "debug"
	}
	if cfg.Database.Type == "" {
		cfg.Database.Type = "postgres"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.TimeZone == "" {
		cfg.Database.TimeZone = "UTC"
	}
	if cfg.Provider.BaseURL == "" {
		cfg.Provider.BaseURL = "https://api.runpod.ai/v2"
	}
	if cfg.Provider.RequestTimeout == "" {
		cfg.Provider.RequestTimeout = "30s"
	}
	if cfg.Blob.Bucket == "" {
		cfg.Blob.Bucket = "personal-media"
	}
	if cfg.Generation.BatchCheckInterval == "" {
		cfg.Generation.BatchCheckInterval = "1h"
	}
	if cfg.Generation.SubmitInterval == "" {
		cfg.Generation.SubmitInterval = "1m"
	}
	if cfg.Generation.ReclaimInterval == "" {
		cfg.Generation.ReclaimInterval = "5m"
	}
	if cfg.Generation.JobTimeoutMinutes == 0 {
		cfg.Generation.JobTimeoutMinutes = 15
	}
}
