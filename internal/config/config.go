// Package config loads s3helper settings from defaults, an optional YAML
// file and the environment, in increasing order of precedence.
//
// The storage variables keep their historical names:
//
//	S3_ACCESS_KEY_ID      (20 characters, alphanumeric)
//	S3_SECRET_ACCESS_KEY  (40 characters, top secret)
//	S3_BUCKET             (e.g. "my-amazon-files")
//	S3_HOST               (e.g. "s3-ap-southeast-1.amazonaws.com")
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"go.yaml.in/yaml/v3"

	"github.com/koustreak/s3helper/internal/errs"
	"github.com/koustreak/s3helper/internal/filestore"
	"github.com/koustreak/s3helper/internal/logger"
)

// Config is the full application configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
	HTTP    HTTPConfig    `yaml:"http"`
}

// StorageConfig describes the bucket and how to reach it.
type StorageConfig struct {
	Provider  string `yaml:"provider" env:"S3_PROVIDER"`
	AccessKey string `yaml:"access_key_id" env:"S3_ACCESS_KEY_ID"`
	SecretKey string `yaml:"secret_access_key" env:"S3_SECRET_ACCESS_KEY"`
	Bucket    string `yaml:"bucket" env:"S3_BUCKET"`
	Host      string `yaml:"host" env:"S3_HOST"`
	Endpoint  string `yaml:"endpoint" env:"S3_ENDPOINT"`
	Region    string `yaml:"region" env:"S3_REGION"`
	UseSSL    bool   `yaml:"use_ssl" env:"S3_USE_SSL"`
	PublicURL string `yaml:"public_url" env:"S3_PUBLIC_URL"`
}

// LogConfig selects the log level and format.
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// HTTPConfig configures the serve command.
type HTTPConfig struct {
	Addr string `yaml:"addr" env:"HTTP_ADDR"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Provider: string(filestore.ProviderMinIO),
			Region:   "us-east-1",
			UseSSL:   true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path
// (skipped when path is empty), then environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errs.Wrap(errs.ErrKindInvalidInput, "failed to read config file", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, errs.Wrap(errs.ErrKindInvalidInput, "failed to parse config file", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "failed to parse environment", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the storage settings are usable.
func (c *Config) Validate() error {
	var problems []string

	switch filestore.Provider(c.Storage.Provider) {
	case filestore.ProviderMinIO, filestore.ProviderS3:
		if c.Storage.AccessKey == "" {
			problems = append(problems, "S3_ACCESS_KEY_ID is required")
		}
		if c.Storage.SecretKey == "" {
			problems = append(problems, "S3_SECRET_ACCESS_KEY is required")
		}
	case filestore.ProviderMemory:
	default:
		problems = append(problems, fmt.Sprintf("unknown provider %q", c.Storage.Provider))
	}

	if c.Storage.Bucket == "" {
		problems = append(problems, "S3_BUCKET is required")
	}

	if len(problems) > 0 {
		return errs.New(errs.ErrKindInvalidInput, "invalid configuration: "+strings.Join(problems, "; "))
	}
	return nil
}

// FilestoreConfig converts the storage section for the filestore packages.
func (c *Config) FilestoreConfig() *filestore.Config {
	return &filestore.Config{
		Provider:  filestore.Provider(c.Storage.Provider),
		Endpoint:  c.Storage.Endpoint,
		Host:      c.Storage.Host,
		AccessKey: c.Storage.AccessKey,
		SecretKey: c.Storage.SecretKey,
		UseSSL:    c.Storage.UseSSL,
		Region:    c.Storage.Region,
		Bucket:    c.Storage.Bucket,
		PublicURL: c.Storage.PublicURL,
	}
}

// LoggerConfig converts the log section for logger.New.
func (c *Config) LoggerConfig() *logger.Config {
	lc := logger.DefaultConfig()
	lc.Level = c.Log.Level
	lc.Format = c.Log.Format
	return lc
}
