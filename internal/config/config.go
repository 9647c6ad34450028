// Package config loads, validates and saves the scanexport configuration
// file. Every section has defaults, so a missing file is not an error.
package config

import (
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/anstrom/scanexport/internal/auth"
	"github.com/anstrom/scanexport/internal/db"
	"github.com/anstrom/scanexport/internal/errors"
	"github.com/anstrom/scanexport/internal/logging"
)

const (
	configDirPerm  = 0750
	configFilePerm = 0600

	defaultAPIPort        = 8080
	defaultMaxRequestSize = 32 << 20
	defaultMaxParts       = 64
)

// Config represents the complete scanexport configuration.
type Config struct {
	// Batch export defaults shared by the CLI, the API and the scheduler
	Export ExportConfig `yaml:"export" json:"export"`

	// Live nmap scan defaults
	Scan ScanConfig `yaml:"scan" json:"scan"`

	// PostgreSQL row store
	Database db.Config `yaml:"database" json:"database"`

	// HTTP conversion service
	API APIConfig `yaml:"api" json:"api"`

	// Periodic batch exports
	Schedule ScheduleConfig `yaml:"schedule" json:"schedule"`

	// Metrics of short-lived commands
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	Logging logging.Config `yaml:"logging" json:"logging"`
}

// ExportConfig holds batch export settings.
type ExportConfig struct {
	// Output format, json or csv
	Format string `yaml:"format" json:"format" validate:"oneof=json csv"`

	// Output file; empty or "-" writes to stdout
	Output string `yaml:"output" json:"output"`

	// Number of sources decoded ahead of the one being written
	Workers int `yaml:"workers" json:"workers" validate:"min=1,max=256"`

	// Indent JSON output
	Pretty bool `yaml:"pretty" json:"pretty"`

	// File pattern used when a directory is given as a source
	Pattern string `yaml:"pattern" json:"pattern" validate:"required"`
}

// ScanConfig holds defaults for live nmap scans.
type ScanConfig struct {
	Ports            string        `yaml:"ports" json:"ports"`
	ScanType         string        `yaml:"scan_type" json:"scan_type" validate:"oneof=connect syn version"`
	Timing           int           `yaml:"timing" json:"timing" validate:"min=0,max=5"`
	ServiceDetection bool          `yaml:"service_detection" json:"service_detection"`
	OSDetection      bool          `yaml:"os_detection" json:"os_detection"`
	Timeout          time.Duration `yaml:"timeout" json:"timeout"`

	// Path to the nmap binary; empty searches PATH
	BinaryPath string `yaml:"binary_path" json:"binary_path"`
}

// APIConfig holds HTTP service settings.
type APIConfig struct {
	ListenAddr     string        `yaml:"listen_addr" json:"listen_addr" validate:"required"`
	Port           int           `yaml:"port" json:"port" validate:"min=1,max=65535"`
	CORS           CORSConfig    `yaml:"cors" json:"cors"`
	Auth           AuthConfig    `yaml:"auth" json:"auth"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`

	// Largest accepted request body in bytes
	MaxRequestSize int64 `yaml:"max_request_size" json:"max_request_size" validate:"min=1"`

	// Most files accepted in one multipart request
	MaxParts int `yaml:"max_parts" json:"max_parts" validate:"min=1"`
}

// CORSConfig holds cross-origin settings for the API.
type CORSConfig struct {
	Enabled        bool     `yaml:"enabled" json:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
}

// AuthConfig holds API key authentication settings. Only bcrypt hashes of
// the keys are configured; "scanexport apikey" generates a key and its hash.
type AuthConfig struct {
	Enabled   bool     `yaml:"enabled" json:"enabled"`
	KeyHashes []string `yaml:"key_hashes" json:"-" validate:"dive,required"`
}

// MetricsConfig holds settings for commands that are not scraped. The
// server exposes its metrics on /metrics instead.
type MetricsConfig struct {
	// Pushgateway base URL; empty disables pushing
	Pushgateway string `yaml:"pushgateway" json:"pushgateway" validate:"omitempty,url"`

	// Job label of pushed metrics
	PushJob string `yaml:"push_job" json:"push_job" validate:"required"`
}

// ScheduleConfig lists the periodic export jobs.
type ScheduleConfig struct {
	Jobs []JobConfig `yaml:"jobs" json:"jobs" validate:"dive"`
}

// JobConfig describes one periodic export.
type JobConfig struct {
	Name string `yaml:"name" json:"name" validate:"required"`

	// Standard five field cron expression, or a descriptor such as @hourly
	Cron string `yaml:"cron" json:"cron" validate:"required"`

	// Files, directories or glob patterns to export
	Sources []string `yaml:"sources" json:"sources" validate:"min=1,dive,required"`

	// File the export is written to, replaced atomically on every run
	Output string `yaml:"output" json:"output" validate:"required"`

	// Output format; empty uses export.format
	Format string `yaml:"format" json:"format" validate:"omitempty,oneof=json csv"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Export: ExportConfig{
			Format:  "json",
			Output:  "",
			Workers: 4,
			Pretty:  false,
			Pattern: "*.xml",
		},
		Scan: ScanConfig{
			Ports:            "22,80,443,8080,8443",
			ScanType:         "connect",
			Timing:           3,
			ServiceDetection: true,
			OSDetection:      false,
			Timeout:          10 * time.Minute,
		},
		Database: db.DefaultConfig(),
		API: APIConfig{
			ListenAddr: "127.0.0.1",
			Port:       defaultAPIPort,
			CORS: CORSConfig{
				Enabled:        false,
				AllowedOrigins: []string{"*"},
			},
			RequestTimeout: 30 * time.Second,
			MaxRequestSize: defaultMaxRequestSize,
			MaxParts:       defaultMaxParts,
		},
		Metrics: MetricsConfig{
			PushJob: "scanexport",
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load loads configuration from a file. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	config := Default()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return config, nil
		}
		return nil, errors.WrapConfigError(errors.CodeConfiguration, "Failed to read config file", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.WrapConfigError(errors.CodeConfiguration, "Failed to parse config file", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Save saves configuration to a file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), configDirPerm); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, configFilePerm); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// newValidator reports fields by their YAML names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the configuration. The first problem found is returned
// as a *errors.ConfigError naming the offending field.
func (c *Config) Validate() error {
	if err := newValidator().Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if stderrors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			field := strings.TrimPrefix(fe.Namespace(), "Config.")
			return errors.NewConfigFieldError(errors.CodeValidation,
				fmt.Sprintf("Invalid configuration value: failed %q check", fe.Tag()), field, fe.Value())
		}
		return errors.WrapConfigError(errors.CodeValidation, "Invalid configuration", err)
	}

	if _, err := filepath.Match(c.Export.Pattern, ""); err != nil {
		return errors.ErrConfigInvalid("export.pattern", c.Export.Pattern)
	}
	if c.Scan.Timeout < 0 {
		return errors.ErrConfigInvalid("scan.timeout", c.Scan.Timeout)
	}
	if c.API.RequestTimeout < 0 {
		return errors.ErrConfigInvalid("api.request_timeout", c.API.RequestTimeout)
	}

	if c.API.Auth.Enabled && len(c.API.Auth.KeyHashes) == 0 {
		return errors.ErrConfigInvalid("api.auth.key_hashes", "none")
	}
	for i, hash := range c.API.Auth.KeyHashes {
		if !auth.IsKeyHash(hash) {
			return errors.ErrConfigInvalid(fmt.Sprintf("api.auth.key_hashes[%d]", i), "not a bcrypt hash")
		}
	}

	seen := make(map[string]bool, len(c.Schedule.Jobs))
	for i, job := range c.Schedule.Jobs {
		field := fmt.Sprintf("schedule.jobs[%d]", i)
		if seen[job.Name] {
			return errors.ErrConfigInvalid(field+".name", job.Name)
		}
		seen[job.Name] = true

		if _, err := cron.ParseStandard(job.Cron); err != nil {
			cfgErr := errors.ErrConfigInvalid(field+".cron", job.Cron)
			cfgErr.Cause = err
			return cfgErr
		}
	}

	return nil
}

// GetAPIAddress returns the full API address.
func (c *Config) GetAPIAddress() string {
	return net.JoinHostPort(c.API.ListenAddr, strconv.Itoa(c.API.Port))
}

// JobFormat returns the output format of job, falling back to export.format.
func (c *Config) JobFormat(job JobConfig) string {
	if job.Format != "" {
		return job.Format
	}
	return c.Export.Format
}
