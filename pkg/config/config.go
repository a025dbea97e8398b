package config

import (
	"fmt"
	"net/url"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for civic-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, API keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Import pipeline tuning
	Import ImportConfig `yaml:"import"`

	// External registry clients
	Congress        CongressConfig        `yaml:"congress"`
	FederalRegister FederalRegisterConfig `yaml:"federal_register"`
	Legislators     LegislatorsConfig     `yaml:"legislators"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"civic"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"civic_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MigrationsPath string `yaml:"migrations_path" env:"PGMIGRATIONS_PATH" env-default:"migrations"`
}

// URL builds a pgx-compatible connection URL.
func (d *DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(d.User), url.QueryEscape(d.Password),
		d.Host, d.Port, d.Database, d.SSLMode)
}

// ImportConfig holds tuning for the import/reconciliation engine.
type ImportConfig struct {
	// BatchSize is the number of records written per database transaction.
	BatchSize int `yaml:"batch_size" env:"IMPORT_BATCH_SIZE" env-default:"100"`
	// MaxErrorDetails bounds the per-run error list retained in results.
	MaxErrorDetails int `yaml:"max_error_details" env:"IMPORT_MAX_ERROR_DETAILS" env-default:"200"`
	// GovmanMaxBytes caps uploaded Government Manual XML files (15MB default).
	GovmanMaxBytes int64 `yaml:"govman_max_bytes" env:"IMPORT_GOVMAN_MAX_BYTES" env-default:"15728640"`
	// UslmMaxBytes caps uploaded US Code title XML files (100MB default).
	UslmMaxBytes int64 `yaml:"uslm_max_bytes" env:"IMPORT_USLM_MAX_BYTES" env-default:"104857600"`
	// WriteTimeoutSeconds bounds each batch write transaction.
	WriteTimeoutSeconds int `yaml:"write_timeout_seconds" env:"IMPORT_WRITE_TIMEOUT_SECONDS" env-default:"30"`
}

// CongressConfig holds Congress.gov API client configuration.
type CongressConfig struct {
	BaseURL string `yaml:"base_url" env:"CONGRESS_BASE_URL" env-default:"https://api.congress.gov/v3"`
	APIKey  string `yaml:"-" env:"CONGRESS_API_KEY"` // Secret - not in YAML
	// HourlyLimit is the documented request quota, used for rate-limit accounting.
	HourlyLimit int `yaml:"hourly_limit" env:"CONGRESS_HOURLY_LIMIT" env-default:"5000"`
	// RequestsPerSecond throttles outgoing calls.
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"CONGRESS_REQUESTS_PER_SECOND" env-default:"2"`
	PageSize          int     `yaml:"page_size" env:"CONGRESS_PAGE_SIZE" env-default:"20"`
}

// FederalRegisterConfig holds Federal Register API client configuration.
type FederalRegisterConfig struct {
	BaseURL           string  `yaml:"base_url" env:"FEDREG_BASE_URL" env-default:"https://www.federalregister.gov/api/v1"`
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"FEDREG_REQUESTS_PER_SECOND" env-default:"2"`
	PageSize          int     `yaml:"page_size" env:"FEDREG_PAGE_SIZE" env-default:"20"`
}

// LegislatorsConfig holds configuration for the unitedstates/congress-legislators
// YAML dataset client.
type LegislatorsConfig struct {
	BaseURL           string  `yaml:"base_url" env:"LEGISLATORS_BASE_URL" env-default:"https://unitedstates.github.io/congress-legislators"`
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"LEGISLATORS_REQUESTS_PER_SECOND" env-default:"1"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
// Environment variables override YAML values. Secrets (PGPASSWORD, CONGRESS_API_KEY)
// must come from environment variables (yaml:"-" fields).
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	// Load config from YAML file with environment variable overrides.
	// A missing config.yaml is fine - env defaults cover everything.
	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment config: %w", err)
		}
	}

	if cfg.Import.BatchSize < 1 {
		return nil, fmt.Errorf("import batch_size must be positive, got %d", cfg.Import.BatchSize)
	}

	// Auto-derive BaseURL from Port if not explicitly set
	if cfg.BaseURL == "" {
		cfg.BaseURL = (&url.URL{
			Scheme: "http",
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}
