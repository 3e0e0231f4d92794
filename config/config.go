package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Facility  FacilityConfig  `yaml:"facility"`
	DisplayID DisplayIDConfig `yaml:"display_id"`
	Auth      AuthConfig      `yaml:"auth"`
	Export    ExportConfig    `yaml:"export"`
	Reporter  ReporterConfig  `yaml:"reporter"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // "postgres" or "sqlite"
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogLevel               string `yaml:"log_level"`
}

// FacilityConfig describes the single operating timezone of the facility and
// the width of the activity buckets.
type FacilityConfig struct {
	UTCOffsetMinutes int `yaml:"utc_offset_minutes"`
	SlotMinutes      int `yaml:"slot_minutes"`
}

// DisplayIDConfig controls guest-facing identifier allocation.
type DisplayIDConfig struct {
	SequenceWidth int `yaml:"sequence_width"`
	MaxAttempts   int `yaml:"max_attempts"`
}

// AuthConfig holds the bearer token verification parameters.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

// ExportConfig bounds activity exports.
type ExportConfig struct {
	MaxRangeDays int `yaml:"max_range_days"`
}

// ReporterConfig holds the configuration of the background stats reporter.
type ReporterConfig struct {
	Enabled         bool          `yaml:"enabled"`
	IntervalSeconds int           `yaml:"interval_seconds"`
	Interval        time.Duration `yaml:"-"` // Ignored by YAML parser
}

// LogConfig selects the zap level and encoder.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills in zero values with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.Port <= 0 {
		c.Server.Port = 8080
	}
	if c.Server.RateLimitPerSec <= 0 {
		c.Server.RateLimitPerSec = 10
	}
	if c.Server.RateLimitBurst <= 0 {
		c.Server.RateLimitBurst = 20
	}
	if c.Server.CacheTTLSeconds <= 0 {
		c.Server.CacheTTLSeconds = 15
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Database.LogLevel == "" {
		c.Database.LogLevel = "warn"
	}

	if c.Facility.SlotMinutes == 0 {
		c.Facility.SlotMinutes = 30
	}

	if c.DisplayID.SequenceWidth <= 0 {
		c.DisplayID.SequenceWidth = 3
	}
	if c.DisplayID.MaxAttempts <= 0 {
		c.DisplayID.MaxAttempts = 5
	}

	if c.Export.MaxRangeDays <= 0 {
		c.Export.MaxRangeDays = 366
	}

	if c.Reporter.IntervalSeconds <= 0 {
		c.Reporter.IntervalSeconds = 60
	}
	c.Reporter.Interval = time.Duration(c.Reporter.IntervalSeconds) * time.Second

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	slot := c.Facility.SlotMinutes
	if slot <= 0 || (24*60)%slot != 0 {
		return fmt.Errorf("facility.slot_minutes must divide a day evenly, got %d", slot)
	}
	if off := c.Facility.UTCOffsetMinutes; off < -14*60 || off > 14*60 {
		return fmt.Errorf("facility.utc_offset_minutes out of range: %d", off)
	}

	if w := c.DisplayID.SequenceWidth; w > 6 {
		return fmt.Errorf("display_id.sequence_width too large: %d", w)
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	return nil
}
