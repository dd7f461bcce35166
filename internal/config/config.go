// Copyright 2026 The Parishauth Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigFile names an optional YAML file loaded before environment overrides
const EnvConfigFile = "CONFIG_FILE"

// MinSigningKeyLength mirrors the token package requirement
const MinSigningKeyLength = 32

// Argon2 bounds mirror the limits the identity package accepts when decoding a stored hash
const (
	MaxArgon2Memory      = 1 << 20 // KiB
	MaxArgon2Iterations  = 16
	MaxArgon2Parallelism = 255
	MaxArgon2KeyLength   = 128
	MinArgon2KeyLength   = 16
	MinArgon2SaltLength  = 8
	MaxArgon2SaltLength  = 64
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Observability ObservabilityConfig `yaml:"observability"`
	Security      SecurityConfig      `yaml:"security"`
	Token         TokenConfig         `yaml:"token"`
	Bootstrap     BootstrapConfig     `yaml:"bootstrap"`
	Notification  NotificationConfig  `yaml:"notification"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
}

// RateLimitConfig holds rate limiting configuration for the public auth endpoints
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           string        `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// Addr returns host:port
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// ObservabilityConfig holds logging, tracing and metrics configuration
type ObservabilityConfig struct {
	LogLevel       string  `yaml:"log_level"`
	LogFormat      string  `yaml:"log_format"`
	OTELEnabled    bool    `yaml:"otel_enabled"`
	OTELEndpoint   string  `yaml:"otel_endpoint"`
	OTELInsecure   bool    `yaml:"otel_insecure"`
	SamplingRate   float64 `yaml:"sampling_rate"`
	ServiceName    string  `yaml:"service_name"`
	ServiceVersion string  `yaml:"service_version"`
	MetricsEnabled bool    `yaml:"metrics_enabled"`
}

// SecurityConfig holds password hashing configuration.
// Argon2 values stay signed until Validate has range checked them.
type SecurityConfig struct {
	Argon2Memory      int `yaml:"argon2_memory"`
	Argon2Iterations  int `yaml:"argon2_iterations"`
	Argon2Parallelism int `yaml:"argon2_parallelism"`
	Argon2SaltLength  int `yaml:"argon2_salt_length"`
	Argon2KeyLength   int `yaml:"argon2_key_length"`
	PasswordMinLength int `yaml:"password_min_length"`
}

// TokenConfig holds access token signing configuration
type TokenConfig struct {
	SigningKey string        `yaml:"signing_key"`
	TTL        time.Duration `yaml:"ttl"`
	Issuer     string        `yaml:"issuer"`
}

// BootstrapConfig describes the super admin created on first start
type BootstrapConfig struct {
	SuperAdminEmail    string `yaml:"superadmin_email"`
	SuperAdminPassword string `yaml:"superadmin_password"`
	SuperAdminName     string `yaml:"superadmin_name"`
}

// NotificationConfig holds outbound email configuration
type NotificationConfig struct {
	ResendAPIKey string        `yaml:"resend_api_key"`
	ResendURL    string        `yaml:"resend_url"`
	FromEmail    string        `yaml:"from_email"`
	AdminContact string        `yaml:"admin_contact"`
	FrontendURL  string        `yaml:"frontend_url"`
	Timeout      time.Duration `yaml:"timeout"`
}

// Enabled reports whether an email provider is configured
func (n NotificationConfig) Enabled() bool {
	return n.ResendAPIKey != "" && n.FromEmail != ""
}

// Load loads configuration from the optional CONFIG_FILE and environment variables
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           "8080",
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   15 * time.Second,
			IdleTimeout:    60 * time.Second,
			RequestTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            "5432",
			User:            "parishauth",
			Database:        "parishauth",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Observability: ObservabilityConfig{
			LogLevel:       "info",
			LogFormat:      "json",
			SamplingRate:   1.0,
			ServiceName:    "parishauth",
			ServiceVersion: "0.1.0",
			MetricsEnabled: true,
		},
		Security: SecurityConfig{
			Argon2Memory:      65536,
			Argon2Iterations:  3,
			Argon2Parallelism: 4,
			Argon2SaltLength:  16,
			Argon2KeyLength:   32,
			PasswordMinLength: 8,
		},
		Token: TokenConfig{
			TTL:    24 * time.Hour,
			Issuer: "parishauth",
		},
		Bootstrap: BootstrapConfig{
			SuperAdminName: "Administrateur principal",
		},
		Notification: NotificationConfig{
			FrontendURL: "http://localhost:5173",
			Timeout:     10 * time.Second,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 5,
			Burst:             10,
		},
	}
}

// applyEnvOverrides replaces file or default values with any variables that are set
func applyEnvOverrides(cfg *Config) {
	s := &cfg.Server
	s.Host = getEnv("SERVER_HOST", s.Host)
	s.Port = getEnv("SERVER_PORT", s.Port)
	s.ReadTimeout = parseDuration("SERVER_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = parseDuration("SERVER_WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = parseDuration("SERVER_IDLE_TIMEOUT", s.IdleTimeout)
	s.RequestTimeout = parseDuration("SERVER_REQUEST_TIMEOUT", s.RequestTimeout)

	d := &cfg.Database
	d.URL = getEnv("DATABASE_URL", d.URL)
	d.Host = getEnv("DB_HOST", d.Host)
	d.Port = getEnv("DB_PORT", d.Port)
	d.User = getEnv("DB_USER", d.User)
	d.Password = getEnv("DB_PASSWORD", d.Password)
	d.Database = getEnv("DB_NAME", d.Database)
	d.SSLMode = getEnv("DB_SSLMODE", d.SSLMode)
	d.MaxOpenConns = parseInt("DB_MAX_OPEN_CONNS", d.MaxOpenConns)
	d.MaxIdleConns = parseInt("DB_MAX_IDLE_CONNS", d.MaxIdleConns)
	d.ConnMaxLifetime = parseDuration("DB_CONN_MAX_LIFETIME", d.ConnMaxLifetime)

	o := &cfg.Observability
	o.LogLevel = getEnv("LOG_LEVEL", o.LogLevel)
	o.LogFormat = getEnv("LOG_FORMAT", o.LogFormat)
	o.OTELEnabled = parseBool("OTEL_ENABLED", o.OTELEnabled)
	o.OTELEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", o.OTELEndpoint)
	o.OTELInsecure = parseBool("OTEL_EXPORTER_OTLP_INSECURE", o.OTELInsecure)
	o.SamplingRate = parseFloat("OTEL_SAMPLING_RATE", o.SamplingRate)
	o.ServiceName = getEnv("OTEL_SERVICE_NAME", o.ServiceName)
	o.ServiceVersion = getEnv("OTEL_SERVICE_VERSION", o.ServiceVersion)
	o.MetricsEnabled = parseBool("METRICS_ENABLED", o.MetricsEnabled)

	sec := &cfg.Security
	sec.Argon2Memory = parseInt("ARGON2_MEMORY", sec.Argon2Memory)
	sec.Argon2Iterations = parseInt("ARGON2_ITERATIONS", sec.Argon2Iterations)
	sec.Argon2Parallelism = parseInt("ARGON2_PARALLELISM", sec.Argon2Parallelism)
	sec.Argon2SaltLength = parseInt("ARGON2_SALT_LENGTH", sec.Argon2SaltLength)
	sec.Argon2KeyLength = parseInt("ARGON2_KEY_LENGTH", sec.Argon2KeyLength)
	sec.PasswordMinLength = parseInt("SECURITY_PASSWORD_MIN_LENGTH", sec.PasswordMinLength)

	t := &cfg.Token
	t.SigningKey = getEnv("TOKEN_SIGNING_KEY", t.SigningKey)
	t.TTL = parseDuration("TOKEN_TTL", t.TTL)
	t.Issuer = getEnv("TOKEN_ISSUER", t.Issuer)

	b := &cfg.Bootstrap
	b.SuperAdminEmail = getEnv("BOOTSTRAP_SUPERADMIN_EMAIL", b.SuperAdminEmail)
	b.SuperAdminPassword = getEnv("BOOTSTRAP_SUPERADMIN_PASSWORD", b.SuperAdminPassword)
	b.SuperAdminName = getEnv("BOOTSTRAP_SUPERADMIN_NAME", b.SuperAdminName)

	n := &cfg.Notification
	n.ResendAPIKey = getEnv("RESEND_API_KEY", n.ResendAPIKey)
	n.ResendURL = getEnv("RESEND_API_URL", n.ResendURL)
	n.FromEmail = getEnv("FROM_EMAIL", n.FromEmail)
	n.AdminContact = getEnv("MASTER_ADMIN_EMAIL", n.AdminContact)
	n.FrontendURL = getEnv("FRONTEND_URL", n.FrontendURL)
	n.Timeout = parseDuration("NOTIFICATION_TIMEOUT", n.Timeout)

	r := &cfg.RateLimit
	r.RequestsPerSecond = parseFloat("RATELIMIT_RPS", r.RequestsPerSecond)
	r.Burst = parseInt("RATELIMIT_BURST", r.Burst)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" && c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD or DATABASE_URL is required")
	}
	if len(c.Token.SigningKey) < MinSigningKeyLength {
		return fmt.Errorf("TOKEN_SIGNING_KEY must be at least %d bytes", MinSigningKeyLength)
	}
	if c.Token.TTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	if err := c.Security.validateArgon2(); err != nil {
		return err
	}
	if c.Security.PasswordMinLength < 1 {
		return fmt.Errorf("SECURITY_PASSWORD_MIN_LENGTH must be at least 1")
	}
	if (c.Bootstrap.SuperAdminEmail == "") != (c.Bootstrap.SuperAdminPassword == "") {
		return fmt.Errorf("BOOTSTRAP_SUPERADMIN_EMAIL and BOOTSTRAP_SUPERADMIN_PASSWORD must be set together")
	}
	return nil
}

func (s SecurityConfig) validateArgon2() error {
	checks := []struct {
		name     string
		value    int
		min, max int
	}{
		{"ARGON2_PARALLELISM", s.Argon2Parallelism, 1, MaxArgon2Parallelism},
		{"ARGON2_MEMORY", s.Argon2Memory, 8 * s.Argon2Parallelism, MaxArgon2Memory},
		{"ARGON2_ITERATIONS", s.Argon2Iterations, 1, MaxArgon2Iterations},
		{"ARGON2_SALT_LENGTH", s.Argon2SaltLength, MinArgon2SaltLength, MaxArgon2SaltLength},
		{"ARGON2_KEY_LENGTH", s.Argon2KeyLength, MinArgon2KeyLength, MaxArgon2KeyLength},
	}
	for _, c := range checks {
		if c.value < c.min || c.value > c.max {
			return fmt.Errorf("%s must be between %d and %d, got %d", c.name, c.min, c.max, c.value)
		}
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func parseFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func parseBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
