// Package config loads service configuration from an optional YAML file and
// environment variables. Environment variables always win over file values.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Audit    AuditConfig    `yaml:"audit"`
	Booking  BookingConfig  `yaml:"booking"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

type HTTPConfig struct {
	Port         string        `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	CORSOrigins  []string      `yaml:"cors_origins"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Name            string        `yaml:"name"`
	SSLMode         string        `yaml:"sslmode"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
	ConnectAttempts int           `yaml:"connect_attempts"`
}

// DSN builds a libpq-compatible connection string. A configured URL takes precedence.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AuditConfig selects the transport behind the audit sink.
type AuditConfig struct {
	// Transport is "gochannel" (in-process) or "redis".
	Transport  string `yaml:"transport"`
	RedisAddr  string `yaml:"redis_addr"`
	Topic      string `yaml:"topic"`
	BufferSize int    `yaml:"buffer_size"`
}

type BookingConfig struct {
	MaxQuantityPerBooking int `yaml:"max_quantity_per_booking"`
}

// TracingConfig enables span export. An empty JaegerEndpoint keeps tracing off.
type TracingConfig struct {
	ServiceName    string `yaml:"service_name"`
	JaegerEndpoint string `yaml:"jaeger_endpoint"`
}

// Default returns settings suitable for local development.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Port:         "8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            "5432",
			User:            "postgres",
			Password:        "postgres",
			Name:            "eventbooking",
			SSLMode:         "disable",
			MaxConns:        20,
			MinConns:        2,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			ConnectAttempts: 5,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Audit: AuditConfig{
			Transport:  "gochannel",
			Topic:      "audit.entries",
			BufferSize: 1024,
		},
		Booking: BookingConfig{
			MaxQuantityPerBooking: 50,
		},
		Tracing: TracingConfig{
			ServiceName: "event-booking",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// CONFIG_FILE (if any), then environment overrides.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c Config) Validate() error {
	if c.HTTP.Port == "" {
		return fmt.Errorf("http port is required")
	}
	if c.Booking.MaxQuantityPerBooking < 1 {
		return fmt.Errorf("max quantity per booking must be at least 1")
	}
	switch c.Audit.Transport {
	case "gochannel":
	case "redis":
		if c.Audit.RedisAddr == "" {
			return fmt.Errorf("audit redis transport requires REDIS_ADDR")
		}
	default:
		return fmt.Errorf("unknown audit transport %q", c.Audit.Transport)
	}
	if c.Audit.BufferSize < 1 {
		return fmt.Errorf("audit buffer size must be at least 1")
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.HTTP.Port = getEnv("PORT", cfg.HTTP.Port)
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.HTTP.CORSOrigins = parseCSV(v)
	}

	cfg.Database.URL = getEnv("DATABASE_URL", cfg.Database.URL)
	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnv("DB_PORT", cfg.Database.Port)
	cfg.Database.User = getEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.Name = getEnv("DB_NAME", cfg.Database.Name)
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", cfg.Database.SSLMode)
	maxConns, err := getEnvInt("DB_MAX_CONNS", int(cfg.Database.MaxConns))
	if err != nil {
		return err
	}
	cfg.Database.MaxConns = int32(maxConns)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)

	cfg.Audit.Transport = getEnv("AUDIT_TRANSPORT", cfg.Audit.Transport)
	cfg.Audit.RedisAddr = getEnv("REDIS_ADDR", cfg.Audit.RedisAddr)
	cfg.Audit.Topic = getEnv("AUDIT_TOPIC", cfg.Audit.Topic)
	if cfg.Audit.BufferSize, err = getEnvInt("AUDIT_BUFFER_SIZE", cfg.Audit.BufferSize); err != nil {
		return err
	}

	if cfg.Booking.MaxQuantityPerBooking, err = getEnvInt("MAX_QUANTITY_PER_BOOKING", cfg.Booking.MaxQuantityPerBooking); err != nil {
		return err
	}

	cfg.Tracing.ServiceName = getEnv("OTEL_SERVICE_NAME", cfg.Tracing.ServiceName)
	cfg.Tracing.JaegerEndpoint = getEnv("JAEGER_ENDPOINT", cfg.Tracing.JaegerEndpoint)
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
