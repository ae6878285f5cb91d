// Package config loads the service configuration from YAML with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Audit sinks.
const (
	SinkStdout = "stdout"
	SinkFile   = "file"
	SinkNATS   = "nats"
	SinkKafka  = "kafka"
	SinkNone   = "none"
)

// EnvDevelopment relaxes secret validation.
const EnvDevelopment = "development"

// Config is the full service configuration.
type Config struct {
	Environment string        `yaml:"environment" json:"environment"`
	Server      ServerConfig  `yaml:"server" json:"server"`
	Auth        AuthConfig    `yaml:"auth" json:"auth"`
	Policy      PolicyConfig  `yaml:"policy" json:"policy"`
	Storage     StorageConfig `yaml:"storage" json:"storage"`
	Redis       RedisConfig   `yaml:"redis" json:"redis"`
	Audit       AuditConfig   `yaml:"audit" json:"audit"`
	Metrics     MetricsConfig `yaml:"metrics" json:"metrics"`
	Tracing     TracingConfig `yaml:"tracing" json:"tracing"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string        `yaml:"addr" json:"addr"`
	CORSOrigins     []string      `yaml:"cors_origins" json:"cors_origins"`
	LogLevel        string        `yaml:"log_level" json:"log_level"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// AuthConfig configures anonymous session tokens.
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret" json:"-"` //nolint:gosec // G117: config field
	Issuer    string        `yaml:"issuer" json:"issuer"`
	TokenTTL  time.Duration `yaml:"token_ttl" json:"token_ttl"`
	// RateLimit is the number of sessions one IP may create per minute.
	RateLimit int `yaml:"rate_limit" json:"rate_limit"`
}

// PolicyConfig tunes the escalation policy and recorder.
type PolicyConfig struct {
	RecencyWindow   time.Duration `yaml:"recency_window" json:"recency_window"`
	RepeatThreshold int           `yaml:"repeat_threshold" json:"repeat_threshold"`
	ExcerptLength   int           `yaml:"excerpt_length" json:"excerpt_length"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver   string `yaml:"driver" json:"driver"`
	DSN      string `yaml:"dsn" json:"-"`
	MaxConns int32  `yaml:"max_conns" json:"max_conns"`
}

// RedisConfig enables the shared session history.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Address  string `yaml:"address" json:"address"`
	Password string `yaml:"password" json:"-"` //nolint:gosec // G117: config field
	DB       int    `yaml:"db" json:"db"`
	Prefix   string `yaml:"prefix" json:"prefix"`
}

// AuditConfig selects where escalation records are exported. Records are
// always persisted through storage as well.
type AuditConfig struct {
	Sink         string   `yaml:"sink" json:"sink"`
	Path         string   `yaml:"path" json:"path"`
	NATSURL      string   `yaml:"nats_url" json:"nats_url"`
	NATSSubject  string   `yaml:"nats_subject" json:"nats_subject"`
	KafkaBrokers []string `yaml:"kafka_brokers" json:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic" json:"kafka_topic"`

	// RedactPII masks contact details in record summaries.
	RedactPII bool `yaml:"redact_pii" json:"redact_pii"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Namespace string `yaml:"namespace" json:"namespace"`
	Path      string `yaml:"path" json:"path"`
}

// TracingConfig configures OTLP trace export.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled" json:"enabled"`
	Endpoint    string  `yaml:"endpoint" json:"endpoint"`
	ServiceName string  `yaml:"service_name" json:"service_name"`
	SampleRate  float64 `yaml:"sample_rate" json:"sample_rate"`
	Insecure    bool    `yaml:"insecure" json:"insecure"`
}

// Default returns a configuration that runs with no external services.
func Default() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Server: ServerConfig{
			Addr:            ":8000",
			CORSOrigins:     []string{"http://localhost:3000", "http://127.0.0.1:3000"},
			LogLevel:        "info",
			ShutdownTimeout: 10 * time.Second,
		},
		Auth: AuthConfig{
			JWTSecret: "dev-secret-change-in-production",
			Issuer:    "sahara",
			TokenTTL:  30 * time.Minute,
			RateLimit: 10,
		},
		Policy: PolicyConfig{
			RecencyWindow:   24 * time.Hour,
			RepeatThreshold: 3,
			ExcerptLength:   100,
		},
		Storage: StorageConfig{Driver: DriverMemory},
		Redis:   RedisConfig{Address: "localhost:6379", Prefix: "sahara:"},
		Audit:   AuditConfig{Sink: SinkStdout, NATSSubject: "sahara.escalations", KafkaTopic: "sahara-escalations"},
		Metrics: MetricsConfig{Enabled: true, Namespace: "sahara", Path: "/metrics"},
		Tracing: TracingConfig{Endpoint: "localhost:4318", ServiceName: "sahara", SampleRate: 1.0},
	}
}

// LoadFromFile reads a YAML file over Default, expanding ${VAR} references
// and applying SAHARA_* environment overrides.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over Default and applies environment overrides.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays SAHARA_* variables using lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"SAHARA_ENVIRONMENT":    &c.Environment,
		"SAHARA_ADDR":           &c.Server.Addr,
		"SAHARA_LOG_LEVEL":      &c.Server.LogLevel,
		"SAHARA_JWT_SECRET":     &c.Auth.JWTSecret,
		"SAHARA_STORAGE_DRIVER": &c.Storage.Driver,
		"SAHARA_DATABASE_URL":   &c.Storage.DSN,
		"SAHARA_REDIS_ADDR":     &c.Redis.Address,
		"SAHARA_AUDIT_SINK":     &c.Audit.Sink,
		"SAHARA_NATS_URL":       &c.Audit.NATSURL,
		"SAHARA_OTLP_ENDPOINT":  &c.Tracing.Endpoint,
	}
	for key, dst := range str {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	if v, ok := lookup("SAHARA_KAFKA_BROKERS"); ok {
		c.Audit.KafkaBrokers = splitList(v)
	}
	if v, ok := lookup("SAHARA_REDIS_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SAHARA_REDIS_ENABLED: %w", err)
		}
		c.Redis.Enabled = b
	}
	if v, ok := lookup("SAHARA_RECENCY_WINDOW"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SAHARA_RECENCY_WINDOW: %w", err)
		}
		c.Policy.RecencyWindow = d
	}
	return nil
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Policy.RecencyWindow <= 0 {
		errs = append(errs, fmt.Errorf("policy.recency_window must be positive, got %s", c.Policy.RecencyWindow))
	}
	if c.Policy.RepeatThreshold <= 0 {
		errs = append(errs, fmt.Errorf("policy.repeat_threshold must be positive, got %d", c.Policy.RepeatThreshold))
	}
	if c.Policy.ExcerptLength <= 0 {
		errs = append(errs, fmt.Errorf("policy.excerpt_length must be positive, got %d", c.Policy.ExcerptLength))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.token_ttl must be positive"))
	}
	if c.Environment != EnvDevelopment && (c.Auth.JWTSecret == "" || c.Auth.JWTSecret == Default().Auth.JWTSecret) {
		errs = append(errs, errors.New("auth.jwt_secret must be set outside development"))
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if c.Storage.DSN == "" {
			errs = append(errs, fmt.Errorf("storage.dsn is required for driver %q", c.Storage.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}

	if c.Redis.Enabled && c.Redis.Address == "" {
		errs = append(errs, errors.New("redis.address is required when redis is enabled"))
	}

	switch c.Audit.Sink {
	case SinkStdout, SinkNone:
	case SinkFile:
		if c.Audit.Path == "" {
			errs = append(errs, errors.New("audit.path is required for the file sink"))
		}
	case SinkNATS:
		if c.Audit.NATSURL == "" {
			errs = append(errs, errors.New("audit.nats_url is required for the nats sink"))
		}
	case SinkKafka:
		if len(c.Audit.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("audit.kafka_brokers is required for the kafka sink"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown audit.sink %q", c.Audit.Sink))
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("tracing.sample_rate must be within [0,1], got %v", c.Tracing.SampleRate))
	}
	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
