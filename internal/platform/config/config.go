// Package config loads service configuration from defaults, an optional YAML
// file and environment variables, in increasing order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	pstrings "vatguard/pkg/platform/strings"
)

// FileEnv names the environment variable pointing at the YAML overlay.
const FileEnv = "VATGUARD_CONFIG"

// Config is the full service configuration.
type Config struct {
	Server    Server         `yaml:"server"`
	Exemption Exemption      `yaml:"exemption"`
	Registry  Registry       `yaml:"registry"`
	Redis     RedisConfig    `yaml:"redis"`
	Postgres  PostgresConfig `yaml:"postgres"`
	Kafka     KafkaConfig    `yaml:"kafka"`
	LogLevel  string         `yaml:"log_level"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `yaml:"addr"`
	HostToken       string        `yaml:"host_token"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Exemption holds the merchant's exemption settings.
type Exemption struct {
	Enabled                     bool          `yaml:"enabled"`
	IdentifierRequired          bool          `yaml:"identifier_required"`
	RegistryCheck               bool          `yaml:"registry_check"`
	OverrideCompetingExtensions bool          `yaml:"override_competing_extensions"`
	HomeCountry                 string        `yaml:"home_country"`
	PickupMethods               []string      `yaml:"pickup_methods"`
	SessionTTL                  time.Duration `yaml:"session_ttl"`
}

// Registry configures the VIES lookup chain.
type Registry struct {
	BaseURL          string        `yaml:"base_url"`
	Timeout          time.Duration `yaml:"timeout"`
	CacheTTL         time.Duration `yaml:"cache_ttl"`
	FailureThreshold int           `yaml:"failure_threshold"`
	Cooldown         time.Duration `yaml:"cooldown"`
}

// RedisConfig configures the Redis client. An empty URL disables Redis.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// PostgresConfig configures the database. An empty DSN disables PostgreSQL.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// KafkaConfig configures event publishing. No brokers means events are logged.
type KafkaConfig struct {
	Brokers  []string `yaml:"brokers"`
	Topic    string   `yaml:"topic"`
	ClientID string   `yaml:"client_id"`
}

// Default returns development defaults: everything in memory, feature on.
func Default() Config {
	return Config{
		Server: Server{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Exemption: Exemption{
			Enabled:       true,
			RegistryCheck: true,
			HomeCountry:   "FR",
			PickupMethods: []string{"local_pickup"},
			SessionTTL:    48 * time.Hour,
		},
		Registry: Registry{
			Timeout:          5 * time.Second,
			CacheTTL:         24 * time.Hour,
			FailureThreshold: 5,
			Cooldown:         30 * time.Second,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Postgres: PostgresConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Kafka: KafkaConfig{
			ClientID: "vatguard",
		},
		LogLevel: "info",
	}
}

// FromEnv loads configuration using the file named by VATGUARD_CONFIG, if
// any, with environment overrides, so main stays lean.
func FromEnv() (Config, error) {
	return Load(os.Getenv(FileEnv))
}

// Load applies defaults, then the YAML file at path (skipped when empty),
// then environment overrides, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 - operator-supplied path
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// normalize canonicalizes list settings after every source has been applied.
// Pickup method ids compare case-insensitively; broker addresses keep case.
func (c *Config) normalize() {
	c.Exemption.HomeCountry = strings.ToUpper(strings.TrimSpace(c.Exemption.HomeCountry))
	c.Exemption.PickupMethods = pstrings.DedupeAndTrimLower(c.Exemption.PickupMethods)
	c.Kafka.Brokers = pstrings.DedupeAndTrim(c.Kafka.Brokers)
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Exemption.Enabled && len(strings.TrimSpace(c.Exemption.HomeCountry)) != 2 {
		return fmt.Errorf("exemption.home_country must be a two-letter country code, got %q", c.Exemption.HomeCountry)
	}
	if c.Registry.Timeout <= 0 {
		return fmt.Errorf("registry.timeout must be positive")
	}
	if c.Registry.FailureThreshold < 1 {
		return fmt.Errorf("registry.failure_threshold must be at least 1")
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	e := envReader{lookup: lookup}

	e.str("VATGUARD_ADDR", &cfg.Server.Addr)
	e.str("VATGUARD_HOST_TOKEN", &cfg.Server.HostToken)
	e.duration("VATGUARD_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	e.boolean("VATGUARD_ENABLED", &cfg.Exemption.Enabled)
	e.boolean("VATGUARD_IDENTIFIER_REQUIRED", &cfg.Exemption.IdentifierRequired)
	e.boolean("VATGUARD_REGISTRY_CHECK", &cfg.Exemption.RegistryCheck)
	e.boolean("VATGUARD_OVERRIDE_COMPETING", &cfg.Exemption.OverrideCompetingExtensions)
	e.str("VATGUARD_HOME_COUNTRY", &cfg.Exemption.HomeCountry)
	e.list("VATGUARD_PICKUP_METHODS", &cfg.Exemption.PickupMethods)
	e.duration("VATGUARD_SESSION_TTL", &cfg.Exemption.SessionTTL)

	e.str("VIES_BASE_URL", &cfg.Registry.BaseURL)
	e.duration("VATGUARD_REGISTRY_TIMEOUT", &cfg.Registry.Timeout)
	e.duration("VATGUARD_REGISTRY_CACHE_TTL", &cfg.Registry.CacheTTL)
	e.integer("VATGUARD_REGISTRY_FAILURE_THRESHOLD", &cfg.Registry.FailureThreshold)
	e.duration("VATGUARD_REGISTRY_COOLDOWN", &cfg.Registry.Cooldown)

	e.str("REDIS_URL", &cfg.Redis.URL)
	e.integer("REDIS_POOL_SIZE", &cfg.Redis.PoolSize)

	e.str("DATABASE_URL", &cfg.Postgres.DSN)
	e.integer("DATABASE_MAX_OPEN_CONNS", &cfg.Postgres.MaxOpenConns)

	e.list("KAFKA_BROKERS", &cfg.Kafka.Brokers)
	e.str("KAFKA_TOPIC", &cfg.Kafka.Topic)

	e.str("LOG_LEVEL", &cfg.LogLevel)

	return e.err
}

// envReader applies set variables and keeps the first parse error.
type envReader struct {
	lookup lookupFunc
	err    error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (e *envReader) fail(key string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("invalid %s: %w", key, err)
	}
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) boolean(key string, dst *bool) {
	if v, ok := e.get(key); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.fail(key, err)
			return
		}
		*dst = b
	}
}

func (e *envReader) integer(key string, dst *int) {
	if v, ok := e.get(key); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail(key, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) duration(key string, dst *time.Duration) {
	if v, ok := e.get(key); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.fail(key, err)
			return
		}
		*dst = d
	}
}

func (e *envReader) list(key string, dst *[]string) {
	if v, ok := e.get(key); ok {
		*dst = pstrings.DedupeAndTrim(strings.Split(v, ","))
	}
}
