package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Log      LogConfig      `mapstructure:"log"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Notifier NotifierConfig `mapstructure:"notifier"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

// Storage drivers understood by DatabaseConfig.Driver.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres, memory
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LockTimeout     time.Duration `mapstructure:"lock_timeout"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// LedgerConfig tunes the wallet ledger.
type LedgerConfig struct {
	Currency        string `mapstructure:"currency"`
	MaxRetries      int    `mapstructure:"max_retries"` // extra attempts after a concurrency conflict
	DefaultPageSize int    `mapstructure:"default_page_size"`
	MaxPageSize     int    `mapstructure:"max_page_size"`

	AdjustmentRoles []string `mapstructure:"adjustment_roles"` // token roles allowed to post manual adjustments
}

type NotifierConfig struct {
	Kafka  KafkaConfig  `mapstructure:"kafka"`
	Mailer MailerConfig `mapstructure:"mailer"`
}

// KafkaConfig configures the ledger event writer. Async writes return as
// soon as events are queued; delivery failures are logged.
type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	Async        bool          `mapstructure:"async"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
}

// MailerConfig points at the mail-dispatch endpoint that turns ledger
// notices into in-app notifications and emails.
type MailerConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	URL     string        `mapstructure:"url"`
	Secret  string        `mapstructure:"secret"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: LEDGER_.
// Nested keys use underscore: LEDGER_DATABASE_HOST, LEDGER_JWT_SECRET, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "staffing_ledger")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.lock_timeout", "5s")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "12h")
	v.SetDefault("jwt.issuer", "staffing-ledger")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("ledger.currency", "GBP")
	v.SetDefault("ledger.max_retries", 2)
	v.SetDefault("ledger.default_page_size", 20)
	v.SetDefault("ledger.max_page_size", 100)
	v.SetDefault("ledger.adjustment_roles", []string{"admin", "finance"})
	v.SetDefault("notifier.kafka.enabled", false)
	v.SetDefault("notifier.kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("notifier.kafka.topic", "ledger.events")
	v.SetDefault("notifier.kafka.async", true)
	v.SetDefault("notifier.kafka.batch_timeout", "10ms")
	v.SetDefault("notifier.kafka.write_timeout", "5s")
	v.SetDefault("notifier.kafka.max_attempts", 3)
	v.SetDefault("notifier.mailer.enabled", false)
	v.SetDefault("notifier.mailer.url", "")
	v.SetDefault("notifier.mailer.secret", "")
	v.SetDefault("notifier.mailer.timeout", "10s")

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: LEDGER_DATABASE_HOST -> database.host
	v.SetEnvPrefix("LEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Ledger.MaxRetries < 0 {
		return fmt.Errorf("ledger.max_retries must not be negative")
	}
	if c.Ledger.DefaultPageSize < 1 || c.Ledger.MaxPageSize < c.Ledger.DefaultPageSize {
		return fmt.Errorf("ledger page sizes must satisfy 1 <= default_page_size <= max_page_size")
	}
	if c.Notifier.Mailer.Enabled && c.Notifier.Mailer.URL == "" {
		return fmt.Errorf("notifier.mailer.url is required when the mailer is enabled")
	}
	return nil
}
