// Package config loads and validates service configuration from YAML files
// and FINSTREAM_-prefixed environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the root configuration for a finstream service instance.
type Config struct {
	Service     string `mapstructure:"service" validate:"required,oneof=payments ledger audit notifications"`
	Environment string `mapstructure:"environment" validate:"oneof=development staging production"`
	LogLevel    string `mapstructure:"log_level" validate:"oneof=debug info warn error"`

	HTTP          HTTPConfig          `mapstructure:"http"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Retry         RetryConfig         `mapstructure:"retry"`
	Ledger        LedgerConfig        `mapstructure:"ledger"`
	Audit         AuditConfig         `mapstructure:"audit"`
	Payments      PaymentsConfig      `mapstructure:"payments"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
}

// HTTPConfig configures the health/metrics surface.
type HTTPConfig struct {
	Port            int           `mapstructure:"port" validate:"min=1,max=65535"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// KafkaConfig configures the bus connection. Ledger traffic must be keyed by
// accountId so that all entries for one account land on one partition; the
// producer enforces this by hashing message keys.
type KafkaConfig struct {
	Brokers         []string      `mapstructure:"brokers" validate:"required,min=1"`
	ClientID        string        `mapstructure:"client_id" validate:"required"`
	GroupID         string        `mapstructure:"group_id" validate:"required"`
	DialTimeout     time.Duration `mapstructure:"dial_timeout"`
	DeadLetterTopic string        `mapstructure:"dead_letter_topic"`
}

// RetryConfig parameterizes publish retries with exponential backoff.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" validate:"min=1"`
	MinBackoff  time.Duration `mapstructure:"min_backoff"`
	MaxBackoff  time.Duration `mapstructure:"max_backoff"`
}

// LedgerConfig configures the balance engine.
type LedgerConfig struct {
	// Store selects the backing store: "memory" or "badger".
	Store string `mapstructure:"store" validate:"oneof=memory badger"`
	// BadgerPath is the on-disk location for the badger store.
	BadgerPath string `mapstructure:"badger_path"`
	// DedupCapacity bounds the entryId dedup index; it is the redelivery
	// window within which duplicates are absorbed.
	DedupCapacity int `mapstructure:"dedup_capacity" validate:"min=1"`
}

// AuditConfig configures the audit store and compliance rules.
type AuditConfig struct {
	// Capacity bounds the in-memory retained window; oldest events are
	// evicted FIFO beyond it.
	Capacity int `mapstructure:"capacity" validate:"min=1"`
	// HighValueThreshold is the PAYMENT_PROCESSED amount above which a
	// HIGH_VALUE_TRANSACTION violation fires.
	HighValueThreshold float64 `mapstructure:"high_value_threshold" validate:"gt=0"`
	// ArchivePath enables the sqlite archive when non-empty.
	ArchivePath string `mapstructure:"archive_path"`
}

// PaymentsConfig configures the payments service.
type PaymentsConfig struct {
	// SuccessRate drives the default simulated gateway outcome.
	SuccessRate float64 `mapstructure:"success_rate" validate:"gte=0,lte=1"`
}

// NotificationsConfig configures the notifications service.
type NotificationsConfig struct {
	SuccessRate float64 `mapstructure:"success_rate" validate:"gte=0,lte=1"`
}

// Load reads configuration from the optional file path and the environment,
// applies defaults and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("FINSTREAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service", "payments")
	v.SetDefault("environment", "production")
	v.SetDefault("log_level", "info")

	v.SetDefault("http.port", 3000)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.client_id", "finstream")
	v.SetDefault("kafka.group_id", "finstream-group")
	v.SetDefault("kafka.dial_timeout", 10*time.Second)
	v.SetDefault("kafka.dead_letter_topic", "finstream.dead-letter")

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.min_backoff", 100*time.Millisecond)
	v.SetDefault("retry.max_backoff", 1*time.Second)

	v.SetDefault("ledger.store", "memory")
	v.SetDefault("ledger.badger_path", "/var/lib/finstream/ledger")
	v.SetDefault("ledger.dedup_capacity", 100000)

	v.SetDefault("audit.capacity", 10000)
	v.SetDefault("audit.high_value_threshold", 10000)
	v.SetDefault("audit.archive_path", "")

	v.SetDefault("payments.success_rate", 0.95)
	v.SetDefault("notifications.success_rate", 0.98)
}
