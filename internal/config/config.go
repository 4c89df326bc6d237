package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/flexprice/retainer/internal/types"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. RETAINER_POSTGRES_HOST
const EnvPrefix = "RETAINER"

type Configuration struct {
	Deployment DeploymentConfig `validate:"required"`
	Logging    LoggingConfig    `validate:"required"`
	Postgres   PostgresConfig   `validate:"required"`
	Billing    BillingConfig    `validate:"required"`
	Sentry     SentryConfig
	Cache      CacheConfig
	Event      EventConfig `validate:"required"`
}

type DeploymentConfig struct {
	Mode types.RunMode `mapstructure:"mode" validate:"required,oneof=local production"`
}

type LoggingConfig struct {
	Level types.LogLevel `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}

type PostgresConfig struct {
	Host                   string `mapstructure:"host" validate:"required"`
	Port                   int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	User                   string `mapstructure:"user" validate:"required"`
	Password               string `mapstructure:"password"`
	DBName                 string `mapstructure:"dbname" validate:"required"`
	SSLMode                string `mapstructure:"sslmode" validate:"required"`
	MaxOpenConns           int    `mapstructure:"max_open_conns" validate:"min=0"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns" validate:"min=0"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes" validate:"min=0"`
	// MaxTxRetries bounds how often a conflicting transaction is replayed
	MaxTxRetries int `mapstructure:"max_tx_retries" validate:"min=0,max=20"`
}

type BillingConfig struct {
	Currency string `mapstructure:"currency" validate:"required,len=3"`
	// TaxRate is a decimal string so that 0.1 stays exact
	TaxRate         string           `mapstructure:"tax_rate" validate:"required"`
	CutoffMode      types.CutoffMode `mapstructure:"cutoff_mode" validate:"required,oneof=previous_month current_month"`
	PaymentTermDays int              `mapstructure:"payment_term_days" validate:"min=0,max=365"`
	Timezone        string           `mapstructure:"timezone" validate:"required"`
	// BulkConcurrency bounds the workers of a bulk generation run
	BulkConcurrency int `mapstructure:"bulk_concurrency" validate:"min=1,max=64"`
}

type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate" validate:"min=0,max=1"`
}

type CacheConfig struct {
	Enabled                  bool `mapstructure:"enabled"`
	DefaultExpirationMinutes int  `mapstructure:"default_expiration_minutes" validate:"min=0"`
	CleanupIntervalMinutes   int  `mapstructure:"cleanup_interval_minutes" validate:"min=0"`
}

// EventConfig holds configuration for billing event publishing
type EventConfig struct {
	Backend  types.PublisherBackend `mapstructure:"backend" validate:"required,oneof=memory kafka"`
	Topic    string                 `mapstructure:"topic" validate:"required"`
	Brokers  []string               `mapstructure:"brokers"`
	ClientID string                 `mapstructure:"client_id"`
}

// NewConfig loads the configuration from the default search paths
func NewConfig() (*Configuration, error) {
	return Load("")
}

// Load reads config.yaml from path, or from the default search paths when
// path is empty, applies RETAINER_* overrides and validates the result
func Load(path string) (*Configuration, error) {
	loadDotEnv()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./internal/config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/retainer")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// loadDotEnv reads .env in local mode. A missing file is not an error.
func loadDotEnv() {
	mode := os.Getenv(EnvPrefix + "_DEPLOYMENT_MODE")
	if mode != "" && mode != string(types.ModeLocal) {
		return
	}
	_ = godotenv.Load()
}

func setDefaults(v *viper.Viper) {
	d := GetDefaultConfig()
	v.SetDefault("deployment.mode", d.Deployment.Mode)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("postgres.host", d.Postgres.Host)
	v.SetDefault("postgres.port", d.Postgres.Port)
	v.SetDefault("postgres.user", d.Postgres.User)
	v.SetDefault("postgres.password", d.Postgres.Password)
	v.SetDefault("postgres.dbname", d.Postgres.DBName)
	v.SetDefault("postgres.sslmode", d.Postgres.SSLMode)
	v.SetDefault("postgres.max_open_conns", d.Postgres.MaxOpenConns)
	v.SetDefault("postgres.max_idle_conns", d.Postgres.MaxIdleConns)
	v.SetDefault("postgres.conn_max_lifetime_minutes", d.Postgres.ConnMaxLifetimeMinutes)
	v.SetDefault("postgres.max_tx_retries", d.Postgres.MaxTxRetries)
	v.SetDefault("billing.currency", d.Billing.Currency)
	v.SetDefault("billing.tax_rate", d.Billing.TaxRate)
	v.SetDefault("billing.cutoff_mode", d.Billing.CutoffMode)
	v.SetDefault("billing.payment_term_days", d.Billing.PaymentTermDays)
	v.SetDefault("billing.timezone", d.Billing.Timezone)
	v.SetDefault("billing.bulk_concurrency", d.Billing.BulkConcurrency)
	v.SetDefault("sentry.enabled", d.Sentry.Enabled)
	v.SetDefault("sentry.sample_rate", d.Sentry.SampleRate)
	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.default_expiration_minutes", d.Cache.DefaultExpirationMinutes)
	v.SetDefault("cache.cleanup_interval_minutes", d.Cache.CleanupIntervalMinutes)
	v.SetDefault("event.backend", d.Event.Backend)
	v.SetDefault("event.topic", d.Event.Topic)
	v.SetDefault("event.client_id", d.Event.ClientID)
}

func (c Configuration) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	rate, err := c.Billing.GetTaxRate()
	if err != nil {
		return err
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("invalid config: billing.tax_rate %s must be between 0 and 1", c.Billing.TaxRate)
	}

	if _, err := c.Billing.GetLocation(); err != nil {
		return err
	}

	if c.Event.Backend == types.PublisherBackendKafka && len(c.Event.Brokers) == 0 {
		return errors.New("invalid config: event.brokers is required for the kafka backend")
	}

	return nil
}

// GetDefaultConfig returns a default configuration for local development
// This is useful for running scripts, tests or other non-server applications
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Logging:    LoggingConfig{Level: types.LogLevelDebug},
		Postgres: PostgresConfig{
			Host:                   "localhost",
			Port:                   5432,
			User:                   "retainer",
			Password:               "retainer",
			DBName:                 "retainer",
			SSLMode:                "disable",
			MaxOpenConns:           10,
			MaxIdleConns:           5,
			ConnMaxLifetimeMinutes: 30,
			MaxTxRetries:           5,
		},
		Billing: BillingConfig{
			Currency:        "JPY",
			TaxRate:         "0.10",
			CutoffMode:      types.CutoffModePreviousMonth,
			PaymentTermDays: 30,
			Timezone:        "Asia/Tokyo",
			BulkConcurrency: 4,
		},
		Sentry: SentryConfig{
			Enabled:    false,
			SampleRate: 1.0,
		},
		Cache: CacheConfig{
			Enabled:                  true,
			DefaultExpirationMinutes: 30,
			CleanupIntervalMinutes:   60,
		},
		Event: EventConfig{
			Backend:  types.PublisherBackendMemory,
			Topic:    "billing_events",
			ClientID: "retainer",
		},
	}
}

func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"user=%s password=%s dbname=%s host=%s port=%d sslmode=%s",
		c.User,
		c.Password,
		c.DBName,
		c.Host,
		c.Port,
		c.SSLMode,
	)
}

// GetTaxRate parses the configured flat tax rate
func (c BillingConfig) GetTaxRate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(c.TaxRate)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid config: billing.tax_rate %q: %w", c.TaxRate, err)
	}
	return rate, nil
}

// GetLocation loads the billing time zone all calendar dates are interpreted in
func (c BillingConfig) GetLocation() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid config: billing.timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
