package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreDynamoDB = "dynamodb"
	StoreMemory   = "memory"
)

// MaxBatchSize bounds BILLING_BATCH_SIZE.
const MaxBatchSize = 1000

// Audit backends.
const (
	AuditPostgres = "postgres"
	AuditRedis    = "redis"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NewRelic NewRelicConfig
	Billing  BillingConfig
	DynamoDB DynamoDBConfig
	Gateway  GatewayConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	Migrate  bool
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// BillingConfig holds billing pass configuration.
type BillingConfig struct {
	BatchSize        int
	Store            string
	Audit            string
	Timezone         string
	SchedulerEnabled bool
}

// Location resolves Timezone. An empty Timezone means the process's local zone.
func (c BillingConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("billing timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// DynamoDBConfig holds DynamoDB configuration.
type DynamoDBConfig struct {
	Region              string
	Endpoint            string
	AccessKeyID         string
	SecretAccessKey     string
	InvoicesTable       string
	FailedBillingsTable string
	CustomersTable      string
}

// GatewayConfig holds payment gateway configuration.
type GatewayConfig struct {
	Mock             bool
	AccessToken      string
	PaymentMethodID  string
	PayerEmailFormat string
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level       string
	Development bool
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 5*time.Minute),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "billing"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			Migrate:  getBoolEnv("DB_MIGRATE", true),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "billing-service"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
		Billing: BillingConfig{
			BatchSize:        getIntEnv("BILLING_BATCH_SIZE", 10),
			Store:            getEnv("BILLING_STORE", StorePostgres),
			Audit:            getEnv("BILLING_AUDIT", AuditPostgres),
			Timezone:         getEnv("BILLING_TIMEZONE", ""),
			SchedulerEnabled: getBoolEnv("BILLING_SCHEDULER_ENABLED", true),
		},
		DynamoDB: DynamoDBConfig{
			Region:              getEnv("AWS_REGION", "us-east-1"),
			Endpoint:            getEnv("DYNAMODB_ENDPOINT", ""),
			AccessKeyID:         getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:     getEnv("AWS_SECRET_ACCESS_KEY", ""),
			InvoicesTable:       getEnv("DYNAMODB_INVOICES_TABLE", "invoices"),
			FailedBillingsTable: getEnv("DYNAMODB_FAILED_BILLINGS_TABLE", "failed_billings"),
			CustomersTable:      getEnv("DYNAMODB_CUSTOMERS_TABLE", "customers"),
		},
		Gateway: GatewayConfig{
			Mock:             getBoolEnv("PAYMENT_GATEWAY_MOCK", true),
			AccessToken:      getEnv("MERCADOPAGO_ACCESS_TOKEN", ""),
			PaymentMethodID:  getEnv("MERCADOPAGO_PAYMENT_METHOD", "account_money"),
			PayerEmailFormat: getEnv("MERCADOPAGO_PAYER_EMAIL_FORMAT", "customer-%d@billing.local"),
		},
		Log: LogConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getBoolEnv("LOG_DEVELOPMENT", false),
		},
	}
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	if c.Billing.BatchSize <= 0 || c.Billing.BatchSize > MaxBatchSize {
		return fmt.Errorf("BILLING_BATCH_SIZE must be between 1 and %d, got %d", MaxBatchSize, c.Billing.BatchSize)
	}
	switch c.Billing.Store {
	case StorePostgres, StoreDynamoDB, StoreMemory:
	default:
		return fmt.Errorf("unknown BILLING_STORE %q", c.Billing.Store)
	}
	switch c.Billing.Audit {
	case AuditPostgres, AuditRedis:
	default:
		return fmt.Errorf("unknown BILLING_AUDIT %q", c.Billing.Audit)
	}
	if !c.Gateway.Mock && c.Gateway.AccessToken == "" {
		return fmt.Errorf("MERCADOPAGO_ACCESS_TOKEN is required when PAYMENT_GATEWAY_MOCK is false")
	}
	if _, err := c.Billing.Location(); err != nil {
		return err
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
