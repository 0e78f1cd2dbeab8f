package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Config represents the application configuration
type Config struct {
	ServiceName string
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	RabbitMQ    RabbitMQConfig
	Invoice     InvoiceConfig
	Sale        SaleConfig
	Audit       AuditConfig
	JWT         JWTConfig
	Log         LogConfig
	Metrics     MetricsConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            string
	Env             string
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	LogLevel        string
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// RedisConfig holds the connection settings for the redis invoice sequencer
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RabbitMQConfig holds the outbound audit queue settings. An empty URL keeps
// audit events on the local log sink.
type RabbitMQConfig struct {
	URL             string
	Exchange        string
	ConnectAttempts int
	RetryDelay      time.Duration
}

// InvoiceConfig selects the invoice sequencer backend: postgres, redis or memory
type InvoiceConfig struct {
	Sequencer string
}

// SaleConfig holds the retry and compensation settings of the sale coordinator
type SaleConfig struct {
	CommitAttempts  int
	RetryBackoff    time.Duration
	RollbackTimeout time.Duration
}

// AuditConfig holds the audit dispatcher settings
type AuditConfig struct {
	BufferSize      int
	Workers         int
	DeliveryTimeout time.Duration
}

// JWTConfig holds JWT-related configuration
type JWTConfig struct {
	SigningKey      string
	ExpirationHours int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
}

// MetricsConfig holds metrics-related configuration
type MetricsConfig struct {
	Prefix string
}

// Load loads the application configuration from environment variables
func Load() (*Config, error) {
	// .env is optional, environment variables win
	_ = godotenv.Load()

	cfg := &Config{
		ServiceName: getEnv("SERVICE_NAME", "sale-service"),
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8085"),
			Env:             getEnv("APP_ENV", "development"),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "postgres"),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Name:            getEnv("DB_NAME", "sale_db"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 1*time.Hour),
			LogLevel:        getEnv("DB_LOG_LEVEL", "warn"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		RabbitMQ: RabbitMQConfig{
			URL:             getEnv("RABBITMQ_URL", ""),
			Exchange:        getEnv("RABBITMQ_EXCHANGE", "pos.audit"),
			ConnectAttempts: getEnvAsInt("RABBITMQ_CONNECT_ATTEMPTS", 5),
			RetryDelay:      getEnvAsDuration("RABBITMQ_RETRY_DELAY", 2*time.Second),
		},
		Invoice: InvoiceConfig{
			Sequencer: getEnv("INVOICE_SEQUENCER", "postgres"),
		},
		Sale: SaleConfig{
			CommitAttempts:  getEnvAsInt("SALE_COMMIT_ATTEMPTS", 3),
			RetryBackoff:    getEnvAsDuration("SALE_RETRY_BACKOFF", 50*time.Millisecond),
			RollbackTimeout: getEnvAsDuration("SALE_ROLLBACK_TIMEOUT", 10*time.Second),
		},
		Audit: AuditConfig{
			BufferSize:      getEnvAsInt("AUDIT_BUFFER_SIZE", 1024),
			Workers:         getEnvAsInt("AUDIT_WORKERS", 2),
			DeliveryTimeout: getEnvAsDuration("AUDIT_DELIVERY_TIMEOUT", 5*time.Second),
		},
		JWT: JWTConfig{
			SigningKey:      getEnv("JWT_SIGNING_KEY", "saleservicesecretkey"),
			ExpirationHours: getEnvAsInt("JWT_EXPIRATION_HOURS", 24),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Metrics: MetricsConfig{
			Prefix: getEnv("METRICS_PREFIX", "sale"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	switch c.Invoice.Sequencer {
	case "postgres", "redis", "memory":
	default:
		return fmt.Errorf("unsupported INVOICE_SEQUENCER %q", c.Invoice.Sequencer)
	}
	if c.Invoice.Sequencer == "postgres" && c.Database.Driver != "postgres" {
		return fmt.Errorf("INVOICE_SEQUENCER=postgres requires DB_DRIVER=postgres")
	}
	if c.Sale.CommitAttempts < 1 {
		return fmt.Errorf("SALE_COMMIT_ATTEMPTS must be at least 1, got %d", c.Sale.CommitAttempts)
	}
	if c.Audit.Workers < 1 {
		return fmt.Errorf("AUDIT_WORKERS must be at least 1, got %d", c.Audit.Workers)
	}
	return nil
}

// LogFields returns the configuration as zap fields. Secrets are left out.
func (c *Config) LogFields() []zap.Field {
	return []zap.Field{
		zap.String("service", c.ServiceName),
		zap.String("environment", c.Server.Env),
		zap.String("server_port", c.Server.Port),
		zap.String("db_driver", c.Database.Driver),
		zap.String("db_host", c.Database.Host),
		zap.String("db_name", c.Database.Name),
		zap.String("invoice_sequencer", c.Invoice.Sequencer),
		zap.Bool("audit_queue", c.RabbitMQ.URL != ""),
		zap.Int("commit_attempts", c.Sale.CommitAttempts),
	}
}

// Helper functions to get environment variables with defaults
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
