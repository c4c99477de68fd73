package common

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/extract-annotator/constants"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Reanchor ReanchorConfig
	Limits   LimitsConfig
	Tracing  TracingConfig
	Dynamo   DynamoConfig
	LogLevel slog.Level
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
	AutoMigrate      bool
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr        string
	HTTPAddr        string
	RateLimit       float64 // requests per second per client IP, 0 disables
	RateBurst       int
	// TrustedProxies are addresses or CIDRs whose forwarding headers name the
	// client. Empty means the peer address is always the client.
	TrustedProxies  []string
	ShutdownTimeout time.Duration
}

// ReanchorConfig sizes the re-anchoring worker pool.
type ReanchorConfig struct {
	Workers    int
	QueueSize  int
	JobTimeout time.Duration
}

// LimitsConfig bounds user input.
type LimitsConfig struct {
	MaxCommentLength  int
	MaxViewTextLength int
	MaxImportBytes    int64
}

// TracingConfig configures OpenTelemetry export. An empty endpoint keeps spans
// in-process.
type TracingConfig struct {
	Endpoint    string
	Insecure    bool
	ServiceName string
	SampleRatio float64
}

// DynamoConfig selects the DynamoDB span backend when Table is set.
type DynamoConfig struct {
	Table    string
	Region   string
	Endpoint string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", "file:annotations.db?_pragma=foreign_keys(1)"),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
			AutoMigrate:      getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Server: ServerConfig{
			GRPCAddr:        getEnv("GRPC_ADDR", ":8080"),
			HTTPAddr:        getEnv("HTTP_ADDR", ":8081"),
			RateLimit:       getEnvAsFloat64("RATE_LIMIT_RPS", 20),
			RateBurst:       getEnvAsInt("RATE_LIMIT_BURST", 40),
			TrustedProxies:  getEnvAsList("TRUSTED_PROXIES"),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Reanchor: ReanchorConfig{
			Workers:    getEnvAsInt("REANCHOR_WORKERS", 2),
			QueueSize:  getEnvAsInt("REANCHOR_QUEUE_SIZE", 64),
			JobTimeout: getEnvAsDuration("REANCHOR_JOB_TIMEOUT", 30*time.Second),
		},
		Limits: LimitsConfig{
			MaxCommentLength:  getEnvAsInt("MAX_COMMENT_LENGTH", constants.MaxCommentLength),
			MaxViewTextLength: getEnvAsInt("MAX_VIEW_TEXT_LENGTH", constants.MaxViewTextLength),
			MaxImportBytes:    int64(getEnvAsInt("MAX_IMPORT_BYTES", 8<<20)),
		},
		Tracing: TracingConfig{
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Insecure:    getEnvAsBool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "annotationsd"),
			SampleRatio: getEnvAsFloat64("OTEL_SAMPLE_RATIO", 1.0),
		},
		Dynamo: DynamoConfig{
			Table:    getEnv("DYNAMODB_TABLE", ""),
			Region:   getEnv("AWS_REGION", ""),
			Endpoint: getEnv("DYNAMODB_ENDPOINT", ""),
		},
		LogLevel: getEnvAsLevel("LOG_LEVEL", slog.LevelInfo),
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping empty entries.
func getEnvAsList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsLevel(key string, defaultValue slog.Level) slog.Level {
	if value := os.Getenv(key); value != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(strings.ToUpper(value))); err == nil {
			return level
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" && c.Dynamo.Table == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL or DYNAMODB_TABLE is required", ErrInvalidInput)
	}
	if c.Server.GRPCAddr == "" && c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "GRPC_ADDR or HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Reanchor.Workers < 1 {
		return NewAppError("CONFIG_ERROR", "REANCHOR_WORKERS must be at least 1", ErrInvalidInput)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return NewAppError("CONFIG_ERROR", "OTEL_SAMPLE_RATIO must be within [0, 1]", ErrInvalidInput)
	}
	return nil
}
