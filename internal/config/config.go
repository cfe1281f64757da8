// internal/config/config.go

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	NATS        NATSConfig
	Trends      TrendsConfig
	Search      SearchConfig
	Simulation  SimulationConfig
	Output      OutputConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CorsOrigins     []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Enabled      bool
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
	SSLMode      string
}

// NATSConfig holds NATS configuration
type NATSConfig struct {
	Enabled        bool
	URL            string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectTimeout time.Duration
}

// TrendsConfig holds trends API configuration
type TrendsConfig struct {
	BaseURL           string
	DeveloperKey      string
	Timeout           time.Duration
	RequestsPerSecond float64
	MaxRetries        int
	BackoffMultiplier float64
	MaxBackoff        time.Duration
	StrictErrors      bool
}

// SearchConfig holds custom search API configuration
type SearchConfig struct {
	URL      string
	EngineID string
	Key      string
}

// SimulationConfig holds keyword expansion configuration
type SimulationConfig struct {
	MaxDepth       int
	BatchSize      int
	PartialVolumes bool
	EventsTopic    string
}

// OutputConfig holds export configuration
type OutputConfig struct {
	Dir    string
	Format string
}

// Load loads configuration from a .env file, if any, and environment variables
func Load() (Config, error) {
	// A missing .env file is fine; the environment still applies
	_ = godotenv.Load()

	config := Config{
		Environment: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			CorsOrigins:     getEnvAsSlice("SERVER_CORS_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Enabled:      getEnvAsBool("DB_ENABLED", true),
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvAsInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", "postgres"),
			Database:     getEnv("DB_NAME", "wallace"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 2),
			MaxLifetime:  getEnvAsDuration("DB_MAX_LIFETIME", 5*time.Minute),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
		},
		NATS: NATSConfig{
			Enabled:        getEnvAsBool("NATS_ENABLED", true),
			URL:            getEnv("NATS_URL", "nats://localhost:4222"),
			MaxReconnects:  getEnvAsInt("NATS_MAX_RECONNECTS", 10),
			ReconnectWait:  getEnvAsDuration("NATS_RECONNECT_WAIT", 1*time.Second),
			ConnectTimeout: getEnvAsDuration("NATS_CONNECT_TIMEOUT", 2*time.Second),
		},
		Trends: TrendsConfig{
			BaseURL:           getEnv("TRENDS_BASE_URL", "https://www.googleapis.com/trends/v1beta"),
			DeveloperKey:      getEnv("TRENDS_DEVELOPER_KEY", ""),
			Timeout:           getEnvAsDuration("TRENDS_TIMEOUT", 30*time.Second),
			RequestsPerSecond: getEnvAsFloat("TRENDS_REQUESTS_PER_SECOND", 1.0),
			MaxRetries:        getEnvAsInt("TRENDS_MAX_RETRIES", 5),
			BackoffMultiplier: getEnvAsFloat("TRENDS_BACKOFF_MULTIPLIER", 2.0),
			MaxBackoff:        getEnvAsDuration("TRENDS_MAX_BACKOFF", 30*time.Second),
			StrictErrors:      getEnvAsBool("TRENDS_STRICT_ERRORS", false),
		},
		Search: SearchConfig{
			URL:      getEnv("SEARCH_URL", "https://www.googleapis.com/customsearch/v1"),
			EngineID: getEnv("SEARCH_ENGINE_ID", ""),
			Key:      getEnv("SEARCH_API_KEY", ""),
		},
		Simulation: SimulationConfig{
			MaxDepth:       getEnvAsInt("SIMULATION_MAX_DEPTH", 3),
			BatchSize:      getEnvAsInt("SIMULATION_BATCH_SIZE", 30),
			PartialVolumes: getEnvAsBool("SIMULATION_PARTIAL_VOLUMES", false),
			EventsTopic:    getEnv("SIMULATION_EVENTS_TOPIC", "simulation"),
		},
		Output: OutputConfig{
			Dir:    getEnv("OUTPUT_DIR", "output"),
			Format: getEnv("OUTPUT_FORMAT", "csv"),
		},
	}

	return config, validate(config)
}

// validate checks if config is valid
func validate(config Config) error {
	if config.Trends.DeveloperKey == "" && config.Environment != "development" {
		return fmt.Errorf("TRENDS_DEVELOPER_KEY must be set in non-development environments")
	}

	if config.Simulation.MaxDepth < 1 {
		return fmt.Errorf("simulation max depth must be at least 1, got %d", config.Simulation.MaxDepth)
	}

	if config.Simulation.BatchSize < 1 || config.Simulation.BatchSize > 30 {
		return fmt.Errorf("simulation batch size must be between 1 and 30, got %d", config.Simulation.BatchSize)
	}

	if config.Trends.MaxRetries < 0 {
		return fmt.Errorf("trends max retries must not be negative, got %d", config.Trends.MaxRetries)
	}

	switch config.Output.Format {
	case "csv", "xlsx":
	default:
		return fmt.Errorf("unsupported output format %q", config.Output.Format)
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

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	return strings.Split(valueStr, ",")
}

// DatabaseURL returns the postgres connection string
func (c DatabaseConfig) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}
