package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	OpenSearch OpenSearchConfig
	Typesense  TypesenseConfig
	Search     SearchConfig
	OTEL       OTELConfig
}

// AppConfig holds process-wide settings
type AppConfig struct {
	Env         string
	ServiceName string
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// OpenSearchConfig holds document index cluster configuration
type OpenSearchConfig struct {
	Addresses         []string
	Username          string
	Password          string
	RequestsPerSecond float64
	Burst             int
	BreakerFailures   int
	BreakerCooldown   time.Duration
}

// TypesenseConfig holds Typesense configuration
type TypesenseConfig struct {
	URL    string
	APIKey string
}

// SearchConfig holds search executor and taxonomy lookup settings
type SearchConfig struct {
	// Backend selects the document index: "opensearch" or "memory".
	Backend string
	// TaxonomySource selects name resolution: "typesense" or "index".
	TaxonomySource    string
	MaxResultWindow   int
	ChunkSize         int
	ChunkConcurrency  int
	ScrollKeepAlive   time.Duration
	Timeout           time.Duration
	TaxonomyCacheSize int
	TaxonomyCacheTTL  time.Duration
	// SeedDir holds <index>.ndjson files loaded into the memory backend at
	// startup
	SeedDir string
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Env:         getEnv("APP_ENV", "development"),
			ServiceName: getEnv("APP_SERVICE_NAME", "crm-data-platform"),
		},
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "crm_data_platform"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		OpenSearch: OpenSearchConfig{
			Addresses:         getEnvAsList("OPENSEARCH_ADDRESSES", []string{"http://localhost:9200"}),
			Username:          getEnv("OPENSEARCH_USERNAME", ""),
			Password:          getEnv("OPENSEARCH_PASSWORD", ""),
			RequestsPerSecond: getEnvAsFloat("OPENSEARCH_RPS", 50),
			Burst:             getEnvAsInt("OPENSEARCH_BURST", 10),
			BreakerFailures:   getEnvAsInt("OPENSEARCH_BREAKER_FAILURES", 5),
			BreakerCooldown:   getEnvAsDuration("OPENSEARCH_BREAKER_COOLDOWN", 30*time.Second),
		},
		Typesense: TypesenseConfig{
			URL:    getEnv("TYPESENSE_URL", "http://localhost:8108"),
			APIKey: getEnv("TYPESENSE_API_KEY", "xyz"),
		},
		Search: SearchConfig{
			Backend:           getEnv("SEARCH_BACKEND", "opensearch"),
			TaxonomySource:    getEnv("SEARCH_TAXONOMY_SOURCE", "index"),
			MaxResultWindow:   getEnvAsInt("SEARCH_MAX_RESULT_WINDOW", 10000),
			ChunkSize:         getEnvAsInt("SEARCH_CHUNK_SIZE", 1000),
			ChunkConcurrency:  getEnvAsInt("SEARCH_CHUNK_CONCURRENCY", 4),
			ScrollKeepAlive:   getEnvAsDuration("SEARCH_SCROLL_KEEP_ALIVE", 2*time.Minute),
			Timeout:           getEnvAsDuration("SEARCH_TIMEOUT", 10*time.Second),
			TaxonomyCacheSize: getEnvAsInt("SEARCH_TAXONOMY_CACHE_SIZE", 4096),
			TaxonomyCacheTTL:  getEnvAsDuration("SEARCH_TAXONOMY_CACHE_TTL", 10*time.Minute),
			SeedDir:           getEnv("SEARCH_SEED_DIR", ""),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "crm-data-platform"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}

	if cfg.Search.Backend != "opensearch" && cfg.Search.Backend != "memory" {
		return nil, fmt.Errorf("unsupported SEARCH_BACKEND %q", cfg.Search.Backend)
	}
	if cfg.Search.TaxonomySource != "typesense" && cfg.Search.TaxonomySource != "index" {
		return nil, fmt.Errorf("unsupported SEARCH_TAXONOMY_SOURCE %q", cfg.Search.TaxonomySource)
	}

	return cfg, nil
}

// IndexName returns the environment-scoped index name, e.g. companies_production
func (c *AppConfig) IndexName(base string) string {
	return fmt.Sprintf("%s_%s", base, c.Env)
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
