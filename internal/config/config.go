package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	AppEnv   string
	Port     string
	LogLevel string
	Database DatabaseConfig
	CNPJ     CNPJConfig
	Catalog  *CatalogConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL      string // full DSN, takes precedence over the discrete fields
	Host     string
	Port     string
	Username string
	Password string
	Database string
	SSLMode  string
	Alter    bool
}

// CNPJConfig points at the public CNPJ registry used to prefill clients.
type CNPJConfig struct {
	BaseURL string
	Timeout time.Duration
}

// Embedded reports whether the local embedded PostgreSQL should be started
// instead of connecting to an external server.
func (d DatabaseConfig) Embedded() bool {
	return d.URL == "" && d.Host == "localhost" && d.Password == ""
}

// DSN builds the connection string for the postgres driver.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.Username, d.Password, d.Database, d.SSLMode,
	)
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	port := getEnv("PORT", "3210")
	if _, err := strconv.Atoi(port); err != nil {
		return nil, fmt.Errorf("PORT must be numeric, got %q", port)
	}

	return &Config{
		AppEnv:   getEnv("APP_ENV", "development"),
		Port:     port,
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Database: DatabaseConfig{
			URL:      os.Getenv("DATABASE_URL"),
			Host:     getEnv("PG_HOST", "localhost"),
			Port:     getEnv("PG_PORT", "5432"),
			Username: getEnv("PG_USERNAME", "postgres"),
			Password: os.Getenv("PG_PASSWORD"),
			Database: getEnv("PG_DATABASE", "nfecatalog"),
			SSLMode:  getEnv("PG_SSLMODE", "disable"),
			Alter:    getBoolEnv("DB_ALTER", false),
		},
		CNPJ: CNPJConfig{
			BaseURL: getEnv("CNPJ_API_URL", "https://publica.cnpj.ws/cnpj"),
			Timeout: time.Duration(getIntEnv("CNPJ_API_TIMEOUT", 30)) * time.Second,
		},
		Catalog: LoadCatalogConfig(),
	}, nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}
