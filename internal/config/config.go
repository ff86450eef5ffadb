package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// ServerConfig holds the listen address settings
type ServerConfig struct {
	Host string
	Port string
}

// DatabaseConfig holds the sqlite storage settings
type DatabaseConfig struct {
	Path string
}

// TLSConfig holds optional TLS settings
type TLSConfig struct {
	Enabled    bool
	CertFile   string
	KeyFile    string
	MinVersion string
}

// Config is the full server configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	TLS      TLSConfig
}

// LoadConfig reads configuration from the environment, first merging in a
// .env file if one is present
func LoadConfig() *Config {
	if err := godotenv.Load(); err == nil {
		log.Printf("Loaded configuration from .env")
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnv("SERVER_PORT", "8080"),
		},
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/collabdeck.db"),
		},
		TLS: TLSConfig{
			Enabled:    getEnv("TLS_ENABLED", "false") == "true",
			CertFile:   getEnv("TLS_CERT_FILE", ""),
			KeyFile:    getEnv("TLS_KEY_FILE", ""),
			MinVersion: getEnv("TLS_MIN_VERSION", "1.2"),
		},
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
