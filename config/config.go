package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultTokenTTL          = 7 * 24 * time.Hour
	defaultBootstrapAttempts = 5
	defaultBootstrapDelay    = 5 * time.Second
)

type Config struct {
	Env        string
	ServerPort int
	Database   DatabaseConfig
	JWT        JWTConfig
	Bootstrap  BootstrapConfig

	// MigrationsURL is a golang-migrate source URL.
	MigrationsURL string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	UseSSL   bool
}

type JWTConfig struct {
	Secret   string
	TokenTTL time.Duration
}

// BootstrapConfig bounds the startup schema/seed retry loop.
type BootstrapConfig struct {
	MaxAttempts int
	RetryDelay  time.Duration
}

func LoadConfig() Config {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", "postgres"),
		DBName:   getEnv("DB_NAME", "joineazy_feedback"),
		UseSSL:   getEnvBool("DB_SSL", false),
	}

	return Config{
		Env:        getEnv("ENV", "dev"),
		ServerPort: getEnvInt("SERVER_PORT", 8080),
		Database:   dbConfig,
		JWT: JWTConfig{
			Secret:   os.Getenv("JWT_SECRET"),
			TokenTTL: getEnvDuration("JWT_EXPIRES_IN", defaultTokenTTL),
		},
		Bootstrap: BootstrapConfig{
			MaxAttempts: getEnvInt("DB_BOOTSTRAP_ATTEMPTS", defaultBootstrapAttempts),
			RetryDelay:  getEnvDuration("DB_BOOTSTRAP_DELAY", defaultBootstrapDelay),
		},
		MigrationsURL: getEnv("MIGRATIONS_URL", "file://internal/db/migrations"),
	}
}

// Production reports whether error details must be suppressed in failure
// responses.
func (c Config) Production() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		var value int
		fmt.Sscanf(valueStr, "%d", &value)
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		return valueStr == "true" || valueStr == "1"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := time.ParseDuration(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}
