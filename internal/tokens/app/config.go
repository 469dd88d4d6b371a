package app

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	GRPCPort            int           // gRPC server port, 0 disables it (default: 9090)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)

	DatabaseFile  string // Path to SQLite database file (default: ./tokens.db)
	MasterKeyPath string // Optional: file holding the master key, otherwise AUTH_MASTER_KEY is used

	BasicClientID     string // Required: id callers present in the basic credential
	BasicClientSecret string // Required: secret callers present in the basic credential

	ClientStrategies string        // Tenant to claim strategy table, e.g. "tenantA=standard,tenantB=compact"
	RolesKey         string        // Optional: claim name carrying roles (default: authorities)
	RedisAddr        string        // Optional: enables the Redis policy cache
	PolicyCacheTTL   time.Duration // Policy cache entry lifetime (default: 5m)
	SeedFile         string        // Optional: YAML seed applied at startup
}

var ErrMissingBasicCredential = errors.New("app: AUTH_BASIC_CLIENT_ID and AUTH_BASIC_CLIENT_SECRET are required")

// LoadConfig reads the environment. A .env file in the working directory is
// loaded first when present; real environment variables win over it.
func LoadConfig() Config {
	_ = godotenv.Load()

	return Config{
		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		GRPCPort:            getEnvIntOrDefault("GRPC_PORT", 9090),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		DatabaseFile:        getEnvOrDefault("AUTH_DATABASE_FILE", "tokens.db"),
		MasterKeyPath:       os.Getenv("AUTH_MASTER_KEY_PATH"),
		BasicClientID:       os.Getenv("AUTH_BASIC_CLIENT_ID"),
		BasicClientSecret:   os.Getenv("AUTH_BASIC_CLIENT_SECRET"),
		ClientStrategies:    os.Getenv("AUTH_CLIENT_STRATEGIES"),
		RolesKey:            os.Getenv("AUTH_ROLES_KEY"),
		RedisAddr:           os.Getenv("AUTH_REDIS_ADDR"),
		PolicyCacheTTL:      getEnvDurationOrDefault("AUTH_POLICY_CACHE_TTL", 5*time.Minute),
		SeedFile:            os.Getenv("AUTH_SEED_FILE"),
	}
}

// Validate reports settings the service cannot start without.
func (c Config) Validate() error {
	if c.BasicClientID == "" || c.BasicClientSecret == "" {
		return ErrMissingBasicCredential
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are seconds.
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
