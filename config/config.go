package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Hansade2005/pixel-pilot-sub013/internal/logger"
)

var (
	customLog = logger.NewLogger()
)

// Supported storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds application configuration values
type Config struct {
	ServerPort     string
	JWTSecret      string
	JWTExpiration  time.Duration
	DatabaseDriver string
	DatabaseURL    string
	MetadataDbDir  string
	MetadataDbFile string
	RedisURL       string
	RequestTimeout time.Duration
	CORSOrigins    []string

	DefaultAPIRateLimit    int
	AuthRateLimitPerMinute int
	IndexConcurrency       int
}

// fileConfig is the optional YAML overlay named by CONFIG_FILE. Zero values leave
// the environment value in place.
type fileConfig struct {
	ServerPort             string   `yaml:"server_port"`
	JWTExpirationHours     int      `yaml:"jwt_expiration_hours"`
	DatabaseDriver         string   `yaml:"database_driver"`
	DatabaseURL            string   `yaml:"database_url"`
	DatabaseDirectory      string   `yaml:"database_directory"`
	DatabaseFile           string   `yaml:"database_file"`
	RedisURL               string   `yaml:"redis_url"`
	RequestTimeoutSeconds  int      `yaml:"request_timeout_seconds"`
	CORSAllowedOrigins     []string `yaml:"cors_allowed_origins"`
	DefaultAPIRateLimit    int      `yaml:"default_api_rate_limit"`
	AuthRateLimitPerMinute int      `yaml:"auth_rate_limit_per_minute"`
	IndexConcurrency       int      `yaml:"index_concurrency"`
}

// LoadConfig loads configuration from environment variables.
// It uses a .env file for local development if present (ignores it for production),
// then applies the YAML file named by CONFIG_FILE, if any.
func LoadConfig() (*Config, error) {
	customLog.Println("Loading configuration from environment variables...")

	// Attempt to load .env file if in development environment (skip in production)
	if os.Getenv("APP_ENV") != "production" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			customLog.Warnf("Warning: Error loading .env file: %v", err)
		}
	}

	port := getEnv("SERVER_PORT", "8080")
	jwtSecret := getEnvOptional("JWT_SECRET")
	if jwtSecret == "" {
		return nil, errors.New("JWT_SECRET environment variable must be set")
	}
	if jwtSecret == "!!replace_this_with_a_real_secret_key!!" {
		customLog.Warnln("WARNING: JWT_SECRET is set to the default placeholder!")
	}

	cfg := &Config{
		ServerPort:             strings.TrimPrefix(port, ":"),
		JWTSecret:              jwtSecret,
		JWTExpiration:          time.Hour * time.Duration(getEnvInt("JWT_EXPIRATION_HOURS", 24)),
		DatabaseDriver:         strings.ToLower(getEnv("DATABASE_DRIVER", DriverSQLite)),
		DatabaseURL:            getEnvOptional("DATABASE_URL"),
		MetadataDbDir:          getEnv("DATABASE_DIRECTORY", "data"),
		MetadataDbFile:         getEnv("DATABASE_DIRECTORY_FILE", "metadata.db"),
		RedisURL:               getEnvOptional("REDIS_URL"),
		RequestTimeout:         time.Second * time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 30)),
		CORSOrigins:            splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		DefaultAPIRateLimit:    getEnvInt("DEFAULT_API_RATE_LIMIT", 1000),
		AuthRateLimitPerMinute: getEnvInt("AUTH_RATE_LIMIT_PER_MINUTE", 5),
		IndexConcurrency:       getEnvInt("INDEX_CONCURRENCY", 4),
	}

	if path := getEnvOptional("CONFIG_FILE"); path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	customLog.Printf("Configuration loaded successfully. Port: %s, Driver: %s, JWT Exp: %v, Request timeout: %v",
		cfg.ServerPort, cfg.DatabaseDriver, cfg.JWTExpiration, cfg.RequestTimeout)
	return cfg, nil
}

// Validate checks the combination of settings.
func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case DriverSQLite:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL must be set when DATABASE_DRIVER is postgres")
		}
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q (want sqlite or postgres)", c.DatabaseDriver)
	}
	if c.RequestTimeout <= 0 {
		return errors.New("REQUEST_TIMEOUT_SECONDS must be positive")
	}
	return nil
}

func applyFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	customLog.Printf("Applying configuration file %s", path)

	if fc.ServerPort != "" {
		cfg.ServerPort = strings.TrimPrefix(fc.ServerPort, ":")
	}
	if fc.JWTExpirationHours > 0 {
		cfg.JWTExpiration = time.Hour * time.Duration(fc.JWTExpirationHours)
	}
	if fc.DatabaseDriver != "" {
		cfg.DatabaseDriver = strings.ToLower(fc.DatabaseDriver)
	}
	if fc.DatabaseURL != "" {
		cfg.DatabaseURL = fc.DatabaseURL
	}
	if fc.DatabaseDirectory != "" {
		cfg.MetadataDbDir = fc.DatabaseDirectory
	}
	if fc.DatabaseFile != "" {
		cfg.MetadataDbFile = fc.DatabaseFile
	}
	if fc.RedisURL != "" {
		cfg.RedisURL = fc.RedisURL
	}
	if fc.RequestTimeoutSeconds > 0 {
		cfg.RequestTimeout = time.Second * time.Duration(fc.RequestTimeoutSeconds)
	}
	if len(fc.CORSAllowedOrigins) > 0 {
		cfg.CORSOrigins = fc.CORSAllowedOrigins
	}
	if fc.DefaultAPIRateLimit > 0 {
		cfg.DefaultAPIRateLimit = fc.DefaultAPIRateLimit
	}
	if fc.AuthRateLimitPerMinute > 0 {
		cfg.AuthRateLimitPerMinute = fc.AuthRateLimitPerMinute
	}
	if fc.IndexConcurrency > 0 {
		cfg.IndexConcurrency = fc.IndexConcurrency
	}
	return nil
}

// getEnv reads an environment variable or returns a default value.
// It also checks for required critical variables.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	// Return the fallback value, but only if it isn't critical.
	if fallback == "" {
		customLog.Fatalf("Critical environment variable '%s' is missing and has no fallback.", key)
	}
	return fallback
}

func getEnvOptional(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func getEnvInt(key string, fallback int) int {
	raw := getEnv(key, strconv.Itoa(fallback))
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		customLog.Warnf("Invalid %s '%s'. Using default %d. Error: %v", key, raw, fallback, err)
		return fallback
	}
	return n
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
