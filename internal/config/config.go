package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Port string

	// Logging configuration
	LogLevel string

	// Broker identity
	IssuerBaseURL string // e.g. https://broker.example.com, used to build issuer/endpoint URLs
	CallbackURL   string // redirect URI registered at every downstream provider

	// AWS configuration
	AWSRegion string

	// DynamoDB table names
	ServersTableName     string
	ScopesTableName      string
	ConnectionsTableName string
	MappingsTableName    string
	ClientsTableName     string
	JourneysTableName    string

	// Token configuration
	TokenEncryptionKey string // AES-256 key for downstream tokens and connection secrets
	SigningKeyPEM      string // optional PKCS#8 RSA private key; generated at startup if empty
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	AuthCodeTTL        time.Duration

	// Journey garbage collection
	JourneyTTL       time.Duration
	JourneyRetention time.Duration
	CleanupInterval  time.Duration

	// Admin API protection
	AdminAPIToken string

	// Optional YAML file pre-loading the registries at startup
	RegistrySeedFile string
}

// New creates a new Config instance by loading environment variables
// from .env file (if present) and OS environment.
// OS environment variables take precedence over .env file values.
// Panics if required configuration values are missing or invalid.
func New() *Config {
	// Load .env file from the working directory (silently ignore if not found)
	envPath := filepath.Join(".", ".env")
	_ = godotenv.Load(envPath)

	cfg := &Config{
		Port:     getEnvOrDefault("PORT", "3001"),
		LogLevel: getEnvOrDefault("LOG_LEVEL", "INFO"),

		IssuerBaseURL: getEnvOrDefault("ISSUER_BASE_URL", "http://localhost:3001"),
		CallbackURL:   getEnvOrDefault("CALLBACK_URL", "http://localhost:3001/api/v1/auth/callback"),

		AWSRegion: getEnvOrDefault("AWS_REGION", "us-east-1"),

		ServersTableName:     getEnvOrDefault("SERVERS_TABLE_NAME", "McpServers"),
		ScopesTableName:      getEnvOrDefault("SCOPES_TABLE_NAME", "McpScopes"),
		ConnectionsTableName: getEnvOrDefault("CONNECTIONS_TABLE_NAME", "McpConnections"),
		MappingsTableName:    getEnvOrDefault("MAPPINGS_TABLE_NAME", "McpScopeMappings"),
		ClientsTableName:     getEnvOrDefault("CLIENTS_TABLE_NAME", "McpClients"),
		JourneysTableName:    getEnvOrDefault("JOURNEYS_TABLE_NAME", "McpAuthJourneys"),

		TokenEncryptionKey: os.Getenv("TOKEN_ENCRYPTION_KEY"),
		SigningKeyPEM:      os.Getenv("SIGNING_KEY_PEM"),
		AccessTokenTTL:     getDurationOrDefault("ACCESS_TOKEN_TTL_SECONDS", 3600),
		RefreshTokenTTL:    getDurationOrDefault("REFRESH_TOKEN_TTL_SECONDS", 30*24*3600),
		AuthCodeTTL:        getDurationOrDefault("AUTH_CODE_TTL_SECONDS", 90),

		JourneyTTL:       getDurationOrDefault("JOURNEY_TTL_SECONDS", 3600),
		JourneyRetention: getDurationOrDefault("JOURNEY_RETENTION_SECONDS", 24*3600),
		CleanupInterval:  getDurationOrDefault("CLEANUP_INTERVAL_SECONDS", 300),

		AdminAPIToken: os.Getenv("ADMIN_API_TOKEN"),

		RegistrySeedFile: os.Getenv("REGISTRY_SEED_FILE"),
	}

	cfg.validate()

	return cfg
}

// validate checks that all required configuration values are present and valid
func (c *Config) validate() {
	var missing []string

	if c.TokenEncryptionKey == "" {
		missing = append(missing, "TOKEN_ENCRYPTION_KEY")
	}
	if c.AdminAPIToken == "" {
		missing = append(missing, "ADMIN_API_TOKEN")
	}

	if len(missing) > 0 {
		panic(fmt.Sprintf("Missing required configuration values: %v", missing))
	}

	// Encryption key must be 32 characters for AES-256
	if len(c.TokenEncryptionKey) != 32 {
		panic(fmt.Sprintf("TOKEN_ENCRYPTION_KEY must be exactly 32 characters (got %d)", len(c.TokenEncryptionKey)))
	}

	if c.AuthCodeTTL < 10*time.Second || c.AuthCodeTTL > 10*time.Minute {
		panic(fmt.Sprintf("AUTH_CODE_TTL_SECONDS out of range: %s", c.AuthCodeTTL))
	}
}

// getEnvOrDefault returns the value of an environment variable or a default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationOrDefault reads an integer-seconds environment variable
func getDurationOrDefault(key string, defaultSeconds int64) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.ParseInt(value, 10, 64); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return time.Duration(defaultSeconds) * time.Second
}
