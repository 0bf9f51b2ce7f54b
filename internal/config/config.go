package config

import (
	"os"      // For environment variables
	"strconv" // For string to int conversion
	"time"    // For durations

	"github.com/joho/godotenv" // For loading .env files
)

// Config holds the application configuration
type Config struct {
	AppPort    string        // Application port
	DBDriver   string        // Database driver: mysql or sqlite
	DBUser     string        // Database user
	DBPassword string        // Database password
	DBHost     string        // Database host
	DBPort     string        // Database port
	DBName     string        // Database name
	DBPath     string        // SQLite file path (sqlite driver only)
	JWTSecret  string        // JWT secret key
	SessionTTL time.Duration // Lifetime of an issued session token
	RedisAddr  string        // Redis server address, empty disables caching
	RedisPass  string        // Redis password
	RedisDB    int           // Redis database number
	IsProd     bool          // Is production environment

	GoogleClientID     string // OAuth client ID
	GoogleClientSecret string // OAuth client secret
	OAuthRedirectURL   string // OAuth callback URL registered with the provider
	OIDCIssuer         string // OIDC issuer URL

	UploadDir      string // Directory that holds uploaded blobs
	MaxUploadBytes int64  // Largest accepted upload

	SuiNetwork       string // Network name reported to clients
	SuiPackageID     string // Marketplace Move package
	SuiModuleName    string // Marketplace Move module
	SuiMarketplaceID string // Shared marketplace object

	AMQPURL      string // RabbitMQ URL, empty disables publishing
	AMQPExchange string // Exchange for domain events

	ReconcileInterval string        // Cron spec for the reconciler
	OutboundTimeout   time.Duration // Timeout for calls to external services
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	_ = godotenv.Load() // Load .env file if present
	redisDB, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	maxUpload, err := strconv.ParseInt(getEnv("MAX_UPLOAD_BYTES", "104857600"), 10, 64)
	if err != nil || maxUpload <= 0 {
		maxUpload = 100 << 20 // 100 MiB
	}
	return &Config{
		AppPort:    getEnv("APP_PORT", "8080"),
		DBDriver:   getEnv("DB_DRIVER", "mysql"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBName:     getEnv("DB_NAME", "cryptovault"),
		DBPath:     getEnv("DB_PATH", "cryptovault.db"),
		JWTSecret:  os.Getenv("JWT_SECRET"),
		SessionTTL: getDuration("SESSION_TTL", time.Hour),
		RedisAddr:  os.Getenv("REDIS_ADDR"),
		RedisPass:  os.Getenv("REDIS_PASS"),
		RedisDB:    redisDB,
		IsProd:     os.Getenv("IS_PROD") == "true",

		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		OAuthRedirectURL:   getEnv("OAUTH_REDIRECT_URL", "http://localhost:8080/api/auth/google/callback"),
		OIDCIssuer:         getEnv("OIDC_ISSUER", "https://accounts.google.com"),

		UploadDir:      getEnv("UPLOAD_DIR", "public/uploads"),
		MaxUploadBytes: maxUpload,

		SuiNetwork:       getEnv("SUI_NETWORK", "testnet"),
		SuiPackageID:     getEnv("SUI_PACKAGE_ID", "0x0"),
		SuiModuleName:    getEnv("SUI_MODULE_NAME", "marketplace"),
		SuiMarketplaceID: getEnv("SUI_MARKETPLACE_ID", "0x0"),

		AMQPURL:      os.Getenv("AMQP_URL"),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "cryptovault.events"),

		ReconcileInterval: getEnv("RECONCILE_INTERVAL", "@every 10m"),
		OutboundTimeout:   getDuration("OUTBOUND_TIMEOUT", 10*time.Second),
	}
}

// OAuthEnabled reports whether Google sign-in credentials are configured
func (c *Config) OAuthEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
