package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Mapping   MappingConfig
	LogLevel  string
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// RedisConfig is optional: an empty Host disables the lookup cache and the
// Redis-backed rate limiter.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	CacheTTL time.Duration
}

// AuthConfig selects the bearer-token verifier. OIDC wins when IssuerURL is
// set; otherwise the shared JWT secret; AllowInsecure is a last-resort escape
// hatch for local development only.
type AuthConfig struct {
	JWTSecret     string
	IssuerURL     string
	ClientID      string
	AllowInsecure bool
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	UseRedis          bool
}

// MappingConfig points at an optional JSON attribute-rules file; empty means
// the built-in rule table.
type MappingConfig struct {
	RulesFile string
}

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "5002")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_ENVIRONMENT", "development")
	viper.SetDefault("MONGODB_DATABASE", "scimbridge")
	viper.SetDefault("MONGODB_TIMEOUT", 10)
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_CACHE_TTL", 300)
	viper.SetDefault("RATE_LIMIT_RPS", 25)
	viper.SetDefault("RATE_LIMIT_BURST", 50)
	viper.SetDefault("LOG_LEVEL", "info")

	cfg := &Config{
		Server: ServerConfig{
			Port:         viper.GetString("SERVER_PORT"),
			Host:         viper.GetString("SERVER_HOST"),
			Environment:  viper.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		MongoDB: MongoDBConfig{
			URI:      viper.GetString("MONGODB_URI"),
			Database: viper.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(viper.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       0,
			CacheTTL: time.Duration(viper.GetInt("REDIS_CACHE_TTL")) * time.Second,
		},
		Auth: AuthConfig{
			JWTSecret:     os.Getenv("JWT_SECRET"),
			IssuerURL:     viper.GetString("OIDC_ISSUER_URL"),
			ClientID:      viper.GetString("OIDC_CLIENT_ID"),
			AllowInsecure: viper.GetBool("AUTH_ALLOW_INSECURE"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: viper.GetFloat64("RATE_LIMIT_RPS"),
			Burst:             viper.GetInt("RATE_LIMIT_BURST"),
			UseRedis:          viper.GetBool("RATE_LIMIT_USE_REDIS"),
		},
		Mapping: MappingConfig{
			RulesFile: viper.GetString("MAPPING_RULES_FILE"),
		},
		LogLevel: viper.GetString("LOG_LEVEL"),
	}

	if cfg.MongoDB.URI == "" {
		return nil, fmt.Errorf("config: MONGODB_URI is required")
	}
	if cfg.Auth.JWTSecret == "" && cfg.Auth.IssuerURL == "" && !cfg.Auth.AllowInsecure {
		return nil, fmt.Errorf("config: set JWT_SECRET or OIDC_ISSUER_URL (or AUTH_ALLOW_INSECURE for local development)")
	}

	return cfg, nil
}

// Addr returns host:port, or "" when Redis is not configured.
func (c *RedisConfig) Addr() string {
	if c.Host == "" {
		return ""
	}
	return c.Host + ":" + c.Port
}
