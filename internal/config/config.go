package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/HammerMeetNail/kinship/internal/validation"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Host        string
	Port        int
	Environment string // "development", "production", "test"
	Debug       bool
	LogLevel    string
	CORSOrigins []string
}

type DatabaseConfig struct {
	// URL, when set, is used verbatim instead of the discrete fields.
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32
	MinConns int32

	MaxConnLifetime time.Duration
}

type RedisConfig struct {
	URL      string
	Host     string
	Port     int
	Password string
	DB       int
}

type AuthConfig struct {
	TokenSecret string `json:"TOKEN_SECRET" validate:"required,min=32"`
	// SessionExpiresIn is a magnitude plus unit suffix (d, h, m, s), e.g. "7d".
	SessionExpiresIn string `json:"SESSION_EXPIRES_IN"`
}

type CacheConfig struct {
	UserProfileTTL   time.Duration
	RelationshipsTTL time.Duration
	SessionTTL       time.Duration
}

type RateLimitConfig struct {
	AuthAttempts int64
	AuthWindow   time.Duration
}

func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func (s ServerConfig) IsProduction() bool {
	return s.Environment == "production"
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:        getEnv("SERVER_HOST", "0.0.0.0"),
			Port:        getEnvInt("SERVER_PORT", 5000),
			Environment: getEnv("APP_ENV", "development"),
			Debug:       getEnvBool("DEBUG", false),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			CORSOrigins: getEnvList("CORS_ORIGINS", []string{"http://localhost:3000"}),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "kinship"),
			Password: getEnv("DB_PASSWORD", "kinship"),
			DBName:   getEnv("DB_NAME", "kinship"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 25)),
			MinConns: int32(getEnvInt("DB_MIN_CONNS", 5)),

			MaxConnLifetime: getEnvDuration("DB_MAX_CONN_LIFETIME", time.Hour),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", ""),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			TokenSecret:      getEnv("TOKEN_SECRET", ""),
			SessionExpiresIn: getEnvNonEmpty("SESSION_EXPIRES_IN", "7d"),
		},
		Cache: CacheConfig{
			UserProfileTTL:   getEnvDuration("CACHE_USER_TTL", 5*time.Minute),
			RelationshipsTTL: getEnvDuration("CACHE_RELATIONSHIPS_TTL", 2*time.Minute),
			SessionTTL:       getEnvDuration("CACHE_SESSION_TTL", time.Hour),
		},
		RateLimit: RateLimitConfig{
			AuthAttempts: int64(getEnvInt("AUTH_RATE_LIMIT", 20)),
			AuthWindow:   getEnvDuration("AUTH_RATE_WINDOW", 15*time.Minute),
		},
	}

	if err := validation.Struct(cfg.Auth); err != nil {
		return nil, fmt.Errorf("invalid auth config: %w", err)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvNonEmpty(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		if strings.TrimSpace(value) != "" {
			return value
		}
		return defaultValue
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValues []string) []string {
	if value, exists := os.LookupEnv(key); exists {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			return defaultValues
		}
		parts := strings.Split(trimmed, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			item := strings.TrimSpace(part)
			if item != "" {
				out = append(out, item)
			}
		}
		return out
	}
	return defaultValues
}
