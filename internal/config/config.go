package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName       string
	AppVersion    string
	Environment   string
	HTTPAddr      string
	AuthJWTSecret string

	OTLPEndpoint string

	CORSAllowedOrigins []string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Redis RedisConfig

	ProviderTimeout time.Duration
	AIFallback      AIFallbackConfig
	Quota           QuotaConfig
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AIFallbackConfig describes the built-in chat-completion scorer used when
// no provider row is configured for a tier.
type AIFallbackConfig struct {
	Name             string
	BaseURL          string
	Model            string
	APIKeySecretName string
}

// QuotaConfig holds the balances granted to a user the first time they are seen.
type QuotaConfig struct {
	StartingStandardMinutes     int64
	StartingProfessionalMinutes int64
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:            getenv("APP_SERVICE", "newenglish"),
		AppVersion:         getenv("APP_VERSION", "0.1.0"),
		Environment:        getenv("ENVIRONMENT", "development"),
		HTTPAddr:           getenv("HTTP_ADDR", ":8080"),
		AuthJWTSecret:      strings.TrimSpace(getenv("AUTH_JWT_SECRET", "")),
		OTLPEndpoint:       getenv("OTLP_ENDPOINT", "localhost:4317"),
		CORSAllowedOrigins: parseList(getenv("CORS_ALLOWED_ORIGINS", "*")),
		DBType:             getenv("DATABASE_TYPE", "postgres"),
		DBHost:             getenv("DATABASE_HOST", "localhost"),
		DBPort:             getenv("DATABASE_PORT", "5432"),
		DBName:             getenv("DATABASE_NAME", "newenglish"),
		DBUser:             getenv("DATABASE_USER", "postgres"),
		DBPassword:         getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:          getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:      getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:      getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime:  getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime:  getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			DB:       getenvInt("REDIS_DB", 0),
		},
		ProviderTimeout: time.Duration(getenvInt("PROVIDER_TIMEOUT_SECONDS", 60)) * time.Second,
		AIFallback: AIFallbackConfig{
			Name:             getenv("AI_FALLBACK_NAME", "AI Assessment"),
			BaseURL:          strings.TrimRight(getenv("AI_FALLBACK_BASE_URL", "https://ai.gateway.lovable.dev"), "/"),
			Model:            getenv("AI_FALLBACK_MODEL", "google/gemini-2.5-flash"),
			APIKeySecretName: getenv("AI_FALLBACK_KEY_SECRET", "AI_API_KEY"),
		},
		Quota: QuotaConfig{
			StartingStandardMinutes:     getenvInt64("QUOTA_STARTING_STANDARD_MINUTES", 10),
			StartingProfessionalMinutes: getenvInt64("QUOTA_STARTING_PROFESSIONAL_MINUTES", 0),
		},
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
