package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env   string
	Port  int
	DBURL string

	JWTSecret           string
	JWTAccessTTLMinutes int
	JWTRefreshTTLDays   int

	CORSOrigins []string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	OTELEndpoint string

	AdminEmail    string
	AdminPassword string
	AdminName     string
}

func Load() Config {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	return Config{
		Env:                 getEnv("APP_ENV", "dev"),
		Port:                getEnvInt("PORT", 8080),
		DBURL:               buildDBURL(),
		JWTSecret:           getEnv("JWT_SECRET", "dev-secret-change-me"),
		JWTAccessTTLMinutes: getEnvInt("JWT_ACCESS_TTL_MINUTES", 30),
		JWTRefreshTTLDays:   getEnvInt("JWT_REFRESH_TTL_DAYS", 7),
		CORSOrigins:         getEnvList("CORS_ORIGINS", []string{"http://localhost:3000"}),
		RedisAddr:           getEnv("REDIS_ADDR", ""),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisDB:             getEnvInt("REDIS_DB", 0),
		OTELEndpoint:        getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		AdminEmail:          getEnv("ADMIN_EMAIL", ""),
		AdminPassword:       getEnv("ADMIN_PASSWORD", ""),
		AdminName:           getEnv("ADMIN_NAME", "Administrator"),
	}
}

func (c Config) AccessTTL() time.Duration {
	return time.Duration(c.JWTAccessTTLMinutes) * time.Minute
}

func (c Config) RefreshTTL() time.Duration {
	return time.Duration(c.JWTRefreshTTLDays) * 24 * time.Hour
}

func buildDBURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "taskforge")
	pass := getEnv("DB_PASSWORD", "taskforge")
	name := getEnv("DB_NAME", "taskforge")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			fmt.Println(err)
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)

	if v == "" {
		return fallback
	}

	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))

	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}

	if len(out) == 0 {
		return fallback
	}

	return out
}
