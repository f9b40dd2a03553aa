package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	StorageBackend        string
	DatabaseURL           string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	RedisKeyPrefix        string
	ReportCacheTTLSeconds int
	LogLevel              string
	LogPretty             bool
	SeedInventory         bool
}

// Load reads the environment. Values from a .env file in the working
// directory fill in anything not already set.
func Load() Config {
	_ = godotenv.Load()
	return FromEnv()
}

func FromEnv() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	ttl, err := strconv.Atoi(getEnv("REPORT_CACHE_TTL_SECONDS", "30"))
	if err != nil || ttl < 1 {
		ttl = 30
	}

	cfg := Config{
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:           strings.TrimSpace(os.Getenv("DATABASE_URL")),
		RedisAddr:             strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		RedisKeyPrefix:        getEnv("REDIS_KEY_PREFIX", "vendas_app_data_"),
		ReportCacheTTLSeconds: ttl,
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogPretty:             getBool("LOG_PRETTY", false),
		SeedInventory:         getBool("SEED_INVENTORY", true),
	}
	cfg.StorageBackend = strings.ToLower(strings.TrimSpace(os.Getenv("STORAGE_BACKEND")))
	if cfg.StorageBackend == "" {
		cfg.StorageBackend = cfg.defaultBackend()
	}

	return cfg
}

func (c Config) defaultBackend() string {
	switch {
	case c.DatabaseURL != "":
		return BackendPostgres
	case c.RedisAddr != "":
		return BackendRedis
	default:
		return BackendMemory
	}
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getBool(key string, fallback bool) bool {
	val, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return val
}
