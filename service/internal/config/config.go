// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Store backends accepted in MAZESIM_STORE.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Config holds all configuration for the mazesim service and CLI.
type Config struct {
	Store       string // run persistence backend: memory, postgres, or redis
	DatabaseURL string
	RedisURL    string
	ListenAddr  string
	LogLevel    string
	LogFormat   string // text or json
}

// Load reads configuration from environment variables with sensible defaults.
// An optional .env file in the working directory is loaded first; variables
// already set in the environment win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Store:       strings.ToLower(getEnv("MAZESIM_STORE", StoreMemory)),
		DatabaseURL: getEnv("MAZESIM_DATABASE_URL", "postgres://localhost:5432/mazesim?sslmode=disable"),
		RedisURL:    getEnv("MAZESIM_REDIS_URL", "redis://localhost:6379/0"),
		ListenAddr:  getEnv("MAZESIM_LISTEN_ADDR", ":8080"),
		LogLevel:    getEnv("MAZESIM_LOG_LEVEL", "info"),
		LogFormat:   getEnv("MAZESIM_LOG_FORMAT", "text"),
	}
	switch cfg.Store {
	case StoreMemory, StorePostgres, StoreRedis:
	default:
		return nil, fmt.Errorf("MAZESIM_STORE: unknown backend %q", cfg.Store)
	}
	return cfg, nil
}

// Logger builds the process logger from the configured level and format.
func (c *Config) Logger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("MAZESIM_LOG_LEVEL: %w", err)
	}
	log := logrus.New()
	log.SetLevel(level)
	switch c.LogFormat {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("MAZESIM_LOG_FORMAT: unknown format %q", c.LogFormat)
	}
	return log, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
