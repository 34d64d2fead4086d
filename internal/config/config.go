// internal/config/config.go
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every environment-driven setting. Values come from the
// process environment; cmd/server loads a .env file first via godotenv.
type Config struct {
	Addr string

	// RoomIdleTimeout is how long an empty room survives before the
	// registry reaps it; RoomReapInterval is how often each room checks.
	RoomIdleTimeout  time.Duration
	RoomReapInterval time.Duration

	// RedisAddr enables the event historian when non-empty.
	RedisAddr      string
	RedisDB        int
	HistorianQueue string

	SessionSecret string
}

// Load reads the configuration from the environment, applying defaults.
func Load() Config {
	addr := ":9000"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	return Config{
		Addr:             addr,
		RoomIdleTimeout:  getEnvDuration("ROOM_IDLE_TIMEOUT", 30*time.Second),
		RoomReapInterval: getEnvDuration("ROOM_REAP_INTERVAL", 15*time.Second),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisDB:          getEnvInt("REDIS_DB", 0),
		HistorianQueue:   os.Getenv("HISTORIAN_QUEUE_NAME"),
		SessionSecret:    os.Getenv("SESSION_SECRET"),
	}
}

func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return v
}
