// Package config loads runtime settings from the environment. Every value
// has a working default so a bare `go run ./cmd/server` comes up locally.
package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Env           string        // "dev" or "prod", picks the logger profile
	Port          string        // HTTP listen port
	HoldTTL       time.Duration // how long a seat hold survives without payment
	RedisAddr     string        // empty disables the booking archive
	RedisPassword string
	RedisDB       int
}

func Load() Config {
	return Config{
		Env:           getenv("APP_ENV", "dev"),
		Port:          getenv("APP_PORT", "8080"),
		HoldTTL:       time.Duration(getint("HOLD_SECONDS", 300)) * time.Second,
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getint("REDIS_DB", 0),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
