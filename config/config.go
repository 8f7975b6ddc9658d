package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port              int
	LogLevel          string
	InboxSize         int
	HeartbeatInterval time.Duration
	MaxBodyBytes      int64
	AllowedOrigin     string
	ShutdownTimeout   time.Duration
}

// Default returns the configuration used when no environment overrides are set.
func Default() Config {
	return Config{
		Port:              8000,
		LogLevel:          "info",
		InboxSize:         16,
		HeartbeatInterval: 15 * time.Second,
		MaxBodyBytes:      0,
		AllowedOrigin:     "*",
		ShutdownTimeout:   5 * time.Second,
	}
}

// LoadDotenv loads a .env file from the working directory if one exists.
// It reports whether a file was found.
func LoadDotenv(filenames ...string) bool {
	return godotenv.Load(filenames...) == nil
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from an arbitrary lookup function, starting from Default.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return cfg, fmt.Errorf("invalid PORT %q", v)
		}
		cfg.Port = port
	}
	if v, ok := get("LOG_LEVEL"); ok {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v, ok := get("INBOX_SIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return cfg, fmt.Errorf("invalid INBOX_SIZE %q: must be a positive integer", v)
		}
		cfg.InboxSize = n
	}
	if v, ok := get("HEARTBEAT_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return cfg, fmt.Errorf("invalid HEARTBEAT_INTERVAL %q", v)
		}
		cfg.HeartbeatInterval = d
	}
	if v, ok := get("MAX_BODY_BYTES"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return cfg, fmt.Errorf("invalid MAX_BODY_BYTES %q", v)
		}
		cfg.MaxBodyBytes = n
	}
	if v, ok := get("ALLOWED_ORIGIN"); ok {
		cfg.AllowedOrigin = v
	}
	if v, ok := get("SHUTDOWN_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return cfg, fmt.Errorf("invalid SHUTDOWN_TIMEOUT %q", v)
		}
		cfg.ShutdownTimeout = d
	}
	return cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf("0.0.0.0:%d", c.Port)
}
