// Package config provides configuration helpers for go-checkin commands.
// Values come from environment variables; command flags override them.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Defaults used when the environment does not say otherwise.
const (
	DefaultHost     = "localhost"
	DefaultPort     = "8000"
	DefaultListen   = ":8000"
	DefaultInterval = 500 * time.Millisecond
	DefaultLogLevel = "info"
)

// Host returns the check-in server host from CHECKIN_HOST.
// Falls back to the provided default if not set.
func Host(defaultHost string) string {
	return String("CHECKIN_HOST", defaultHost)
}

// Port returns the check-in server port from CHECKIN_PORT or DefaultPort.
func Port() string {
	return String("CHECKIN_PORT", DefaultPort)
}

// Listen returns the server listen address from CHECKIN_LISTEN or DefaultListen.
func Listen() string {
	return String("CHECKIN_LISTEN", DefaultListen)
}

// Interval returns the sampling period from CHECKIN_INTERVAL.
// Accepts Go durations ("500ms", "1s") or a bare number of milliseconds.
func Interval() time.Duration {
	return Duration("CHECKIN_INTERVAL", DefaultInterval)
}

// Device returns the camera device index from CHECKIN_DEVICE (default 0).
func Device() int {
	return Int("CHECKIN_DEVICE", 0)
}

// DatabaseURL returns DATABASE_URL. Empty means the in-memory store.
func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

// LogLevel returns LOG_LEVEL or DefaultLogLevel.
func LogLevel() string {
	return String("LOG_LEVEL", DefaultLogLevel)
}

// StreamURL returns the WebSocket endpoint for the given host and port.
func StreamURL(host, port string) string {
	return fmt.Sprintf("ws://%s:%s/ws", host, port)
}

// BaseURL returns the HTTP base URL for the given host and port.
func BaseURL(host, port string) string {
	return fmt.Sprintf("http://%s:%s", host, port)
}

// String returns the value of key, or def when unset or empty.
func String(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Int returns key parsed as an int, or def when unset or invalid.
func Int(key string, def int) int {
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

// Duration returns key parsed as a duration, or def when unset, invalid
// or not positive.
// A bare integer is read as milliseconds.
func Duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if ms, aerr := strconv.Atoi(v); aerr == nil {
		d, err = time.Duration(ms)*time.Millisecond, nil
	}
	if err != nil || d <= 0 {
		return def
	}
	return d
}
