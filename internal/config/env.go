// Package config provides environment helpers for the webcam commands.
package config

import (
	"os"
	"strconv"
	"time"
)

// Defaults used when the environment is silent.
const (
	DefaultDevice = "/dev/video0"
	DefaultPort   = "3030"
	DefaultMode   = "push"
)

// CameraDevice returns the capture device from CAMERA_DEVICE env var.
// Falls back to the provided default if not set.
func CameraDevice(defaultDevice string) string {
	return String("CAMERA_DEVICE", defaultDevice)
}

// Port returns the HTTP port from CAMSERVE_PORT env var or default.
func Port(defaultPort string) string {
	return String("CAMSERVE_PORT", defaultPort)
}

// Mode returns the producer mode from CAMSERVE_MODE env var or default.
func Mode(defaultMode string) string {
	return String("CAMSERVE_MODE", defaultMode)
}

// LogLevel returns LOG_LEVEL or "info".
func LogLevel() string {
	return String("LOG_LEVEL", "info")
}

// String returns the env var key, or def when unset or empty.
func String(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Int returns the env var key parsed as an int, or def when unset or invalid.
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

// Duration returns the env var key parsed with time.ParseDuration,
// or def when unset or invalid.
func Duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// Bool returns true for "1", "true", "yes" (any case), false for other
// non-empty values, and def when unset.
func Bool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return v == "yes" || v == "YES" || v == "Yes"
	}
	return b
}
