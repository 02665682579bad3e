// Package config resolves the viewer settings from the process environment,
// optionally seeded from .env files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Load seeds the environment from .env files, ".env" by default. Variables
// set by the shell win over the files, and files that do not exist are
// skipped.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}

	for _, p := range paths {
		err := godotenv.Load(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("could not load %s: %w", p, err)
		}
	}

	return nil
}

// lookup parses the variable key, falling back when it is unset, empty or
// unparsable.
func lookup[T any](key string, fallback T, parse func(string) (T, error)) T {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}

	v, err := parse(s)
	if err != nil {
		return fallback
	}
	return v
}

func GetEnv(key, fallback string) string {
	return lookup(key, fallback, func(s string) (string, error) { return s, nil })
}

func GetEnvInt(key string, fallback int) int {
	return lookup(key, fallback, strconv.Atoi)
}

// GetEnvBool accepts the values understood by strconv.ParseBool.
func GetEnvBool(key string, fallback bool) bool {
	return lookup(key, fallback, strconv.ParseBool)
}

// Viewer holds the settings shared by the binaries.
type Viewer struct {
	Source      string
	StreamAddr  string
	FPS         int
	Mirror      bool
	LogLevel    string
	LogFormat   string
	MetricsAddr string
}

// FromEnv returns the settings found in the environment.
func FromEnv() Viewer {
	return Viewer{
		Source:      GetEnv("KINECTVIEW_SOURCE", "synthetic"),
		StreamAddr:  GetEnv("KINECTVIEW_STREAM_ADDR", "224.76.78.75:20810"),
		FPS:         GetEnvInt("KINECTVIEW_FPS", 30),
		Mirror:      GetEnvBool("KINECTVIEW_MIRROR", false),
		LogLevel:    GetEnv("LOG_LEVEL", "info"),
		LogFormat:   GetEnv("LOG_FORMAT", "text"),
		MetricsAddr: GetEnv("METRICS_ADDR", ""),
	}
}
