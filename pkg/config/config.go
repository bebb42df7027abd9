// Package config reads process-level settings from the environment and an
// optional .env file. Command-line flags override every value here.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/yourlabs/remember/pkg/facts"
)

// Environment variables understood by remember.
const (
	EnvFactsDir  = "REMEMBER_FACTS_DIR"
	EnvForceAsk  = "REMEMBER_FORCEASK"
	EnvVerbosity = "REMEMBER_VERBOSITY"
	EnvFact      = "REMEMBER_FACT"
)

// Config holds the process-level defaults that command-line flags override.
type Config struct {
	// FactsDir is where fact artifacts are read and written.
	FactsDir string
	// ForceAsk is the default force-ask list.
	ForceAsk string
	// Verbosity is the default log verbosity (0 warnings, 1 info, 2 debug).
	Verbosity int
	// Fact overrides the fact name derived from the variables file.
	Fact string
}

// Load reads the given .env files (".env" when none is named) without
// overriding variables already set, then builds a Config from the
// environment. Missing .env files are ignored.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		FactsDir: firstNonEmpty(strings.TrimSpace(getenv(EnvFactsDir)), facts.DefaultDir),
		ForceAsk: strings.TrimSpace(getenv(EnvForceAsk)),
		Fact:     strings.TrimSpace(getenv(EnvFact)),
	}
	if raw := strings.TrimSpace(getenv(EnvVerbosity)); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return nil, fmt.Errorf("%s: expected a non-negative integer, got %q", EnvVerbosity, raw)
		}
		cfg.Verbosity = v
	}
	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
