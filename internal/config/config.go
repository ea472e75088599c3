package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Mode selects how workers are isolated
type Mode string

const (
	ModeProcess   Mode = "process"
	ModeGoroutine Mode = "goroutine"
)

// Config holds all gspawnd configuration
type Config struct {
	Debug bool

	// Server
	Host    string
	Port    int
	Backlog int
	Delay   time.Duration

	// Workers
	Mode          Mode
	Discipline    string // correct, defective
	Reap          string // async, sweep, never
	SweepInterval time.Duration
	MaxWorkers    int

	// Process-level controls, 0 leaves the current limit alone
	MaxOpenFiles int
	MaxProcs     int
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Debug: getEnvBool("DEBUG", false),

		Host:    getEnv("GSPAWN_HOST", ""),
		Port:    getEnvInt("GSPAWN_PORT", 8888),
		Backlog: getEnvInt("GSPAWN_BACKLOG", 5),
		Delay:   getEnvDuration("GSPAWN_DELAY", 0),

		Mode:          Mode(getEnv("GSPAWN_MODE", string(ModeProcess))),
		Discipline:    getEnv("GSPAWN_DISCIPLINE", "correct"),
		Reap:          getEnv("GSPAWN_REAP", "async"),
		SweepInterval: getEnvDuration("GSPAWN_SWEEP_INTERVAL", time.Second),
		MaxWorkers:    getEnvInt("GSPAWN_MAX_WORKERS", 0),

		MaxOpenFiles: getEnvInt("GSPAWN_MAX_OPEN_FILES", 0),
		MaxProcs:     getEnvInt("GSPAWN_MAX_PROCS", 0),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Addr returns the host:port the server binds
func (c *Config) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// validate ensures configuration is coherent
func (c *Config) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("GSPAWN_PORT out of range: %d", c.Port)
	}
	if c.Backlog <= 0 {
		return fmt.Errorf("GSPAWN_BACKLOG must be positive: %d", c.Backlog)
	}
	if c.Delay < 0 {
		return fmt.Errorf("GSPAWN_DELAY must not be negative: %v", c.Delay)
	}
	if c.Mode != ModeProcess && c.Mode != ModeGoroutine {
		return fmt.Errorf("unsupported GSPAWN_MODE: %s (supported: %s, %s)", c.Mode, ModeProcess, ModeGoroutine)
	}
	if !contains([]string{"correct", "defective"}, c.Discipline) {
		return fmt.Errorf("unsupported GSPAWN_DISCIPLINE: %s (supported: correct, defective)", c.Discipline)
	}
	validReap := []string{"async", "sweep", "never"}
	if !contains(validReap, c.Reap) {
		return fmt.Errorf("unsupported GSPAWN_REAP: %s (supported: %s)", c.Reap, strings.Join(validReap, ", "))
	}
	if c.Reap == "sweep" && c.SweepInterval <= 0 {
		return fmt.Errorf("GSPAWN_SWEEP_INTERVAL must be positive: %v", c.SweepInterval)
	}
	if c.MaxWorkers < 0 {
		return fmt.Errorf("GSPAWN_MAX_WORKERS must not be negative: %d", c.MaxWorkers)
	}
	if c.MaxOpenFiles < 0 {
		return fmt.Errorf("GSPAWN_MAX_OPEN_FILES must not be negative: %d", c.MaxOpenFiles)
	}
	if c.MaxProcs < 0 {
		return fmt.Errorf("GSPAWN_MAX_PROCS must not be negative: %d", c.MaxProcs)
	}
	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return boolValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
