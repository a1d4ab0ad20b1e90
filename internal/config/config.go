package config

import (
	"os"
	"strconv"
	"time"
)

// DisplayConfig tunes the live-screen polling contract: how often clients
// poll, how many recent donations a snapshot carries, and how long one
// celebratory trigger stays on screen.
type DisplayConfig struct {
	PollInterval    time.Duration
	PollTimeout     time.Duration
	SnapshotLimit   int
	TriggerLifetime time.Duration
	MaxTriggerQueue int
	MutationRetries int
}

func LoadDisplayConfig() *DisplayConfig {
	return &DisplayConfig{
		PollInterval:    getEnvAsDuration("DISPLAY_POLL_INTERVAL", 5*time.Second),
		PollTimeout:     getEnvAsDuration("DISPLAY_POLL_TIMEOUT", 10*time.Second),
		SnapshotLimit:   getEnvAsInt("SNAPSHOT_LIMIT", 100),
		TriggerLifetime: getEnvAsDuration("TRIGGER_LIFETIME", 5*time.Second),
		MaxTriggerQueue: getEnvAsInt("TRIGGER_MAX_QUEUE", 64),
		MutationRetries: getEnvAsInt("MUTATION_RETRIES", 3),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}
