package config

import (
	"os"
	"strconv"
	"time"
)

// ServerConfig holds HTTP/WebSocket server configuration
type ServerConfig struct {
	Addr        string
	CORSOrigins []string
}

// MongoConfig holds MongoDB connection configuration
type MongoConfig struct {
	URI      string
	Database string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string
	Password string
}

// SimulatorConfig controls the live match update simulator.
// Probabilities and intervals stand in for a real upstream feed; a
// production deployment would replace the synthesize step with ingestion
// and keep the polling/cooldown cadence.
type SimulatorConfig struct {
	Enabled bool

	// PollInterval is how often the live set is inspected
	PollInterval time.Duration

	// UpdateInterval is the minimum gap between synthetic updates to the
	// same match (the cooldown window)
	UpdateInterval time.Duration

	// ClockProbability is the chance a tick advances a match clock
	ClockProbability float64

	// EventProbability is the chance a tick injects a match event
	EventProbability float64
}

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	Simulator SimulatorConfig
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        getEnv("SERVER_ADDR", ":3000"),
			CORSOrigins: []string{getEnv("FRONTEND_URL", "http://localhost:3001")},
		},
		Mongo: MongoConfig{
			URI:      getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGODB_DATABASE", "ballinfo"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_URL", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		Simulator: SimulatorConfig{
			Enabled:          getEnvBool("ENABLE_PERIODIC_UPDATES", true),
			PollInterval:     getEnvDuration("SIM_POLL_INTERVAL", 10*time.Second),
			UpdateInterval:   getEnvDuration("SIM_UPDATE_INTERVAL", 60*time.Second),
			ClockProbability: getEnvFloat("SIM_CLOCK_PROBABILITY", 0.7),
			EventProbability: getEnvFloat("SIM_EVENT_PROBABILITY", 0.1),
		},
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
