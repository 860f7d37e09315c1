// Package config builds the process configuration from the environment so
// main stays lean.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything the server needs at startup. Postgres, Redis
// and Kafka are optional: an empty setting selects the in-memory fallback so
// the engine runs with zero infrastructure in development.
type Config struct {
	Addr string

	PostgresDSN string
	RedisURL    string

	KafkaBrokers []string
	KafkaGroup   string
	KafkaTopic   string

	BatchSize        int
	PartitionCount   int
	MaxTries         int
	PartitionTimeout time.Duration
	RunInterval      time.Duration
	SweepLimit       int

	AdminJWTKey string
}

// FromEnv reads the configuration with development defaults.
func FromEnv() Config {
	cfg := Config{
		Addr:             getString("IMMUNA_ADDR", ":8080"),
		PostgresDSN:      os.Getenv("IMMUNA_POSTGRES_DSN"),
		RedisURL:         os.Getenv("IMMUNA_REDIS_URL"),
		KafkaGroup:       getString("IMMUNA_KAFKA_GROUP", "immuna-recalc"),
		KafkaTopic:       getString("IMMUNA_KAFKA_TOPIC", "dossier-mutations"),
		BatchSize:        getInt("IMMUNA_BATCH_SIZE", 200),
		PartitionCount:   getInt("IMMUNA_PARTITION_COUNT", 4),
		MaxTries:         getInt("IMMUNA_MAX_TRIES", 5),
		PartitionTimeout: getDuration("IMMUNA_PARTITION_TIMEOUT", 3*time.Minute),
		RunInterval:      getDuration("IMMUNA_RUN_INTERVAL", time.Minute),
		SweepLimit:       getInt("IMMUNA_SWEEP_LIMIT", 500),
		AdminJWTKey:      getString("IMMUNA_ADMIN_JWT_KEY", "dev-secret-key-change-in-production"),
	}
	if brokers := os.Getenv("IMMUNA_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	return cfg
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
