package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	pkgstrings "contactlink/pkg/platform/strings"
)

// Server captures process level configuration.
type Server struct {
	Addr             string
	LogLevel         string
	ReconcileTimeout time.Duration
	Database         DatabaseConfig
	Redis            RedisConfig
	Kafka            KafkaConfig
	Outbox           OutboxConfig
}

// DatabaseConfig selects PostgreSQL storage when URL is set.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
}

// RedisConfig selects the shared identifier lock when URL is set.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	LockTTL      time.Duration
	// BreakerThreshold is the number of consecutive backend failures after
	// which the identifier lock degrades to in-process locking.
	BreakerThreshold int
}

// KafkaConfig enables the outbox relay when Brokers is non-empty.
type KafkaConfig struct {
	Brokers           []string
	Topic             string
	Partitions        int
	ReplicationFactor int
}

type OutboxConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr:             getEnv("CONTACT_ADDR", ":8080"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		ReconcileTimeout: getDuration("RECONCILE_TIMEOUT", 5*time.Second),
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getInt("DATABASE_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDuration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnectTimeout:  getDuration("DATABASE_CONNECT_TIMEOUT", 5*time.Second),
		},
		Redis: RedisConfig{
			URL:              os.Getenv("REDIS_URL"),
			PoolSize:         getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns:     getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:      getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:      getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout:     getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			LockTTL:          getDuration("LOCK_TTL", 10*time.Second),
			BreakerThreshold: getInt("LOCK_BREAKER_THRESHOLD", 5),
		},
		Kafka: KafkaConfig{
			Brokers:           pkgstrings.DedupeAndTrim(strings.Split(os.Getenv("KAFKA_BROKERS"), ",")),
			Topic:             getEnv("KAFKA_TOPIC", "contact-events"),
			Partitions:        getInt("KAFKA_TOPIC_PARTITIONS", 3),
			ReplicationFactor: getInt("KAFKA_REPLICATION_FACTOR", 1),
		},
		Outbox: OutboxConfig{
			PollInterval: getDuration("OUTBOX_POLL_INTERVAL", time.Second),
			BatchSize:    getInt("OUTBOX_BATCH_SIZE", 100),
		},
	}
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
