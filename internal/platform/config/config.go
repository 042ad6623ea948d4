package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	id "deedbook/pkg/domain"
	stringsutil "deedbook/pkg/platform/strings"
)

// Server captures process-level configuration for the registry service.
type Server struct {
	Addr string

	// AdminAddress is the administrator identity captured once at startup.
	// It is passed explicitly into every authorization check; the registry
	// never reads it from an ambient global.
	AdminAddress id.Address

	// AdminTokenHash is the bcrypt hash of the operator token that gates
	// the token-minting endpoint.
	AdminTokenHash string

	JWTSigningKey string
	JWTIssuer     string

	// PostgresURL selects the durable store; empty means in-memory.
	PostgresURL string

	Redis RedisConfig
	Kafka KafkaConfig
}

// RedisConfig holds connection settings for the property read cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig holds settings for the audit event sink; empty brokers
// disable it.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// RegistryCacheTTL bounds staleness of cached property reads. Mutations
// invalidate eagerly; the TTL is the backstop.
var RegistryCacheTTL = 5 * time.Minute

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("DEEDBOOK_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	admin := os.Getenv("DEEDBOOK_ADMIN_ADDRESS")
	if admin == "" {
		// Development default - override in any real deployment.
		admin = "registrar"
	}

	jwtSigningKey := os.Getenv("DEEDBOOK_JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	jwtIssuer := os.Getenv("DEEDBOOK_JWT_ISSUER")
	if jwtIssuer == "" {
		jwtIssuer = "deedbook"
	}

	return Server{
		Addr:           addr,
		AdminAddress:   id.Address(admin),
		AdminTokenHash: os.Getenv("DEEDBOOK_ADMIN_TOKEN_HASH"),
		JWTSigningKey:  jwtSigningKey,
		JWTIssuer:      jwtIssuer,
		PostgresURL:    os.Getenv("DEEDBOOK_POSTGRES_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("DEEDBOOK_REDIS_URL"),
			PoolSize:     envInt("DEEDBOOK_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("DEEDBOOK_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("DEEDBOOK_KAFKA_BROKERS")),
			Topic:   envString("DEEDBOOK_KAFKA_AUDIT_TOPIC", "deedbook.audit"),
		},
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
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

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	return stringsutil.DedupeAndTrim(strings.Split(v, ","))
}
