package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var ErrMissingSessionSecret = errors.New("SESSION_SECRET must be set")

type Config struct {
	HTTPPort        string
	GRPCPort        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	APIBaseURL string
	// APITimeout of zero leaves upstream calls without a client-side timeout.
	APITimeout time.Duration

	StorageDriver string
	SQLitePath    string
	DB            DBConfig
	RedisAddr     string
	RedisPassword string
	MongoURI      string
	MongoDBName   string

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	SessionSecret string
	SessionTTL    time.Duration
	FallbackEmail string

	PaymentSettleDelay  time.Duration
	PaymentDisplayDelay time.Duration
	TrackingInterval    time.Duration

	LogLevel string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
}

// Load reads .env (if present) and then the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("failed to load .env file: %v", err)
	}

	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		GRPCPort:        getEnv("GRPC_PORT", "50060"),
		RequestTimeout:  getDuration("REQUEST_TIMEOUT", 60*time.Second),
		ShutdownTimeout: 10 * time.Second,

		APIBaseURL: getEnv("API_BASE_URL", "http://localhost:5000"),
		APITimeout: getDuration("API_TIMEOUT", 0),

		StorageDriver: getEnv("STORAGE_DRIVER", "sqlite"),
		SQLitePath:    getEnv("SQLITE_PATH", "./storefront.db"),
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Name:     getEnv("DB_NAME", "storefront"),
		},
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:   getEnv("MONGO_DB_NAME", "storefront"),

		KafkaBrokers: splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "payment-completed"),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "storefront-reconciler"),

		SessionSecret: getEnv("SESSION_SECRET", ""),
		SessionTTL:    getDuration("SESSION_TTL", 720*time.Hour),
		FallbackEmail: getEnv("CUSTOMER_EMAIL_FALLBACK", "guest@quickmarket.ng"),

		PaymentSettleDelay:  getDuration("PAYMENT_SETTLE_DELAY", 3*time.Second),
		PaymentDisplayDelay: getDuration("PAYMENT_DISPLAY_DELAY", 2*time.Second),
		TrackingInterval:    getDuration("TRACKING_INTERVAL", 30*time.Second),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate reports settings the server cannot run without.
func (c *Config) Validate() error {
	if c.SessionSecret == "" {
		return ErrMissingSessionSecret
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("invalid %s=%q, using %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("invalid %s=%q, using %v", key, value, defaultValue)
		return defaultValue
	}
	return d
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
