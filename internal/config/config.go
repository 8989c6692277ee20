package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Env      string
	HTTPPort string

	MySQLDSN       string
	RedisAddr      string
	MigrationsPath string

	GatewayEndpoint  string
	GatewayStoreID   string
	GatewayStorePass string
	GatewayTimeout   time.Duration

	// CallbackBaseURL is the public base URL the gateway posts callbacks to;
	// ClientBaseURL is the storefront the callback redirects point at.
	CallbackBaseURL string
	ClientBaseURL   string

	NotifySinkURL   string
	NotifyWorkers   int
	NotifyQueueSize int

	JanitorInterval time.Duration
	PendingOrderTTL time.Duration
	ShutdownTimeout time.Duration
}

func Load() *Config {
	return &Config{
		Env:      getEnv("APP_ENV", "dev"),
		HTTPPort: getEnv("HTTP_PORT", "8080"),

		MySQLDSN:       getEnv("MYSQL_DSN", "root:root@tcp(localhost:3306)/checkout?parseTime=true"),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),

		GatewayEndpoint:  getEnv("GATEWAY_URL", "https://sandbox.sslcommerz.com/gwprocess/v4/api.php"),
		GatewayStoreID:   getEnv("GATEWAY_STORE_ID", ""),
		GatewayStorePass: getEnv("GATEWAY_STORE_PASS", ""),
		GatewayTimeout:   getDuration("GATEWAY_TIMEOUT", 10*time.Second),

		CallbackBaseURL: getEnv("CALLBACK_BASE_URL", "http://localhost:8080"),
		ClientBaseURL:   getEnv("CLIENT_BASE_URL", "http://localhost:5173"),

		NotifySinkURL:   getEnv("NOTIFY_SINK_URL", ""),
		NotifyWorkers:   getInt("NOTIFY_WORKERS", 4),
		NotifyQueueSize: getInt("NOTIFY_QUEUE_SIZE", 1024),

		JanitorInterval: getDuration("JANITOR_INTERVAL", time.Hour),
		PendingOrderTTL: getDuration("PENDING_ORDER_TTL", 24*time.Hour),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
