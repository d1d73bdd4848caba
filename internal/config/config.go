// Package config loads the bridge configuration from the environment.
// A .env file in the working directory is loaded automatically.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

// Config holds every setting the bridge reads at startup.
// Integrations whose address is empty are disabled.
type Config struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	CORSOrigins  []string

	InstagramAPIURL   string
	UpstreamTimeout   time.Duration
	UpstreamRetryMax  int
	IssueRandomTokens bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SessionTTL    time.Duration

	KafkaBrokers       string
	KafkaActivityTopic string

	ActivityDatabaseURL string

	S3 S3Config

	ConsulAddr  string
	ConsulToken string
	ServiceHost string
}

// S3Config holds object storage settings for post exports.
type S3Config struct {
	Endpoint       string
	PublicEndpoint string
	AccessKey      string
	SecretKey      string
	Bucket         string
	UseSSL         bool
}

// Enabled reports whether enough settings are present to build a client.
func (c S3Config) Enabled() bool {
	return c.Endpoint != "" && c.AccessKey != "" && c.SecretKey != "" && c.Bucket != ""
}

// Load reads the configuration from environment variables.
func Load() (*Config, error) {
	port, err := strconv.Atoi(GetEnvOrDefault("PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}
	retryMax, err := strconv.Atoi(GetEnvOrDefault("UPSTREAM_RETRY_MAX", "2"))
	if err != nil || retryMax < 0 {
		return nil, fmt.Errorf("invalid UPSTREAM_RETRY_MAX %q", os.Getenv("UPSTREAM_RETRY_MAX"))
	}
	redisDB, err := strconv.Atoi(GetEnvOrDefault("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		Port:         port,
		ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
		WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
		IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		CORSOrigins:  splitList(GetEnvOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),

		InstagramAPIURL:   GetEnvOrDefault("INSTAGRAM_API_URL", "https://i.instagram.com/api/v1"),
		UpstreamTimeout:   getEnvDuration("UPSTREAM_TIMEOUT", 30*time.Second),
		UpstreamRetryMax:  retryMax,
		IssueRandomTokens: getEnvBool("ISSUE_RANDOM_TOKENS"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,
		SessionTTL:    getEnvDuration("SESSION_TTL", 0),

		KafkaBrokers:       os.Getenv("KAFKA_BROKERS"),
		KafkaActivityTopic: GetEnvOrDefault("KAFKA_TOPIC_ACTIVITY", "instagram-activity"),

		ActivityDatabaseURL: os.Getenv("ACTIVITY_DATABASE_URL"),

		S3: S3Config{
			Endpoint:       os.Getenv("S3_ENDPOINT"),
			PublicEndpoint: os.Getenv("S3_PUBLIC_ENDPOINT"),
			AccessKey:      os.Getenv("S3_ACCESS_KEY"),
			SecretKey:      os.Getenv("S3_SECRET_KEY"),
			Bucket:         os.Getenv("S3_BUCKET_NAME"),
			UseSSL:         getEnvBool("S3_USE_SSL"),
		},

		ConsulAddr:  os.Getenv("CONSUL_HTTP_ADDR"),
		ConsulToken: os.Getenv("CONSUL_HTTP_TOKEN"),
		ServiceHost: GetEnvOrDefault("SERVICE_HOST", "instabridge"),
	}

	return cfg, nil
}

// GetEnvOrDefault retrieves an environment variable or returns a default value
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string) bool {
	b, _ := strconv.ParseBool(os.Getenv(key))
	return b
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
