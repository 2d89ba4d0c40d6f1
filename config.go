package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"tracking-service/database"
	"tracking-service/kafka"
	awspkg "tracking-service/pkg/aws"
)

type Config struct {
	Env  string
	Port string

	DB database.Config

	RedisURL string

	KafkaBrokers          []string
	KafkaTrackingTopic    string
	KafkaOrderPlacedTopic string
	KafkaGroupID          string

	TrackingSNSTopicArn  string
	OrderPlacedQueueURL  string
	OrderPlacedQueueName string

	JWTSecret           string
	TrustGatewayHeaders bool

	StrictStatusTransitions bool
	SubscriberQueueSize     int
	BroadcastQueueSize      int
	WSWriteTimeout          time.Duration
	RequestTimeout          time.Duration
	AllowedOrigins          string
	RateLimitPerMinute      int
	RateLimitBurst          int
}

// LoadConfig reads the environment (and .env when present), then applies Secrets Manager
// overrides when AWS_USE_SECRETS=true.
func LoadConfig(ctx context.Context) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:  getEnv("APP_ENV", "development"),
		Port: getEnv("PORT", "8089"),
		DB: database.Config{
			User:     os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			DB:       os.Getenv("POSTGRES_DB"),
			Host:     os.Getenv("POSTGRES_HOST"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
			TimeZone: getEnv("POSTGRES_TIMEZONE", "UTC"),
		},
		RedisURL:                os.Getenv("REDIS_URL"),
		KafkaBrokers:            splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTrackingTopic:      getEnv("KAFKA_TRACKING_TOPIC", kafka.DefaultTrackingTopic),
		KafkaOrderPlacedTopic:   os.Getenv("KAFKA_ORDER_PLACED_TOPIC"),
		KafkaGroupID:            getEnv("KAFKA_GROUP_ID", "tracking-service"),
		TrackingSNSTopicArn:     os.Getenv("ORDER_TRACKING_SNS_TOPIC_ARN"),
		OrderPlacedQueueURL:     os.Getenv("ORDER_PLACED_QUEUE_URL"),
		OrderPlacedQueueName:    os.Getenv("ORDER_PLACED_QUEUE_NAME"),
		JWTSecret:               os.Getenv("JWT_SECRET"),
		StrictStatusTransitions: getEnvBool("STRICT_STATUS_TRANSITIONS", false),
		SubscriberQueueSize:     getEnvInt("SUBSCRIBER_QUEUE_SIZE", 64),
		BroadcastQueueSize:      getEnvInt("BROADCAST_QUEUE_SIZE", 1024),
		WSWriteTimeout:          getEnvDuration("WS_WRITE_TIMEOUT", 10*time.Second),
		RequestTimeout:          getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		AllowedOrigins:          getEnv("ALLOWED_ORIGINS", "http://localhost:3000"),
		RateLimitPerMinute:      getEnvInt("RATE_LIMIT_PER_MINUTE", 600),
		RateLimitBurst:          getEnvInt("RATE_LIMIT_BURST", 50),
	}

	if getEnvBool("AWS_USE_SECRETS", false) {
		awsCfg, err := awspkg.LoadAWSConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config for secrets: %w", err)
		}
		if err := applySecrets(ctx, cfg, awspkg.NewSecretsClient(awsCfg)); err != nil {
			return nil, err
		}
	}

	// gateway headers are only trusted by default when there is no token to check
	cfg.TrustGatewayHeaders = getEnvBool("TRUST_GATEWAY_HEADERS", cfg.JWTSecret == "")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applySecrets overrides database credentials and the JWT secret from Secrets Manager.
// Missing secrets leave the environment values in place.
func applySecrets(ctx context.Context, cfg *Config, sm awspkg.SecretGetter) error {
	if dbjson, err := sm.GetSecret(ctx, "tracking/DB_CREDENTIALS"); err == nil && dbjson != "" {
		var m map[string]string
		if err := json.Unmarshal([]byte(dbjson), &m); err != nil {
			return fmt.Errorf("decode tracking/DB_CREDENTIALS: %w", err)
		}
		override(&cfg.DB.User, m["POSTGRES_USER"])
		override(&cfg.DB.Password, m["POSTGRES_PASSWORD"])
		override(&cfg.DB.DB, m["POSTGRES_DB"])
		override(&cfg.DB.Host, m["POSTGRES_HOST"])
		override(&cfg.DB.Port, m["POSTGRES_PORT"])
	}
	if secret, err := sm.GetSecret(ctx, "tracking/JWT_SECRET"); err == nil {
		override(&cfg.JWTSecret, strings.TrimSpace(secret))
	}
	return nil
}

func (c *Config) validate() error {
	if c.DB.User == "" || c.DB.Password == "" || c.DB.DB == "" || c.DB.Host == "" {
		return fmt.Errorf("database config incomplete")
	}
	if c.SubscriberQueueSize <= 0 {
		return fmt.Errorf("SUBSCRIBER_QUEUE_SIZE must be positive")
	}
	if c.BroadcastQueueSize <= 0 {
		return fmt.Errorf("BROADCAST_QUEUE_SIZE must be positive")
	}
	if c.WSWriteTimeout <= 0 {
		return fmt.Errorf("WS_WRITE_TIMEOUT must be positive")
	}
	return nil
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
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
