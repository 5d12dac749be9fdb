package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Redis    RedisConfig
	Batch    BatchConfig
	Webhook  WebhookConfig
	Kafka    KafkaConfig
	Database DatabaseConfig
}

type ServerConfig struct {
	Address string
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
	QueueKey string
}

type BatchConfig struct {
	URL             string
	AccessToken     string
	Interval        time.Duration
	BatchSize       int
	Timeout         time.Duration
	DedupRecipients bool
}

type WebhookConfig struct {
	VerifyToken string
}

type KafkaConfig struct {
	Enabled      bool
	Brokers      []string
	InboundTopic string
	EventTopic   string
	StatusTopic  string
}

type DatabaseConfig struct {
	Enabled     bool
	PostgresURL string
}

func LoadAll() (*Config, error) {
	var errs []error

	redisAddr, err := requireEnv("REDIS_ADDR")
	if err != nil {
		errs = append(errs, err)
	}
	accessToken, err := requireEnv("ACCESS_TOKEN")
	if err != nil {
		errs = append(errs, err)
	}
	verifyToken, err := requireEnv("WEBHOOK_VERIFY_TOKEN")
	if err != nil {
		errs = append(errs, err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		errs = append(errs, err)
	}
	intervalSecs, err := getEnvInt("BATCH_INTERVAL_SECONDS", 2)
	if err != nil {
		errs = append(errs, err)
	}
	batchSize, err := getEnvInt("BATCH_SIZE", 50)
	if err != nil {
		errs = append(errs, err)
	}
	timeoutSecs, err := getEnvInt("BATCH_TIMEOUT_SECONDS", 10)
	if err != nil {
		errs = append(errs, err)
	}
	dedup, err := getEnvBool("BATCH_DEDUP_RECIPIENTS", true)
	if err != nil {
		errs = append(errs, err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Address: getEnv("SERVER_ADDRESS", ":8080"),
		},
		Redis: RedisConfig{
			Address:  redisAddr,
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
			QueueKey: getEnv("REDIS_QUEUE_KEY", "messenger:requests"),
		},
		Batch: BatchConfig{
			URL:             getEnv("BATCH_URL", "https://graph.facebook.com"),
			AccessToken:     accessToken,
			Interval:        time.Duration(intervalSecs) * time.Second,
			BatchSize:       batchSize,
			Timeout:         time.Duration(timeoutSecs) * time.Second,
			DedupRecipients: dedup,
		},
		Webhook: WebhookConfig{
			VerifyToken: verifyToken,
		},
		Kafka:    loadKafkaConfig(),
		Database: loadDatabaseConfig(),
	}

	errs = append(errs, validate(cfg)...)

	if err := joinErrors(errs); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadKafkaConfig() KafkaConfig {
	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		return KafkaConfig{Enabled: false}
	}
	return KafkaConfig{
		Enabled:      true,
		Brokers:      strings.Split(brokers, ","),
		InboundTopic: getEnv("KAFKA_INBOUND_TOPIC", "messenger.inbound"),
		EventTopic:   getEnv("KAFKA_EVENT_TOPIC", "messenger.events"),
		StatusTopic:  getEnv("KAFKA_STATUS_TOPIC", "messenger.statuses"),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	url := os.Getenv("POSTGRES_URL")
	if url == "" {
		return DatabaseConfig{Enabled: false}
	}
	return DatabaseConfig{Enabled: true, PostgresURL: url}
}

func validate(cfg *Config) []error {
	var errs []error
	if cfg.Batch.BatchSize <= 0 {
		errs = append(errs, errors.New("BATCH_SIZE must be > 0"))
	}
	if cfg.Batch.Interval <= 0 {
		errs = append(errs, errors.New("BATCH_INTERVAL_SECONDS must be > 0"))
	}
	if cfg.Batch.Timeout <= 0 {
		errs = append(errs, errors.New("BATCH_TIMEOUT_SECONDS must be > 0"))
	}
	return errs
}

func requireEnv(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("missing required env var: %s", key)
	}
	return val, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid int for env %s: %q", key, v)
	}
	return i, nil
}

func getEnvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid bool for env %s: %q", key, v)
	}
	return b, nil
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
