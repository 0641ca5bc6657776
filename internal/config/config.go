// Package config loads process settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"

	"github.com/example/ec-order-engine/internal/eventbus"
)

const (
	BusMemory = "memory"
	BusKafka  = "kafka"

	IndexMemory   = "memory"
	IndexPostgres = "postgres"
	IndexDynamoDB = "dynamodb"

	minJWTSecretLength = 32
)

type Config struct {
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`
	DatabaseURL string `envconfig:"DATABASE_URL"`

	EventBus           string   `envconfig:"EVENT_BUS" default:"memory"`
	KafkaBrokers       []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	KafkaTopic         string   `envconfig:"KAFKA_TOPIC" default:"order-events"`
	KafkaConsumerGroup string   `envconfig:"KAFKA_CONSUMER_GROUP" default:"order-projector"`

	MaxDeliveryAttempts int           `envconfig:"MAX_DELIVERY_ATTEMPTS" default:"5"`
	RetryBackoff        time.Duration `envconfig:"RETRY_BACKOFF" default:"200ms"`

	IndexBackend  string        `envconfig:"INDEX_BACKEND" default:"memory"`
	DynamoDBTable string        `envconfig:"DYNAMODB_TABLE" default:"read_documents"`
	RedisAddr     string        `envconfig:"REDIS_ADDR"`
	CacheTTL      time.Duration `envconfig:"CACHE_TTL" default:"5m"`

	JWTSecret   string        `envconfig:"JWT_SECRET"`
	TokenTTL    time.Duration `envconfig:"TOKEN_TTL" default:"15m"`
	BcryptCost  int           `envconfig:"BCRYPT_COST" default:"12"`
	PricePolicy string        `envconfig:"PRICE_POLICY" default:"trust"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
}

// Load reads the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, errors.Wrap(err, "read environment")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.EventBus {
	case BusMemory:
	case BusKafka:
		if len(c.KafkaBrokers) == 0 || c.KafkaTopic == "" {
			return errors.New("EVENT_BUS=kafka needs KAFKA_BROKERS and KAFKA_TOPIC")
		}
	default:
		return fmt.Errorf("unknown EVENT_BUS %q", c.EventBus)
	}

	switch c.IndexBackend {
	case IndexMemory:
	case IndexPostgres:
		if c.DatabaseURL == "" {
			return errors.New("INDEX_BACKEND=postgres needs DATABASE_URL")
		}
	case IndexDynamoDB:
		if c.DynamoDBTable == "" {
			return errors.New("INDEX_BACKEND=dynamodb needs DYNAMODB_TABLE")
		}
	default:
		return fmt.Errorf("unknown INDEX_BACKEND %q", c.IndexBackend)
	}

	if c.MaxDeliveryAttempts < 1 {
		return errors.New("MAX_DELIVERY_ATTEMPTS must be at least 1")
	}
	return nil
}

// RequireJWTSecret is checked only by the processes that sign or verify tokens.
func (c Config) RequireJWTSecret() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters long", minJWTSecretLength)
	}
	return nil
}

func (c Config) RetryPolicy() eventbus.RetryPolicy {
	return eventbus.RetryPolicy{MaxAttempts: c.MaxDeliveryAttempts, Backoff: c.RetryBackoff}
}
