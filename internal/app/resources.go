// Package app opens the infrastructure selected by config.Config. The
// binaries share it so every process wires the same backends the same way.
package app

import (
	"context"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/example/ec-order-engine/internal/config"
	"github.com/example/ec-order-engine/internal/eventbus"
	"github.com/example/ec-order-engine/internal/infrastructure/cache"
	"github.com/example/ec-order-engine/internal/infrastructure/kafka"
	"github.com/example/ec-order-engine/internal/infrastructure/search"
	"github.com/example/ec-order-engine/internal/infrastructure/store"
)

type Resources struct {
	Config     config.Config
	DB         *sqlx.DB
	UnitOfWork store.UnitOfWork
	Index      search.Index
	Cache      cache.Cache

	log     logrus.FieldLogger
	closers []func() error
}

// Open connects to every configured backend. Without DATABASE_URL the
// write side is the in-memory store; without REDIS_ADDR the cache is
// process-local.
func Open(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (*Resources, error) {
	r := &Resources{Config: cfg, log: log}

	if cfg.DatabaseURL != "" {
		db, err := store.ConnectPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		r.DB = db
		r.closers = append(r.closers, db.Close)
		r.UnitOfWork = store.NewPostgresStore(db)
		log.Info("write model: postgres")
	} else {
		r.UnitOfWork = store.NewMemoryStore()
		log.Warn("DATABASE_URL not set, write model is in memory")
	}

	index, err := r.openIndex(ctx)
	if err != nil {
		r.Close()
		return nil, err
	}
	r.Index = index

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			r.Close()
			return nil, errors.Wrapf(err, "ping redis at %s", cfg.RedisAddr)
		}
		r.closers = append(r.closers, client.Close)
		r.Cache = cache.NewRedis(client)
	} else {
		r.Cache = cache.NewMemory()
	}

	return r, nil
}

func (r *Resources) openIndex(ctx context.Context) (search.Index, error) {
	switch r.Config.IndexBackend {
	case config.IndexPostgres:
		if r.DB == nil {
			return nil, errors.New("postgres index needs DATABASE_URL")
		}
		return search.NewPostgresIndex(r.DB), nil
	case config.IndexDynamoDB:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "load aws config")
		}
		return search.NewDynamoIndex(dynamodb.NewFromConfig(awsCfg), r.Config.DynamoDBTable), nil
	default:
		return search.NewMemoryIndex(), nil
	}
}

// Bus builds the configured event bus. groupID is only used by Kafka; an
// empty group gives a publish-only bus.
func (r *Resources) Bus(groupID string) eventbus.Bus {
	if r.Config.EventBus == config.BusKafka {
		return r.KafkaBus(groupID)
	}
	return eventbus.NewMemoryBus(r.log, eventbus.WithRetryPolicy(r.Config.RetryPolicy()))
}

func (r *Resources) KafkaBus(groupID string) *kafka.Bus {
	bus := kafka.NewBus(kafka.Config{
		Brokers: r.Config.KafkaBrokers,
		Topic:   r.Config.KafkaTopic,
		GroupID: groupID,
		Retry:   r.Config.RetryPolicy(),
	}, r.log)
	r.closers = append(r.closers, bus.Close)
	return bus
}

// Close releases resources in reverse order of acquisition.
func (r *Resources) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			r.log.WithError(err).Warn("close failed")
		}
	}
	r.closers = nil
}
