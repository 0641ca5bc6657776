package main

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/sirupsen/logrus"

	"github.com/example/ec-order-engine/internal/app"
	"github.com/example/ec-order-engine/internal/config"
	"github.com/example/ec-order-engine/internal/eventbus"
	"github.com/example/ec-order-engine/internal/infrastructure/lambdaevent"
	"github.com/example/ec-order-engine/internal/logging"
	"github.com/example/ec-order-engine/internal/projection"
)

var (
	processor *lambdaevent.Processor
	log       logrus.FieldLogger
)

func init() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log, err = logging.New(cfg.LogLevel, cfg.LogFormat, "lambda-projector")
	if err != nil {
		logrus.WithError(err).Fatal("invalid logging configuration")
	}

	res, err := app.Open(context.Background(), cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to open resources")
	}

	router := eventbus.NewRouter()
	projection.New(res.Index, res.Cache, log).Register(router)
	processor = lambdaevent.NewProcessor(router, log)

	log.WithField("index", cfg.IndexBackend).Info("initialized")
}

// handler fails the whole batch on a hard projection error so MSK
// redelivers it; re-indexing already applied records is idempotent.
func handler(ctx context.Context, event events.KafkaEvent) error {
	summary, err := processor.Handle(ctx, event)
	log.WithFields(logrus.Fields{
		"processed": summary.Processed,
		"skipped":   summary.Skipped,
		"failed":    summary.Failed,
	}).Info("batch handled")
	return err
}

func main() {
	lambda.Start(handler)
}
