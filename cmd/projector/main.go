package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/example/ec-order-engine/internal/app"
	"github.com/example/ec-order-engine/internal/config"
	"github.com/example/ec-order-engine/internal/logging"
	"github.com/example/ec-order-engine/internal/projection"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat, "projector")
	if err != nil {
		logrus.WithError(err).Fatal("invalid logging configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := app.Open(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to open resources")
	}
	defer res.Close()

	bus := res.KafkaBus(cfg.KafkaConsumerGroup)
	projection.New(res.Index, res.Cache, log).Register(bus)

	log.WithFields(logrus.Fields{
		"brokers": cfg.KafkaBrokers,
		"topic":   cfg.KafkaTopic,
		"group":   cfg.KafkaConsumerGroup,
		"index":   cfg.IndexBackend,
	}).Info("projector started")

	if err := bus.Run(ctx); err != nil && ctx.Err() == nil {
		log.WithError(err).Error("consumer stopped")
		res.Close()
		os.Exit(1)
	}
	log.Info("projector stopped")
}
