package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/example/ec-order-engine/internal/api"
	"github.com/example/ec-order-engine/internal/app"
	"github.com/example/ec-order-engine/internal/auth"
	"github.com/example/ec-order-engine/internal/command"
	"github.com/example/ec-order-engine/internal/config"
	"github.com/example/ec-order-engine/internal/logging"
	"github.com/example/ec-order-engine/internal/projection"
	"github.com/example/ec-order-engine/internal/query"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat, "api")
	if err != nil {
		logrus.WithError(err).Fatal("invalid logging configuration")
	}
	if err := cfg.RequireJWTSecret(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	pricing, err := command.ParsePricePolicy(cfg.PricePolicy)
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, pricing, log); err != nil {
		log.WithError(err).Error("api stopped")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, pricing command.PricePolicy, log logrus.FieldLogger) error {
	res, err := app.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer res.Close()

	// With the in-process bus the projections run here; with Kafka they
	// run in the projector.
	bus := res.Bus("")
	if cfg.EventBus == config.BusMemory {
		projection.New(res.Index, res.Cache, log).Register(bus)
	} else if cfg.IndexBackend == config.IndexMemory {
		log.Warn("kafka bus with an in-memory index: this process will never see projected documents")
	}

	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	cmdHandler := command.NewHandler(res.UnitOfWork, bus, auth.NewHasher(cfg.BcryptCost), log, command.WithPricePolicy(pricing))
	queryHandler := query.NewHandler(res.Index, res.Cache, cfg.CacheTTL, log)
	handlers := api.NewHandlers(cmdHandler, queryHandler, tokens, log)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(handlers, tokens, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return bus.Run(ctx)
	})
	g.Go(func() error {
		log.WithFields(logrus.Fields{
			"addr":      cfg.HTTPAddr,
			"event_bus": cfg.EventBus,
			"index":     cfg.IndexBackend,
			"pricing":   pricing,
		}).Info("server started")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
