package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	drepo "PolySentry/internal/domain/repository"
	"PolySentry/internal/usecase"
	"PolySentry/pkg/config"
	xhttp "PolySentry/pkg/http"
	pkgkafka "PolySentry/pkg/kafka"
	applogger "PolySentry/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg         *config.Config
	log         *applogger.Logger
	orch        *usecase.Orchestrator
	normalizer  *usecase.Normalizer
	consumer    *pkgkafka.Consumer
	resolutions pkgkafka.MessageHandler
	httpServer  *xhttp.Server

	ledger  drepo.Ledger
	archive drepo.Archive
	audit   drepo.AuditPublisher
}

// New creates an App with all dependencies wired.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	orch *usecase.Orchestrator,
	normalizer *usecase.Normalizer,
	consumer *pkgkafka.Consumer,
	resolutions pkgkafka.MessageHandler,
	httpServer *xhttp.Server,
	ledger drepo.Ledger,
	archive drepo.Archive,
	audit drepo.AuditPublisher,
) *App {
	return &App{
		cfg:         cfg,
		log:         log,
		orch:        orch,
		normalizer:  normalizer,
		consumer:    consumer,
		resolutions: resolutions,
		httpServer:  httpServer,
		ledger:      ledger,
		archive:     archive,
		audit:       audit,
	}
}

// Run starts the pipeline, the resolution consumer, and the HTTP server,
// then blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := a.orch.Run(ctx, a.normalizer); err != nil && ctx.Err() == nil {
			a.log.Error("pipeline stopped", applogger.Error(err))
		}
	}()
	a.log.Info("pipeline started",
		applogger.String("mode", a.cfg.Mode),
		applogger.Int("markets", len(a.cfg.Stream.Markets)),
	)

	if a.consumer != nil && a.resolutions != nil {
		a.consumer.RegisterHandler(a.resolutions)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.log.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.log.Info("resolution consumer started",
			applogger.String("topic", a.resolutions.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// shutdown drains in-flight events, then stops servers and closes
// infrastructure clients.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.orch.Shutdown(ctx); err != nil {
		a.log.Warn("pipeline drain", applogger.Error(err))
	}
	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Warn("http shutdown", applogger.Error(err))
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop", applogger.Error(err))
		}
	}

	if err := a.audit.Close(); err != nil {
		a.log.Warn("audit publisher close", applogger.Error(err))
	}
	if err := a.archive.Close(); err != nil {
		a.log.Warn("archive close", applogger.Error(err))
	}
	if err := a.ledger.Close(); err != nil {
		a.log.Warn("ledger close", applogger.Error(err))
	}

	a.log.Info("shutdown complete")
	return nil
}
