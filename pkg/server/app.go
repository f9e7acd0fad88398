package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"ChainWatch/internal/domain/repository"
	"ChainWatch/internal/handler/api"
	"ChainWatch/internal/usecase"
	pkgch "ChainWatch/pkg/clickhouse"
	"ChainWatch/pkg/config"
	xhttp "ChainWatch/pkg/http"
	pkgkafka "ChainWatch/pkg/kafka"
	applogger "ChainWatch/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	loop       *usecase.ControlLoop
	consumer   *pkgkafka.Consumer
	rh         *usecase.KafkaRecordsHandler
	sh         *api.StatusEchoHandler
	chClient   *pkgch.Client
	sink       repository.Sink
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	loop *usecase.ControlLoop,
	consumer *pkgkafka.Consumer,
	rh *usecase.KafkaRecordsHandler,
	sh *api.StatusEchoHandler,
	chClient *pkgch.Client,
	sink repository.Sink,
) *App {
	return &App{
		cfg:      cfg,
		log:      log,
		loop:     loop,
		consumer: consumer,
		rh:       rh,
		sh:       sh,
		chClient: chClient,
		sink:     sink,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.sh,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	// Start the control loop; loopDone closes once the loop has drained
	// its workers and flushed final metrics.
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if err := a.loop.Run(ctx); err != nil {
			a.log.Error("control loop error", applogger.Error(err))
		}
	}()
	a.log.Info("monitor started",
		applogger.Strings("endpoints", a.cfg.Swarm.Endpoints),
		applogger.Int("workers", a.cfg.Pipeline.Workers))

	// Start consumer if configured
	if a.consumer != nil && a.rh != nil {
		a.consumer.RegisterHandler(a.rh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.log.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.log.Info("kafka consumer started", applogger.String("topic", a.rh.Topic()))
	}

	// Start HTTP server
	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	cancel()
	<-loopDone

	return a.shutdown()
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	if a.sink != nil {
		if err := a.sink.Close(); err != nil {
			a.log.Warn("sink close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
