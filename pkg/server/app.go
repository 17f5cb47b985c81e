package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	drepo "TickWatch/internal/domain/repository"
	"TickWatch/internal/usecase"
	"TickWatch/pkg/config"
	xhttp "TickWatch/pkg/http"
	pkgkafka "TickWatch/pkg/kafka"
	applogger "TickWatch/pkg/logger"
)

// App encapsulates the entire application lifecycle: the polling
// pipeline or stream collector, the optional Kafka consumer, and the
// HTTP read API.
type App struct {
	cfg         *config.Config
	logger      *applogger.Logger
	pipeline    *usecase.Pipeline
	collector   *usecase.StreamCollector
	consumer    *pkgkafka.Consumer
	kh          pkgkafka.MessageHandler
	store       drepo.TickStore
	publisher   drepo.Publisher
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler

	cancelLoop context.CancelFunc
	loopDone   chan struct{}
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	logger *applogger.Logger,
	pipeline *usecase.Pipeline,
	collector *usecase.StreamCollector,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	store drepo.TickStore,
	publisher drepo.Publisher,
) *App {
	return &App{
		cfg:       cfg,
		logger:    logger,
		pipeline:  pipeline,
		collector: collector,
		consumer:  consumer,
		kh:        kh,
		store:     store,
		publisher: publisher,
	}
}

// SetHTTPHandler allows DI to inject an HTTP handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancelLoop = cancel

	if err := a.store.Init(ctx); err != nil {
		a.logger.Error("store init failed", applogger.Error(err))
		cancel()
		return err
	}

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	// rebuild detection state before ingesting anything new
	a.pipeline.Warmup(ctx)

	a.loopDone = make(chan struct{})
	switch a.cfg.Source.Mode {
	case "stream":
		go func() {
			defer close(a.loopDone)
			if err := a.collector.Start(ctx); err != nil {
				a.logger.Error("stream collector error", applogger.Error(err))
			}
			<-ctx.Done()
		}()
		a.logger.Info("stream collector started", applogger.Strings("symbols", a.cfg.Source.Symbols))
	default:
		go func() {
			defer close(a.loopDone)
			a.pipeline.Run(ctx)
		}()
	}

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.logger.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.logger.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		cancel()
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.logger.Info("shutdown signal received")
	return a.shutdown(context.Background())
}

// shutdown gracefully stops all services. The pipeline observes
// cancellation at its next cycle boundary; in-flight cycles finish.
func (a *App) shutdown(ctx context.Context) error {
	a.cancelLoop()
	if a.loopDone != nil {
		<-a.loopDone
	}

	if a.collector != nil && a.cfg.Source.Mode == "stream" {
		if err := a.collector.Shutdown(ctx); err != nil {
			a.logger.Warn("stream collector stop error", applogger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.logger.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("publisher close error", applogger.Error(err))
		}
	}

	if err := a.store.Close(); err != nil {
		a.logger.Warn("store close error", applogger.Error(err))
	}

	a.logger.Info("shutdown complete")
	return nil
}
