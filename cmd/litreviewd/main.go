package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/bahayonghang/LitReview/internal/catalog"
	"github.com/bahayonghang/LitReview/internal/history"
	historysqlite "github.com/bahayonghang/LitReview/internal/history/sqlite"
	"github.com/bahayonghang/LitReview/internal/logger"
	"github.com/bahayonghang/LitReview/internal/platform/otel"
	"github.com/bahayonghang/LitReview/internal/server"
	"github.com/bahayonghang/LitReview/internal/settings"
	"github.com/bahayonghang/LitReview/internal/stream"

	// Import adapters to trigger init() registration
	_ "github.com/bahayonghang/LitReview/internal/llm/claude"
	_ "github.com/bahayonghang/LitReview/internal/llm/gemini"
	_ "github.com/bahayonghang/LitReview/internal/llm/openai"
)

func main() {
	cfg, err := settings.Load()
	if err != nil {
		logger.Fatal("failed to load settings", zap.Error(err))
	}

	logger.Initialize(cfg.Server.Env)
	defer logger.Sync()
	log := logger.Get()

	shutdownTracer, err := otel.InitTracer("litreview-gateway", log, os.Stdout)
	if err != nil {
		log.Fatal("failed to init tracing", zap.Error(err))
	}

	store, err := catalog.NewStore(cfg.Gateway.ConfigFile, log.Named("catalog"))
	if err != nil {
		log.Fatal("failed to open catalogue store", zap.Error(err))
	}
	log.Info("provider catalogue", zap.String("path", store.Path()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var historyRepo history.Repository
	var ingestor history.Ingestor
	if cfg.History.Enabled {
		historyRepo, err = historysqlite.New(cfg.History.DSN)
		if err != nil {
			log.Fatal("failed to open history database", zap.Error(err))
		}
		defer historyRepo.Close()

		ingestor = history.NewIngestor(log.Named("history"), historyRepo)
		ingestor.Start(ctx)
		defer ingestor.Stop()
	}

	bus := stream.NewBus(log.Named("bus"))
	dispatcher := stream.NewDispatcher(store, bus, ingestor, cfg.Gateway.ConnectTimeout, log.Named("dispatcher"))

	srv := server.New(cfg, log, dispatcher, historyRepo)
	httpServer := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: srv.Handler(),
	}

	go func() {
		log.Info("gateway listening", zap.String("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("forced shutdown", zap.Error(err))
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Warn("tracer shutdown failed", zap.Error(err))
	}
}
