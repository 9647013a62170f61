package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/jcallahan4/optiondesk/internal/config"
	"github.com/jcallahan4/optiondesk/internal/feed"
	"github.com/jcallahan4/optiondesk/internal/mock"
	"github.com/jcallahan4/optiondesk/internal/retry"
	"github.com/jcallahan4/optiondesk/internal/server"
	"github.com/jcallahan4/optiondesk/internal/storage"
)

const shutdownGrace = 10 * time.Second

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Optional .env for local development, config values expand from it
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	logger := newLogger(cfg.Environment.LogLevel)
	logger.WithFields(logrus.Fields{
		"mode":     cfg.Environment.Mode,
		"provider": cfg.Feed.Provider,
	}).Info("Starting optiondesk server")

	provider := buildProvider(cfg, logger)

	if dir := filepath.Dir(cfg.Storage.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			logger.WithError(err).Fatal("Failed to create storage directory")
		}
	}
	store, err := storage.NewStore(cfg.Storage.Path)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open storage")
	}

	srv := server.NewServer(server.Config{
		ListenAddr:     cfg.Server.ListenAddr,
		AuthToken:      cfg.Server.AuthToken,
		RequestTimeout: cfg.GetRequestTimeout(),
		PnLRangePct:    cfg.Builder.PnLRangePct,
		DefaultSymbol:  cfg.Builder.DefaultSymbol,
		NearestStrikes: cfg.Builder.NearestStrikes,
	}, provider, store, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutdown signal received, stopping server")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Fatal("Server error")
	}
	logger.Info("Server stopped")
}

func newLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)
	return logger
}

func buildProvider(cfg *config.Config, logger *logrus.Logger) feed.Provider {
	if cfg.IsMock() {
		return mock.NewProvider()
	}

	var provider feed.Provider = feed.NewClient(cfg.Feed.APIKey, cfg.Feed.APIEndpoint, cfg.Feed.Sandbox)
	provider = retry.NewProvider(provider, logger)
	if cfg.Feed.CircuitBreaker {
		provider = feed.NewCircuitBreakerProvider(provider)
	}
	return provider
}
