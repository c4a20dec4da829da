package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"loan-intake-go/internal/config"
	"loan-intake-go/internal/db"
	"loan-intake-go/internal/extractor"
	"loan-intake-go/internal/fetcher"
	"loan-intake-go/internal/handlers"
	"loan-intake-go/internal/metrics"
	"loan-intake-go/internal/pipeline"
	"loan-intake-go/internal/repository"
	"loan-intake-go/internal/resolver"
	"loan-intake-go/internal/scheduler"
	"loan-intake-go/internal/server"
	"loan-intake-go/internal/storage"
)

// Run initializes and starts the application
func Run() error {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)

	logrus.Info("Starting Loan Intake Service")

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	dbConn, err := db.Init(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	repo := repository.New(dbConn)
	m := metrics.NewMetrics()

	blobs, err := storage.NewMinioStore(&cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to create blob store: %w", err)
	}
	if err := blobs.EnsureBucket(context.Background()); err != nil {
		return fmt.Errorf("failed to ensure storage bucket: %w", err)
	}

	var f fetcher.EmailFetcher
	var watcher handlers.WatchRegistrar
	if cfg.Gmail.UseIMAP {
		f, err = fetcher.NewIMAPFetcher(&cfg.Gmail)
		if err != nil {
			return fmt.Errorf("failed to create IMAP fetcher: %w", err)
		}
		logrus.Info("Using IMAP for email fetching")
	} else {
		gf, err := fetcher.NewGmailAPIFetcher(&cfg.Gmail)
		if err != nil {
			return fmt.Errorf("failed to create Gmail API fetcher: %w", err)
		}
		f = gf
		watcher = gf
		logrus.Info("Using Gmail API for email fetching")
	}

	ai := extractor.New(cfg.Anthropic.APIKey, cfg.Anthropic.Model)
	res := resolver.New(repo)
	pipe := pipeline.New(f, res, repo, blobs, ai, m)

	sched := scheduler.New(&cfg.Scheduler, pipe)

	h := handlers.NewHandlers(dbConn, repo, pipe, sched, watcher)
	router := server.SetupRouter(h)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	go func() {
		logrus.Infof("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := sched.Stop(); err != nil {
		logrus.Errorf("Failed to stop scheduler: %v", err)
	}
	sched.Wait()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("HTTP server shutdown error: %v", err)
	}

	if err := f.Close(); err != nil {
		logrus.Errorf("Failed to close fetcher: %v", err)
	}

	logrus.Info("Server stopped gracefully")
	return nil
}
