package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/trustlens/evidence-verifier/internal/analysis"
	"github.com/trustlens/evidence-verifier/internal/api"
	"github.com/trustlens/evidence-verifier/internal/config"
	"github.com/trustlens/evidence-verifier/internal/notifications"
	"github.com/trustlens/evidence-verifier/internal/scheduler"
	"github.com/trustlens/evidence-verifier/internal/sources"
	"github.com/trustlens/evidence-verifier/internal/storage"
	"github.com/trustlens/evidence-verifier/internal/telemetry"
	"github.com/trustlens/evidence-verifier/internal/toxicity"
	"github.com/trustlens/evidence-verifier/internal/verify"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Info("Starting evidence verifier")

	store, err := storage.New(cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize storage: %v", err)
	}

	monitor := telemetry.NewMonitor(telemetry.DefaultWindowSize)
	verifier := verify.NewFromConfig(cfg, verify.WithObserver(monitor.ObserveVerification))

	opts := []analysis.Option{
		analysis.WithMonitor(monitor),
		analysis.WithStorage(store),
		analysis.WithSources(sources.FromConfig(cfg)...),
	}

	scorer := toxicity.NewClient(cfg.ToxicityURL, 30*time.Second, toxicity.Banding{
		Red:    cfg.ToxicityRedThreshold,
		Yellow: cfg.ToxicityYellowThreshold,
	})
	if scorer.IsEnabled() {
		opts = append(opts, analysis.WithToxicity(scorer))
	} else {
		logrus.Info("TOXICITY_URL not set, comments without a tone are treated as neutral")
	}

	notificationService := notifications.NewService(cfg)
	if notificationService.IsEnabled() {
		opts = append(opts, analysis.WithNotifications(notificationService))
	}

	service, err := analysis.NewService(cfg, verifier, opts...)
	if err != nil {
		logrus.Fatalf("Failed to initialize analysis service: %v", err)
	}

	schedulerService := scheduler.NewService(cfg, service)
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      api.NewServer(cfg, service).Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	if err := service.SnapshotStats(); err != nil {
		logrus.Errorf("Failed to store final stats snapshot: %v", err)
	}

	logrus.Info("Server exited")
}
