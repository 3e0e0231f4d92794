package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"guest-presence-backend/config"
	"guest-presence-backend/internal/activity"
	"guest-presence-backend/internal/api"
	"guest-presence-backend/internal/db"
	"guest-presence-backend/internal/displayid"
	"guest-presence-backend/internal/guest"
	"guest-presence-backend/internal/logger"
	"guest-presence-backend/internal/presence"
	"guest-presence-backend/internal/reporter"
	"guest-presence-backend/internal/store"
	"guest-presence-backend/internal/timeslot"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}

	zlog, err := logger.New(cfg.Log.Level, cfg.Log.Format, "presenced")
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()
	zlog.Info("configuration loaded", zap.String("path", configPath))

	gormDB, err := db.Init(&cfg.Database, zlog)
	if err != nil {
		zlog.Fatal("failed to initialize database", zap.Error(err))
	}
	zlog.Info("database initialized", zap.String("driver", cfg.Database.Driver))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)
	slots := timeslot.New(cfg.Facility.SlotMinutes, cfg.Facility.UTCOffsetMinutes)
	ids := displayid.New(appStore, cfg.DisplayID.SequenceWidth, cfg.DisplayID.MaxAttempts, zlog.Named("displayid"))

	guestSvc := guest.NewService(appStore, ids, slots, zlog.Named("guest"))
	presenceSvc := presence.NewService(appStore, slots, zlog.Named("presence"))
	activitySvc := activity.NewService(appStore, slots, cfg.Export.MaxRangeDays, zlog.Named("activity"))

	reporterSvc := reporter.NewService(&cfg.Reporter, presenceSvc, zlog.Named("reporter"))
	reporterDone := make(chan struct{})
	go func() {
		defer close(reporterDone)
		reporterSvc.Run(ctx)
	}()

	handler := api.NewHandler(guestSvc, presenceSvc, activitySvc, slots, gormDB, zlog.Named("api"))
	router := api.NewRouter(cfg, handler, zlog.Named("http"))
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zlog.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("HTTP server ListenAndServe", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	zlog.Info("shutdown signal received, stopping services")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error("HTTP server Shutdown", zap.Error(err))
	}

	// An in-flight refresh must finish before the pool goes away.
	select {
	case <-reporterDone:
	case <-shutdownCtx.Done():
		zlog.Warn("stats reporter did not stop before the shutdown deadline")
	}
	if err := db.Close(gormDB); err != nil {
		zlog.Warn("failed to close database", zap.Error(err))
	}

	zlog.Info("server gracefully stopped")
}
