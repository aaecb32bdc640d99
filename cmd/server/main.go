package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clearlot/config"
	"clearlot/internal/database"
	"clearlot/internal/router"
	"clearlot/pkg/cloudinary"
	"clearlot/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	if err := logger.Init(cfg.Server.LogLevel); err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.WithModule("main")

	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}
	if err := database.SeedAdmin(db); err != nil {
		log.Fatal("admin seed failed", zap.Error(err))
	}

	blobs, err := cloudinary.NewClientFromParams(
		cfg.Cloudinary.CloudName, cfg.Cloudinary.APIKey, cfg.Cloudinary.APISecret)
	if err != nil {
		log.Fatal("cloudinary init failed", zap.Error(err))
	}

	app := router.Setup(cfg, db, blobs)

	// Re-arm reminder chains for shipped purchases that were live before the
	// last shutdown.
	if err := app.Reminders.Reconcile(); err != nil {
		log.Error("reminder reconciliation failed", zap.Error(err))
	}
	if err := app.Cleaner.Start(); err != nil {
		log.Fatal("cleanup scheduler failed", zap.Error(err))
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      app.Engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
	app.Reminders.Shutdown()
	app.Cleaner.Stop()
}
