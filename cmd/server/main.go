package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-companion/backend/pkg/config"
	"chat-companion/backend/pkg/di"
	"chat-companion/backend/pkg/logger"
	"chat-companion/backend/pkg/secrets"
)

func main() {
	cfg := config.New()

	logConfig := logger.DefaultConfig()
	logConfig.Level = cfg.Logging.Level
	logConfig.JSON = cfg.Logging.Format != "text"

	log := logger.New(logConfig)
	logger.SetGlobal(log)

	log.Info("Starting companion server", "env", cfg.Server.Env)

	if err := secrets.Init(log); err != nil {
		log.LogError(err, "Failed to initialize secrets manager")
		os.Exit(1)
	}

	db, err := config.NewDB()
	if err != nil {
		log.LogError(err, "Failed to initialize database")
		os.Exit(1)
	}

	ctx := context.Background()

	container, err := di.New(ctx, db, cfg, log)
	if err != nil {
		log.LogError(err, "Failed to initialize dependency container")
		os.Exit(1)
	}

	if err := container.Store.AutoMigrate(); err != nil {
		log.LogError(err, "Failed to migrate database")
		os.Exit(1)
	}

	// Guarantee an active personality before serving traffic
	if err := container.Engine.Bootstrap(ctx); err != nil {
		log.LogError(err, "Failed to bootstrap default personality")
		os.Exit(1)
	}

	container.Health.Start(ctx)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: container.Router.Engine,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Server.Port, "provider", container.Backend.Name())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogError(err, "Server failed to start")
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.LogError(err, "Server forced to shutdown")
	}

	log.Info("Server exited")
}
