package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dom/inhouse-league/internal/api"
	"github.com/dom/inhouse-league/internal/config"
	"github.com/dom/inhouse-league/internal/logger"
	"github.com/dom/inhouse-league/internal/repository/postgres"
	"github.com/dom/inhouse-league/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger.Init(cfg.Environment, os.Getenv("LOG_LEVEL"))
	defer logger.Sync()

	db, err := postgres.NewConnection(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", "err", err)
	}

	repos := postgres.NewRepositories(db)
	services := service.NewServices(repos, cfg)
	router := api.NewRouter(services)

	srv := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", "err", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", "err", err)
	}

	logger.Info("server stopped")
}
