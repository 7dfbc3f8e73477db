package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alaineid/robomarket-ae-sub000/internal/catalogdb"
	"github.com/alaineid/robomarket-ae-sub000/internal/config"
	"github.com/alaineid/robomarket-ae-sub000/internal/logger"
)

func main() {
	cfg, err := config.LoadCatalog()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logg, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logg.Sync()

	repo, err := catalogdb.NewRepository(cfg.DBPath)
	if err != nil {
		logg.Fatal("failed to open catalog database", "path", cfg.DBPath, "error", err)
	}
	defer repo.Close()

	if err := repo.RunMigrations(cfg.MigrationsPath); err != nil {
		logg.Fatal("failed to run migrations", "error", err)
	}
	logg.Info("migrations completed successfully")

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      catalogdb.NewHandler(repo, 5*time.Second, logg).Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logg.Info("catalog service listening", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Fatal("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logg.Error("server forced to shutdown", "error", err)
	}
	logg.Info("catalog service stopped")
}
