package main

import (
	"context"
	"log"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/alaineid/robomarket-ae-sub000/internal/config"
	"github.com/alaineid/robomarket-ae-sub000/internal/logger"
	"github.com/alaineid/robomarket-ae-sub000/internal/orders"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

func main() {
	cfg, err := config.LoadOrders()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logg, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logg.Sync()

	repo, err := orders.NewPostgresRecorder(cfg.PostgresDSN)
	if err != nil {
		logg.Fatal("failed to connect to database", "error", err)
	}
	defer repo.Close()

	if err := repo.RunMigrations(cfg.MigrationsPath); err != nil {
		logg.Fatal("failed to run migrations", "error", err)
	}
	logg.Info("database migrations completed")

	var wg sync.WaitGroup
	projector := orders.NewProjector(repo, cfg.KafkaTopic, cfg.ConsumerGroup, logg, cfg.KafkaBrokers...)
	consumerCtx, consumerCancel := context.WithCancel(context.Background())
	wg.Add(1)
	go func() {
		defer wg.Done()
		projector.Run(consumerCtx)
	}()

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		logg.Fatal("failed to listen", "port", cfg.GRPCPort, "error", err)
	}
	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	go func() {
		logg.Info("orders projector health listening", "port", cfg.GRPCPort)
		if err := grpcServer.Serve(lis); err != nil {
			logg.Fatal("failed to serve", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logg.Info("shutting down orders projector")
	healthServer.Shutdown()
	grpcServer.GracefulStop()
	consumerCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	doneChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(doneChan)
	}()

	select {
	case <-doneChan:
		logg.Info("consumer stopped cleanly")
	case <-shutdownCtx.Done():
		logg.Warn("consumer didn't stop in time")
	}

	projector.Close()
	logg.Info("orders projector stopped")
}
