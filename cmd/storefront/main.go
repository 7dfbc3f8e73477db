package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alaineid/robomarket-ae-sub000/internal/catalog"
	"github.com/alaineid/robomarket-ae-sub000/internal/checkout"
	"github.com/alaineid/robomarket-ae-sub000/internal/config"
	h "github.com/alaineid/robomarket-ae-sub000/internal/http"
	"github.com/alaineid/robomarket-ae-sub000/internal/logger"
	"github.com/alaineid/robomarket-ae-sub000/internal/orders"
	"github.com/alaineid/robomarket-ae-sub000/internal/payment"
	"github.com/alaineid/robomarket-ae-sub000/internal/pricing"
	"github.com/alaineid/robomarket-ae-sub000/internal/session"
	"github.com/alaineid/robomarket-ae-sub000/internal/storage"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logg, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logg.Sync()
	logg.ReplaceGlobals()

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startCancel()

	store, closeStore, err := openStore(startCtx, cfg)
	if err != nil {
		logg.Fatal("failed to open session store", "driver", cfg.StorageDriver, "error", err)
	}
	defer closeStore()
	logg.Info("session store ready", "driver", cfg.StorageDriver)

	catalogClient := catalog.NewCoalesced(catalog.NewClient(cfg.CatalogURL, cfg.CatalogTimeout, logg))

	engine := pricing.NewEngine(pricing.Rules{
		FreeShippingThreshold: cfg.FreeShippingThreshold,
		FlatShippingFee:       cfg.FlatShippingFee,
		TaxRate:               cfg.TaxRate,
	})

	var hosted payment.Submitter
	if cfg.PaymentGatewayURL != "" {
		hosted = payment.NewHosted(cfg.PaymentGatewayURL, cfg.PaymentTimeout, logg)
	}
	var submitter checkout.Submitter = payment.NewRouter(cfg.OffsiteMethods, hosted, payment.NewOffline())

	recorder, closeRecorder, err := openOrderSink(cfg)
	if err != nil {
		logg.Fatal("failed to open order sink", "sink", cfg.OrderSink, "error", err)
	}
	defer closeRecorder()
	if recorder != nil {
		submitter = orders.NewRecordingSubmitter(submitter, recorder, logg)
		logg.Info("recording placed orders", "sink", cfg.OrderSink)
	}

	sessions := session.NewManager(session.Deps{
		Store:     store,
		Catalog:   catalogClient,
		Pricing:   engine,
		Submitter: submitter,
		Log:       logg,
	}, cfg.SessionIdle)
	defer sessions.Close()

	router := h.NewRouter(h.Deps{
		Catalog:        catalogClient,
		Sessions:       sessions,
		Log:            logg,
		RequestTimeout: cfg.RequestTimeout,
		Cookie:         session.CookieOptions{MaxAge: cfg.SessionTTL, Secure: cfg.CookieSecure},
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logg.Info("storefront starting", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Fatal("server error", "error", err)
		}
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
		logg.Info("health endpoint listening", "port", cfg.GRPCPort)
		if err := grpcServer.Serve(lis); err != nil {
			logg.Fatal("failed to serve grpc", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logg.Info("shutting down storefront")
	healthServer.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logg.Error("server forced to shutdown", "error", err)
	}
	grpcServer.GracefulStop()

	logg.Info("storefront stopped")
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, func(), error) {
	switch cfg.StorageDriver {
	case "memory":
		return storage.NewMemoryStore(), func() {}, nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		return storage.NewRedisStore(client, cfg.SessionTTL), func() { _ = client.Close() }, nil

	case "mongo":
		db, err := storage.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, nil, err
		}
		store := storage.NewMongoStore(db, cfg.SessionTTL)
		if err := store.CreateIndexes(ctx); err != nil {
			_ = db.Client().Disconnect(ctx)
			return nil, nil, fmt.Errorf("create indexes: %w", err)
		}
		closeFn := func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = db.Client().Disconnect(ctx)
		}
		return store, closeFn, nil
	}
	return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
}

func openOrderSink(cfg *config.Config) (orders.Recorder, func(), error) {
	switch cfg.OrderSink {
	case "", "none":
		return nil, func() {}, nil

	case "postgres":
		rec, err := orders.NewPostgresRecorder(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := rec.RunMigrations(cfg.MigrationsPath); err != nil {
			_ = rec.Close()
			return nil, nil, err
		}
		return rec, func() { _ = rec.Close() }, nil

	case "kafka":
		rec := orders.NewKafkaRecorder(cfg.KafkaTopic, cfg.KafkaBrokers...)
		return rec, func() { _ = rec.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown order sink %q", cfg.OrderSink)
}
