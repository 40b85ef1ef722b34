package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	_ "github.com/Krimson/ctg-stream/monitor/docs" // Swagger docs
	"github.com/Krimson/ctg-stream/monitor/internal/batch"
	"github.com/Krimson/ctg-stream/monitor/internal/config"
	"github.com/Krimson/ctg-stream/monitor/internal/health"
	"github.com/Krimson/ctg-stream/monitor/internal/logger"
	"github.com/Krimson/ctg-stream/monitor/internal/model"
	"github.com/Krimson/ctg-stream/monitor/internal/mqttingest"
	"github.com/Krimson/ctg-stream/monitor/internal/offline"
	"github.com/Krimson/ctg-stream/monitor/internal/recorder"
	"github.com/Krimson/ctg-stream/monitor/internal/server"
	"github.com/Krimson/ctg-stream/monitor/internal/session"
	"github.com/Krimson/ctg-stream/monitor/internal/telemetry"
	"github.com/Krimson/ctg-stream/monitor/internal/websocket"
)

// @title CTG Stream Monitor API
// @version 1.0
// @description Потоковый анализ КТГ: сессии, снимки, уведомления, итоги и офлайн-разбор записей.
// @host localhost:8080
// @BasePath /
// @schemes http

func main() {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.LogLevel, cfg.LogFormat, "ctg-monitor")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting monitor",
		zap.String("grpc_port", cfg.GRPCPort),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("archive_driver", cfg.ArchiveDriver),
		zap.Duration("tick_interval", cfg.TickInterval))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	healthServer := health.NewHealthServer(log.Named("health"))

	// Живое состояние: Redis или память процесса
	var cache session.CacheStore
	memory := session.NewMemoryStore()
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis unavailable, using in-memory cache", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		redisClient.Close()
		redisClient = nil
		cache = memory
	} else {
		log.Info("connected to redis", zap.String("addr", cfg.RedisAddr))
		cache = session.NewRedisStore(redisClient)
		healthServer.AddCheck("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	pingCancel()

	// Архив: PostgreSQL, SQLite или память процесса
	var repository session.Repository = memory
	var archive *session.SQLRepository
	switch cfg.ArchiveDriver {
	case "postgres", "sqlite":
		dsn := cfg.PostgresDSN
		if cfg.ArchiveDriver == "sqlite" {
			dsn = cfg.SQLitePath
		}
		archive, err = session.OpenSQLRepository(ctx, cfg.ArchiveDriver, dsn)
		if err != nil {
			log.Fatal("failed to open archive", zap.String("driver", cfg.ArchiveDriver), zap.Error(err))
		}
		if err := archive.EnsureSchema(ctx); err != nil {
			log.Fatal("failed to prepare archive schema", zap.Error(err))
		}
		repository = archive
		healthServer.AddCheck("archive", archive.Ping)
		log.Info("archive ready", zap.String("driver", cfg.ArchiveDriver))
	case "none":
		log.Warn("archive disabled, finished sessions are kept in memory")
	default:
		log.Fatal("unknown archive driver", zap.String("driver", cfg.ArchiveDriver))
	}

	manager := session.NewManager(cfg, cache, repository, log.Named("session"))
	hub := websocket.NewHub(log.Named("websocket"))
	manager.AddPublisher(hub)

	var snapshotLog *recorder.JSONLWriter
	if cfg.SnapshotLogPath != "" {
		snapshotLog, err = recorder.Open(cfg.SnapshotLogPath, false, log.Named("recorder"))
		if err != nil {
			log.Fatal("failed to open snapshot log", zap.String("path", cfg.SnapshotLogPath), zap.Error(err))
		}
		manager.AddPublisher(snapshotLog)
		log.Info("recording snapshots", zap.String("path", cfg.SnapshotLogPath))
	}
	manager.Start()
	go hub.Run(ctx)

	batcher := batch.NewBatcher(cfg, manager, log.Named("batch"))

	// gRPC
	grpcServer := grpc.NewServer()
	telemetry.RegisterDataServiceServer(grpcServer, server.NewDataServer(cfg, batcher, manager, log.Named("grpc")))
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	address := fmt.Sprintf(":%s", cfg.GRPCPort)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		log.Fatal("failed to listen", zap.String("address", address), zap.Error(err))
	}

	healthServer.SetServingStatus("")
	healthServer.SetServingStatus(telemetry.ServiceName)
	healthServer.RunChecks(ctx)
	go healthServer.Run(ctx, 15*time.Second)

	// MQTT
	var subscriber *mqttingest.Subscriber
	if cfg.MQTTEnabled {
		subscriber, err = mqttingest.NewSubscriber(cfg, batcher, log.Named("mqtt"))
		if err != nil {
			log.Fatal("invalid mqtt settings", zap.Error(err))
		}
		if err := subscriber.Start(); err != nil {
			log.Error("mqtt ingest disabled", zap.Error(err))
			subscriber = nil
		}
	}

	// HTTP
	router := mux.NewRouter()
	session.NewHTTPHandler(manager, log.Named("http")).RegisterRoutes(router)
	analyzer := offline.NewAnalyzer(cfg.Pipeline, loadBundle(cfg, log), repository, log.Named("offline")).
		WithMaxDuration(cfg.OfflineMaxDuration)
	offline.NewHTTPHandler(analyzer, log.Named("http")).RegisterRoutes(router)
	router.HandleFunc("/ws", hub.HandleWebSocket)
	router.Handle("/healthz", healthServer)
	router.PathPrefix("/swagger/").Handler(httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("list"),
		httpSwagger.DomID("swagger-ui"),
	))

	httpServer := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      enableCORS(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrChan := make(chan error, 2)
	go func() {
		log.Info("grpc server listening", zap.String("address", address))
		if err := grpcServer.Serve(listener); err != nil {
			serverErrChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()
	go func() {
		log.Info("http server listening", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrChan:
		log.Error("server error", zap.Error(err))
	case sig := <-shutdownChan:
		log.Info("received signal, starting graceful shutdown", zap.String("signal", sig.String()))
	}

	healthServer.SetNotServingStatus("")
	healthServer.SetNotServingStatus(telemetry.ServiceName)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if subscriber != nil {
		subscriber.Stop()
	}

	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		log.Warn("graceful shutdown timeout, forcing stop")
		grpcServer.Stop()
	}

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("http server forced to shutdown", zap.Error(err))
	}

	// Сначала сбрасываем хвосты батчей, затем финализируем сессии
	batcher.Stop()
	manager.Shutdown()
	cancel()

	if snapshotLog != nil {
		if err := snapshotLog.Close(); err != nil {
			log.Error("failed to close snapshot log", zap.Error(err))
		}
	}
	if archive != nil {
		archive.Close()
	}
	if redisClient != nil {
		redisClient.Close()
	}

	received, dropped, flushed, outOfOrder := batcher.GetStats()
	log.Info("monitor stopped",
		zap.Int64("received", received),
		zap.Int64("dropped", dropped),
		zap.Int64("flushed", flushed),
		zap.Int64("out_of_order", outOfOrder))
}

func loadBundle(cfg *config.Config, log *zap.Logger) *model.Bundle {
	if cfg.ModelManifest == "" {
		return nil
	}
	bundle, err := model.LoadBundle(cfg.ModelManifest)
	if err != nil {
		log.Warn("model bundle unavailable for offline analysis", zap.Error(err))
		return nil
	}
	return bundle
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			return
		}

		next.ServeHTTP(w, r)
	})
}
