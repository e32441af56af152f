package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/rl1809/benefit-transfer/internal/adapter/events"
	"github.com/rl1809/benefit-transfer/internal/adapter/handler"
	"github.com/rl1809/benefit-transfer/internal/adapter/handler/pb"
	"github.com/rl1809/benefit-transfer/internal/adapter/storage"
	"github.com/rl1809/benefit-transfer/internal/config"
	"github.com/rl1809/benefit-transfer/internal/core/domain"
	"github.com/rl1809/benefit-transfer/internal/core/service"
	"github.com/rl1809/benefit-transfer/internal/logger"
	"github.com/rl1809/benefit-transfer/internal/metrics"
	"github.com/rl1809/benefit-transfer/internal/port"
)

const publishTimeout = 5 * time.Second

func main() {
	envFile := flag.String("env", ".env", "optional dotenv file")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	lg, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer lg.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize stores
	st, err := openStores(ctx, cfg, lg)
	if err != nil {
		lg.Fatal("failed to open store", zap.String("backend", cfg.StoreBackend), zap.Error(err))
	}
	lg.Info("store ready", zap.String("backend", cfg.StoreBackend))

	// Initialize event publisher
	var publisher port.EventPublisher
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		publisher = events.NewKafkaPublisher(brokers, cfg.KafkaTopic)
		lg.Info("publishing events to kafka", zap.Strings("brokers", brokers), zap.String("topic", cfg.KafkaTopic))
	} else {
		publisher = events.NewLogPublisher(lg)
	}

	// Initialize services
	policy := service.RetryPolicy{MaxAttempts: cfg.TransferMaxAttempts}
	benefitService := service.NewBenefitService(st.benefits, policy, lg)
	transferService := service.NewTransferService(st.benefits, st.idempotency, policy, cfg.EventQueueSize, lg)

	// Start worker pool
	var wg sync.WaitGroup
	for i := 0; i < cfg.EventWorkers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			workerLoop(id, transferService.GetEventQueue(), publisher, lg)
		}(i)
	}
	lg.Info("started event workers", zap.Int("count", cfg.EventWorkers))

	// Initialize gRPC server
	grpcServer := grpc.NewServer()
	pb.RegisterBenefitServiceServer(grpcServer, handler.NewGRPCHandler(benefitService, transferService, lg))

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		lg.Fatal("failed to listen", zap.String("addr", cfg.GRPCAddr), zap.Error(err))
	}

	go func() {
		lg.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			lg.Error("gRPC server error", zap.Error(err))
		}
	}()

	// Initialize HTTP server
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.NewHTTPHandler(benefitService, transferService, lg).Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		lg.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			lg.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	lg.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		lg.Warn("HTTP shutdown", zap.Error(err))
	}
	lg.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	lg.Info("gRPC server stopped")

	// Close event queue and wait for workers to drain it
	transferService.Close()
	wg.Wait()
	lg.Info("workers stopped")

	if err := publisher.Close(); err != nil {
		lg.Warn("close publisher", zap.Error(err))
	}
	st.close()
	lg.Info("connections closed")
}

type stores struct {
	benefits    port.BenefitRepository
	idempotency port.IdempotencyRepository
	closers     []func() error
}

func (s *stores) close() {
	for _, c := range s.closers {
		c()
	}
}

type schemaEnsurer interface {
	EnsureSchema(ctx context.Context) error
}

// openStores builds the record store for cfg.StoreBackend. Idempotency keys
// live in Redis whenever REDIS_ADDR is set, otherwise in process memory.
// Connections opened before a failure are closed again.
func openStores(ctx context.Context, cfg *config.Config, lg *zap.Logger) (_ *stores, err error) {
	st := &stores{}
	defer func() {
		if err != nil {
			st.close()
		}
	}()
	mem := storage.NewMemoryAdapter()

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			PoolSize: 100,
		})
		st.closers = append(st.closers, rdb.Close)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, err
		}
		st.idempotency = storage.NewRedisAdapter(rdb)
		lg.Info("connected to redis", zap.String("addr", cfg.RedisAddr))
	} else {
		st.idempotency = mem
	}

	switch cfg.StoreBackend {
	case config.BackendMemory:
		st.benefits = mem
		return st, nil
	case config.BackendRedis:
		st.benefits = storage.NewRedisAdapter(rdb)
		return st, nil
	}

	driver, dsn := "mysql", cfg.MySQLDSN
	if cfg.StoreBackend == config.BackendPostgres {
		driver, dsn = "postgres", cfg.PostgresDSN
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	st.closers = append(st.closers, db.Close)

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	lg.Info("connected to database", zap.String("driver", driver))

	var repo interface {
		port.BenefitRepository
		schemaEnsurer
	}
	if driver == "postgres" {
		repo = storage.NewPostgresAdapter(db)
	} else {
		repo = storage.NewMySQLAdapter(db)
	}
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	st.benefits = repo
	return st, nil
}

// workerLoop publishes completed transfers until the queue is closed.
// Publishing is best effort: a failure is logged and counted, never retried.
func workerLoop(id int, queue <-chan domain.TransferCompleted, publisher port.EventPublisher, lg *zap.Logger) {
	for event := range queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)

		if err := publisher.Publish(ctx, event); err != nil {
			metrics.RecordEvent("failed")
			lg.Error("failed to publish transfer event",
				zap.Int("worker", id),
				zap.String("transfer_id", event.TransferID),
				zap.Error(err),
			)
		} else {
			metrics.RecordEvent("published")
			lg.Debug("published transfer event",
				zap.Int("worker", id),
				zap.String("transfer_id", event.TransferID),
			)
		}

		cancel()
	}
}
