package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"quizhub/internal/audit"
	"quizhub/internal/catalog"
	"quizhub/internal/config"
	"quizhub/internal/db"
	quizgrpc "quizhub/internal/grpc"
	internalhttp "quizhub/internal/http"
	"quizhub/internal/jobs"
	"quizhub/internal/logger"
	"quizhub/internal/repository"
	"quizhub/internal/validation"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("db connection failed", "error", err)
	}
	defer pool.Close()
	store := db.NewStore(pool)

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			cancel()
			log.Fatal("redis ping failed", "error", err)
		}
		cancel()
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Warn("redis close error", "error", err)
			}
		}()
	}

	sinks := []audit.Sink{audit.NewLogSink(log)}
	if cfg.AuditFile != "" {
		csvSink, err := audit.NewCSVSink(cfg.AuditFile)
		if err != nil {
			log.Fatal("audit file open failed", "path", cfg.AuditFile, "error", err)
		}
		defer func() {
			if err := csvSink.Close(); err != nil {
				log.Warn("audit file close error", "error", err)
			}
		}()
		sinks = append(sinks, csvSink)
	}
	var questions catalog.Catalog = catalog.NewStore(pool)
	if redisClient != nil {
		sinks = append(sinks, audit.NewStreamSink(redisClient, cfg.AuditStream))
		questions = catalog.NewCached(questions, redisClient, cfg.CatalogCacheTTL, log)
	}
	auditor := audit.NewService(log, cfg.AuditQueueSize, sinks...)
	// Runs before the sink closers registered above.
	defer auditor.Close()

	policy := validation.NewEmailPolicy(cfg.InstructorEmailDomain)
	users := repository.NewUserRepository(store, policy, auditor, log)
	attempts := repository.NewAttemptRepository(store, questions, auditor, log)

	server := internalhttp.NewServer(users, attempts, store, log)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	health := quizgrpc.NewHealth(log)
	grpcServer := quizgrpc.NewServer(health, log)
	jobs.StartHealthProbe(ctx, cfg, store, health, log)

	listener, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatal("grpc listen error", "addr", cfg.GRPCAddr, "error", err)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("quizhub http listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		log.Info("quizhub grpc listening", "addr", cfg.GRPCAddr)
		if err := grpcServer.Serve(listener); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		health.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown error", "error", err)
		}
		grpcServer.GracefulStop()
		return nil
	})

	if err := group.Wait(); err != nil {
		log.Error("server stopped", "error", err)
	}
}
