package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"kassa/internal/cache"
	"kassa/internal/cli"
	"kassa/internal/core"
	apphttp "kassa/internal/http"
	"kassa/internal/ledger"
	"kassa/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting kassa server")

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	amqpClient := cli.InitAMQP(logger, cfg)
	defer amqpClient.Close()

	var redisClient *redis.Client
	if cfg.CacheBackend == cache.BackendRedis {
		redisClient = redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		})
		defer redisClient.Close()
		logger.Info("Using redis cache backend", "addr", cfg.RedisAddr)
	}

	summaryCache := cache.New[core.Summary](cfg.CacheBackend, redisClient, "kassa:", cfg.CacheSize, cfg.CacheTTL)
	cacheManager := cache.NewManager()
	if cleaner, ok := summaryCache.(cache.Cleaner); ok {
		cacheManager.Register(cleaner)
	}
	cacheManager.StartCleanup(10 * time.Minute)

	engine := ledger.New(repo)
	summaries := services.NewSummaryService(repo, summaryCache)
	transactions := services.NewTransactionService(repo, engine, amqpClient, summaries)

	srv := apphttp.NewServer(cfg, repo, transactions, summaries, cacheManager)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Listening", "port", cfg.Port, "cache_backend", cfg.CacheBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
