package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"memeshare/api/internal/cache"
	"memeshare/api/internal/config"
	"memeshare/api/internal/database"
	"memeshare/api/internal/gateway"
	"memeshare/api/internal/handlers"
	"memeshare/api/internal/jobs"
	"memeshare/api/internal/log"
	"memeshare/api/internal/repository"
	"memeshare/api/internal/security"
	"memeshare/api/internal/server"
	"memeshare/api/internal/service"
	"memeshare/api/internal/storage"
)

func main() {
	if len(os.Args) > 2 && os.Args[1] == "hash-password" {
		encoded, err := security.HashPassword(os.Args[2])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(encoded)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment)

	ctx := context.Background()

	images, dbPool := openImageStore(ctx, cfg, logger)

	var (
		redisClient  *redis.Client
		contentCache service.ContentCache
	)
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect redis")
		}
		contentCache = cache.NewContentCache(redisClient, cfg.Redis.ContentTTL)
	}

	gw, err := newGateway(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init image gateway")
	}

	files := storage.NewLocalStore(cfg.Storage.UncheckedDir, cfg.Storage.CheckedDir)
	if err := files.EnsureDirs(); err != nil {
		logger.Fatal().Err(err).Msg("failed to create storage directories")
	}

	handlerSet := handlers.NewHandlerSet(logger, cfg, handlers.Deps{
		Images:  images,
		Gateway: gw,
		Files:   files,
		Cache:   contentCache,
		Redis:   redisClient,
	})
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	scheduler := jobs.NewScheduler(files, images, cfg.Storage.SweepSchedule, cfg.Storage.SweepMinAge, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, dbPool, redisClient)
}

func openImageStore(ctx context.Context, cfg *config.AppConfig, logger zerolog.Logger) (service.ImageStore, *pgxpool.Pool) {
	if cfg.Database.Driver == config.DatabaseDriverMemory {
		logger.Warn().Msg("using in-memory image store, records are lost on restart")
		return repository.NewMemoryImageRepository(), nil
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	if cfg.Database.Migrate {
		if err := database.Migrate(ctx, pool); err != nil {
			logger.Fatal().Err(err).Msg("failed to run migrations")
		}
	}
	return repository.NewImageRepository(pool), pool
}

func newGateway(ctx context.Context, cfg *config.AppConfig, logger zerolog.Logger) (gateway.Gateway, error) {
	if cfg.Gateway.Driver != config.GatewayDriverObjectStore {
		gw := gateway.NewPicGoGateway(cfg.Gateway.PicGo)
		if !gw.Status().Configured {
			logger.Warn().Msg("picgo api key not set, uploads will fail")
		}
		return gw, nil
	}

	gw, err := gateway.NewObjectStoreGateway(cfg.Gateway.ObjectStore)
	if err != nil {
		return nil, err
	}
	if err := gw.EnsureBucket(ctx); err != nil {
		logger.Warn().Err(err).Msg("ensure bucket failed")
	}
	return gw, nil
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, db *pgxpool.Pool, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		if err := srv.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("forced shutdown failed")
		}
	}

	scheduler.Stop(5 * time.Second)

	if db != nil {
		db.Close()
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("redis close error")
		}
	}

	logger.Info().Msg("server exited cleanly")
}
