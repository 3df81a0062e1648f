package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/neexbeast/destinasi/internal/admin"
	"github.com/neexbeast/destinasi/internal/api"
	"github.com/neexbeast/destinasi/internal/auth"
	"github.com/neexbeast/destinasi/internal/cache"
	"github.com/neexbeast/destinasi/internal/catalog"
	"github.com/neexbeast/destinasi/internal/config"
	"github.com/neexbeast/destinasi/internal/events"
	"github.com/neexbeast/destinasi/internal/ratings"
	"github.com/neexbeast/destinasi/internal/realtime"
	"github.com/neexbeast/destinasi/internal/storage"
	"github.com/neexbeast/destinasi/internal/wishlist"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := run(log); err != nil {
		log.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Connect to PostgreSQL.
	pool, err := storage.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	applied, err := storage.RunMigrations(ctx, pool, os.DirFS(cfg.MigrationsDir))
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("migrations applied", "applied", applied)

	// Connect to Redis.
	redisClient, err := cache.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() { _ = redisClient.Close() }()

	// Wire dependencies.
	repo := storage.NewRepository(pool)
	cacheLayer := cache.NewCache(redisClient, cfg.CatalogCacheTTL)
	provider := auth.NewProvider(repo, redisClient, auth.Config{
		Secret:     cfg.JWTSecret,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
		BcryptCost: cfg.BcryptCost,
	}, log)

	var publisher events.Publisher = events.Noop{}
	if cfg.AMQPURL != "" {
		publisher = events.NewAMQPPublisher(cfg.AMQPURL)
		log.Info("event publishing enabled")
	}
	defer func() { _ = publisher.Close() }()
	emitter := events.NewEmitter(publisher, log)
	hub := realtime.NewHub(log)

	wishlists := wishlist.NewService(repo, cfg.StoreTimeout, log, emitter, hub)
	catalogSvc := catalog.NewService(repo, cacheLayer, log)
	images := admin.NewImages(admin.NewLocalBlobStore(cfg.UploadDir, cfg.PublicBaseURL), cfg.MaxUploadBytes)
	adminSvc := admin.NewService(repo, cacheLayer, images, log, emitter, hub)

	job := ratings.NewJob(repo, cacheLayer, cfg.RatingSchedule, log)
	if err := job.Start(); err != nil {
		return fmt.Errorf("starting rating job: %w", err)
	}

	go func() {
		if err := provider.Listen(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("session event relay stopped", "err", err)
		}
	}()

	handlers := api.NewHandlers(provider, catalogSvc, wishlists, repo, adminSvc, cfg.MaxUploadBytes, log)
	router := api.NewRouter(handlers, api.RouterConfig{
		Sync:               realtime.NewServer(hub, provider, repo, cfg.StoreTimeout, log),
		UploadDir:          cfg.UploadDir,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		DB:                 &pgxPoolPinger{pool: pool},
		Redis:              &redisPingerAdapter{client: redisClient},
	}, log)

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: /api/sync connections are long-lived.
		IdleTimeout: 60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("server goroutine panicked", "recover", r)
				errCh <- fmt.Errorf("server panicked: %v", r)
			}
		}()
		log.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("listening: %w", err)
		}
	}()

	select {
	case sig := <-quit:
		log.Info("shutdown signal received", "signal", sig)
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	log.Info("closing sync connections", "conns", hub.Count(), "users", hub.UserTotal())
	hub.Close()
	job.Stop(shutdownCtx)
	stop()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	log.Info("server shut down cleanly")
	return nil
}

// pgxPoolPinger adapts pgxpool.Pool to api.Pinger.
type pgxPoolPinger struct {
	pool interface {
		Ping(ctx context.Context) error
	}
}

func (p *pgxPoolPinger) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// redisPingerAdapter adapts redis.Client to api.Pinger.
type redisPingerAdapter struct {
	client *redis.Client
}

func (r *redisPingerAdapter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
