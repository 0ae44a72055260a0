// Package main 活跃追踪服务入口
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"activity-tracker/internal/config"
	"activity-tracker/internal/hooks"
	"activity-tracker/internal/metrics"
	"activity-tracker/internal/server"
	"activity-tracker/internal/shared/cache"
	memorycache "activity-tracker/internal/shared/cache/memory"
	rediscache "activity-tracker/internal/shared/cache/redis"
	"activity-tracker/internal/storage"
	"activity-tracker/internal/tracker"
	"activity-tracker/pkg/logging"
)

func main() {
	cfg := config.Load()

	logger := logging.Default("tracker")
	logger.Info("Starting activity tracker", "env", string(cfg.Env), "config", cfg.String())

	// 持久化镜像（postgres 或 sqlite）
	var store storage.SessionStore
	var err error
	switch cfg.DatabaseDriver {
	case "sqlite":
		store, err = storage.NewSQLiteStore(cfg.DatabaseURL)
	default:
		store, err = storage.NewPostgresStore(cfg.DatabaseURL)
	}
	if err != nil {
		log.Fatalf("Failed to open durable store: %v", err)
	}
	defer store.Close()
	logger.Info("Connected to durable store", "driver", cfg.DatabaseDriver)

	// 键值后端：配置了 Redis 走网络存储，否则进程内 map
	var backend cache.Backend
	if cfg.UseRedis() {
		backend, err = rediscache.NewStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		logger.Info("Connected to Redis", "addr", cfg.RedisAddr)
	} else {
		backend = memorycache.NewStore()
		logger.Info("Using in-process cache backend")
	}
	defer backend.Close()

	m := metrics.New("activity_tracker")
	trk := tracker.New(backend, cfg.ActiveWindow(), logger, m)
	syncer := tracker.NewSyncer(trk, store, logger, m)
	recorder := hooks.NewRecorder(trk, logger)

	// 启动播种：hydrate 失败只降级，不阻断启动
	hydrateCtx, cancelHydrate := context.WithTimeout(context.Background(), 60*time.Second)
	if err := syncer.Hydrate(hydrateCtx); err != nil {
		logger.WithError(err).Warn("Hydrate failed, starting with empty cache")
	}
	cancelHydrate()

	h := server.NewHandler(trk, recorder, m, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      h.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 优雅关闭：先停服务，再 flush 快照
	done := make(chan struct{})
	go func() {
		defer close(done)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.WithError(err).Error("Server shutdown error")
		}
		if err := syncer.Flush(ctx); err != nil {
			logger.WithError(err).Error("Flush on shutdown failed")
		}
	}()

	logger.Info("Activity tracker listening", "port", cfg.APIPort)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	<-done
	logger.Info("Activity tracker stopped")
}
