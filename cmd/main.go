package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/kdduha/bgremover/internal/cache"
	"github.com/kdduha/bgremover/internal/config"
	"github.com/kdduha/bgremover/internal/handler"
	"github.com/kdduha/bgremover/internal/logging"
	"github.com/kdduha/bgremover/internal/metrics"
	"github.com/kdduha/bgremover/internal/service"
	"github.com/kdduha/bgremover/internal/session"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	_ "github.com/kdduha/bgremover/docs"
	httpSwagger "github.com/swaggo/http-swagger"
)

// @title Background Remover API
// @version 1.0
// @description Upload an image and get it back with a transparent background.
// @BasePath /
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := logging.New(cfg.Server.Mode)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	remover, provider, err := service.NewRemover(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to create remover", zap.Error(err))
	}
	backgroundService := service.NewBackgroundService(logger, remover, provider)

	if cfg.CacheEnable {
		redisCache := cache.NewRedisCache(
			cfg.RedisConfig.Addr,
			cfg.RedisConfig.Password,
			cfg.RedisConfig.DB,
			cfg.RedisConfig.TTL,
		)
		defer func() {
			_ = redisCache.Close()
		}()
		if err := redisCache.Ping(ctx); err != nil {
			logger.Warn("redis is not reachable, cache misses will fall through", zap.Error(err))
		}
		backgroundService.SetCacheClient(redisCache)
		logger.Info("set redis as cache", zap.String("addr", cfg.RedisConfig.Addr))
	}

	previews := session.NewPreviewStore("/previews/")
	sessions := session.NewManager(logger, backgroundService, previews, cfg.Session.TTL)
	if err := sessions.Start(cfg.Session.SweepSchedule); err != nil {
		logger.Fatal("failed to start session sweeper", zap.Error(err))
	}

	s := handler.NewSessionHandler(sessions, previews, cfg.Upload, logger)
	rm := handler.NewRemoveHandler(backgroundService, logger)

	r := chi.NewRouter()
	r.Use([]func(http.Handler) http.Handler{
		middleware.RequestID,
		logging.Middleware(logger),
		middleware.Recoverer,
		middleware.Throttle(cfg.Server.ThrottleLimit),
		middleware.Timeout(cfg.Server.Timeout),
		metrics.Middleware,
	}...)

	r.Get("/", s.Index)
	r.Get("/state", s.State)
	r.Post("/file", s.SelectFile)
	r.Post("/remove", s.Remove)
	r.Get("/previews/{id}", s.Preview)
	r.Get("/download", s.Download)

	r.Post("/api/v1/remove-background", rm.RemoveBackground)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	r.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info("server started",
			zap.String("port", cfg.Server.Port),
			zap.String("provider", provider))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen error", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	sessions.Stop(shutdownCtx)
	logger.Info("server stopped")
}
