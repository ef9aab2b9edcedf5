package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rmaloney/weather-proxy/internal/cache"
	"github.com/rmaloney/weather-proxy/internal/client"
	"github.com/rmaloney/weather-proxy/internal/config"
	httphandler "github.com/rmaloney/weather-proxy/internal/http"
	"github.com/rmaloney/weather-proxy/internal/lifecycle"
	"github.com/rmaloney/weather-proxy/internal/observability"
	"github.com/rmaloney/weather-proxy/internal/scheduler"
	"github.com/rmaloney/weather-proxy/internal/service"
	"github.com/rmaloney/weather-proxy/internal/store"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	weatherClient, err := client.NewOpenWeatherClient(cfg.OpenWeatherAPIKey, cfg.OpenWeatherBaseURL, cfg.UpstreamTimeout)
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}
	if cfg.BreakerEnabled {
		cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "openweathermap",
			MaxRequests: cfg.BreakerMaxRequests,
			Interval:    cfg.BreakerInterval,
			Timeout:     cfg.BreakerTimeout,
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state change",
					zap.String("name", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		})
		weatherClient.SetCircuitBreaker(cb)
		logger.Info("circuit breaker enabled", zap.Duration("timeout", cfg.BreakerTimeout))
	}

	ttl := cache.TTLConfig{Current: cfg.TTLCurrent, Forecast: cfg.TTLForecast}
	var (
		backend   cache.Cache
		cachePing func() error
		db        *sql.DB
		mc        *cache.MemcachedCache
	)
	switch cfg.CacheBackend {
	case "memcached":
		mc, err = cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns, ttl)
		if err != nil {
			logger.Fatal("memcached cache", zap.Error(err))
		}
		backend = mc
		cachePing = mc.Ping
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		db, err = store.Open(cfg.DBPath)
		if err != nil {
			logger.Fatal("sqlite cache", zap.Error(err))
		}
		if n, err := store.PurgeExpiredAt(db, time.Now()); err != nil {
			logger.Warn("startup cache purge failed", zap.Error(err))
		} else if n > 0 {
			observability.CachePurgedTotal.Add(float64(n))
			logger.Info("purged expired cache entries on startup", zap.Int64("count", n))
		}
		backend = cache.NewSQLiteCache(db, ttl)
		cachePing = db.Ping
		logger.Info("cache backend: sqlite", zap.String("path", cfg.DBPath))
	}
	cacheSvc := cache.NewBestEffort(backend, logger)
	weatherService := service.NewWeatherService(weatherClient, cacheSvc)

	purger := scheduler.New(cacheSvc, cfg.PurgeInterval, logger)
	if err := purger.Start(); err != nil {
		logger.Fatal("purge scheduler", zap.Error(err))
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	handler := httphandler.NewHandler(weatherService, logger, cachePing)

	router := mux.NewRouter()
	router.Use(httphandler.CorrelationIDMiddleware(logger))
	router.Use(httphandler.MetricsMiddleware)
	router.Use(httphandler.CORSMiddleware(cfg.CORSOrigins))
	router.HandleFunc("/health", handler.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler())
	weatherRouter := router.PathPrefix("/api/weather").Subrouter()
	weatherRouter.Use(httphandler.RateLimitMiddleware(limiter))
	weatherRouter.Use(httphandler.TimeoutMiddleware(cfg.RequestTimeout))
	weatherRouter.HandleFunc("/current", handler.GetCurrent).Methods("GET")
	weatherRouter.HandleFunc("/forecast", handler.GetForecast).Methods("GET")
	weatherRouter.HandleFunc("/bundle", handler.GetBundle).Methods("GET")
	router.NotFoundHandler = http.HandlerFunc(handler.NotFound)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	purger.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	if db != nil {
		if err := db.Close(); err != nil {
			logger.Error("sqlite close", zap.Error(err))
		}
	}
	if mc != nil {
		if err := mc.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}
