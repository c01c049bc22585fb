package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/iub-eis/eis/frontend/go-dashboard/handlers"
	"github.com/iub-eis/eis/frontend/go-dashboard/internal/app"
	"github.com/iub-eis/eis/frontend/go-dashboard/internal/config"
	"github.com/iub-eis/eis/frontend/go-dashboard/internal/routes"
	"github.com/iub-eis/eis/frontend/go-dashboard/internal/session"
	"github.com/iub-eis/eis/frontend/go-dashboard/pkg/logger"
	"github.com/iub-eis/eis/frontend/go-dashboard/pkg/metrics"
	"github.com/iub-eis/eis/frontend/go-dashboard/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var startTime = time.Now()

func main() {
	// LOG_LEVEL and LOG_FORMAT are read again by LoadConfig; this is for the
	// config errors themselves
	logger.InitFormat(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	defer func() { _ = logger.Sync() }()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.InitFormat(cfg.Log.Level, cfg.Log.Format)
	logger.Debugf("startup: LOG_LEVEL=%s", logger.LevelString())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatalf("failed to start session stack: %v", err)
	}
	defer a.Close()

	notices := routes.NewNotices()
	go notices.Listen(ctx, a.Interceptor.Events())

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := newRouter(a, notices)
	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	logger.Infof("config summary: api=%s credentials=%s redis=%v rate_limit=%v",
		cfg.API.BaseURL, cfg.Credentials.Backend, a.Redis != nil, cfg.RateLimit.Enabled)

	errc := make(chan error, 1)
	go func() {
		logger.Infof("starting dashboard shell on http://%s", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	// pages render a placeholder until this settles
	go func() {
		if err := a.Manager.Bootstrap(ctx); err != nil {
			logger.Warnf("session restore: %v", err)
		}
	}()

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	case <-ctx.Done():
		logger.Infof("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("shutdown: %v", err)
		}
	}
}

// newRouter builds the shell's gin engine without the metrics endpoint.
func newRouter(a *app.App, notices *routes.Notices) *gin.Engine {
	cfg := a.Config
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger())

	var loginLimit gin.HandlerFunc
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && a.Redis != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			loginLimit = middleware.RedisRateLimitMiddleware(a.Redis, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win)
		} else {
			if cfg.RateLimit.UseRedis {
				logger.Warnf("redis unavailable, login rate limit kept in memory")
			}
			loginLimit = middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	// ready once the stored session has been restored or dropped
	r.GET("/ready", func(c *gin.Context) {
		status := a.Manager.Current().Status
		deps := map[string]bool{
			"session": status != session.Bootstrapping,
			"redis":   !(cfg.RateLimit.UseRedis || cfg.Credentials.Backend == config.BackendRedis) || a.Redis != nil,
		}
		body := gin.H{"session": status, "deps": deps, "uptime": fmt.Sprintf("%s", time.Since(startTime))}
		for _, ok := range deps {
			if !ok {
				body["status"] = "not_ready"
				c.JSON(http.StatusServiceUnavailable, body)
				return
			}
		}
		body["status"] = "ready"
		c.JSON(http.StatusOK, body)
	})

	handlers.NewShellHandler(a.Manager, a.Client, notices).Register(r, loginLimit)
	handlers.RegisterSwagger(r)
	return r
}
