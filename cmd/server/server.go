package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/deicod/svcerr/apierror"
	"github.com/deicod/svcerr/apierror/ginerr"
	"github.com/deicod/svcerr/blocking"
	"github.com/deicod/svcerr/config"
	"github.com/deicod/svcerr/internal/accounts"
	"github.com/deicod/svcerr/internal/logger"
	"github.com/deicod/svcerr/internal/store"
	"github.com/deicod/svcerr/middleware"
	"github.com/deicod/svcerr/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

type settings struct {
	DatabaseURL string
	ListenAddr  string
	Environment string
	HashWorkers int
	Auth        config.Config
}

func loadSettings() (settings, error) {
	s := settings{
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		ListenAddr:  strings.TrimSpace(os.Getenv("LISTEN_ADDR")),
		Environment: strings.TrimSpace(os.Getenv("ENVIRONMENT")),
		HashWorkers: blocking.DefaultLimit,
	}
	if s.DatabaseURL == "" {
		return settings{}, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	if s.ListenAddr == "" {
		s.ListenAddr = ":8080"
	}
	if s.Environment == "" {
		s.Environment = "development"
	}
	if raw := strings.TrimSpace(os.Getenv("HASH_WORKERS")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return settings{}, fmt.Errorf("HASH_WORKERS must be a positive integer")
		}
		s.HashWorkers = n
	}

	auth, err := config.Load(config.LoadOptions{
		File:      strings.TrimSpace(os.Getenv("AUTH_CONFIG_FILE")),
		EnvPrefix: "AUTH",
	})
	if err != nil {
		return settings{}, fmt.Errorf("load auth config: %w", err)
	}
	s.Auth = auth
	return s, nil
}

type deps struct {
	responder apierror.Responder
	metrics   *observability.Metrics
	auth      func(http.Handler) http.Handler
	accounts  *accounts.Handler
}

func newServer(ctx context.Context, s settings) (*http.Server, func(), error) {
	pool, err := store.NewPool(ctx, s.DatabaseURL, 10)
	if err != nil {
		return nil, nil, err
	}
	repo := store.New(pool)
	if err := repo.Initialize(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	metrics, err := observability.NewMetrics(observability.MetricsOptions{
		Registerer: prometheus.NewRegistry(),
		Namespace:  "svcerr",
	})
	if err != nil {
		pool.Close()
		return nil, nil, err
	}

	responder := apierror.Responder{Logger: logger.Default(), Recorder: metrics}
	authCfg := s.Auth
	authCfg.Metrics = metrics
	authCfg.Responder = responder
	auth, err := middleware.NewMiddleware(authCfg)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("create auth middleware: %w", err)
	}

	svc := accounts.NewService(repo, nil, blocking.NewPool(s.HashWorkers))
	router := newRouter(s.Environment, deps{
		responder: responder,
		metrics:   metrics,
		auth:      auth,
		accounts:  accounts.NewHandler(svc, responder),
	})

	srv := &http.Server{
		Addr:              s.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv, pool.Close, nil
}

func newRouter(environment string, d deps) *gin.Engine {
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), ginerr.Middleware(d.responder))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(d.metrics.Handler()))
	router.NoRoute(func(c *gin.Context) {
		ginerr.Abort(c, d.responder, apierror.NotFound())
	})

	authed := router.Group("", middleware.Gin(d.auth))
	d.accounts.Routes(router, authed)
	return router
}
