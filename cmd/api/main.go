package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"call-platform/internal/audit"
	"call-platform/internal/auth"
	"call-platform/internal/calls"
	"call-platform/internal/config"
	"call-platform/internal/httpapi"
	"call-platform/internal/media"
	"call-platform/internal/reporting"
	"call-platform/internal/signaling"
	"call-platform/pkg/logger"
	"call-platform/pkg/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if os.Getenv("APP_ENV") != "production" {
		_ = godotenv.Load()
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN())
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	store := calls.NewPostgresStore(db)
	auditRepo := audit.NewPostgresRepo(db)
	for name, ensure := range map[string]func(context.Context) error{
		"call_sessions":     store.EnsureSchema,
		"call_audit_events": auditRepo.EnsureSchema,
	} {
		if err := ensure(rootCtx); err != nil {
			log.Error("schema init failed", "table", name, "err", err)
			os.Exit(1)
		}
	}

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	provider, err := media.NewLiveKitProvider(cfg.LiveKit)
	if err != nil {
		log.Error("media provider init failed", "err", err)
		os.Exit(1)
	}

	bus := signaling.NewRedisBus(rdb, cfg.Signaling.ChannelPrefix, log)
	dispatcher := signaling.NewDispatcher(bus, log, signaling.DispatcherConfig{
		QueueSize:      cfg.Signaling.QueueSize,
		Workers:        cfg.Signaling.Workers,
		PublishTimeout: cfg.Signaling.PublishTimeout,
	})

	callSvc := calls.NewService(store, provider, dispatcher, calls.Options{
		RetryBudget: cfg.Calls.RetryBudget,
		Auditor:     audit.NewService(auditRepo),
		Logger:      log,
	})
	janitor := calls.NewJanitor(callSvc, cfg.Calls.RingTimeout, cfg.Calls.JanitorInterval, log)
	go janitor.Run(rootCtx)

	gateway := signaling.NewGateway(bus, cfg.HTTP.AllowedOrigins, log)
	if cfg.Signaling.MaxConnsPerUser > 0 {
		gateway.WithLimiter(signaling.NewRedisConnLimiter(rdb, cfg.Signaling.ChannelPrefix, cfg.Signaling.MaxConnsPerUser, 0))
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	if len(cfg.HTTP.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.HTTP.AllowedOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-Id"},
			ExposeHeaders:    []string{"X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	registerRoutes(r, auth.RequireAccessToken(authManager), httpapi.Handlers{
		Auth:      authManager,
		Calls:     callSvc,
		Reporting: reporting.NewService(store),
		Janitor:   janitor,
	}, gateway)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		log.Error("signaling drain failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
