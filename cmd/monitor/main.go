package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"polyfolio/internal/config"
	cronrunner "polyfolio/internal/cron"
	"polyfolio/internal/db"
	"polyfolio/internal/handler"
	"polyfolio/internal/logger"
	"polyfolio/internal/reconcile"
	gormrepository "polyfolio/internal/repository/gorm"
	"polyfolio/internal/service"
	"polyfolio/internal/stream"
	"polyfolio/internal/telegram"
)

func main() {
	cfgPath := os.Getenv("PF_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("PF_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	store := gormrepository.New(dbConn.Gorm)

	source, err := telegram.New(cfg.Telegram, logger)
	if err != nil {
		logger.Fatal("telegram client init failed", zap.Error(err))
	}

	engine := reconcile.NewEngine(store, logger, cfg.Monitor.DedupTolerance)
	hub := stream.NewHub()
	refreshSvc := &service.RefreshService{
		Source:        source,
		Engine:        engine,
		Repo:          store,
		Hub:           hub,
		Logger:        logger,
		BackfillLimit: cfg.Monitor.BackfillLimit,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{DB: dbConn}
	healthHandler.Register(router)
	snapshotHandler := &handler.SnapshotHandler{Repo: store}
	snapshotHandler.Register(router)
	eventHandler := &handler.EventHandler{Repo: store}
	eventHandler.Register(router)
	monitorHandler := &handler.MonitorHandler{Service: refreshSvc}
	monitorHandler.Register(router)
	streamHandler := &handler.StreamHandler{Hub: hub, Logger: logger}
	streamHandler.Register(router)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := engine.Initialize(ctx); err != nil {
		logger.Warn("trader state seed failed (will retry on first refresh)", zap.Error(err))
	}

	if cfg.Monitor.BackfillOnStart {
		res, err := refreshSvc.Backfill(ctx)
		if err != nil {
			logger.Warn("startup backfill failed", zap.Error(err))
		} else {
			logger.Info("startup backfill complete",
				zap.Int("fetched", res.Fetched),
				zap.Int("imported", res.Imported),
				zap.Int("skipped", res.Skipped),
				zap.Int("failed", res.Failed),
			)
		}
	}

	cronRunner := cronrunner.New(logger, ctx)
	_, err = cronRunner.Add(cfg.Monitor.RefreshSpec, func(ctx context.Context) {
		if _, err := refreshSvc.Refresh(ctx); err != nil {
			if errors.Is(err, service.ErrRefreshInFlight) {
				logger.Debug("refresh tick skipped, pass in flight")
				return
			}
			logger.Warn("scheduled refresh failed", zap.Error(err))
		}
	})
	if err != nil {
		logger.Warn("cron register refresh failed", zap.Error(err))
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	if cfg.Monitor.RefreshOnStart {
		go func() {
			if _, err := refreshSvc.Refresh(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("initial refresh failed", zap.Error(err))
			}
		}()
	}

	errCh := make(chan error, 2)

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
