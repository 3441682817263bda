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

	"go.uber.org/zap"

	"crisp-academy/backend/config"
	"crisp-academy/backend/internal/api/handler"
	"crisp-academy/backend/internal/api/router"
	"crisp-academy/backend/internal/queue"
	"crisp-academy/backend/internal/repository"
	"crisp-academy/backend/internal/service"
	"crisp-academy/backend/internal/ws"
	"crisp-academy/backend/pkg/certificate"
	"crisp-academy/backend/pkg/database"
	"crisp-academy/backend/pkg/jwt"
	applogger "crisp-academy/backend/pkg/logger"
	"crisp-academy/backend/pkg/redis"
	"crisp-academy/backend/pkg/storage"
	"crisp-academy/backend/pkg/validator"
)

// @title                       CRISP Academy API
// @version                     1.0
// @description                 Professional development sessions, certificates and monthly trivia.
// @BasePath                    /api/v1
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	// 1. config
	cfg, err := config.Load(os.Getenv("CRISP_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	// 2. logger
	logger, err := applogger.NewLogger(&cfg.Log, "server")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting api server",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
	)

	if err := validator.Setup(); err != nil {
		logger.Fatal("register validators failed", zap.Error(err))
	}

	// 3. database
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("connect database failed", zap.Error(err))
	}
	logger.Info("database connected")

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("get sql.DB failed", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("run migrations failed", zap.Error(err))
	}

	// 4. redis is optional: blacklist and rate limits degrade open, the
	// queue and password reset are disabled
	var (
		rdb      *redis.Client
		enqueuer queue.Enqueuer
		qc       *queue.Client
	)
	rdb, err = redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("redis unavailable, running degraded", zap.Error(err))
		rdb = nil
	} else {
		qc = queue.NewClient(&cfg.Redis, &cfg.Queue, logger)
		enqueuer = qc
	}

	// 5. collaborators
	jwtMgr := jwt.NewManager(&cfg.Auth)

	store, err := storage.NewLocalStore(cfg.Certificate.StorageDir)
	if err != nil {
		logger.Fatal("init certificate storage failed", zap.Error(err))
	}

	generator, closeGenerator, err := service.NewTriviaGenerator(&cfg.Trivia, logger)
	if err != nil {
		logger.Fatal("init trivia generator failed", zap.Error(err))
	}

	hub := ws.NewHub(logger)

	// 6. repository -> service -> handler
	repo := repository.NewRepository(db)
	svc := service.NewService(service.Deps{
		Config:      cfg,
		Repo:        repo,
		JWT:         jwtMgr,
		Redis:       rdb,
		Enqueuer:    enqueuer,
		Store:       store,
		Renderer:    certificate.NewRenderer(cfg.Certificate.Issuer, cfg.Certificate.Signatory),
		Generator:   generator,
		Broadcaster: hub,
		Logger:      logger,
	})
	h := handler.NewHandler(cfg, svc, hub, ws.NewUpgrader(cfg.Server.CORS.AllowOrigins), logger)

	// 7. routes
	engine := router.Setup(cfg, h, jwtMgr, rdb, logger)

	// 8. http server with graceful shutdown
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	// 9. wait for a signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("shutting down", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	if err := closeGenerator(); err != nil {
		logger.Warn("close trivia generator failed", zap.Error(err))
	}
	if qc != nil {
		_ = qc.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	_ = sqlDB.Close()

	logger.Info("server stopped")
}
