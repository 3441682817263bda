package main

import (
	"context"
	"fmt"
	"os"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"crisp-academy/backend/config"
	"crisp-academy/backend/internal/queue"
	"crisp-academy/backend/internal/repository"
	"crisp-academy/backend/internal/service"
	"crisp-academy/backend/pkg/certificate"
	"crisp-academy/backend/pkg/database"
	applogger "crisp-academy/backend/pkg/logger"
	"crisp-academy/backend/pkg/mailer"
	"crisp-academy/backend/pkg/storage"
)

// The worker consumes email and certificate jobs and runs the periodic
// sweep that finalises overdue attempts.
func main() {
	cfg, err := config.Load(os.Getenv("CRISP_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		fx.Supply(cfg),
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.Named("fx")}
		}),

		// core
		fx.Provide(
			newLogger,
			newDatabase,
			repository.NewRepository,
			newStore,
			newMailer,
			newQueueClient,
		),

		// services the jobs call
		fx.Provide(
			func(c *queue.Client) queue.Enqueuer { return c },
			func(cfg *config.Config) service.CertificateRenderer {
				return certificate.NewRenderer(cfg.Certificate.Issuer, cfg.Certificate.Signatory)
			},
			service.NewCertificateService,
			service.NewProgressService,
		),

		// asynq
		fx.Provide(
			func(m mailer.Mailer, store storage.Store, certs service.CertificateService, progress service.ProgressService, logger *zap.Logger) *queue.Handlers {
				return queue.NewHandlers(m, store, certs, progress, logger)
			},
			func(cfg *config.Config, logger *zap.Logger) *asynq.Server {
				return queue.NewServer(&cfg.Redis, &cfg.Queue, logger)
			},
			func(cfg *config.Config, logger *zap.Logger) (*asynq.Scheduler, error) {
				return queue.NewScheduler(&cfg.Redis, &cfg.Queue, logger)
			},
		),

		fx.Invoke(runWorker),
	)

	app.Run()
}

func newLogger(lc fx.Lifecycle, cfg *config.Config) (*zap.Logger, error) {
	logger, err := applogger.NewLogger(&cfg.Log, "worker")
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			_ = logger.Sync()
			return nil
		},
	})
	return logger, nil
}

func newDatabase(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (*gorm.DB, error) {
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})
	return db, nil
}

func newStore(cfg *config.Config) (storage.Store, error) {
	return storage.NewLocalStore(cfg.Certificate.StorageDir)
}

func newMailer(cfg *config.Config, logger *zap.Logger) (mailer.Mailer, error) {
	return mailer.New(&cfg.Mail, logger)
}

func newQueueClient(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) *queue.Client {
	c := queue.NewClient(&cfg.Redis, &cfg.Queue, logger)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return c.Close() },
	})
	return c
}

func runWorker(lc fx.Lifecycle, srv *asynq.Server, scheduler *asynq.Scheduler, h *queue.Handlers, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if err := srv.Start(queue.NewServeMux(h)); err != nil {
				return fmt.Errorf("start asynq server: %w", err)
			}
			if err := scheduler.Start(); err != nil {
				srv.Shutdown()
				return fmt.Errorf("start asynq scheduler: %w", err)
			}
			logger.Info("worker started")
			return nil
		},
		OnStop: func(context.Context) error {
			scheduler.Shutdown()
			srv.Shutdown()
			logger.Info("worker stopped")
			return nil
		},
	})
}
