package queue

import (
	"context"
	"math"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"crisp-academy/backend/config"
)

// RetryDelay returns an exponential backoff of base*2^n capped at max.
func RetryDelay(base, max time.Duration) asynq.RetryDelayFunc {
	return func(n int, _ error, _ *asynq.Task) time.Duration {
		if n < 0 {
			n = 0
		}
		d := float64(base) * math.Pow(2, float64(n))
		if d > float64(max) || math.IsInf(d, 0) {
			return max
		}
		return time.Duration(d)
	}
}

// NewServer creates the consumer side of the queue.
func NewServer(redisCfg *config.RedisConfig, queueCfg *config.QueueConfig, logger *zap.Logger) *asynq.Server {
	concurrency := queueCfg.Concurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	return asynq.NewServer(RedisOpt(redisCfg), asynq.Config{
		Concurrency:    concurrency,
		Queues:         Queues,
		RetryDelayFunc: RetryDelay(queueCfg.BackoffBase, queueCfg.BackoffMax),
		Logger:         logger.Named("asynq").Sugar(),
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			logger.Error("task failed",
				zap.String("type", task.Type()),
				zap.Int("retried", retried),
				zap.Int("max_retry", maxRetry),
				zap.Error(err),
			)
		}),
	})
}

// NewScheduler registers the periodic expiry sweep.
func NewScheduler(redisCfg *config.RedisConfig, queueCfg *config.QueueConfig, logger *zap.Logger) (*asynq.Scheduler, error) {
	scheduler := asynq.NewScheduler(RedisOpt(redisCfg), &asynq.SchedulerOpts{
		Location: time.UTC,
		Logger:   logger.Named("asynq.scheduler").Sugar(),
	})
	cronExpr := queueCfg.SweepCron
	if cronExpr == "" {
		cronExpr = "@every 1m"
	}
	entryID, err := scheduler.Register(cronExpr, NewExpireSweepTask())
	if err != nil {
		return nil, err
	}
	logger.Info("expiry sweep scheduled", zap.String("cron", cronExpr), zap.String("entry_id", entryID))
	return scheduler, nil
}
