package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"crisp-academy/backend/config"
)

// Enqueuer is what services use to schedule background work.
type Enqueuer interface {
	EnqueueEmail(ctx context.Context, p EmailPayload) error
	EnqueueCertificate(ctx context.Context, certificateID string) error
}

// Client enqueues tasks on Redis.
type Client struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	maxRetry  int
	timeout   time.Duration
	logger    *zap.Logger
}

// RedisOpt converts the redis config into asynq's connection option.
func RedisOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// NewClient creates the producer side of the queue.
func NewClient(redisCfg *config.RedisConfig, queueCfg *config.QueueConfig, logger *zap.Logger) *Client {
	return newClient(RedisOpt(redisCfg), queueCfg.MaxRetry, queueCfg.TaskTimeout, logger)
}

func newClient(opt asynq.RedisConnOpt, maxRetry int, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
		maxRetry:  maxRetry,
		timeout:   timeout,
		logger:    logger,
	}
}

func (c *Client) options(extra ...asynq.Option) []asynq.Option {
	opts := []asynq.Option{asynq.MaxRetry(c.maxRetry)}
	if c.timeout > 0 {
		opts = append(opts, asynq.Timeout(c.timeout))
	}
	return append(opts, extra...)
}

// EnqueueEmail schedules an email:send task.
func (c *Client) EnqueueEmail(ctx context.Context, p EmailPayload) error {
	task, err := NewEmailTask(p)
	if err != nil {
		return err
	}
	info, err := c.client.EnqueueContext(ctx, task, c.options()...)
	if err != nil {
		return fmt.Errorf("enqueue email: %w", err)
	}
	c.logger.Debug("email enqueued",
		zap.String("task_id", info.ID),
		zap.String("template", p.Template),
	)
	return nil
}

// EnqueueCertificate schedules certificate generation. The task id is derived
// from the certificate so a duplicate request while one is waiting or running
// is dropped. A finished task still held for retention is replaced.
func (c *Client) EnqueueCertificate(ctx context.Context, certificateID string) error {
	task, err := NewCertificateTask(certificateID)
	if err != nil {
		return err
	}
	taskID := certificateTaskID(certificateID)
	opts := c.options(asynq.TaskID(taskID), asynq.Retention(time.Hour))

	info, err := c.client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		released, relErr := c.releaseFinished(QueueDefault, taskID)
		if relErr != nil {
			return fmt.Errorf("enqueue certificate: %w", relErr)
		}
		if !released {
			c.logger.Info("certificate task already queued", zap.String("certificate_id", certificateID))
			return nil
		}
		info, err = c.client.EnqueueContext(ctx, task, opts...)
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			c.logger.Info("certificate task already queued", zap.String("certificate_id", certificateID))
			return nil
		}
	}
	if err != nil {
		return fmt.Errorf("enqueue certificate: %w", err)
	}
	c.logger.Debug("certificate enqueued",
		zap.String("task_id", info.ID),
		zap.String("certificate_id", certificateID),
	)
	return nil
}

func certificateTaskID(certificateID string) string {
	return "certificate:" + certificateID
}

// releaseFinished frees a task id held by a completed or archived task.
// It reports false when the task is still pending, scheduled, retrying or active.
func (c *Client) releaseFinished(queue, taskID string) (bool, error) {
	info, err := c.inspector.GetTaskInfo(queue, taskID)
	if errors.Is(err, asynq.ErrTaskNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	switch info.State {
	case asynq.TaskStateCompleted, asynq.TaskStateArchived:
	default:
		return false, nil
	}
	if err := c.inspector.DeleteTask(queue, taskID); err != nil && !errors.Is(err, asynq.ErrTaskNotFound) {
		return false, err
	}
	c.logger.Info("released finished certificate task",
		zap.String("task_id", taskID),
		zap.String("state", info.State.String()),
	)
	return true, nil
}

// Close releases the Redis connections.
func (c *Client) Close() error {
	return errors.Join(c.client.Close(), c.inspector.Close())
}
