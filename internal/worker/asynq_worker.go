package worker

import (
	"context"
	"errors"
	"time"

	"github.com/stampcard-next/internal/logger"
	"github.com/stampcard-next/internal/provider"
	"github.com/stampcard-next/internal/queue"
	"github.com/stampcard-next/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
	now func() time.Time
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	consumer := &Consumer{
		Container: c,
		now:       time.Now,
	}
	if c != nil && c.Clock != nil {
		consumer.now = c.Clock.Now
	}
	return consumer
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskStampPendingExpire, c.handleStampPendingExpire)
}

// handleStampPendingExpire 到期仍未审核的集点流水自动驳回
func (c *Consumer) handleStampPendingExpire(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_stamp_pending_expire_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	payload, err := queue.ParseStampPendingExpirePayload(task)
	if err != nil {
		logger.Warnw("worker_stamp_pending_expire_unmarshal_failed", "error", err)
		return err
	}
	if payload.TransactionID == 0 {
		logger.Debugw("worker_stamp_pending_expire_skip_invalid_payload", "transaction_id", payload.TransactionID)
		return nil
	}
	if c.Container == nil || c.StampService == nil {
		logger.Warnw("worker_stamp_pending_expire_skip_service_nil", "transaction_id", payload.TransactionID)
		return nil
	}
	err = c.StampService.RejectPending(ctx, service.ReviewStampInput{
		TransactionID: payload.TransactionID,
		Now:           c.now(),
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, service.ErrStampTxnNotPending), errors.Is(err, service.ErrStampTxnNotFound):
		// 已被人工审核或已删除
		logger.Debugw("worker_stamp_pending_expire_skip_reviewed", "transaction_id", payload.TransactionID, "error", err)
		return nil
	default:
		logger.Warnw("worker_stamp_pending_expire_failed", "transaction_id", payload.TransactionID, "error", err)
		return err
	}
}
