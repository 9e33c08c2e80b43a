package worker

import (
	"context"
	"errors"
	"time"

	"github.com/stampcard-next/internal/config"
	"github.com/stampcard-next/internal/logger"
	"github.com/stampcard-next/internal/queue"

	"github.com/hibiken/asynq"
)

const (
	stalePendingSweepInterval = time.Minute
)

// Service 异步队列服务
type Service struct {
	name     string
	server   *asynq.Server
	mux      *asynq.ServeMux
	consumer *Consumer
}

// NewService 创建异步队列服务
func NewService(cfg *config.QueueConfig, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(cfg)
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)
	return &Service{
		name:     "worker",
		server:   server,
		mux:      mux,
		consumer: consumer,
	}, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	if s.consumer != nil && s.consumer.Container != nil && s.consumer.StampService != nil {
		go s.runStalePendingSweepLoop(ctx)
	}
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	_ = ctx
	s.server.Shutdown()
	return nil
}

func (s *Service) runStalePendingSweepLoop(ctx context.Context) {
	runStalePendingSweep(ctx, s.consumer, stalePendingSweepInterval)
}

// runStalePendingSweep 兜底扫描：补偿投递失败或队列数据丢失的超时任务
func runStalePendingSweep(ctx context.Context, consumer *Consumer, interval time.Duration) {
	runOnce := func() {
		expired, err := consumer.StampService.ExpireStalePending(ctx, consumer.now())
		if err != nil {
			logger.Warnw("worker_stamp_pending_sweep_failed", "expired", expired, "error", err)
			return
		}
		if expired > 0 {
			logger.Infow("worker_stamp_pending_sweep_done", "expired", expired)
		}
	}
	runOnce()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}

// SweepService 队列未启用时在进程内执行超时驳回扫描
type SweepService struct {
	consumer *Consumer
	interval time.Duration
}

// NewSweepService 创建进程内扫描服务
func NewSweepService(consumer *Consumer) (*SweepService, error) {
	if consumer == nil || consumer.Container == nil || consumer.StampService == nil {
		return nil, errors.New("stamp service is nil")
	}
	return &SweepService{consumer: consumer, interval: stalePendingSweepInterval}, nil
}

// Name 服务名称
func (s *SweepService) Name() string {
	return "pending-sweeper"
}

// Start 阻塞运行直到 ctx 取消
func (s *SweepService) Start(ctx context.Context) error {
	if s == nil || s.consumer == nil {
		return errors.New("sweeper not initialized")
	}
	runStalePendingSweep(ctx, s.consumer, s.interval)
	return nil
}

// Stop 由 Start 的 ctx 取消驱动退出
func (s *SweepService) Stop(ctx context.Context) error {
	return nil
}
