package provider

import (
	"time"

	"github.com/stampcard-next/internal/authz"
	"github.com/stampcard-next/internal/cache"
	"github.com/stampcard-next/internal/clock"
	"github.com/stampcard-next/internal/config"
	"github.com/stampcard-next/internal/logger"
	"github.com/stampcard-next/internal/metrics"
	"github.com/stampcard-next/internal/models"
	"github.com/stampcard-next/internal/queue"
	"github.com/stampcard-next/internal/repository"
	"github.com/stampcard-next/internal/secure"
	"github.com/stampcard-next/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client
	Metrics     *metrics.LoyaltyMetrics
	Clock       clock.Clock

	// Repositories
	UserRepo           repository.UserRepository
	StaffRepo          repository.StaffRepository
	BusinessRepo       repository.BusinessRepository
	LoyaltyProgramRepo repository.LoyaltyProgramRepository
	StampCardRepo      repository.StampCardRepository
	StampTxnRepo       repository.StampTransactionRepository
	RedemptionRepo     repository.RedemptionRepository

	// Services
	AuthzService         *authz.Service
	TokenService         *service.TokenService
	LoyaltyConfigService *service.LoyaltyConfigService
	StampService         *service.StampService
	RedemptionService    *service.RedemptionService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 队列未启用时返回禁用态客户端，投递为空操作
	queueClient, err := queue.NewClient(&cfg.Queue)
	if err != nil {
		logger.Errorw("provider_init_queue_client_failed", "error", err)
		queueClient, _ = queue.NewClient(nil)
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
		Metrics:     metrics.Default(),
		Clock:       clock.SystemClock{},
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.UserRepo = repository.NewUserRepository(db)
	c.StaffRepo = repository.NewStaffRepository(db)
	c.BusinessRepo = repository.NewBusinessRepository(db)
	c.LoyaltyProgramRepo = repository.NewLoyaltyProgramRepository(db)
	c.StampCardRepo = repository.NewStampCardRepository(db)
	c.StampTxnRepo = repository.NewStampTransactionRepository(db)
	c.RedemptionRepo = repository.NewRedemptionRepository(db)
}

func (c *Container) initServices() {
	authzService, err := authz.NewService(models.DB)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		panic(err)
	}
	c.AuthzService = authzService
	if err := c.AuthzService.BootstrapBuiltinRoles(); err != nil {
		logger.Errorw("provider_bootstrap_builtin_roles_failed", "error", err)
		panic(err)
	}

	loyaltyCfg := c.Config.Loyalty
	c.TokenService = service.NewTokenService(c.Config.UserJWT, c.Config.StaffJWT)
	c.LoyaltyConfigService = service.NewLoyaltyConfigService(
		c.BusinessRepo,
		c.LoyaltyProgramRepo,
		time.Duration(loyaltyCfg.ConfigCacheSeconds)*time.Second,
	)
	c.StampService = service.NewStampService(
		c.LoyaltyConfigService,
		c.StampCardRepo,
		c.StampTxnRepo,
		c.RedemptionRepo,
		c.LoyaltyProgramRepo,
		c.QueueClient,
		c.Metrics,
		c.Clock,
		service.StampOptions{
			MaxCommitRetries: loyaltyCfg.MaxCommitRetries,
			PendingExpire:    time.Duration(loyaltyCfg.PendingExpireMinutes) * time.Minute,
		},
	)
	c.RedemptionService = service.NewRedemptionService(
		c.LoyaltyConfigService,
		c.StampCardRepo,
		c.RedemptionRepo,
		c.LoyaltyProgramRepo,
		c.UserRepo,
		secure.NewCryptoSource(),
		c.Metrics,
		c.Clock,
		service.RedemptionOptions{
			PINMaxRedraws:     loyaltyCfg.PINMaxRedraws,
			PenalizeUnmatched: c.Config.Security.Redemption.PenalizeUnmatched,
		},
	)
}
