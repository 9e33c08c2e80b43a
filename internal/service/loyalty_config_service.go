package service

import (
	"context"
	"time"

	"github.com/stampcard-next/internal/cache"
	"github.com/stampcard-next/internal/logger"
	"github.com/stampcard-next/internal/models"
	"github.com/stampcard-next/internal/repository"
)

// LoyaltyConfigService 商户集点配置读取（Redis 读穿缓存）
type LoyaltyConfigService struct {
	businessRepo repository.BusinessRepository
	programRepo  repository.LoyaltyProgramRepository
	cacheTTL     time.Duration
}

// NewLoyaltyConfigService 创建集点配置服务
func NewLoyaltyConfigService(businessRepo repository.BusinessRepository, programRepo repository.LoyaltyProgramRepository, cacheTTL time.Duration) *LoyaltyConfigService {
	return &LoyaltyConfigService{
		businessRepo: businessRepo,
		programRepo:  programRepo,
		cacheTTL:     cacheTTL,
	}
}

// Load 读取商户配置快照；商户不存在或已删除时返回 nil
func (s *LoyaltyConfigService) Load(ctx context.Context, businessID uint) (*cache.LoyaltyConfigSnapshot, error) {
	if businessID == 0 {
		return nil, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if s.cacheTTL > 0 {
		snapshot, hit, err := cache.GetLoyaltyConfig(ctx, businessID)
		if err != nil {
			logger.Warnw("loyalty_config_cache_get_failed", "business_id", businessID, "error", err)
		} else if hit && snapshot != nil {
			return snapshot, nil
		}
	}

	business, err := s.businessRepo.GetByID(businessID)
	if err != nil {
		return nil, err
	}
	if business == nil {
		return nil, nil
	}
	hours, err := s.businessRepo.ListHours(businessID)
	if err != nil {
		return nil, err
	}
	program, err := s.programRepo.GetActiveByBusiness(businessID)
	if err != nil {
		return nil, err
	}
	snapshot := &cache.LoyaltyConfigSnapshot{
		Business: *business,
		Hours:    hours,
		Program:  program,
	}
	if s.cacheTTL > 0 {
		if err := cache.SetLoyaltyConfig(ctx, snapshot, s.cacheTTL); err != nil {
			logger.Warnw("loyalty_config_cache_set_failed", "business_id", businessID, "error", err)
		}
	}
	return snapshot, nil
}

// Invalidate 清除商户配置缓存
func (s *LoyaltyConfigService) Invalidate(ctx context.Context, businessID uint) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := cache.DelLoyaltyConfig(ctx, businessID); err != nil {
		logger.Warnw("loyalty_config_cache_del_failed", "business_id", businessID, "error", err)
	}
}

// ResolveProgram 核销时使用的计划：优先启用中的计划，否则回退到最新计划
func (s *LoyaltyConfigService) ResolveProgram(snapshot *cache.LoyaltyConfigSnapshot) (*models.LoyaltyProgram, error) {
	if snapshot == nil {
		return nil, nil
	}
	if snapshot.Program != nil {
		return snapshot.Program, nil
	}
	return s.programRepo.GetLatestByBusiness(snapshot.Business.ID)
}
