package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/stampcard-next/internal/models"
)

// LoyaltyConfigSnapshot 商户集点配置快照（商户、营业时间、启用的计划）
type LoyaltyConfigSnapshot struct {
	Business models.Business        `json:"business"`
	Hours    []models.BusinessHours `json:"hours"`
	Program  *models.LoyaltyProgram `json:"program"`
	CachedAt int64                  `json:"cached_at"`
}

func loyaltyConfigKey(businessID uint) string {
	return fmt.Sprintf("loyalty:config:%d", businessID)
}

// GetLoyaltyConfig 获取商户集点配置快照
func GetLoyaltyConfig(ctx context.Context, businessID uint) (*LoyaltyConfigSnapshot, bool, error) {
	if businessID == 0 {
		return nil, false, nil
	}
	var snapshot LoyaltyConfigSnapshot
	hit, err := GetJSON(ctx, loyaltyConfigKey(businessID), &snapshot)
	if err != nil || !hit {
		return nil, hit, err
	}
	return &snapshot, true, nil
}

// SetLoyaltyConfig 写入商户集点配置快照，ttl <= 0 时不缓存
func SetLoyaltyConfig(ctx context.Context, snapshot *LoyaltyConfigSnapshot, ttl time.Duration) error {
	if snapshot == nil || snapshot.Business.ID == 0 || ttl <= 0 {
		return nil
	}
	if snapshot.CachedAt == 0 {
		snapshot.CachedAt = time.Now().Unix()
	}
	return SetJSON(ctx, loyaltyConfigKey(snapshot.Business.ID), snapshot, ttl)
}

// DelLoyaltyConfig 删除商户集点配置快照
func DelLoyaltyConfig(ctx context.Context, businessID uint) error {
	if businessID == 0 {
		return nil
	}
	return Del(ctx, loyaltyConfigKey(businessID))
}
