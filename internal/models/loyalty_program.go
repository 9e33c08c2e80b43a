package models

import (
	"time"

	"gorm.io/gorm"
)

// LoyaltyProgram 商户集点计划配置（本引擎只读）
type LoyaltyProgram struct {
	ID                     uint           `gorm:"primarykey" json:"id"`                                              // 主键
	BusinessID             uint           `gorm:"index;not null" json:"business_id"`                                 // 商户ID
	Name                   string         `gorm:"type:varchar(120);not null" json:"name"`                            // 计划名称
	RewardDescription      string         `gorm:"type:text" json:"reward_description"`                               // 奖励说明
	RewardValue            Money          `gorm:"type:decimal(20,2);not null;default:0" json:"reward_value"`         // 奖励价值
	Currency               string         `gorm:"type:varchar(16);not null;default:'USD'" json:"currency"`           // 币种
	StampsRequired         int            `gorm:"not null;default:10" json:"stamps_required"`                        // 集满所需点数
	MinScanIntervalMinutes int            `gorm:"not null;default:0" json:"min_scan_interval_minutes"`               // 最小扫码间隔（分钟）
	MaxScansPerDay         int            `gorm:"not null;default:0" json:"max_scans_per_day"`                       // 每日扫码上限（0 表示不限制）
	RequireOpenHours       bool           `gorm:"not null;default:false" json:"require_open_hours"`                  // 仅营业时间可集点
	AutoVerify             bool           `gorm:"not null" json:"auto_verify"`                                       // 自动确认（否则需店员审核）
	RedemptionMode         string         `gorm:"type:varchar(16);not null;default:'both'" json:"redemption_mode"`   // 兑换模式
	QRExpirySeconds        int            `gorm:"not null;default:300" json:"qr_expiry_seconds"`                     // 二维码有效期（秒）
	PINExpirySeconds       int            `gorm:"not null;default:300" json:"pin_expiry_seconds"`                    // PIN 有效期（秒）
	MaxFailedAttempts      int            `gorm:"not null;default:5" json:"max_failed_attempts"`                     // 最大失败次数
	LockoutDurationMinutes int            `gorm:"not null;default:15" json:"lockout_duration_minutes"`               // 锁定时长（分钟）
	IsActive               bool           `gorm:"index;not null" json:"is_active"`                                   // 是否启用
	CreatedAt              time.Time      `gorm:"index" json:"created_at"`                                           // 创建时间
	UpdatedAt              time.Time      `gorm:"index" json:"updated_at"`                                           // 更新时间
	DeletedAt              gorm.DeletedAt `gorm:"index" json:"-"`                                                    // 软删除时间
}

// TableName 指定表名
func (LoyaltyProgram) TableName() string {
	return "loyalty_programs"
}
