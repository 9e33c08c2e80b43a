package repository

import (
	"errors"
	"time"

	"github.com/stampcard-next/internal/models"

	"gorm.io/gorm"
)

// RedemptionRepository 兑换凭证数据访问接口
type RedemptionRepository interface {
	GetByID(id uint) (*models.RedemptionRecord, error)
	GetByStampCardID(stampCardID uint) (*models.RedemptionRecord, error)
	Create(record *models.RedemptionRecord) error
	Reissue(record *models.RedemptionRecord) (int64, error)
	FindOutstanding(businessID uint, column, code string) (*models.RedemptionRecord, error)
	FindRedeemed(businessID uint, column, code string) (*models.RedemptionRecord, error)
	LatestOutstanding(businessID uint) (*models.RedemptionRecord, error)
	PINInUse(businessID uint, pin string, excludeStampCardID uint, now time.Time) (bool, error)
	IncrementFailedAttempts(id uint) (int64, error)
	Lock(id uint, until time.Time) (int64, error)
	MarkRedeemed(id uint, expectedVersion int64, staffID *uint, redeemedAt time.Time) (int64, error)
	WithTx(tx *gorm.DB) RedemptionRepository
}

// 可用于匹配凭证的列
const (
	RedemptionColumnQRToken    = "qr_token"
	RedemptionColumnPINCode    = "pin_code"
	RedemptionColumnLegacyCode = "legacy_code"
)

// GormRedemptionRepository GORM 实现
type GormRedemptionRepository struct {
	db *gorm.DB
}

// NewRedemptionRepository 创建兑换凭证仓库
func NewRedemptionRepository(db *gorm.DB) *GormRedemptionRepository {
	return &GormRedemptionRepository{db: db}
}

// WithTx 绑定事务
func (r *GormRedemptionRepository) WithTx(tx *gorm.DB) RedemptionRepository {
	if tx == nil {
		return r
	}
	return &GormRedemptionRepository{db: tx}
}

// GetByID 根据 ID 获取凭证
func (r *GormRedemptionRepository) GetByID(id uint) (*models.RedemptionRecord, error) {
	var record models.RedemptionRecord
	if err := r.db.First(&record, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// GetByStampCardID 获取集点卡对应的凭证
func (r *GormRedemptionRepository) GetByStampCardID(stampCardID uint) (*models.RedemptionRecord, error) {
	var record models.RedemptionRecord
	if err := r.db.Where("stamp_card_id = ?", stampCardID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// Create 创建凭证，stamp_card_id 唯一
func (r *GormRedemptionRepository) Create(record *models.RedemptionRecord) error {
	return r.db.Create(record).Error
}

// Reissue 覆盖未兑换凭证的码与有效期并清空失败计数，返回受影响行数
func (r *GormRedemptionRepository) Reissue(record *models.RedemptionRecord) (int64, error) {
	if record == nil {
		return 0, nil
	}
	result := r.db.Model(&models.RedemptionRecord{}).
		Where("id = ? AND is_redeemed = ?", record.ID, false).
		Updates(map[string]interface{}{
			"qr_token":        record.QRToken,
			"pin_code":        record.PINCode,
			"legacy_code":     record.LegacyCode,
			"qr_expires_at":   record.QRExpiresAt,
			"pin_expires_at":  record.PINExpiresAt,
			"code_expires_at": record.CodeExpiresAt,
			"issued_at":       record.IssuedAt,
			"failed_attempts": 0,
			"lockout_until":   nil,
			"version":         gorm.Expr("version + 1"),
			"updated_at":      time.Now(),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// FindOutstanding 按渠道字段匹配商户下未兑换的凭证，多条命中时取最近签发的
func (r *GormRedemptionRepository) FindOutstanding(businessID uint, column, code string) (*models.RedemptionRecord, error) {
	return r.findByCode(businessID, column, code, false)
}

// FindRedeemed 按渠道字段匹配商户下已兑换的凭证
func (r *GormRedemptionRepository) FindRedeemed(businessID uint, column, code string) (*models.RedemptionRecord, error) {
	return r.findByCode(businessID, column, code, true)
}

func (r *GormRedemptionRepository) findByCode(businessID uint, column, code string, redeemed bool) (*models.RedemptionRecord, error) {
	if !isRedemptionColumn(column) || code == "" {
		return nil, nil
	}
	var record models.RedemptionRecord
	err := r.db.Where("business_id = ? AND is_redeemed = ?", businessID, redeemed).
		Where(column+" = ?", code).
		Order("issued_at DESC, id DESC").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// LatestOutstanding 商户下最近签发的未兑换凭证
func (r *GormRedemptionRepository) LatestOutstanding(businessID uint) (*models.RedemptionRecord, error) {
	var record models.RedemptionRecord
	err := r.db.Where("business_id = ? AND is_redeemed = ?", businessID, false).
		Order("issued_at DESC, id DESC").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// PINInUse 判断 PIN 是否被商户下其他仍有效的未兑换凭证占用
func (r *GormRedemptionRepository) PINInUse(businessID uint, pin string, excludeStampCardID uint, now time.Time) (bool, error) {
	var count int64
	err := r.db.Model(&models.RedemptionRecord{}).
		Where("business_id = ? AND is_redeemed = ? AND pin_code = ?", businessID, false, pin).
		Where("stamp_card_id <> ?", excludeStampCardID).
		Where("pin_expires_at >= ?", now).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// IncrementFailedAttempts 失败次数 +1
func (r *GormRedemptionRepository) IncrementFailedAttempts(id uint) (int64, error) {
	result := r.db.Model(&models.RedemptionRecord{}).
		Where("id = ? AND is_redeemed = ?", id, false).
		Updates(map[string]interface{}{
			"failed_attempts": gorm.Expr("failed_attempts + 1"),
			"version":         gorm.Expr("version + 1"),
			"updated_at":      time.Now(),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// Lock 锁定凭证至 until 并清零失败次数
func (r *GormRedemptionRepository) Lock(id uint, until time.Time) (int64, error) {
	result := r.db.Model(&models.RedemptionRecord{}).
		Where("id = ? AND is_redeemed = ?", id, false).
		Updates(map[string]interface{}{
			"lockout_until":   until,
			"failed_attempts": 0,
			"version":         gorm.Expr("version + 1"),
			"updated_at":      time.Now(),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// MarkRedeemed 核销凭证，仅未兑换且版本未变的记录可写入，返回受影响行数
func (r *GormRedemptionRepository) MarkRedeemed(id uint, expectedVersion int64, staffID *uint, redeemedAt time.Time) (int64, error) {
	result := r.db.Model(&models.RedemptionRecord{}).
		Where("id = ? AND is_redeemed = ? AND version = ?", id, false, expectedVersion).
		Updates(map[string]interface{}{
			"is_redeemed":     true,
			"redeemed_at":     redeemedAt,
			"verified_by":     staffID,
			"failed_attempts": 0,
			"lockout_until":   nil,
			"version":         gorm.Expr("version + 1"),
			"updated_at":      time.Now(),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func isRedemptionColumn(column string) bool {
	switch column {
	case RedemptionColumnQRToken, RedemptionColumnPINCode, RedemptionColumnLegacyCode:
		return true
	default:
		return false
	}
}
