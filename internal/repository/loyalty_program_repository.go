package repository

import (
	"errors"

	"github.com/stampcard-next/internal/models"

	"gorm.io/gorm"
)

// LoyaltyProgramRepository 集点计划数据访问接口
type LoyaltyProgramRepository interface {
	GetByID(id uint) (*models.LoyaltyProgram, error)
	GetActiveByBusiness(businessID uint) (*models.LoyaltyProgram, error)
	GetLatestByBusiness(businessID uint) (*models.LoyaltyProgram, error)
	Create(program *models.LoyaltyProgram) error
	WithTx(tx *gorm.DB) LoyaltyProgramRepository
}

// GormLoyaltyProgramRepository GORM 实现
type GormLoyaltyProgramRepository struct {
	db *gorm.DB
}

// NewLoyaltyProgramRepository 创建集点计划仓库
func NewLoyaltyProgramRepository(db *gorm.DB) *GormLoyaltyProgramRepository {
	return &GormLoyaltyProgramRepository{db: db}
}

// WithTx 绑定事务
func (r *GormLoyaltyProgramRepository) WithTx(tx *gorm.DB) LoyaltyProgramRepository {
	if tx == nil {
		return r
	}
	return &GormLoyaltyProgramRepository{db: tx}
}

// GetByID 根据 ID 获取集点计划（含已软删除，历史卡片仍需读取其配置）
func (r *GormLoyaltyProgramRepository) GetByID(id uint) (*models.LoyaltyProgram, error) {
	if id == 0 {
		return nil, nil
	}
	var program models.LoyaltyProgram
	if err := r.db.Unscoped().First(&program, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &program, nil
}

// GetActiveByBusiness 获取商户当前启用的集点计划（多个启用时取最新）
func (r *GormLoyaltyProgramRepository) GetActiveByBusiness(businessID uint) (*models.LoyaltyProgram, error) {
	var program models.LoyaltyProgram
	err := r.db.Where("business_id = ? AND is_active = ?", businessID, true).
		Order("id DESC").
		First(&program).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &program, nil
}

// GetLatestByBusiness 获取商户最新的集点计划（不论是否启用）
func (r *GormLoyaltyProgramRepository) GetLatestByBusiness(businessID uint) (*models.LoyaltyProgram, error) {
	var program models.LoyaltyProgram
	if err := r.db.Where("business_id = ?", businessID).Order("id DESC").First(&program).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &program, nil
}

// Create 创建集点计划
func (r *GormLoyaltyProgramRepository) Create(program *models.LoyaltyProgram) error {
	return r.db.Create(program).Error
}
