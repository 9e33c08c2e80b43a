package repository

import (
	"errors"

	"github.com/stampcard-next/internal/models"

	"gorm.io/gorm"
)

// BusinessRepository 商户数据访问接口
type BusinessRepository interface {
	GetByID(id uint) (*models.Business, error)
	Create(business *models.Business) error
	ListHours(businessID uint) ([]models.BusinessHours, error)
	ReplaceHours(businessID uint, hours []models.BusinessHours) error
	WithTx(tx *gorm.DB) BusinessRepository
}

// GormBusinessRepository GORM 实现
type GormBusinessRepository struct {
	db *gorm.DB
}

// NewBusinessRepository 创建商户仓库
func NewBusinessRepository(db *gorm.DB) *GormBusinessRepository {
	return &GormBusinessRepository{db: db}
}

// WithTx 绑定事务
func (r *GormBusinessRepository) WithTx(tx *gorm.DB) BusinessRepository {
	if tx == nil {
		return r
	}
	return &GormBusinessRepository{db: tx}
}

// GetByID 根据 ID 获取商户（已软删除的视为不存在）
func (r *GormBusinessRepository) GetByID(id uint) (*models.Business, error) {
	if id == 0 {
		return nil, nil
	}
	var business models.Business
	if err := r.db.First(&business, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &business, nil
}

// Create 创建商户
func (r *GormBusinessRepository) Create(business *models.Business) error {
	return r.db.Create(business).Error
}

// ListHours 获取商户每周营业时间
func (r *GormBusinessRepository) ListHours(businessID uint) ([]models.BusinessHours, error) {
	rows := make([]models.BusinessHours, 0, 7)
	if err := r.db.Where("business_id = ?", businessID).Order("weekday ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ReplaceHours 覆盖商户营业时间
func (r *GormBusinessRepository) ReplaceHours(businessID uint, hours []models.BusinessHours) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("business_id = ?", businessID).Delete(&models.BusinessHours{}).Error; err != nil {
			return err
		}
		if len(hours) == 0 {
			return nil
		}
		rows := make([]models.BusinessHours, 0, len(hours))
		for _, item := range hours {
			item.ID = 0
			item.BusinessID = businessID
			rows = append(rows, item)
		}
		return tx.Create(&rows).Error
	})
}
