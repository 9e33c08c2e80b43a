package repository

import (
	"errors"
	"time"

	"github.com/stampcard-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StampCardRepository 集点卡数据访问接口
type StampCardRepository interface {
	GetByID(id uint) (*models.StampCard, error)
	GetCurrent(customerID, businessID uint) (*models.StampCard, error)
	Create(card *models.StampCard) error
	CompareAndSwap(card *models.StampCard, expectedVersion int64) (int64, error)
	List(filter StampCardListFilter) ([]models.StampCard, int64, error)
	WithTx(tx *gorm.DB) StampCardRepository
}

// GormStampCardRepository GORM 实现
type GormStampCardRepository struct {
	db *gorm.DB
}

// NewStampCardRepository 创建集点卡仓库
func NewStampCardRepository(db *gorm.DB) *GormStampCardRepository {
	return &GormStampCardRepository{db: db}
}

// WithTx 绑定事务
func (r *GormStampCardRepository) WithTx(tx *gorm.DB) StampCardRepository {
	if tx == nil {
		return r
	}
	return &GormStampCardRepository{db: tx}
}

// GetByID 根据 ID 获取集点卡
func (r *GormStampCardRepository) GetByID(id uint) (*models.StampCard, error) {
	var card models.StampCard
	if err := r.db.First(&card, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &card, nil
}

// GetCurrent 获取顾客在商户下最新一轮的集点卡
func (r *GormStampCardRepository) GetCurrent(customerID, businessID uint) (*models.StampCard, error) {
	query := r.db.Where("customer_id = ? AND business_id = ?", customerID, businessID)
	if lockingSupported(r.db) {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var card models.StampCard
	if err := query.Order("cycle DESC").First(&card).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &card, nil
}

// Create 创建集点卡，(customer, business, cycle) 唯一
func (r *GormStampCardRepository) Create(card *models.StampCard) error {
	return r.db.Create(card).Error
}

// CompareAndSwap 以版本号为条件写入集点进度，返回受影响行数（0 表示并发冲突）
func (r *GormStampCardRepository) CompareAndSwap(card *models.StampCard, expectedVersion int64) (int64, error) {
	if card == nil {
		return 0, nil
	}
	now := time.Now()
	result := r.db.Model(&models.StampCard{}).
		Where("id = ? AND version = ?", card.ID, expectedVersion).
		Updates(map[string]interface{}{
			"stamps_collected": card.StampsCollected,
			"is_completed":     card.IsCompleted,
			"completed_at":     card.CompletedAt,
			"program_id":       card.ProgramID,
			"version":          expectedVersion + 1,
			"updated_at":       now,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		card.Version = expectedVersion + 1
		card.UpdatedAt = now
	}
	return result.RowsAffected, nil
}

// List 集点卡列表
func (r *GormStampCardRepository) List(filter StampCardListFilter) ([]models.StampCard, int64, error) {
	query := r.db.Model(&models.StampCard{})
	if filter.CustomerID != 0 {
		query = query.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.BusinessID != 0 {
		query = query.Where("business_id = ?", filter.BusinessID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var cards []models.StampCard
	if err := query.Order("updated_at DESC, id DESC").Find(&cards).Error; err != nil {
		return nil, 0, err
	}
	return cards, total, nil
}
