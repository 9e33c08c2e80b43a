package repository

import (
	"errors"
	"time"

	"github.com/stampcard-next/internal/constants"
	"github.com/stampcard-next/internal/models"

	"gorm.io/gorm"
)

// StampTransactionRepository 集点流水数据访问接口
type StampTransactionRepository interface {
	GetByID(id uint) (*models.StampTransaction, error)
	Create(txn *models.StampTransaction) error
	LastScanAt(customerID, businessID uint) (*time.Time, error)
	CountSince(customerID, businessID uint, since time.Time) (int64, error)
	List(filter StampTransactionListFilter) ([]models.StampTransaction, int64, error)
	Review(id uint, input StampTxnReview) (int64, error)
	ListPendingBefore(before time.Time, limit int) ([]models.StampTransaction, error)
	WithTx(tx *gorm.DB) StampTransactionRepository
}

// GormStampTransactionRepository GORM 实现
type GormStampTransactionRepository struct {
	db *gorm.DB
}

// NewStampTransactionRepository 创建集点流水仓库
func NewStampTransactionRepository(db *gorm.DB) *GormStampTransactionRepository {
	return &GormStampTransactionRepository{db: db}
}

// WithTx 绑定事务
func (r *GormStampTransactionRepository) WithTx(tx *gorm.DB) StampTransactionRepository {
	if tx == nil {
		return r
	}
	return &GormStampTransactionRepository{db: tx}
}

// GetByID 根据 ID 获取流水
func (r *GormStampTransactionRepository) GetByID(id uint) (*models.StampTransaction, error) {
	var txn models.StampTransaction
	if err := r.db.First(&txn, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

// Create 写入流水
func (r *GormStampTransactionRepository) Create(txn *models.StampTransaction) error {
	return r.db.Create(txn).Error
}

// LastScanAt 顾客在商户最近一次扫码时间（任意状态），无记录返回 nil
func (r *GormStampTransactionRepository) LastScanAt(customerID, businessID uint) (*time.Time, error) {
	var txn models.StampTransaction
	err := r.db.Select("id", "scanned_at").
		Where("customer_id = ? AND business_id = ?", customerID, businessID).
		Order("scanned_at DESC, id DESC").
		First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	scannedAt := txn.ScannedAt
	return &scannedAt, nil
}

// CountSince 统计自 since 起计入每日额度的流水（被驳回的不计入）
func (r *GormStampTransactionRepository) CountSince(customerID, businessID uint, since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&models.StampTransaction{}).
		Where("customer_id = ? AND business_id = ?", customerID, businessID).
		Where("scanned_at >= ?", since).
		Where("status <> ?", constants.StampTxnStatusRejected).
		Count(&count).Error
	return count, err
}

// List 流水列表
func (r *GormStampTransactionRepository) List(filter StampTransactionListFilter) ([]models.StampTransaction, int64, error) {
	query := r.db.Model(&models.StampTransaction{})
	if filter.BusinessID != 0 {
		query = query.Where("business_id = ?", filter.BusinessID)
	}
	if filter.CustomerID != 0 {
		query = query.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.StampTransaction
	if err := query.Order("scanned_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// StampTxnReview 待确认流水审核写入内容
type StampTxnReview struct {
	Status      string
	StampCardID uint // 非 0 时改挂到实际累加的集点卡
	ReviewedBy  *uint
	ReviewedAt  time.Time
}

// Review 审核待确认流水，仅 pending 状态可变更，返回受影响行数
func (r *GormStampTransactionRepository) Review(id uint, input StampTxnReview) (int64, error) {
	updates := map[string]interface{}{
		"status":      input.Status,
		"reviewed_by": input.ReviewedBy,
		"reviewed_at": input.ReviewedAt,
		"updated_at":  time.Now(),
	}
	if input.StampCardID != 0 {
		updates["stamp_card_id"] = input.StampCardID
	}
	result := r.db.Model(&models.StampTransaction{}).
		Where("id = ? AND status = ?", id, constants.StampTxnStatusPending).
		Updates(updates)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ListPendingBefore 扫描时间早于 before 的待确认流水，按时间升序
func (r *GormStampTransactionRepository) ListPendingBefore(before time.Time, limit int) ([]models.StampTransaction, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.StampTransaction
	err := r.db.Where("status = ? AND scanned_at < ?", constants.StampTxnStatusPending, before).
		Order("scanned_at ASC, id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
