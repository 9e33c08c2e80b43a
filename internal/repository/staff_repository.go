package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/stampcard-next/internal/constants"
	"github.com/stampcard-next/internal/models"

	"gorm.io/gorm"
)

// StaffRepository 店员数据访问接口
type StaffRepository interface {
	GetByID(id uint) (*models.Staff, error)
	GetByUsername(username string) (*models.Staff, error)
	ListByBusiness(businessID uint) ([]models.Staff, error)
	Create(staff *models.Staff) error
	UpdateStatus(id uint, status string) error
}

// GormStaffRepository GORM 实现
type GormStaffRepository struct {
	db *gorm.DB
}

// NewStaffRepository 创建店员仓库
func NewStaffRepository(db *gorm.DB) *GormStaffRepository {
	return &GormStaffRepository{db: db}
}

// GetByID 根据 ID 获取店员
func (r *GormStaffRepository) GetByID(id uint) (*models.Staff, error) {
	var staff models.Staff
	if err := r.db.First(&staff, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &staff, nil
}

// GetByUsername 根据用户名获取店员
func (r *GormStaffRepository) GetByUsername(username string) (*models.Staff, error) {
	var staff models.Staff
	if err := r.db.Where("username = ?", strings.TrimSpace(username)).First(&staff).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &staff, nil
}

// ListByBusiness 获取商户下全部店员
func (r *GormStaffRepository) ListByBusiness(businessID uint) ([]models.Staff, error) {
	rows := make([]models.Staff, 0)
	err := r.db.
		Select("id", "business_id", "username", "display_name", "role", "status", "created_at").
		Where("business_id = ?", businessID).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Create 创建店员
func (r *GormStaffRepository) Create(staff *models.Staff) error {
	return r.db.Create(staff).Error
}

// UpdateStatus 更新店员状态，禁用时同步使已签发 Token 失效
func (r *GormStaffRepository) UpdateStatus(id uint, status string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": now,
	}
	if strings.ToLower(strings.TrimSpace(status)) == constants.StaffStatusDisabled {
		updates["token_invalid_before"] = now
		updates["token_version"] = gorm.Expr("token_version + 1")
	}
	return r.db.Model(&models.Staff{}).Where("id = ?", id).Updates(updates).Error
}
