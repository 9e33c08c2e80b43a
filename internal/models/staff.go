package models

import (
	"time"

	"gorm.io/gorm"
)

// Staff 商户店员（身份由外部服务维护，本服务仅读取）
type Staff struct {
	ID                 uint           `gorm:"primarykey" json:"id"`                                           // 主键
	BusinessID         uint           `gorm:"index;not null" json:"business_id"`                              // 所属商户ID
	Username           string         `gorm:"type:varchar(64);uniqueIndex;not null" json:"username"`          // 用户名
	DisplayName        string         `gorm:"type:varchar(120);default:''" json:"display_name"`               // 显示名称
	Role               string         `gorm:"type:varchar(24);not null;default:'cashier'" json:"role"`        // 角色（owner/cashier）
	Status             string         `gorm:"type:varchar(24);not null;default:'active'" json:"status"`       // 状态
	TokenVersion       uint64         `gorm:"not null;default:0" json:"-"`                                    // Token 版本
	TokenInvalidBefore *time.Time     `gorm:"index" json:"-"`                                                 // 该时间点前签发的 Token 失效
	CreatedAt          time.Time      `gorm:"index" json:"created_at"`                                        // 创建时间
	UpdatedAt          time.Time      `gorm:"index" json:"updated_at"`                                        // 更新时间
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`                                                 // 软删除时间
}

// TableName 指定表名
func (Staff) TableName() string {
	return "staff"
}
