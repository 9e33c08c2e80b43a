package models

import (
	"time"

	"gorm.io/gorm"
)

// Business 商户（本引擎只读）
type Business struct {
	ID        uint            `gorm:"primarykey" json:"id"`                                    // 主键
	Name      string          `gorm:"type:varchar(120);not null" json:"name"`                  // 商户名称
	Timezone  string          `gorm:"type:varchar(64);not null;default:'UTC'" json:"timezone"` // IANA 时区
	IsActive  bool            `gorm:"not null" json:"is_active"`                               // 是否启用
	CreatedAt time.Time       `gorm:"index" json:"created_at"`                                 // 创建时间
	UpdatedAt time.Time       `gorm:"index" json:"updated_at"`                                 // 更新时间
	DeletedAt gorm.DeletedAt  `gorm:"index" json:"-"`                                          // 软删除时间
	Hours     []BusinessHours `gorm:"foreignKey:BusinessID" json:"hours,omitempty"`            // 营业时间
}

// TableName 指定表名
func (Business) TableName() string {
	return "businesses"
}

// BusinessHours 商户每周营业时间
// OpenMinute/CloseMinute 为距当地零点的分钟数；CloseMinute <= OpenMinute 表示营业至次日
type BusinessHours struct {
	ID          uint      `gorm:"primarykey" json:"id"`                                          // 主键
	BusinessID  uint      `gorm:"uniqueIndex:idx_business_weekday;not null" json:"business_id"` // 商户ID
	Weekday     int       `gorm:"uniqueIndex:idx_business_weekday;not null" json:"weekday"`      // 星期（0=周日）
	OpenMinute  int       `gorm:"not null;default:0" json:"open_minute"`                         // 开门时间
	CloseMinute int       `gorm:"not null;default:0" json:"close_minute"`                        // 打烊时间
	IsClosed    bool      `gorm:"not null;default:false" json:"is_closed"`                       // 当日休息
	CreatedAt   time.Time `json:"created_at"`                                                    // 创建时间
	UpdatedAt   time.Time `json:"updated_at"`                                                    // 更新时间
}

// TableName 指定表名
func (BusinessHours) TableName() string {
	return "business_hours"
}
