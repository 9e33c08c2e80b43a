package models

import "time"

// StampTransaction 集点流水（限频账本）
type StampTransaction struct {
	ID          uint       `gorm:"primarykey" json:"id"`                                                    // 主键
	StampCardID uint       `gorm:"index;not null" json:"stamp_card_id"`                                     // 集点卡ID
	CustomerID  uint       `gorm:"index:idx_stamp_txn_pair_time;not null" json:"customer_id"`               // 顾客ID
	BusinessID  uint       `gorm:"index:idx_stamp_txn_pair_time;index;not null" json:"business_id"`         // 商户ID
	Status      string     `gorm:"type:varchar(16);index;not null;default:'pending'" json:"status"`         // 状态
	ScannedAt   time.Time  `gorm:"index:idx_stamp_txn_pair_time;not null" json:"scanned_at"`                // 扫码时间
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`                                                   // 审核时间
	ReviewedBy  *uint      `gorm:"index" json:"reviewed_by,omitempty"`                                      // 审核店员ID
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`                                                 // 创建时间
	UpdatedAt   time.Time  `json:"updated_at"`                                                              // 更新时间
}

// TableName 指定表名
func (StampTransaction) TableName() string {
	return "stamp_transactions"
}
