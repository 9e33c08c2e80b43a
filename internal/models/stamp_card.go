package models

import "time"

// StampCard 顾客在某商户的集点卡
// 同一 (customer, business) 以 Cycle 区分先后多张卡，集满并兑换后开启下一张
type StampCard struct {
	ID              uint       `gorm:"primarykey" json:"id"`                                                   // 主键
	CustomerID      uint       `gorm:"uniqueIndex:idx_stamp_card_owner_cycle;not null" json:"customer_id"`     // 顾客ID
	BusinessID      uint       `gorm:"uniqueIndex:idx_stamp_card_owner_cycle;index;not null" json:"business_id"` // 商户ID
	Cycle           int        `gorm:"uniqueIndex:idx_stamp_card_owner_cycle;not null;default:1" json:"cycle"` // 第几张卡
	ProgramID       uint       `gorm:"index;not null" json:"program_id"`                                       // 集点计划ID
	StampsCollected int        `gorm:"not null;default:0" json:"stamps_collected"`                             // 已集点数
	IsCompleted     bool       `gorm:"index;not null;default:false" json:"is_completed"`                       // 是否集满
	CompletedAt     *time.Time `json:"completed_at"`                                                           // 集满时间
	Version         int64      `gorm:"not null;default:0" json:"-"`                                            // 乐观锁版本
	CreatedAt       time.Time  `gorm:"index" json:"created_at"`                                                // 创建时间
	UpdatedAt       time.Time  `gorm:"index" json:"updated_at"`                                                // 更新时间
}

// TableName 指定表名
func (StampCard) TableName() string {
	return "stamp_cards"
}
