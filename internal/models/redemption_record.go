package models

import "time"

// RedemptionRecord 兑换凭证（二维码令牌 + PIN + 旧版 6 位码）
// 每张集点卡至多一条记录；重新申请时覆盖未兑换记录，兑换后不可再变更
type RedemptionRecord struct {
	ID             uint       `gorm:"primarykey" json:"id"`                                          // 主键
	StampCardID    uint       `gorm:"uniqueIndex;not null" json:"stamp_card_id"`                     // 集点卡ID
	BusinessID     uint       `gorm:"index;not null" json:"business_id"`                             // 商户ID
	CustomerID     uint       `gorm:"index;not null" json:"customer_id"`                             // 顾客ID
	QRToken        string     `gorm:"type:varchar(128);uniqueIndex;not null" json:"-"`               // 二维码令牌
	PINCode        string     `gorm:"type:varchar(8);index;not null" json:"-"`                       // 4 位 PIN
	LegacyCode     string     `gorm:"type:varchar(8);index;not null" json:"-"`                       // 旧版 6 位码
	QRExpiresAt    time.Time  `json:"qr_expires_at"`                                                 // 二维码过期时间
	PINExpiresAt   time.Time  `json:"pin_expires_at"`                                                // PIN 过期时间
	CodeExpiresAt  time.Time  `json:"code_expires_at"`                                               // 旧版码过期时间（取两者较晚）
	IsRedeemed     bool       `gorm:"index;not null;default:false" json:"is_redeemed"`               // 是否已兑换
	RedeemedAt     *time.Time `json:"redeemed_at"`                                                   // 兑换时间
	VerifiedBy     *uint      `gorm:"index" json:"verified_by,omitempty"`                            // 核销店员ID
	FailedAttempts int        `gorm:"not null;default:0" json:"failed_attempts"`                     // 失败次数
	LockoutUntil   *time.Time `json:"lockout_until"`                                                 // 锁定截止时间
	Version        int64      `gorm:"not null;default:0" json:"-"`                                   // 乐观锁版本
	IssuedAt       time.Time  `gorm:"index" json:"issued_at"`                                        // 最近签发时间
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`                                       // 创建时间
	UpdatedAt      time.Time  `gorm:"index" json:"updated_at"`                                       // 更新时间
}

// TableName 指定表名
func (RedemptionRecord) TableName() string {
	return "redemption_records"
}
