package constants

// 集点交易状态常量
const (
	StampTxnStatusPending  = "pending"
	StampTxnStatusVerified = "verified"
	StampTxnStatusRejected = "rejected"
)

// 兑换模式常量
const (
	RedemptionModeQROnly  = "qr_only"
	RedemptionModePINOnly = "pin_only"
	RedemptionModeBoth    = "both"
)

// 核销渠道常量
const (
	VerificationTypeQR     = "qr"
	VerificationTypePIN    = "pin"
	VerificationTypeLegacy = "legacy"
)

// 兑换码长度常量
const (
	PINCodeLength    = 4
	LegacyCodeLength = 6
	QRTokenBytes     = 32
)

// 集点结果错误码（策略拒绝）
const (
	StampErrInvalidBusiness = "INVALID_BUSINESS"
	StampErrNoActiveProgram = "NO_ACTIVE_PROGRAM"
	StampErrShopClosed      = "SHOP_CLOSED"
	StampErrOutsideHours    = "OUTSIDE_HOURS"
	StampErrTooSoon         = "TOO_SOON"
	StampErrDailyLimit      = "DAILY_LIMIT"
)

// 兑换结果错误码（策略拒绝 + 安全拒绝）
const (
	RedemptionErrCardNotComplete = "CARD_NOT_COMPLETE"
	RedemptionErrModeNotEnabled  = "MODE_NOT_ENABLED"
	RedemptionErrInvalidCode     = "INVALID_CODE"
	RedemptionErrCodeExpired     = "CODE_EXPIRED"
	RedemptionErrLockedOut       = "LOCKED_OUT"
	RedemptionErrAlreadyRedeemed = "ALREADY_REDEEMED"
)

// 用户状态常量
const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// 店员角色常量
const (
	StaffRoleOwner   = "owner"
	StaffRoleCashier = "cashier"
)

// 店员状态常量
const (
	StaffStatusActive   = "active"
	StaffStatusDisabled = "disabled"
)

// 队列常量
const (
	QueueDefault           = "default"
	TaskStampPendingExpire = "stamp:pending_expire"
)

// 缓存默认配置常量
const (
	RedisPrefixDefault = "sc"
)

// 默认时区
const (
	DefaultTimezone = "UTC"
)

// 币种常量
const (
	CurrencyDefault = "USD"
)
