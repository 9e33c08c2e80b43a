package service

import "errors"

// 基础设施错误：与策略拒绝不同，这些错误不会改变任何状态，调用方可安全重试
var (
	ErrInvalidInput = errors.New("invalid input")

	ErrStampFetchFailed    = errors.New("stamp fetch failed")
	ErrStampUpdateFailed   = errors.New("stamp update failed")
	ErrStampCommitConflict = errors.New("stamp commit conflict")
	ErrStampCardNotFound   = errors.New("stamp card not found")
	ErrStampTxnNotFound    = errors.New("stamp transaction not found")
	ErrStampTxnNotPending  = errors.New("stamp transaction not pending")

	ErrRedemptionFetchFailed  = errors.New("redemption fetch failed")
	ErrRedemptionUpdateFailed = errors.New("redemption update failed")
	ErrRedemptionCodeFailed   = errors.New("redemption code generate failed")

	ErrUserNotFound  = errors.New("user not found")
	ErrStaffNotFound = errors.New("staff not found")

	ErrTokenSecretMissing = errors.New("jwt secret missing")
	ErrTokenInvalid       = errors.New("token invalid")
)
