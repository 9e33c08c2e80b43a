package service

import (
	"strings"
	"time"

	"github.com/stampcard-next/internal/constants"
	"github.com/stampcard-next/internal/models"
	"github.com/stampcard-next/internal/repository"
	"github.com/stampcard-next/internal/secure"
)

const (
	defaultMaxFailedAttempts      = 5
	defaultLockoutDurationMinutes = 15
	maxQRTokenLength              = 128
)

// VerificationChannel 核销渠道，决定匹配字段与有效期字段
type VerificationChannel string

// 核销渠道
const (
	ChannelQR     VerificationChannel = constants.VerificationTypeQR
	ChannelPIN    VerificationChannel = constants.VerificationTypePIN
	ChannelLegacy VerificationChannel = constants.VerificationTypeLegacy
)

// ParseVerificationChannel 解析核销渠道
func ParseVerificationChannel(raw string) (VerificationChannel, bool) {
	switch VerificationChannel(strings.ToLower(strings.TrimSpace(raw))) {
	case ChannelQR:
		return ChannelQR, true
	case ChannelPIN:
		return ChannelPIN, true
	case ChannelLegacy:
		return ChannelLegacy, true
	default:
		return "", false
	}
}

// Column 渠道对应的凭证匹配列
func (c VerificationChannel) Column() string {
	switch c {
	case ChannelQR:
		return repository.RedemptionColumnQRToken
	case ChannelPIN:
		return repository.RedemptionColumnPINCode
	default:
		return repository.RedemptionColumnLegacyCode
	}
}

// ExpiresAt 渠道对应的过期时间，旧版码使用两者中较晚的整体过期时间
func (c VerificationChannel) ExpiresAt(record *models.RedemptionRecord) time.Time {
	switch c {
	case ChannelQR:
		return record.QRExpiresAt
	case ChannelPIN:
		return record.PINExpiresAt
	default:
		return record.CodeExpiresAt
	}
}

// ValidFormat 校验码格式
func (c VerificationChannel) ValidFormat(code string) bool {
	switch c {
	case ChannelQR:
		return code != "" && len(code) <= maxQRTokenLength
	case ChannelPIN:
		return secure.IsDigits(code, constants.PINCodeLength)
	case ChannelLegacy:
		return secure.IsDigits(code, constants.LegacyCodeLength)
	default:
		return false
	}
}

// ChannelEnabled 判断商户兑换模式是否允许该渠道，旧版码始终允许
func ChannelEnabled(mode string, channel VerificationChannel) bool {
	switch channel {
	case ChannelLegacy:
		return true
	case ChannelQR:
		return normalizeRedemptionMode(mode) != constants.RedemptionModePINOnly
	case ChannelPIN:
		return normalizeRedemptionMode(mode) != constants.RedemptionModeQROnly
	default:
		return false
	}
}

func normalizeRedemptionMode(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case constants.RedemptionModeQROnly:
		return constants.RedemptionModeQROnly
	case constants.RedemptionModePINOnly:
		return constants.RedemptionModePINOnly
	default:
		return constants.RedemptionModeBoth
	}
}

// LockoutAction 锁定判定动作
type LockoutAction int

// 锁定判定动作
const (
	LockoutNone   LockoutAction = iota // 未锁定，可继续
	LockoutActive                      // 处于锁定期
	LockoutTrip                        // 失败次数达到上限，需要立即锁定
)

// LockoutPolicy 锁定策略参数
type LockoutPolicy struct {
	MaxFailedAttempts      int
	LockoutDurationMinutes int
}

// LockoutDecision 锁定判定结果
type LockoutDecision struct {
	Action           LockoutAction
	RemainingMinutes int
	LockUntil        time.Time
}

// lockoutPolicyFromProgram 从集点计划读取锁定参数，非法值使用默认值
func lockoutPolicyFromProgram(program *models.LoyaltyProgram) LockoutPolicy {
	policy := LockoutPolicy{
		MaxFailedAttempts:      defaultMaxFailedAttempts,
		LockoutDurationMinutes: defaultLockoutDurationMinutes,
	}
	if program == nil {
		return policy
	}
	if program.MaxFailedAttempts > 0 {
		policy.MaxFailedAttempts = program.MaxFailedAttempts
	}
	if program.LockoutDurationMinutes > 0 {
		policy.LockoutDurationMinutes = program.LockoutDurationMinutes
	}
	return policy
}

// EvaluateLockout 根据失败次数与锁定截止时间给出判定
func EvaluateLockout(policy LockoutPolicy, failedAttempts int, lockoutUntil *time.Time, now time.Time) LockoutDecision {
	if lockoutUntil != nil && lockoutUntil.After(now) {
		remaining := ceilMinutes(lockoutUntil.Sub(now))
		if remaining < 1 {
			remaining = 1
		}
		return LockoutDecision{Action: LockoutActive, RemainingMinutes: remaining, LockUntil: *lockoutUntil}
	}
	if policy.MaxFailedAttempts > 0 && failedAttempts >= policy.MaxFailedAttempts {
		duration := time.Duration(policy.LockoutDurationMinutes) * time.Minute
		return LockoutDecision{
			Action:           LockoutTrip,
			RemainingMinutes: ceilMinutes(duration),
			LockUntil:        now.Add(duration),
		}
	}
	return LockoutDecision{Action: LockoutNone}
}
