package service

import (
	"math"
	"time"

	"github.com/stampcard-next/internal/constants"
	"github.com/stampcard-next/internal/models"
)

const minutesPerDay = 24 * 60

// PolicyDecision 单项集点策略判定结果，Code 为空表示通过
type PolicyDecision struct {
	Code        string
	WaitMinutes int
}

// Allowed 是否通过
func (d PolicyDecision) Allowed() bool {
	return d.Code == ""
}

var policyAllow = PolicyDecision{}

// EvaluateOpenHours 判断 now 是否落在商户当地营业时间内
// close <= open 的区间跨越午夜，前一天的跨夜尾段同样视为营业
func EvaluateOpenHours(hours []models.BusinessHours, loc *time.Location, now time.Time) PolicyDecision {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	minute := local.Hour()*60 + local.Minute()
	today := int(local.Weekday())
	yesterday := (today + 6) % 7

	byDay := make(map[int]models.BusinessHours, len(hours))
	for _, item := range hours {
		byDay[item.Weekday] = item
	}

	if prev, ok := byDay[yesterday]; ok && !prev.IsClosed && isOvernight(prev) && minute < prev.CloseMinute {
		return policyAllow
	}

	current, ok := byDay[today]
	if !ok || current.IsClosed {
		return PolicyDecision{Code: constants.StampErrShopClosed}
	}
	if isOvernight(current) {
		if minute >= current.OpenMinute {
			return policyAllow
		}
		return PolicyDecision{Code: constants.StampErrOutsideHours}
	}
	if minute >= current.OpenMinute && minute < current.CloseMinute {
		return policyAllow
	}
	return PolicyDecision{Code: constants.StampErrOutsideHours}
}

func isOvernight(item models.BusinessHours) bool {
	return clampMinute(item.CloseMinute) <= clampMinute(item.OpenMinute)
}

func clampMinute(value int) int {
	if value < 0 {
		return 0
	}
	if value > minutesPerDay {
		return minutesPerDay
	}
	return value
}

// EvaluateScanInterval 距上次扫码不足 intervalMinutes 时拒绝，WaitMinutes 为剩余冷却（向上取整）
func EvaluateScanInterval(lastScanAt *time.Time, intervalMinutes int, now time.Time) PolicyDecision {
	if lastScanAt == nil || intervalMinutes <= 0 {
		return policyAllow
	}
	window := time.Duration(intervalMinutes) * time.Minute
	elapsed := now.Sub(*lastScanAt)
	if elapsed >= window {
		return policyAllow
	}
	remaining := window - elapsed
	return PolicyDecision{
		Code:        constants.StampErrTooSoon,
		WaitMinutes: ceilMinutes(remaining),
	}
}

// EvaluateDailyLimit 当日已计入次数达到上限时拒绝，maxPerDay <= 0 表示不限制
func EvaluateDailyLimit(countToday int64, maxPerDay int) PolicyDecision {
	if maxPerDay <= 0 {
		return policyAllow
	}
	if countToday >= int64(maxPerDay) {
		return PolicyDecision{Code: constants.StampErrDailyLimit}
	}
	return policyAllow
}

// applyStamp 在卡片上累加一个点，仅在首次达到所需点数时标记集满
func applyStamp(card *models.StampCard, stampsRequired int, now time.Time) {
	card.StampsCollected++
	if !card.IsCompleted && card.StampsCollected >= stampsRequired {
		completedAt := now
		card.IsCompleted = true
		card.CompletedAt = &completedAt
	}
}

func ceilMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Minutes()))
}
