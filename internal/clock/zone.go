package clock

import (
	"strings"
	"time"
	_ "time/tzdata" // 内嵌时区数据库，容器内无 /usr/share/zoneinfo 也可解析商户时区
)

// LoadLocation 解析 IANA 时区名，空值或无法识别时回退 UTC
func LoadLocation(name string) *time.Location {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "UTC") {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// StartOfDay 返回 now 在 loc 所在日的零点（以 UTC 表示）
func StartOfDay(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc).UTC()
}
