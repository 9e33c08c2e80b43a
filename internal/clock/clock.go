package clock

import (
	"sync"
	"time"
)

// Clock 时间来源
type Clock interface {
	Now() time.Time
}

// SystemClock 系统时钟
type SystemClock struct{}

// Now 返回当前 UTC 时间
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// ManualClock 可手动推进的时钟（测试与回放使用）
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock 创建手动时钟
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now 返回当前设定时间
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set 设置当前时间
func (c *ManualClock) Set(now time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// Advance 推进时间
func (c *ManualClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// Or 返回 now，若为零值则回退到时钟当前时间
func Or(c Clock, now time.Time) time.Time {
	if !now.IsZero() {
		return now
	}
	if c == nil {
		return SystemClock{}.Now()
	}
	return c.Now()
}
