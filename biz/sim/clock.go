package sim

import (
	"fmt"
	"time"
)

// 行情 datetime 支持的格式
var quoteTimeLayouts = []string{
	"2006-01-02 15:04:05.000000",
	"2006-01-02 15:04:05",
}

// LogicalClock 逻辑时钟。引擎没有独立时钟，时间只随行情推进。
type LogicalClock struct {
	now time.Time
	set bool
}

// Advance 用行情时间推进时钟，时间不回退
func (c *LogicalClock) Advance(t time.Time) {
	if !c.set || t.After(c.now) {
		c.now = t
		c.set = true
	}
}

// Now 当前逻辑时间，未收到任何行情时为零值
func (c *LogicalClock) Now() time.Time {
	return c.now
}

// UnixNano 当前逻辑时间的 epoch 纳秒
func (c *LogicalClock) UnixNano() int64 {
	if !c.set {
		return 0
	}
	return c.now.UnixNano()
}

// Date 当前逻辑日期 YYYYMMDD
func (c *LogicalClock) Date() string {
	if !c.set {
		return ""
	}
	return c.now.Format("20060102")
}

// parseQuoteTime 解析行情 datetime
func parseQuoteTime(s string) (time.Time, error) {
	for _, layout := range quoteTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid quote datetime: %q", s)
}

// parseClockSec 解析 "HH:MM:SS" 为当日秒数
func parseClockSec(s string) (int, bool) {
	var h, m, sec int
	if _, err := fmt.Sscanf(s, "%d:%d:%d", &h, &m, &sec); err != nil {
		return 0, false
	}
	return h*3600 + m*60 + sec, true
}

// inSession 判断 t 是否落在交易时段内；未声明任何时段时视为全天可交易。
// 夜盘区间允许跨零点。
func inSession(tt TradingTime, t time.Time) bool {
	windows := make([][]string, 0, len(tt.Day)+len(tt.Night))
	windows = append(windows, tt.Day...)
	windows = append(windows, tt.Night...)
	if len(windows) == 0 {
		return true
	}
	sec := t.Hour()*3600 + t.Minute()*60 + t.Second()
	for _, w := range windows {
		if len(w) != 2 {
			continue
		}
		start, ok1 := parseClockSec(w[0])
		end, ok2 := parseClockSec(w[1])
		if !ok1 || !ok2 {
			continue
		}
		if start <= end {
			if sec >= start && sec < end {
				return true
			}
		} else {
			// 跨零点
			if sec >= start || sec < end {
				return true
			}
		}
	}
	return false
}
