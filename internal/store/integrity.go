package store

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"overlaycore/internal/market"
)

// ErrBadInterval 表示无法解析的周期字符串。
var ErrBadInterval = errors.New("interval 非法")

// Gap 表示窗口内缺失的连续 K 线区间。
type Gap struct {
	From  int64 `json:"from"`
	To    int64 `json:"to"`
	Count int64 `json:"count"`
}

// IntegrityReport 描述窗口的覆盖情况。
type IntegrityReport struct {
	Step     int64 `json:"step"`
	Start    int64 `json:"start"`
	End      int64 `json:"end"`
	Expected int64 `json:"expected"`
	Present  int64 `json:"present"`
	Gaps     []Gap `json:"gaps"`
}

func (r IntegrityReport) Complete() bool { return len(r.Gaps) == 0 }

var intervalUnits = map[byte]int64{
	's': 1_000,
	'm': 60_000,
	'h': 3_600_000,
	'd': 86_400_000,
	'w': 7 * 86_400_000,
}

// ParseInterval 把 1m/15m/4h/1d/1w 这类周期解析为毫秒。
func ParseInterval(interval string) (int64, error) {
	s := strings.TrimSpace(interval)
	if len(s) < 2 {
		return 0, fmt.Errorf("%w: %q", ErrBadInterval, interval)
	}
	unit, ok := intervalUnits[s[len(s)-1]]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrBadInterval, interval)
	}
	n, err := strconv.ParseInt(s[:len(s)-1], 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrBadInterval, interval)
	}
	return n * unit, nil
}

// CheckIntegrity 按 step 毫秒检查窗口首尾之间缺失的 K 线。
// 不在 step 网格上的间隔按向下取整计缺失数量。
func CheckIntegrity(candles []market.Candle, step int64) IntegrityReport {
	report := IntegrityReport{Step: step, Present: int64(len(candles))}
	if len(candles) == 0 || step <= 0 {
		return report
	}
	report.Start = candles[0].OpenTime
	report.End = candles[len(candles)-1].OpenTime
	report.Expected = (report.End-report.Start)/step + 1
	for i := 1; i < len(candles); i++ {
		prev, cur := candles[i-1].OpenTime, candles[i].OpenTime
		missing := (cur-prev)/step - 1
		if missing <= 0 {
			continue
		}
		report.Gaps = append(report.Gaps, Gap{
			From:  prev + step,
			To:    prev + missing*step,
			Count: missing,
		})
	}
	return report
}
