package market

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	// PrecisionAuto 根据 K 线价格区间自动决定精度。
	PrecisionAuto = math.MinInt32
	// PrecisionRaw 表示保留原始精度（等价于 strconv.FormatFloat(..., -1, 64)）
	PrecisionRaw = -1
)

// CSVOptions 控制 CSV 输出精度。
type CSVOptions struct {
	PricePrecision int
}

// BuildCSV 生成 CSV 数据，首行包含列头；时间列为毫秒时间戳，可被 ParseCSV 读回。
func BuildCSV(candles []Candle, opts CSVOptions) string {
	if len(candles) == 0 {
		return ""
	}
	precision := opts.PricePrecision
	if precision == PrecisionAuto {
		precision = autoPrecision(candles)
	}
	var b strings.Builder
	b.WriteString("Time,O,H,L,C,V\n")
	for _, c := range candles {
		b.WriteString(strconv.FormatInt(c.OpenTime, 10))
		for _, v := range []float64{c.Open, c.High, c.Low, c.Close} {
			b.WriteByte(',')
			b.WriteString(formatPrice(v, precision))
		}
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(c.Volume, 'f', -1, 64))
		b.WriteByte('\n')
	}
	return b.String()
}

// ParseCSV reads candles in Time,O,H,L,C[,V] column order. A header row is
// detected and skipped. Time may be a millisecond timestamp, RFC3339 or
// "2006-01-02 15:04[:05]" in UTC. Rows are returned as read; callers run
// Validate afterwards.
func ParseCSV(r io.Reader) ([]Candle, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	var out []Candle
	row := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		row++
		if row == 1 && isHeader(rec) {
			continue
		}
		if len(rec) < 5 {
			return nil, &ValidationError{Index: len(out), Reason: fmt.Sprintf("row %d has %d columns, want at least 5", row, len(rec))}
		}
		ts, err := parseTime(rec[0])
		if err != nil {
			return nil, &ValidationError{Index: len(out), Field: "time", Reason: err.Error()}
		}
		c := Candle{OpenTime: ts}
		fields := []*float64{&c.Open, &c.High, &c.Low, &c.Close}
		names := []string{"open", "high", "low", "close"}
		for k, dst := range fields {
			raw := strings.TrimSpace(rec[k+1])
			if raw == "" {
				return nil, &ValidationError{Index: len(out), Field: names[k], Reason: "is missing"}
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, &ValidationError{Index: len(out), Field: names[k], Reason: "is not a number"}
			}
			if v <= 0 {
				return nil, &ValidationError{Index: len(out), Field: names[k], Reason: "must be positive"}
			}
			*dst = v
		}
		if len(rec) > 5 && strings.TrimSpace(rec[5]) != "" {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[5]), 64)
			if err != nil {
				return nil, &ValidationError{Index: len(out), Field: "volume", Reason: "is not a number"}
			}
			c.Volume = v
		}
		out = append(out, c)
	}
	return out, nil
}

func isHeader(rec []string) bool {
	if len(rec) == 0 {
		return false
	}
	first := strings.TrimSpace(rec[0])
	if _, err := strconv.ParseInt(first, 10, 64); err == nil {
		return false
	}
	if _, err := parseTime(first); err == nil {
		return false
	}
	return true
}

var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02"}

func parseTime(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.New("is missing")
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return ms, nil
	}
	for _, layout := range timeLayouts {
		if ts, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return ts.UnixMilli(), nil
		}
	}
	return 0, fmt.Errorf("unrecognised time %q", raw)
}

func autoPrecision(candles []Candle) int {
	maxVal := 0.0
	for _, c := range candles {
		for _, v := range []float64{c.Open, c.High, c.Low, c.Close} {
			abs := math.Abs(v)
			if abs > maxVal {
				maxVal = abs
			}
		}
	}
	switch {
	case maxVal >= 1000:
		return 1
	case maxVal >= 100:
		return 2
	default:
		return PrecisionRaw
	}
}

func formatPrice(value float64, precision int) string {
	if precision == PrecisionRaw {
		return strconv.FormatFloat(value, 'f', -1, 64)
	}
	s := strconv.FormatFloat(value, 'f', precision, 64)
	if precision > 0 {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	return s
}
