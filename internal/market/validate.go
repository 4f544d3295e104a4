package market

import (
	"errors"
	"fmt"
	"math"
)

// ErrNoCandles is returned when a window holds no candles at all.
var ErrNoCandles = errors.New("no candles")

// ValidationError identifies the first malformed candle in a window.
type ValidationError struct {
	Index  int
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("candle %d: %s", e.Index, e.Reason)
	}
	return fmt.Sprintf("candle %d: %s %s", e.Index, e.Field, e.Reason)
}

// Validate fails fast on the first candle that would corrupt downstream
// structure detection: absent fields, non-finite or non-positive prices,
// inverted ranges, open/close outside the bar range, negative volume or
// non-increasing time.
func Validate(candles []Candle) error {
	if len(candles) == 0 {
		return ErrNoCandles
	}
	for i, c := range candles {
		if c.missing != "" {
			return &ValidationError{Index: i, Field: c.missing, Reason: "is missing"}
		}
		for _, f := range []struct {
			name string
			v    float64
		}{
			{"open", c.Open},
			{"high", c.High},
			{"low", c.Low},
			{"close", c.Close},
			{"volume", c.Volume},
		} {
			if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
				return &ValidationError{Index: i, Field: f.name, Reason: "is not finite"}
			}
			if f.name != "volume" && f.v <= 0 {
				return &ValidationError{Index: i, Field: f.name, Reason: "must be positive"}
			}
		}
		if c.High < c.Low {
			return &ValidationError{Index: i, Field: "high", Reason: fmt.Sprintf("%v below low %v", c.High, c.Low)}
		}
		if c.Open > c.High || c.Open < c.Low {
			return &ValidationError{Index: i, Field: "open", Reason: "outside high/low range"}
		}
		if c.Close > c.High || c.Close < c.Low {
			return &ValidationError{Index: i, Field: "close", Reason: "outside high/low range"}
		}
		if c.Volume < 0 {
			return &ValidationError{Index: i, Field: "volume", Reason: "is negative"}
		}
		if i > 0 && c.OpenTime <= candles[i-1].OpenTime {
			return &ValidationError{Index: i, Field: "time", Reason: fmt.Sprintf("%d not after previous %d", c.OpenTime, candles[i-1].OpenTime)}
		}
	}
	return nil
}
