// Package pivot finds structural extremes in a candle window. Raw finds
// strict local extremes of a price source; Filtered confirms pivots from leg
// changes over volatility-filtered highs and lows. Both satisfy Finder, as
// does the zig-zag tracker.
package pivot

import (
	"math"

	"overlaycore/internal/market"
)

// DefaultMaxKeep bounds how many pivots of each type a finder retains.
const DefaultMaxKeep = 20

type Type string

const (
	High Type = "high"
	Low  Type = "low"
)

type Pivot struct {
	Index int     `json:"index"`
	Price float64 `json:"price"`
	Type  Type    `json:"type"`
	Time  int64   `json:"time"`
}

// Set holds the retained pivots per type in ascending index order.
type Set struct {
	Highs []Pivot `json:"highs"`
	Lows  []Pivot `json:"lows"`
}

// Of returns the pivots of type t.
func (s Set) Of(t Type) []Pivot {
	if t == High {
		return s.Highs
	}
	return s.Lows
}

// Finder is implemented by every pivot detection mode.
type Finder interface {
	Find(candles []market.Candle) Set
}

// Source selects which candle prices feed raw pivot detection.
type Source string

const (
	SourceHighLow   Source = "high_low"
	SourceClose     Source = "close"
	SourceCloseOpen Source = "close_open"
)

// Sources returns the series used for pivot highs and pivot lows.
func Sources(candles []market.Candle, src Source) (highs, lows []float64) {
	n := len(candles)
	highs, lows = make([]float64, n), make([]float64, n)
	for i, c := range candles {
		switch src {
		case SourceClose:
			highs[i], lows[i] = c.Close, c.Close
		case SourceCloseOpen:
			highs[i], lows[i] = math.Max(c.Close, c.Open), math.Min(c.Close, c.Open)
		default:
			highs[i], lows[i] = c.High, c.Low
		}
	}
	return highs, lows
}

// Raw marks index i (Period ≤ i < n−Period) as a pivot high when its source
// value is strictly greater than every value within Period bars on both
// sides; pivot lows are symmetric.
type Raw struct {
	Period  int
	Source  Source
	MaxKeep int
}

func (r Raw) Find(candles []market.Candle) Set {
	highs, lows := Sources(candles, r.Source)
	return Set{
		Highs: collect(highs, candles, r.Period, High, keep(r.MaxKeep)),
		Lows:  collect(lows, candles, r.Period, Low, keep(r.MaxKeep)),
	}
}

func keep(n int) int {
	if n <= 0 {
		return DefaultMaxKeep
	}
	return n
}

// collect scans from the most recent eligible bar backwards and stops once
// maxKeep pivots are found; the result is returned oldest first.
func collect(values []float64, candles []market.Candle, period int, t Type, maxKeep int) []Pivot {
	n := len(values)
	if period <= 0 || n < period*2+1 {
		return nil
	}
	out := make([]Pivot, 0, maxKeep)
	for i := n - 1 - period; i >= period; i-- {
		if !IsPivot(values, i, period, t) {
			continue
		}
		out = append(out, Pivot{Index: i, Price: values[i], Type: t, Time: candles[i].OpenTime})
		if len(out) >= maxKeep {
			break
		}
	}
	reverse(out)
	return out
}

// IsPivot reports whether values[idx] is a strict extreme of type t within
// period bars on each side.
func IsPivot(values []float64, idx, period int, t Type) bool {
	if period <= 0 || idx-period < 0 || idx+period >= len(values) {
		return false
	}
	center := values[idx]
	if math.IsNaN(center) {
		return false
	}
	for j := 1; j <= period; j++ {
		l, r := values[idx-j], values[idx+j]
		if t == High && (l >= center || r >= center) {
			return false
		}
		if t == Low && (l <= center || r <= center) {
			return false
		}
	}
	return true
}

func reverse(ps []Pivot) {
	for i, j := 0, len(ps)-1; i < j; i, j = i+1, j-1 {
		ps[i], ps[j] = ps[j], ps[i]
	}
}

// NewestFirst returns a copy of ps ordered from most recent to oldest.
func NewestFirst(ps []Pivot) []Pivot {
	out := make([]Pivot, len(ps))
	copy(out, ps)
	reverse(out)
	return out
}

func trimKeep(ps []Pivot, maxKeep int) []Pivot {
	if len(ps) > maxKeep {
		return ps[len(ps)-maxKeep:]
	}
	return ps
}
