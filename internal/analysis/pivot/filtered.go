package pivot

import (
	"math"

	"overlaycore/internal/analysis/indicator"
	"overlaycore/internal/market"
)

// Volatility selects the measure used to flag abnormally wide bars.
type Volatility string

const (
	VolatilityATR   Volatility = "atr"
	VolatilityRange Volatility = "range"
)

// Filter returns effective highs and lows: a bar whose range is at least twice
// the volatility measure has its high and low swapped so it cannot anchor
// structure on its own. Bars where the measure is undefined pass through.
func Filter(s market.Series, measure Volatility, atrPeriod int) (highs, lows []float64) {
	var vol []float64
	if measure == VolatilityRange {
		vol = indicator.CumulativeMeanRange(s.Highs, s.Lows, s.Closes)
	} else {
		vol = indicator.ATR(s.Highs, s.Lows, s.Closes, atrPeriod)
	}
	n := s.Len()
	highs, lows = make([]float64, n), make([]float64, n)
	for i := 0; i < n; i++ {
		highs[i], lows[i] = s.Highs[i], s.Lows[i]
		if v, ok := indicator.At(vol, i); ok && s.Highs[i]-s.Lows[i] >= 2*v {
			highs[i], lows[i] = s.Lows[i], s.Highs[i]
		}
	}
	return highs, lows
}

type Leg int

const (
	LegNone Leg = iota
	LegBearish
	LegBullish
)

// LegTracker follows the leg direction over a window of Window bars.
type LegTracker struct {
	Window int
	leg    Leg
}

// Leg returns the current leg direction.
func (t *LegTracker) Leg() Leg { return t.leg }

// Update evaluates bar i. The bar Window back opens a bearish leg when its high
// exceeds every later high in the window, or a bullish leg when its low is
// below every later low. changed is true when the direction flips, which
// confirms a pivot at i−Window; the first leg only seeds the state.
func (t *LegTracker) Update(highs, lows []float64, i int) (leg Leg, changed bool) {
	w := t.Window
	if w <= 0 || i < w || i >= len(highs) {
		return t.leg, false
	}
	maxH, minL := math.Inf(-1), math.Inf(1)
	for j := i - w + 1; j <= i; j++ {
		maxH = math.Max(maxH, highs[j])
		minL = math.Min(minL, lows[j])
	}
	next := t.leg
	switch {
	case highs[i-w] > maxH:
		next = LegBearish
	case lows[i-w] < minL:
		next = LegBullish
	}
	if next == t.leg {
		return t.leg, false
	}
	prev := t.leg
	t.leg = next
	return next, prev != LegNone
}

// Filtered confirms pivots from leg flips over volatility-filtered prices.
type Filtered struct {
	Window     int
	Volatility Volatility
	ATRPeriod  int
	MaxKeep    int
}

func (f Filtered) Find(candles []market.Candle) Set {
	s := market.Columns(candles)
	atrPeriod := f.ATRPeriod
	if atrPeriod <= 0 {
		atrPeriod = 14
	}
	highs, lows := Filter(s, f.Volatility, atrPeriod)
	tracker := LegTracker{Window: f.Window}
	var set Set
	for i := range candles {
		leg, changed := tracker.Update(highs, lows, i)
		if !changed {
			continue
		}
		at := i - f.Window
		if leg == LegBullish {
			set.Lows = append(set.Lows, Pivot{Index: at, Price: lows[at], Type: Low, Time: candles[at].OpenTime})
		} else {
			set.Highs = append(set.Highs, Pivot{Index: at, Price: highs[at], Type: High, Time: candles[at].OpenTime})
		}
	}
	set.Highs = trimKeep(set.Highs, keep(f.MaxKeep))
	set.Lows = trimKeep(set.Lows, keep(f.MaxKeep))
	return set
}
