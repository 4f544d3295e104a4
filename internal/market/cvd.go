package market

import "github.com/shopspring/decimal"

// CVDMetrics summarises the cumulative volume delta of a window.
type CVDMetrics struct {
	Value      decimal.Decimal `json:"value"`
	Momentum   decimal.Decimal `json:"momentum"`
	Normalized decimal.Decimal `json:"normalized"`
	PeakFlip   string          `json:"peak_flip"`
}

// CumulativeDelta returns the running sum of (taker_buy - taker_sell) per bar.
// Sums are accumulated in decimal so long windows do not drift.
func CumulativeDelta(candles []Candle) []decimal.Decimal {
	out := make([]decimal.Decimal, len(candles))
	cumulative := decimal.Zero
	for i, c := range candles {
		buy := decimal.NewFromFloat(c.TakerBuyVolume)
		sell := decimal.NewFromFloat(c.TakerSellVolume)
		cumulative = cumulative.Add(buy.Sub(sell))
		out[i] = cumulative
	}
	return out
}

// CVDSeries is CumulativeDelta converted to float64 for oscillator use.
func CVDSeries(candles []Candle) []float64 {
	cvd := CumulativeDelta(candles)
	out := make([]float64, len(cvd))
	for i, v := range cvd {
		out[i] = v.InexactFloat64()
	}
	return out
}

// ComputeCVD calculates a CVD snapshot.
//   - Value: last cumulative delta.
//   - Momentum: Value minus the value 6 bars ago (0 when insufficient bars).
//   - Normalized: (Value - min) / (max - min) across the series, 0.5 when flat.
//   - PeakFlip: "local_top" / "local_bottom" on a 3-bar turn, else "none".
func ComputeCVD(candles []Candle) (CVDMetrics, bool) {
	if len(candles) == 0 {
		return CVDMetrics{}, false
	}
	cvd := CumulativeDelta(candles)
	last := cvd[len(cvd)-1]
	momentum := decimal.Zero
	if len(cvd) > 6 {
		momentum = last.Sub(cvd[len(cvd)-7])
	}

	minVal, maxVal := cvd[0], cvd[0]
	for _, v := range cvd[1:] {
		if v.LessThan(minVal) {
			minVal = v
		}
		if v.GreaterThan(maxVal) {
			maxVal = v
		}
	}
	norm := decimal.NewFromFloat(0.5)
	if maxVal.GreaterThan(minVal) {
		norm = last.Sub(minVal).Div(maxVal.Sub(minVal))
	}

	peakFlip := "none"
	if len(cvd) >= 3 {
		a, b, c := cvd[len(cvd)-1], cvd[len(cvd)-2], cvd[len(cvd)-3]
		if a.LessThan(b) && b.GreaterThan(c) {
			peakFlip = "local_top"
		} else if a.GreaterThan(b) && b.LessThan(c) {
			peakFlip = "local_bottom"
		}
	}
	return CVDMetrics{Value: last, Momentum: momentum, Normalized: norm, PeakFlip: peakFlip}, true
}
