package indicator

import "math"

// TrueRange: tr[0] = high−low; afterwards max(high−low, |high−prevClose|, |low−prevClose|).
func TrueRange(highs, lows, closes []float64) []float64 {
	n := len(closes)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		hl := highs[i] - lows[i]
		if i == 0 {
			out[i] = hl
			continue
		}
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		out[i] = math.Max(hl, math.Max(hc, lc))
	}
	return out
}

// ATR is seeded with the simple mean of the first period true ranges
// (defined from index period−1) and Wilder-smoothed afterwards.
func ATR(highs, lows, closes []float64, period int) []float64 {
	n := len(closes)
	out := nanSeries(n)
	if !validPeriod(period, n) || len(highs) != n || len(lows) != n {
		return out
	}
	tr := TrueRange(highs, lows, closes)
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += tr[i]
	}
	p := float64(period)
	out[period-1] = sum / p
	for i := period; i < n; i++ {
		out[i] = (out[i-1]*(p-1) + tr[i]) / p
	}
	return out
}

// CumulativeMeanRange is the running mean of true range over bars 0..i.
func CumulativeMeanRange(highs, lows, closes []float64) []float64 {
	tr := TrueRange(highs, lows, closes)
	out := make([]float64, len(tr))
	sum := 0.0
	for i, v := range tr {
		sum += v
		out[i] = sum / float64(i+1)
	}
	return out
}

// BollingerBands holds the three band lines.
type BollingerBands struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

// Bollinger: middle = SMA; bands = middle ± k·σ where σ is the population
// deviation of the window around the already computed middle.
func Bollinger(series []float64, period int, k float64) BollingerBands {
	n := len(series)
	bb := BollingerBands{Upper: nanSeries(n), Middle: SMA(series, period), Lower: nanSeries(n)}
	if !validPeriod(period, n) {
		return bb
	}
	for i := period - 1; i < n; i++ {
		mid := bb.Middle[i]
		if !IsDefined(mid) {
			continue
		}
		acc := 0.0
		for j := i - period + 1; j <= i; j++ {
			d := series[j] - mid
			acc += d * d
		}
		sd := math.Sqrt(acc / float64(period))
		bb.Upper[i] = mid + k*sd
		bb.Lower[i] = mid - k*sd
	}
	return bb
}
