package indicator

import "math"

// EMA seeds from the first value: ema[0] = x[0], then
// ema[i] = α·x[i] + (1−α)·ema[i−1] with α = 2/(period+1).
func EMA(series []float64, period int) []float64 {
	n := len(series)
	if !validPeriod(period, n) {
		return nanSeries(n)
	}
	out := make([]float64, n)
	alpha := 2.0 / float64(period+1)
	out[0] = series[0]
	for i := 1; i < n; i++ {
		out[i] = alpha*series[i] + (1-alpha)*out[i-1]
	}
	return out
}

// emaOfValid runs EMA over the defined tail of series (from its first defined
// value) and realigns the result to the original indices.
func emaOfValid(series []float64, period int) []float64 {
	n := len(series)
	start := firstValid(series)
	if start < 0 {
		return nanSeries(n)
	}
	tail := EMA(series[start:], period)
	out := nanSeries(n)
	copy(out[start:], tail)
	return out
}

// SMA is the trailing arithmetic mean; undefined for i < period−1. Each window
// is summed directly so values match a hand-computed mean.
func SMA(series []float64, period int) []float64 {
	n := len(series)
	out := nanSeries(n)
	if !validPeriod(period, n) {
		return out
	}
	for i := period - 1; i < n; i++ {
		sum := 0.0
		for j := i - period + 1; j <= i; j++ {
			sum += series[j]
		}
		out[i] = sum / float64(period)
	}
	return out
}

// VWMA is the volume weighted moving average; NaN when the window volume is zero.
func VWMA(closes, volumes []float64, period int) []float64 {
	n := len(closes)
	out := nanSeries(n)
	if !validPeriod(period, n) || len(volumes) != n {
		return out
	}
	for i := period - 1; i < n; i++ {
		sumPV, sumV := 0.0, 0.0
		for j := i - period + 1; j <= i; j++ {
			sumPV += closes[j] * volumes[j]
			sumV += volumes[j]
		}
		if sumV == 0 || math.IsNaN(sumPV) {
			continue
		}
		out[i] = sumPV / sumV
	}
	return out
}
