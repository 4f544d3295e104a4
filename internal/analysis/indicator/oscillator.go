package indicator

import (
	"math"

	talib "github.com/markcheno/go-talib"
	"github.com/shopspring/decimal"
)

// RSI uses Wilder smoothing. The first value (index period) averages the first
// period deltas; RSI is 100 whenever the average loss is zero.
func RSI(series []float64, period int) []float64 {
	n := len(series)
	out := nanSeries(n)
	if !validPeriod(period, n) {
		return out
	}
	p := float64(period)
	avgGain, avgLoss := 0.0, 0.0
	for i := 1; i <= period; i++ {
		gain, loss := splitDelta(series[i] - series[i-1])
		avgGain += gain
		avgLoss += loss
	}
	avgGain /= p
	avgLoss /= p
	out[period] = rsiValue(avgGain, avgLoss)
	for i := period + 1; i < n; i++ {
		gain, loss := splitDelta(series[i] - series[i-1])
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func splitDelta(delta float64) (gain, loss float64) {
	if delta > 0 {
		return delta, 0
	}
	return 0, -delta
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	return 100 - 100/(1+avgGain/avgLoss)
}

// MACDResult carries the three MACD lines.
type MACDResult struct {
	DIF  []float64
	DEA  []float64
	Hist []float64
}

// MACD: dif = EMA(fast) − EMA(slow); dea = EMA(signal) over the defined dif
// values; hist = (dif − dea)·histScale. A histScale of 0 means 1.
func MACD(series []float64, fast, slow, signal int, histScale float64) MACDResult {
	n := len(series)
	if histScale == 0 {
		histScale = 1
	}
	emaFast := EMA(series, fast)
	emaSlow := EMA(series, slow)
	dif := make([]float64, n)
	for i := range dif {
		dif[i] = emaFast[i] - emaSlow[i]
	}
	dea := emaOfValid(dif, signal)
	hist := make([]float64, n)
	for i := range hist {
		hist[i] = (dif[i] - dea[i]) * histScale
	}
	return MACDResult{DIF: dif, DEA: dea, Hist: hist}
}

// Stochastic returns %K over the trailing window smoothed by an SMA of
// length smooth (3 by default). A flat window yields 0, as the fast %K does.
func Stochastic(highs, lows, closes []float64, period, smooth int) []float64 {
	n := len(closes)
	if smooth <= 0 {
		smooth = 3
	}
	fastK := nanSeries(n)
	if !validPeriod(period, n) {
		return fastK
	}
	for i := period - 1; i < n; i++ {
		lo, hi := lows[i], highs[i]
		for j := i - period + 1; j < i; j++ {
			lo = math.Min(lo, lows[j])
			hi = math.Max(hi, highs[j])
		}
		if hi == lo {
			fastK[i] = 0
			continue
		}
		fastK[i] = 100 * (closes[i] - lo) / (hi - lo)
	}
	if smooth == 1 {
		return fastK
	}
	return SMA(fastK, smooth)
}

// CCI = (tp − SMA(tp)) / (0.015·meanAbsDeviation(tp)), tp = (h+l+c)/3.
func CCI(highs, lows, closes []float64, period int) []float64 {
	n := len(closes)
	if !validPeriod(period, n) {
		return nanSeries(n)
	}
	out := talib.Cci(highs, lows, closes, period)
	for i := 0; i < period-1 && i < n; i++ {
		out[i] = math.NaN()
	}
	return out
}

// Momentum = x[i] − x[i−period].
func Momentum(series []float64, period int) []float64 {
	n := len(series)
	if !validPeriod(period, n) {
		return nanSeries(n)
	}
	out := talib.Mom(series, period)
	for i := 0; i < period; i++ {
		out[i] = math.NaN()
	}
	return out
}

// OBV accumulates volume by close direction, starting from zero. The running
// total is kept in decimal.
func OBV(closes, volumes []float64) []float64 {
	n := len(closes)
	out := make([]float64, n)
	total := decimal.Zero
	for i := 1; i < n; i++ {
		switch {
		case closes[i] > closes[i-1]:
			total = total.Add(decimal.NewFromFloat(volumes[i]))
		case closes[i] < closes[i-1]:
			total = total.Sub(decimal.NewFromFloat(volumes[i]))
		}
		out[i] = total.InexactFloat64()
	}
	return out
}

// CMF = Σ(multiplier·volume)/Σvolume over the window, where
// multiplier = ((c−l)−(h−c))/(h−l) and 0 on zero-range bars.
func CMF(highs, lows, closes, volumes []float64, period int) []float64 {
	n := len(closes)
	out := nanSeries(n)
	if !validPeriod(period, n) {
		return out
	}
	mfv := make([]float64, n)
	for i := range mfv {
		hl := highs[i] - lows[i]
		if hl == 0 {
			continue
		}
		mfv[i] = ((closes[i] - lows[i]) - (highs[i] - closes[i])) / hl * volumes[i]
	}
	for i := period - 1; i < n; i++ {
		sumMF, sumV := 0.0, 0.0
		for j := i - period + 1; j <= i; j++ {
			sumMF += mfv[j]
			sumV += volumes[j]
		}
		if sumV == 0 {
			continue
		}
		out[i] = sumMF / sumV
	}
	return out
}

// MFI over the last period typical-price changes (defined from index period).
// A window without negative flow yields 100.
func MFI(highs, lows, closes, volumes []float64, period int) []float64 {
	n := len(closes)
	out := nanSeries(n)
	if !validPeriod(period, n) {
		return out
	}
	tp := make([]float64, n)
	for i := range tp {
		tp[i] = (highs[i] + lows[i] + closes[i]) / 3
	}
	for i := period; i < n; i++ {
		pos, neg := 0.0, 0.0
		for j := i - period + 1; j <= i; j++ {
			flow := tp[j] * volumes[j]
			switch {
			case tp[j] > tp[j-1]:
				pos += flow
			case tp[j] < tp[j-1]:
				neg += flow
			}
		}
		if neg == 0 {
			out[i] = 100
			continue
		}
		out[i] = 100 - 100/(1+pos/neg)
	}
	return out
}

// VWMACD = VWMA(fast) − VWMA(slow).
func VWMACD(closes, volumes []float64, fast, slow int) []float64 {
	a := VWMA(closes, volumes, fast)
	b := VWMA(closes, volumes, slow)
	out := make([]float64, len(closes))
	for i := range out {
		out[i] = a[i] - b[i]
	}
	return out
}
