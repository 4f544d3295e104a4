// Package indicator implements the stateless indicator transforms used by the
// overlay detectors. Every function returns a series index-aligned with its
// input; bars without enough history hold NaN, never zero.
package indicator

import (
	"fmt"
	"math"

	"overlaycore/internal/market"
)

type Settings struct {
	Symbol    string
	Interval  string
	EMA       EMASettings
	RSI       RSISettings
	MACD      MACDSettings
	Bollinger BollingerSettings
	ATRPeriod int
}

type EMASettings struct {
	Fast int `json:"fast,omitempty" toml:"fast,omitempty" yaml:"fast,omitempty"`
	Mid  int `json:"mid,omitempty" toml:"mid,omitempty" yaml:"mid,omitempty"`
	Slow int `json:"slow,omitempty" toml:"slow,omitempty" yaml:"slow,omitempty"`
	Long int `json:"long,omitempty" toml:"long,omitempty" yaml:"long,omitempty"`
}

type RSISettings struct {
	Period     int     `json:"period,omitempty" toml:"period,omitempty" yaml:"period,omitempty"`
	Oversold   float64 `json:"oversold,omitempty" toml:"oversold,omitempty" yaml:"oversold,omitempty"`
	Overbought float64 `json:"overbought,omitempty" toml:"overbought,omitempty" yaml:"overbought,omitempty"`
}

type MACDSettings struct {
	Fast      int     `json:"fast,omitempty" toml:"fast,omitempty" yaml:"fast,omitempty"`
	Slow      int     `json:"slow,omitempty" toml:"slow,omitempty" yaml:"slow,omitempty"`
	Signal    int     `json:"signal,omitempty" toml:"signal,omitempty" yaml:"signal,omitempty"`
	HistScale float64 `json:"hist_scale,omitempty" toml:"hist_scale,omitempty" yaml:"hist_scale,omitempty"`
}

type BollingerSettings struct {
	Period int     `json:"period,omitempty" toml:"period,omitempty" yaml:"period,omitempty"`
	K      float64 `json:"k,omitempty" toml:"k,omitempty" yaml:"k,omitempty"`
}

// IndicatorValue 为 nil 的 Latest 表示样本不足，序列化为 null。
type IndicatorValue struct {
	Latest *float64 `json:"latest"`
	Series Line     `json:"series,omitempty"`
	State  string   `json:"state,omitempty"`
	Note   string   `json:"note,omitempty"`
}

type Report struct {
	Symbol   string                    `json:"symbol"`
	Interval string                    `json:"interval"`
	Count    int                       `json:"count"`
	Values   map[string]IndicatorValue `json:"values"`
	CVD      *market.CVDMetrics        `json:"cvd,omitempty"`
	Warnings []string                  `json:"warnings,omitempty"`
}

// NormalizeSettings fills zero fields with the library defaults.
func NormalizeSettings(cfg Settings) Settings {
	if cfg.EMA.Fast <= 0 {
		cfg.EMA.Fast = 21
	}
	if cfg.EMA.Mid <= 0 {
		cfg.EMA.Mid = 55
	}
	if cfg.EMA.Slow <= 0 {
		cfg.EMA.Slow = 100
	}
	if cfg.EMA.Long <= 0 {
		cfg.EMA.Long = 200
	}
	if cfg.RSI.Period <= 0 {
		cfg.RSI.Period = 14
	}
	if cfg.RSI.Overbought == 0 {
		cfg.RSI.Overbought = 70
	}
	if cfg.RSI.Oversold == 0 {
		cfg.RSI.Oversold = 30
	}
	if cfg.MACD.Fast <= 0 {
		cfg.MACD.Fast = 12
	}
	if cfg.MACD.Slow <= 0 {
		cfg.MACD.Slow = 26
	}
	if cfg.MACD.Signal <= 0 {
		cfg.MACD.Signal = 9
	}
	if cfg.MACD.HistScale == 0 {
		cfg.MACD.HistScale = 1
	}
	if cfg.Bollinger.Period <= 0 {
		cfg.Bollinger.Period = 20
	}
	if cfg.Bollinger.K == 0 {
		cfg.Bollinger.K = 2
	}
	if cfg.ATRPeriod <= 0 {
		cfg.ATRPeriod = 14
	}
	return cfg
}

// ComputeAll evaluates the standard indicator panel and labels the latest
// value of each line.
func ComputeAll(candles []market.Candle, cfg Settings) (Report, error) {
	rep := Report{
		Symbol:   cfg.Symbol,
		Interval: cfg.Interval,
		Count:    len(candles),
		Values:   make(map[string]IndicatorValue),
	}
	if len(candles) == 0 {
		return rep, market.ErrNoCandles
	}
	cfg = NormalizeSettings(cfg)
	s := market.Columns(candles)
	lastClose := s.Closes[len(s.Closes)-1]

	for _, e := range []struct {
		key    string
		period int
	}{
		{"ema_fast", cfg.EMA.Fast},
		{"ema_mid", cfg.EMA.Mid},
		{"ema_slow", cfg.EMA.Slow},
		{"ema_long", cfg.EMA.Long},
	} {
		series := EMA(s.Closes, e.period)
		latest := LastValid(series)
		if !IsDefined(latest) {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("%s: need more than %d candles", e.key, e.period))
		}
		rep.Values[e.key] = IndicatorValue{
			Latest: round4(latest),
			Series: series,
			State:  relativeState(lastClose, latest),
			Note:   fmt.Sprintf("EMA%d vs price", e.period),
		}
	}

	rsiSeries := RSI(s.Closes, cfg.RSI.Period)
	rsiVal := LastValid(rsiSeries)
	state := "neutral"
	switch {
	case !IsDefined(rsiVal):
		state = "warmup"
	case rsiVal >= cfg.RSI.Overbought:
		state = "overbought"
	case rsiVal <= cfg.RSI.Oversold:
		state = "oversold"
	}
	rep.Values["rsi"] = IndicatorValue{
		Latest: round4(rsiVal),
		Series: rsiSeries,
		State:  state,
		Note:   fmt.Sprintf("period=%d thresholds=%.1f/%.1f", cfg.RSI.Period, cfg.RSI.Oversold, cfg.RSI.Overbought),
	}

	macd := MACD(s.Closes, cfg.MACD.Fast, cfg.MACD.Slow, cfg.MACD.Signal, cfg.MACD.HistScale)
	rep.Values["macd"] = IndicatorValue{
		Latest: round4(LastValid(macd.DIF)),
		Series: macd.Hist,
		State:  polarityState(LastValid(macd.Hist)),
		Note:   fmt.Sprintf("signal=%.4f hist=%.4f", LastValid(macd.DEA), LastValid(macd.Hist)),
	}

	bb := Bollinger(s.Closes, cfg.Bollinger.Period, cfg.Bollinger.K)
	upper, lower := LastValid(bb.Upper), LastValid(bb.Lower)
	bbState := "inside"
	switch {
	case !IsDefined(upper):
		bbState = "warmup"
	case lastClose > upper:
		bbState = "above"
	case lastClose < lower:
		bbState = "below"
	}
	rep.Values["bollinger"] = IndicatorValue{
		Latest: round4(LastValid(bb.Middle)),
		Series: bb.Middle,
		State:  bbState,
		Note:   fmt.Sprintf("upper=%.4f lower=%.4f", upper, lower),
	}

	stoch := Stochastic(s.Highs, s.Lows, s.Closes, 14, 3)
	rep.Values["stoch_k"] = IndicatorValue{
		Latest: round4(LastValid(stoch)),
		Series: stoch,
		State:  stochasticState(LastValid(stoch)),
		Note:   "period=14 smooth=3",
	}

	atr := ATR(s.Highs, s.Lows, s.Closes, cfg.ATRPeriod)
	rep.Values["atr"] = IndicatorValue{
		Latest: round4(LastValid(atr)),
		Series: atr,
		State:  "volatility",
		Note:   fmt.Sprintf("period=%d", cfg.ATRPeriod),
	}

	mom := Momentum(s.Closes, 10)
	obv := OBV(s.Closes, s.Volumes)
	rep.Values["obv"] = IndicatorValue{
		Latest: round4(LastValid(obv)),
		Series: obv,
		State:  polarityState(LastValid(mom)),
		Note:   "volume thrust",
	}

	if cvd, ok := market.ComputeCVD(candles); ok {
		rep.CVD = &cvd
	}
	return rep, nil
}

func relativeState(price, ref float64) string {
	if !IsDefined(ref) || ref == 0 {
		return "unknown"
	}
	switch {
	case price > ref*1.002:
		return "above"
	case price < ref*0.998:
		return "below"
	default:
		return "touch"
	}
}

func polarityState(v float64) string {
	switch {
	case !IsDefined(v):
		return "unknown"
	case v > 0:
		return "positive"
	case v < 0:
		return "negative"
	default:
		return "flat"
	}
}

func stochasticState(v float64) string {
	switch {
	case !IsDefined(v):
		return "unknown"
	case v >= 80:
		return "overbought"
	case v <= 20:
		return "oversold"
	default:
		return "neutral"
	}
}

func round4(v float64) *float64 {
	if !IsDefined(v) {
		return nil
	}
	r := math.Round(v*10000) / 10000
	return &r
}
