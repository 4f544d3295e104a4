package indicator

import (
	"errors"
	"fmt"
	"strings"

	"overlaycore/internal/market"
)

// ErrInvalidSpec marks an indicator config that cannot be turned into a Spec.
var ErrInvalidSpec = errors.New("invalid indicator spec")

// Kind tags an indicator variant.
type Kind string

const (
	KindEMA       Kind = "ema"
	KindSMA       Kind = "sma"
	KindRSI       Kind = "rsi"
	KindMACD      Kind = "macd"
	KindMACDHist  Kind = "macd_hist"
	KindBollinger Kind = "bollinger"
	KindATR       Kind = "atr"
	KindStoch     Kind = "stoch"
	KindCCI       Kind = "cci"
	KindMomentum  Kind = "mom"
	KindOBV       Kind = "obv"
	KindCMF       Kind = "cmf"
	KindMFI       Kind = "mfi"
	KindVWMACD    Kind = "vwmacd"
	KindCVD       Kind = "cvd"
)

// Spec is a closed set of indicator variants; each carries its own parameters.
// Only types in this package implement it.
type Spec interface {
	Kind() Kind
	// Name is the display label used in divergence markers.
	Name() string
	sealed()
}

type EMASpec struct{ Period int }
type SMASpec struct{ Period int }
type RSISpec struct{ Period int }
type MACDSpec struct{ Fast, Slow, Signal int }
type MACDHistSpec struct {
	Fast, Slow, Signal int
	Scale              float64
}

// BollingerSpec selects one band line: "upper", "middle" or "lower".
type BollingerSpec struct {
	Period int
	K      float64
	Band   string
}
type ATRSpec struct{ Period int }
type StochSpec struct{ Period, Smooth int }
type CCISpec struct{ Period int }
type MomentumSpec struct{ Period int }
type OBVSpec struct{}
type CMFSpec struct{ Period int }
type MFISpec struct{ Period int }
type VWMACDSpec struct{ Fast, Slow int }
type CVDSpec struct{}

func (EMASpec) Kind() Kind       { return KindEMA }
func (SMASpec) Kind() Kind       { return KindSMA }
func (RSISpec) Kind() Kind       { return KindRSI }
func (MACDSpec) Kind() Kind      { return KindMACD }
func (MACDHistSpec) Kind() Kind  { return KindMACDHist }
func (BollingerSpec) Kind() Kind { return KindBollinger }
func (ATRSpec) Kind() Kind       { return KindATR }
func (StochSpec) Kind() Kind     { return KindStoch }
func (CCISpec) Kind() Kind       { return KindCCI }
func (MomentumSpec) Kind() Kind  { return KindMomentum }
func (OBVSpec) Kind() Kind       { return KindOBV }
func (CMFSpec) Kind() Kind       { return KindCMF }
func (MFISpec) Kind() Kind       { return KindMFI }
func (VWMACDSpec) Kind() Kind    { return KindVWMACD }
func (CVDSpec) Kind() Kind       { return KindCVD }

func (s EMASpec) Name() string       { return fmt.Sprintf("EMA%d", s.Period) }
func (s SMASpec) Name() string       { return fmt.Sprintf("SMA%d", s.Period) }
func (RSISpec) Name() string         { return "RSI" }
func (MACDSpec) Name() string        { return "MACD" }
func (MACDHistSpec) Name() string    { return "MACD Hist" }
func (s BollingerSpec) Name() string { return "BB " + s.Band }
func (ATRSpec) Name() string         { return "ATR" }
func (StochSpec) Name() string       { return "Stoch" }
func (CCISpec) Name() string         { return "CCI" }
func (MomentumSpec) Name() string    { return "Momentum" }
func (OBVSpec) Name() string         { return "OBV" }
func (CMFSpec) Name() string         { return "CMF" }
func (MFISpec) Name() string         { return "MFI" }
func (VWMACDSpec) Name() string      { return "VWMACD" }
func (CVDSpec) Name() string         { return "CVD" }

func (EMASpec) sealed()       {}
func (SMASpec) sealed()       {}
func (RSISpec) sealed()       {}
func (MACDSpec) sealed()      {}
func (MACDHistSpec) sealed()  {}
func (BollingerSpec) sealed() {}
func (ATRSpec) sealed()       {}
func (StochSpec) sealed()     {}
func (CCISpec) sealed()       {}
func (MomentumSpec) sealed()  {}
func (OBVSpec) sealed()       {}
func (CMFSpec) sealed()       {}
func (MFISpec) sealed()       {}
func (VWMACDSpec) sealed()    {}
func (CVDSpec) sealed()       {}

// Compute evaluates spec over candles. The result is index-aligned with candles.
func Compute(spec Spec, candles []market.Candle) []float64 {
	s := market.Columns(candles)
	switch sp := spec.(type) {
	case EMASpec:
		return EMA(s.Closes, sp.Period)
	case SMASpec:
		return SMA(s.Closes, sp.Period)
	case RSISpec:
		return RSI(s.Closes, sp.Period)
	case MACDSpec:
		return MACD(s.Closes, sp.Fast, sp.Slow, sp.Signal, 1).DIF
	case MACDHistSpec:
		return MACD(s.Closes, sp.Fast, sp.Slow, sp.Signal, sp.Scale).Hist
	case BollingerSpec:
		bb := Bollinger(s.Closes, sp.Period, sp.K)
		switch sp.Band {
		case "upper":
			return bb.Upper
		case "lower":
			return bb.Lower
		default:
			return bb.Middle
		}
	case ATRSpec:
		return ATR(s.Highs, s.Lows, s.Closes, sp.Period)
	case StochSpec:
		return Stochastic(s.Highs, s.Lows, s.Closes, sp.Period, sp.Smooth)
	case CCISpec:
		return CCI(s.Highs, s.Lows, s.Closes, sp.Period)
	case MomentumSpec:
		return Momentum(s.Closes, sp.Period)
	case OBVSpec:
		return OBV(s.Closes, s.Volumes)
	case CMFSpec:
		return CMF(s.Highs, s.Lows, s.Closes, s.Volumes, sp.Period)
	case MFISpec:
		return MFI(s.Highs, s.Lows, s.Closes, s.Volumes, sp.Period)
	case VWMACDSpec:
		return VWMACD(s.Closes, s.Volumes, sp.Fast, sp.Slow)
	case CVDSpec:
		return market.CVDSeries(candles)
	default:
		panic(fmt.Sprintf("indicator: unhandled spec %T", spec))
	}
}

// DefaultOscillators is the oscillator set scanned for divergences.
func DefaultOscillators() []Spec {
	return []Spec{
		MACDSpec{Fast: 12, Slow: 26, Signal: 9},
		MACDHistSpec{Fast: 12, Slow: 26, Signal: 9, Scale: 1},
		RSISpec{Period: 14},
		StochSpec{Period: 14, Smooth: 3},
		CCISpec{Period: 10},
		MomentumSpec{Period: 10},
		OBVSpec{},
		VWMACDSpec{Fast: 12, Slow: 26},
		CMFSpec{Period: 21},
		MFISpec{Period: 14},
	}
}

// SpecConfig is the flat wire/config form of a Spec, e.g.
// {"kind":"macd_hist","fast":12,"slow":26,"signal":9,"scale":2}.
type SpecConfig struct {
	Kind   Kind    `json:"kind" toml:"kind" yaml:"kind"`
	Period int     `json:"period,omitempty" toml:"period,omitempty" yaml:"period,omitempty"`
	Fast   int     `json:"fast,omitempty" toml:"fast,omitempty" yaml:"fast,omitempty"`
	Slow   int     `json:"slow,omitempty" toml:"slow,omitempty" yaml:"slow,omitempty"`
	Signal int     `json:"signal,omitempty" toml:"signal,omitempty" yaml:"signal,omitempty"`
	Smooth int     `json:"smooth,omitempty" toml:"smooth,omitempty" yaml:"smooth,omitempty"`
	Scale  float64 `json:"scale,omitempty" toml:"scale,omitempty" yaml:"scale,omitempty"`
	K      float64 `json:"k,omitempty" toml:"k,omitempty" yaml:"k,omitempty"`
	Band   string  `json:"band,omitempty" toml:"band,omitempty" yaml:"band,omitempty"`
}

func orInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Spec converts the config into its variant, filling defaults for zero fields.
func (c SpecConfig) Spec() (Spec, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(string(c.Kind)))) {
	case KindEMA:
		return EMASpec{Period: orInt(c.Period, 20)}, nil
	case KindSMA:
		return SMASpec{Period: orInt(c.Period, 20)}, nil
	case KindRSI:
		return RSISpec{Period: orInt(c.Period, 14)}, nil
	case KindMACD:
		return MACDSpec{Fast: orInt(c.Fast, 12), Slow: orInt(c.Slow, 26), Signal: orInt(c.Signal, 9)}, nil
	case KindMACDHist:
		scale := c.Scale
		if scale == 0 {
			scale = 1
		}
		return MACDHistSpec{Fast: orInt(c.Fast, 12), Slow: orInt(c.Slow, 26), Signal: orInt(c.Signal, 9), Scale: scale}, nil
	case KindBollinger:
		k := c.K
		if k == 0 {
			k = 2
		}
		band := strings.ToLower(strings.TrimSpace(c.Band))
		switch band {
		case "":
			band = "middle"
		case "upper", "middle", "lower":
		default:
			return nil, fmt.Errorf("%w: bollinger band %q not one of upper/middle/lower", ErrInvalidSpec, c.Band)
		}
		return BollingerSpec{Period: orInt(c.Period, 20), K: k, Band: band}, nil
	case KindATR:
		return ATRSpec{Period: orInt(c.Period, 14)}, nil
	case KindStoch:
		return StochSpec{Period: orInt(c.Period, 14), Smooth: orInt(c.Smooth, 3)}, nil
	case KindCCI:
		return CCISpec{Period: orInt(c.Period, 10)}, nil
	case KindMomentum:
		return MomentumSpec{Period: orInt(c.Period, 10)}, nil
	case KindOBV:
		return OBVSpec{}, nil
	case KindCMF:
		return CMFSpec{Period: orInt(c.Period, 21)}, nil
	case KindMFI:
		return MFISpec{Period: orInt(c.Period, 14)}, nil
	case KindVWMACD:
		return VWMACDSpec{Fast: orInt(c.Fast, 12), Slow: orInt(c.Slow, 26)}, nil
	case KindCVD:
		return CVDSpec{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidSpec, c.Kind)
	}
}

// ParseSpecs converts a list of configs; an empty list yields DefaultOscillators.
func ParseSpecs(cfgs []SpecConfig) ([]Spec, error) {
	if len(cfgs) == 0 {
		return DefaultOscillators(), nil
	}
	out := make([]Spec, 0, len(cfgs))
	for i, c := range cfgs {
		sp, err := c.Spec()
		if err != nil {
			return nil, fmt.Errorf("indicator %d: %w", i, err)
		}
		out = append(out, sp)
	}
	return out, nil
}
