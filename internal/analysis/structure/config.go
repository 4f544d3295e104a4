package structure

import (
	"strings"

	"overlaycore/internal/analysis/pivot"
)

const (
	defaultSwingLength     = 50
	defaultInternalLength  = 5
	defaultEqualLength     = 3
	defaultEqualThreshold  = 0.1
	defaultATRPeriod       = 14
	defaultSwingOBCount    = 5
	defaultInternalOBCount = 5
	defaultFVGExtend       = 1

	// brokenHistory bounds retained broken blocks per scope.
	brokenHistory = 20
)

// Mitigation selects the price that invalidates an order block.
type Mitigation string

const (
	MitigationHighLow Mitigation = "highlow"
	MitigationClose   Mitigation = "close"
)

type Config struct {
	SwingLength     int              `json:"swing_length,omitempty" toml:"swing_length,omitempty" yaml:"swing_length,omitempty"`
	InternalLength  int              `json:"internal_length,omitempty" toml:"internal_length,omitempty" yaml:"internal_length,omitempty"`
	EqualLength     int              `json:"equal_length,omitempty" toml:"equal_length,omitempty" yaml:"equal_length,omitempty"`
	EqualThreshold  float64          `json:"equal_threshold,omitempty" toml:"equal_threshold,omitempty" yaml:"equal_threshold,omitempty"`
	EqualEnabled    *bool            `json:"equal_enabled,omitempty" toml:"equal_enabled,omitempty" yaml:"equal_enabled,omitempty"`
	ATRPeriod       int              `json:"atr_period,omitempty" toml:"atr_period,omitempty" yaml:"atr_period,omitempty"`
	Volatility      pivot.Volatility `json:"volatility_filter,omitempty" toml:"volatility_filter,omitempty" yaml:"volatility_filter,omitempty"`
	SwingOBCount    int              `json:"swing_ob_count,omitempty" toml:"swing_ob_count,omitempty" yaml:"swing_ob_count,omitempty"`
	InternalOBCount int              `json:"internal_ob_count,omitempty" toml:"internal_ob_count,omitempty" yaml:"internal_ob_count,omitempty"`
	OBMitigation    Mitigation       `json:"ob_mitigation,omitempty" toml:"ob_mitigation,omitempty" yaml:"ob_mitigation,omitempty"`
	FVGEnabled      *bool            `json:"fvg_enabled,omitempty" toml:"fvg_enabled,omitempty" yaml:"fvg_enabled,omitempty"`
	FVGThreshold    float64          `json:"fvg_threshold,omitempty" toml:"fvg_threshold,omitempty" yaml:"fvg_threshold,omitempty"`
	FVGExtend       int              `json:"fvg_extend,omitempty" toml:"fvg_extend,omitempty" yaml:"fvg_extend,omitempty"`
}

func DefaultConfig() Config {
	on := true
	fvg := true
	return Config{
		SwingLength:     defaultSwingLength,
		InternalLength:  defaultInternalLength,
		EqualLength:     defaultEqualLength,
		EqualThreshold:  defaultEqualThreshold,
		EqualEnabled:    &on,
		ATRPeriod:       defaultATRPeriod,
		Volatility:      pivot.VolatilityATR,
		SwingOBCount:    defaultSwingOBCount,
		InternalOBCount: defaultInternalOBCount,
		OBMitigation:    MitigationHighLow,
		FVGEnabled:      &fvg,
		FVGExtend:       defaultFVGExtend,
	}
}

func normalize(cfg Config) Config {
	def := DefaultConfig()
	if cfg.SwingLength <= 0 {
		cfg.SwingLength = def.SwingLength
	}
	if cfg.InternalLength <= 0 {
		cfg.InternalLength = def.InternalLength
	}
	if cfg.EqualLength <= 0 {
		cfg.EqualLength = def.EqualLength
	}
	if cfg.EqualThreshold <= 0 {
		cfg.EqualThreshold = def.EqualThreshold
	}
	if cfg.EqualEnabled == nil {
		cfg.EqualEnabled = def.EqualEnabled
	}
	if cfg.ATRPeriod <= 0 {
		cfg.ATRPeriod = def.ATRPeriod
	}
	if pivot.Volatility(strings.ToLower(string(cfg.Volatility))) == pivot.VolatilityRange {
		cfg.Volatility = pivot.VolatilityRange
	} else {
		cfg.Volatility = pivot.VolatilityATR
	}
	if cfg.SwingOBCount <= 0 {
		cfg.SwingOBCount = def.SwingOBCount
	}
	if cfg.InternalOBCount <= 0 {
		cfg.InternalOBCount = def.InternalOBCount
	}
	if Mitigation(strings.ToLower(string(cfg.OBMitigation))) == MitigationClose {
		cfg.OBMitigation = MitigationClose
	} else {
		cfg.OBMitigation = MitigationHighLow
	}
	if cfg.FVGEnabled == nil {
		cfg.FVGEnabled = def.FVGEnabled
	}
	if cfg.FVGThreshold < 0 {
		cfg.FVGThreshold = 0
	}
	if cfg.FVGExtend <= 0 {
		cfg.FVGExtend = def.FVGExtend
	}
	return cfg
}
