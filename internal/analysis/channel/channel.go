// Package channel clusters nearby pivots into support/resistance bands and
// ranks them by pivot count and recent bar touches.
package channel

import (
	"math"
	"sort"
	"strings"

	"overlaycore/internal/analysis/pivot"
	"overlaycore/internal/market"
)

const (
	defaultPivotPeriod  = 10
	defaultWidthPercent = 5
	defaultMinStrength  = 1
	defaultMaxChannels  = 6
	maxChannelsLimit    = 10
	defaultLoopback     = 290

	// widthLookback is the number of bars whose range sizes the band width.
	widthLookback = 300
	pivotWeight   = 20
)

type Type string

const (
	Support    Type = "support"
	Resistance Type = "resistance"
	InChannel  Type = "in_channel"
)

type Config struct {
	PivotPeriod         int          `json:"pivot_period,omitempty" toml:"pivot_period,omitempty" yaml:"pivot_period,omitempty"`
	Source              pivot.Source `json:"source,omitempty" toml:"source,omitempty" yaml:"source,omitempty"`
	ChannelWidthPercent float64      `json:"channel_width_percent,omitempty" toml:"channel_width_percent,omitempty" yaml:"channel_width_percent,omitempty"`
	MinStrength         int          `json:"min_strength,omitempty" toml:"min_strength,omitempty" yaml:"min_strength,omitempty"`
	MaxChannels         int          `json:"max_channels,omitempty" toml:"max_channels,omitempty" yaml:"max_channels,omitempty"`
	LoopbackPeriod      int          `json:"loopback_period,omitempty" toml:"loopback_period,omitempty" yaml:"loopback_period,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		PivotPeriod:         defaultPivotPeriod,
		Source:              pivot.SourceHighLow,
		ChannelWidthPercent: defaultWidthPercent,
		MinStrength:         defaultMinStrength,
		MaxChannels:         defaultMaxChannels,
		LoopbackPeriod:      defaultLoopback,
	}
}

func normalize(cfg Config) Config {
	def := DefaultConfig()
	if cfg.PivotPeriod <= 0 {
		cfg.PivotPeriod = def.PivotPeriod
	}
	if pivot.Source(strings.ToLower(string(cfg.Source))) == pivot.SourceCloseOpen {
		cfg.Source = pivot.SourceCloseOpen
	} else {
		cfg.Source = pivot.SourceHighLow
	}
	if cfg.ChannelWidthPercent <= 0 {
		cfg.ChannelWidthPercent = def.ChannelWidthPercent
	}
	if cfg.MinStrength <= 0 {
		cfg.MinStrength = def.MinStrength
	}
	if cfg.MaxChannels <= 0 {
		cfg.MaxChannels = def.MaxChannels
	}
	if cfg.MaxChannels > maxChannelsLimit {
		cfg.MaxChannels = maxChannelsLimit
	}
	if cfg.LoopbackPeriod <= 0 {
		cfg.LoopbackPeriod = def.LoopbackPeriod
	}
	return cfg
}

// Channel is a price band; High ≥ Low always.
type Channel struct {
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Strength int     `json:"strength"`
	Pivots   int     `json:"pivots"`
	Type     Type    `json:"type"`
}

type candidate struct {
	hi, lo   float64
	pivots   int
	strength int
}

// Detect returns at most MaxChannels non-overlapping channels, strongest
// first, classified against the last close.
func Detect(candles []market.Candle, cfg Config) []Channel {
	cfg = normalize(cfg)
	out := []Channel{}
	n := len(candles)
	if n < cfg.PivotPeriod*2+1 {
		return out
	}
	values := pivotValues(candles, cfg)
	if len(values) == 0 {
		return out
	}
	maxWidth := bandWidth(candles, cfg.ChannelWidthPercent)

	cands := make([]candidate, len(values))
	for i := range values {
		c := cluster(values, i, maxWidth)
		c.strength = c.pivots*pivotWeight + touches(candles, c.lo, c.hi, cfg.LoopbackPeriod)
		cands[i] = c
	}

	last := candles[n-1].Close
	for len(out) < cfg.MaxChannels {
		best := -1
		for i, c := range cands {
			if c.strength < cfg.MinStrength*pivotWeight {
				continue
			}
			if best < 0 || c.strength > cands[best].strength {
				best = i
			}
		}
		if best < 0 {
			break
		}
		pick := cands[best]
		out = append(out, Channel{High: pick.hi, Low: pick.lo, Strength: pick.strength, Pivots: pick.pivots, Type: classify(pick, last)})
		// Candidates overlapping the accepted band can no longer be picked.
		for i, c := range cands {
			if c.lo <= pick.hi && c.hi >= pick.lo {
				cands[i].strength = -1
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Strength > out[j].Strength })
	return out
}

// pivotValues lists pivot prices newest first, keeping only pivots within the
// loopback window and at most pivot.DefaultMaxKeep of each type. A bar that
// is both a high and a low pivot contributes its high.
func pivotValues(candles []market.Candle, cfg Config) []float64 {
	n := len(candles)
	set := pivot.Raw{Period: cfg.PivotPeriod, Source: cfg.Source, MaxKeep: pivot.DefaultMaxKeep}.Find(candles)
	byIndex := make(map[int]float64, len(set.Highs)+len(set.Lows))
	for _, p := range set.Lows {
		byIndex[p.Index] = p.Price
	}
	for _, p := range set.Highs {
		byIndex[p.Index] = p.Price
	}
	idx := make([]int, 0, len(byIndex))
	for i := range byIndex {
		if n-1-i <= cfg.LoopbackPeriod {
			idx = append(idx, i)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(idx)))
	out := make([]float64, len(idx))
	for k, i := range idx {
		out[k] = byIndex[i]
	}
	return out
}

// bandWidth is pct% of the high-low range of the most recent bars.
func bandWidth(candles []market.Candle, pct float64) float64 {
	start := max(0, len(candles)-widthLookback)
	hi, lo := math.Inf(-1), math.Inf(1)
	for _, c := range candles[start:] {
		hi = math.Max(hi, c.High)
		lo = math.Min(lo, c.Low)
	}
	return (hi - lo) * pct / 100
}

// cluster grows a band from values[seed], absorbing every pivot (in newest
// first order) that keeps the band within maxWidth.
func cluster(values []float64, seed int, maxWidth float64) candidate {
	hi, lo := values[seed], values[seed]
	count := 0
	for _, v := range values {
		width := v - lo
		if v <= hi {
			width = hi - v
		}
		if width > maxWidth {
			continue
		}
		if v <= hi {
			lo = math.Min(lo, v)
		} else {
			hi = math.Max(hi, v)
		}
		count++
	}
	return candidate{hi: hi, lo: lo, pivots: count}
}

// touches counts the most recent loopback bars whose high or low falls
// inside [lo, hi].
func touches(candles []market.Candle, lo, hi float64, loopback int) int {
	start := max(0, len(candles)-loopback)
	count := 0
	for _, c := range candles[start:] {
		if (c.High <= hi && c.High >= lo) || (c.Low <= hi && c.Low >= lo) {
			count++
		}
	}
	return count
}

func classify(c candidate, last float64) Type {
	switch {
	case c.hi < last:
		return Support
	case c.lo > last:
		return Resistance
	default:
		return InChannel
	}
}
