// Package zigzag labels alternating swing extremes whose reversal exceeds a
// percentage deviation.
package zigzag

import (
	"overlaycore/internal/analysis/pivot"
	"overlaycore/internal/market"
)

const (
	defaultDepth     = 12
	defaultDeviation = 5.0
	defaultBackstep  = 2
)

type Config struct {
	Depth     int     `json:"depth,omitempty" toml:"depth,omitempty" yaml:"depth,omitempty"`
	Deviation float64 `json:"deviation,omitempty" toml:"deviation,omitempty" yaml:"deviation,omitempty"`
	Backstep  int     `json:"backstep,omitempty" toml:"backstep,omitempty" yaml:"backstep,omitempty"`
	Repaint   bool    `json:"repaint,omitempty" toml:"repaint,omitempty" yaml:"repaint,omitempty"`
}

func DefaultConfig() Config {
	return Config{Depth: defaultDepth, Deviation: defaultDeviation, Backstep: defaultBackstep}
}

func normalize(cfg Config) Config {
	if cfg.Depth <= 0 {
		cfg.Depth = defaultDepth
	}
	if cfg.Deviation <= 0 {
		cfg.Deviation = defaultDeviation
	}
	if cfg.Backstep <= 0 {
		cfg.Backstep = defaultBackstep
	}
	return cfg
}

type Point struct {
	Type        pivot.Type `json:"type"`
	Price       float64    `json:"price"`
	BarIndex    int        `json:"barIndex"`
	Time        int64      `json:"time"`
	Label       string     `json:"label,omitempty"`
	Unconfirmed bool       `json:"unconfirmed,omitempty"`
}

// Tracker walks the window once, following one polarity at a time.
type Tracker struct {
	Config  Config
	MaxKeep int
}

// Points returns the finalized pivots in bar order, strictly alternating in
// type, plus the provisional extreme when Repaint is set.
func (t Tracker) Points(candles []market.Candle) []Point {
	cfg := normalize(t.Config)
	out := []Point{}
	n := len(candles)
	if n == 0 {
		return out
	}

	// Seed from the first Depth bars; the later of the two extremes is tracked.
	seedEnd := min(cfg.Depth, n)
	hi, lo := 0, 0
	for i := 1; i < seedEnd; i++ {
		if candles[i].High > candles[hi].High {
			hi = i
		}
		if candles[i].Low < candles[lo].Low {
			lo = i
		}
	}
	side, at, price := pivot.High, hi, candles[hi].High
	if lo > hi {
		side, at, price = pivot.Low, lo, candles[lo].Low
	}

	for i := seedEnd; i < n; i++ {
		c := candles[i]
		if side == pivot.High {
			if c.High > price {
				if i-at >= cfg.Backstep {
					at, price = i, c.High
				}
				continue
			}
			if (price-c.Low)/price*100 >= cfg.Deviation && i-at >= cfg.Backstep {
				out = appendPoint(out, Point{Type: pivot.High, Price: price, BarIndex: at, Time: candles[at].OpenTime})
				side, at, price = pivot.Low, i, c.Low
			}
			continue
		}
		if c.Low < price {
			if i-at >= cfg.Backstep {
				at, price = i, c.Low
			}
			continue
		}
		if (c.High-price)/price*100 >= cfg.Deviation && i-at >= cfg.Backstep {
			out = appendPoint(out, Point{Type: pivot.Low, Price: price, BarIndex: at, Time: candles[at].OpenTime})
			side, at, price = pivot.High, i, c.High
		}
	}

	if cfg.Repaint {
		out = appendPoint(out, Point{Type: side, Price: price, BarIndex: at, Time: candles[at].OpenTime, Unconfirmed: true})
	}
	return out
}

// appendPoint labels p against the previous point of the same polarity, two
// entries back in the alternating sequence.
func appendPoint(points []Point, p Point) []Point {
	if k := len(points) - 2; k >= 0 {
		prev := points[k].Price
		switch p.Type {
		case pivot.High:
			p.Label = "LH"
			if p.Price > prev {
				p.Label = "HH"
			}
		case pivot.Low:
			p.Label = "HL"
			if p.Price < prev {
				p.Label = "LL"
			}
		}
	}
	return append(points, p)
}

// Find returns the confirmed zig-zag extremes as a pivot set.
func (t Tracker) Find(candles []market.Candle) pivot.Set {
	var set pivot.Set
	for _, p := range t.Points(candles) {
		if p.Unconfirmed {
			continue
		}
		pv := pivot.Pivot{Index: p.BarIndex, Price: p.Price, Type: p.Type, Time: p.Time}
		if p.Type == pivot.High {
			set.Highs = append(set.Highs, pv)
		} else {
			set.Lows = append(set.Lows, pv)
		}
	}
	keep := t.MaxKeep
	if keep <= 0 {
		keep = pivot.DefaultMaxKeep
	}
	if len(set.Highs) > keep {
		set.Highs = set.Highs[len(set.Highs)-keep:]
	}
	if len(set.Lows) > keep {
		set.Lows = set.Lows[len(set.Lows)-keep:]
	}
	return set
}
