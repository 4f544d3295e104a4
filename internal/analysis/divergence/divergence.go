// Package divergence pairs same-type price pivots with oscillator readings
// and reports regular and hidden divergences, nearest qualifying pair only.
package divergence

import (
	"iter"
	"sort"
	"strings"

	"overlaycore/internal/analysis/indicator"
	"overlaycore/internal/analysis/pivot"
	"overlaycore/internal/market"
)

const (
	defaultPivotPeriod    = 5
	defaultMaxPivotPoints = 10
	defaultMaxBars        = 100
)

type Type string

const (
	Bullish       Type = "bullish"
	Bearish       Type = "bearish"
	BullishHidden Type = "bullish_hidden"
	BearishHidden Type = "bearish_hidden"
)

// Search selects which divergence families are scanned.
type Search string

const (
	SearchRegular       Search = "regular"
	SearchHidden        Search = "hidden"
	SearchRegularHidden Search = "regular_hidden"
)

type Config struct {
	PivotPeriod    int                    `json:"pivot_period,omitempty" toml:"pivot_period,omitempty" yaml:"pivot_period,omitempty"`
	Source         pivot.Source           `json:"source,omitempty" toml:"source,omitempty" yaml:"source,omitempty"`
	MaxPivotPoints int                    `json:"max_pivot_points,omitempty" toml:"max_pivot_points,omitempty" yaml:"max_pivot_points,omitempty"`
	MaxBars        int                    `json:"max_bars,omitempty" toml:"max_bars,omitempty" yaml:"max_bars,omitempty"`
	Search         Search                 `json:"search,omitempty" toml:"search,omitempty" yaml:"search,omitempty"`
	Indicators     []indicator.SpecConfig `json:"indicators,omitempty" toml:"indicators,omitempty" yaml:"indicators,omitempty"`
	// MACDHistScale applies to MACD histogram entries without their own scale.
	MACDHistScale  float64                `json:"macd_hist_scale,omitempty" toml:"macd_hist_scale,omitempty" yaml:"macd_hist_scale,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		PivotPeriod:    defaultPivotPeriod,
		Source:         pivot.SourceClose,
		MaxPivotPoints: defaultMaxPivotPoints,
		MaxBars:        defaultMaxBars,
		Search:         SearchRegularHidden,
		MACDHistScale:  1,
	}
}

func normalize(cfg Config) Config {
	def := DefaultConfig()
	if cfg.PivotPeriod <= 0 {
		cfg.PivotPeriod = def.PivotPeriod
	}
	if cfg.Source != pivot.SourceHighLow {
		cfg.Source = pivot.SourceClose
	}
	if cfg.MaxPivotPoints <= 0 {
		cfg.MaxPivotPoints = def.MaxPivotPoints
	}
	if cfg.MaxBars <= 0 {
		cfg.MaxBars = def.MaxBars
	}
	switch Search(strings.ToLower(string(cfg.Search))) {
	case SearchRegular, SearchHidden:
		cfg.Search = Search(strings.ToLower(string(cfg.Search)))
	default:
		cfg.Search = SearchRegularHidden
	}
	return cfg
}

type Divergence struct {
	Type       Type    `json:"type"`
	Indicator  string  `json:"indicator"`
	StartIndex int     `json:"startIndex"`
	EndIndex   int     `json:"endIndex"`
	StartPrice float64 `json:"startPrice"`
	EndPrice   float64 `json:"endPrice"`
	StartTime  int64   `json:"startTime"`
	EndTime    int64   `json:"endTime"`
	StartValue float64 `json:"startValue"`
	EndValue   float64 `json:"endValue"`
}

// Group collapses divergences sharing (EndIndex, Type) into one marker.
type Group struct {
	Type        Type         `json:"type"`
	EndIndex    int          `json:"endIndex"`
	EndTime     int64        `json:"endTime"`
	EndPrice    float64      `json:"endPrice"`
	Indicators  []string     `json:"indicators"`
	Divergences []Divergence `json:"divergences"`
}

type Result struct {
	Divergences []Divergence `json:"divergences"`
	Groups      []Group      `json:"groups"`
}

// Oscillator is a named series index-aligned with the candles.
type Oscillator struct {
	Name   string
	Values []float64
}

// Detect computes the configured oscillators and scans them for divergences.
func Detect(candles []market.Candle, cfg Config) (Result, error) {
	specs, err := indicator.ParseSpecs(cfg.Indicators)
	if err != nil {
		return Result{}, err
	}
	oscs := make([]Oscillator, 0, len(specs))
	for i, sp := range specs {
		if h, ok := sp.(indicator.MACDHistSpec); ok && cfg.MACDHistScale != 0 && (len(cfg.Indicators) == 0 || cfg.Indicators[i].Scale == 0) {
			h.Scale = cfg.MACDHistScale
			sp = h
		}
		oscs = append(oscs, Oscillator{Name: sp.Name(), Values: indicator.Compute(sp, candles)})
	}
	return Scan(candles, oscs, cfg), nil
}

// Scan finds price pivots per cfg and checks every oscillator against them.
func Scan(candles []market.Candle, oscs []Oscillator, cfg Config) Result {
	cfg = normalize(cfg)
	res := Result{Divergences: []Divergence{}, Groups: []Group{}}
	if len(candles) < cfg.PivotPeriod*2+1 {
		return res
	}
	pivots := pivot.Raw{Period: cfg.PivotPeriod, Source: cfg.Source, MaxKeep: pivotRetention(cfg.MaxPivotPoints)}.Find(candles)
	current := len(candles) - 1
	for _, osc := range oscs {
		if len(osc.Values) != len(candles) {
			continue
		}
		res.Divergences = append(res.Divergences, ScanOscillator(pivots, current, osc, cfg)...)
	}
	res.Groups = GroupByEnd(res.Divergences)
	return res
}

// pivotRetention keeps the newest pivot plus maxPivotPoints older ones, never
// more than pivot.DefaultMaxKeep per type.
func pivotRetention(maxPivotPoints int) int {
	return min(maxPivotPoints+1, pivot.DefaultMaxKeep)
}

type rule struct {
	typ     Type
	side    pivot.Type
	regular bool
	match   func(p1Price, p2Price, v1, v2 float64) bool
}

var rules = []rule{
	{Bullish, pivot.Low, true, func(p1, p2, v1, v2 float64) bool { return p1 < p2 && v1 > v2 }},
	{Bearish, pivot.High, true, func(p1, p2, v1, v2 float64) bool { return p1 > p2 && v1 < v2 }},
	{BullishHidden, pivot.Low, false, func(p1, p2, v1, v2 float64) bool { return p1 > p2 && v1 < v2 }},
	{BearishHidden, pivot.High, false, func(p1, p2, v1, v2 float64) bool { return p1 < p2 && v1 > v2 }},
}

// ScanOscillator returns at most one divergence per type for osc: the nearest
// pivot pair that satisfies the type's condition.
func ScanOscillator(pivots pivot.Set, current int, osc Oscillator, cfg Config) []Divergence {
	cfg = normalize(cfg)
	var out []Divergence
	for _, r := range rules {
		if (r.regular && cfg.Search == SearchHidden) || (!r.regular && cfg.Search == SearchRegular) {
			continue
		}
		pairs := Pairs(pivots.Of(r.side), current, cfg.MaxPivotPoints, cfg.MaxBars)
		pair, ok := FirstMatch(pairs, func(p Pair) bool {
			v1, ok1 := indicator.At(osc.Values, p.Newer.Index)
			v2, ok2 := indicator.At(osc.Values, p.Older.Index)
			return ok1 && ok2 && r.match(p.Newer.Price, p.Older.Price, v1, v2)
		})
		if !ok {
			continue
		}
		out = append(out, Divergence{
			Type:       r.typ,
			Indicator:  osc.Name,
			StartIndex: pair.Older.Index,
			EndIndex:   pair.Newer.Index,
			StartPrice: pair.Older.Price,
			EndPrice:   pair.Newer.Price,
			StartTime:  pair.Older.Time,
			EndTime:    pair.Newer.Time,
			StartValue: osc.Values[pair.Older.Index],
			EndValue:   osc.Values[pair.Newer.Index],
		})
	}
	return out
}

// Pair is two consecutive same-type pivots; Newer has the larger index.
type Pair struct {
	Newer pivot.Pivot
	Older pivot.Pivot
}

// Pairs yields consecutive pivot pairs from the most recent backwards. It
// stops after maxPairs pairs or once the newer pivot is more than maxBars
// before current. ps must be in ascending index order.
func Pairs(ps []pivot.Pivot, current, maxPairs, maxBars int) iter.Seq[Pair] {
	return func(yield func(Pair) bool) {
		count := 0
		for k := len(ps) - 1; k >= 1 && count < maxPairs; k-- {
			newer, older := ps[k], ps[k-1]
			if current-newer.Index > maxBars {
				return
			}
			count++
			if !yield(Pair{Newer: newer, Older: older}) {
				return
			}
		}
	}
}

// FirstMatch returns the first pair in seq satisfying pred.
func FirstMatch(seq iter.Seq[Pair], pred func(Pair) bool) (Pair, bool) {
	for p := range seq {
		if pred(p) {
			return p, true
		}
	}
	return Pair{}, false
}

// GroupByEnd merges divergences with the same end pivot and type, keeping the
// contributing indicator names in scan order.
func GroupByEnd(divs []Divergence) []Group {
	type key struct {
		end int
		typ Type
	}
	index := make(map[key]int)
	groups := make([]Group, 0)
	for _, d := range divs {
		k := key{d.EndIndex, d.Type}
		gi, ok := index[k]
		if !ok {
			gi = len(groups)
			index[k] = gi
			groups = append(groups, Group{Type: d.Type, EndIndex: d.EndIndex, EndTime: d.EndTime, EndPrice: d.EndPrice})
		}
		g := &groups[gi]
		g.Divergences = append(g.Divergences, d)
		if !contains(g.Indicators, d.Indicator) {
			g.Indicators = append(g.Indicators, d.Indicator)
		}
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].EndIndex < groups[j].EndIndex })
	return groups
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
