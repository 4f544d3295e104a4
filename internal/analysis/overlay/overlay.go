// Package overlay is the single entry point a chart host calls: it validates
// the candle window, caps its length, runs the requested detectors and
// returns one serializable result.
package overlay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"overlaycore/internal/analysis/channel"
	"overlaycore/internal/analysis/divergence"
	"overlaycore/internal/analysis/indicator"
	"overlaycore/internal/analysis/pivot"
	"overlaycore/internal/analysis/structure"
	"overlaycore/internal/analysis/zigzag"
	"overlaycore/internal/logger"
	"overlaycore/internal/market"
)

// DefaultMaxCandles caps the analysed window.
const DefaultMaxCandles = 5000

// ErrUnknownDetector is returned for a detector name outside AllDetectors.
var ErrUnknownDetector = errors.New("unknown detector")

type Detector string

const (
	DetectorIndicators Detector = "indicators"
	DetectorPivots     Detector = "pivots"
	DetectorDivergence Detector = "divergence"
	DetectorStructure  Detector = "structure"
	DetectorChannels   Detector = "channels"
	DetectorZigZag     Detector = "zigzag"
)

// AllDetectors runs when a request names none.
var AllDetectors = []Detector{
	DetectorIndicators,
	DetectorPivots,
	DetectorDivergence,
	DetectorStructure,
	DetectorChannels,
	DetectorZigZag,
}

// PivotMode selects which Finder backs the pivots detector.
type PivotMode string

const (
	PivotRaw      PivotMode = "raw"
	PivotFiltered PivotMode = "filtered"
	PivotZigZag   PivotMode = "zigzag"
)

type PivotConfig struct {
	Mode       PivotMode        `json:"mode,omitempty" toml:"mode,omitempty" yaml:"mode,omitempty"`
	Period     int              `json:"period,omitempty" toml:"period,omitempty" yaml:"period,omitempty"`
	Source     pivot.Source     `json:"source,omitempty" toml:"source,omitempty" yaml:"source,omitempty"`
	Volatility pivot.Volatility `json:"volatility_filter,omitempty" toml:"volatility_filter,omitempty" yaml:"volatility_filter,omitempty"`
	MaxKeep    int              `json:"max_keep,omitempty" toml:"max_keep,omitempty" yaml:"max_keep,omitempty"`
}

func DefaultPivotConfig() PivotConfig {
	return PivotConfig{Mode: PivotRaw, Period: 5, Source: pivot.SourceHighLow, MaxKeep: pivot.DefaultMaxKeep}
}

// Finder builds the pivot finder for this config; zz configures zigzag mode.
func (c PivotConfig) Finder(zz zigzag.Config) pivot.Finder {
	def := DefaultPivotConfig()
	if c.Period <= 0 {
		c.Period = def.Period
	}
	if c.MaxKeep <= 0 {
		c.MaxKeep = def.MaxKeep
	}
	switch PivotMode(strings.ToLower(string(c.Mode))) {
	case PivotFiltered:
		return pivot.Filtered{Window: c.Period, Volatility: c.Volatility, MaxKeep: c.MaxKeep}
	case PivotZigZag:
		return zigzag.Tracker{Config: zz, MaxKeep: c.MaxKeep}
	default:
		return pivot.Raw{Period: c.Period, Source: c.Source, MaxKeep: c.MaxKeep}
	}
}

// Params holds one parameter object per detector.
type Params struct {
	Indicators []indicator.SpecConfig `json:"indicators,omitempty" toml:"indicators,omitempty" yaml:"indicators,omitempty"`
	Pivot      PivotConfig            `json:"pivot" toml:"pivot" yaml:"pivot"`
	Divergence divergence.Config      `json:"divergence" toml:"divergence" yaml:"divergence"`
	Structure  structure.Config       `json:"structure" toml:"structure" yaml:"structure"`
	Channel    channel.Config         `json:"channel" toml:"channel" yaml:"channel"`
	ZigZag     zigzag.Config          `json:"zigzag" toml:"zigzag" yaml:"zigzag"`
}

func DefaultParams() Params {
	return Params{
		Pivot:      DefaultPivotConfig(),
		Divergence: divergence.DefaultConfig(),
		Structure:  structure.DefaultConfig(),
		Channel:    channel.DefaultConfig(),
		ZigZag:     zigzag.DefaultConfig(),
	}
}

// Request is one analysis call. Nil detector params fall back to the
// engine defaults.
type Request struct {
	Symbol     string                 `json:"symbol,omitempty"`
	Interval   string                 `json:"interval,omitempty"`
	Candles    []market.Candle        `json:"candles"`
	Detectors  []Detector             `json:"detectors,omitempty"`
	Indicators []indicator.SpecConfig `json:"indicators,omitempty"`
	Pivot      *PivotConfig           `json:"pivot,omitempty"`
	Divergence *divergence.Config     `json:"divergence,omitempty"`
	Structure  *structure.Config      `json:"structure,omitempty"`
	Channel    *channel.Config        `json:"channel,omitempty"`
	ZigZag     *zigzag.Config         `json:"zigzag,omitempty"`
}

type Series struct {
	Name   string         `json:"name"`
	Kind   indicator.Kind `json:"kind"`
	Values indicator.Line `json:"values"`
}

type Result struct {
	Symbol     string             `json:"symbol,omitempty"`
	Interval   string             `json:"interval,omitempty"`
	Candles    int                `json:"candles"`
	Trimmed    int                `json:"trimmed,omitempty"`
	Detectors  []Detector         `json:"detectors"`
	FirstTime  int64              `json:"firstTime"`
	LastTime   int64              `json:"lastTime"`
	Indicators []Series           `json:"indicators,omitempty"`
	Pivots     *pivot.Set         `json:"pivots,omitempty"`
	Divergence *divergence.Result `json:"divergence,omitempty"`
	Structure  *structure.Result  `json:"structure,omitempty"`
	Channels   []channel.Channel  `json:"channels,omitempty"`
	ZigZag     []zigzag.Point     `json:"zigzag,omitempty"`
}

type Engine struct {
	maxCandles int
	defaults   Params
}

func New(maxCandles int, defaults Params) *Engine {
	if maxCandles <= 0 {
		maxCandles = DefaultMaxCandles
	}
	return &Engine{maxCandles: maxCandles, defaults: defaults}
}

func (e *Engine) MaxCandles() int { return e.maxCandles }

// Analyze runs every requested detector over the same window. Detectors share
// only read access to the candles, so they run concurrently.
func (e *Engine) Analyze(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	detectors, err := resolveDetectors(req.Detectors)
	if err != nil {
		return nil, err
	}
	if err := market.Validate(req.Candles); err != nil {
		return nil, fmt.Errorf("validate candles: %w", err)
	}
	candles := req.Candles
	trimmed := 0
	if len(candles) > e.maxCandles {
		trimmed = len(candles) - e.maxCandles
		candles = candles[trimmed:]
		logger.Warnf("[overlay] %s %s window trimmed to %d candles (dropped %d)", req.Symbol, req.Interval, e.maxCandles, trimmed)
	}
	p := e.params(req)

	res := &Result{
		Symbol:    req.Symbol,
		Interval:  req.Interval,
		Candles:   len(candles),
		Trimmed:   trimmed,
		Detectors: detectors,
		FirstTime: candles[0].OpenTime,
		LastTime:  candles[len(candles)-1].OpenTime,
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, d := range detectors {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return e.run(d, candles, p, res)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	logger.Debugf("[overlay] %s %s candles=%d detectors=%v elapsed=%s", req.Symbol, req.Interval, len(candles), detectors, time.Since(start))
	return res, nil
}

// run writes only the result field owned by d.
func (e *Engine) run(d Detector, candles []market.Candle, p Params, res *Result) error {
	switch d {
	case DetectorIndicators:
		series, err := computeSeries(candles, p.Indicators)
		if err != nil {
			return err
		}
		res.Indicators = series
	case DetectorPivots:
		set := p.Pivot.Finder(p.ZigZag).Find(candles)
		res.Pivots = &set
	case DetectorDivergence:
		out, err := divergence.Detect(candles, p.Divergence)
		if err != nil {
			return fmt.Errorf("divergence: %w", err)
		}
		res.Divergence = &out
	case DetectorStructure:
		out := structure.Analyze(candles, p.Structure)
		res.Structure = &out
	case DetectorChannels:
		res.Channels = channel.Detect(candles, p.Channel)
	case DetectorZigZag:
		res.ZigZag = zigzag.Tracker{Config: p.ZigZag}.Points(candles)
	}
	return nil
}

func computeSeries(candles []market.Candle, cfgs []indicator.SpecConfig) ([]Series, error) {
	specs, err := indicator.ParseSpecs(cfgs)
	if err != nil {
		return nil, fmt.Errorf("indicators: %w", err)
	}
	out := make([]Series, 0, len(specs))
	for _, sp := range specs {
		out = append(out, Series{Name: sp.Name(), Kind: sp.Kind(), Values: indicator.Compute(sp, candles)})
	}
	return out, nil
}

func (e *Engine) params(req Request) Params {
	p := e.defaults
	if len(req.Indicators) > 0 {
		p.Indicators = req.Indicators
	}
	if req.Pivot != nil {
		p.Pivot = *req.Pivot
	}
	if req.Divergence != nil {
		p.Divergence = *req.Divergence
	}
	if req.Structure != nil {
		p.Structure = *req.Structure
	}
	if req.Channel != nil {
		p.Channel = *req.Channel
	}
	if req.ZigZag != nil {
		p.ZigZag = *req.ZigZag
	}
	return p
}

func resolveDetectors(names []Detector) ([]Detector, error) {
	if len(names) == 0 {
		return AllDetectors, nil
	}
	seen := make(map[Detector]bool, len(names))
	out := make([]Detector, 0, len(names))
	for _, n := range names {
		d := Detector(strings.ToLower(strings.TrimSpace(string(n))))
		if !isKnown(d) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownDetector, n)
		}
		if seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out, nil
}

func isKnown(d Detector) bool {
	for _, k := range AllDetectors {
		if k == d {
			return true
		}
	}
	return false
}
