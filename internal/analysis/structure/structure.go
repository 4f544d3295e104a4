// Package structure tracks market structure over a candle window: swing and
// internal legs, BOS/CHoCH breaks, order blocks, equal highs/lows and
// fair-value gaps.
package structure

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"

	"overlaycore/internal/analysis/indicator"
	"overlaycore/internal/analysis/pivot"
	"overlaycore/internal/market"
)

type Bias string

const (
	BiasNeutral Bias = "neutral"
	BiasBullish Bias = "bullish"
	BiasBearish Bias = "bearish"
)

type Tag string

const (
	TagBOS   Tag = "BOS"
	TagCHoCH Tag = "CHoCH"
)

// Event is a confirmed structure break. Price is the broken level and
// PivotIndex the bar that set it.
type Event struct {
	Index      int     `json:"index"`
	Time       int64   `json:"time"`
	Price      float64 `json:"price"`
	Type       Bias    `json:"type"`
	Tag        Tag     `json:"tag"`
	Internal   bool    `json:"internal"`
	PivotIndex int     `json:"pivotIndex"`
	PivotTime  int64   `json:"pivotTime"`
}

type OrderBlock struct {
	ID           string  `json:"id"`
	Top          float64 `json:"top"`
	Bottom       float64 `json:"bottom"`
	Time         int64   `json:"time"`
	BarIndex     int     `json:"barIndex"`
	CreatedIndex int     `json:"createdIndex"`
	Bias         Bias    `json:"bias"`
	Internal     bool    `json:"internal"`
	Broken       bool    `json:"broken"`
	Triggered    bool    `json:"triggered"`
	BrokenIndex  int     `json:"brokenIndex,omitempty"`
	BrokenTime   int64   `json:"brokenTime,omitempty"`
}

type EqualLevel struct {
	Type       pivot.Type `json:"type"`
	Price      float64    `json:"price"`
	StartPrice float64    `json:"startPrice"`
	StartIndex int        `json:"startIndex"`
	EndIndex   int        `json:"endIndex"`
	StartTime  int64      `json:"startTime"`
	EndTime    int64      `json:"endTime"`
}

// SwingPoint is a confirmed swing pivot labelled against the previous pivot
// of the same side. The first pivot of each side has no label.
type SwingPoint struct {
	Index int        `json:"index"`
	Time  int64      `json:"time"`
	Price float64    `json:"price"`
	Type  pivot.Type `json:"type"`
	Label string     `json:"label,omitempty"`
}

type Result struct {
	Events        []Event        `json:"events"`
	OrderBlocks   []OrderBlock   `json:"orderBlocks"`
	BrokenBlocks  []OrderBlock   `json:"brokenBlocks"`
	EqualLevels   []EqualLevel   `json:"equalLevels"`
	FairValueGaps []FairValueGap `json:"fairValueGaps"`
	SwingPoints   []SwingPoint   `json:"swingPoints"`
	SwingTrend    Bias           `json:"swingTrend"`
	InternalTrend Bias           `json:"internalTrend"`
}

type level struct {
	current float64
	last    float64
	crossed bool
	index   int
	time    int64
}

func newLevel() level {
	return level{current: math.NaN(), last: math.NaN(), index: -1}
}

type tracker struct {
	legs     pivot.LegTracker
	high     level
	low      level
	trend    Bias
	internal bool
	blocks   []OrderBlock
	broken   []OrderBlock
	maxOB    int
}

func newTracker(window, maxOB int, internal bool) *tracker {
	return &tracker{
		legs:     pivot.LegTracker{Window: window},
		high:     newLevel(),
		low:      newLevel(),
		trend:    BiasNeutral,
		internal: internal,
		maxOB:    maxOB,
	}
}

type engine struct {
	cfg      Config
	candles  []market.Candle
	closes   []float64
	highs    []float64 // volatility filtered
	lows     []float64
	atr      []float64
	swing    *tracker
	internal *tracker
	equal    *tracker
	res      Result
}

// Analyze runs the swing, internal and equal-level trackers bar by bar and
// collects every structure output for the window.
func Analyze(candles []market.Candle, cfg Config) Result {
	cfg = normalize(cfg)
	s := market.Columns(candles)
	e := &engine{
		cfg:      cfg,
		candles:  candles,
		closes:   s.Closes,
		atr:      indicator.ATR(s.Highs, s.Lows, s.Closes, cfg.ATRPeriod),
		swing:    newTracker(cfg.SwingLength, cfg.SwingOBCount, false),
		internal: newTracker(cfg.InternalLength, cfg.InternalOBCount, true),
		equal:    newTracker(cfg.EqualLength, 0, false),
		res: Result{
			Events:        []Event{},
			EqualLevels:   []EqualLevel{},
			FairValueGaps: []FairValueGap{},
			SwingPoints:   []SwingPoint{},
		},
	}
	e.highs, e.lows = pivot.Filter(s, cfg.Volatility, cfg.ATRPeriod)

	for i := range candles {
		e.updatePivots(e.swing, i, false)
		e.updatePivots(e.internal, i, false)
		if *cfg.EqualEnabled {
			e.updatePivots(e.equal, i, true)
		}
		e.detectBreaks(e.internal, i)
		e.detectBreaks(e.swing, i)
		e.mitigate(e.internal, i)
		e.mitigate(e.swing, i)
	}

	e.res.OrderBlocks = append(append([]OrderBlock{}, e.swing.blocks...), e.internal.blocks...)
	e.res.BrokenBlocks = append(append([]OrderBlock{}, e.swing.broken...), e.internal.broken...)
	sort.SliceStable(e.res.BrokenBlocks, func(i, j int) bool {
		return e.res.BrokenBlocks[i].BrokenIndex < e.res.BrokenBlocks[j].BrokenIndex
	})
	e.res.SwingTrend = e.swing.trend
	e.res.InternalTrend = e.internal.trend
	if *cfg.FVGEnabled {
		e.res.FairValueGaps = FairValueGaps(s, e.atr, cfg.FVGThreshold, cfg.FVGExtend)
	}
	return e.res
}

// updatePivots confirms the pivot Window bars back when the tracker's leg
// flips and rolls the side's level forward.
func (e *engine) updatePivots(tr *tracker, i int, equal bool) {
	leg, changed := tr.legs.Update(e.highs, e.lows, i)
	if !changed {
		return
	}
	at := i - tr.legs.Window
	lv, side, price := &tr.high, pivot.High, e.highs[at]
	if leg == pivot.LegBullish {
		lv, side, price = &tr.low, pivot.Low, e.lows[at]
	}
	if equal {
		if atr, ok := indicator.At(e.atr, i); ok && lv.index >= 0 && math.Abs(lv.current-price) < e.cfg.EqualThreshold*atr {
			e.res.EqualLevels = append(e.res.EqualLevels, EqualLevel{
				Type:       side,
				Price:      price,
				StartPrice: lv.current,
				StartIndex: lv.index,
				EndIndex:   at,
				StartTime:  lv.time,
				EndTime:    e.candles[at].OpenTime,
			})
		}
	}
	lv.last = lv.current
	lv.current = price
	lv.crossed = false
	lv.index = at
	lv.time = e.candles[at].OpenTime

	if tr == e.swing {
		e.res.SwingPoints = append(e.res.SwingPoints, SwingPoint{
			Index: at,
			Time:  lv.time,
			Price: price,
			Type:  side,
			Label: swingLabel(side, lv.current, lv.last),
		})
	}
}

func swingLabel(side pivot.Type, current, last float64) string {
	if math.IsNaN(last) {
		return ""
	}
	if side == pivot.High {
		if current > last {
			return "HH"
		}
		return "LH"
	}
	if current < last {
		return "LL"
	}
	return "HL"
}

// detectBreaks emits a BOS or CHoCH when the close crosses an uncrossed level.
// Internal breaks of a level equal to the swing level are left to the swing
// tracker.
func (e *engine) detectBreaks(tr *tracker, i int) {
	if i == 0 {
		return
	}
	prev, cur := e.closes[i-1], e.closes[i]

	h := &tr.high
	if !h.crossed && prev <= h.current && cur > h.current && (!tr.internal || h.current != e.swing.high.current) {
		tag := TagBOS
		if tr.trend == BiasBearish {
			tag = TagCHoCH
		}
		e.emit(tr, h, i, BiasBullish, tag)
	}

	l := &tr.low
	if !l.crossed && prev >= l.current && cur < l.current && (!tr.internal || l.current != e.swing.low.current) {
		tag := TagBOS
		if tr.trend == BiasBullish {
			tag = TagCHoCH
		}
		e.emit(tr, l, i, BiasBearish, tag)
	}
}

func (e *engine) emit(tr *tracker, lv *level, i int, bias Bias, tag Tag) {
	e.res.Events = append(e.res.Events, Event{
		Index:      i,
		Time:       e.candles[i].OpenTime,
		Price:      lv.current,
		Type:       bias,
		Tag:        tag,
		Internal:   tr.internal,
		PivotIndex: lv.index,
		PivotTime:  lv.time,
	})
	lv.crossed = true
	tr.trend = bias
	e.storeBlock(tr, lv.index, i, bias)
}

// storeBlock picks the extreme filtered bar in [from, i] (earliest on ties):
// the lowest low for a bullish block, the highest high for a bearish one.
func (e *engine) storeBlock(tr *tracker, from, i int, bias Bias) {
	if from < 0 {
		return
	}
	k := from
	for j := from + 1; j <= i; j++ {
		if (bias == BiasBullish && e.lows[j] < e.lows[k]) || (bias == BiasBearish && e.highs[j] > e.highs[k]) {
			k = j
		}
	}
	top, bottom := math.Max(e.highs[k], e.lows[k]), math.Min(e.highs[k], e.lows[k])
	key := fmt.Sprintf("%s/%t/%d/%d", bias, tr.internal, e.candles[k].OpenTime, e.candles[i].OpenTime)
	tr.blocks = append(tr.blocks, OrderBlock{
		ID:           uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String(),
		Top:          top,
		Bottom:       bottom,
		Time:         e.candles[k].OpenTime,
		BarIndex:     k,
		CreatedIndex: i,
		Bias:         bias,
		Internal:     tr.internal,
	})
	if len(tr.blocks) > tr.maxOB {
		tr.blocks = tr.blocks[len(tr.blocks)-tr.maxOB:]
	}
}

// mitigate breaks every live block the current bar trades through and marks
// blocks whose zone price has re-entered.
func (e *engine) mitigate(tr *tracker, i int) {
	c := e.candles[i]
	up, down := c.High, c.Low
	if e.cfg.OBMitigation == MitigationClose {
		up, down = c.Close, c.Close
	}
	live := tr.blocks[:0]
	for _, ob := range tr.blocks {
		broken := (ob.Bias == BiasBearish && up > ob.Top) || (ob.Bias == BiasBullish && down < ob.Bottom)
		if broken {
			ob.Broken = true
			ob.BrokenIndex = i
			ob.BrokenTime = c.OpenTime
			tr.broken = append(tr.broken, ob)
			if len(tr.broken) > brokenHistory {
				tr.broken = tr.broken[len(tr.broken)-brokenHistory:]
			}
			continue
		}
		if i > ob.CreatedIndex && ((ob.Bias == BiasBearish && c.High >= ob.Bottom) || (ob.Bias == BiasBullish && c.Low <= ob.Top)) {
			ob.Triggered = true
		}
		live = append(live, ob)
	}
	tr.blocks = live
}
