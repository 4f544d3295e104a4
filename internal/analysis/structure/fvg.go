package structure

import (
	"overlaycore/internal/analysis/indicator"
	"overlaycore/internal/market"
)

// FairValueGap is the untraded zone left by a three-candle displacement.
// Index and Time refer to the middle candle.
type FairValueGap struct {
	Bias           Bias    `json:"bias"`
	Top            float64 `json:"top"`
	Bottom         float64 `json:"bottom"`
	Index          int     `json:"index"`
	Time           int64   `json:"time"`
	EndIndex       int     `json:"endIndex"`
	EndTime        int64   `json:"endTime"`
	Mitigated      bool    `json:"mitigated"`
	MitigatedIndex int     `json:"mitigatedIndex,omitempty"`
}

// FairValueGaps scans every (i−2, i−1, i) triple. A gap must exceed
// threshold×atr[i]; with a positive threshold bars without a defined ATR are
// skipped. The gap's end extends extend bars past i, clamped to the window.
func FairValueGaps(s market.Series, atr []float64, threshold float64, extend int) []FairValueGap {
	n := s.Len()
	out := []FairValueGap{}
	for i := 2; i < n; i++ {
		tol := 0.0
		if threshold > 0 {
			v, ok := indicator.At(atr, i)
			if !ok {
				continue
			}
			tol = threshold * v
		}
		var gap FairValueGap
		switch {
		case s.Lows[i]-s.Highs[i-2] > tol:
			gap = FairValueGap{Bias: BiasBullish, Top: s.Lows[i], Bottom: s.Highs[i-2]}
		case s.Lows[i-2]-s.Highs[i] > tol:
			gap = FairValueGap{Bias: BiasBearish, Top: s.Lows[i-2], Bottom: s.Highs[i]}
		default:
			continue
		}
		end := min(i+extend, n-1)
		gap.Index, gap.Time = i-1, s.Times[i-1]
		gap.EndIndex, gap.EndTime = end, s.Times[end]
		for j := i + 1; j < n; j++ {
			if (gap.Bias == BiasBullish && s.Lows[j] < gap.Bottom) || (gap.Bias == BiasBearish && s.Highs[j] > gap.Top) {
				gap.Mitigated, gap.MitigatedIndex = true, j
				break
			}
		}
		out = append(out, gap)
	}
	return out
}
