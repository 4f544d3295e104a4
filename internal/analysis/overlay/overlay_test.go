package overlay

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"overlaycore/internal/analysis/indicator"
	"overlaycore/internal/analysis/zigzag"
	"overlaycore/internal/market"
)

func waveCandles(n int) []market.Candle {
	out := make([]market.Candle, n)
	for i := range out {
		c := 100 + 12*math.Sin(float64(i)/8) + 3*math.Sin(float64(i)/2.5)
		out[i] = market.Candle{
			OpenTime:        int64(i+1) * 60_000,
			Open:            c - 0.3,
			High:            c + 1.2,
			Low:             c - 1.2,
			Close:           c,
			Volume:          50 + float64(i%9)*5,
			TakerBuyVolume:  30,
			TakerSellVolume: 20 + float64(i%9)*5,
		}
	}
	return out
}

func TestAnalyze_AllDetectors(t *testing.T) {
	eng := New(0, DefaultParams())
	res, err := eng.Analyze(context.Background(), Request{Symbol: "BTCUSDT", Interval: "1h", Candles: waveCandles(400)})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if res.Candles != 400 || res.Trimmed != 0 {
		t.Fatalf("unexpected window %d/%d", res.Candles, res.Trimmed)
	}
	if len(res.Indicators) != len(indicator.DefaultOscillators()) {
		t.Fatalf("expected default oscillator series, got %d", len(res.Indicators))
	}
	for _, s := range res.Indicators {
		if len(s.Values) != 400 {
			t.Fatalf("series %s not index-aligned: %d", s.Name, len(s.Values))
		}
	}
	if res.Pivots == nil || res.Divergence == nil || res.Structure == nil {
		t.Fatalf("missing detector output: %+v", res)
	}
	if len(res.Channels) == 0 || len(res.ZigZag) == 0 {
		t.Fatalf("expected channels and zigzag points, got %d/%d", len(res.Channels), len(res.ZigZag))
	}
	if _, err := json.Marshal(res); err != nil {
		t.Fatalf("result should serialize: %v", err)
	}
}

func TestAnalyze_SelectedDetectorsOnly(t *testing.T) {
	eng := New(0, DefaultParams())
	res, err := eng.Analyze(context.Background(), Request{
		Candles:   waveCandles(120),
		Detectors: []Detector{"ZigZag", DetectorZigZag},
	})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if res.Indicators != nil || res.Pivots != nil || res.Divergence != nil || res.Structure != nil || res.Channels != nil {
		t.Fatalf("unrequested detectors ran: %+v", res)
	}
	if len(res.ZigZag) == 0 {
		t.Fatalf("expected zigzag output")
	}
}

func TestAnalyze_Errors(t *testing.T) {
	eng := New(0, DefaultParams())
	ctx := context.Background()

	if _, err := eng.Analyze(ctx, Request{}); !errors.Is(err, market.ErrNoCandles) {
		t.Fatalf("expected ErrNoCandles, got %v", err)
	}

	bad := waveCandles(20)
	bad[7].OpenTime = bad[6].OpenTime
	_, err := eng.Analyze(ctx, Request{Candles: bad})
	var verr *market.ValidationError
	if !errors.As(err, &verr) || verr.Index != 7 || verr.Field != "time" {
		t.Fatalf("expected validation error at 7, got %v", err)
	}

	if _, err := eng.Analyze(ctx, Request{Candles: waveCandles(20), Detectors: []Detector{"heatmap"}}); !errors.Is(err, ErrUnknownDetector) {
		t.Fatalf("expected ErrUnknownDetector, got %v", err)
	}

	_, err = eng.Analyze(ctx, Request{
		Candles:    waveCandles(20),
		Detectors:  []Detector{DetectorIndicators},
		Indicators: []indicator.SpecConfig{{Kind: "nope"}},
	})
	if err == nil {
		t.Fatalf("expected error for unknown indicator kind")
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := eng.Analyze(cancelled, Request{Candles: waveCandles(20)}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestAnalyze_TrimsToMaxCandles(t *testing.T) {
	eng := New(100, DefaultParams())
	candles := waveCandles(150)
	res, err := eng.Analyze(context.Background(), Request{Candles: candles, Detectors: []Detector{DetectorIndicators}})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if res.Candles != 100 || res.Trimmed != 50 || res.FirstTime != candles[50].OpenTime || res.LastTime != candles[149].OpenTime {
		t.Fatalf("unexpected trimmed window %+v", res)
	}
	if len(res.Indicators[0].Values) != 100 {
		t.Fatalf("series should cover the trimmed window, got %d", len(res.Indicators[0].Values))
	}
}

func TestAnalyze_ZigZagPivotMode(t *testing.T) {
	eng := New(0, DefaultParams())
	candles := waveCandles(300)
	zz := zigzag.Config{Depth: 6, Deviation: 3, Backstep: 2}
	res, err := eng.Analyze(context.Background(), Request{
		Candles:   candles,
		Detectors: []Detector{DetectorPivots},
		Pivot:     &PivotConfig{Mode: PivotZigZag},
		ZigZag:    &zz,
	})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	want := zigzag.Tracker{Config: zz, MaxKeep: DefaultPivotConfig().MaxKeep}.Find(candles)
	if len(res.Pivots.Highs) != len(want.Highs) || len(res.Pivots.Lows) != len(want.Lows) {
		t.Fatalf("pivot set differs from zigzag finder: %+v vs %+v", res.Pivots, want)
	}
}
