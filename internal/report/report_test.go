package report

import (
	"bytes"
	"context"
	"math"
	"strings"
	"testing"

	"overlaycore/internal/analysis/indicator"
	"overlaycore/internal/analysis/overlay"
	"overlaycore/internal/analysis/structure"
	"overlaycore/internal/analysis/zigzag"
	"overlaycore/internal/market"
)

func sampleCandles(n int) []market.Candle {
	out := make([]market.Candle, n)
	for i := range out {
		c := 100 + 10*math.Sin(float64(i)/6)
		out[i] = market.Candle{OpenTime: 1_700_000_000_000 + int64(i)*3_600_000, Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 10, TakerBuyVolume: 6, TakerSellVolume: 4}
	}
	return out
}

func TestRender_Sections(t *testing.T) {
	res, err := overlay.New(0, overlay.DefaultParams()).Analyze(context.Background(), overlay.Request{
		Symbol:   "BTCUSDT",
		Interval: "1h",
		Candles:  sampleCandles(300),
	})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	var buf bytes.Buffer
	Render(&buf, res, Options{Rows: 5})
	out := buf.String()
	for _, want := range []string{"Summary", "BTCUSDT", "Indicators", "RSI", "Pivots", "Channels", "ZigZag"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in output:\n%s", want, out)
		}
	}
}

func TestRender_MarksBlockState(t *testing.T) {
	res := &overlay.Result{
		Candles: 3,
		Structure: &structure.Result{
			OrderBlocks:  []structure.OrderBlock{{Bias: structure.BiasBearish, Top: 2, Bottom: 1, Triggered: true}},
			BrokenBlocks: []structure.OrderBlock{{Bias: structure.BiasBullish, Internal: true, Broken: true, BrokenIndex: 42}},
		},
		ZigZag: []zigzag.Point{{Type: "high", Price: 10, BarIndex: 1, Label: "HH", Unconfirmed: true}},
	}
	var buf bytes.Buffer
	Render(&buf, res, Options{})
	out := buf.String()
	for _, want := range []string{"triggered", "broken@42", "internal", "HH?"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in output:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Divergences") {
		t.Errorf("empty sections should be skipped:\n%s", out)
	}
}

func TestRenderSnapshot(t *testing.T) {
	rep, err := indicator.ComputeAll(sampleCandles(80), indicator.Settings{Symbol: "ETHUSDT", Interval: "4h"})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	var buf bytes.Buffer
	RenderSnapshot(&buf, rep)
	out := buf.String()
	for _, want := range []string{"ETHUSDT", "rsi", "ema_long", "cvd", "warning"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in snapshot:\n%s", want, out)
		}
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "EMA200 vs price") {
			if !strings.Contains(line, " - ") || strings.Contains(line, "0.0000") {
				t.Errorf("undefined ema_long should render as '-': %q", line)
			}
		}
	}
}

func TestTail(t *testing.T) {
	if got := tail([]int{1, 2, 3, 4}, 2); len(got) != 2 || got[0] != 3 {
		t.Fatalf("unexpected tail %v", got)
	}
	if got := tail([]int{1, 2}, 0); len(got) != 2 {
		t.Fatalf("n<=0 keeps all, got %v", got)
	}
}
