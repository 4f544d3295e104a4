package indicator

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	talib "github.com/markcheno/go-talib"

	"overlaycore/internal/market"
)

// ────────────────────────────────────────────────────────────
// Helpers
// ────────────────────────────────────────────────────────────

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f, diff=%.6f)", label, got, want, tol, math.Abs(got-want))
	}
}

func assertNaN(t *testing.T, label string, got float64) {
	t.Helper()
	if !math.IsNaN(got) {
		t.Errorf("%s: got %.6f, want NaN", label, got)
	}
}

func sineCandles(n int) []market.Candle {
	out := make([]market.Candle, n)
	for i := range out {
		c := 100 + 10*math.Sin(float64(i)/5) + float64(i%3)
		out[i] = market.Candle{
			OpenTime: int64(i) * 60_000,
			Open:     c - 0.5,
			High:     c + 1.5,
			Low:      c - 1.5,
			Close:    c,
			Volume:   100 + float64(i%7)*10,
		}
	}
	return out
}

// ────────────────────────────────────────────────────────────
// Moving averages
// ────────────────────────────────────────────────────────────

func TestEMA_SeedsFromFirstValue(t *testing.T) {
	series := [][]float64{
		{5, 6, 7, 8, 9, 10},
		{100, 90, 110, 95, 105},
		{-3, 0, 3},
	}
	for _, s := range series {
		for p := 1; p < len(s); p++ {
			ema := EMA(s, p)
			if len(ema) != len(s) {
				t.Fatalf("len(EMA)=%d, want %d", len(ema), len(s))
			}
			if ema[0] != s[0] {
				t.Errorf("EMA(%v,%d)[0]=%v, want %v", s, p, ema[0], s[0])
			}
		}
	}
}

func TestEMA_Recursion(t *testing.T) {
	// α = 2/(3+1) = 0.5
	// ema: 10, 0.5*20+0.5*10=15, 0.5*30+0.5*15=22.5
	got := EMA([]float64{10, 20, 30, 40}, 3)
	want := []float64{10, 15, 22.5, 31.25}
	for i := range want {
		assertClose(t, "EMA(3)", got[i], want[i], 1e-12)
	}
}

func TestSMA_Correctness(t *testing.T) {
	// Prices: 10, 11, 12, 13, 14, 15, 16
	// SMA(5) at 4: (10+11+12+13+14)/5 = 12.0
	// SMA(5) at 5: (11+12+13+14+15)/5 = 13.0
	// SMA(5) at 6: (12+13+14+15+16)/5 = 14.0
	prices := []float64{10, 11, 12, 13, 14, 15, 16}
	got := SMA(prices, 5)
	for i := 0; i < 4; i++ {
		assertNaN(t, "SMA warm-up", got[i])
	}
	assertClose(t, "SMA(5)@4", got[4], 12, 0)
	assertClose(t, "SMA(5)@5", got[5], 13, 0)
	assertClose(t, "SMA(5)@6", got[6], 14, 0)
}

func TestSMA_MatchesTalib(t *testing.T) {
	closes := market.Columns(sineCandles(80)).Closes
	ours := SMA(closes, 9)
	ref := talib.Sma(closes, 9)
	for i := 8; i < len(closes); i++ {
		assertClose(t, "SMA vs talib", ours[i], ref[i], 1e-9)
	}
}

func TestInvalidPeriodYieldsUndefined(t *testing.T) {
	s := []float64{1, 2, 3}
	for _, p := range []int{0, -1, 3, 10} {
		for name, out := range map[string][]float64{
			"ema": EMA(s, p),
			"sma": SMA(s, p),
			"rsi": RSI(s, p),
			"mom": Momentum(s, p),
		} {
			if len(out) != len(s) {
				t.Fatalf("%s period=%d: len=%d", name, p, len(out))
			}
			for i, v := range out {
				if !math.IsNaN(v) {
					t.Errorf("%s period=%d: [%d]=%v, want NaN", name, p, i, v)
				}
			}
		}
	}
}

// ────────────────────────────────────────────────────────────
// RSI
// ────────────────────────────────────────────────────────────

func TestRSI_Range(t *testing.T) {
	closes := market.Columns(sineCandles(200)).Closes
	rsi := RSI(closes, 14)
	for i := 0; i < 14; i++ {
		assertNaN(t, "RSI warm-up", rsi[i])
	}
	for i := 14; i < len(rsi); i++ {
		if rsi[i] < 0 || rsi[i] > 100 {
			t.Fatalf("RSI[%d]=%v out of range", i, rsi[i])
		}
	}
}

func TestRSI_HundredWithoutLosses(t *testing.T) {
	up := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	rsi := RSI(up, 3)
	for i := 3; i < len(rsi); i++ {
		if rsi[i] != 100 {
			t.Errorf("RSI[%d]=%v, want 100", i, rsi[i])
		}
	}
	withLoss := []float64{1, 2, 3, 2, 3, 4}
	rsi = RSI(withLoss, 3)
	if rsi[3] == 100 {
		t.Errorf("RSI[3] should be below 100 after a loss")
	}
}

func TestRSI_Wilder(t *testing.T) {
	// deltas: +2, -1, +1, +2
	// seed (period 3): avgGain=(2+0+1)/3=1, avgLoss=(0+1+0)/3=1/3 → RSI=100-100/(1+3)=75
	// next: avgGain=(1*2+2)/3=4/3, avgLoss=(1/3*2)/3=2/9 → rs=6 → RSI=100-100/7
	rsi := RSI([]float64{10, 12, 11, 12, 14}, 3)
	assertClose(t, "RSI seed", rsi[3], 75, 1e-9)
	assertClose(t, "RSI wilder", rsi[4], 100-100.0/7, 1e-9)
}

// ────────────────────────────────────────────────────────────
// MACD / Bollinger / ATR
// ────────────────────────────────────────────────────────────

func TestMACD_HistScale(t *testing.T) {
	closes := market.Columns(sineCandles(60)).Closes
	one := MACD(closes, 12, 26, 9, 1)
	two := MACD(closes, 12, 26, 9, 2)
	for i := range closes {
		assertClose(t, "dif", one.DIF[i], two.DIF[i], 0)
		assertClose(t, "hist x2", two.Hist[i], 2*one.Hist[i], 1e-9)
		assertClose(t, "hist", one.Hist[i], one.DIF[i]-one.DEA[i], 1e-12)
	}
	if one.DEA[0] != one.DIF[0] {
		t.Errorf("dea should seed from the first dif value")
	}
}

func TestBollinger_PopulationDeviation(t *testing.T) {
	// window {2,4,4,4,5,5,7,9}: mean 5, population σ = 2
	s := []float64{2, 4, 4, 4, 5, 5, 7, 9, 9}
	bb := Bollinger(s, 8, 2)
	assertClose(t, "middle", bb.Middle[7], 5, 1e-12)
	assertClose(t, "upper", bb.Upper[7], 9, 1e-12)
	assertClose(t, "lower", bb.Lower[7], 1, 1e-12)
	assertNaN(t, "upper warm-up", bb.Upper[6])
}

func TestATR_ConstantRangeConvergesToTwo(t *testing.T) {
	n := 30
	highs, lows, closes := make([]float64, n), make([]float64, n), make([]float64, n)
	for i := 0; i < n; i++ {
		highs[i], lows[i], closes[i] = 101, 99, 100
	}
	atr := ATR(highs, lows, closes, 14)
	for i := 0; i < 13; i++ {
		assertNaN(t, "ATR warm-up", atr[i])
	}
	for i := 13; i < n; i++ {
		if atr[i] != 2.0 {
			t.Errorf("ATR[%d]=%v, want exactly 2", i, atr[i])
		}
	}
}

func TestATR_GapUsesPreviousClose(t *testing.T) {
	tr := TrueRange([]float64{10, 15}, []float64{9, 14}, []float64{9.5, 14.5})
	assertClose(t, "tr[0]", tr[0], 1, 0)
	assertClose(t, "tr[1]", tr[1], 5.5, 0)
}

// ────────────────────────────────────────────────────────────
// Oscillators
// ────────────────────────────────────────────────────────────

func TestCCIAndMomentumMatchTalib(t *testing.T) {
	s := market.Columns(sineCandles(60))
	cci := CCI(s.Highs, s.Lows, s.Closes, 10)
	ref := talib.Cci(s.Highs, s.Lows, s.Closes, 10)
	for i := 0; i < 9; i++ {
		assertNaN(t, "CCI warm-up", cci[i])
	}
	for i := 9; i < len(cci); i++ {
		assertClose(t, "CCI", cci[i], ref[i], 1e-9)
	}
	mom := Momentum(s.Closes, 10)
	for i := 10; i < len(mom); i++ {
		assertClose(t, "Momentum", mom[i], s.Closes[i]-s.Closes[i-10], 1e-12)
	}
}

func TestOBV(t *testing.T) {
	closes := []float64{10, 11, 11, 9, 12}
	vols := []float64{5, 3, 4, 2, 7}
	got := OBV(closes, vols)
	want := []float64{0, 3, 3, 1, 8}
	for i := range want {
		assertClose(t, "OBV", got[i], want[i], 0)
	}
}

func TestCMFAndMFI(t *testing.T) {
	highs := []float64{10, 11, 12, 11}
	lows := []float64{8, 9, 10, 9}
	closes := []float64{10, 9, 11, 10}
	vols := []float64{100, 100, 100, 100}
	cmf := CMF(highs, lows, closes, vols, 2)
	// multipliers: 1, -1, 0, 0 → window(1,2) = (-100+0)/200 = -0.5
	assertNaN(t, "CMF warm-up", cmf[0])
	assertClose(t, "CMF@1", cmf[1], 0, 1e-12)
	assertClose(t, "CMF@2", cmf[2], -0.5, 1e-12)

	mfi := MFI(highs, lows, closes, vols, 2)
	// tp: 9.333, 9.667, 11, 10 → flows at 1,2 positive → 100
	assertClose(t, "MFI@2", mfi[2], 100, 0)
	// window(2,3): pos=1100, neg=1000 → 100-100/(1+1.1)
	assertClose(t, "MFI@3", mfi[3], 100-100/(1+1.1), 1e-9)
}

func TestStochasticBounds(t *testing.T) {
	s := market.Columns(sineCandles(80))
	k := Stochastic(s.Highs, s.Lows, s.Closes, 14, 3)
	for i := 0; i < 15; i++ {
		assertNaN(t, "Stoch warm-up", k[i])
	}
	for i := 15; i < len(k); i++ {
		if k[i] < 0 || k[i] > 100 {
			t.Fatalf("stoch[%d]=%v", i, k[i])
		}
	}
}

// ────────────────────────────────────────────────────────────
// Spec dispatch / JSON
// ────────────────────────────────────────────────────────────

func TestComputeDispatchCoversAllKinds(t *testing.T) {
	candles := sineCandles(60)
	kinds := []Kind{KindEMA, KindSMA, KindRSI, KindMACD, KindMACDHist, KindBollinger, KindATR,
		KindStoch, KindCCI, KindMomentum, KindOBV, KindCMF, KindMFI, KindVWMACD, KindCVD}
	for _, k := range kinds {
		sp, err := SpecConfig{Kind: k}.Spec()
		if err != nil {
			t.Fatalf("%s: %v", k, err)
		}
		if sp.Kind() != k {
			t.Errorf("kind round trip: %s != %s", sp.Kind(), k)
		}
		if out := Compute(sp, candles); len(out) != len(candles) {
			t.Errorf("%s: len=%d", k, len(out))
		}
	}
	if _, err := (SpecConfig{Kind: "wavetrend"}).Spec(); !errors.Is(err, ErrInvalidSpec) {
		t.Errorf("unknown kind: err=%v", err)
	}
}

func TestLineJSONEncodesNaNAsNull(t *testing.T) {
	raw, err := json.Marshal(Line{math.NaN(), 1.5})
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != "[null,1.5]" {
		t.Errorf("got %s", raw)
	}
	var back Line
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatal(err)
	}
	if !math.IsNaN(back[0]) || back[1] != 1.5 {
		t.Errorf("round trip got %v", back)
	}
}

func TestComputeAllReport(t *testing.T) {
	rep, err := ComputeAll(sineCandles(120), Settings{Symbol: "BTCUSDT", Interval: "1h"})
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"ema_fast", "rsi", "macd", "bollinger", "stoch_k", "atr", "obv"} {
		if _, ok := rep.Values[key]; !ok {
			t.Errorf("missing %s", key)
		}
	}
	if len(rep.Warnings) != 1 {
		t.Errorf("expected EMA200 warm-up warning, got %v", rep.Warnings)
	}
	if v := rep.Values["ema_fast"].Latest; v == nil || *v <= 0 {
		t.Errorf("ema_fast latest=%v, want a defined price", v)
	}
	if _, err := json.Marshal(rep); err != nil {
		t.Errorf("report must be serializable: %v", err)
	}
}

func TestComputeAllWarmupLatestIsNull(t *testing.T) {
	rep, err := ComputeAll(sineCandles(30), Settings{})
	if err != nil {
		t.Fatal(err)
	}
	long := rep.Values["ema_long"]
	if long.Latest != nil {
		t.Fatalf("ema_long latest=%v on 30 candles, want undefined", *long.Latest)
	}
	if long.State != "unknown" {
		t.Errorf("ema_long state=%q", long.State)
	}
	if rep.Values["ema_fast"].Latest == nil {
		t.Errorf("ema_fast should be defined on 30 candles")
	}

	raw, err := json.Marshal(rep.Values["ema_long"])
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if v, ok := decoded["latest"]; !ok || v != nil {
		t.Errorf("latest encoded as %v, want null", v)
	}
}
