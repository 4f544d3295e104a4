package scheduler

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"overlaycore/internal/market"
	"overlaycore/internal/metrics"
	"overlaycore/internal/store"
)

func minuteCandles(minutes ...int64) []market.Candle {
	out := make([]market.Candle, len(minutes))
	for i, m := range minutes {
		out[i] = market.Candle{OpenTime: m * 60_000, Open: 10, High: 11, Low: 9, Close: 10, Volume: 1}
	}
	return out
}

func TestRunNow(t *testing.T) {
	ctx := context.Background()
	windows := store.NewMemoryWindowStore(0)
	if err := windows.Replace(ctx, "BTCUSDT", "1m", minuteCandles(1, 2, 3, 4)); err != nil {
		t.Fatal(err)
	}
	if err := windows.Replace(ctx, "ETHUSDT", "1m", minuteCandles(1, 2, 5, 6, 9)); err != nil {
		t.Fatal(err)
	}
	if err := windows.Replace(ctx, "SOLUSDT", "tick", minuteCandles(1, 7)); err != nil {
		t.Fatal(err)
	}
	m := metrics.NewMetrics()
	a := NewAuditor(ctx, windows, m)

	findings := a.RunNow()
	if len(findings) != 1 || findings[0].Key.Symbol != "ETHUSDT" {
		t.Fatalf("findings=%+v", findings)
	}
	rep := findings[0].Report
	if len(rep.Gaps) != 2 || rep.Gaps[0].Count != 2 || rep.Gaps[1].Count != 2 {
		t.Errorf("gaps=%+v", rep.Gaps)
	}
	if got := testutil.ToFloat64(m.StoredWindows); got != 3 {
		t.Errorf("stored windows gauge=%v", got)
	}
}

func TestRegister(t *testing.T) {
	a := NewAuditor(context.Background(), store.NewMemoryWindowStore(0), nil)
	for _, spec := range []string{"", "off", "OFF"} {
		if ok, err := a.Register(spec); ok || err != nil {
			t.Errorf("%q: ok=%v err=%v", spec, ok, err)
		}
	}
	if ok, err := a.Register("@every 5m"); !ok || err != nil {
		t.Errorf("valid spec: ok=%v err=%v", ok, err)
	}
	if _, err := a.Register("every now and then"); err == nil {
		t.Errorf("invalid spec accepted")
	}
	if n := len(a.Cron.Entries()); n != 1 {
		t.Errorf("entries=%d", n)
	}
	if got := a.RunNow(); len(got) != 0 {
		t.Errorf("empty store findings=%+v", got)
	}
}
