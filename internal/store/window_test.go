package store

import (
	"context"
	"errors"
	"testing"

	"overlaycore/internal/market"
)

func candlesFrom(start, n int) []market.Candle {
	out := make([]market.Candle, n)
	for i := range out {
		p := float64(100 + start + i)
		out[i] = market.Candle{OpenTime: int64(start+i) * 60_000, Open: p, High: p + 1, Low: p - 1, Close: p, Volume: 1}
	}
	return out
}

func TestAppendCapsAndOverwritesLastBar(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryWindowStore(5)

	n, err := s.Append(ctx, "btcusdt", "1m", candlesFrom(0, 4))
	if err != nil || n != 4 {
		t.Fatalf("append: n=%d err=%v", n, err)
	}
	update := candlesFrom(3, 4)
	update[0].Close = 103.5
	n, err = s.Append(ctx, "BTCUSDT", "1m", update)
	if err != nil || n != 5 {
		t.Fatalf("append: n=%d err=%v", n, err)
	}
	got, err := s.Window(ctx, "BTCUSDT", "1m", 0)
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	if len(got) != 5 || got[0].OpenTime != 2*60_000 || got[4].OpenTime != 6*60_000 {
		t.Fatalf("unexpected window %+v", got)
	}
	if got[1].Close != 103.5 {
		t.Fatalf("last bar should be overwritten in place, got %v", got[1].Close)
	}
}

func TestAppendRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryWindowStore(10)
	if _, err := s.Append(ctx, "ETHUSDT", "5m", candlesFrom(5, 3)); err != nil {
		t.Fatalf("append: %v", err)
	}
	_, err := s.Append(ctx, "ETHUSDT", "5m", candlesFrom(1, 2))
	var verr *market.ValidationError
	if !errors.As(err, &verr) || verr.Field != "time" {
		t.Fatalf("expected time validation error, got %v", err)
	}
	bad := candlesFrom(8, 3)
	bad[2].High = bad[2].Low - 1
	_, err = s.Append(ctx, "ETHUSDT", "5m", bad)
	if !errors.As(err, &verr) || verr.Index != 2 {
		t.Fatalf("expected validation error at 2, got %v", err)
	}
	got, _ := s.Window(ctx, "ETHUSDT", "5m", 0)
	if len(got) != 3 {
		t.Fatalf("rejected batches must not change the window, got %d", len(got))
	}
	if _, err := s.Append(ctx, "", "5m", candlesFrom(0, 1)); !errors.Is(err, ErrEmptyKey) {
		t.Fatalf("expected ErrEmptyKey, got %v", err)
	}
}

func TestWindowLimitAndCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryWindowStore(0)
	if err := s.Replace(ctx, "SOLUSDT", "1h", candlesFrom(0, 8)); err != nil {
		t.Fatalf("replace: %v", err)
	}
	got, err := s.Window(ctx, "SOLUSDT", "1h", 3)
	if err != nil || len(got) != 3 || got[0].OpenTime != 5*60_000 {
		t.Fatalf("unexpected limited window %+v err=%v", got, err)
	}
	got[0].Close = -1
	again, _ := s.Window(ctx, "SOLUSDT", "1h", 3)
	if again[0].Close == -1 {
		t.Fatalf("window must return a copy")
	}
	if _, err := s.Window(ctx, "SOLUSDT", "4h", 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if keys := s.Keys(ctx); len(keys) != 1 || keys[0].String() != "SOLUSDT@1h" {
		t.Fatalf("unexpected keys %+v", keys)
	}
}

func TestReplaceCapsWindow(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryWindowStore(4)
	if err := s.Replace(ctx, "BTCUSDT", "1m", candlesFrom(0, 10)); err != nil {
		t.Fatalf("replace: %v", err)
	}
	got, _ := s.Window(ctx, "BTCUSDT", "1m", 0)
	if len(got) != 4 || got[0].OpenTime != 6*60_000 {
		t.Fatalf("unexpected window %+v", got)
	}
}
