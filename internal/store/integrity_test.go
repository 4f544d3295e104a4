package store

import (
	"errors"
	"testing"
)

func TestParseInterval(t *testing.T) {
	cases := map[string]int64{
		"1m":  60_000,
		"15m": 900_000,
		"4h":  14_400_000,
		"1d":  86_400_000,
		"1w":  604_800_000,
		"30s": 30_000,
	}
	for in, want := range cases {
		got, err := ParseInterval(in)
		if err != nil || got != want {
			t.Errorf("%s: got %d err=%v, want %d", in, got, err, want)
		}
	}
	for _, in := range []string{"", "m", "0m", "-1h", "1M", "abc"} {
		if _, err := ParseInterval(in); !errors.Is(err, ErrBadInterval) {
			t.Errorf("%q accepted", in)
		}
	}
}

func TestCheckIntegrity(t *testing.T) {
	// 分钟 0..9，缺 3,4 和 7
	all := candlesFrom(0, 10)
	window := append(append(append(all[:0:0], all[:3]...), all[5:7]...), all[8:]...)

	rep := CheckIntegrity(window, 60_000)
	if rep.Expected != 10 || rep.Present != 7 || rep.Complete() {
		t.Fatalf("unexpected report %+v", rep)
	}
	if len(rep.Gaps) != 2 {
		t.Fatalf("gaps=%+v", rep.Gaps)
	}
	if g := rep.Gaps[0]; g.From != 3*60_000 || g.To != 4*60_000 || g.Count != 2 {
		t.Errorf("first gap %+v", g)
	}
	if g := rep.Gaps[1]; g.From != 7*60_000 || g.To != 7*60_000 || g.Count != 1 {
		t.Errorf("second gap %+v", g)
	}

	if rep := CheckIntegrity(all, 60_000); !rep.Complete() || rep.Expected != 10 {
		t.Errorf("complete window reported %+v", rep)
	}
	if rep := CheckIntegrity(nil, 60_000); rep.Expected != 0 || !rep.Complete() {
		t.Errorf("empty window reported %+v", rep)
	}
}
