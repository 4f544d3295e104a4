package indicator

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// Line is an index-aligned indicator series. Warm-up bars hold NaN and are
// encoded as JSON null.
type Line []float64

func (l Line) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('[')
	for i, v := range l {
		if i > 0 {
			b.WriteByte(',')
		}
		if !IsDefined(v) {
			b.WriteString("null")
			continue
		}
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	b.WriteByte(']')
	return b.Bytes(), nil
}

func (l *Line) UnmarshalJSON(data []byte) error {
	var raw []*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Line, len(raw))
	for i, v := range raw {
		if v == nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = *v
	}
	*l = out
	return nil
}

// IsDefined reports whether v is a usable value (not NaN/Inf).
func IsDefined(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// At returns series[i] and whether it is defined.
func At(series []float64, i int) (float64, bool) {
	if i < 0 || i >= len(series) {
		return 0, false
	}
	v := series[i]
	return v, IsDefined(v)
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// validPeriod: period ≤ 0 or period ≥ len yields an all-NaN series.
func validPeriod(period, n int) bool {
	return period > 0 && period < n
}

// LastValid returns the most recent defined value, or NaN.
func LastValid(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		if IsDefined(series[i]) {
			return series[i]
		}
	}
	return math.NaN()
}

func firstValid(series []float64) int {
	for i, v := range series {
		if IsDefined(v) {
			return i
		}
	}
	return -1
}
