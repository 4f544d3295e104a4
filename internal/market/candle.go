package market

import "encoding/json"

// Candle 单根 K 线。时间字段均为毫秒时间戳。
type Candle struct {
	OpenTime        int64   `json:"time"`
	CloseTime       int64   `json:"close_time,omitempty"`
	Open            float64 `json:"open"`
	High            float64 `json:"high"`
	Low             float64 `json:"low"`
	Close           float64 `json:"close"`
	Volume          float64 `json:"volume"`
	Trades          int64   `json:"trades,omitempty"`
	TakerBuyVolume  float64 `json:"taker_buy_volume,omitempty"`
	TakerSellVolume float64 `json:"taker_sell_volume,omitempty"`

	// missing 记录 JSON 解码时缺失的首个必填字段，由 Validate 报告。
	missing string
}

type candleWire struct {
	OpenTime        *int64   `json:"time"`
	CloseTime       int64    `json:"close_time"`
	Open            *float64 `json:"open"`
	High            *float64 `json:"high"`
	Low             *float64 `json:"low"`
	Close           *float64 `json:"close"`
	Volume          float64  `json:"volume"`
	Trades          int64    `json:"trades"`
	TakerBuyVolume  float64  `json:"taker_buy_volume"`
	TakerSellVolume float64  `json:"taker_sell_volume"`
}

// UnmarshalJSON keeps track of absent time/OHLC fields so a zero price is
// never mistaken for a real one.
func (c *Candle) UnmarshalJSON(data []byte) error {
	var w candleWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*c = Candle{
		CloseTime:       w.CloseTime,
		Volume:          w.Volume,
		Trades:          w.Trades,
		TakerBuyVolume:  w.TakerBuyVolume,
		TakerSellVolume: w.TakerSellVolume,
	}
	if w.OpenTime != nil {
		c.OpenTime = *w.OpenTime
	} else {
		c.missing = "time"
	}
	for _, f := range []struct {
		name string
		src  *float64
		dst  *float64
	}{
		{"open", w.Open, &c.Open},
		{"high", w.High, &c.High},
		{"low", w.Low, &c.Low},
		{"close", w.Close, &c.Close},
	} {
		if f.src != nil {
			*f.dst = *f.src
		} else if c.missing == "" {
			c.missing = f.name
		}
	}
	return nil
}

// Series holds the column-oriented view of a candle window.
type Series struct {
	Times   []int64
	Opens   []float64
	Highs   []float64
	Lows    []float64
	Closes  []float64
	Volumes []float64
}

// Columns splits candles into index-aligned columns.
func Columns(candles []Candle) Series {
	n := len(candles)
	s := Series{
		Times:   make([]int64, n),
		Opens:   make([]float64, n),
		Highs:   make([]float64, n),
		Lows:    make([]float64, n),
		Closes:  make([]float64, n),
		Volumes: make([]float64, n),
	}
	for i, c := range candles {
		s.Times[i] = c.OpenTime
		s.Opens[i] = c.Open
		s.Highs[i] = c.High
		s.Lows[i] = c.Low
		s.Closes[i] = c.Close
		s.Volumes[i] = c.Volume
	}
	return s
}

// Len returns the number of bars in the series.
func (s Series) Len() int { return len(s.Closes) }
