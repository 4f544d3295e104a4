// Package store 保存按 symbol+interval 划分的 K 线窗口，供 overlay 服务端复用。
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"overlaycore/internal/market"
)

// DefaultMaxLen 是单个窗口的默认长度上限。
const DefaultMaxLen = 5000

var (
	ErrEmptyKey = errors.New("symbol/interval 不能为空")
	ErrNotFound = errors.New("window not found")
)

// WindowStore 抽象：按 symbol+interval 读写有上限的 K 线窗口。
type WindowStore interface {
	Append(ctx context.Context, symbol, interval string, candles []market.Candle) (int, error)
	Replace(ctx context.Context, symbol, interval string, candles []market.Candle) error
	Window(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error)
	Keys(ctx context.Context) []Key
}

type Key struct {
	Symbol   string `json:"symbol"`
	Interval string `json:"interval"`
}

func (k Key) String() string { return k.Symbol + "@" + k.Interval }

// MemoryWindowStore 内存实现，每个窗口最多保留 maxLen 根。
type MemoryWindowStore struct {
	mu     sync.RWMutex
	maxLen int
	data   map[Key][]market.Candle
}

func NewMemoryWindowStore(maxLen int) *MemoryWindowStore {
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}
	return &MemoryWindowStore{maxLen: maxLen, data: make(map[Key][]market.Candle)}
}

func newKey(symbol, interval string) (Key, error) {
	k := Key{Symbol: strings.ToUpper(strings.TrimSpace(symbol)), Interval: strings.TrimSpace(interval)}
	if k.Symbol == "" || k.Interval == "" {
		return Key{}, ErrEmptyKey
	}
	return k, nil
}

// Append 追加 K 线并裁剪到上限，返回追加后的窗口长度。
// 与末尾同一开盘时间的 K 线视为增量更新，覆盖末尾；更早的时间会被拒绝。
func (s *MemoryWindowStore) Append(ctx context.Context, symbol, interval string, candles []market.Candle) (int, error) {
	k, err := newKey(symbol, interval)
	if err != nil {
		return 0, err
	}
	if err := market.Validate(candles); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.data[k]
	if n := len(cur); n > 0 && candles[0].OpenTime < cur[n-1].OpenTime {
		return n, &market.ValidationError{Index: 0, Field: "time", Reason: fmt.Sprintf("%d before window end %d", candles[0].OpenTime, cur[n-1].OpenTime)}
	}
	next := make([]market.Candle, 0, len(cur)+len(candles))
	next = append(next, cur...)
	for _, c := range candles {
		if n := len(next); n > 0 && next[n-1].OpenTime == c.OpenTime {
			next[n-1] = c
			continue
		}
		next = append(next, c)
	}
	if len(next) > s.maxLen {
		next = next[len(next)-s.maxLen:]
	}
	s.data[k] = next
	return len(next), nil
}

// Replace 全量替换窗口，超出上限时只保留最近 maxLen 根。
func (s *MemoryWindowStore) Replace(ctx context.Context, symbol, interval string, candles []market.Candle) error {
	k, err := newKey(symbol, interval)
	if err != nil {
		return err
	}
	if err := market.Validate(candles); err != nil {
		return err
	}
	if len(candles) > s.maxLen {
		candles = candles[len(candles)-s.maxLen:]
	}
	dst := make([]market.Candle, len(candles))
	copy(dst, candles)
	s.mu.Lock()
	s.data[k] = dst
	s.mu.Unlock()
	return nil
}

// Window 返回最近 limit 根 K 线的拷贝（按时间升序），limit<=0 表示全部。
func (s *MemoryWindowStore) Window(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	k, err := newKey(symbol, interval)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	cur, ok := s.data[k]
	if !ok {
		return nil, fmt.Errorf("%s: %w", k, ErrNotFound)
	}
	if limit <= 0 || limit > len(cur) {
		limit = len(cur)
	}
	out := make([]market.Candle, limit)
	copy(out, cur[len(cur)-limit:])
	return out, nil
}

// Keys 列出已有窗口，按 symbol、interval 排序。
func (s *MemoryWindowStore) Keys(ctx context.Context) []Key {
	s.mu.RLock()
	out := make([]Key, 0, len(s.data))
	for k := range s.data {
		out = append(out, k)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].Interval < out[j].Interval
	})
	return out
}
