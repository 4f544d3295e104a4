// Package report 将 overlay 结果渲染为终端表格。
package report

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"overlaycore/internal/analysis/indicator"
	"overlaycore/internal/analysis/overlay"
	"overlaycore/internal/analysis/structure"
)

// Options 控制渲染细节。
type Options struct {
	// Rows 限制每张表最多输出的行数（取最近的记录），<=0 表示不限。
	Rows int
}

// Render 依次输出概要、指标、背离、结构、通道与 zigzag 表格，没有数据的部分跳过。
func Render(w io.Writer, res *overlay.Result, opts Options) {
	if res == nil {
		return
	}
	summary := newTable(w, "Summary")
	summary.AppendRow(table.Row{"symbol", orDash(res.Symbol)})
	summary.AppendRow(table.Row{"interval", orDash(res.Interval)})
	summary.AppendRow(table.Row{"candles", res.Candles})
	if res.Trimmed > 0 {
		summary.AppendRow(table.Row{"trimmed", res.Trimmed})
	}
	summary.AppendRow(table.Row{"from", formatTime(res.FirstTime)})
	summary.AppendRow(table.Row{"to", formatTime(res.LastTime)})
	summary.Render()

	if len(res.Indicators) > 0 {
		t := newTable(w, "Indicators")
		t.AppendHeader(table.Row{"name", "kind", "latest", "defined"})
		for _, s := range res.Indicators {
			t.AppendRow(table.Row{s.Name, s.Kind, formatFloat(indicator.LastValid(s.Values)), definedCount(s.Values)})
		}
		t.Render()
	}

	if res.Pivots != nil {
		t := newTable(w, "Pivots")
		t.AppendHeader(table.Row{"type", "index", "time", "price"})
		for _, p := range tail(mergePivots(res), opts.Rows) {
			t.AppendRow(table.Row{p.Type, p.Index, formatTime(p.Time), formatFloat(p.Price)})
		}
		t.Render()
	}

	if res.Divergence != nil && len(res.Divergence.Groups) > 0 {
		t := newTable(w, "Divergences")
		t.AppendHeader(table.Row{"type", "end", "time", "price", "indicators"})
		for _, g := range tail(res.Divergence.Groups, opts.Rows) {
			t.AppendRow(table.Row{g.Type, g.EndIndex, formatTime(g.EndTime), formatFloat(g.EndPrice), strings.Join(g.Indicators, ", ")})
		}
		t.Render()
	}

	if st := res.Structure; st != nil {
		if len(st.Events) > 0 {
			t := newTable(w, fmt.Sprintf("Structure (swing %s, internal %s)", st.SwingTrend, st.InternalTrend))
			t.AppendHeader(table.Row{"tag", "type", "scope", "index", "time", "level"})
			for _, ev := range tail(st.Events, opts.Rows) {
				t.AppendRow(table.Row{ev.Tag, ev.Type, scope(ev.Internal), ev.Index, formatTime(ev.Time), formatFloat(ev.Price)})
			}
			t.Render()
		}
		blocks := make([]structure.OrderBlock, 0, len(st.OrderBlocks)+len(st.BrokenBlocks))
		blocks = append(blocks, st.OrderBlocks...)
		blocks = append(blocks, st.BrokenBlocks...)
		if len(blocks) > 0 {
			t := newTable(w, "Order blocks")
			t.AppendHeader(table.Row{"bias", "scope", "bar", "top", "bottom", "state"})
			for _, ob := range tail(blocks, opts.Rows) {
				state := "live"
				switch {
				case ob.Broken:
					state = fmt.Sprintf("broken@%d", ob.BrokenIndex)
				case ob.Triggered:
					state = "triggered"
				}
				t.AppendRow(table.Row{ob.Bias, scope(ob.Internal), ob.BarIndex, formatFloat(ob.Top), formatFloat(ob.Bottom), state})
			}
			t.Render()
		}
		if len(st.EqualLevels) > 0 {
			t := newTable(w, "Equal highs/lows")
			t.AppendHeader(table.Row{"type", "from", "to", "price"})
			for _, eq := range tail(st.EqualLevels, opts.Rows) {
				t.AppendRow(table.Row{eq.Type, eq.StartIndex, eq.EndIndex, formatFloat(eq.Price)})
			}
			t.Render()
		}
		if len(st.FairValueGaps) > 0 {
			t := newTable(w, "Fair value gaps")
			t.AppendHeader(table.Row{"bias", "index", "top", "bottom", "mitigated"})
			for _, g := range tail(st.FairValueGaps, opts.Rows) {
				t.AppendRow(table.Row{g.Bias, g.Index, formatFloat(g.Top), formatFloat(g.Bottom), g.Mitigated})
			}
			t.Render()
		}
	}

	if len(res.Channels) > 0 {
		t := newTable(w, "Channels")
		t.AppendHeader(table.Row{"type", "high", "low", "strength", "pivots"})
		for _, ch := range res.Channels {
			t.AppendRow(table.Row{ch.Type, formatFloat(ch.High), formatFloat(ch.Low), ch.Strength, ch.Pivots})
		}
		t.Render()
	}

	if len(res.ZigZag) > 0 {
		t := newTable(w, "ZigZag")
		t.AppendHeader(table.Row{"type", "label", "index", "time", "price"})
		for _, p := range tail(res.ZigZag, opts.Rows) {
			label := p.Label
			if p.Unconfirmed {
				label += "?"
			}
			t.AppendRow(table.Row{p.Type, orDash(label), p.BarIndex, formatTime(p.Time), formatFloat(p.Price)})
		}
		t.Render()
	}
}

// RenderSnapshot 输出 ComputeAll 的指标快照，按指标名排序。
func RenderSnapshot(w io.Writer, rep indicator.Report) {
	t := newTable(w, fmt.Sprintf("Snapshot %s %s (%d candles)", orDash(rep.Symbol), orDash(rep.Interval), rep.Count))
	t.AppendHeader(table.Row{"indicator", "latest", "state", "note"})
	keys := make([]string, 0, len(rep.Values))
	for k := range rep.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := rep.Values[k]
		t.AppendRow(table.Row{k, formatLatest(v.Latest), v.State, v.Note})
	}
	if rep.CVD != nil {
		t.AppendRow(table.Row{"cvd", rep.CVD.Value.StringFixed(4), rep.CVD.PeakFlip, "normalized=" + rep.CVD.Normalized.StringFixed(4)})
	}
	for _, warn := range rep.Warnings {
		t.AppendFooter(table.Row{"warning", warn, "", ""})
	}
	t.Render()
}

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(title)
	t.SetStyle(table.StyleLight)
	t.Style().Title.Align = text.AlignLeft
	t.Style().Format.Footer = text.FormatDefault
	return t
}

func mergePivots(res *overlay.Result) []pivotRow {
	rows := make([]pivotRow, 0, len(res.Pivots.Highs)+len(res.Pivots.Lows))
	for _, p := range res.Pivots.Highs {
		rows = append(rows, pivotRow{Type: string(p.Type), Index: p.Index, Time: p.Time, Price: p.Price})
	}
	for _, p := range res.Pivots.Lows {
		rows = append(rows, pivotRow{Type: string(p.Type), Index: p.Index, Time: p.Time, Price: p.Price})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Index < rows[j].Index })
	return rows
}

type pivotRow struct {
	Type  string
	Index int
	Time  int64
	Price float64
}

func tail[T any](rows []T, n int) []T {
	if n <= 0 || len(rows) <= n {
		return rows
	}
	return rows[len(rows)-n:]
}

func definedCount(values []float64) int {
	n := 0
	for _, v := range values {
		if indicator.IsDefined(v) {
			n++
		}
	}
	return n
}

func scope(internal bool) string {
	if internal {
		return "internal"
	}
	return "swing"
}

func formatFloat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	return fmt.Sprintf("%.4f", v)
}

func formatLatest(v *float64) string {
	if v == nil {
		return "-"
	}
	return formatFloat(*v)
}

func formatTime(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04")
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
