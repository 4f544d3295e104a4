// Package scheduler 定时巡检内存窗口：检查 K 线缺口并刷新窗口数量指标。
package scheduler

import (
	"context"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"overlaycore/internal/logger"
	"overlaycore/internal/metrics"
	"overlaycore/internal/store"
)

// Finding 是一次巡检中发现缺口的窗口。
type Finding struct {
	Key    store.Key
	Report store.IntegrityReport
}

// Auditor manages the window audit cron job.
type Auditor struct {
	Cron    *cron.Cron
	Store   store.WindowStore
	Metrics *metrics.Metrics
	Ctx     context.Context
}

func NewAuditor(ctx context.Context, windows store.WindowStore, m *metrics.Metrics) *Auditor {
	return &Auditor{
		Cron:    cron.New(),
		Store:   windows,
		Metrics: m,
		Ctx:     ctx,
	}
}

// Register 按 spec 注册巡检任务；spec 为 "off" 或空时不注册，返回 false。
func (a *Auditor) Register(spec string) (bool, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" || strings.EqualFold(spec, "off") {
		return false, nil
	}
	if _, err := a.Cron.AddFunc(spec, func() { a.RunNow() }); err != nil {
		return false, fmt.Errorf("register window audit %q: %w", spec, err)
	}
	return true, nil
}

func (a *Auditor) Start() {
	a.Cron.Start()
	logger.Infof("[audit] scheduler started")
}

// Stop waits for a running audit to finish.
func (a *Auditor) Stop() {
	<-a.Cron.Stop().Done()
	logger.Infof("[audit] scheduler stopped")
}

// RunNow 立即巡检所有窗口，返回存在缺口的窗口。周期无法解析的窗口跳过。
func (a *Auditor) RunNow() []Finding {
	keys := a.Store.Keys(a.Ctx)
	a.Metrics.SetStoredWindows(len(keys))
	var findings []Finding
	for _, k := range keys {
		if err := a.Ctx.Err(); err != nil {
			return findings
		}
		step, err := store.ParseInterval(k.Interval)
		if err != nil {
			logger.Debugf("[audit] %s skipped: %v", k, err)
			continue
		}
		candles, err := a.Store.Window(a.Ctx, k.Symbol, k.Interval, 0)
		if err != nil {
			logger.Warnf("[audit] %s read failed: %v", k, err)
			continue
		}
		rep := store.CheckIntegrity(candles, step)
		if rep.Complete() {
			continue
		}
		missing := int64(0)
		for _, g := range rep.Gaps {
			missing += g.Count
		}
		logger.Warnf("[audit] %s missing %d candles in %d gaps (present=%d expected=%d)", k, missing, len(rep.Gaps), rep.Present, rep.Expected)
		findings = append(findings, Finding{Key: k, Report: rep})
	}
	return findings
}
