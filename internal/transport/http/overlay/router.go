package overlay

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"overlaycore/internal/analysis/indicator"
	analysis "overlaycore/internal/analysis/overlay"
	"overlaycore/internal/logger"
	"overlaycore/internal/market"
	"overlaycore/internal/metrics"
	"overlaycore/internal/store"

	"github.com/gin-gonic/gin"
)

// Router handles overlay API endpoints
type Router struct {
	engine   *analysis.Engine
	store    store.WindowStore
	settings indicator.Settings
	metrics  *metrics.Metrics
}

// NewRouter creates a new overlay API router
func NewRouter(engine *analysis.Engine, windows store.WindowStore, settings indicator.Settings) *Router {
	return &Router{
		engine:   engine,
		store:    windows,
		settings: settings,
	}
}

// WithMetrics enables analysis and store metrics; nil disables them
func (r *Router) WithMetrics(m *metrics.Metrics) *Router {
	r.metrics = m
	return r
}

// Register registers the overlay API routes
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.POST("/analyze", r.handleAnalyze)
	group.GET("/windows", r.handleListWindows)
	group.GET("/windows/:symbol/:interval", r.handleGetWindow)
	group.PUT("/windows/:symbol/:interval", r.handleReplaceWindow)
	group.POST("/windows/:symbol/:interval/candles", r.handleAppendCandles)
	group.GET("/windows/:symbol/:interval/csv", r.handleExportCSV)
	group.POST("/windows/:symbol/:interval/analyze", r.handleAnalyzeWindow)
	group.GET("/windows/:symbol/:interval/snapshot", r.handleSnapshot)
	group.GET("/windows/:symbol/:interval/integrity", r.handleIntegrity)
}

// CandlesRequest is the body for window writes
type CandlesRequest struct {
	Candles []market.Candle `json:"candles"`
}

// WindowResponse describes a stored window
type WindowResponse struct {
	Symbol   string          `json:"symbol"`
	Interval string          `json:"interval"`
	Size     int             `json:"size"`
	Candles  []market.Candle `json:"candles,omitempty"`
}

func (r *Router) handleAnalyze(c *gin.Context) {
	var req analysis.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}
	start := time.Now()
	res, err := r.engine.Analyze(c.Request.Context(), req)
	if err != nil {
		r.fail(c, "analyze", err)
		return
	}
	r.metrics.ObserveAnalyze(res, time.Since(start))
	c.JSON(http.StatusOK, res)
}

func (r *Router) handleListWindows(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"windows": r.store.Keys(c.Request.Context())})
}

func (r *Router) handleGetWindow(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	symbol, interval := c.Param("symbol"), c.Param("interval")
	candles, err := r.store.Window(c.Request.Context(), symbol, interval, limit)
	if err != nil {
		r.fail(c, "window", err)
		return
	}
	c.JSON(http.StatusOK, WindowResponse{
		Symbol:   strings.ToUpper(symbol),
		Interval: interval,
		Size:     len(candles),
		Candles:  candles,
	})
}

func (r *Router) handleReplaceWindow(c *gin.Context) {
	var req CandlesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}
	symbol, interval := c.Param("symbol"), c.Param("interval")
	if err := r.store.Replace(c.Request.Context(), symbol, interval, req.Candles); err != nil {
		r.fail(c, "replace", err)
		return
	}
	r.metrics.SetStoredWindows(len(r.store.Keys(c.Request.Context())))
	size := len(req.Candles)
	if size > r.engine.MaxCandles() {
		logger.Infof("[overlay-api] %s %s replaced with %d candles, analysis keeps last %d", symbol, interval, size, r.engine.MaxCandles())
	}
	c.JSON(http.StatusOK, WindowResponse{Symbol: strings.ToUpper(symbol), Interval: interval, Size: size})
}

func (r *Router) handleAppendCandles(c *gin.Context) {
	var req CandlesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}
	symbol, interval := c.Param("symbol"), c.Param("interval")
	size, err := r.store.Append(c.Request.Context(), symbol, interval, req.Candles)
	if err != nil {
		r.fail(c, "append", err)
		return
	}
	r.metrics.SetStoredWindows(len(r.store.Keys(c.Request.Context())))
	c.JSON(http.StatusOK, WindowResponse{Symbol: strings.ToUpper(symbol), Interval: interval, Size: size})
}

func (r *Router) handleExportCSV(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	candles, err := r.store.Window(c.Request.Context(), c.Param("symbol"), c.Param("interval"), limit)
	if err != nil {
		r.fail(c, "csv", err)
		return
	}
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(market.BuildCSV(candles, market.CSVOptions{})))
}

// handleAnalyzeWindow 对已存窗口做分析；请求体可选，其中的 candles 字段会被忽略。
func (r *Router) handleAnalyzeWindow(c *gin.Context) {
	var req analysis.Request
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	candles, err := r.store.Window(ctx, c.Param("symbol"), c.Param("interval"), limit)
	if err != nil {
		r.fail(c, "window", err)
		return
	}
	req.Symbol = strings.ToUpper(c.Param("symbol"))
	req.Interval = c.Param("interval")
	req.Candles = candles
	start := time.Now()
	res, err := r.engine.Analyze(ctx, req)
	if err != nil {
		r.fail(c, "analyze window", err)
		return
	}
	r.metrics.ObserveAnalyze(res, time.Since(start))
	c.JSON(http.StatusOK, res)
}

func (r *Router) handleSnapshot(c *gin.Context) {
	symbol, interval := c.Param("symbol"), c.Param("interval")
	candles, err := r.store.Window(c.Request.Context(), symbol, interval, r.engine.MaxCandles())
	if err != nil {
		r.fail(c, "snapshot", err)
		return
	}
	cfg := r.settings
	cfg.Symbol = strings.ToUpper(symbol)
	cfg.Interval = interval
	rep, err := indicator.ComputeAll(candles, cfg)
	if err != nil {
		r.fail(c, "snapshot", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshot": rep})
}

func (r *Router) handleIntegrity(c *gin.Context) {
	symbol, interval := c.Param("symbol"), c.Param("interval")
	step, err := store.ParseInterval(interval)
	if err != nil {
		r.fail(c, "integrity", err)
		return
	}
	candles, err := r.store.Window(c.Request.Context(), symbol, interval, 0)
	if err != nil {
		r.fail(c, "integrity", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"integrity": store.CheckIntegrity(candles, step)})
}

// fail 把领域错误映射为 HTTP 状态码，仅 5xx 记录日志。
func (r *Router) fail(c *gin.Context, op string, err error) {
	var verr *market.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "index": verr.Index, "field": verr.Field})
	case errors.Is(err, market.ErrNoCandles),
		errors.Is(err, analysis.ErrUnknownDetector),
		errors.Is(err, indicator.ErrInvalidSpec),
		errors.Is(err, store.ErrEmptyKey),
		errors.Is(err, store.ErrBadInterval):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		logger.Errorf("[overlay-api] %s failed: %v", op, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func queryLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit 非法"})
		return 0, false
	}
	return limit, true
}
