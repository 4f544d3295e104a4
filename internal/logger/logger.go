// Package logger 提供全局分级日志：Debugf/Infof/Warnf/Errorf。
// 底层使用 log/slog 的 JSON handler，并附带 service 字段。
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

var (
	level   = new(slog.LevelVar)
	current atomic.Pointer[slog.Logger]
)

func init() {
	current.Store(newLogger(os.Stdout, "overlaycore"))
}

func newLogger(w io.Writer, service string) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h).With(slog.String("service", service))
}

// Init 重新初始化输出目标与服务名，level 接受 debug/info/warn/error。
func Init(w io.Writer, service, lvl string) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	if strings.TrimSpace(service) == "" {
		service = "overlaycore"
	}
	SetLevel(lvl)
	l := newLogger(w, service)
	current.Store(l)
	return l
}

// SetLevel 调整全局日志级别，非法值回落到 info。
func SetLevel(lvl string) {
	level.Set(ParseLevel(lvl))
}

func ParseLevel(lvl string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// L returns the underlying structured logger.
func L() *slog.Logger { return current.Load() }

func logf(lvl slog.Level, format string, args ...any) {
	l := current.Load()
	if !l.Enabled(context.Background(), lvl) {
		return
	}
	l.Log(context.Background(), lvl, fmt.Sprintf(format, args...))
}

func Debugf(format string, args ...any) { logf(slog.LevelDebug, format, args...) }
func Infof(format string, args ...any)  { logf(slog.LevelInfo, format, args...) }
func Warnf(format string, args ...any)  { logf(slog.LevelWarn, format, args...) }
func Errorf(format string, args ...any) { logf(slog.LevelError, format, args...) }
