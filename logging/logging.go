// Package logging 基于 log/slog 与 tint 提供带组件标签的结构化日志。
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/lmittmann/tint"
)

// Options 控制日志输出。
type Options struct {
	Level   string // debug/info/warn/error，默认 info
	NoColor bool
	Writer  io.Writer // 默认 os.Stderr
}

var (
	mu      sync.RWMutex
	current = slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelInfo, TimeFormat: time.Kitchen}))
)

// Setup 根据配置替换全局 logger，并同步设置 slog.Default。
func Setup(opts Options) *slog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	logger := slog.New(tint.NewHandler(w, &tint.Options{
		Level:      ParseLevel(opts.Level),
		TimeFormat: time.Kitchen,
		NoColor:    opts.NoColor,
	}))
	mu.Lock()
	current = logger
	mu.Unlock()
	slog.SetDefault(logger)
	return logger
}

// ParseLevel 将字符串级别转换为 slog.Level，无法识别时回退为 info。
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// L 返回当前全局 logger。
func L() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// For 返回带 component 属性的 logger。
func For(component string) *slog.Logger {
	return L().With("component", component)
}

func InfoWithComponent(component, msg string, args ...any) {
	For(component).Info(msg, args...)
}

func WarnWithComponent(component, msg string, args ...any) {
	For(component).Warn(msg, args...)
}

func ErrorWithComponent(component, msg string, args ...any) {
	For(component).Error(msg, args...)
}

// Discard 返回丢弃全部输出的 logger，主要用于测试。
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
