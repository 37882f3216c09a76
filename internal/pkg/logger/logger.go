package logger

import (
	"log/slog"
	"os"
	"strings"
)

// NewDefault 根据配置的日志级别构造一个输出到 stdout 的 slog.Logger。
//
// level 支持 debug / info / warn / error，无法识别时回落到 info。
func NewDefault(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}
