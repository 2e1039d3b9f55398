package logger

import (
	"context"
)

// Logger 结构化日志接口，args 为交替出现的键值对
// executor 在 debug 级别记录每条语句，orm 在 info 级别记录建表
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)

	// With 返回附加了固定字段的日志器，如 component、database
	With(args ...any) Logger
	WithGroup(name string) Logger
}

var _ Logger = (*SLog)(nil)
