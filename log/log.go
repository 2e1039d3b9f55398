package log

import (
	"github.com/hatlonely/sorm/log/logger"
	"github.com/hatlonely/sorm/log/writer"
)

type Logger = logger.Logger

type Options = logger.SLogOptions

var defaultLogger Logger

func init() {
	// 默认向终端输出 text 格式日志
	slog, err := logger.NewSLogWithOptions(&logger.SLogOptions{
		Level:  "info",
		Format: "text",
	})
	if err != nil {
		panic("failed to initialize default logger: " + err.Error())
	}
	defaultLogger = slog
}

func Default() Logger {
	return defaultLogger
}

// NewLogWithOptions 创建日志器，options 为 nil 时返回默认日志器
func NewLogWithOptions(options *Options) (Logger, error) {
	if options == nil {
		return Default(), nil
	}
	return logger.NewSLogWithOptions(options)
}

// Discard 丢弃所有输出的日志器
func Discard() Logger {
	l, _ := logger.NewSLogWithOptions(&logger.SLogOptions{
		Level:  "error",
		Output: writer.Options{Type: "discard"},
	})
	return l
}
