package writer

import (
	"fmt"
	"io"
	"os"
)

// Writer 日志输出器接口
type Writer interface {
	io.Writer
	io.Closer
}

// Options 输出目标配置
type Options struct {
	// 输出类型：console, file, discard
	Type string `cfg:"type" validate:"omitempty,oneof=console file discard"`
	// 控制台输出目标：stdout, stderr
	Target string `cfg:"target"`
	// 文件输出配置，Type 为 file 时生效
	File FileWriterOptions `cfg:"file"`
}

// NewWriterWithOptions 根据配置创建输出器，未指定类型时输出到 stdout
func NewWriterWithOptions(options *Options) (Writer, error) {
	if options == nil {
		return NewConsoleWriter(nil), nil
	}

	switch options.Type {
	case "", "console":
		return NewConsoleWriter(&ConsoleWriterOptions{Target: options.Target}), nil
	case "file":
		return NewFileWriterWithOptions(&options.File)
	case "discard":
		return discardWriter{}, nil
	default:
		return nil, fmt.Errorf("unsupported writer type: %s", options.Type)
	}
}

// ConsoleWriterOptions 控制台输出配置
type ConsoleWriterOptions struct {
	// 输出目标：stdout, stderr
	Target string `cfg:"target"`
}

// ConsoleWriter 控制台输出器
type ConsoleWriter struct {
	writer io.Writer
}

func NewConsoleWriter(options *ConsoleWriterOptions) *ConsoleWriter {
	if options != nil && options.Target == "stderr" {
		return &ConsoleWriter{writer: os.Stderr}
	}
	return &ConsoleWriter{writer: os.Stdout}
}

func (c *ConsoleWriter) Write(p []byte) (int, error) {
	return c.writer.Write(p)
}

// Close 控制台不需要关闭
func (c *ConsoleWriter) Close() error {
	return nil
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
func (discardWriter) Close() error                { return nil }
