package executor

import (
	"context"
	"time"
)

// Executor 语句执行器
// SQLite 上的每次调用独占一个连接和事务，Tx 上的调用共享同一个事务
type Executor interface {
	Query(ctx context.Context, statement string, args ...any) ([]*Record, error)
	Exec(ctx context.Context, statement string, args ...any) error
	// WithTx 在一个事务中执行 fn，fn 返回错误或 panic 时回滚
	WithTx(ctx context.Context, fn func(Executor) error) error
}

type Options struct {
	// Path 数据库文件路径，可以是 file: URI 并带有查询参数
	// 连接不复用，内存数据库每次调用都是新的空库，不支持
	Path string `cfg:"path" validate:"required"`

	// DisableForeignKeys 关闭外键约束检查，默认开启
	DisableForeignKeys bool `cfg:"disableForeignKeys"`

	// BusyTimeout 数据库文件被锁时的等待时间
	BusyTimeout time.Duration `cfg:"busyTimeout" def:"5s"`

	// Name 组件名称，作为指标前缀和 tracer 名称
	Name string `cfg:"name" def:"sorm"`

	EnableMetrics bool `cfg:"enableMetrics"`
	EnableTracing bool `cfg:"enableTracing"`
}
