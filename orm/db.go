package orm

import (
	"context"
	"io"

	"github.com/pkg/errors"

	"github.com/hatlonely/sorm/cfg"
	"github.com/hatlonely/sorm/executor"
	"github.com/hatlonely/sorm/log"
	"github.com/hatlonely/sorm/mapping"
)

type Options struct {
	Database executor.Options `cfg:"database"`

	// Logger 为空时使用默认日志器
	Logger *log.Options `cfg:"logger"`

	// MaxDepth 加载时引用解析的最大嵌套层数
	MaxDepth int `cfg:"maxDepth" def:"32" validate:"gte=1"`
}

// DB 数据库句柄，持有执行器、实体注册表和日志器
// 实体和数据库文件的绑定关系只存在于句柄上，没有进程级的全局状态
type DB struct {
	executor *executor.SQLite
	registry *mapping.Registry
	logger   log.Logger
	maxDepth int

	// logCloser 由 Options.Logger 创建的日志器，默认日志器不归 DB 所有
	logCloser io.Closer
}

// Open 创建数据库句柄，opts 在内置的 WithLogger 之后应用
func Open(options *Options, opts ...executor.Option) (*DB, error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}
	if err := cfg.SetDefaults(options); err != nil {
		return nil, errors.Wrap(err, "set default options failed")
	}
	if err := cfg.Validate(options); err != nil {
		return nil, errors.Wrap(err, "invalid options")
	}

	logger, err := log.NewLogWithOptions(options.Logger)
	if err != nil {
		return nil, errors.WithMessage(err, "create logger failed")
	}
	var logCloser io.Closer
	if options.Logger != nil {
		logCloser, _ = logger.(io.Closer)
	}

	exec, err := executor.NewSQLiteWithOptions(
		&options.Database,
		append([]executor.Option{executor.WithLogger(logger)}, opts...)...,
	)
	if err != nil {
		if logCloser != nil {
			_ = logCloser.Close()
		}
		return nil, err
	}

	return &DB{
		executor:  exec,
		registry:  mapping.NewRegistry(),
		logger:    logger.With("component", "orm", "database", options.Database.Path),
		maxDepth:  options.MaxDepth,
		logCloser: logCloser,
	}, nil
}

// OpenFile 使用默认选项打开数据库文件
func OpenFile(path string) (*DB, error) {
	return Open(&Options{Database: executor.Options{Path: path}})
}

// OpenConfig 从配置文件加载选项，格式由文件后缀决定
func OpenConfig(filename string, opts ...executor.Option) (*DB, error) {
	var options Options
	if err := cfg.Load(filename, &options); err != nil {
		return nil, errors.Wrapf(err, "load config %s failed", filename)
	}
	return Open(&options, opts...)
}

// Close 关闭执行器和由 Options.Logger 创建的日志输出
func (db *DB) Close() error {
	err := db.executor.Close()
	if db.logCloser != nil {
		if cerr := db.logCloser.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "close logger failed")
		}
	}
	return err
}

func (db *DB) Executor() executor.Executor {
	return db.executor
}

func (db *DB) Registry() *mapping.Registry {
	return db.registry
}

// Register 注册实体类型，可以传结构体值或指针
func (db *DB) Register(entities ...any) error {
	for _, v := range entities {
		if _, err := db.registry.Register(v); err != nil {
			return err
		}
	}
	return nil
}

// Initialize 注册实体并建表，包括被引用的表和一对多关联表
// entities 为空时为句柄上已注册的所有实体建表
func (db *DB) Initialize(ctx context.Context, entities ...any) error {
	var targets []*mapping.Entity
	for _, v := range entities {
		e, err := db.registry.Register(v)
		if err != nil {
			return err
		}
		targets = append(targets, e)
	}
	if len(entities) == 0 {
		targets = db.registry.Entities()
	}

	return db.executor.WithTx(ctx, func(tx executor.Executor) error {
		created := make(map[string]bool)
		for _, e := range targets {
			if err := db.createTables(ctx, tx, e, created); err != nil {
				return err
			}
		}
		return nil
	})
}

// createTables 先建被引用的表，再建实体表，最后建集合子表和关联表
func (db *DB) createTables(ctx context.Context, exec executor.Executor, e *mapping.Entity, created map[string]bool) error {
	if created[e.Table()] {
		return nil
	}
	created[e.Table()] = true

	for _, f := range e.References() {
		if err := db.createTables(ctx, exec, f.Target(), created); err != nil {
			return err
		}
	}

	statement, err := e.TableDefinition().CreateStatement()
	if err != nil {
		return err
	}
	if err := exec.Exec(ctx, statement); err != nil {
		return errors.WithMessagef(err, "create table %s", e.Table())
	}
	db.logger.InfoContext(ctx, "table created", "table", e.Table())

	for _, f := range e.Collections() {
		if err := db.createTables(ctx, exec, f.Target(), created); err != nil {
			return err
		}
		link, err := e.LinkTable(f)
		if err != nil {
			return err
		}
		if created[link.Name] {
			continue
		}
		created[link.Name] = true

		statement, err := link.CreateStatement()
		if err != nil {
			return err
		}
		if err := exec.Exec(ctx, statement); err != nil {
			return errors.WithMessagef(err, "create link table %s", link.Name)
		}
		db.logger.InfoContext(ctx, "table created", "table", link.Name)
	}

	return nil
}
