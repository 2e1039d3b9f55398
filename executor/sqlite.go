package executor

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hatlonely/sorm/log"
)

var ErrMemoryDatabase = errors.New("in-memory database is not supported")

// SQLite 基于数据库文件的执行器
// 连接不复用，每次调用打开新连接，释放时真正关闭
type SQLite struct {
	db       *sql.DB
	path     string
	observer *observer
}

type Option func(*sqliteConfig)

type sqliteConfig struct {
	logger     log.Logger
	registerer prometheus.Registerer
}

func WithLogger(logger log.Logger) Option {
	return func(c *sqliteConfig) {
		c.logger = logger
	}
}

// WithRegisterer 指标注册位置，默认 prometheus.DefaultRegisterer
func WithRegisterer(registerer prometheus.Registerer) Option {
	return func(c *sqliteConfig) {
		c.registerer = registerer
	}
}

func NewSQLiteWithOptions(options *Options, opts ...Option) (*SQLite, error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}
	if options.Path == "" {
		return nil, errors.New("database path is required")
	}
	if isMemory(options.Path) {
		return nil, errors.Wrapf(ErrMemoryDatabase, "path %s", options.Path)
	}

	config := &sqliteConfig{
		logger:     log.Default(),
		registerer: prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(config)
	}

	name := options.Name
	if name == "" {
		name = "sorm"
	}

	db, err := sql.Open("sqlite3", dsn(options))
	if err != nil {
		return nil, errors.Wrapf(err, "open database %s failed", options.Path)
	}
	db.SetMaxIdleConns(0)

	obs := &observer{
		name:   name,
		logger: config.logger.With("component", "executor", "database", options.Path),
	}
	if options.EnableMetrics {
		metrics, err := NewMetrics(name, config.registerer)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		obs.metrics = metrics
	}
	if options.EnableTracing {
		obs.tracer = newTracer(name)
	}

	return &SQLite{
		db:       db,
		path:     options.Path,
		observer: obs,
	}, nil
}

// dsn 把驱动参数合并到路径已有的查询参数中，路径上显式给出的参数优先
func dsn(options *Options) string {
	base, query, _ := strings.Cut(options.Path, "?")
	params, err := url.ParseQuery(query)
	if err != nil {
		params = url.Values{}
	}
	if !params.Has("_foreign_keys") && !params.Has("_fk") {
		if options.DisableForeignKeys {
			params.Set("_foreign_keys", "0")
		} else {
			params.Set("_foreign_keys", "1")
		}
	}
	if options.BusyTimeout > 0 && !params.Has("_busy_timeout") && !params.Has("_timeout") {
		params.Set("_busy_timeout", fmt.Sprintf("%d", options.BusyTimeout.Milliseconds()))
	}
	return base + "?" + params.Encode()
}

func isMemory(path string) bool {
	base, query, _ := strings.Cut(path, "?")
	if base == ":memory:" || strings.HasPrefix(base, "file::memory:") {
		return true
	}
	params, err := url.ParseQuery(query)
	return err == nil && params.Get("mode") == "memory"
}

func (s *SQLite) Path() string {
	return s.path
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Query(ctx context.Context, statement string, args ...any) ([]*Record, error) {
	var records []*Record
	err := s.WithTx(ctx, func(tx Executor) error {
		var err error
		records, err = tx.Query(ctx, statement, args...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *SQLite) Exec(ctx context.Context, statement string, args ...any) error {
	return s.WithTx(ctx, func(tx Executor) error {
		return tx.Exec(ctx, statement, args...)
	})
}

// WithTx 打开连接并开启事务，fn 中的所有语句共享该事务
// fn 返回错误或 panic 时回滚，panic 会继续抛出；连接在任何路径上都会关闭
func (s *SQLite) WithTx(ctx context.Context, fn func(Executor) error) (err error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return errors.Wrapf(err, "connect %s failed", s.path)
	}
	defer conn.Close()

	sqlTx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction failed")
	}
	tx := &Tx{tx: sqlTx, observer: s.observer}

	defer func() {
		if r := recover(); r != nil {
			_ = sqlTx.Rollback()
			s.observer.logger.WarnContext(ctx, "rollback", "panic", fmt.Sprint(r))
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			s.observer.logger.ErrorContext(ctx, "rollback failed", "error", rbErr.Error())
		}
		s.observer.logger.DebugContext(ctx, "rollback", "error", err.Error())
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return errors.Wrap(err, "commit failed")
	}
	return nil
}

// Tx 事务内执行器
type Tx struct {
	tx       *sql.Tx
	observer *observer
}

func (t *Tx) Query(ctx context.Context, statement string, args ...any) ([]*Record, error) {
	var records []*Record
	err := t.observer.observe(ctx, "query", statement, args, func(ctx context.Context) error {
		rows, err := t.tx.QueryContext(ctx, statement, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		records, err = scanRows(rows)
		return err
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "query [%s]", statement)
	}
	return records, nil
}

func (t *Tx) Exec(ctx context.Context, statement string, args ...any) error {
	err := t.observer.observe(ctx, "exec", statement, args, func(ctx context.Context) error {
		_, err := t.tx.ExecContext(ctx, statement, args...)
		return err
	})
	if err != nil {
		return errors.WithMessagef(err, "exec [%s]", statement)
	}
	return nil
}

// WithTx 嵌套调用加入当前事务
func (t *Tx) WithTx(ctx context.Context, fn func(Executor) error) error {
	return fn(t)
}

// scanRows 读取全部结果行，TEXT 列统一转成 string
func scanRows(rows *sql.Rows) ([]*Record, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	var records []*Record
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok && columnTypes[i].DatabaseTypeName() == "TEXT" {
				values[i] = string(b)
			}
		}
		records = append(records, &Record{fields: columns, values: values})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
