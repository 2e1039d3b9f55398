package orm

import (
	"context"
	"fmt"
	"reflect"

	"github.com/pkg/errors"

	"github.com/hatlonely/sorm/executor"
	"github.com/hatlonely/sorm/mapping"
	"github.com/hatlonely/sorm/schema"
)

type rowKey struct {
	table string
	key   string
}

// loader 一次读取操作的状态，所有查询共享同一个事务
// path 是当前解析路径上的行，按 (表, 主键) 标识
type loader struct {
	exec     executor.Executor
	maxDepth int
	depth    int
	path     map[rowKey]bool
}

func newLoader(exec executor.Executor, maxDepth int) *loader {
	return &loader{
		exec:     exec,
		maxDepth: maxDepth,
		path:     make(map[rowKey]bool),
	}
}

// query 执行查询并把每一行转换为实体，返回结构体指针
func (l *loader) query(ctx context.Context, e *mapping.Entity, statement string, args ...any) ([]reflect.Value, error) {
	records, err := l.exec.Query(ctx, statement, args...)
	if err != nil {
		return nil, err
	}
	values := make([]reflect.Value, 0, len(records))
	for _, record := range records {
		v, err := l.fromRecord(ctx, e, record)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

// byPrimaryKey 按主键读取一行，没有匹配时返回无效的 reflect.Value
func (l *loader) byPrimaryKey(ctx context.Context, e *mapping.Entity, key any) (reflect.Value, error) {
	pk, err := e.PrimaryKey()
	if err != nil {
		return reflect.Value{}, err
	}
	statement := fmt.Sprintf("SELECT * FROM %s WHERE %s = ?", e.Table(), pk.ColumnName())
	values, err := l.query(ctx, e, statement, key)
	if err != nil {
		return reflect.Value{}, err
	}
	if len(values) == 0 {
		return reflect.Value{}, nil
	}
	return values[0], nil
}

// fromRecord 由一行构造实体
// 引用列按主键递归加载，空值和悬空引用保持为 nil；结果集中未映射的列被忽略
func (l *loader) fromRecord(ctx context.Context, e *mapping.Entity, record *executor.Record) (reflect.Value, error) {
	if l.depth >= l.maxDepth {
		return reflect.Value{}, errors.Wrapf(ErrMaxDepth, "load %s at depth %d", e.Table(), l.depth)
	}
	l.depth++
	defer func() { l.depth-- }()

	var owner any
	if pk, err := e.PrimaryKey(); err == nil {
		if value, ok := record.Get(pk.ColumnName()); ok && value != nil {
			key := rowKey{table: e.Table(), key: fmt.Sprint(value)}
			if l.path[key] {
				return reflect.Value{}, errors.Wrapf(ErrReferenceCycle, "load %s %v", e.Table(), value)
			}
			l.path[key] = true
			defer delete(l.path, key)
			owner = value
		}
	}

	ptr := e.New()
	v := ptr.Elem()
	fields := record.Fields()
	values := record.Values()
	for i, name := range fields {
		f, ok := e.Field(name)
		if !ok {
			continue
		}

		if f.Kind() == mapping.KindReference {
			if values[i] == nil || values[i] == "" {
				continue
			}
			ref, err := l.byPrimaryKey(ctx, f.Target(), values[i])
			if err != nil {
				return reflect.Value{}, errors.WithMessagef(err, "%s.%s", e.Table(), name)
			}
			if ref.IsValid() {
				f.Reflect(v).Set(ref)
			}
			continue
		}

		if err := f.Set(v, values[i]); err != nil {
			return reflect.Value{}, errors.WithMessagef(err, "%s", e.Table())
		}
	}

	if owner == nil {
		return ptr, nil
	}
	for _, f := range e.Collections() {
		if err := l.loadCollection(ctx, e, v, f, owner); err != nil {
			return reflect.Value{}, errors.WithMessagef(err, "%s.%s", e.Table(), f.ColumnName())
		}
	}
	return ptr, nil
}

// loadCollection 按关联行的写入顺序加载集合
func (l *loader) loadCollection(ctx context.Context, e *mapping.Entity, v reflect.Value, f *mapping.Field, owner any) error {
	link, err := e.LinkTable(f)
	if err != nil {
		return err
	}
	statement := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = ? ORDER BY rowid",
		schema.LinkColumnChild, link.Name, schema.LinkColumnOwner,
	)
	records, err := l.exec.Query(ctx, statement, owner)
	if err != nil {
		return err
	}

	items := reflect.MakeSlice(f.Type(), 0, len(records))
	for _, record := range records {
		child, _ := record.Get(schema.LinkColumnChild)
		if child == nil {
			continue
		}
		item, err := l.byPrimaryKey(ctx, f.Target(), child)
		if err != nil {
			return err
		}
		if item.IsValid() {
			items = reflect.Append(items, item)
		}
	}
	f.Reflect(v).Set(items)
	return nil
}
