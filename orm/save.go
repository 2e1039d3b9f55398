package orm

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/pkg/errors"

	"github.com/hatlonely/sorm/executor"
	"github.com/hatlonely/sorm/mapping"
	"github.com/hatlonely/sorm/schema"
)

type pointerKey struct {
	typ reflect.Type
	ptr uintptr
}

// saver 一次级联保存的状态，所有语句在同一个事务中执行
// visiting 是当前保存路径上的实例，saved 是本次已经写入且已离开路径的实例
// 失败时按相反顺序执行 undo，撤销回填的主键和生成的值
type saver struct {
	exec     executor.Executor
	visiting map[pointerKey]bool
	saved    map[pointerKey]bool
	undo     []func()
}

func newSaver(exec executor.Executor) *saver {
	return &saver{
		exec:     exec,
		visiting: make(map[pointerKey]bool),
		saved:    make(map[pointerKey]bool),
	}
}

func (s *saver) rollback() {
	for i := len(s.undo) - 1; i >= 0; i-- {
		s.undo[i]()
	}
	s.undo = nil
}

// assign 写字段并登记撤销动作
func (s *saver) assign(v reflect.Value, f *mapping.Field, value any) error {
	fv := f.Reflect(v)
	old := reflect.New(fv.Type()).Elem()
	old.Set(fv)
	if err := f.Set(v, value); err != nil {
		return err
	}
	s.undo = append(s.undo, func() { fv.Set(old) })
	return nil
}

// save 保存 ptr 指向的实例，ptr 为结构体指针
// 引用先于实例保存，集合在实例之后保存，不在路径上的已写入实例不再重复写入
func (s *saver) save(ctx context.Context, e *mapping.Entity, ptr reflect.Value) error {
	key := pointerKey{typ: e.Type(), ptr: ptr.Pointer()}
	// 路径上的实例即使已经写入也视为环，包括集合元素反向引用所属实例
	if s.visiting[key] {
		return errors.Wrapf(ErrReferenceCycle, "save %s", e.Table())
	}
	if s.saved[key] {
		return nil
	}
	s.visiting[key] = true
	defer delete(s.visiting, key)

	v := ptr.Elem()
	var columns []string
	var args []any
	for _, f := range e.Columns() {
		if f.Kind() == mapping.KindReference {
			value, err := s.saveReference(ctx, v, f)
			if err != nil {
				return errors.WithMessagef(err, "%s.%s", e.Table(), f.ColumnName())
			}
			columns = append(columns, f.ColumnName())
			args = append(args, value)
			continue
		}

		if f.IsZero(v) {
			if g := f.Generator(); g != nil {
				if err := s.assign(v, f, g.Generate()); err != nil {
					return errors.WithMessagef(err, "generate %s.%s", e.Table(), f.ColumnName())
				}
			} else if f.IsPrimaryKey() && f.Column().Type == schema.SQLTypeInteger {
				// 由 SQLite 分配主键
				continue
			}
		}

		value, err := f.Value(v)
		if err != nil {
			return errors.WithMessagef(err, "%s.%s", e.Table(), f.ColumnName())
		}
		columns = append(columns, f.ColumnName())
		args = append(args, value)
	}

	statement := fmt.Sprintf("INSERT OR REPLACE INTO %s DEFAULT VALUES RETURNING *", e.Table())
	if len(columns) > 0 {
		statement = fmt.Sprintf(
			"INSERT OR REPLACE INTO %s (%s) VALUES (%s) RETURNING *",
			e.Table(), strings.Join(columns, ", "), executor.Placeholders(len(columns)),
		)
	}
	records, err := s.exec.Query(ctx, statement, args...)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return errors.Errorf("insert into %s returned no row", e.Table())
	}
	s.saved[key] = true

	pk, err := e.PrimaryKey()
	if err != nil {
		// 没有主键的实体不回填，也不会有集合字段
		return nil
	}
	if value, ok := records[0].Get(pk.ColumnName()); ok {
		if err := s.assign(v, pk, value); err != nil {
			return errors.WithMessagef(err, "back-fill %s.%s", e.Table(), pk.ColumnName())
		}
	}

	for _, f := range e.Collections() {
		if err := s.saveCollection(ctx, e, v, f); err != nil {
			return errors.WithMessagef(err, "%s.%s", e.Table(), f.ColumnName())
		}
	}
	return nil
}

// saveReference 保存引用的实例，返回其主键作为外键列的值，空引用为 NULL
func (s *saver) saveReference(ctx context.Context, v reflect.Value, f *mapping.Field) (any, error) {
	ref := f.Reflect(v)
	if ref.IsNil() {
		return nil, nil
	}
	target := f.Target()
	if err := s.save(ctx, target, ref); err != nil {
		return nil, err
	}
	pk, err := target.PrimaryKey()
	if err != nil {
		return nil, err
	}
	return pk.Value(ref.Elem())
}

// saveCollection 替换实例在关联表中的全部行，关联行按集合顺序写入
func (s *saver) saveCollection(ctx context.Context, e *mapping.Entity, v reflect.Value, f *mapping.Field) error {
	link, err := e.LinkTable(f)
	if err != nil {
		return err
	}
	pk, err := e.PrimaryKey()
	if err != nil {
		return err
	}
	owner, err := pk.Value(v)
	if err != nil {
		return err
	}
	targetPK, err := f.Target().PrimaryKey()
	if err != nil {
		return err
	}

	statement := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", link.Name, schema.LinkColumnOwner)
	if err := s.exec.Exec(ctx, statement, owner); err != nil {
		return err
	}

	statement = fmt.Sprintf(
		"INSERT OR IGNORE INTO %s (%s, %s) VALUES (?, ?)",
		link.Name, schema.LinkColumnOwner, schema.LinkColumnChild,
	)
	items := f.Reflect(v)
	for i := 0; i < items.Len(); i++ {
		item := items.Index(i)
		if item.IsNil() {
			continue
		}
		if err := s.save(ctx, f.Target(), item); err != nil {
			return errors.WithMessagef(err, "item %d", i)
		}
		child, err := targetPK.Value(item.Elem())
		if err != nil {
			return err
		}
		if err := s.exec.Exec(ctx, statement, owner, child); err != nil {
			return err
		}
	}
	return nil
}
