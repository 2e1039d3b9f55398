package orm

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/pkg/errors"

	"github.com/hatlonely/sorm/executor"
	"github.com/hatlonely/sorm/mapping"
	"github.com/hatlonely/sorm/query"
	"github.com/hatlonely/sorm/schema"
)

// Repository 一个实体类型的读写入口，T 必须是结构体
type Repository[T any] struct {
	db     *DB
	entity *mapping.Entity
}

// NewRepository 在 db 上注册 T 并返回对应的 Repository
func NewRepository[T any](db *DB) (*Repository[T], error) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.Kind() != reflect.Struct {
		return nil, errors.Wrapf(ErrNotStruct, "repository type %v", t)
	}
	e, err := db.registry.Register(t)
	if err != nil {
		return nil, errors.WithMessagef(err, "register %v", t)
	}
	return &Repository[T]{db: db, entity: e}, nil
}

func (r *Repository[T]) Entity() *mapping.Entity {
	return r.entity
}

// CreateTable 建表，同时建被引用的表、集合子表和关联表，重复调用无副作用
func (r *Repository[T]) CreateTable(ctx context.Context) error {
	return r.db.executor.WithTx(ctx, func(tx executor.Executor) error {
		return r.db.createTables(ctx, tx, r.entity, make(map[string]bool))
	})
}

// Save 按主键插入或替换，整个级联在一个事务中完成
// 成功后主键回填到 v；失败时事务回滚，v 及其引用上回填和生成的值也被还原
func (r *Repository[T]) Save(ctx context.Context, v *T) error {
	if v == nil {
		return errors.Wrapf(ErrNilEntity, "save %s", r.entity.Table())
	}

	s := newSaver(nil)
	err := r.db.executor.WithTx(ctx, func(tx executor.Executor) error {
		s.exec = tx
		return s.save(ctx, r.entity, reflect.ValueOf(v))
	})
	if err != nil {
		s.rollback()
		return err
	}
	return nil
}

// Delete 按主键删除实例及其关联行
func (r *Repository[T]) Delete(ctx context.Context, v *T) error {
	if v == nil {
		return errors.Wrapf(ErrNilEntity, "delete %s", r.entity.Table())
	}
	pk, err := r.entity.PrimaryKey()
	if err != nil {
		return err
	}
	key, err := pk.Value(reflect.ValueOf(v).Elem())
	if err != nil {
		return err
	}

	return r.db.executor.WithTx(ctx, func(tx executor.Executor) error {
		for _, f := range r.entity.Collections() {
			link, err := r.entity.LinkTable(f)
			if err != nil {
				return err
			}
			statement := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", link.Name, schema.LinkColumnOwner)
			if err := tx.Exec(ctx, statement, key); err != nil {
				return err
			}
		}
		statement := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", r.entity.Table(), pk.ColumnName())
		return tx.Exec(ctx, statement, key)
	})
}

// All 读取所有行
func (r *Repository[T]) All(ctx context.Context) ([]*T, error) {
	return r.query(ctx, fmt.Sprintf("SELECT * FROM %s", r.entity.Table()))
}

// Where 按等值条件查询，条件之间为 AND，参数顺序与条件顺序一致
// 没有条件时返回 ErrEmptyPredicate
func (r *Repository[T]) Where(ctx context.Context, terms ...*query.TermQuery) ([]*T, error) {
	if len(terms) == 0 {
		return nil, errors.Wrapf(ErrEmptyPredicate, "where on %s", r.entity.Table())
	}

	conditions := make([]string, 0, len(terms))
	var args []any
	for _, term := range terms {
		if term == nil {
			return nil, errors.Wrapf(ErrEmptyPredicate, "where on %s", r.entity.Table())
		}
		normalized, err := r.normalize(term)
		if err != nil {
			return nil, err
		}
		condition, a, err := normalized.ToSQL()
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, condition)
		args = append(args, a...)
	}

	statement := fmt.Sprintf("SELECT * FROM %s WHERE %s", r.entity.Table(), strings.Join(conditions, " AND "))
	return r.query(ctx, statement, args...)
}

// Find 按任意查询树查询
func (r *Repository[T]) Find(ctx context.Context, q query.Query) ([]*T, error) {
	if q == nil {
		return nil, errors.Wrapf(ErrEmptyPredicate, "find on %s", r.entity.Table())
	}
	for _, name := range query.Fields(q) {
		if _, ok := r.entity.Field(name); !ok {
			return nil, errors.Wrapf(ErrUnknownColumn, "%s.%s", r.entity.Table(), name)
		}
	}
	normalized, err := r.normalize(q)
	if err != nil {
		return nil, err
	}
	condition, args, err := normalized.ToSQL()
	if err != nil {
		return nil, err
	}
	return r.query(ctx, fmt.Sprintf("SELECT * FROM %s WHERE %s", r.entity.Table(), condition), args...)
}

// ByPrimaryKey 按主键查询，没有匹配时返回空列表
func (r *Repository[T]) ByPrimaryKey(ctx context.Context, key any) ([]*T, error) {
	pk, err := r.entity.PrimaryKey()
	if err != nil {
		return nil, err
	}
	return r.Where(ctx, query.Eq(pk.ColumnName(), key))
}

// Get 按主键读取一个实例，没有匹配时返回 ErrRecordNotFound
func (r *Repository[T]) Get(ctx context.Context, key any) (*T, error) {
	values, err := r.ByPrimaryKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, errors.Wrapf(ErrRecordNotFound, "%s %v", r.entity.Table(), key)
	}
	return values[0], nil
}

// FromRecord 由一行查询结果构造实例，引用和集合会被加载
func (r *Repository[T]) FromRecord(ctx context.Context, record *executor.Record) (*T, error) {
	if record == nil {
		return nil, errors.New("record is nil")
	}
	var result *T
	err := r.db.executor.WithTx(ctx, func(tx executor.Executor) error {
		v, err := newLoader(tx, r.db.maxDepth).fromRecord(ctx, r.entity, record)
		if err != nil {
			return err
		}
		result = v.Interface().(*T)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *Repository[T]) query(ctx context.Context, statement string, args ...any) ([]*T, error) {
	var result []*T
	err := r.db.executor.WithTx(ctx, func(tx executor.Executor) error {
		values, err := newLoader(tx, r.db.maxDepth).query(ctx, r.entity, statement, args...)
		if err != nil {
			return err
		}
		result = make([]*T, 0, len(values))
		for _, v := range values {
			result = append(result, v.Interface().(*T))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// normalize 复制查询树并把条件值转换为 SQL 参数
// 引用列可以直接用目标实体作为条件值，取其主键
func (r *Repository[T]) normalize(q query.Query) (query.Query, error) {
	switch v := q.(type) {
	case *query.TermQuery:
		value, err := r.argValue(v.Field, v.Value)
		if err != nil {
			return nil, err
		}
		return &query.TermQuery{Field: v.Field, Value: value}, nil
	case *query.RangeQuery:
		n := &query.RangeQuery{Field: v.Field}
		for _, bound := range []struct {
			src any
			dst *any
		}{{v.Gt, &n.Gt}, {v.Gte, &n.Gte}, {v.Lt, &n.Lt}, {v.Lte, &n.Lte}} {
			value, err := r.argValue(v.Field, bound.src)
			if err != nil {
				return nil, err
			}
			*bound.dst = value
		}
		return n, nil
	case *query.BoolQuery:
		n := &query.BoolQuery{}
		for _, sub := range v.Must {
			s, err := r.normalize(sub)
			if err != nil {
				return nil, err
			}
			n.Must = append(n.Must, s)
		}
		for _, sub := range v.MustNot {
			s, err := r.normalize(sub)
			if err != nil {
				return nil, err
			}
			n.MustNot = append(n.MustNot, s)
		}
		return n, nil
	}
	return q, nil
}

func (r *Repository[T]) argValue(column string, value any) (any, error) {
	f, ok := r.entity.Field(column)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownColumn, "%s.%s", r.entity.Table(), column)
	}
	if value == nil {
		return nil, nil
	}

	if f.Kind() == mapping.KindReference {
		rv := reflect.ValueOf(value)
		if rv.Type() == reflect.PointerTo(f.Target().Type()) {
			if rv.IsNil() {
				return nil, nil
			}
			pk, err := f.Target().PrimaryKey()
			if err != nil {
				return nil, err
			}
			return pk.Value(rv.Elem())
		}
	}
	return mapping.SQLValue(value), nil
}
