package mapping

import (
	"reflect"
	"sync"

	"github.com/pkg/errors"

	"github.com/hatlonely/sorm/schema"
)

var (
	ErrNotStruct           = errors.New("entity must be a struct")
	ErrInvalidTag          = errors.New("invalid orm tag")
	ErrUnsupportedType     = errors.New("unsupported field type")
	ErrNoPrimaryKey        = schema.ErrNoPrimaryKey
	ErrMultiplePrimaryKeys = schema.ErrMultiplePrimaryKeys
	ErrDuplicateTable      = errors.New("duplicate table name")
)

// TableNamer 自定义表名，默认使用结构体名
type TableNamer interface {
	TableName() string
}

// UniqueSetter 声明组合唯一约束
type UniqueSetter interface {
	UniqueSets() [][]string
}

// Registry 实体类型注册表
// 注册时解析一次 orm tag，之后只读取生成的 Entity
type Registry struct {
	mu       sync.RWMutex
	entities map[reflect.Type]*Entity
	tables   map[string]*Entity
	order    []*Entity
}

func NewRegistry() *Registry {
	return &Registry{
		entities: make(map[reflect.Type]*Entity),
		tables:   make(map[string]*Entity),
	}
}

// Register 注册实体，v 可以是结构体值、结构体指针或 reflect.Type
// 引用和集合字段的目标类型会被一并注册
func (r *Registry) Register(v any) (*Entity, error) {
	t, ok := v.(reflect.Type)
	if !ok {
		t = reflect.TypeOf(v)
	}
	if t == nil {
		return nil, errors.Wrap(ErrNotStruct, "nil")
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, errors.Wrapf(ErrNotStruct, "got %v", t)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var registered []*Entity
	e, err := r.register(t, &registered)
	if err != nil {
		// 撤销本次调用中发布的所有实体
		for _, re := range registered {
			delete(r.entities, re.typ)
			delete(r.tables, re.table)
		}
		r.order = r.order[:len(r.order)-len(registered)]
		return nil, err
	}
	return e, nil
}

func (r *Registry) Lookup(t reflect.Type) (*Entity, bool) {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entities[t]
	return e, ok
}

func (r *Registry) LookupTable(name string) (*Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tables[name]
	return e, ok
}

// Entities 已注册实体，按注册顺序
func (r *Registry) Entities() []*Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Entity(nil), r.order...)
}

// register 分两阶段注册：先解析标量列和主键并发布实体，再解析引用目标
// 互相引用的类型在第二阶段能查到已发布的实体，不会无限递归
func (r *Registry) register(t reflect.Type, registered *[]*Entity) (*Entity, error) {
	if e, ok := r.entities[t]; ok {
		return e, nil
	}

	e := &Entity{typ: t, table: tableName(t)}
	targets := make(map[*Field]reflect.Type)

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag, ok := sf.Tag.Lookup("orm")
		if !ok || tag == "-" {
			continue
		}
		if !sf.IsExported() {
			return nil, errors.Wrapf(ErrInvalidTag, "%s.%s is not exported", t.Name(), sf.Name)
		}

		opts, err := parseTag(sf, tag)
		if err != nil {
			return nil, errors.WithMessagef(err, "%s.%s", t.Name(), sf.Name)
		}
		f, target, err := newField(sf, opts)
		if err != nil {
			return nil, errors.WithMessagef(err, "%s.%s", t.Name(), sf.Name)
		}

		if f.column.PrimaryKey {
			if e.primaryKey != nil {
				return nil, errors.Wrapf(ErrMultiplePrimaryKeys, "%s: %s and %s", t.Name(), e.primaryKey.name, f.name)
			}
			e.primaryKey = f
		}
		if target != nil {
			targets[f] = target
		}
		e.fields = append(e.fields, f)
	}

	if namer, ok := reflect.New(t).Interface().(UniqueSetter); ok {
		for _, set := range namer.UniqueSets() {
			e.uniqueSets = append(e.uniqueSets, append([]string(nil), set...))
		}
	}

	if other, ok := r.tables[e.table]; ok {
		return nil, errors.Wrapf(ErrDuplicateTable, "%s is used by %v and %v", e.table, other.typ, t)
	}

	r.entities[t] = e
	r.tables[e.table] = e
	r.order = append(r.order, e)
	*registered = append(*registered, e)

	for _, f := range e.fields {
		target, ok := targets[f]
		if !ok {
			continue
		}
		te, err := r.register(target, registered)
		if err != nil {
			return nil, errors.WithMessagef(err, "%s.%s", t.Name(), f.name)
		}
		if te.primaryKey == nil {
			return nil, errors.Wrapf(ErrNoPrimaryKey, "%s.%s references %s", t.Name(), f.name, te.table)
		}
		f.target = te

		switch f.kind {
		case KindReference:
			f.column.Type = te.primaryKey.column.Type
			f.column.ForeignKey = &schema.ForeignKey{Table: te.table, Column: te.primaryKey.column.Name}
		case KindCollection:
			if e.primaryKey == nil {
				return nil, errors.Wrapf(ErrNoPrimaryKey, "%s owns collection %s", t.Name(), f.name)
			}
		}
	}

	if err := e.TableDefinition().Validate(); err != nil {
		return nil, err
	}

	return e, nil
}

func tableName(t reflect.Type) string {
	if namer, ok := reflect.New(t).Interface().(TableNamer); ok {
		if name := namer.TableName(); name != "" {
			return name
		}
	}
	return t.Name()
}
