package mapping

import (
	"reflect"

	"github.com/pkg/errors"

	"github.com/hatlonely/sorm/schema"
)

// Entity 一个实体类型的映射元数据，由 Registry 注册时生成，之后只读
type Entity struct {
	typ        reflect.Type
	table      string
	fields     []*Field
	uniqueSets [][]string
	primaryKey *Field
}

// Type 实体的结构体类型（非指针）
func (e *Entity) Type() reflect.Type {
	return e.typ
}

func (e *Entity) Table() string {
	return e.table
}

// Fields 所有映射字段，按声明顺序
func (e *Entity) Fields() []*Field {
	return append([]*Field(nil), e.fields...)
}

// Field 按列名查找字段
func (e *Entity) Field(column string) (*Field, bool) {
	for _, f := range e.fields {
		if f.kind != KindCollection && f.column.Name == column {
			return f, true
		}
	}
	return nil, false
}

// Columns 有列的字段，即除集合之外的字段
func (e *Entity) Columns() []*Field {
	return e.filter(func(f *Field) bool { return f.kind != KindCollection })
}

func (e *Entity) References() []*Field {
	return e.filter(func(f *Field) bool { return f.kind == KindReference })
}

func (e *Entity) Collections() []*Field {
	return e.filter(func(f *Field) bool { return f.kind == KindCollection })
}

func (e *Entity) filter(pred func(*Field) bool) []*Field {
	var fields []*Field
	for _, f := range e.fields {
		if pred(f) {
			fields = append(fields, f)
		}
	}
	return fields
}

func (e *Entity) PrimaryKey() (*Field, error) {
	if e.primaryKey == nil {
		return nil, errors.Wrapf(ErrNoPrimaryKey, "entity %s", e.table)
	}
	return e.primaryKey, nil
}

// TableDefinition 实体对应的表定义，每次调用返回新的副本
func (e *Entity) TableDefinition() schema.Table {
	var columns []schema.Column
	for _, f := range e.Columns() {
		columns = append(columns, f.Column())
	}
	table := schema.NewTable(e.table, columns...)
	for _, set := range e.uniqueSets {
		table = table.WithUniqueSet(set...)
	}
	return table
}

// LinkTable 集合字段对应的关联表
func (e *Entity) LinkTable(field *Field) (schema.Table, error) {
	if field.kind != KindCollection || field.target == nil {
		return schema.Table{}, errors.Errorf("field %s of %s is not a collection", field.name, e.table)
	}
	return schema.LinkTable(e.TableDefinition(), field.column.Name, field.target.TableDefinition())
}

// New 创建一个新的实体实例，返回指针
func (e *Entity) New() reflect.Value {
	return reflect.New(e.typ)
}
