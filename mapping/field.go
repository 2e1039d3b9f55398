package mapping

import (
	"reflect"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hatlonely/sorm/codec"
	"github.com/hatlonely/sorm/schema"
	"github.com/hatlonely/sorm/uid"
)

// FieldKind 字段映射方式
type FieldKind int

const (
	// KindScalar 标量列，指针类型表示可空
	KindScalar FieldKind = iota
	// KindReference *T 引用另一个实体，列中保存目标主键
	KindReference
	// KindCollection []*T 一对多关系，通过关联表保存
	KindCollection
	// KindEncoded 任意类型经编解码器序列化后存为 BLOB
	KindEncoded
)

func (k FieldKind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindReference:
		return "reference"
	case KindCollection:
		return "collection"
	case KindEncoded:
		return "encoded"
	}
	return "unknown"
}

var timeType = reflect.TypeOf(time.Time{})

// Field 一个映射字段，注册完成后不再修改
type Field struct {
	name      string
	index     []int
	typ       reflect.Type
	kind      FieldKind
	column    schema.Column
	codec     codec.Codec
	generator uid.Generator
	target    *Entity
}

// Name Go 结构体字段名
func (f *Field) Name() string {
	return f.name
}

// ColumnName 列名，集合字段为关联表名后缀
func (f *Field) ColumnName() string {
	return f.column.Name
}

// Column 列定义副本，集合字段没有列
func (f *Field) Column() schema.Column {
	c := f.column
	if c.ForeignKey != nil {
		fk := *c.ForeignKey
		c.ForeignKey = &fk
	}
	return c
}

func (f *Field) Kind() FieldKind {
	return f.kind
}

func (f *Field) Type() reflect.Type {
	return f.typ
}

func (f *Field) IsPrimaryKey() bool {
	return f.column.PrimaryKey
}

// Target 引用和集合字段指向的实体
func (f *Field) Target() *Entity {
	return f.target
}

// Generator 主键生成器，未配置时为 nil
func (f *Field) Generator() uid.Generator {
	return f.generator
}

// Reflect 返回结构体值 v 中该字段的可设置值，v 必须是结构体（非指针）
func (f *Field) Reflect(v reflect.Value) reflect.Value {
	return v.FieldByIndex(f.index)
}

// IsZero 字段当前是否为零值
func (f *Field) IsZero(v reflect.Value) bool {
	return f.Reflect(v).IsZero()
}

type tagOptions struct {
	name          string
	sqlType       schema.SQLType
	primaryKey    bool
	autoIncrement bool
	unique        bool
	foreignKey    *schema.ForeignKey
	codec         string
	generator     string
	many          bool
}

// parseTag 解析 orm tag
// 第一段总是列名（可为空，默认字段名），其余为选项：
// type=INTEGER|REAL|TEXT|BLOB|NULL, primary|pk, autoinc, unique,
// fk=Table.column, codec=json|msgpack|bson|proto, gen=uuid|uuid7|snowflake|timeseq, many
func parseTag(field reflect.StructField, tag string) (*tagOptions, error) {
	opts := &tagOptions{name: field.Name}

	parts := strings.Split(tag, ",")
	if name := strings.TrimSpace(parts[0]); name != "" && !strings.Contains(name, "=") {
		opts.name = name
		parts = parts[1:]
	} else if name == "" {
		parts = parts[1:]
	}

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if strings.Contains(part, "=") {
			kv := strings.SplitN(part, "=", 2)
			key := strings.TrimSpace(kv[0])
			value := strings.TrimSpace(kv[1])

			switch key {
			case "type":
				t, err := schema.ParseSQLType(value)
				if err != nil {
					return nil, errors.Wrapf(ErrInvalidTag, "%v", err)
				}
				opts.sqlType = t
			case "fk":
				table, column, ok := strings.Cut(value, ".")
				if !ok || table == "" || column == "" {
					return nil, errors.Wrapf(ErrInvalidTag, "foreign key %q must be Table.column", value)
				}
				opts.foreignKey = &schema.ForeignKey{Table: table, Column: column}
			case "codec":
				opts.codec = value
			case "gen":
				opts.generator = value
			default:
				return nil, errors.Wrapf(ErrInvalidTag, "unknown option %q", key)
			}
			continue
		}

		switch part {
		case "primary", "pk":
			opts.primaryKey = true
		case "autoinc":
			opts.autoIncrement = true
		case "unique":
			opts.unique = true
		case "many":
			opts.many = true
		default:
			return nil, errors.Wrapf(ErrInvalidTag, "unknown option %q", part)
		}
	}

	return opts, nil
}

// inferSQLType 从 Go 类型推断列类型，不支持的类型返回 false
func inferSQLType(t reflect.Type) (schema.SQLType, bool) {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == timeType {
		return schema.SQLTypeText, true
	}

	switch t.Kind() {
	case reflect.String:
		return schema.SQLTypeText, true
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return schema.SQLTypeInteger, true
	case reflect.Float32, reflect.Float64:
		return schema.SQLTypeReal, true
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return schema.SQLTypeBlob, true
		}
	}
	return "", false
}

// referenceTarget *T 且 T 为结构体时返回 T
func referenceTarget(t reflect.Type) (reflect.Type, bool) {
	if t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Struct && t.Elem() != timeType {
		return t.Elem(), true
	}
	return nil, false
}

// collectionTarget []*T 且 T 为结构体时返回 T
func collectionTarget(t reflect.Type) (reflect.Type, bool) {
	if t.Kind() == reflect.Slice {
		return referenceTarget(t.Elem())
	}
	return nil, false
}

// newField 根据 tag 构建字段，引用和集合字段的目标在第二阶段解析
func newField(sf reflect.StructField, opts *tagOptions) (*Field, reflect.Type, error) {
	f := &Field{
		name:  sf.Name,
		index: sf.Index,
		typ:   sf.Type,
		column: schema.Column{
			Name:          opts.name,
			PrimaryKey:    opts.primaryKey,
			AutoIncrement: opts.autoIncrement,
			Unique:        opts.unique,
			ForeignKey:    opts.foreignKey,
		},
	}

	var target reflect.Type
	switch {
	case opts.many:
		t, ok := collectionTarget(sf.Type)
		if !ok {
			return nil, nil, errors.Wrapf(ErrUnsupportedType, "collection field must be []*Struct, got %v", sf.Type)
		}
		if opts.primaryKey || opts.autoIncrement || opts.unique || opts.foreignKey != nil || opts.codec != "" || opts.generator != "" {
			return nil, nil, errors.Wrap(ErrInvalidTag, "collection field only accepts a name")
		}
		f.kind = KindCollection
		target = t

	case opts.codec != "":
		c, err := codec.Get(opts.codec)
		if err != nil {
			return nil, nil, err
		}
		if err := codec.Check(c, sf.Type); err != nil {
			return nil, nil, errors.Wrap(ErrUnsupportedType, err.Error())
		}
		f.kind = KindEncoded
		f.codec = c
		f.column.Type = schema.SQLTypeBlob

	default:
		if t, ok := referenceTarget(sf.Type); ok {
			if opts.primaryKey {
				return nil, nil, errors.Wrap(ErrInvalidTag, "reference field cannot be primary key")
			}
			if opts.foreignKey != nil {
				return nil, nil, errors.Wrap(ErrInvalidTag, "reference field derives its foreign key from the target")
			}
			f.kind = KindReference
			target = t
			break
		}

		sqlType, ok := inferSQLType(sf.Type)
		if !ok {
			return nil, nil, errors.Wrapf(ErrUnsupportedType, "type %v", sf.Type)
		}
		f.kind = KindScalar
		f.column.Type = sqlType
	}

	if opts.sqlType != "" {
		if f.kind != KindScalar {
			return nil, nil, errors.Wrapf(ErrInvalidTag, "type option not allowed on %s field", f.kind)
		}
		f.column.Type = opts.sqlType
	}

	if opts.autoIncrement && (f.column.Type != schema.SQLTypeInteger || !opts.primaryKey) {
		return nil, nil, errors.Wrap(ErrInvalidTag, "autoinc requires an INTEGER primary key")
	}

	if opts.generator != "" {
		if f.kind != KindScalar {
			return nil, nil, errors.Wrapf(ErrInvalidTag, "gen option not allowed on %s field", f.kind)
		}
		g, err := uid.New(opts.generator)
		if err != nil {
			return nil, nil, err
		}
		base := sf.Type
		if base.Kind() == reflect.Ptr {
			base = base.Elem()
		}
		switch g.Kind() {
		case reflect.String:
			if base.Kind() != reflect.String {
				return nil, nil, errors.Wrapf(ErrUnsupportedType, "generator %s requires a string field", opts.generator)
			}
		case reflect.Int64:
			if base.Kind() != reflect.Int64 && base.Kind() != reflect.Int {
				return nil, nil, errors.Wrapf(ErrUnsupportedType, "generator %s requires an int64 field", opts.generator)
			}
		}
		f.generator = g
	}

	return f, target, nil
}
