package executor

import "strings"

// Record 一行查询结果，字段顺序与结果集列顺序一致
type Record struct {
	fields []string
	values []any
}

func NewRecord(fields []string, values []any) *Record {
	return &Record{
		fields: append([]string(nil), fields...),
		values: append([]any(nil), values...),
	}
}

func (r *Record) Len() int {
	return len(r.fields)
}

func (r *Record) Fields() []string {
	return append([]string(nil), r.fields...)
}

func (r *Record) Values() []any {
	return append([]any(nil), r.values...)
}

// Get 按字段名取值，字段不存在时 ok 为 false
func (r *Record) Get(field string) (any, bool) {
	for i, f := range r.fields {
		if f == field {
			return r.values[i], true
		}
	}
	return nil, false
}

func (r *Record) Map() map[string]any {
	m := make(map[string]any, len(r.fields))
	for i, f := range r.fields {
		m[f] = r.values[i]
	}
	return m
}

// Placeholders 生成 n 个位置参数占位符，逗号分隔
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
