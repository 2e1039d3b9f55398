package query

import "github.com/pkg/errors"

// QueryType 查询类型
type QueryType string

const (
	QueryTypeBool   QueryType = "bool"
	QueryTypeTerm   QueryType = "term"
	QueryTypeRange  QueryType = "range"
	QueryTypeExists QueryType = "exists"
)

var (
	ErrEmptyQuery = errors.New("empty query")
	ErrEmptyField = errors.New("query field is empty")
)

// Query 查询节点接口，ToSQL 生成 WHERE 子句片段和按顺序对应的位置参数
type Query interface {
	Type() QueryType
	ToSQL() (string, []any, error)
}

// Eq 字段等值查询
func Eq(field string, value any) *TermQuery {
	return &TermQuery{Field: field, Value: value}
}

// And 所有子查询同时满足
func And(queries ...Query) *BoolQuery {
	return &BoolQuery{Must: queries}
}

// Not 所有子查询都不满足
func Not(queries ...Query) *BoolQuery {
	return &BoolQuery{MustNot: queries}
}

// Fields 查询树中引用的所有字段名，按出现顺序，可能重复
func Fields(q Query) []string {
	switch v := q.(type) {
	case *TermQuery:
		return []string{v.Field}
	case *RangeQuery:
		return []string{v.Field}
	case *ExistsQuery:
		return []string{v.Field}
	case *BoolQuery:
		var fields []string
		for _, sub := range v.Must {
			fields = append(fields, Fields(sub)...)
		}
		for _, sub := range v.MustNot {
			fields = append(fields, Fields(sub)...)
		}
		return fields
	}
	return nil
}
