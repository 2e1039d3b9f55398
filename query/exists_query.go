package query

import "fmt"

// ExistsQuery 字段非空查询
type ExistsQuery struct {
	Field string `json:"field"`
}

func (q *ExistsQuery) Type() QueryType {
	return QueryTypeExists
}

func (q *ExistsQuery) ToSQL() (string, []any, error) {
	if q.Field == "" {
		return "", nil, ErrEmptyField
	}
	return fmt.Sprintf("%s IS NOT NULL", q.Field), nil, nil
}
