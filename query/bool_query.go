package query

import (
	"strings"

	"github.com/pkg/errors"
)

// BoolQuery 布尔查询，Must 之间为 AND，MustNot 中每一项取反后 AND
type BoolQuery struct {
	Must    []Query `json:"must,omitempty"`
	MustNot []Query `json:"must_not,omitempty"`
}

func (q *BoolQuery) Type() QueryType {
	return QueryTypeBool
}

func (q *BoolQuery) ToSQL() (string, []any, error) {
	var conditions []string
	var args []any

	if len(q.Must) > 0 {
		mustConditions := make([]string, 0, len(q.Must))
		for _, query := range q.Must {
			sql, queryArgs, err := query.ToSQL()
			if err != nil {
				return "", nil, errors.WithMessage(err, "must")
			}
			mustConditions = append(mustConditions, sql)
			args = append(args, queryArgs...)
		}
		conditions = append(conditions, "("+strings.Join(mustConditions, " AND ")+")")
	}

	if len(q.MustNot) > 0 {
		mustNotConditions := make([]string, 0, len(q.MustNot))
		for _, query := range q.MustNot {
			sql, queryArgs, err := query.ToSQL()
			if err != nil {
				return "", nil, errors.WithMessage(err, "must_not")
			}
			mustNotConditions = append(mustNotConditions, "NOT ("+sql+")")
			args = append(args, queryArgs...)
		}
		conditions = append(conditions, "("+strings.Join(mustNotConditions, " AND ")+")")
	}

	if len(conditions) == 0 {
		return "", nil, ErrEmptyQuery
	}

	return strings.Join(conditions, " AND "), args, nil
}
