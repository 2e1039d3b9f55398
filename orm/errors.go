package orm

import (
	"github.com/pkg/errors"

	"github.com/hatlonely/sorm/mapping"
)

var (
	ErrEmptyPredicate = errors.New("empty predicate")
	ErrRecordNotFound = errors.New("record not found")
	ErrReferenceCycle = errors.New("reference cycle detected")
	ErrMaxDepth       = errors.New("max reference depth exceeded")
	ErrUnknownColumn  = errors.New("unknown column")
	ErrNilEntity      = errors.New("entity is nil")
	ErrNoPrimaryKey   = mapping.ErrNoPrimaryKey
	ErrNotStruct      = mapping.ErrNotStruct
)
