package schema

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrNoPrimaryKey        = errors.New("no primary key defined")
	ErrMultiplePrimaryKeys = errors.New("multiple primary keys defined")
	ErrInvalidTable        = errors.New("invalid table definition")
)

// Table 表定义，列按声明顺序排列
type Table struct {
	Name       string
	Columns    []Column
	UniqueSets [][]string
}

func NewTable(name string, columns ...Column) Table {
	t := Table{Name: name, Columns: make([]Column, 0, len(columns))}
	for _, c := range columns {
		t.Columns = append(t.Columns, c.clone())
	}
	return t
}

// WithUniqueSet 返回追加了组合唯一约束的新表，接收者不变
func (t Table) WithUniqueSet(columns ...string) Table {
	n := t.clone()
	n.UniqueSets = append(n.UniqueSets, append([]string(nil), columns...))
	return n
}

func (t Table) clone() Table {
	n := Table{Name: t.Name}
	n.Columns = make([]Column, 0, len(t.Columns))
	for _, c := range t.Columns {
		n.Columns = append(n.Columns, c.clone())
	}
	for _, set := range t.UniqueSets {
		n.UniqueSets = append(n.UniqueSets, append([]string(nil), set...))
	}
	return n
}

// Column 按名称查找列
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c.clone(), true
		}
	}
	return Column{}, false
}

// ColumnNames 列名，按声明顺序
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

func (t Table) PrimaryKey() (Column, error) {
	for _, c := range t.Columns {
		if c.PrimaryKey {
			return c.clone(), nil
		}
	}
	return Column{}, errors.Wrapf(ErrNoPrimaryKey, "table %s", t.Name)
}

func (t Table) Validate() error {
	if t.Name == "" {
		return errors.Wrap(ErrInvalidTable, "table name is empty")
	}
	if len(t.Columns) == 0 {
		return errors.Wrapf(ErrInvalidTable, "table %s has no columns", t.Name)
	}

	seen := make(map[string]bool, len(t.Columns))
	primaryKeys := 0
	for _, c := range t.Columns {
		if c.Name == "" {
			return errors.Wrapf(ErrInvalidTable, "table %s has a column without name", t.Name)
		}
		if seen[c.Name] {
			return errors.Wrapf(ErrInvalidTable, "table %s has duplicate column %s", t.Name, c.Name)
		}
		seen[c.Name] = true
		if c.PrimaryKey {
			primaryKeys++
		}
	}
	if primaryKeys > 1 {
		return errors.Wrapf(ErrMultiplePrimaryKeys, "table %s", t.Name)
	}

	for _, set := range t.UniqueSets {
		if len(set) == 0 {
			return errors.Wrapf(ErrInvalidTable, "table %s has an empty unique set", t.Name)
		}
		for _, name := range set {
			if !seen[name] {
				return errors.Wrapf(ErrInvalidTable, "table %s unique set references unknown column %s", t.Name, name)
			}
		}
	}
	return nil
}

// CreateStatement 生成建表语句
// 列子句在前，随后是组合唯一约束，最后按列顺序追加外键子句
func (t Table) CreateStatement() (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}

	clauses := make([]string, 0, len(t.Columns)+len(t.UniqueSets))
	for _, c := range t.Columns {
		clauses = append(clauses, c.Definition())
	}
	for _, set := range t.UniqueSets {
		clauses = append(clauses, fmt.Sprintf("UNIQUE(%s)", strings.Join(set, ", ")))
	}
	for _, c := range t.Columns {
		if c.ForeignKey != nil {
			clauses = append(clauses, fmt.Sprintf("FOREIGN KEY(%s) REFERENCES %s", c.Name, c.ForeignKey))
		}
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", t.Name, strings.Join(clauses, ", ")), nil
}
