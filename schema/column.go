package schema

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// SQLType SQLite 存储类型
type SQLType string

const (
	SQLTypeInteger SQLType = "INTEGER"
	SQLTypeReal    SQLType = "REAL"
	SQLTypeText    SQLType = "TEXT"
	SQLTypeBlob    SQLType = "BLOB"
	SQLTypeNull    SQLType = "NULL"
)

var ErrUnknownSQLType = errors.New("unknown sql type")

// ParseSQLType 解析类型名，大小写不敏感
func ParseSQLType(s string) (SQLType, error) {
	switch t := SQLType(strings.ToUpper(strings.TrimSpace(s))); t {
	case SQLTypeInteger, SQLTypeReal, SQLTypeText, SQLTypeBlob, SQLTypeNull:
		return t, nil
	}
	return "", errors.Wrapf(ErrUnknownSQLType, "%q", s)
}

// ForeignKey 外键引用的目标表和列
type ForeignKey struct {
	Table  string
	Column string
}

func (fk ForeignKey) String() string {
	return fmt.Sprintf("%s(%s)", fk.Table, fk.Column)
}

// Column 列定义，构建完成后不再修改，按值传递
type Column struct {
	Name          string
	Type          SQLType
	PrimaryKey    bool
	AutoIncrement bool
	Unique        bool
	ForeignKey    *ForeignKey
}

// Definition 生成列子句 <name> <type>[ PRIMARY KEY[ AUTOINCREMENT]][ UNIQUE]
// AUTOINCREMENT 只能跟在 INTEGER PRIMARY KEY 之后
func (c Column) Definition() string {
	parts := []string{c.Name, string(c.Type)}
	if c.PrimaryKey {
		parts = append(parts, "PRIMARY KEY")
		if c.AutoIncrement && c.Type == SQLTypeInteger {
			parts = append(parts, "AUTOINCREMENT")
		}
	}
	if c.Unique {
		parts = append(parts, "UNIQUE")
	}
	return strings.Join(parts, " ")
}

// References 返回指向目标表列的外键列副本
func (c Column) References(table, column string) Column {
	c.ForeignKey = &ForeignKey{Table: table, Column: column}
	return c
}

func (c Column) clone() Column {
	if c.ForeignKey != nil {
		fk := *c.ForeignKey
		c.ForeignKey = &fk
	}
	return c
}
