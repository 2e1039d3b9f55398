package schema

import (
	"fmt"

	"github.com/pkg/errors"
)

const (
	LinkColumnOwner = "link_id"
	LinkColumnChild = "child_id"
)

// LinkTableName 一对多关系的关联表名 <owner>_<field>
func LinkTableName(owner, field string) string {
	return fmt.Sprintf("%s_%s", owner, field)
}

// LinkTable 生成一对多关联表，link_id 指向 owner 主键，child_id 指向 child 主键
func LinkTable(owner Table, field string, child Table) (Table, error) {
	ownerPK, err := owner.PrimaryKey()
	if err != nil {
		return Table{}, errors.WithMessagef(err, "link table %s", LinkTableName(owner.Name, field))
	}
	childPK, err := child.PrimaryKey()
	if err != nil {
		return Table{}, errors.WithMessagef(err, "link table %s", LinkTableName(owner.Name, field))
	}

	return NewTable(
		LinkTableName(owner.Name, field),
		Column{Name: LinkColumnOwner, Type: ownerPK.Type}.References(owner.Name, ownerPK.Name),
		Column{Name: LinkColumnChild, Type: childPK.Type}.References(child.Name, childPK.Name),
	).WithUniqueSet(LinkColumnOwner, LinkColumnChild), nil
}
