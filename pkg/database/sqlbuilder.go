package database

import (
	"github.com/huandu/go-sqlbuilder"
)

// ImpossibleID never matches a stored surrogate id. A delete filtered on
// `id <> ImpossibleID` removes every row of a table without TRUNCATE rights.
const ImpossibleID = "00000000-0000-0000-0000-000000000000"

func NewDeleteBuilder() *sqlbuilder.DeleteBuilder {
	return sqlbuilder.PostgreSQL.NewDeleteBuilder()
}

// NewDeleteAllBuilder deletes every row of table using the sentinel predicate.
func NewDeleteAllBuilder(table string) *sqlbuilder.DeleteBuilder {
	db := NewDeleteBuilder()
	db.DeleteFrom(table).Where(db.NotEqual("id", ImpossibleID))
	return db
}

// NewStruct maps a db-tagged struct for PostgreSQL statements.
func NewStruct(v any) *sqlbuilder.Struct {
	return sqlbuilder.NewStruct(v).For(sqlbuilder.PostgreSQL)
}
