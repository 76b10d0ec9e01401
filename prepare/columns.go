package prepare

import (
	"reflect"

	"github.com/uptrace/bun"
)

// Columns lists the column names bun maps for model, in field order, with the
// columns of embedded structs in place. Relations and fields tagged "-" are
// left out. A nil or non struct model has no columns.
func Columns(db bun.IDB, model any) []string {
	typ := reflect.TypeOf(model)
	for typ != nil && typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ == nil || typ.Kind() != reflect.Struct {
		return nil
	}

	table := db.Dialect().Tables().Get(typ)
	cols := make([]string, len(table.Fields))
	for i, f := range table.Fields {
		cols[i] = f.Name
	}
	return cols
}
