package expr

import (
	"time"

	"github.com/latticerun/engine/model"
)

// Context is the compilation context expressions are validated against
// (spec §4.1: "schema, join aliases in scope, named selectors,
// current-run timestamp, allow_aggregates flag").
type Context struct {
	Schema          model.Schema
	Joins           map[string]model.Schema // alias -> schema
	Selectors       map[string]string
	RunTimestamp    time.Time
	AllowAggregates bool
}

// resolveColumn finds the declared type of a (table, column) reference
// against the working schema or a join alias in scope (V-002). An alias
// registered with an empty schema has unknown columns: any column under
// it resolves as a nullable column of type Unknown.
func (c *Context) resolveColumn(table, column string) (model.ColumnDef, bool) {
	if table == "" {
		return c.Schema.Find(column)
	}
	if sch, ok := c.Joins[table]; ok {
		if len(sch) == 0 {
			return model.ColumnDef{Name: column, Type: model.Unknown, Nullable: true}, true
		}
		return sch.Find(column)
	}
	return model.ColumnDef{}, false
}
