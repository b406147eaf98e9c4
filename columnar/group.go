package columnar

import (
	"fmt"

	"github.com/latticerun/engine/model"
)

// Group is one distinct group-by bucket: its key values and the member
// rows, in first-seen order (spec §4.4.3 step 3 leaves intra-group row
// order unspecified; first-seen keeps grouping deterministic given a
// deterministic input order, per §5's determinism contract modulo
// unspecified intra-kernel ordering).
type Group struct {
	Key    []model.Value
	Values map[string]model.Value // group-by column -> value, for output
	Rows   []model.Row
}

// GroupBy partitions rows by the given group-by columns, preserving
// first-seen group order.
func GroupBy(rows []model.Row, groupCols []string) []Group {
	index := make(map[string]int)
	var groups []Group
	for _, r := range rows {
		key := make([]model.Value, len(groupCols))
		for i, c := range groupCols {
			key[i] = r[c]
		}
		k := groupKeyString(key)
		if gi, ok := index[k]; ok {
			groups[gi].Rows = append(groups[gi].Rows, r)
			continue
		}
		values := make(map[string]model.Value, len(groupCols))
		for i, c := range groupCols {
			values[c] = key[i]
		}
		index[k] = len(groups)
		groups = append(groups, Group{Key: key, Values: values, Rows: []model.Row{r}})
	}
	return groups
}

func groupKeyString(key []model.Value) string {
	s := ""
	for _, v := range key {
		s += fmt.Sprintf("|%d:%v:%v", v.Type, v.Null, rawOf(v))
	}
	return s
}

func rawOf(v model.Value) interface{} {
	switch v.Type {
	case model.Number:
		return v.Num
	case model.String:
		return v.Str
	case model.Boolean:
		return v.Bool
	case model.Date:
		return v.Time
	default:
		return nil
	}
}
