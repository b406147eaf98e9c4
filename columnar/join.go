package columnar

import (
	"context"

	"github.com/latticerun/engine/model"
)

// JoinPredicate tests a (left, right) row pair, where right's columns
// have already been aliased (e.g. "fx.rate") by the caller before this
// predicate is invoked.
type JoinPredicate func(left, right model.Row) (bool, error)

// LeftJoin attaches an externally loaded, period-filtered frame to the
// working frame (spec §4.4.6 "Runtime Join"). Every left row is kept;
// matching right rows are merged in under their alias-qualified column
// names, and non-matching left rows get NULLs for every aliased column.
type LeftJoin struct {
	Left, Right LazyFrame
	Alias       string
	Pred        JoinPredicate
}

func (j *LeftJoin) Schema() model.Schema {
	out := j.Left.Schema()
	for _, col := range j.Right.Schema() {
		out = out.WithColumn(model.ColumnDef{
			Name:     j.Alias + "." + col.Name,
			Type:     col.Type,
			Nullable: true,
		})
	}
	return out
}

func (j *LeftJoin) Rows(ctx context.Context) ([]model.Row, error) {
	leftRows, err := j.Left.Rows(ctx)
	if err != nil {
		return nil, err
	}
	rightRows, err := j.Right.Rows(ctx)
	if err != nil {
		return nil, err
	}
	rightSchema := j.Right.Schema()

	out := make([]model.Row, 0, len(leftRows))
	for _, l := range leftRows {
		matched := false
		for _, r := range rightRows {
			aliased := aliasRow(r, j.Alias)
			ok, err := j.Pred(l, aliased)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			matched = true
			merged := l.Clone()
			for k, v := range aliased {
				merged[k] = v
			}
			out = append(out, merged)
		}
		if !matched {
			merged := l.Clone()
			for _, col := range rightSchema {
				merged[j.Alias+"."+col.Name] = model.NullValue(col.Type)
			}
			out = append(out, merged)
		}
	}
	return out, nil
}

func aliasRow(r model.Row, alias string) model.Row {
	out := make(model.Row, len(r))
	for k, v := range r {
		out[alias+"."+k] = v
	}
	return out
}
