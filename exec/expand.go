package exec

import "github.com/latticerun/engine/model"

// expandOperation interpolates every {{NAME}} selector token appearing in
// op's expression fields against selectors, returning a copy with the
// expanded source (spec §4.5 step 1, "Expand any {{NAME}} selector
// references in the operation's parameters"). Kernels themselves never
// call expr.InterpolateSelectors; this is the one place it happens,
// before an operation's arguments ever reach a kernel.
func expandOperation(op model.Operation, selectors map[string]string) (model.Operation, error) {
	out := op
	switch op.Kind {
	case model.KindUpdate:
		if op.Update == nil {
			return out, nil
		}
		u := *op.Update
		expanded, err := interpolate(u.Selector, selectors)
		if err != nil {
			return out, err
		}
		u.Selector = expanded

		assignments := make([]model.Assignment, len(u.Assignments))
		for i, a := range u.Assignments {
			if a.Expression, err = interpolate(a.Expression, selectors); err != nil {
				return out, err
			}
			assignments[i] = a
		}
		u.Assignments = assignments

		joins := make([]model.Join, len(u.Joins))
		for i, j := range u.Joins {
			if j.OnExpression, err = interpolate(j.OnExpression, selectors); err != nil {
				return out, err
			}
			joins[i] = j
		}
		u.Joins = joins
		out.Update = &u

	case model.KindDelete:
		if op.Delete == nil {
			return out, nil
		}
		d := *op.Delete
		expanded, err := interpolate(d.Selector, selectors)
		if err != nil {
			return out, err
		}
		d.Selector = expanded
		out.Delete = &d

	case model.KindAggregate:
		if op.Aggregate == nil {
			return out, nil
		}
		a, err := expandAggregateArgs(*op.Aggregate, selectors)
		if err != nil {
			return out, err
		}
		out.Aggregate = &a

	case model.KindAppend:
		if op.Append == nil {
			return out, nil
		}
		ap := *op.Append
		expanded, err := interpolate(ap.Selector, selectors)
		if err != nil {
			return out, err
		}
		ap.Selector = expanded
		if ap.Aggregation != nil {
			inner, err := expandAggregateArgs(*ap.Aggregation, selectors)
			if err != nil {
				return out, err
			}
			ap.Aggregation = &inner
		}
		out.Append = &ap

	case model.KindOutput:
		if op.Output == nil {
			return out, nil
		}
		o := *op.Output
		expanded, err := interpolate(o.Selector, selectors)
		if err != nil {
			return out, err
		}
		o.Selector = expanded
		out.Output = &o
	}
	return out, nil
}

func expandAggregateArgs(a model.AggregateArgs, selectors map[string]string) (model.AggregateArgs, error) {
	expanded, err := interpolate(a.Selector, selectors)
	if err != nil {
		return a, err
	}
	a.Selector = expanded

	aggs := make([]model.Aggregation, len(a.Aggregations))
	for i, agg := range a.Aggregations {
		if agg.Expression, err = interpolate(agg.Expression, selectors); err != nil {
			return a, err
		}
		aggs[i] = agg
	}
	a.Aggregations = aggs
	return a, nil
}
