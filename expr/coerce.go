package expr

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cast"

	"github.com/latticerun/engine/model"
)

// CoerceToValue converts a loosely-typed value (as returned by an
// external data loader, which deals in raw Go values, not model.Value)
// into a typed model.Value of the declared column type. This is the
// expression-evaluation-boundary scalar coercion called out in
// SPEC_FULL.md's DOMAIN STACK: go-mysql-server-adjacent code leans on
// spf13/cast for exactly this kind of loose-to-strict conversion.
func CoerceToValue(raw interface{}, target model.ScalarType) (model.Value, error) {
	if raw == nil {
		return model.NullValue(target), nil
	}
	switch target {
	case model.Number:
		f, err := cast.ToFloat64E(raw)
		if err != nil {
			return model.Value{}, errors.Wrapf(err, "coerce %v to Number", raw)
		}
		return model.NumberValue(f), nil
	case model.String:
		s, err := cast.ToStringE(raw)
		if err != nil {
			return model.Value{}, errors.Wrapf(err, "coerce %v to String", raw)
		}
		return model.StringValue(s), nil
	case model.Boolean:
		b, err := cast.ToBoolE(raw)
		if err != nil {
			return model.Value{}, errors.Wrapf(err, "coerce %v to Boolean", raw)
		}
		return model.BoolValue(b), nil
	case model.Date:
		switch t := raw.(type) {
		case time.Time:
			return model.DateValue(t), nil
		default:
			s, err := cast.ToStringE(raw)
			if err != nil {
				return model.Value{}, errors.Wrapf(err, "coerce %v to Date", raw)
			}
			parsed, err := time.Parse("2006-01-02", s)
			if err != nil {
				parsed, err = time.Parse(time.RFC3339, s)
				if err != nil {
					return model.Value{}, errors.Wrapf(err, "coerce %v to Date", raw)
				}
			}
			return model.DateValue(parsed), nil
		}
	default:
		return model.NullValue(target), nil
	}
}
