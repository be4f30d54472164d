package value

import (
	"fmt"
	"math"
	"strconv"
)

// TypeMismatchError reports an explicit conversion between incompatible
// variants, including numeric conversions that would lose the value.
type TypeMismatchError struct {
	From Kind
	To   Kind
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("cannot convert %s value to %s", e.From, e.To)
}

// Convert returns v converted to the requested kind. Conversions are always
// explicit: out-of-range numeric conversions and unparsable strings fail
// with a TypeMismatchError. Integer to Float follows IEEE rounding, so
// magnitudes above 2^53 land on the nearest representable float.
// Converting to the value's own kind is the identity.
func Convert(v Value, to Kind) (Value, error) {
	if v.kind == to {
		return v, nil
	}
	mismatch := func() (Value, error) {
		return Value{}, &TypeMismatchError{From: v.kind, To: to}
	}

	switch to {
	case KindBool:
		if v.kind == KindString {
			b, err := strconv.ParseBool(v.s)
			if err != nil {
				return mismatch()
			}
			return BoolVal(b), nil
		}
		return mismatch()

	case KindI64:
		switch v.kind {
		case KindU64:
			if v.u > math.MaxInt64 {
				return mismatch()
			}
			return I64Val(int64(v.u)), nil
		case KindFloat:
			if v.f != math.Trunc(v.f) || v.f < math.MinInt64 || v.f >= math.MaxInt64 {
				return mismatch()
			}
			return I64Val(int64(v.f)), nil
		case KindString:
			i, err := strconv.ParseInt(v.s, 10, 64)
			if err != nil {
				return mismatch()
			}
			return I64Val(i), nil
		}
		return mismatch()

	case KindU64:
		switch v.kind {
		case KindI64:
			if v.i < 0 {
				return mismatch()
			}
			return U64Val(uint64(v.i)), nil
		case KindFloat:
			if v.f != math.Trunc(v.f) || v.f < 0 || v.f >= math.MaxUint64 {
				return mismatch()
			}
			return U64Val(uint64(v.f)), nil
		case KindString:
			u, err := strconv.ParseUint(v.s, 10, 64)
			if err != nil {
				return mismatch()
			}
			return U64Val(u), nil
		}
		return mismatch()

	case KindFloat:
		switch v.kind {
		case KindI64:
			return FloatVal(float64(v.i)), nil
		case KindU64:
			return FloatVal(float64(v.u)), nil
		case KindString:
			f, err := strconv.ParseFloat(v.s, 64)
			if err != nil {
				return mismatch()
			}
			return FloatVal(f), nil
		}
		return mismatch()

	case KindString:
		switch v.kind {
		case KindBool:
			return StringVal(strconv.FormatBool(v.b)), nil
		case KindI64:
			return StringVal(strconv.FormatInt(v.i, 10)), nil
		case KindU64:
			return StringVal(strconv.FormatUint(v.u, 10)), nil
		case KindFloat:
			return StringVal(strconv.FormatFloat(v.f, 'g', -1, 64)), nil
		}
		return mismatch()

	default:
		return mismatch()
	}
}
