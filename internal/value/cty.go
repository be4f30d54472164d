package value

import (
	"fmt"
	"math"

	"github.com/zclconf/go-cty/cty"
)

// FromCty converts an evaluated HCL expression result into a Value.
// Integral numbers that fit become I64, everything else numeric becomes
// Float; tuples/lists become Arrays and objects/maps become Maps with the
// source's attribute order lost to cty's own canonical ordering.
func FromCty(v cty.Value) (Value, error) {
	if v.IsNull() {
		return NullVal(), nil
	}
	if !v.IsKnown() {
		return Value{}, fmt.Errorf("unknown value cannot be converted")
	}

	ty := v.Type()
	switch {
	case ty == cty.Bool:
		return BoolVal(v.True()), nil
	case ty == cty.String:
		return StringVal(v.AsString()), nil
	case ty == cty.Number:
		bf := v.AsBigFloat()
		if bf.IsInt() {
			if i, acc := bf.Int64(); acc == 0 {
				return I64Val(i), nil
			}
			if u, acc := bf.Uint64(); acc == 0 {
				return U64Val(u), nil
			}
		}
		f, _ := bf.Float64()
		if math.IsInf(f, 0) {
			return Value{}, fmt.Errorf("number out of range")
		}
		return FloatVal(f), nil
	case ty.IsTupleType() || ty.IsListType() || ty.IsSetType():
		var elems []Value
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			elem, err := FromCty(ev)
			if err != nil {
				return Value{}, err
			}
			elems = append(elems, elem)
		}
		return ArrayVal(elems...), nil
	case ty.IsObjectType() || ty.IsMapType():
		var entries []MapEntry
		for it := v.ElementIterator(); it.Next(); {
			kv, ev := it.Element()
			elem, err := FromCty(ev)
			if err != nil {
				return Value{}, err
			}
			entries = append(entries, MapEntry{K: kv.AsString(), V: elem})
		}
		return MapVal(entries...), nil
	default:
		return Value{}, fmt.Errorf("unsupported cty type %s", ty.FriendlyName())
	}
}
