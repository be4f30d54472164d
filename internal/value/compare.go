package value

import "math"

// Equal reports variant-preserving equality. Values of different kinds are
// never equal; floats compare by total order, so NaN equals NaN.
func (v Value) Equal(o Value) bool {
	return Compare(v, o) == 0
}

// Compare imposes a total order over all values. Values of different kinds
// order by kind tag; within a kind, payloads order naturally. Floats use
// the IEEE-754 total-order predicate, so the ordering is total even in the
// presence of NaN and signed zero.
func Compare(a, b Value) int {
	if a.kind != b.kind {
		return cmpOrd(uint64(a.kind), uint64(b.kind))
	}
	switch a.kind {
	case KindEmpty, KindNull:
		return 0
	case KindBool:
		return cmpBool(a.b, b.b)
	case KindI64:
		return cmpOrd(uint64(a.i)^(1<<63), uint64(b.i)^(1<<63))
	case KindU64:
		return cmpOrd(a.u, b.u)
	case KindFloat:
		return cmpOrd(uint64(totalOrderKey(a.f))^(1<<63), uint64(totalOrderKey(b.f))^(1<<63))
	case KindString, KindError:
		return cmpString(a.s, b.s)
	case KindArray:
		return cmpArray(a.arr, b.arr)
	case KindMap:
		return cmpMap(a, b)
	default:
		return 0
	}
}

// totalOrderKey maps a float onto an int64 whose natural order is the
// IEEE-754 totalOrder relation: -NaN < -Inf < ... < -0 < +0 < ... < +NaN.
func totalOrderKey(f float64) int64 {
	bits := int64(math.Float64bits(f))
	bits ^= int64(uint64(bits>>63) >> 1)
	return bits
}

func cmpOrd(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

func cmpString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpArray(a, b []Value) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return cmpOrd(uint64(len(a)), uint64(len(b)))
}

// cmpMap orders maps entry-wise in insertion order: first by key, then by
// value, shorter map first on a shared prefix.
func cmpMap(a, b Value) int {
	pa, pb := a.m.Oldest(), b.m.Oldest()
	for pa != nil && pb != nil {
		if c := cmpString(pa.Key, pb.Key); c != 0 {
			return c
		}
		if c := Compare(pa.Value, pb.Value); c != 0 {
			return c
		}
		pa, pb = pa.Next(), pb.Next()
	}
	switch {
	case pa != nil:
		return 1
	case pb != nil:
		return -1
	default:
		return 0
	}
}
