package value

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// The binary archive form of a Value is a two-element msgpack array of
// [kind, payload]. The explicit kind tag keeps I64/U64 and Empty/Null
// distinct, which plain msgpack typing cannot guarantee.

var (
	_ msgpack.CustomEncoder = (*Value)(nil)
	_ msgpack.CustomDecoder = (*Value)(nil)
)

// EncodeMsgpack implements msgpack.CustomEncoder.
func (v *Value) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeArrayLen(2); err != nil {
		return err
	}
	if err := enc.EncodeUint(uint64(v.kind)); err != nil {
		return err
	}
	switch v.kind {
	case KindEmpty, KindNull:
		return enc.EncodeNil()
	case KindBool:
		return enc.EncodeBool(v.b)
	case KindI64:
		return enc.EncodeInt(v.i)
	case KindU64:
		return enc.EncodeUint(v.u)
	case KindFloat:
		return enc.EncodeFloat64(v.f)
	case KindString, KindError:
		return enc.EncodeString(v.s)
	case KindArray:
		if err := enc.EncodeArrayLen(len(v.arr)); err != nil {
			return err
		}
		for i := range v.arr {
			if err := v.arr[i].EncodeMsgpack(enc); err != nil {
				return err
			}
		}
		return nil
	case KindMap:
		if err := enc.EncodeMapLen(v.m.Len()); err != nil {
			return err
		}
		for pair := v.m.Oldest(); pair != nil; pair = pair.Next() {
			if err := enc.EncodeString(pair.Key); err != nil {
				return err
			}
			val := pair.Value
			if err := val.EncodeMsgpack(enc); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unencodable value kind %s", v.kind)
	}
}

// DecodeMsgpack implements msgpack.CustomDecoder.
func (v *Value) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return err
	}
	if n != 2 {
		return fmt.Errorf("malformed value envelope: array length %d", n)
	}
	kindRaw, err := dec.DecodeUint64()
	if err != nil {
		return err
	}
	kind := Kind(kindRaw)

	switch kind {
	case KindEmpty:
		*v = EmptyVal()
		return dec.DecodeNil()
	case KindNull:
		*v = NullVal()
		return dec.DecodeNil()
	case KindBool:
		b, err := dec.DecodeBool()
		if err != nil {
			return err
		}
		*v = BoolVal(b)
		return nil
	case KindI64:
		i, err := dec.DecodeInt64()
		if err != nil {
			return err
		}
		*v = I64Val(i)
		return nil
	case KindU64:
		u, err := dec.DecodeUint64()
		if err != nil {
			return err
		}
		*v = U64Val(u)
		return nil
	case KindFloat:
		f, err := dec.DecodeFloat64()
		if err != nil {
			return err
		}
		*v = FloatVal(f)
		return nil
	case KindString, KindError:
		s, err := dec.DecodeString()
		if err != nil {
			return err
		}
		if kind == KindError {
			*v = ErrorVal(s)
		} else {
			*v = StringVal(s)
		}
		return nil
	case KindArray:
		count, err := dec.DecodeArrayLen()
		if err != nil {
			return err
		}
		elems := make([]Value, count)
		for i := 0; i < count; i++ {
			if err := elems[i].DecodeMsgpack(dec); err != nil {
				return err
			}
		}
		*v = Value{kind: KindArray, arr: elems}
		return nil
	case KindMap:
		count, err := dec.DecodeMapLen()
		if err != nil {
			return err
		}
		entries := make([]MapEntry, count)
		for i := 0; i < count; i++ {
			key, err := dec.DecodeString()
			if err != nil {
				return err
			}
			var elem Value
			if err := elem.DecodeMsgpack(dec); err != nil {
				return err
			}
			entries[i] = MapEntry{K: key, V: elem}
		}
		*v = MapVal(entries...)
		return nil
	default:
		return fmt.Errorf("undecodable value kind %d", kindRaw)
	}
}
