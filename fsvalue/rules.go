package fsvalue

import "github.com/pkg/errors"

// ErrTypeMismatch is returned by arithmetic and comparison helpers when the
// operand kinds are incompatible with the requested opcode (spec.md §7
// "Type error").
var ErrTypeMismatch = errors.New("flexscript: operand types incompatible with operation")

func asFloat(v Value) (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	}
	return 0, false
}

// Add/Sub/Mul/Div implement §4.6: Int op Int -> Int; any Float present
// promotes both operands to Float; integer division truncates toward
// zero (Go's native / already does this for integers).
func Add(a, b Value) (Value, error) { return arith(a, b, func(x, y int64) int64 { return x + y }, func(x, y float64) float64 { return x + y }) }
func Sub(a, b Value) (Value, error) { return arith(a, b, func(x, y int64) int64 { return x - y }, func(x, y float64) float64 { return x - y }) }
func Mul(a, b Value) (Value, error) { return arith(a, b, func(x, y int64) int64 { return x * y }, func(x, y float64) float64 { return x * y }) }
func Div(a, b Value) (Value, error) {
	return arith(a, b, func(x, y int64) int64 { return x / y }, func(x, y float64) float64 { return x / y })
}

func arith(a, b Value, iop func(int64, int64) int64, fop func(float64, float64) float64) (Value, error) {
	if a.kind == KindInt && b.kind == KindInt {
		return Int(iop(a.i, b.i)), nil
	}
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if !aok || !bok {
		return Value{}, ErrTypeMismatch
	}
	return Float(fop(af, bf)), nil
}

// Equal implements Cmp's equality rules (spec.md §4.6): same-tagged
// numerics compare naturally with cross-promotion; Bool/Str compare by
// value; any other pairing is a runtime error.
func Equal(a, b Value) (bool, error) {
	switch {
	case a.kind == KindInt && b.kind == KindInt:
		return a.i == b.i, nil
	case a.kind == KindBool && b.kind == KindBool:
		return a.b == b.b, nil
	case a.kind == KindStr && b.kind == KindStr:
		return a.s == b.s, nil
	}
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return af == bf, nil
	}
	return false, ErrTypeMismatch
}

// Compare implements the ordering resolution of SPEC_FULL.md §9 item 1
// (BinLt/BinLte/BinGt/BinGte): numerics cross-promote as above; Str
// compares lexically; any other pairing is a runtime error.
func Compare(a, b Value) (int, error) {
	if a.kind == KindStr && b.kind == KindStr {
		switch {
		case a.s < b.s:
			return -1, nil
		case a.s > b.s:
			return 1, nil
		default:
			return 0, nil
		}
	}
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if !aok || !bok {
		return 0, ErrTypeMismatch
	}
	switch {
	case af < bf:
		return -1, nil
	case af > bf:
		return 1, nil
	default:
		return 0, nil
	}
}

// Truthy implements JumpIfFalse's truthiness rules (spec.md §4.6, with
// open question 3 resolved per SPEC_FULL.md §9 item 3). The empty-compound
// check for List/Obj requires dereferencing the Ptr, so it takes an
// optional resolver; Lookup is nil-safe for non-Ptr values.
func Truthy(v Value, lookup func(Ptr) (Value, bool)) bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNone:
		return false
	case KindInt:
		return v.i > 0
	case KindFloat:
		return v.f != 0
	case KindStr:
		return v.s != ""
	case KindPtr:
		if lookup == nil {
			return true
		}
		target, ok := lookup(v.ptr)
		if !ok {
			return true
		}
		switch target.kind {
		case KindList:
			return len(target.list) > 0
		case KindObj:
			return len(target.obj.Props) > 0
		}
		return true
	default:
		return true
	}
}
