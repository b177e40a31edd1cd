// eval.go implements the reference semantics of every operation on 128-bit limb pairs. The backend is tested
// against these functions.

package ir

import (
	"math/bits"

	"github.com/containerd/errdefs"
	"github.com/pkg/errors"
)

// Truncate returns v with every bit at or above w cleared.
func Truncate(v Int128, w int) Int128 {
	switch {
	case w >= 128:
		return v
	case w > 64:
		return Int128{Low: v.Low, High: v.High & (1<<(w-64) - 1)}
	case w == 64:
		return Int128{Low: v.Low}
	default:
		return Int128{Low: v.Low & (1<<w - 1)}
	}
}

// SignExtend returns the 128-bit sign extension of the low w bits of v.
func SignExtend(v Int128, w int) Int128 {
	switch {
	case w >= 128:
		return v
	case w == 64:
		return FromInt64(int64(v.Low))
	default:
		s := 64 - w
		return FromInt64(int64(v.Low<<s) >> s)
	}
}

// LessUnsigned returns true if x < y as unsigned 128-bit integers.
func LessUnsigned(x, y Int128) bool {
	if x.High != y.High {
		return x.High < y.High
	}
	return x.Low < y.Low
}

// LessSigned returns true if x < y as two's complement 128-bit integers.
func LessSigned(x, y Int128) bool {
	if x.High != y.High {
		return int64(x.High) < int64(y.High)
	}
	return x.Low < y.Low
}

// RotateLeft128 rotates v left by n modulo 128.
func RotateLeft128(v Int128, n uint) Int128 {
	n %= 128
	if n >= 64 {
		v = v.Swap()
		n -= 64
	}
	if n == 0 {
		return v
	}
	return Int128{
		Low:  v.Low<<n | v.High>>(64-n),
		High: v.High<<n | v.Low>>(64-n),
	}
}

// rotateLeft rotates the low w bits of v left by n modulo w.
func rotateLeft(v Int128, n uint64, w int) Int128 {
	if w == 128 {
		return RotateLeft128(v, uint(n%128))
	}
	x := v.Low & (^uint64(0) >> (64 - w))
	k := int(n % uint64(w))
	if k == 0 {
		return Int128{Low: x}
	}
	if w == 64 {
		return Int128{Low: bits.RotateLeft64(x, k)}
	}
	return Truncate(Int128{Low: x<<k | x>>(w-k)}, w)
}

// Eval computes the result of an operation of kind k and width w on x and y. Operands are interpreted through
// their low w bits only; the result is zero extended. For rotates y holds the shift amount and only its low limb
// is significant.
func Eval(k Kind, w int, x, y Int128) Int128 {
	switch k {
	case RotateLeft:
		return rotateLeft(x, y.Low, w)
	case RotateRight:
		// Rotating right by n equals rotating left by w-n.
		n := y.Low % uint64(w)
		return rotateLeft(x, uint64(w)-n, w)
	}

	// x is selected if it is ordered before y: x < y for min, y < x for max.
	a, b := x, y
	if !k.IsMin() {
		a, b = y, x
	}
	var less bool
	if k.IsSigned() {
		less = LessSigned(SignExtend(a, w), SignExtend(b, w))
	} else {
		less = LessUnsigned(Truncate(a, w), Truncate(b, w))
	}
	if less {
		return Truncate(x, w)
	}
	return Truncate(y, w)
}

// EvalImm computes a rotate by an immediate amount. Negative amounts rotate the other way round.
func EvalImm(k Kind, w int, x Int128, imm int64) Int128 {
	n := imm % int64(w)
	if n < 0 {
		n += int64(w)
	}
	return Eval(k, w, x, Int128{Low: uint64(n)})
}

// EvalFunction interprets f on the given arguments and returns the zero extended return value.
func EvalFunction(f *Function, args []Int128) (Int128, error) {
	if len(args) != len(f.Params) {
		return Int128{}, errors.Wrapf(errdefs.ErrInvalidArgument, "function %s takes %d arguments, got %d",
			f.Name, len(f.Params), len(args))
	}
	vals := make([]Int128, 0, f.NumValues())
	for i1, e1 := range args {
		vals = append(vals, Truncate(e1, f.Params[i1]))
	}
	for _, e1 := range f.Ops {
		var res Int128
		if e1.Imm != nil {
			res = EvalImm(e1.Kind, e1.Width, vals[e1.Args[0]], *e1.Imm)
		} else {
			res = Eval(e1.Kind, e1.Width, vals[e1.Args[0]], vals[e1.Args[1]])
		}
		vals = append(vals, res)
	}
	return vals[f.Return], nil
}
