// expression.go provides the rotate strategies.

package riscv

import (
	"rvlower/src/backend/regfile"
	"rvlower/src/ir"
)

// rotlAmount returns the immediate amount of a rotate expressed as a left rotate, reduced modulo the width.
func rotlAmount(op *ir.Operation) int64 {
	w := int64(op.Width)
	k := *op.Imm % w
	if k < 0 {
		k += w
	}
	if op.Kind == ir.RotateRight {
		k = (w - k) % w
	}
	return k
}

// lowerRotateZbb rotates a 64-bit value with a single rol, ror or rori.
func lowerRotateZbb(s *synth, op *ir.Operation, x, y operand) operand {
	return rotateDirect(s, op, x, y, OpRol, OpRor, OpRori)
}

// lowerRotateWordZbb rotates a 32-bit value with a single rolw, rorw or roriw. The result is the sign extended
// 32-bit value.
func lowerRotateWordZbb(s *synth, op *ir.Operation, x, y operand) operand {
	return rotateDirect(s, op, x, y, OpRolw, OpRorw, OpRoriw)
}

// rotateDirect emits a single rotate instruction. There is no left rotate by immediate, so immediate amounts are
// converted to a right rotate.
func rotateDirect(s *synth, op *ir.Operation, x, y operand, rol, ror, rori Op) operand {
	if op.Imm != nil {
		k := rotlAmount(op)
		if k == 0 {
			return single(s.unary(OpMv, x.Low))
		}
		return single(s.i(rori, x.Low, int64(op.Width)-k))
	}
	if op.Kind == ir.RotateRight {
		return single(s.r(ror, x.Low, y.Low))
	}
	return single(s.r(rol, x.Low, y.Low))
}

// lowerRotateShift rotates a 64-bit value by combining two opposite shifts.
func lowerRotateShift(s *synth, op *ir.Operation, x, y operand) operand {
	return rotateShift(s, op, x, y, OpSll, OpSrl, OpSlli, OpSrli)
}

// lowerRotateWordShift rotates a 32-bit value by combining two opposite 32-bit shifts.
func lowerRotateWordShift(s *synth, op *ir.Operation, x, y operand) operand {
	return rotateShift(s, op, x, y, OpSllw, OpSrlw, OpSlliw, OpSrliw)
}

// rotateShift emits (x << n) | (x >> (w-n)) for rotate left, and the mirrored form for rotate right. The shift
// instructions only read the low bits of the amount, so w-n is computed as -n, which is also exact for n = 0.
func rotateShift(s *synth, op *ir.Operation, x, y operand, sl, sr, sli, sri Op) operand {
	if op.Imm != nil {
		k := rotlAmount(op)
		if k == 0 {
			return single(s.unary(OpMv, x.Low))
		}
		t1 := s.i(sli, x.Low, k)
		t2 := s.i(sri, x.Low, int64(op.Width)-k)
		return single(s.r(OpOr, t1, t2))
	}

	first, second := sl, sr
	if op.Kind == ir.RotateRight {
		first, second = sr, sl
	}
	t1 := s.r(first, x.Low, y.Low)
	t2 := s.unary(OpNeg, y.Low)
	t3 := s.r(second, x.Low, t2)
	return single(s.r(OpOr, t1, t3))
}

// lowerRotateWiden rotates an 8 or 16-bit value inside a 64-bit register. The zero extended value is shifted left
// by the reduced amount n < w, after which the bits rotated out sit directly above bit w and are folded back:
// y = xz << n; r = y | (y >> w). Bits above w are left unspecified.
func lowerRotateWiden(s *synth, op *ir.Operation, x, y operand) operand {
	w := int64(op.Width)

	if op.Imm != nil {
		k := rotlAmount(op)
		if k == 0 {
			return single(s.unary(OpMv, x.Low))
		}
		xz := s.zeroExtend(op.Width, x.Low)[0]
		t1 := s.i(OpSlli, xz, k)
		t2 := s.i(OpSrli, t1, w)
		return single(s.r(OpOr, t1, t2))
	}

	xz := s.zeroExtend(op.Width, x.Low)[0]
	var n regfile.VReg
	if op.Kind == ir.RotateRight {
		// Rotating right by a equals rotating left by -a.
		t := s.unary(OpNeg, y.Low)
		n = s.i(OpAndi, t, w-1)
	} else {
		n = s.i(OpAndi, y.Low, w-1)
	}
	t1 := s.r(OpSll, xz, n)
	t2 := s.i(OpSrli, t1, w)
	return single(s.r(OpOr, t1, t2))
}

// lowerRotatePair rotates a 128-bit register pair. Rotating by 64 or more swaps the limbs, the remaining amount
// m < 64 shifts each limb with carry-in from the other one.
func lowerRotatePair(s *synth, op *ir.Operation, x, y operand) operand {
	if op.Imm != nil {
		k := rotlAmount(op)
		src := x
		if k >= 64 {
			src = x.Swap()
			k -= 64
		}
		var res operand
		if k == 0 {
			res = operand{
				Low:  s.unary(OpMv, src.Low),
				High: s.unary(OpMv, src.High),
			}
		} else {
			t1 := s.i(OpSlli, src.Low, k)
			t2 := s.i(OpSrli, src.High, 64-k)
			res.Low = s.r(OpOr, t1, t2)
			t3 := s.i(OpSlli, src.High, k)
			t4 := s.i(OpSrli, src.Low, 64-k)
			res.High = s.r(OpOr, t3, t4)
		}
		s.pairs.add(res)
		return res
	}

	// Bit 6 of the amount selects swapped or unswapped limbs. The low limb of the amount is enough: 2^64 is a
	// multiple of 128.
	a := y.Low
	c := s.i(OpAndi, a, 64)
	sw := s.wide()
	s.emit(NewSelectPair(sw, x.Swap(), x, Cond{Kind: CondNe, A: c, B: zero()}))

	// The carry-in (limb >> 1) >> (63-m) is zero for m = 0, where limb >> (64-m) would shift by 64.
	inv := s.i(OpXori, a, 63)
	sh, shi, carry := OpSll, OpSrli, OpSrl
	if op.Kind == ir.RotateRight {
		sh, shi, carry = OpSrl, OpSlli, OpSll
	}
	limb := func(v, other regfile.VReg) regfile.VReg {
		t1 := s.r(sh, v, a)
		t2 := s.i(shi, other, 1)
		t3 := s.r(carry, t2, inv)
		return s.r(OpOr, t1, t3)
	}
	res := operand{}
	res.Low = limb(sw.Low, sw.High)
	res.High = limb(sw.High, sw.Low)
	s.pairs.add(res)
	return res
}
