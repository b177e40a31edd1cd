// conditional.go provides the min/max strategies and the extension helpers they share with the rotates.

package riscv

import (
	"rvlower/src/backend/regfile"
	"rvlower/src/ir"
)

// minMaxOps maps the min/max kinds to their Zbb instruction.
var minMaxOps = map[ir.Kind]Op{
	ir.SignedMin:   OpMin,
	ir.SignedMax:   OpMax,
	ir.UnsignedMin: OpMinu,
	ir.UnsignedMax: OpMaxu,
}

// lowerMinMaxZbb normalizes narrow operands and emits a single min, max, minu or maxu.
func lowerMinMaxZbb(s *synth, op *ir.Operation, x, y operand) operand {
	xn, yn := s.normalize(op, x.Low, y.Low)
	return single(s.r(minMaxOps[op.Kind], xn, yn))
}

// lowerMinMaxSelect normalizes narrow operands and selects one of them on the outcome of a comparison. For min
// the first operand is chosen if it is less than the second, for max if the second is less than the first.
func lowerMinMaxSelect(s *synth, op *ir.Operation, x, y operand) operand {
	xn, yn := s.normalize(op, x.Low, y.Low)
	c := Cond{Kind: CondLtu, A: xn, B: yn}
	if op.Kind.IsSigned() {
		c.Kind = CondLt
	}
	if !op.Kind.IsMin() {
		c.A, c.B = yn, xn
	}
	return single(s.sel(xn, yn, c))
}

// lowerMinMaxPair compares 128-bit register pairs limb by limb and selects the winning pair as a whole. The high
// limbs decide the order unless they are equal, in which case the unsigned order of the low limbs does:
//
//	first_less = high0 == high1 ? low0 <u low1 : high0 < high1
//
// where the high comparison is signed for signed kinds.
func lowerMinMaxPair(s *synth, op *ir.Operation, x, y operand) operand {
	a, b := x, y
	if !op.Kind.IsMin() {
		a, b = y, x
	}
	slt := OpSltu
	if op.Kind.IsSigned() {
		slt = OpSlt
	}

	sc := s.r(slt, a.High, b.High)
	mc := s.r(OpSltu, a.Low, b.Low)
	he := s.r(OpXor, x.High, y.High)
	p := s.sel(mc, sc, Cond{Kind: CondEq, A: he, B: zero()})

	res := s.wide()
	s.emit(NewSelectPair(res, x, y, Cond{Kind: CondNe, A: p, B: zero()}))
	return res
}

// normalize returns the native width views of the min/max operands x and y: sign extended for signed kinds, zero
// extended otherwise. 64-bit operands are returned unchanged.
func (s *synth) normalize(op *ir.Operation, x, y regfile.VReg) (regfile.VReg, regfile.VReg) {
	if op.Width == 64 {
		return x, y
	}
	var res []regfile.VReg
	if op.Kind.IsSigned() {
		res = s.signExtend(op.Width, x, y)
	} else {
		res = s.zeroExtend(op.Width, x, y)
	}
	return res[0], res[1]
}

// signExtend returns the sign extension of the low w bits of every register in vs.
func (s *synth) signExtend(w int, vs ...regfile.VReg) []regfile.VReg {
	res := make([]regfile.VReg, len(vs))
	for i1, e1 := range vs {
		switch {
		case w == 32:
			res[i1] = s.unary(OpSextw, e1)
		case w == 8 && s.fs.Has(HasZbb):
			res[i1] = s.unary(OpSextb, e1)
		case w == 16 && s.fs.Has(HasZbb):
			res[i1] = s.unary(OpSexth, e1)
		default:
			t := s.i(OpSlli, e1, int64(64-w))
			res[i1] = s.i(OpSrai, t, int64(64-w))
		}
	}
	return res
}

// zeroExtend returns the zero extension of the low w bits of every register in vs. Without a suitable extension
// instruction the registers are masked with (1<<w)-1, materialized once and shared by all of them.
func (s *synth) zeroExtend(w int, vs ...regfile.VReg) []regfile.VReg {
	res := make([]regfile.VReg, len(vs))
	var ext Op
	switch {
	case w == 8:
		for i1, e1 := range vs {
			res[i1] = s.i(OpAndi, e1, 0xff)
		}
		return res
	case w == 16 && s.fs.Has(HasZbb):
		ext = OpZexth
	case w == 32 && s.fs.Has(HasZba):
		ext = OpZextw
	default:
		m := s.mask(w)
		for i1, e1 := range vs {
			res[i1] = s.r(OpAnd, e1, m)
		}
		return res
	}
	for i1, e1 := range vs {
		res[i1] = s.unary(ext, e1)
	}
	return res
}

// mask materializes (1<<w)-1 for w of 16 or 32.
func (s *synth) mask(w int) regfile.VReg {
	if w == 16 {
		m := s.u(OpLui, 16)
		return s.i(OpAddiw, m, -1)
	}
	m := s.u(OpLi, -1)
	return s.i(OpSrli, m, int64(64-w))
}
