// emit.go turns an allocated function into machine instructions. Pseudo-instructions are expanded into base
// encodings and selects into conditional branches over moves.

package riscv

import (
	"github.com/pkg/errors"

	"rvlower/src/backend/regfile"
	"rvlower/src/ir"
	"rvlower/src/util"
)

// Finalize emits the frame of fn and returns its machine instructions: prologue, body, epilogue and return.
// Every register of the body must have been resolved to a physical register. The returned list only holds
// instructions with a hardware encoding and label definitions.
func Finalize(fn *Func) ([]*Inst, error) {
	for i1, e1 := range fn.Body {
		for _, e2 := range append(e1.Defs(), e1.Uses()...) {
			if !e2.IsFixed() {
				return nil, errors.Wrapf(ir.ErrInternalConsistency, "function %s: instruction %d: %s has unallocated "+
					"register %s", fn.Name, i1, e1, e2)
			}
		}
	}

	fn.Prologue, fn.Epilogue = fn.Frame.Emit()
	all := make([]*Inst, 0, len(fn.Prologue)+len(fn.Body)+len(fn.Epilogue)+1)
	all = append(all, fn.Prologue...)
	all = append(all, fn.Body...)
	all = append(all, fn.Epilogue...)
	all = append(all, newInst(OpRet))

	var res []*Inst
	for _, e1 := range all {
		ins, err := fn.expand(e1)
		if err != nil {
			return nil, errors.Wrapf(err, "function %s", fn.Name)
		}
		res = append(res, ins...)
	}
	return res, nil
}

// expand returns the machine instructions implementing in.
func (fn *Func) expand(in *Inst) ([]*Inst, error) {
	zero := regfile.Fixed(Zero)
	switch in.Op {
	case OpMv:
		if in.Rd == in.Rs1 {
			return nil, nil
		}
		return []*Inst{NewI(OpAddi, in.Rd, in.Rs1, 0)}, nil
	case OpNeg:
		return []*Inst{NewR(OpSub, in.Rd, zero, in.Rs1)}, nil
	case OpSextw:
		return []*Inst{NewI(OpAddiw, in.Rd, in.Rs1, 0)}, nil
	case OpZextw:
		return []*Inst{NewR(OpAdduw, in.Rd, in.Rs1, zero)}, nil
	case OpLi:
		return loadImmediate(in.Rd, in.Imm)
	case OpRet:
		return []*Inst{NewI(OpJalr, zero, regfile.Fixed(RA), 0)}, nil
	case OpJ:
		j := newInst(OpJal)
		j.Rd, j.Label = zero, in.Label
		return []*Inst{j}, nil
	case OpSelect:
		return fn.expandSelect(in.Cond, []regfile.VReg{in.Rd}, []regfile.VReg{in.Rs1}, []regfile.VReg{in.Rs2}), nil
	case OpSelectPair:
		dst, t, f := in.Dst.Limbs(), in.T.Limbs(), in.F.Limbs()
		return fn.expandSelect(in.Cond, dst[:], t[:], f[:]), nil
	}
	return []*Inst{in}, nil
}

// expandSelect returns a branch over the moves dst = f when c holds, followed by the moves dst = t. Moves of a
// register to itself are dropped; when one arm is empty a single branch skips the other.
func (fn *Func) expandSelect(c *Cond, dst, t, f []regfile.VReg) []*Inst {
	moves := func(src []regfile.VReg) []*Inst {
		var res []*Inst
		for i1, e1 := range src {
			if dst[i1] != e1 {
				res = append(res, NewI(OpAddi, dst[i1], e1, 0))
			}
		}
		return res
	}
	tm, fm := moves(t), moves(f)

	var res []*Inst
	switch {
	case len(tm) == 0 && len(fm) == 0:
	case len(tm) == 0:
		join := fn.Labels.New(util.LabelJoin)
		res = append(res, NewBranch(c.Kind, c.A, c.B, join))
		res = append(res, fm...)
		res = append(res, NewLabel(join))
	case len(fm) == 0:
		join := fn.Labels.New(util.LabelJoin)
		res = append(res, NewBranch(c.Kind.Inverse(), c.A, c.B, join))
		res = append(res, tm...)
		res = append(res, NewLabel(join))
	default:
		taken := fn.Labels.New(util.LabelTaken)
		join := fn.Labels.New(util.LabelJoin)
		res = append(res, NewBranch(c.Kind, c.A, c.B, taken))
		res = append(res, fm...)
		j := newInst(OpJal)
		j.Rd, j.Label = regfile.Fixed(Zero), join
		res = append(res, j, NewLabel(taken))
		res = append(res, tm...)
		res = append(res, NewLabel(join))
	}
	return res
}

// loadImmediate materializes a 32-bit signed constant in rd.
func loadImmediate(rd regfile.VReg, imm int64) ([]*Inst, error) {
	zero := regfile.Fixed(Zero)
	if fitsImm12(imm) {
		return []*Inst{NewI(OpAddi, rd, zero, imm)}, nil
	}
	if imm < -1<<31 || imm >= 1<<31 {
		return nil, errors.Wrapf(ir.ErrUnsupportedOperation, "li %s,%d: constant exceeds 32 bits", rd, imm)
	}
	hi := (imm + 0x800) >> 12
	lo := imm - hi<<12
	res := []*Inst{NewU(OpLui, rd, hi&0xfffff)}
	if lo != 0 {
		res = append(res, NewI(OpAddiw, rd, rd, lo))
	}
	return res, nil
}
