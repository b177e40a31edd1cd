// lower.go lowers a whole function: parameters are bound to argument registers, every operation is expanded by
// its strategy, the result is moved to the return registers and register pressure is legalized.

package riscv

import (
	"github.com/pkg/errors"

	"rvlower/src/backend/regfile"
	"rvlower/src/ir"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Allocator hands out virtual registers and is told about callee-saved registers the lowered code writes.
type Allocator interface {
	// RequestTemporary returns a fresh virtual register. For Wide the register v and v+1 form a low/high pair.
	RequestTemporary(c WidthClass) regfile.VReg

	// MarkClobbered records that the function body writes the physical register r.
	MarkClobbered(r regfile.PReg)
}

// operand holds the registers of a value. High is regfile.Invalid unless the value is 128 bits wide.
type operand = ir.Pair[regfile.VReg]

// synth accumulates the body of a function being lowered.
type synth struct {
	fn    *Func
	fs    FeatureSet
	alloc Allocator
	pairs *pairRegistry
}

// ---------------------
// ----- Functions -----
// ---------------------

// Lower lowers the function f for a target with features fs and calling convention abi. Temporaries are requested
// from alloc; the returned body still refers to virtual registers, which the allocator must resolve before Finalize.
func Lower(f *ir.Function, fs FeatureSet, abi ABI, alloc Allocator) (*Func, error) {
	if err := ir.Validate(f); err != nil {
		return nil, err
	}
	fn := &Func{
		Name:      f.Name,
		Signature: f.Signature(),
	}
	s := &synth{
		fn:    fn,
		fs:    fs,
		alloc: alloc,
		pairs: newPairRegistry(),
	}

	// Bind parameters to argument registers, low limb first.
	vals := make([]operand, 0, f.NumValues())
	next := 0
	for i1, e1 := range f.Params {
		n := 1
		if e1 == 128 {
			n = 2
		}
		if next+n > len(abi.Args) {
			return nil, errors.Wrapf(ir.ErrUnsupportedOperation,
				"function %s: parameter v%d (i%d) does not fit in %d argument registers", f.Name, i1, e1, len(abi.Args))
		}
		p := single(regfile.Fixed(abi.Args[next]))
		if n == 2 {
			p.High = regfile.Fixed(abi.Args[next+1])
			s.pairs.add(p)
		}
		next += n
		vals = append(vals, p)
		fn.Params = append(fn.Params, p)
	}

	for _, e1 := range f.Ops {
		st, err := Select(e1.Kind, e1.Width, fs)
		if err != nil {
			return nil, errors.Wrapf(err, "function %s", f.Name)
		}
		y := single(regfile.Invalid)
		if e1.Imm == nil {
			y = vals[e1.Args[1]]
		}
		vals = append(vals, st.lower(s, e1, vals[e1.Args[0]], y))
		fn.Strategies = append(fn.Strategies, st.Name)
	}

	// Move the return value to a0, or a0 and a1.
	r := vals[f.Return]
	fn.Result = single(regfile.Fixed(abi.Args[0]))
	s.move(fn.Result.Low, r.Low)
	if f.WidthOf(f.Return) == 128 {
		fn.Result.High = regfile.Fixed(abi.Args[1])
		s.move(fn.Result.High, r.High)
	}

	if err := s.pairs.check(fn.Body); err != nil {
		return nil, errors.Wrapf(err, "function %s", f.Name)
	}
	if err := verifySSA(fn.Body); err != nil {
		return nil, errors.Wrapf(err, "function %s", f.Name)
	}
	if err := legalize(fn, abi, alloc); err != nil {
		return nil, err
	}
	return fn, nil
}

// single returns the operand of a value held in one register.
func single(v regfile.VReg) operand {
	return operand{Low: v, High: regfile.Invalid}
}

// emit appends in to the function body.
func (s *synth) emit(in *Inst) {
	s.fn.Body = append(s.fn.Body, in)
}

// temp returns a fresh virtual register.
func (s *synth) temp() regfile.VReg {
	return s.alloc.RequestTemporary(Native)
}

// wide returns a fresh register pair recorded as a single 128-bit value.
func (s *synth) wide() operand {
	v := s.alloc.RequestTemporary(Wide)
	p := operand{Low: v, High: v + 1}
	s.pairs.add(p)
	return p
}

// r emits "op rd,a,b" into a fresh register rd and returns rd.
func (s *synth) r(op Op, a, b regfile.VReg) regfile.VReg {
	rd := s.temp()
	s.emit(NewR(op, rd, a, b))
	return rd
}

// i emits "op rd,a,imm" into a fresh register rd and returns rd.
func (s *synth) i(op Op, a regfile.VReg, imm int64) regfile.VReg {
	rd := s.temp()
	s.emit(NewI(op, rd, a, imm))
	return rd
}

// unary emits "op rd,a" into a fresh register rd and returns rd.
func (s *synth) unary(op Op, a regfile.VReg) regfile.VReg {
	rd := s.temp()
	s.emit(NewUnary(op, rd, a))
	return rd
}

// u emits "op rd,imm" into a fresh register rd and returns rd.
func (s *synth) u(op Op, imm int64) regfile.VReg {
	rd := s.temp()
	s.emit(NewU(op, rd, imm))
	return rd
}

// sel emits "rd = c ? t : f" into a fresh register rd and returns rd.
func (s *synth) sel(t, f regfile.VReg, c Cond) regfile.VReg {
	rd := s.temp()
	s.emit(NewSelect(rd, t, f, c))
	return rd
}

// move emits "mv rd,a" unless rd and a are the same register.
func (s *synth) move(rd, a regfile.VReg) {
	if rd != a {
		s.emit(NewUnary(OpMv, rd, a))
	}
}

// zero returns the hard-wired zero register.
func zero() regfile.VReg {
	return regfile.Fixed(Zero)
}
