package riscv

import (
	"fmt"

	"github.com/pkg/errors"

	"rvlower/src/backend/regfile"
	"rvlower/src/ir"
	"rvlower/src/util"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// FrameState is the life cycle state of a Frame.
type FrameState int

// Frame records the callee-saved registers a function body uses and generates the matching save and restore
// sequences.
type Frame struct {
	state FrameState
	saved []regfile.PReg // Saved registers in the order they were requested.
}

// Func is a lowered function.
type Func struct {
	Name       string
	Signature  string
	Params     []ir.Pair[regfile.VReg] // Registers holding each parameter. High is regfile.Invalid unless 128-bit.
	Result     ir.Pair[regfile.VReg]   // Registers holding the return value.
	Body       []*Inst                 // Function body, without prologue and epilogue.
	Frame      Frame
	Strategies []string // Strategy chosen per operation, in program order.
	Pressure   int      // Most virtual registers live at once after legalization.
	Prologue   []*Inst  // Set by Finalize.
	Epilogue   []*Inst  // Set by Finalize.
	Labels     util.Labels
}

// ---------------------
// ----- Constants -----
// ---------------------

const (
	NoFrame        FrameState = iota // No callee-saved register is needed.
	FrameRequested                   // At least one register must be saved.
	FrameEmitted                     // Prologue and epilogue have been generated; the frame is final.
)

// ---------------------
// ----- Functions -----
// ---------------------

// String returns the name of the frame state.
func (s FrameState) String() string {
	switch s {
	case NoFrame:
		return "NoFrame"
	case FrameRequested:
		return "FrameRequested"
	case FrameEmitted:
		return "FrameEmitted"
	}
	return fmt.Sprintf("FrameState(%d)", int(s))
}

// State returns the current life cycle state of the frame.
func (f *Frame) State() FrameState {
	return f.state
}

// Request records that r must be saved in the prologue and restored in the epilogue. Requesting a register that
// is already saved has no effect. Requesting after the frame has been emitted would require laying out an already
// finalized stack frame again and panics with an error wrapping ir.ErrInternalConsistency.
func (f *Frame) Request(r regfile.PReg) {
	if f.state == FrameEmitted {
		panic(errors.Wrapf(ir.ErrInternalConsistency, "spill frame already emitted, cannot save %s", r))
	}
	for _, e1 := range f.saved {
		if e1 == r {
			return
		}
	}
	f.saved = append(f.saved, r)
	f.state = FrameRequested
}

// Saved returns the saved registers in request order.
func (f *Frame) Saved() []regfile.PReg {
	return append([]regfile.PReg(nil), f.saved...)
}

// Size returns the number of bytes the frame adds to the stack, 16-byte aligned.
func (f *Frame) Size() int {
	return alignStack(len(f.saved) * word64)
}

// Emit returns the prologue and epilogue and finalizes the frame. The prologue grows the stack and stores every
// saved register, the epilogue loads them back in reverse order and shrinks the stack. Both are empty when no
// register was requested.
func (f *Frame) Emit() (prologue, epilogue []*Inst) {
	if f.state == FrameEmitted {
		panic(errors.Wrap(ir.ErrInternalConsistency, "spill frame emitted twice"))
	}
	defer func() { f.state = FrameEmitted }()
	if len(f.saved) == 0 {
		return nil, nil
	}

	sp := regfile.Fixed(SP)
	n := f.Size()
	if !fitsImm12(int64(-n)) {
		panic(errors.Wrapf(ir.ErrInternalConsistency, "spill frame of %d bytes exceeds immediate range", n))
	}

	// Store registers top down, remembering the slots to restore them from.
	type slot struct {
		r   regfile.PReg
		off int64
	}
	st := util.Stack[slot]{}
	prologue = append(prologue, NewI(OpAddi, sp, sp, int64(-n)))
	for i1, e1 := range f.saved {
		off := int64(n - word64*(i1+1))
		prologue = append(prologue, NewStore(regfile.Fixed(e1), sp, off))
		st.Push(slot{r: e1, off: off})
	}

	for s, ok := st.Pop(); ok; s, ok = st.Pop() {
		epilogue = append(epilogue, NewLoad(regfile.Fixed(s.r), sp, s.off))
	}
	epilogue = append(epilogue, NewI(OpAddi, sp, sp, int64(n)))
	return prologue, epilogue
}

// VCode returns the function in VCode form: prologue, body, epilogue and return. Finalize must have been called.
func (fn *Func) VCode() string {
	all := make([]*Inst, 0, len(fn.Prologue)+len(fn.Body)+len(fn.Epilogue)+1)
	all = append(all, fn.Prologue...)
	all = append(all, NewLabel("block0"))
	all = append(all, fn.Body...)
	all = append(all, fn.Epilogue...)
	all = append(all, newInst(OpRet))
	return Listing(all)
}
