// legalize.go keeps the number of simultaneously live temporaries within the caller-saved scratch budget by
// moving values into callee-saved registers.

package riscv

import (
	"github.com/pkg/errors"

	"rvlower/src/backend/regfile"
	"rvlower/src/ir"
)

// legalize pins virtual registers of fn.Body to callee-saved registers until no more than len(abi.Scratch)
// virtual registers are live at any point. At the first point exceeding the budget, the live register with the
// furthest last use is pinned to the next unused register of abi.CalleeSaved. The register is reported to alloc
// and saved by the function's frame. The pressure left for the scratch registers is recorded in fn.Pressure.
func legalize(fn *Func, abi ABI, alloc Allocator) error {
	budget := len(abi.Scratch)
	next := 0 // Next callee-saved register to hand out.
	for {
		ivs := Intervals(fn.Body)
		p, live := firstOverflow(ivs, budget)
		if p < 0 {
			fn.Pressure = MaxPressure(ivs)
			return nil
		}
		if next >= len(abi.CalleeSaved) {
			return errors.Wrapf(ir.ErrUnsupportedOperation, "function %s: %d values live at point %d exceed %d "+
				"scratch and %d callee-saved registers", fn.Name, len(live), p, budget, len(abi.CalleeSaved))
		}

		victim := live[0]
		for _, e1 := range live[1:] {
			if e1.End > victim.End || (e1.End == victim.End && e1.Reg < victim.Reg) {
				victim = e1
			}
		}

		r := abi.CalleeSaved[next]
		next++
		alloc.MarkClobbered(r)
		fn.Frame.Request(r)
		for _, e1 := range fn.Body {
			e1.Rename(victim.Reg, regfile.Fixed(r))
		}
	}
}
