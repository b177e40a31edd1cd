// Package lir provides the register allocator used by the lowering driver: virtual registers are handed out on
// request and later assigned to a pool of scratch registers by linear scan over their live intervals.
package lir

import (
	"fmt"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/pkg/errors"

	"rvlower/src/backend/regfile"
	"rvlower/src/backend/riscv"
	"rvlower/src/ir"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Allocator implements riscv.Allocator. One Allocator serves exactly one function.
type Allocator struct {
	pool      []regfile.PReg                // Scratch registers available to virtual registers, in preference order.
	next      regfile.VReg                  // Next virtual register to hand out.
	clobbered mapset.Set[regfile.PReg]      // Physical registers written by the function.
	assigned  map[regfile.VReg]regfile.PReg // Result of Assign.
}

// ---------------------
// ----- Functions -----
// ---------------------

// NewAllocator returns an Allocator assigning virtual registers to the registers of pool.
func NewAllocator(pool []regfile.PReg) *Allocator {
	return &Allocator{
		pool:      append([]regfile.PReg(nil), pool...),
		next:      regfile.FirstVirtual,
		clobbered: mapset.NewThreadUnsafeSet[regfile.PReg](),
		assigned:  make(map[regfile.VReg]regfile.PReg),
	}
}

// RequestTemporary returns a fresh virtual register. A Wide request reserves two consecutive registers.
func (a *Allocator) RequestTemporary(c riscv.WidthClass) regfile.VReg {
	v := a.next
	a.next++
	if c == riscv.Wide {
		a.next++
	}
	return v
}

// MarkClobbered records that the function writes r.
func (a *Allocator) MarkClobbered(r regfile.PReg) {
	a.clobbered.Add(r)
}

// Clobbered returns the physical registers written by the function, in ascending order.
func (a *Allocator) Clobbered() []regfile.PReg {
	res := a.clobbered.ToSlice()
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}

// Assigned returns the physical register assigned to v by Assign.
func (a *Allocator) Assigned(v regfile.VReg) (regfile.PReg, bool) {
	r, ok := a.assigned[v]
	return r, ok
}

// Assign resolves every virtual register of fn.Body to a register of the pool by linear scan. Intervals are
// visited by start point; registers of intervals ending before the current start are released, and the lowest
// released pool register is taken. Running out of registers means the body was not legalized and is an error
// wrapping ir.ErrInternalConsistency.
func (a *Allocator) Assign(fn *riscv.Func) error {
	free := make([]bool, len(a.pool))
	for i1 := range free {
		free[i1] = true
	}
	var active []riscv.Interval

	for _, e1 := range riscv.Intervals(fn.Body) {
		// Release registers of intervals that ended.
		kept := active[:0]
		for _, e2 := range active {
			if !e2.Overlaps(e1) {
				free[a.poolIndex(a.assigned[e2.Reg])] = true
			} else {
				kept = append(kept, e2)
			}
		}
		active = kept

		idx := -1
		for i2, e2 := range free {
			if e2 {
				idx = i2
				break
			}
		}
		if idx < 0 {
			return errors.Wrapf(ir.ErrInternalConsistency, "function %s: no scratch register left for %s, "+
				"%d live", fn.Name, e1.Reg, len(active))
		}
		free[idx] = false
		a.assigned[e1.Reg] = a.pool[idx]
		a.clobbered.Add(a.pool[idx])
		active = append(active, e1)
	}

	for _, e1 := range fn.Body {
		e1.Map(func(v regfile.VReg) regfile.VReg {
			if !v.IsVirtual() {
				return v
			}
			if r, ok := a.assigned[v]; ok {
				return regfile.Fixed(r)
			}
			panic(fmt.Sprintf("BUG: %s has no live interval", v))
		})
	}
	return nil
}

// poolIndex returns the index of r in the pool.
func (a *Allocator) poolIndex(r regfile.PReg) int {
	for i1, e1 := range a.pool {
		if e1 == r {
			return i1
		}
	}
	panic(fmt.Sprintf("BUG: %s is not a scratch register", r))
}
