// live.go computes live intervals of virtual registers in a straight-line function body.
//
// Instruction i reads its sources at point 2i and writes its destinations at point 2i+1. An instruction whose
// destinations must not overlap its sources (see Inst.EarlyDef) writes at 2i instead. A register that is read by
// instruction i for the last time may therefore be reused by the destination of the same instruction.

package riscv

import (
	"sort"

	"github.com/pkg/errors"

	"rvlower/src/backend/regfile"
	"rvlower/src/ir"
)

// Interval is the live range [Start, End] of a virtual register.
type Interval struct {
	Reg   regfile.VReg
	Start int // Definition point.
	End   int // Last use point, or Start if the register is never read.
}

// Overlaps returns true if iv and o are live at the same point.
func (iv Interval) Overlaps(o Interval) bool {
	return iv.Start <= o.End && o.Start <= iv.End
}

// Intervals returns the live interval of every virtual register in body, ordered by start point and register.
// Fixed registers are not included.
func Intervals(body []*Inst) []Interval {
	m := make(map[regfile.VReg]*Interval)
	for i1, e1 := range body {
		for _, e2 := range e1.Uses() {
			if iv, ok := m[e2]; ok {
				iv.End = 2 * i1
			}
		}
		def := 2*i1 + 1
		if e1.EarlyDef() {
			def = 2 * i1
		}
		for _, e2 := range e1.Defs() {
			if !e2.IsVirtual() {
				continue
			}
			if _, ok := m[e2]; !ok {
				m[e2] = &Interval{Reg: e2, Start: def, End: def}
			}
		}
	}

	res := make([]Interval, 0, len(m))
	for _, e1 := range m {
		res = append(res, *e1)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Start != res[j].Start {
			return res[i].Start < res[j].Start
		}
		return res[i].Reg < res[j].Reg
	})
	return res
}

// MaxPressure returns the largest number of intervals live at the same point.
func MaxPressure(ivs []Interval) int {
	_, live := firstOverflow(ivs, 0)
	n := len(live)
	for {
		p, l := firstOverflow(ivs, n)
		if p < 0 {
			return n
		}
		n = len(l)
	}
}

// firstOverflow returns the first point at which more than budget intervals are live, together with the
// intervals live there. It returns -1 if the budget is never exceeded.
func firstOverflow(ivs []Interval, budget int) (int, []Interval) {
	last := -1
	for _, e1 := range ivs {
		if e1.End > last {
			last = e1.End
		}
	}
	for p := 0; p <= last; p++ {
		var live []Interval
		for _, e1 := range ivs {
			if e1.Start <= p && p <= e1.End {
				live = append(live, e1)
			}
		}
		if len(live) > budget {
			return p, live
		}
	}
	return -1, nil
}

// verifySSA checks that every virtual register in body is written exactly once and never read before it is
// written. Violations are errors wrapping ir.ErrInternalConsistency.
func verifySSA(body []*Inst) error {
	defined := make(map[regfile.VReg]bool)
	for i1, e1 := range body {
		for _, e2 := range e1.Uses() {
			if e2.IsVirtual() && !defined[e2] {
				return errors.Wrapf(ir.ErrInternalConsistency, "instruction %d: %s reads %s before it is written",
					i1, e1, e2)
			}
		}
		for _, e2 := range e1.Defs() {
			if !e2.IsVirtual() {
				continue
			}
			if defined[e2] {
				return errors.Wrapf(ir.ErrInternalConsistency, "instruction %d: %s writes %s a second time",
					i1, e1, e2)
			}
			defined[e2] = true
		}
	}
	return nil
}
