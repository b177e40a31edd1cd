// pair.go keeps track of which registers hold the limbs of the same 128-bit value.

package riscv

import (
	"github.com/pkg/errors"

	"rvlower/src/backend/regfile"
	"rvlower/src/ir"
)

// limb identifies one half of a logical 128-bit value.
type limb struct {
	owner int // Identity of the logical value.
	high  bool
}

// pairRegistry maps limb registers to the logical value owning them.
type pairRegistry struct {
	limbs map[regfile.VReg]limb
	next  int
}

// newPairRegistry returns an empty registry.
func newPairRegistry() *pairRegistry {
	return &pairRegistry{limbs: make(map[regfile.VReg]limb)}
}

// add records p as the limbs of a new logical value.
func (pr *pairRegistry) add(p ir.Pair[regfile.VReg]) {
	pr.limbs[p.Low] = limb{owner: pr.next}
	pr.limbs[p.High] = limb{owner: pr.next, high: true}
	pr.next++
}

// whole returns true if both registers of p are limbs of the same logical value, in either order.
func (pr *pairRegistry) whole(p ir.Pair[regfile.VReg]) bool {
	lo, ok1 := pr.limbs[p.Low]
	hi, ok2 := pr.limbs[p.High]
	return ok1 && ok2 && lo.owner == hi.owner && lo.high != hi.high
}

// check verifies that every select_i128 in body moves whole values. A select that would combine the limbs of
// different values is an error wrapping ir.ErrInternalConsistency.
func (pr *pairRegistry) check(body []*Inst) error {
	for i1, e1 := range body {
		if e1.Op != OpSelectPair {
			continue
		}
		for _, e2 := range []ir.Pair[regfile.VReg]{e1.Dst, e1.T, e1.F} {
			if !pr.whole(e2) {
				return errors.Wrapf(ir.ErrInternalConsistency, "instruction %d: %s selects partial pair %s",
					i1, e1, pairString(e2))
			}
		}
	}
	return nil
}
