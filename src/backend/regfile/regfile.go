// Package regfile provides type definitions for physical and virtual registers shared by the lowering core, the
// register allocator and the verification oracle.
package regfile

import "fmt"

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// PReg identifies a physical integer register x0..x31.
type PReg uint8

// VReg identifies a virtual register. Ids below FirstVirtual are fixed to the physical register with the same
// number; ids from FirstVirtual upwards are resolved by the register allocator.
type VReg uint32

// ---------------------
// ----- Constants -----
// ---------------------

// NumRegs is the number of integer registers in the register file.
const NumRegs = 32

// FirstVirtual is the first id of a virtual register that is not bound to a physical register.
const FirstVirtual VReg = 64

// Invalid marks an absent register operand.
const Invalid VReg = ^VReg(0)

// abiNames holds the ABI mnemonic of every integer register.
var abiNames = [NumRegs]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"fp", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

// ---------------------
// ----- Functions -----
// ---------------------

// String returns the ABI mnemonic of r.
func (r PReg) String() string {
	if int(r) < NumRegs {
		return abiNames[r]
	}
	return fmt.Sprintf("x?%d", r)
}

// Fixed returns the virtual register bound to the physical register r.
func Fixed(r PReg) VReg {
	return VReg(r)
}

// IsFixed returns true if v is bound to a physical register.
func (v VReg) IsFixed() bool {
	return v < NumRegs
}

// IsVirtual returns true if v has to be resolved by the register allocator.
func (v VReg) IsVirtual() bool {
	return v >= FirstVirtual && v != Invalid
}

// PReg returns the physical register v is bound to. It must only be called for fixed registers.
func (v VReg) PReg() PReg {
	if !v.IsFixed() {
		panic(fmt.Sprintf("BUG: %s is not bound to a physical register", v))
	}
	return PReg(v)
}

// String returns the ABI name of a fixed register, or "v<id>" for a virtual register.
func (v VReg) String() string {
	switch {
	case v == Invalid:
		return "<invalid>"
	case v.IsFixed():
		return PReg(v).String()
	default:
		return fmt.Sprintf("v%d", uint32(v))
	}
}
