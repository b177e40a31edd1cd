// print.go provides functions for printing instructions and functions in VCode form: one instruction per line,
// operands separated by commas without spaces.

package riscv

import (
	"fmt"
	"strings"

	"rvlower/src/backend/regfile"
	"rvlower/src/ir"
)

// String returns the instruction in VCode form, e.g. "slli t0,a0,56".
func (in *Inst) String() string {
	name := in.Op.String()
	switch in.Op.Format() {
	case FormatR:
		return fmt.Sprintf("%s %s,%s,%s", name, in.Rd, in.Rs1, in.Rs2)
	case FormatI:
		return fmt.Sprintf("%s %s,%s,%d", name, in.Rd, in.Rs1, in.Imm)
	case FormatUnary:
		return fmt.Sprintf("%s %s,%s", name, in.Rd, in.Rs1)
	case FormatU:
		return fmt.Sprintf("%s %s,%d", name, in.Rd, in.Imm)
	case FormatLoad:
		return fmt.Sprintf("%s %s,%d(%s)", name, in.Rd, in.Imm, in.Rs1)
	case FormatStore:
		return fmt.Sprintf("%s %s,%d(%s)", name, in.Rs2, in.Imm, in.Rs1)
	case FormatBranch:
		return fmt.Sprintf("%s %s,%s,%s", name, in.Rs1, in.Rs2, in.Label)
	case FormatJump:
		if in.Op == OpJal {
			return fmt.Sprintf("%s %s,%s", name, in.Rd, in.Label)
		}
		return fmt.Sprintf("%s %s", name, in.Label)
	case FormatSelect:
		return fmt.Sprintf("%s %s,%s,%s##condition=%s", name, in.Rd, in.Rs1, in.Rs2, in.Cond)
	case FormatPair:
		return fmt.Sprintf("%s %s,%s,%s##condition=%s", name, pairString(in.Dst), pairString(in.T),
			pairString(in.F), in.Cond)
	}
	if in.Op == OpLabel {
		return in.Label + ":"
	}
	return name
}

// pairString returns a register pair in the form "[lo,hi]".
func pairString(p ir.Pair[regfile.VReg]) string {
	return fmt.Sprintf("[%s,%s]", p.Low, p.High)
}

// Listing returns the instructions of body in VCode form, one per line, indented except for labels.
func Listing(body []*Inst) string {
	sb := strings.Builder{}
	for _, e1 := range body {
		if e1.Op != OpLabel {
			sb.WriteString("  ")
		}
		sb.WriteString(e1.String())
		sb.WriteRune('\n')
	}
	return sb.String()
}
