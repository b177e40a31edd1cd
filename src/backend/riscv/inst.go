// inst.go defines the machine instructions produced by lowering. Instructions operate on virtual registers until
// the register allocator has resolved them; fixed registers are used for arguments, the stack pointer and zero.

package riscv

import (
	"fmt"

	"rvlower/src/backend/regfile"
	"rvlower/src/ir"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Op identifies an instruction or pseudo-instruction.
type Op int

// Format describes the operand layout of an Op.
type Format int

// CondKind is the comparison performed by a conditional branch or select.
type CondKind int

// Cond is a symbolic comparison of two registers, resolved to a concrete branch at emission.
type Cond struct {
	Kind CondKind
	A, B regfile.VReg
}

// Inst is a single machine instruction or pseudo-instruction.
type Inst struct {
	Op    Op
	Rd    regfile.VReg          // Destination register.
	Rs1   regfile.VReg          // First source register.
	Rs2   regfile.VReg          // Second source register.
	Imm   int64                 // Immediate operand.
	Cond  *Cond                 // Condition of select and select_i128.
	Dst   ir.Pair[regfile.VReg] // Destination of select_i128.
	T, F  ir.Pair[regfile.VReg] // Sources of select_i128 when the condition holds and does not hold.
	Label string                // Branch or jump target, or the name of a label.
}

// opInfo holds static information about an Op.
type opInfo struct {
	name   string  // Assembler mnemonic.
	format Format  // Operand layout.
	ext    Feature // Extension required, empty for the base instruction set.
	pseudo bool    // Expanded into base instructions before encoding.
}

// ---------------------
// ----- Constants -----
// ---------------------

const (
	OpLabel Op = iota

	// RV64I.
	OpAddi
	OpAddiw
	OpAndi
	OpXori
	OpSlli
	OpSrli
	OpSrai
	OpSlliw
	OpSrliw
	OpSub
	OpSll
	OpSrl
	OpSllw
	OpSrlw
	OpOr
	OpAnd
	OpXor
	OpSlt
	OpSltu
	OpLui
	OpLd
	OpSd
	OpBeq
	OpBne
	OpBlt
	OpBge
	OpBltu
	OpBgeu
	OpJal
	OpJalr

	// Zbb.
	OpRol
	OpRor
	OpRori
	OpRolw
	OpRorw
	OpRoriw
	OpMin
	OpMinu
	OpMax
	OpMaxu
	OpSextb
	OpSexth
	OpZexth

	// Zba.
	OpAdduw

	// Pseudo-instructions.
	OpMv
	OpNeg
	OpLi
	OpSextw
	OpZextw
	OpJ
	OpRet
	OpSelect
	OpSelectPair
)

const (
	FormatNone   Format = iota // No operands.
	FormatR                    // rd,rs1,rs2
	FormatI                    // rd,rs1,imm
	FormatUnary                // rd,rs1
	FormatU                    // rd,imm
	FormatLoad                 // rd,imm(rs1)
	FormatStore                // rs2,imm(rs1)
	FormatBranch               // rs1,rs2,label
	FormatJump                 // label
	FormatSelect               // rd,rs1,rs2 chosen by Cond
	FormatPair                 // [dst],[t],[f] chosen by Cond
)

const (
	CondEq CondKind = iota
	CondNe
	CondLt  // Signed less than.
	CondGe  // Signed greater than or equal.
	CondLtu // Unsigned less than.
	CondGeu // Unsigned greater than or equal.
)

// condNames provides the names of CondKind used when printing select conditions.
var condNames = [...]string{"eq", "ne", "slt", "sge", "ult", "uge"}

// condBranch maps a CondKind to the branch instruction testing it.
var condBranch = [...]Op{OpBeq, OpBne, OpBlt, OpBge, OpBltu, OpBgeu}

// ops holds the static information of every Op.
var ops = [...]opInfo{
	OpLabel: {"label", FormatNone, "", true},

	OpAddi:  {"addi", FormatI, "", false},
	OpAddiw: {"addiw", FormatI, "", false},
	OpAndi:  {"andi", FormatI, "", false},
	OpXori:  {"xori", FormatI, "", false},
	OpSlli:  {"slli", FormatI, "", false},
	OpSrli:  {"srli", FormatI, "", false},
	OpSrai:  {"srai", FormatI, "", false},
	OpSlliw: {"slliw", FormatI, "", false},
	OpSrliw: {"srliw", FormatI, "", false},
	OpSub:   {"sub", FormatR, "", false},
	OpSll:   {"sll", FormatR, "", false},
	OpSrl:   {"srl", FormatR, "", false},
	OpSllw:  {"sllw", FormatR, "", false},
	OpSrlw:  {"srlw", FormatR, "", false},
	OpOr:    {"or", FormatR, "", false},
	OpAnd:   {"and", FormatR, "", false},
	OpXor:   {"xor", FormatR, "", false},
	OpSlt:   {"slt", FormatR, "", false},
	OpSltu:  {"sltu", FormatR, "", false},
	OpLui:   {"lui", FormatU, "", false},
	OpLd:    {"ld", FormatLoad, "", false},
	OpSd:    {"sd", FormatStore, "", false},
	OpBeq:   {"beq", FormatBranch, "", false},
	OpBne:   {"bne", FormatBranch, "", false},
	OpBlt:   {"blt", FormatBranch, "", false},
	OpBge:   {"bge", FormatBranch, "", false},
	OpBltu:  {"bltu", FormatBranch, "", false},
	OpBgeu:  {"bgeu", FormatBranch, "", false},
	OpJal:   {"jal", FormatJump, "", false},
	OpJalr:  {"jalr", FormatLoad, "", false},

	OpRol:   {"rol", FormatR, HasZbb, false},
	OpRor:   {"ror", FormatR, HasZbb, false},
	OpRori:  {"rori", FormatI, HasZbb, false},
	OpRolw:  {"rolw", FormatR, HasZbb, false},
	OpRorw:  {"rorw", FormatR, HasZbb, false},
	OpRoriw: {"roriw", FormatI, HasZbb, false},
	OpMin:   {"min", FormatR, HasZbb, false},
	OpMinu:  {"minu", FormatR, HasZbb, false},
	OpMax:   {"max", FormatR, HasZbb, false},
	OpMaxu:  {"maxu", FormatR, HasZbb, false},
	OpSextb: {"sext.b", FormatUnary, HasZbb, false},
	OpSexth: {"sext.h", FormatUnary, HasZbb, false},
	OpZexth: {"zext.h", FormatUnary, HasZbb, false},

	OpAdduw: {"add.uw", FormatR, HasZba, false},

	OpMv:         {"mv", FormatUnary, "", true},
	OpNeg:        {"neg", FormatUnary, "", true},
	OpLi:         {"li", FormatU, "", true},
	OpSextw:      {"sext.w", FormatUnary, "", true},
	OpZextw:      {"zext.w", FormatUnary, HasZba, true},
	OpJ:          {"j", FormatJump, "", true},
	OpRet:        {"ret", FormatNone, "", true},
	OpSelect:     {"select", FormatSelect, "", true},
	OpSelectPair: {"select_i128", FormatPair, "", true},
}

// ---------------------
// ----- Functions -----
// ---------------------

// String returns the assembler mnemonic of op.
func (op Op) String() string {
	if op >= 0 && int(op) < len(ops) {
		return ops[op].name
	}
	return fmt.Sprintf("op(%d)", int(op))
}

// Format returns the operand layout of op.
func (op Op) Format() Format {
	return ops[op].format
}

// Ext returns the extension op requires, or the empty Feature for base instructions.
func (op Op) Ext() Feature {
	return ops[op].ext
}

// IsPseudo returns true if op must be expanded before encoding.
func (op Op) IsPseudo() bool {
	return ops[op].pseudo
}

// String returns the name of c.
func (c CondKind) String() string {
	if c >= 0 && int(c) < len(condNames) {
		return condNames[c]
	}
	return fmt.Sprintf("cond(%d)", int(c))
}

// Inverse returns the condition that holds exactly when c does not.
func (c CondKind) Inverse() CondKind {
	return c ^ 1
}

// Branch returns the conditional branch instruction testing c.
func (c CondKind) Branch() Op {
	return condBranch[c]
}

// String returns the condition in the form "(a slt b)".
func (c *Cond) String() string {
	return fmt.Sprintf("(%s %s %s)", c.A, c.Kind, c.B)
}

// Defs returns the registers written by in.
func (in *Inst) Defs() []regfile.VReg {
	switch in.Op.Format() {
	case FormatR, FormatI, FormatUnary, FormatU, FormatLoad, FormatSelect:
		return []regfile.VReg{in.Rd}
	case FormatJump:
		if in.Op == OpJal {
			return []regfile.VReg{in.Rd}
		}
	case FormatPair:
		return []regfile.VReg{in.Dst.Low, in.Dst.High}
	}
	return nil
}

// Uses returns the registers read by in.
func (in *Inst) Uses() []regfile.VReg {
	switch in.Op.Format() {
	case FormatR, FormatBranch:
		return []regfile.VReg{in.Rs1, in.Rs2}
	case FormatI, FormatUnary, FormatLoad:
		return []regfile.VReg{in.Rs1}
	case FormatStore:
		return []regfile.VReg{in.Rs1, in.Rs2}
	case FormatSelect:
		return []regfile.VReg{in.Rs1, in.Rs2, in.Cond.A, in.Cond.B}
	case FormatPair:
		return []regfile.VReg{in.T.Low, in.T.High, in.F.Low, in.F.High, in.Cond.A, in.Cond.B}
	case FormatNone:
		if in.Op == OpRet {
			return []regfile.VReg{regfile.Fixed(RA)}
		}
	}
	return nil
}

// EarlyDef returns true if the registers written by in must not share a physical register with those it reads.
// select_i128 writes its first limb before it has read all of its sources.
func (in *Inst) EarlyDef() bool {
	return in.Op == OpSelectPair
}

// Rename replaces every occurrence of the register from by to, in both defs and uses.
func (in *Inst) Rename(from, to regfile.VReg) {
	in.Map(func(v regfile.VReg) regfile.VReg {
		if v == from {
			return to
		}
		return v
	})
}

// Map replaces every register operand v of in by f(v).
func (in *Inst) Map(f func(regfile.VReg) regfile.VReg) {
	fix := func(v *regfile.VReg) {
		if *v != regfile.Invalid {
			*v = f(*v)
		}
	}
	for _, e1 := range []*regfile.VReg{&in.Rd, &in.Rs1, &in.Rs2, &in.Dst.Low, &in.Dst.High, &in.T.Low, &in.T.High,
		&in.F.Low, &in.F.High} {
		fix(e1)
	}
	if in.Cond != nil {
		fix(&in.Cond.A)
		fix(&in.Cond.B)
	}
}

// newInst returns an instruction with every register operand marked absent.
func newInst(op Op) *Inst {
	none := ir.Pair[regfile.VReg]{Low: regfile.Invalid, High: regfile.Invalid}
	return &Inst{
		Op:  op,
		Rd:  regfile.Invalid,
		Rs1: regfile.Invalid,
		Rs2: regfile.Invalid,
		Dst: none,
		T:   none,
		F:   none,
	}
}

// NewR returns the register-register instruction "op rd,rs1,rs2".
func NewR(op Op, rd, rs1, rs2 regfile.VReg) *Inst {
	in := newInst(op)
	in.Rd, in.Rs1, in.Rs2 = rd, rs1, rs2
	return in
}

// NewI returns the register-immediate instruction "op rd,rs1,imm".
func NewI(op Op, rd, rs1 regfile.VReg, imm int64) *Inst {
	in := newInst(op)
	in.Rd, in.Rs1, in.Imm = rd, rs1, imm
	return in
}

// NewUnary returns the single source instruction "op rd,rs1".
func NewUnary(op Op, rd, rs1 regfile.VReg) *Inst {
	in := newInst(op)
	in.Rd, in.Rs1 = rd, rs1
	return in
}

// NewU returns the upper immediate instruction "op rd,imm".
func NewU(op Op, rd regfile.VReg, imm int64) *Inst {
	in := newInst(op)
	in.Rd, in.Imm = rd, imm
	return in
}

// NewLoad returns "ld rd,imm(base)".
func NewLoad(rd, base regfile.VReg, imm int64) *Inst {
	in := newInst(OpLd)
	in.Rd, in.Rs1, in.Imm = rd, base, imm
	return in
}

// NewStore returns "sd src,imm(base)".
func NewStore(src, base regfile.VReg, imm int64) *Inst {
	in := newInst(OpSd)
	in.Rs2, in.Rs1, in.Imm = src, base, imm
	return in
}

// NewBranch returns the conditional branch testing c that jumps to label.
func NewBranch(c CondKind, a, b regfile.VReg, label string) *Inst {
	in := newInst(c.Branch())
	in.Rs1, in.Rs2, in.Label = a, b, label
	return in
}

// NewJump returns the unconditional jump "j label".
func NewJump(label string) *Inst {
	in := newInst(OpJ)
	in.Label = label
	return in
}

// NewLabel returns a label definition.
func NewLabel(label string) *Inst {
	in := newInst(OpLabel)
	in.Label = label
	return in
}

// NewSelect returns "rd = c ? t : f".
func NewSelect(rd, t, f regfile.VReg, c Cond) *Inst {
	in := newInst(OpSelect)
	in.Rd, in.Rs1, in.Rs2, in.Cond = rd, t, f, &c
	return in
}

// NewSelectPair returns "dst = c ? t : f" on register pairs. Both limbs move together.
func NewSelectPair(dst, t, f ir.Pair[regfile.VReg], c Cond) *Inst {
	in := newInst(OpSelectPair)
	in.Dst, in.T, in.F, in.Cond = dst, t, f, &c
	return in
}
