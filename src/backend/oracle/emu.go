// emu.go provides a small RV64 interpreter for the instructions the oracle understands. It runs a single leaf
// function until it returns to the caller.

package oracle

import (
	"encoding/binary"
	"math/bits"

	"github.com/containerd/errdefs"
	"github.com/pkg/errors"

	"rvlower/src/backend/riscv"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Machine is the architectural state of a RV64 hart with a private stack.
type Machine struct {
	X     [32]uint64 // Integer registers. X[0] always reads as zero.
	PC    uint64     // Program counter, relative to the start of the code.
	Stack []byte     // Stack memory, addressed downwards from StackTop.
	Steps int        // Number of instructions executed by the last Run.
}

// ---------------------
// ----- Constants -----
// ---------------------

// StackTop is the initial stack pointer. The stack occupies [StackTop-len(Stack), StackTop).
const StackTop uint64 = 0x8000_0000

// ReturnAddress is the address a function returns to when it is done.
const ReturnAddress uint64 = 0xfee0_0000

// stackSize is the number of bytes of stack memory.
const stackSize = 4096

// maxSteps bounds the number of executed instructions, catching runaway branches.
const maxSteps = 1 << 16

// ---------------------
// ----- Functions -----
// ---------------------

// NewMachine returns a Machine with cleared registers and stack.
func NewMachine() *Machine {
	m := &Machine{Stack: make([]byte, stackSize)}
	m.Reset()
	return m
}

// Reset clears the registers, points sp to StackTop and ra to ReturnAddress.
func (m *Machine) Reset() {
	m.X = [32]uint64{}
	m.X[riscv.SP] = StackTop
	m.X[riscv.RA] = ReturnAddress
	m.PC = 0
	m.Steps = 0
}

// Call places args in a0 and upwards, runs code from its first instruction and returns a0 and a1. Registers other
// than sp, ra and the arguments keep their current values.
func (m *Machine) Call(code []byte, args ...uint64) (uint64, uint64, error) {
	if len(args) > 8 {
		return 0, 0, errors.Wrapf(errdefs.ErrInvalidArgument, "%d arguments do not fit in registers", len(args))
	}
	m.X[riscv.SP] = StackTop
	m.X[riscv.RA] = ReturnAddress
	for i1, e1 := range args {
		m.X[int(riscv.A0)+i1] = e1
	}
	m.PC = 0
	if err := m.Run(code); err != nil {
		return 0, 0, err
	}
	return m.X[riscv.A0], m.X[riscv.A1], nil
}

// Run executes code from the current PC until the PC reaches ReturnAddress.
func (m *Machine) Run(code []byte) error {
	m.Steps = 0
	for m.PC != ReturnAddress {
		if m.Steps >= maxSteps {
			return errors.Wrapf(errdefs.ErrAborted, "no return after %d instructions", maxSteps)
		}
		if m.PC%4 != 0 || m.PC+4 > uint64(len(code)) {
			return errors.Wrapf(errdefs.ErrOutOfRange, "pc %#x outside code", m.PC)
		}
		w := binary.LittleEndian.Uint32(code[m.PC:])
		d, ok := Decode(w)
		if !ok {
			return errors.Wrapf(errdefs.ErrNotImplemented, "pc %#x: unknown instruction %#08x", m.PC, w)
		}
		if err := m.step(d); err != nil {
			return errors.Wrapf(err, "pc %#x: %s", m.PC, d)
		}
		m.X[0] = 0
		m.Steps++
	}
	return nil
}

// step executes a single decoded instruction and advances the PC.
func (m *Machine) step(d Decoded) error {
	x := &m.X
	rs1, rs2 := x[d.Rs1], x[d.Rs2]
	imm := uint64(d.Imm)
	next := m.PC + 4

	switch d.Op {
	case riscv.OpAddi:
		x[d.Rd] = rs1 + imm
	case riscv.OpAddiw:
		x[d.Rd] = sext32(uint32(rs1 + imm))
	case riscv.OpAndi:
		x[d.Rd] = rs1 & imm
	case riscv.OpXori:
		x[d.Rd] = rs1 ^ imm
	case riscv.OpSlli:
		x[d.Rd] = rs1 << imm
	case riscv.OpSrli:
		x[d.Rd] = rs1 >> imm
	case riscv.OpSrai:
		x[d.Rd] = uint64(int64(rs1) >> imm)
	case riscv.OpSlliw:
		x[d.Rd] = sext32(uint32(rs1) << imm)
	case riscv.OpSrliw:
		x[d.Rd] = sext32(uint32(rs1) >> imm)
	case riscv.OpSub:
		x[d.Rd] = rs1 - rs2
	case riscv.OpSll:
		x[d.Rd] = rs1 << (rs2 & 63)
	case riscv.OpSrl:
		x[d.Rd] = rs1 >> (rs2 & 63)
	case riscv.OpSllw:
		x[d.Rd] = sext32(uint32(rs1) << (rs2 & 31))
	case riscv.OpSrlw:
		x[d.Rd] = sext32(uint32(rs1) >> (rs2 & 31))
	case riscv.OpOr:
		x[d.Rd] = rs1 | rs2
	case riscv.OpAnd:
		x[d.Rd] = rs1 & rs2
	case riscv.OpXor:
		x[d.Rd] = rs1 ^ rs2
	case riscv.OpSlt:
		x[d.Rd] = flag(int64(rs1) < int64(rs2))
	case riscv.OpSltu:
		x[d.Rd] = flag(rs1 < rs2)
	case riscv.OpLui:
		x[d.Rd] = sext32(uint32(imm) << 12)
	case riscv.OpLd:
		off, err := m.address(rs1 + imm)
		if err != nil {
			return err
		}
		x[d.Rd] = binary.LittleEndian.Uint64(m.Stack[off:])
	case riscv.OpSd:
		off, err := m.address(rs1 + imm)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint64(m.Stack[off:], rs2)
	case riscv.OpBeq, riscv.OpBne, riscv.OpBlt, riscv.OpBge, riscv.OpBltu, riscv.OpBgeu:
		if taken(d.Op, rs1, rs2) {
			next = m.PC + imm
		}
	case riscv.OpJal:
		x[d.Rd] = next
		next = m.PC + imm
	case riscv.OpJalr:
		t := next
		next = (rs1 + imm) &^ 1
		x[d.Rd] = t

	case riscv.OpRol:
		x[d.Rd] = bits.RotateLeft64(rs1, int(rs2&63))
	case riscv.OpRor:
		x[d.Rd] = bits.RotateLeft64(rs1, -int(rs2&63))
	case riscv.OpRori:
		x[d.Rd] = bits.RotateLeft64(rs1, -int(imm))
	case riscv.OpRolw:
		x[d.Rd] = sext32(bits.RotateLeft32(uint32(rs1), int(rs2&31)))
	case riscv.OpRorw:
		x[d.Rd] = sext32(bits.RotateLeft32(uint32(rs1), -int(rs2&31)))
	case riscv.OpRoriw:
		x[d.Rd] = sext32(bits.RotateLeft32(uint32(rs1), -int(imm)))
	case riscv.OpMin:
		x[d.Rd] = pick(int64(rs1) < int64(rs2), rs1, rs2)
	case riscv.OpMinu:
		x[d.Rd] = pick(rs1 < rs2, rs1, rs2)
	case riscv.OpMax:
		x[d.Rd] = pick(int64(rs1) > int64(rs2), rs1, rs2)
	case riscv.OpMaxu:
		x[d.Rd] = pick(rs1 > rs2, rs1, rs2)
	case riscv.OpSextb:
		x[d.Rd] = uint64(int64(int8(rs1)))
	case riscv.OpSexth:
		x[d.Rd] = uint64(int64(int16(rs1)))
	case riscv.OpZexth:
		x[d.Rd] = rs1 & 0xffff
	case riscv.OpAdduw:
		x[d.Rd] = uint64(uint32(rs1)) + rs2
	default:
		return errors.Wrapf(errdefs.ErrNotImplemented, "%s cannot be executed", d.Op)
	}
	m.PC = next
	return nil
}

// address returns the stack offset of the doubleword at addr.
func (m *Machine) address(addr uint64) (uint64, error) {
	base := StackTop - uint64(len(m.Stack))
	if addr < base || addr+8 > StackTop || addr%8 != 0 {
		return 0, errors.Wrapf(errdefs.ErrOutOfRange, "address %#x outside stack", addr)
	}
	return addr - base, nil
}

// taken returns true if the branch op is taken for the operands a and b.
func taken(op riscv.Op, a, b uint64) bool {
	switch op {
	case riscv.OpBeq:
		return a == b
	case riscv.OpBne:
		return a != b
	case riscv.OpBlt:
		return int64(a) < int64(b)
	case riscv.OpBge:
		return int64(a) >= int64(b)
	case riscv.OpBltu:
		return a < b
	default:
		return a >= b
	}
}

// sext32 returns the sign extension of v.
func sext32(v uint32) uint64 {
	return uint64(int64(int32(v)))
}

// flag returns 1 for true and 0 for false.
func flag(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// pick returns a if b holds, otherwise c.
func pick(b bool, a, c uint64) uint64 {
	if b {
		return a
	}
	return c
}
