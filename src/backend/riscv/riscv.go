// Package riscv lowers target independent rotate and min/max operations into RISC-V 64 instruction sequences.
//
// RISC-V has a downward growing stack that is always 16-bytes aligned.
package riscv

import (
	"github.com/containerd/errdefs"
	"github.com/pkg/errors"

	"rvlower/src/backend/regfile"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// ABI describes the register conventions lowered code must respect.
type ABI struct {
	Args        []regfile.PReg // Argument and return registers, in order.
	Scratch     []regfile.PReg // Caller-saved registers guaranteed free for lowering temporaries.
	CalleeSaved []regfile.PReg // Registers that may be used after saving them in the function prologue.
}

// ---------------------
// ----- Constants -----
// ---------------------

// Base registers (integer).
const (
	x0  regfile.PReg = iota // Zero register, RO.
	x1                      // Return address (caller save).
	x2                      // Stack pointer (callee save).
	x3                      // Global pointer.
	x4                      // Thread pointer.
	x5                      // Temp register (caller saved).
	x6                      // Temp register (caller saved).
	x7                      // Temp register (caller saved).
	x8                      // Frame pointer (callee saved).
	x9                      // Saved (callee saved).
	x10                     // Function args and return (caller saved).
	x11                     // Function args and return (caller saved).
	x12                     // Function arguments (caller saved).
	x13                     // Function arguments (caller saved).
	x14                     // Function arguments (caller saved).
	x15                     // Function arguments (caller saved).
	x16                     // Function arguments (caller saved).
	x17                     // Function arguments (caller saved).
	x18                     // Saved (callee saved).
	x19                     // Saved (callee saved).
	x20                     // Saved (callee saved).
	x21                     // Saved (callee saved).
	x22                     // Saved (callee saved).
	x23                     // Saved (callee saved).
	x24                     // Saved (callee saved).
	x25                     // Saved (callee saved).
	x26                     // Saved (callee saved).
	x27                     // Saved (callee saved).
	x28                     // Temp (caller saved).
	x29                     // Temp (caller saved).
	x30                     // Temp (caller saved).
	x31                     // Temp (caller saved).
)

// Aliases.
const (
	Zero = x0 // Zero.
	RA   = x1 // Return address.
	SP   = x2 // Stack pointer.
	FP   = x8 // Frame pointer.
)

// Integer argument register aliases.
const (
	A0 = iota + x10
	A1
	A2
	A3
	A4
	A5
	A6
	A7
)

// Aliases for registers that must not be used by callee unless explicitly saved.
const S1 = x9

const (
	S2 = iota + x18
	S3
	S4
	S5
	S6
	S7
	S8
	S9
	S10
	S11
)

// Aliases for temporary integer registers.
const (
	T0 = x5
	T1 = x6
	T2 = x7
)

const (
	T3 = iota + x28
	T4
	T5
	T6
)

// maxImm defines the maximum 12-bit immediate.
const maxImm = 2047

// minImm defines the minimum 12-bit immediate.
const minImm = -2048

const stackAlign = 16 // stackAlign defines the size of any increment of the stack.
const word64 = 8      // word64 defines the length of a 64-bit architecture word.
const argsReg = 8     // argsReg defines the number of arguments put directly in registers.

// DefaultScratch is the number of caller-saved scratch registers lowered sequences may hold live at once.
const DefaultScratch = 2

// -------------------
// ----- Globals -----
// -------------------

// temporaries lists the caller-saved temporaries in the order they are handed out as scratch registers.
var temporaries = [...]regfile.PReg{T0, T1, T2, T3, T4, T5, T6}

// calleeSaved lists the callee-saved registers available to the legalizer. s0 is the frame pointer and never used.
var calleeSaved = [...]regfile.PReg{S1, S2, S3, S4, S5, S6, S7, S8, S9, S10, S11}

// ---------------------
// ----- Functions -----
// ---------------------

// NewABI returns the standard RV64 integer calling convention with n caller-saved scratch registers. n defaults
// to DefaultScratch when zero.
func NewABI(n int) (ABI, error) {
	if n == 0 {
		n = DefaultScratch
	}
	if n < 1 || n > len(temporaries) {
		return ABI{}, errors.Wrapf(errdefs.ErrInvalidArgument, "scratch register count must be in range [1, %d], got %d",
			len(temporaries), n)
	}
	abi := ABI{
		Args:        make([]regfile.PReg, argsReg),
		Scratch:     append([]regfile.PReg(nil), temporaries[:n]...),
		CalleeSaved: append([]regfile.PReg(nil), calleeSaved[:]...),
	}
	for i1 := range abi.Args {
		abi.Args[i1] = A0 + regfile.PReg(i1)
	}
	return abi, nil
}

// fitsImm12 returns true if v fits a signed 12-bit immediate.
func fitsImm12(v int64) bool {
	return v >= minImm && v <= maxImm
}

// alignStack rounds n up to the stack alignment.
func alignStack(n int) int {
	if res := n % stackAlign; res != 0 {
		n += stackAlign - res
	}
	return n
}
