// Package ir defines the target independent operations consumed by the lowering backend: operation kinds,
// operand widths, functions and compilation units.
package ir

import (
	"fmt"
	"strings"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Kind differentiates the operations understood by the backend.
type Kind int

// Value references either a function parameter or the result of an operation. Parameters are numbered first,
// followed by one value per operation in program order.
type Value int

// Operation is a single target independent operation.
type Operation struct {
	Kind   Kind     // Operation kind.
	Width  int      // Operand width in bits.
	Args   [2]Value // Operands. For rotates Args[1] is the shift amount unless Imm is set.
	Imm    *int64   // Optional immediate shift amount for rotates.
	Result Value    // Value defined by the operation.
}

// Function is a straight-line sequence of operations over its parameters.
type Function struct {
	Name   string       // Function symbol name.
	Params []int        // Parameter widths in bits.
	Ops    []*Operation // Operations in program order.
	Return Value        // Value returned by the function.
}

// Unit is a compilation unit: a list of independent functions.
type Unit struct {
	Name      string      // Name of the unit, usually the source file name.
	Features  []string    // Target extension flags requested by the unit.
	Scratch   int         // Caller-saved scratch budget requested by the unit, 0 for the default.
	Functions []*Function // Functions of the unit.
}

// ---------------------
// ----- Constants -----
// ---------------------

const (
	RotateLeft Kind = iota
	RotateRight
	SignedMin
	SignedMax
	UnsignedMin
	UnsignedMax
)

// kinds provides the print friendly names of Kind, matching the textual IR opcodes.
var kinds = [...]string{
	"rotl",
	"rotr",
	"smin",
	"smax",
	"umin",
	"umax",
}

// Widths lists every supported operand width in bits.
var Widths = [...]int{8, 16, 32, 64, 128}

// ---------------------
// ----- Functions -----
// ---------------------

// String returns the textual IR opcode of k.
func (k Kind) String() string {
	if k >= 0 && int(k) < len(kinds) {
		return kinds[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind returns the Kind whose textual opcode is s.
func ParseKind(s string) (Kind, error) {
	for i1, e1 := range kinds {
		if strings.EqualFold(s, e1) {
			return Kind(i1), nil
		}
	}
	return 0, fmt.Errorf("unknown operation %q", s)
}

// IsRotate returns true for RotateLeft and RotateRight.
func (k Kind) IsRotate() bool {
	return k == RotateLeft || k == RotateRight
}

// IsMinMax returns true for the four min/max kinds.
func (k Kind) IsMinMax() bool {
	return k >= SignedMin && k <= UnsignedMax
}

// IsSigned returns true if the kind compares operands as two's complement integers.
func (k Kind) IsSigned() bool {
	return k == SignedMin || k == SignedMax
}

// IsMin returns true for the min kinds.
func (k Kind) IsMin() bool {
	return k == SignedMin || k == UnsignedMin
}

// String returns the operation in textual IR form, e.g. "v2 = smin.i8 v0, v1".
func (op *Operation) String() string {
	if op.Imm != nil {
		return fmt.Sprintf("v%d = %s.i%d v%d, %d", op.Result, op.Kind, op.Width, op.Args[0], *op.Imm)
	}
	return fmt.Sprintf("v%d = %s.i%d v%d, v%d", op.Result, op.Kind, op.Width, op.Args[0], op.Args[1])
}

// Ident returns a short identity of the operation used in diagnostics, e.g. "smin.i8".
func (op *Operation) Ident() string {
	return fmt.Sprintf("%s.i%d", op.Kind, op.Width)
}

// WidthOf returns the width of value v in function f, or 0 if v is not defined by f.
func (f *Function) WidthOf(v Value) int {
	if v < 0 {
		return 0
	}
	if int(v) < len(f.Params) {
		return f.Params[v]
	}
	for _, e1 := range f.Ops {
		if e1.Result == v {
			return e1.Width
		}
	}
	return 0
}

// NumValues returns the number of values defined by f: parameters plus operation results.
func (f *Function) NumValues() int {
	return len(f.Params) + len(f.Ops)
}

// Signature returns the function signature in textual IR form, e.g. "%smin_i8(i8, i8) -> i8".
func (f *Function) Signature() string {
	sb := strings.Builder{}
	sb.WriteString("%")
	sb.WriteString(f.Name)
	sb.WriteRune('(')
	for i1, e1 := range f.Params {
		if i1 > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(fmt.Sprintf("i%d", e1))
	}
	sb.WriteString(fmt.Sprintf(") -> i%d", f.WidthOf(f.Return)))
	return sb.String()
}

// NewFunction returns a Function with the given parameter widths. Operations are appended with Append.
func NewFunction(name string, params ...int) *Function {
	return &Function{
		Name:   name,
		Params: params,
	}
}

// Append adds an operation of kind k and width w over the operands args and returns its result value.
// The function's return value is set to the new result.
func (f *Function) Append(k Kind, w int, args ...Value) Value {
	op := &Operation{
		Kind:   k,
		Width:  w,
		Result: Value(f.NumValues()),
	}
	copy(op.Args[:], args)
	f.Ops = append(f.Ops, op)
	f.Return = op.Result
	return op.Result
}

// AppendImm adds a rotate of kind k and width w of x by the immediate amount imm and returns its result value.
func (f *Function) AppendImm(k Kind, w int, x Value, imm int64) Value {
	v := f.Append(k, w, x)
	f.Ops[len(f.Ops)-1].Imm = &imm
	return v
}
