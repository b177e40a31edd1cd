package ir

import (
	"testing"

	"github.com/containerd/errdefs"
	"github.com/pkg/errors"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

// TestValidate checks that malformed functions are rejected with the right error class.
func TestValidate(t *testing.T) {
	imm := int64(3)
	tests := []struct {
		name string
		f    *Function
		exp  error // Error class, nil if the function is valid.
	}{
		{
			name: "valid",
			f: &Function{Name: "ok", Params: []int{8, 8},
				Ops: []*Operation{{Kind: SignedMin, Width: 8, Args: [2]Value{0, 1}, Result: 2}}, Return: 2},
		},
		{
			name: "rotate amount of other width",
			f: &Function{Name: "amount", Params: []int{16, 8},
				Ops: []*Operation{{Kind: RotateLeft, Width: 16, Args: [2]Value{0, 1}, Result: 2}}, Return: 2},
		},
		{
			name: "unsupported parameter width",
			f:    &Function{Name: "w7", Params: []int{7}},
			exp:  ErrUnsupportedWidth,
		},
		{
			name: "unsupported operation width",
			f: &Function{Name: "w256", Params: []int{8, 8},
				Ops: []*Operation{{Kind: SignedMin, Width: 256, Args: [2]Value{0, 1}, Result: 2}}, Return: 2},
			exp: ErrUnsupportedWidth,
		},
		{
			name: "unknown kind",
			f: &Function{Name: "kind", Params: []int{8, 8},
				Ops: []*Operation{{Kind: Kind(42), Width: 8, Args: [2]Value{0, 1}, Result: 2}}, Return: 2},
			exp: ErrUnsupportedOperation,
		},
		{
			name: "operand width mismatch",
			f: &Function{Name: "mismatch", Params: []int{8, 16},
				Ops: []*Operation{{Kind: UnsignedMax, Width: 8, Args: [2]Value{0, 1}, Result: 2}}, Return: 2},
			exp: errdefs.ErrInvalidArgument,
		},
		{
			name: "undefined operand",
			f: &Function{Name: "undef", Params: []int{8},
				Ops: []*Operation{{Kind: UnsignedMax, Width: 8, Args: [2]Value{0, 1}, Result: 1}}, Return: 1},
			exp: errdefs.ErrInvalidArgument,
		},
		{
			name: "immediate on min",
			f: &Function{Name: "imm", Params: []int{8, 8},
				Ops: []*Operation{{Kind: SignedMin, Width: 8, Args: [2]Value{0, 1}, Imm: &imm, Result: 2}}, Return: 2},
			exp: errdefs.ErrInvalidArgument,
		},
		{
			name: "undefined return",
			f:    &Function{Name: "ret", Params: []int{8}, Return: 4},
			exp:  errdefs.ErrInvalidArgument,
		},
	}
	for _, e1 := range tests {
		t.Run(e1.name, func(t *testing.T) {
			err := Validate(e1.f)
			if e1.exp == nil {
				assert.NilError(t, err)
				return
			}
			assert.Check(t, is.ErrorIs(err, e1.exp))
			assert.ErrorContains(t, err, e1.f.Name)
		})
	}
}

// TestErrorClasses checks that every backend error class maps onto an errdefs class.
func TestErrorClasses(t *testing.T) {
	assert.Check(t, errdefs.IsInvalidArgument(errors.Wrap(ErrUnsupportedWidth, "ctx")))
	assert.Check(t, errdefs.IsNotImplemented(errors.Wrap(ErrUnsupportedOperation, "ctx")))
	assert.Check(t, errdefs.IsInternal(errors.Wrap(ErrInternalConsistency, "ctx")))
}

// TestValidateUnit checks that duplicate function names are rejected.
func TestValidateUnit(t *testing.T) {
	f := NewFunction("dup", 8, 8)
	f.Append(SignedMin, 8, 0, 1)
	u := &Unit{Name: "u", Functions: []*Function{f, f}}
	err := ValidateUnit(u)
	assert.Check(t, errdefs.IsInvalidArgument(err))
	assert.ErrorContains(t, err, "dup defined more than once")
}

// TestSignature checks the textual form of functions and operations.
func TestSignature(t *testing.T) {
	f := NewFunction("rot", 128, 8)
	f.AppendImm(RotateRight, 128, 0, -3)
	v := f.Append(RotateLeft, 128, 2, 1)
	assert.Equal(t, f.Signature(), "%rot(i128, i8) -> i128")
	assert.Equal(t, f.Ops[0].String(), "v2 = rotr.i128 v0, -3")
	assert.Equal(t, f.Ops[1].String(), "v3 = rotl.i128 v2, v1")
	assert.Equal(t, f.Ops[1].Ident(), "rotl.i128")
	assert.Equal(t, f.WidthOf(v), 128)
	assert.Equal(t, f.WidthOf(1), 8)
	assert.Equal(t, f.NumValues(), 4)

	k, err := ParseKind("UMAX")
	assert.NilError(t, err)
	assert.Equal(t, k, UnsignedMax)
	_, err = ParseKind("add")
	assert.ErrorContains(t, err, `unknown operation "add"`)
}
