package ir

import (
	"testing"

	"github.com/containerd/errdefs"
	"github.com/google/go-cmp/cmp"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

const unitSrc = `
[target]
features = ["has_zbb"]
scratch = 3

[[function]]
name = "smin_i8"
params = [8, 8]
  [[function.op]]
  kind = "smin"
  width = 8
  args = [0, 1]

[[function]]
name = "rot"
params = [128]
return = 1
  [[function.op]]
  kind = "rotr"
  width = 128
  args = [0]
  imm = 100
  [[function.op]]
  kind = "rotl"
  width = 128
  args = [1, 0]
`

// TestParseUnit decodes a unit with two functions.
func TestParseUnit(t *testing.T) {
	u, err := ParseUnit("sample.toml", []byte(unitSrc))
	assert.NilError(t, err)

	smin := NewFunction("smin_i8", 8, 8)
	smin.Append(SignedMin, 8, 0, 1)
	rot := NewFunction("rot", 128)
	rot.AppendImm(RotateRight, 128, 0, 100)
	rot.Append(RotateLeft, 128, 1, 0)
	rot.Return = 1

	exp := &Unit{
		Name:      "sample.toml",
		Features:  []string{"has_zbb"},
		Scratch:   3,
		Functions: []*Function{smin, rot},
	}
	if diff := cmp.Diff(exp, u); diff != "" {
		t.Fatalf("unit mismatch (-exp +got):\n%s", diff)
	}
}

// TestParseUnitErrors checks the error classes of malformed units.
func TestParseUnitErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		exp  error
	}{
		{"syntax", "[[function]\n", errdefs.ErrInvalidArgument},
		{"unknown kind", "[[function]]\nname = \"f\"\nparams = [8, 8]\n[[function.op]]\nkind = \"add\"\nwidth = 8\nargs = [0, 1]\n",
			ErrUnsupportedOperation},
		{"bad width", "[[function]]\nname = \"f\"\nparams = [8, 8]\n[[function.op]]\nkind = \"umin\"\nwidth = 12\nargs = [0, 1]\n",
			ErrUnsupportedWidth},
		{"missing operand", "[[function]]\nname = \"f\"\nparams = [8]\n[[function.op]]\nkind = \"umin\"\nwidth = 8\nargs = [0]\n",
			errdefs.ErrInvalidArgument},
	}
	for _, e1 := range tests {
		t.Run(e1.name, func(t *testing.T) {
			_, err := ParseUnit("bad.toml", []byte(e1.src))
			assert.Check(t, is.ErrorIs(err, e1.exp))
			assert.ErrorContains(t, err, "bad.toml")
		})
	}
}
