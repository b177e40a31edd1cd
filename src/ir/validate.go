package ir

import (
	"github.com/containerd/errdefs"
	"github.com/pkg/errors"
)

// ---------------------
// ----- Constants -----
// ---------------------

// Operand roles used by the lookup table below.
const (
	argValue  = iota // Operand must have the operation's width.
	argAmount        // Operand is a shift amount of any supported width.
)

// lut is the lookup table for the role of each operand per operation kind.
// Dimensions
// 1 Operation kind.
// 2 Operand index.
var lut = [UnsignedMax + 1][2]int{
	RotateLeft:  {argValue, argAmount},
	RotateRight: {argValue, argAmount},
	SignedMin:   {argValue, argValue},
	SignedMax:   {argValue, argValue},
	UnsignedMin: {argValue, argValue},
	UnsignedMax: {argValue, argValue},
}

// ---------------------
// ----- Functions -----
// ---------------------

// SupportedWidth returns true if w is one of the supported operand widths.
func SupportedWidth(w int) bool {
	for _, e1 := range Widths {
		if e1 == w {
			return true
		}
	}
	return false
}

// Validate checks that f is well formed: supported widths, known kinds, operands defined before use with matching
// widths and result values numbered in program order.
func Validate(f *Function) error {
	if f == nil {
		return errors.Wrap(errdefs.ErrInvalidArgument, "function is <nil>")
	}
	if len(f.Name) < 1 {
		return errors.Wrap(errdefs.ErrInvalidArgument, "function has no name")
	}
	for i1, e1 := range f.Params {
		if !SupportedWidth(e1) {
			return errors.Wrapf(ErrUnsupportedWidth, "function %s: parameter v%d has width %d", f.Name, i1, e1)
		}
	}

	n := Value(len(f.Params)) // Next value to be defined.
	for _, e1 := range f.Ops {
		if e1.Kind < 0 || e1.Kind > UnsignedMax {
			return errors.Wrapf(ErrUnsupportedOperation, "function %s: %s", f.Name, e1.Kind)
		}
		if !SupportedWidth(e1.Width) {
			return errors.Wrapf(ErrUnsupportedWidth, "function %s: %s", f.Name, e1.Ident())
		}
		if e1.Result != n {
			return errors.Wrapf(errdefs.ErrInvalidArgument, "function %s: %s defines v%d, expected v%d",
				f.Name, e1.Ident(), e1.Result, n)
		}
		if e1.Imm != nil && !e1.Kind.IsRotate() {
			return errors.Wrapf(errdefs.ErrInvalidArgument, "function %s: %s does not take an immediate",
				f.Name, e1.Ident())
		}

		nargs := 2
		if e1.Imm != nil {
			nargs = 1
		}
		for i2, e2 := range e1.Args[:nargs] {
			if e2 < 0 || e2 >= n {
				return errors.Wrapf(errdefs.ErrInvalidArgument, "function %s: %s uses undefined value v%d",
					f.Name, e1.Ident(), e2)
			}
			w := f.WidthOf(e2)
			if lut[e1.Kind][i2] == argValue && w != e1.Width {
				return errors.Wrapf(errdefs.ErrInvalidArgument, "function %s: %s operand v%d has width %d",
					f.Name, e1.Ident(), e2, w)
			}
		}
		n++
	}

	if f.Return < 0 || f.Return >= n {
		return errors.Wrapf(errdefs.ErrInvalidArgument, "function %s: returns undefined value v%d", f.Name, f.Return)
	}
	return nil
}

// ValidateUnit validates every function of u and checks that function names are unique.
func ValidateUnit(u *Unit) error {
	seen := make(map[string]bool, len(u.Functions))
	for _, e1 := range u.Functions {
		if err := Validate(e1); err != nil {
			return err
		}
		if seen[e1.Name] {
			return errors.Wrapf(errdefs.ErrInvalidArgument, "function %s defined more than once", e1.Name)
		}
		seen[e1.Name] = true
	}
	return nil
}
