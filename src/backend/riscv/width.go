package riscv

import (
	"github.com/pkg/errors"

	"rvlower/src/ir"
)

// WidthClass categorises an operand width relative to the 64-bit register width.
type WidthClass int

const (
	Sub    WidthClass = iota // Narrower than a register: 8, 16 and 32 bits.
	Native                   // Exactly one register: 64 bits.
	Wide                     // A low/high register pair: 128 bits.
)

// classes provides the print friendly names of WidthClass.
var classes = [...]string{
	"sub",
	"native",
	"wide",
}

// String returns the name of c.
func (c WidthClass) String() string {
	if c >= 0 && int(c) < len(classes) {
		return classes[c]
	}
	return "invalid"
}

// Classify returns the width class of w. An error wrapping ir.ErrUnsupportedWidth is returned for any width
// other than 8, 16, 32, 64 and 128.
func Classify(w int) (WidthClass, error) {
	switch w {
	case 8, 16, 32:
		return Sub, nil
	case 64:
		return Native, nil
	case 128:
		return Wide, nil
	default:
		return 0, errors.Wrapf(ir.ErrUnsupportedWidth, "width %d", w)
	}
}
