// select.go chooses a lowering strategy for every operation. Strategies are grouped by operation family and width
// class; within a group they are tried in a fixed order, cheapest first, and the first strategy whose requirements
// are met by the target's features and the operation's width is used.

package riscv

import (
	"github.com/pkg/errors"

	"rvlower/src/ir"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// family groups operation kinds that share lowering strategies.
type family int

// predicate reports whether a strategy applies to an operation of width w on a target with features fs.
type predicate func(fs FeatureSet, w int) bool

// lowerFunc appends the instructions computing op to the function being synthesized and returns the registers
// holding the result. y is the second operand, unused for rotates by an immediate amount.
type lowerFunc func(s *synth, op *ir.Operation, x, y operand) operand

// Strategy is one way of lowering a family of operations.
type Strategy struct {
	Name    string      // Name used in diagnostics and metrics.
	require []predicate // All predicates must hold for the strategy to apply.
	lower   lowerFunc
}

// strategyKey indexes the strategy table.
type strategyKey struct {
	fam   family
	class WidthClass
}

// ---------------------
// ----- Constants -----
// ---------------------

const (
	familyRotate family = iota
	familyMinMax
)

// -------------------
// ----- Globals -----
// -------------------

// strategies lists the candidate strategies per family and width class in priority order.
var strategies = map[strategyKey][]*Strategy{
	{familyRotate, Sub}: {
		{Name: "rotate-zbb-w", require: []predicate{has(HasZbb), widthIs(32)}, lower: lowerRotateWordZbb},
		{Name: "rotate-shift-w", require: []predicate{widthIs(32)}, lower: lowerRotateWordShift},
		{Name: "rotate-widen", require: []predicate{widthIs(8, 16)}, lower: lowerRotateWiden},
	},
	{familyRotate, Native}: {
		{Name: "rotate-zbb", require: []predicate{has(HasZbb)}, lower: lowerRotateZbb},
		{Name: "rotate-shift", lower: lowerRotateShift},
	},
	{familyRotate, Wide}: {
		{Name: "rotate-pair", lower: lowerRotatePair},
	},
	{familyMinMax, Sub}: {
		{Name: "minmax-zbb-ext", require: []predicate{has(HasZbb)}, lower: lowerMinMaxZbb},
		{Name: "minmax-select-ext", lower: lowerMinMaxSelect},
	},
	{familyMinMax, Native}: {
		{Name: "minmax-zbb", require: []predicate{has(HasZbb)}, lower: lowerMinMaxZbb},
		{Name: "minmax-select", lower: lowerMinMaxSelect},
	},
	{familyMinMax, Wide}: {
		{Name: "minmax-pair", lower: lowerMinMaxPair},
	},
}

// ---------------------
// ----- Functions -----
// ---------------------

// has returns a predicate requiring the feature f.
func has(f Feature) predicate {
	return func(fs FeatureSet, _ int) bool {
		return fs.Has(f)
	}
}

// widthIs returns a predicate requiring one of the widths ws.
func widthIs(ws ...int) predicate {
	return func(_ FeatureSet, w int) bool {
		for _, e1 := range ws {
			if e1 == w {
				return true
			}
		}
		return false
	}
}

// applies returns true if every requirement of st holds.
func (st *Strategy) applies(fs FeatureSet, w int) bool {
	for _, e1 := range st.require {
		if !e1(fs, w) {
			return false
		}
	}
	return true
}

// familyOf returns the strategy family of k.
func familyOf(k ir.Kind) (family, bool) {
	switch {
	case k.IsRotate():
		return familyRotate, true
	case k.IsMinMax():
		return familyMinMax, true
	}
	return 0, false
}

// Select returns the strategy used to lower an operation of kind k and width w on a target with features fs.
// Unsupported widths are errors wrapping ir.ErrUnsupportedWidth; kinds or combinations without a strategy are
// errors wrapping ir.ErrUnsupportedOperation.
func Select(k ir.Kind, w int, fs FeatureSet) (*Strategy, error) {
	c, err := Classify(w)
	if err != nil {
		return nil, errors.Wrapf(err, "%s.i%d", k, w)
	}
	fam, ok := familyOf(k)
	if !ok {
		return nil, errors.Wrapf(ir.ErrUnsupportedOperation, "%s.i%d", k, w)
	}
	for _, e1 := range strategies[strategyKey{fam, c}] {
		if e1.applies(fs, w) {
			return e1, nil
		}
	}
	return nil, errors.Wrapf(ir.ErrUnsupportedOperation, "%s.i%d: no strategy for features [%s]", k, w, fs)
}
