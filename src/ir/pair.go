package ir

import "fmt"

// Pair holds the two 64-bit limbs of a 128-bit quantity, low limb first. The lowering backend uses
// Pair[regfile.VReg] for register pairs, the reference evaluator uses Int128.
type Pair[T comparable] struct {
	Low  T
	High T
}

// Int128 is a 128-bit integer as a pair of limbs: value = High*2^64 + Low. The sign of a signed value is the top
// bit of High.
type Int128 = Pair[uint64]

// Swap returns p with its limbs exchanged.
func (p Pair[T]) Swap() Pair[T] {
	return Pair[T]{Low: p.High, High: p.Low}
}

// Limbs returns the limbs of p in order, low first.
func (p Pair[T]) Limbs() [2]T {
	return [2]T{p.Low, p.High}
}

// FromUint64 returns the 128-bit zero extension of v.
func FromUint64(v uint64) Int128 {
	return Int128{Low: v}
}

// FromInt64 returns the 128-bit sign extension of v.
func FromInt64(v int64) Int128 {
	if v < 0 {
		return Int128{Low: uint64(v), High: ^uint64(0)}
	}
	return Int128{Low: uint64(v)}
}

// Format prints an Int128 as a single hexadecimal number.
func Format(v Int128) string {
	if v.High == 0 {
		return fmt.Sprintf("0x%x", v.Low)
	}
	return fmt.Sprintf("0x%x%016x", v.High, v.Low)
}
