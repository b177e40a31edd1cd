package lir

import (
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"rvlower/src/backend/regfile"
	"rvlower/src/backend/riscv"
	"rvlower/src/ir"
)

func fx(r regfile.PReg) regfile.VReg {
	return regfile.Fixed(r)
}

// chain returns a body adding one to three arguments and or'ing the results together.
func chain(a *Allocator) *riscv.Func {
	v := make([]regfile.VReg, 5)
	for i1 := range v {
		v[i1] = a.RequestTemporary(riscv.Native)
	}
	return &riscv.Func{Name: "chain", Body: []*riscv.Inst{
		riscv.NewI(riscv.OpAddi, v[0], fx(riscv.A0), 1),
		riscv.NewI(riscv.OpAddi, v[1], fx(riscv.A1), 1),
		riscv.NewI(riscv.OpAddi, v[2], fx(riscv.A2), 1),
		riscv.NewR(riscv.OpOr, v[3], v[0], v[1]),
		riscv.NewR(riscv.OpOr, v[4], v[3], v[2]),
		riscv.NewUnary(riscv.OpMv, fx(riscv.A0), v[4]),
	}}
}

func TestAssign(t *testing.T) {
	a := NewAllocator([]regfile.PReg{riscv.T0, riscv.T1, riscv.T2})
	fn := chain(a)
	assert.NilError(t, a.Assign(fn))
	assert.Equal(t, riscv.Listing(fn.Body), ""+
		"  addi t0,a0,1\n"+
		"  addi t1,a1,1\n"+
		"  addi t2,a2,1\n"+
		"  or t0,t0,t1\n"+
		"  or t0,t0,t2\n"+
		"  mv a0,t0\n")

	r, ok := a.Assigned(regfile.FirstVirtual + 2)
	assert.Check(t, ok)
	assert.Equal(t, r, riscv.T2)
	_, ok = a.Assigned(regfile.FirstVirtual + 9)
	assert.Check(t, !ok)

	a.MarkClobbered(riscv.S1)
	assert.DeepEqual(t, a.Clobbered(), []regfile.PReg{riscv.T0, riscv.T1, riscv.T2, riscv.S1})
}

func TestAssignExhausted(t *testing.T) {
	a := NewAllocator([]regfile.PReg{riscv.T0, riscv.T1})
	err := a.Assign(chain(a))
	assert.Check(t, is.ErrorIs(err, ir.ErrInternalConsistency))
	assert.ErrorContains(t, err, "no scratch register left for v66")
}

func TestRequestTemporary(t *testing.T) {
	a := NewAllocator(nil)
	assert.Equal(t, a.RequestTemporary(riscv.Native), regfile.FirstVirtual)
	assert.Equal(t, a.RequestTemporary(riscv.Wide), regfile.FirstVirtual+1)
	assert.Equal(t, a.RequestTemporary(riscv.Sub), regfile.FirstVirtual+3)
	assert.Check(t, is.Len(a.Clobbered(), 0))
}

// TestAssignLowered allocates a lowered 128-bit signed min with two scratch registers.
func TestAssignLowered(t *testing.T) {
	f := ir.NewFunction("smin_i128", 128, 128)
	f.Append(ir.SignedMin, 128, 0, 1)
	abi, err := riscv.NewABI(2)
	assert.NilError(t, err)
	a := NewAllocator(abi.Scratch)
	fn, err := riscv.Lower(f, riscv.FeatureSet{}, abi, a)
	assert.NilError(t, err)
	assert.NilError(t, a.Assign(fn))
	assert.Equal(t, riscv.Listing(fn.Body), ""+
		"  slt s1,a1,a3\n"+
		"  sltu t0,a0,a2\n"+
		"  xor t1,a1,a3\n"+
		"  select t0,t0,s1##condition=(t1 eq zero)\n"+
		"  select_i128 [t1,s2],[a0,a1],[a2,a3]##condition=(t0 ne zero)\n"+
		"  mv a0,t1\n"+
		"  mv a1,s2\n")
	assert.DeepEqual(t, a.Clobbered(), []regfile.PReg{riscv.T0, riscv.T1, riscv.S1, riscv.S2})
}
