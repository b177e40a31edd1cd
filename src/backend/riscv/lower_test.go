package riscv

import (
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"rvlower/src/backend/regfile"
	"rvlower/src/ir"
)

// v returns the virtual register with offset n from the first virtual register.
func v(n int) regfile.VReg {
	return regfile.FirstVirtual + regfile.VReg(n)
}

// fx returns the fixed register of r.
func fx(r regfile.PReg) regfile.VReg {
	return regfile.Fixed(r)
}

func TestLowerNarrowMin(t *testing.T) {
	fn, alloc := lowerOp(t, ir.SignedMin, 8, FeatureSet{}, 2)
	assert.DeepEqual(t, fn.Strategies, []string{"minmax-select-ext"})
	assert.Equal(t, fn.Signature, "%smin(i8, i8) -> i8")
	assert.Equal(t, Listing(fn.Body), ""+
		"  slli v64,a0,56\n"+
		"  srai v65,v64,56\n"+
		"  slli v66,a1,56\n"+
		"  srai v67,v66,56\n"+
		"  select v68,v65,v67##condition=(v65 slt v67)\n"+
		"  mv a0,v68\n")
	assert.Equal(t, fn.Frame.State(), NoFrame)
	assert.Check(t, is.Len(alloc.clobbered, 0))
}

func TestLowerNarrowMinZbb(t *testing.T) {
	fn, _ := lowerOp(t, ir.UnsignedMax, 16, NewFeatureSet(HasZbb), 2)
	assert.DeepEqual(t, fn.Strategies, []string{"minmax-zbb-ext"})
	assert.Equal(t, Listing(fn.Body), ""+
		"  zext.h v64,a0\n"+
		"  zext.h v65,a1\n"+
		"  maxu v66,v64,v65\n"+
		"  mv a0,v66\n")
}

// TestLowerWideMinPinsCalleeSaved lowers a 128-bit signed min with two scratch registers. Three values are live
// twice, so two of them move to s1 and s2.
func TestLowerWideMinPinsCalleeSaved(t *testing.T) {
	fn, alloc := lowerOp(t, ir.SignedMin, 128, FeatureSet{}, 2)
	assert.DeepEqual(t, fn.Strategies, []string{"minmax-pair"})
	assert.Equal(t, Listing(fn.Body), ""+
		"  slt s1,a1,a3\n"+
		"  sltu v65,a0,a2\n"+
		"  xor v66,a1,a3\n"+
		"  select v67,v65,s1##condition=(v66 eq zero)\n"+
		"  select_i128 [v68,s2],[a0,a1],[a2,a3]##condition=(v67 ne zero)\n"+
		"  mv a0,v68\n"+
		"  mv a1,s2\n")
	assert.DeepEqual(t, fn.Frame.Saved(), []regfile.PReg{S1, S2})
	assert.DeepEqual(t, alloc.clobbered, []regfile.PReg{S1, S2})
	assert.Equal(t, fn.Pressure, 2)
	assert.DeepEqual(t, fn.Params, []ir.Pair[regfile.VReg]{{Low: fx(A0), High: fx(A1)}, {Low: fx(A2), High: fx(A3)}})
	assert.DeepEqual(t, fn.Result, ir.Pair[regfile.VReg]{Low: fx(A0), High: fx(A1)})
}

func TestLowerWideMinEnoughScratch(t *testing.T) {
	fn, alloc := lowerOp(t, ir.UnsignedMax, 128, FeatureSet{}, 3)
	assert.Equal(t, fn.Frame.State(), NoFrame)
	assert.Check(t, is.Len(alloc.clobbered, 0))
	assert.Equal(t, MaxPressure(Intervals(fn.Body)), 3)
	assert.Equal(t, fn.Pressure, 3)
}

func TestLowerRotateImmediate(t *testing.T) {
	tests := []struct {
		name string
		k    ir.Kind
		w    int
		imm  int64
		fs   FeatureSet
		exp  string
	}{
		{
			name: "widen",
			k:    ir.RotateLeft, w: 8, imm: 3,
			exp: "  andi v64,a0,255\n  slli v65,v64,3\n  srli v66,v65,8\n  or v67,v65,v66\n  mv a0,v67\n",
		},
		{
			name: "zero amount",
			k:    ir.RotateRight, w: 64, imm: 128, fs: NewFeatureSet(HasZbb),
			exp: "  mv v64,a0\n  mv a0,v64\n",
		},
		{
			name: "left as right",
			k:    ir.RotateLeft, w: 64, imm: 8, fs: NewFeatureSet(HasZbb),
			exp: "  rori v64,a0,56\n  mv a0,v64\n",
		},
		{
			name: "word shift",
			k:    ir.RotateRight, w: 32, imm: -4,
			exp: "  slliw v64,a0,4\n  srliw v65,a0,28\n  or v66,v64,v65\n  mv a0,v66\n",
		},
		{
			name: "pair swap",
			k:    ir.RotateLeft, w: 128, imm: 64,
			exp: "  mv v64,a1\n  mv v65,a0\n  mv a0,v64\n  mv a1,v65\n",
		},
	}
	for _, e1 := range tests {
		t.Run(e1.name, func(t *testing.T) {
			f := ir.NewFunction("rot", e1.w)
			f.AppendImm(e1.k, e1.w, 0, e1.imm)
			abi, err := NewABI(4)
			assert.NilError(t, err)
			fn, err := Lower(f, e1.fs, abi, newTestAlloc())
			assert.NilError(t, err)
			assert.Equal(t, Listing(fn.Body), e1.exp)
		})
	}
}

func TestRotlAmount(t *testing.T) {
	amount := func(k ir.Kind, w int, imm int64) int64 {
		return rotlAmount(&ir.Operation{Kind: k, Width: w, Imm: &imm})
	}
	assert.Equal(t, amount(ir.RotateLeft, 32, 100), int64(4))
	assert.Equal(t, amount(ir.RotateRight, 8, 1), int64(7))
	assert.Equal(t, amount(ir.RotateRight, 8, 0), int64(0))
	assert.Equal(t, amount(ir.RotateLeft, 8, -1), int64(7))
	assert.Equal(t, amount(ir.RotateRight, 128, -200), int64(72))
}

// TestLowerPressure lowers every operation at every width and checks that the body stays within the scratch
// budget and is in SSA form.
func TestLowerPressure(t *testing.T) {
	sets := []FeatureSet{{}, NewFeatureSet(HasZbb), NewFeatureSet(HasZbb, HasZba)}
	for _, scratch := range []int{1, 2, 7} {
		for _, k := range []ir.Kind{ir.RotateLeft, ir.RotateRight, ir.SignedMin, ir.SignedMax, ir.UnsignedMin,
			ir.UnsignedMax} {
			for _, w := range ir.Widths {
				for _, fs := range sets {
					fn, alloc := lowerOp(t, k, w, fs, scratch)
					assert.Check(t, MaxPressure(Intervals(fn.Body)) <= scratch, "%s.i%d [%s] scratch %d", k, w,
						fs, scratch)
					assert.Equal(t, fn.Pressure, MaxPressure(Intervals(fn.Body)))
					assert.Check(t, verifySSA(fn.Body), "%s.i%d [%s]", k, w, fs)
					assert.DeepEqual(t, fn.Frame.Saved(), alloc.clobbered)
				}
			}
		}
	}
}

func TestLowerTooManyArguments(t *testing.T) {
	f := ir.NewFunction("wide", 128, 128, 128, 128, 128)
	f.Append(ir.SignedMin, 128, 0, 1)
	abi, err := NewABI(2)
	assert.NilError(t, err)
	_, err = Lower(f, FeatureSet{}, abi, newTestAlloc())
	assert.Check(t, is.ErrorIs(err, ir.ErrUnsupportedOperation))
	assert.ErrorContains(t, err, "v4 (i128)")
}

func TestLowerInvalidFunction(t *testing.T) {
	f := &ir.Function{Name: "w7", Params: []int{7}}
	abi, err := NewABI(2)
	assert.NilError(t, err)
	_, err = Lower(f, FeatureSet{}, abi, newTestAlloc())
	assert.Check(t, is.ErrorIs(err, ir.ErrUnsupportedWidth))
}

func TestLegalizeExhausted(t *testing.T) {
	f := ir.NewFunction("smin", 128, 128)
	f.Append(ir.SignedMin, 128, 0, 1)
	abi := ABI{
		Args:        []regfile.PReg{A0, A1, A2, A3, A4, A5, A6, A7},
		Scratch:     []regfile.PReg{T0},
		CalleeSaved: []regfile.PReg{S1},
	}
	_, err := Lower(f, FeatureSet{}, abi, newTestAlloc())
	assert.Check(t, is.ErrorIs(err, ir.ErrUnsupportedOperation))
	assert.ErrorContains(t, err, "exceed 1 scratch and 1 callee-saved registers")
}

func TestIntervals(t *testing.T) {
	body := []*Inst{
		NewR(OpOr, v(0), fx(A0), fx(A1)),
		NewSelectPair(ir.Pair[regfile.VReg]{Low: v(1), High: v(2)}, ir.Pair[regfile.VReg]{Low: fx(A0), High: fx(A1)},
			ir.Pair[regfile.VReg]{Low: fx(A2), High: fx(A3)}, Cond{Kind: CondNe, A: v(0), B: fx(Zero)}),
		NewUnary(OpMv, fx(A0), v(1)),
		NewUnary(OpMv, fx(A1), v(2)),
	}
	ivs := Intervals(body)
	assert.DeepEqual(t, ivs, []Interval{
		{Reg: v(0), Start: 1, End: 2},
		{Reg: v(1), Start: 2, End: 4},
		{Reg: v(2), Start: 2, End: 6},
	})
	assert.Check(t, ivs[0].Overlaps(ivs[2]))
	assert.Check(t, !Interval{Start: 1, End: 2}.Overlaps(Interval{Start: 3, End: 4}))
	assert.Equal(t, MaxPressure(ivs), 3)

	p, live := firstOverflow(ivs, 2)
	assert.Equal(t, p, 2)
	assert.Check(t, is.Len(live, 3))
	p, _ = firstOverflow(ivs, 3)
	assert.Equal(t, p, -1)
}

func TestIntervalsUnusedDef(t *testing.T) {
	ivs := Intervals([]*Inst{NewI(OpAddi, v(0), fx(A0), 1), NewUnary(OpMv, fx(A0), fx(A1))})
	assert.DeepEqual(t, ivs, []Interval{{Reg: v(0), Start: 1, End: 1}})
	assert.Equal(t, MaxPressure(nil), 0)
}

func TestVerifySSA(t *testing.T) {
	err := verifySSA([]*Inst{NewR(OpOr, v(0), fx(A0), fx(A1)), NewR(OpXor, v(0), fx(A0), fx(A1))})
	assert.Check(t, is.ErrorIs(err, ir.ErrInternalConsistency))
	assert.ErrorContains(t, err, "a second time")

	err = verifySSA([]*Inst{NewR(OpOr, v(1), v(0), fx(A1))})
	assert.Check(t, is.ErrorIs(err, ir.ErrInternalConsistency))
	assert.ErrorContains(t, err, "before it is written")

	assert.NilError(t, verifySSA([]*Inst{NewUnary(OpMv, fx(A0), fx(A1)), NewUnary(OpMv, fx(A0), fx(A2))}))
}

func TestPairCheck(t *testing.T) {
	x := ir.Pair[regfile.VReg]{Low: v(0), High: v(1)}
	y := ir.Pair[regfile.VReg]{Low: v(2), High: v(3)}
	d := ir.Pair[regfile.VReg]{Low: v(4), High: v(5)}
	pr := newPairRegistry()
	pr.add(x)
	pr.add(y)
	pr.add(d)
	c := Cond{Kind: CondNe, A: fx(A0), B: fx(Zero)}

	assert.NilError(t, pr.check([]*Inst{NewSelectPair(d, x.Swap(), y, c)}))

	mixed := ir.Pair[regfile.VReg]{Low: v(0), High: v(3)}
	err := pr.check([]*Inst{NewR(OpOr, v(6), v(0), v(1)), NewSelectPair(d, mixed, y, c)})
	assert.Check(t, is.ErrorIs(err, ir.ErrInternalConsistency))
	assert.ErrorContains(t, err, "instruction 1")
	assert.ErrorContains(t, err, "[v64,v67]")

	same := ir.Pair[regfile.VReg]{Low: v(0), High: v(0)}
	assert.Check(t, !pr.whole(same))
}
