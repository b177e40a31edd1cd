// Package llvm provides a second reference for the semantics of the target independent operations: functions are
// translated to LLVM IR and run by the LLVM interpreter.
package llvm

import (
	"sync"

	"github.com/containerd/errdefs"
	"github.com/pkg/errors"
	"tinygo.org/x/go-llvm"

	"rvlower/src/ir"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Evaluator holds a module with the translation of one or more functions and the interpreter running it.
// Functions take every parameter as one i64 per limb, low limb first, and return the low and high limb of the
// result from two separate entry points.
type Evaluator struct {
	ctx        llvm.Context
	mod        llvm.Module
	ee         llvm.ExecutionEngine
	i64        llvm.Type
	funcs      map[string]entry
	sync.Mutex // The interpreter is not safe for concurrent use.
}

// entry references the translation of one function.
type entry struct {
	f    *ir.Function
	low  llvm.Value // Returns the low limb of the result.
	high llvm.Value // Returns the high limb of the result.
}

// -------------------
// ----- globals -----
// -------------------

var linkOnce sync.Once

// ---------------------
// ----- functions -----
// ---------------------

// NewEvaluator translates fns into a new module and prepares the interpreter. The functions must be valid.
func NewEvaluator(name string, fns ...*ir.Function) (*Evaluator, error) {
	linkOnce.Do(llvm.LinkInInterpreter)

	e := &Evaluator{
		ctx:   llvm.NewContext(),
		funcs: make(map[string]entry, len(fns)),
	}
	e.mod = e.ctx.NewModule(name)
	e.i64 = e.ctx.Int64Type()

	b := e.ctx.NewBuilder()
	defer b.Dispose()
	for _, e1 := range fns {
		if err := ir.Validate(e1); err != nil {
			e.mod.Dispose()
			e.ctx.Dispose()
			return nil, err
		}
		if _, ok := e.funcs[e1.Name]; ok {
			e.mod.Dispose()
			e.ctx.Dispose()
			return nil, errors.Wrapf(errdefs.ErrInvalidArgument, "function %s defined more than once", e1.Name)
		}
		e.funcs[e1.Name] = entry{
			f:    e1,
			low:  e.genFunc(b, e1, false),
			high: e.genFunc(b, e1, true),
		}
	}

	if err := llvm.VerifyModule(e.mod, llvm.ReturnStatusAction); err != nil {
		e.mod.Dispose()
		e.ctx.Dispose()
		return nil, errors.Wrapf(ir.ErrInternalConsistency, "module %s: %s", name, err)
	}
	ee, err := llvm.NewInterpreter(e.mod)
	if err != nil {
		e.mod.Dispose()
		e.ctx.Dispose()
		return nil, errors.Wrapf(errdefs.ErrUnavailable, "LLVM interpreter: %s", err)
	}
	e.ee = ee
	return e, nil
}

// Dispose releases the interpreter, the module and the context.
func (e *Evaluator) Dispose() {
	e.ee.Dispose() // Owns the module.
	e.ctx.Dispose()
}

// String returns the LLVM IR of the module.
func (e *Evaluator) String() string {
	return e.mod.String()
}

// Call runs the function called name on args and returns the zero extended result.
func (e *Evaluator) Call(name string, args ...ir.Int128) (ir.Int128, error) {
	fe, ok := e.funcs[name]
	if !ok {
		return ir.Int128{}, errors.Wrapf(errdefs.ErrNotFound, "function %s", name)
	}
	if len(args) != len(fe.f.Params) {
		return ir.Int128{}, errors.Wrapf(errdefs.ErrInvalidArgument, "function %s takes %d arguments, got %d",
			name, len(fe.f.Params), len(args))
	}

	gvs := make([]llvm.GenericValue, 0, 2*len(args))
	defer func() {
		for _, e1 := range gvs {
			e1.Dispose()
		}
	}()
	for i1, e1 := range args {
		gvs = append(gvs, llvm.NewGenericValueFromInt(e.i64, e1.Low, false))
		if fe.f.Params[i1] == 128 {
			gvs = append(gvs, llvm.NewGenericValueFromInt(e.i64, e1.High, false))
		}
	}

	e.Lock()
	defer e.Unlock()
	lo := e.ee.RunFunction(fe.low, gvs)
	defer lo.Dispose()
	hi := e.ee.RunFunction(fe.high, gvs)
	defer hi.Dispose()
	return ir.Int128{Low: lo.Int(false), High: hi.Int(false)}, nil
}

// genFunc generates the entry point of f returning the high limb of the result if high is set, otherwise the low
// limb.
func (e *Evaluator) genFunc(b llvm.Builder, f *ir.Function, high bool) llvm.Value {
	var params []llvm.Type
	for _, e1 := range f.Params {
		params = append(params, e.i64)
		if e1 == 128 {
			params = append(params, e.i64)
		}
	}
	name := f.Name + ".lo"
	if high {
		name = f.Name + ".hi"
	}
	fun := llvm.AddFunction(e.mod, name, llvm.FunctionType(e.i64, params, false))
	b.SetInsertPointAtEnd(e.ctx.AddBasicBlock(fun, "entry"))

	// Assemble parameters from their limbs.
	vals := make([]llvm.Value, 0, f.NumValues())
	p := 0
	for _, e1 := range f.Params {
		t := e.ctx.IntType(e1)
		var v llvm.Value
		switch {
		case e1 == 128:
			lo := b.CreateZExt(fun.Param(p), t, "")
			hi := b.CreateZExt(fun.Param(p+1), t, "")
			v = b.CreateOr(lo, b.CreateShl(hi, llvm.ConstInt(t, 64, false), ""), "")
			p += 2
		case e1 == 64:
			v = fun.Param(p)
			p++
		default:
			v = b.CreateTrunc(fun.Param(p), t, "")
			p++
		}
		vals = append(vals, v)
	}

	for _, e1 := range f.Ops {
		vals = append(vals, e.genOp(b, f, e1, vals))
	}

	// Return the requested limb of the result.
	r := vals[f.Return]
	w := f.WidthOf(f.Return)
	var res llvm.Value
	switch {
	case high && w == 128:
		res = b.CreateTrunc(b.CreateLShr(r, llvm.ConstInt(e.ctx.IntType(128), 64, false), ""), e.i64, "")
	case high:
		res = llvm.ConstInt(e.i64, 0, false)
	default:
		res = e.low64(b, r, w)
	}
	b.CreateRet(res)
	return fun
}

// genOp generates the operation op on the values vals and returns its result.
func (e *Evaluator) genOp(b llvm.Builder, f *ir.Function, op *ir.Operation, vals []llvm.Value) llvm.Value {
	t := e.ctx.IntType(op.Width)
	x := vals[op.Args[0]]

	if op.Kind.IsRotate() {
		// The amount is the immediate or the low 64 bits of the second operand, modulo the width.
		var n llvm.Value
		if op.Imm != nil {
			k := *op.Imm % int64(op.Width)
			if k < 0 {
				k += int64(op.Width)
			}
			n = llvm.ConstInt(t, uint64(k), false)
		} else {
			amount := e.low64(b, vals[op.Args[1]], f.WidthOf(op.Args[1]))
			n = b.CreateURem(amount, llvm.ConstInt(e.i64, uint64(op.Width), false), "")
			switch {
			case op.Width < 64:
				n = b.CreateTrunc(n, t, "")
			case op.Width > 64:
				n = b.CreateZExt(n, t, "")
			}
		}

		// x << n | x >> (-n & (w-1)), mirrored for right rotates.
		back := b.CreateAnd(b.CreateSub(llvm.ConstInt(t, 0, false), n, ""),
			llvm.ConstInt(t, uint64(op.Width-1), false), "")
		if op.Kind == ir.RotateLeft {
			return b.CreateOr(b.CreateShl(x, n, ""), b.CreateLShr(x, back, ""), "")
		}
		return b.CreateOr(b.CreateLShr(x, n, ""), b.CreateShl(x, back, ""), "")
	}

	y := vals[op.Args[1]]
	var pred llvm.IntPredicate
	switch op.Kind {
	case ir.SignedMin:
		pred = llvm.IntSLT
	case ir.SignedMax:
		pred = llvm.IntSGT
	case ir.UnsignedMin:
		pred = llvm.IntULT
	default:
		pred = llvm.IntUGT
	}
	return b.CreateSelect(b.CreateICmp(pred, x, y, ""), x, y, "")
}

// low64 returns the low 64 bits of v of width w as an i64, zero extended.
func (e *Evaluator) low64(b llvm.Builder, v llvm.Value, w int) llvm.Value {
	switch {
	case w < 64:
		return b.CreateZExt(v, e.i64, "")
	case w > 64:
		return b.CreateTrunc(v, e.i64, "")
	}
	return v
}
