// Package backend drives the lowering of whole units: functions are lowered in parallel, register allocated,
// finalized and encoded, and their listings written in unit order.
package backend

import (
	"context"
	"fmt"

	"github.com/containerd/log"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"rvlower/src/backend/lir"
	"rvlower/src/backend/oracle"
	"rvlower/src/backend/riscv"
	"rvlower/src/ir"
	"rvlower/src/util"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Result is a lowered, allocated and encoded function.
type Result struct {
	Func    *riscv.Func   // Lowered function on physical registers, with its frame emitted.
	Insts   []*riscv.Inst // Machine instructions as returned by riscv.Finalize.
	Code    []byte        // Little-endian machine code.
	Listing string        // Disassembly of Code.
}

// ---------------------
// ----- Functions -----
// ---------------------

// Target returns the feature set and calling convention selected by opt.
func Target(opt util.Options) (riscv.FeatureSet, riscv.ABI, error) {
	fs, err := riscv.ParseFeatures(opt.Features)
	if err != nil {
		return riscv.FeatureSet{}, riscv.ABI{}, err
	}
	if opt.HostFeatures {
		fs = fs.Union(riscv.HostFeatures())
	}
	abi, err := riscv.NewABI(opt.Scratch)
	if err != nil {
		return riscv.FeatureSet{}, riscv.ABI{}, err
	}
	return fs, abi, nil
}

// GenerateAssembler lowers every function of u using up to opt.Threads worker threads. If out is not nil each
// function's listing is written to it, in the order the functions appear in u. Errors of all functions are
// collected and returned together; the unit fails if any function fails. m may be nil.
func GenerateAssembler(ctx context.Context, opt util.Options, u *ir.Unit, out *util.Output, m *Metrics) ([]*Result, error) {
	fs, abi, err := Target(opt)
	if err != nil {
		return nil, err
	}
	threads := opt.Threads
	if threads < 1 {
		threads = 1
	}
	log.G(ctx).WithFields(log.Fields{
		"unit":      u.Name,
		"functions": len(u.Functions),
		"features":  fs.String(),
		"scratch":   len(abi.Scratch),
		"threads":   threads,
	}).Debug("lowering unit")

	res := make([]*Result, len(u.Functions))
	pe := util.NewPerror(len(u.Functions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(threads)
	for i1, e1 := range u.Functions {
		i1, e1 := i1, e1
		g.Go(func() error {
			var w *util.Writer
			if out != nil {
				w = out.NewWriter(i1)
				defer w.Close()
			}
			if err := gctx.Err(); err != nil {
				pe.Append(errors.Wrapf(err, "function %s", e1.Name))
				return nil
			}
			r, err := lowerFunction(gctx, e1, fs, abi)
			if err != nil {
				if m != nil {
					m.fail()
				}
				log.G(gctx).WithError(err).WithField("function", e1.Name).Debug("lowering failed")
				pe.Append(err)
				return nil
			}
			if m != nil {
				m.observe(r.Func, len(r.Code)/4)
			}
			if w != nil {
				r.write(w, opt.Disasm)
			}
			res[i1] = r
			return nil
		})
	}
	_ = g.Wait()
	pe.Stop()
	if pe.Len() > 0 {
		return nil, pe.Err()
	}
	return res, nil
}

// lowerFunction runs the whole pipeline for f. Panics signalling broken invariants are recovered and returned as
// the function's error.
func lowerFunction(ctx context.Context, f *ir.Function, fs riscv.FeatureSet, abi riscv.ABI) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = errors.Wrapf(e, "function %s", f.Name)
			} else {
				err = errors.Wrapf(ir.ErrInternalConsistency, "function %s: %v", f.Name, r)
			}
			res = nil
		}
	}()

	alloc := lir.NewAllocator(abi.Scratch)
	fn, err := riscv.Lower(f, fs, abi, alloc)
	if err != nil {
		return nil, err
	}
	if err := alloc.Assign(fn); err != nil {
		return nil, err
	}
	insts, err := riscv.Finalize(fn)
	if err != nil {
		return nil, err
	}
	code, err := oracle.Encode(insts)
	if err != nil {
		return nil, errors.Wrapf(err, "function %s", f.Name)
	}
	listing, err := oracle.Disassemble(code)
	if err != nil {
		return nil, errors.Wrapf(err, "function %s", f.Name)
	}

	log.G(ctx).WithFields(log.Fields{
		"function":   f.Name,
		"strategies": fn.Strategies,
		"frame":      fn.Frame.Size(),
		"pressure":   fn.Pressure,
		"bytes":      len(code),
	}).Debug("lowered function")
	return &Result{Func: fn, Insts: insts, Code: code, Listing: listing}, nil
}

// write writes the listing of r to w.
func (r *Result) write(w *util.Writer, disasm bool) {
	w.Write("function %s\n", r.Func.Signature)
	w.Line("; VCode:")
	w.Line(r.Func.VCode())
	if disasm {
		w.Line("; Disassembled:")
		w.Line(r.Listing)
	}
	w.Line("")
}

// String returns the listing of r with its disassembly.
func (r *Result) String() string {
	return fmt.Sprintf("function %s\n; VCode:\n%s; Disassembled:\n%s", r.Func.Signature, r.Func.VCode(), r.Listing)
}
