// Package oracle encodes, disassembles and executes lowered RISC-V 64 code. It verifies the lowering core and is
// not used to produce output for real targets.
package oracle

import (
	"encoding/binary"

	"github.com/containerd/errdefs"
	"github.com/pkg/errors"

	"rvlower/src/backend/regfile"
	"rvlower/src/backend/riscv"
	"rvlower/src/ir"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// codec is the bit layout of an instruction word.
type codec int

// encoding describes how an instruction is recognised and built: word & mask(codec) == test.
type encoding struct {
	op    riscv.Op
	test  uint32
	codec codec
}

// ---------------------
// ----- Constants -----
// ---------------------

const (
	codecR       codec = iota // funct7 rs2 rs1 funct3 rd opcode
	codecI                    // imm[11:0] rs1 funct3 rd opcode
	codecShift64              // imm[11:6] shamt[5:0] rs1 funct3 rd opcode
	codecShift32              // funct7 shamt[4:0] rs1 funct3 rd opcode
	codecUnary                // funct12 rs1 funct3 rd opcode, or funct7 with rs2 fixed to zero
	codecU                    // imm[31:12] rd opcode
	codecS                    // imm[11:5] rs2 rs1 funct3 imm[4:0] opcode
	codecB                    // imm[12|10:5] rs2 rs1 funct3 imm[4:1|11] opcode
	codecJ                    // imm[20|10:1|11|19:12] rd opcode
)

// masks holds the bits fixed by each codec.
var masks = [...]uint32{
	codecR:       0xfe00707f,
	codecI:       0x0000707f,
	codecShift64: 0xfc00707f,
	codecShift32: 0xfe00707f,
	codecUnary:   0xfff0707f,
	codecU:       0x0000007f,
	codecS:       0x0000707f,
	codecB:       0x0000707f,
	codecJ:       0x0000007f,
}

// encodings lists every instruction the oracle understands.
var encodings = [...]encoding{
	{riscv.OpAddi, 0x00000013, codecI},
	{riscv.OpAddiw, 0x0000001b, codecI},
	{riscv.OpAndi, 0x00007013, codecI},
	{riscv.OpXori, 0x00004013, codecI},
	{riscv.OpSlli, 0x00001013, codecShift64},
	{riscv.OpSrli, 0x00005013, codecShift64},
	{riscv.OpSrai, 0x40005013, codecShift64},
	{riscv.OpSlliw, 0x0000101b, codecShift32},
	{riscv.OpSrliw, 0x0000501b, codecShift32},
	{riscv.OpSub, 0x40000033, codecR},
	{riscv.OpSll, 0x00001033, codecR},
	{riscv.OpSrl, 0x00005033, codecR},
	{riscv.OpSllw, 0x0000103b, codecR},
	{riscv.OpSrlw, 0x0000503b, codecR},
	{riscv.OpOr, 0x00006033, codecR},
	{riscv.OpAnd, 0x00007033, codecR},
	{riscv.OpXor, 0x00004033, codecR},
	{riscv.OpSlt, 0x00002033, codecR},
	{riscv.OpSltu, 0x00003033, codecR},
	{riscv.OpLui, 0x00000037, codecU},
	{riscv.OpLd, 0x00003003, codecI},
	{riscv.OpSd, 0x00003023, codecS},
	{riscv.OpBeq, 0x00000063, codecB},
	{riscv.OpBne, 0x00001063, codecB},
	{riscv.OpBlt, 0x00004063, codecB},
	{riscv.OpBge, 0x00005063, codecB},
	{riscv.OpBltu, 0x00006063, codecB},
	{riscv.OpBgeu, 0x00007063, codecB},
	{riscv.OpJal, 0x0000006f, codecJ},
	{riscv.OpJalr, 0x00000067, codecI},

	{riscv.OpRol, 0x60001033, codecR},
	{riscv.OpRor, 0x60005033, codecR},
	{riscv.OpRori, 0x60005013, codecShift64},
	{riscv.OpRolw, 0x6000103b, codecR},
	{riscv.OpRorw, 0x6000503b, codecR},
	{riscv.OpRoriw, 0x6000501b, codecShift32},
	{riscv.OpMin, 0x0a004033, codecR},
	{riscv.OpMinu, 0x0a005033, codecR},
	{riscv.OpMax, 0x0a006033, codecR},
	{riscv.OpMaxu, 0x0a007033, codecR},
	{riscv.OpSextb, 0x60401013, codecUnary},
	{riscv.OpSexth, 0x60501013, codecUnary},
	{riscv.OpZexth, 0x0800403b, codecUnary},

	{riscv.OpAdduw, 0x0800003b, codecR},
}

// -------------------
// ----- Globals -----
// -------------------

// byOp indexes encodings by instruction.
var byOp = func() map[riscv.Op]encoding {
	m := make(map[riscv.Op]encoding, len(encodings))
	for _, e1 := range encodings {
		m[e1.op] = e1
	}
	return m
}()

// ---------------------
// ----- Functions -----
// ---------------------

// Encode returns the little-endian machine code of insts. insts must hold machine instructions on physical
// registers and label definitions only, as returned by riscv.Finalize.
func Encode(insts []*riscv.Inst) ([]byte, error) {
	// Resolve label offsets.
	labels := make(map[string]int64)
	pc := int64(0)
	for _, e1 := range insts {
		if e1.Op == riscv.OpLabel {
			if _, ok := labels[e1.Label]; ok {
				return nil, errors.Wrapf(ir.ErrInternalConsistency, "label %s defined twice", e1.Label)
			}
			labels[e1.Label] = pc
			continue
		}
		pc += 4
	}

	code := make([]byte, 0, pc)
	pc = 0
	for _, e1 := range insts {
		if e1.Op == riscv.OpLabel {
			continue
		}
		w, err := encodeInst(e1, pc, labels)
		if err != nil {
			return nil, errors.Wrapf(err, "offset %#x: %s", pc, e1)
		}
		code = binary.LittleEndian.AppendUint32(code, w)
		pc += 4
	}
	return code, nil
}

// EncodeWord returns the instruction word of a single instruction without label operands.
func EncodeWord(in *riscv.Inst) (uint32, error) {
	return encodeInst(in, 0, nil)
}

// encodeInst returns the instruction word of in located at offset pc.
func encodeInst(in *riscv.Inst, pc int64, labels map[string]int64) (uint32, error) {
	enc, ok := byOp[in.Op]
	if !ok {
		return 0, errors.Wrapf(ir.ErrInternalConsistency, "%s has no encoding", in.Op)
	}
	reg := func(v regfile.VReg) (uint32, error) {
		if !v.IsFixed() {
			return 0, errors.Wrapf(ir.ErrInternalConsistency, "register %s is not allocated", v)
		}
		return uint32(v.PReg()), nil
	}
	target := func() (int64, error) {
		off, ok := labels[in.Label]
		if !ok {
			return 0, errors.Wrapf(errdefs.ErrNotFound, "undefined label %s", in.Label)
		}
		return off - pc, nil
	}

	w := enc.test
	switch enc.codec {
	case codecR:
		rd, err1 := reg(in.Rd)
		rs1, err2 := reg(in.Rs1)
		rs2, err3 := reg(in.Rs2)
		if err := firstErr(err1, err2, err3); err != nil {
			return 0, err
		}
		return w | rd<<7 | rs1<<15 | rs2<<20, nil
	case codecI:
		rd, err1 := reg(in.Rd)
		rs1, err2 := reg(in.Rs1)
		if err := firstErr(err1, err2); err != nil {
			return 0, err
		}
		if in.Imm < -2048 || in.Imm > 2047 {
			return 0, errors.Wrapf(errdefs.ErrInvalidArgument, "immediate %d out of range", in.Imm)
		}
		return w | rd<<7 | rs1<<15 | uint32(in.Imm&0xfff)<<20, nil
	case codecShift64, codecShift32:
		rd, err1 := reg(in.Rd)
		rs1, err2 := reg(in.Rs1)
		if err := firstErr(err1, err2); err != nil {
			return 0, err
		}
		limit := int64(63)
		if enc.codec == codecShift32 {
			limit = 31
		}
		if in.Imm < 0 || in.Imm > limit {
			return 0, errors.Wrapf(errdefs.ErrInvalidArgument, "shift amount %d out of range", in.Imm)
		}
		return w | rd<<7 | rs1<<15 | uint32(in.Imm)<<20, nil
	case codecUnary:
		rd, err1 := reg(in.Rd)
		rs1, err2 := reg(in.Rs1)
		if err := firstErr(err1, err2); err != nil {
			return 0, err
		}
		return w | rd<<7 | rs1<<15, nil
	case codecU:
		rd, err := reg(in.Rd)
		if err != nil {
			return 0, err
		}
		return w | rd<<7 | uint32(in.Imm&0xfffff)<<12, nil
	case codecS:
		rs1, err1 := reg(in.Rs1)
		rs2, err2 := reg(in.Rs2)
		if err := firstErr(err1, err2); err != nil {
			return 0, err
		}
		if in.Imm < -2048 || in.Imm > 2047 {
			return 0, errors.Wrapf(errdefs.ErrInvalidArgument, "offset %d out of range", in.Imm)
		}
		imm := uint32(in.Imm & 0xfff)
		return w | (imm>>5)<<25 | rs2<<20 | rs1<<15 | (imm&0x1f)<<7, nil
	case codecB:
		rs1, err1 := reg(in.Rs1)
		rs2, err2 := reg(in.Rs2)
		off, err3 := target()
		if err := firstErr(err1, err2, err3); err != nil {
			return 0, err
		}
		if off < -4096 || off > 4094 || off&1 != 0 {
			return 0, errors.Wrapf(errdefs.ErrInvalidArgument, "branch offset %d out of range", off)
		}
		imm := uint32(off)
		return w | (imm>>12&1)<<31 | (imm>>5&0x3f)<<25 | rs2<<20 | rs1<<15 | (imm>>1&0xf)<<8 | (imm>>11&1)<<7, nil
	case codecJ:
		rd, err1 := reg(in.Rd)
		off, err2 := target()
		if err := firstErr(err1, err2); err != nil {
			return 0, err
		}
		if off < -1<<20 || off >= 1<<20 || off&1 != 0 {
			return 0, errors.Wrapf(errdefs.ErrInvalidArgument, "jump offset %d out of range", off)
		}
		imm := uint32(off)
		return w | (imm>>20&1)<<31 | (imm>>1&0x3ff)<<21 | (imm>>11&1)<<20 | (imm>>12&0xff)<<12 | rd<<7, nil
	}
	return 0, errors.Wrapf(ir.ErrInternalConsistency, "%s: unknown codec %d", in.Op, enc.codec)
}

// firstErr returns the first non-nil error of errs.
func firstErr(errs ...error) error {
	for _, e1 := range errs {
		if e1 != nil {
			return e1
		}
	}
	return nil
}
