package oracle

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strings"

	"github.com/containerd/errdefs"
	"github.com/pkg/errors"

	"rvlower/src/backend/regfile"
	"rvlower/src/backend/riscv"
)

// Decoded is a decoded instruction word.
type Decoded struct {
	Op   riscv.Op
	Rd   regfile.PReg
	Rs1  regfile.PReg
	Rs2  regfile.PReg
	Imm  int64 // Sign extended immediate; byte offset for branches and jumps.
	Word uint32
}

// Decode returns the instruction encoded by w. The boolean is false if w is not understood.
func Decode(w uint32) (Decoded, bool) {
	for _, e1 := range encodings {
		if w&masks[e1.codec] != e1.test {
			continue
		}
		d := Decoded{
			Op:   e1.op,
			Rd:   regfile.PReg(w >> 7 & 0x1f),
			Rs1:  regfile.PReg(w >> 15 & 0x1f),
			Rs2:  regfile.PReg(w >> 20 & 0x1f),
			Word: w,
		}
		switch e1.codec {
		case codecI:
			d.Imm = int64(int32(w) >> 20)
		case codecShift64:
			d.Imm = int64(w >> 20 & 0x3f)
		case codecShift32:
			d.Imm = int64(w >> 20 & 0x1f)
		case codecU:
			d.Imm = int64(w >> 12)
		case codecS:
			d.Imm = int64(int32(w)>>25)<<5 | int64(w>>7&0x1f)
		case codecB:
			d.Imm = int64(int32(w)>>31)<<12 | int64(w>>7&1)<<11 | int64(w>>25&0x3f)<<5 | int64(w>>8&0xf)<<1
		case codecJ:
			d.Imm = int64(int32(w)>>31)<<20 | int64(w>>12&0xff)<<12 | int64(w>>20&1)<<11 | int64(w>>21&0x3ff)<<1
		}
		return d, true
	}
	return Decoded{}, false
}

// Disassemble returns a listing of code. Instructions that require an extension are shown as the raw bytes of
// their encoding, all others as assembler text with the canonical pseudo-instruction names. Branch and jump
// targets start a new block labelled with its offset.
func Disassemble(code []byte) (string, error) {
	if len(code)%4 != 0 {
		return "", errors.Wrapf(errdefs.ErrInvalidArgument, "code length %d is not a multiple of 4", len(code))
	}

	// Find block boundaries.
	targets := map[int64]bool{}
	for pc := 0; pc < len(code); pc += 4 {
		d, ok := Decode(binary.LittleEndian.Uint32(code[pc:]))
		if ok && (d.Op.Format() == riscv.FormatBranch || d.Op == riscv.OpJal) {
			targets[int64(pc)+d.Imm] = true
		}
	}
	offs := make([]int64, 0, len(targets))
	for e1 := range targets {
		if e1 != 0 {
			offs = append(offs, e1)
		}
	}
	sort.Slice(offs, func(i, j int) bool { return offs[i] < offs[j] })
	blocks := map[int64]int{0: 0}
	for i1, e1 := range offs {
		blocks[e1] = i1 + 1
	}

	sb := strings.Builder{}
	for pc := 0; pc < len(code); pc += 4 {
		if n, ok := blocks[int64(pc)]; ok {
			sb.WriteString(fmt.Sprintf("block%d: ; offset %#x\n", n, pc))
		}
		sb.WriteString("  ")
		sb.WriteString(disasmWord(code[pc : pc+4]))
		sb.WriteRune('\n')
	}
	return sb.String(), nil
}

// disasmWord returns the listing line of a single instruction.
func disasmWord(b []byte) string {
	w := binary.LittleEndian.Uint32(b)
	d, ok := Decode(w)
	if !ok || d.Op.Ext() != "" {
		return fmt.Sprintf(".byte 0x%02x, 0x%02x, 0x%02x, 0x%02x", b[0], b[1], b[2], b[3])
	}
	return d.String()
}

// String returns d in assembler form, e.g. "slli t0, a0, 0x38".
func (d Decoded) String() string {
	zero := riscv.Zero
	name := d.Op.String()
	switch {
	case d.Op == riscv.OpAddi && d.Rs1 == zero:
		return fmt.Sprintf("li %s, %s", d.Rd, imm(d.Imm))
	case d.Op == riscv.OpAddi && d.Imm == 0:
		return fmt.Sprintf("mv %s, %s", d.Rd, d.Rs1)
	case d.Op == riscv.OpAddiw && d.Imm == 0:
		return fmt.Sprintf("sext.w %s, %s", d.Rd, d.Rs1)
	case d.Op == riscv.OpSub && d.Rs1 == zero:
		return fmt.Sprintf("neg %s, %s", d.Rd, d.Rs2)
	case d.Op == riscv.OpJalr && d.Rd == zero && d.Rs1 == riscv.RA && d.Imm == 0:
		return "ret"
	case d.Op == riscv.OpJal && d.Rd == zero:
		return fmt.Sprintf("j %s", imm(d.Imm))
	case d.Op == riscv.OpBeq && d.Rs2 == zero:
		return fmt.Sprintf("beqz %s, %s", d.Rs1, imm(d.Imm))
	case d.Op == riscv.OpBne && d.Rs2 == zero:
		return fmt.Sprintf("bnez %s, %s", d.Rs1, imm(d.Imm))
	}

	switch d.Op.Format() {
	case riscv.FormatR:
		return fmt.Sprintf("%s %s, %s, %s", name, d.Rd, d.Rs1, d.Rs2)
	case riscv.FormatI:
		return fmt.Sprintf("%s %s, %s, %s", name, d.Rd, d.Rs1, imm(d.Imm))
	case riscv.FormatUnary:
		return fmt.Sprintf("%s %s, %s", name, d.Rd, d.Rs1)
	case riscv.FormatU:
		return fmt.Sprintf("%s %s, %s", name, d.Rd, imm(d.Imm))
	case riscv.FormatLoad:
		return fmt.Sprintf("%s %s, %d(%s)", name, d.Rd, d.Imm, d.Rs1)
	case riscv.FormatStore:
		return fmt.Sprintf("%s %s, %d(%s)", name, d.Rs2, d.Imm, d.Rs1)
	case riscv.FormatBranch:
		return fmt.Sprintf("%s %s, %s, %s", name, d.Rs1, d.Rs2, imm(d.Imm))
	case riscv.FormatJump:
		return fmt.Sprintf("%s %s, %s", name, d.Rd, imm(d.Imm))
	}
	return name
}

// imm formats an immediate the way common disassemblers do: small values in decimal, others in hexadecimal.
func imm(v int64) string {
	switch {
	case v >= -9 && v <= 9:
		return fmt.Sprintf("%d", v)
	case v < 0:
		return fmt.Sprintf("-%#x", -v)
	default:
		return fmt.Sprintf("%#x", v)
	}
}
