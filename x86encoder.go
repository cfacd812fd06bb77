package main

// Reg is an x86-64 general-purpose register encoding: a 4-bit value as in
// the AMD64 Architecture Programmer's Manual. Grounded on
// original_source/experimental/x86_64-backend/x86-64.c's Reg enum.
type Reg uint8

const (
	R_AX Reg = 0
	R_CX Reg = 1
	R_DX Reg = 2
	R_BX Reg = 3
	R_SP Reg = 4
	R_BP Reg = 5
	R_SI Reg = 6
	R_DI Reg = 7
	R_8  Reg = 8
	R_9  Reg = 9
	R_10 Reg = 10
	R_11 Reg = 11
	R_12 Reg = 12
	R_13 Reg = 13
	R_14 Reg = 14
	R_15 Reg = 15
)

// x86 opcodes, grounded on x86-64.c's X86op enum.
const (
	opMOVrib byte = 0xb0 // really b0+r, e.g. mov $1,%bl
	opMOVri  byte = 0xb8 // really b8+r, e.g. mov $1,%eax
	opMOVmi  byte = 0xc7 // move with 32-bit immediate
)

// REX prefix bits, grounded on x86-64.c's REX_* constants.
const (
	rexBase byte = 0x40
	rexW    byte = 0x08
	rexR    byte = 0x04
	rexX    byte = 0x02
	rexB    byte = 0x01
)

// rex packs the W/R/X/B bits into a single REX prefix byte: 0x40 | (W<<3)
// | (R<<2) | (X<<1) | B, per spec.md §4.5.
func rex(w, r, x, bbit bool) byte {
	v := rexBase
	if w {
		v |= rexW
	}
	if r {
		v |= rexR
	}
	if x {
		v |= rexX
	}
	if bbit {
		v |= rexB
	}
	return v
}

// modMode is the two-bit addressing mode field of a ModRM byte.
type modMode byte

const (
	ModOFS0  modMode = 0x00
	ModOFS8  modMode = 0x40
	ModOFS32 modMode = 0x80
	ModREG   modMode = 0xc0
)

// modRM encodes a ModRM byte: (mode<<6) | ((reg&7)<<3) | (rm&7), per
// spec.md §4.5 and x86-64.c's ModRM macro.
func modRM(mode modMode, reg, rm Reg) byte {
	return byte(mode) | ((byte(reg) & 7) << 3) | (byte(rm) & 7)
}

// X86Encoder emits raw AMD x86-64 instruction bytes into a ByteBuffer. It
// holds no state beyond the destination buffer; sequencing instructions
// and computing branch displacements is the caller's responsibility (not
// yet implemented in the original, per spec.md §4.5).
//
// The register encoding only emits the low 3 bits in ModRM/opcode+reg
// forms; registers 8..15 additionally require the REX.B extension bit,
// which every op below sets correctly, though the spec's minimum viable
// set is only exercised for registers 0..7.
type X86Encoder struct {
	Buf *ByteBuffer
}

// NewX86Encoder returns an encoder that appends to buf.
func NewX86Encoder(buf *ByteBuffer) *X86Encoder {
	return &X86Encoder{Buf: buf}
}

// Mov64Imm32 emits `mov r/m64, imm32` (sign-extended to 64 bits by the
// CPU): REX.W, opcode 0xC7, ModRM(mode=REG, reg=0, rm=dst), imm32 LE.
func (x *X86Encoder) Mov64Imm32(dst Reg, imm uint32) {
	x.Buf.Write(rex(true, false, false, dst >= 8))
	x.Buf.Write(opMOVmi)
	x.Buf.Write(modRM(ModREG, 0, dst))
	x.Buf.Write4(imm)
	traceLine("mov64_imm32")
}

// Mov64Imm64 emits `mov r64, imm64`: REX.W, opcode 0xB8+(dst&7), imm64 LE.
func (x *X86Encoder) Mov64Imm64(dst Reg, imm uint64) {
	x.Buf.Write(rex(true, false, false, dst >= 8))
	x.Buf.Write(opMOVri + (byte(dst) & 7))
	x.Buf.Write8u(imm)
	traceLine("mov64_imm64")
}

// Mov32Imm32 emits `mov r32, imm32`: opcode 0xB8+(dst&7), imm32 LE. No
// REX prefix unless dst requires REX.B for registers 8..15.
func (x *X86Encoder) Mov32Imm32(dst Reg, imm uint32) {
	if dst >= 8 {
		x.Buf.Write(rex(false, false, false, true))
	}
	x.Buf.Write(opMOVri + (byte(dst) & 7))
	x.Buf.Write4(imm)
	traceLine("mov32_imm32")
}

// Mov8Imm8 emits `mov r8, imm8`: opcode 0xB0+(dst&7), imm8.
func (x *X86Encoder) Mov8Imm8(dst Reg, imm uint8) {
	if dst >= 8 {
		x.Buf.Write(rex(false, false, false, true))
	}
	x.Buf.Write(opMOVrib + (byte(dst) & 7))
	x.Buf.Write(imm)
	traceLine("mov8_imm8")
}

// Syscall emits the two-byte `syscall` instruction, 0x0F 0x05 (the
// original stores this as the little-endian 16-bit constant 0x050F; this
// writes the same two bytes in instruction order).
func (x *X86Encoder) Syscall() {
	x.Buf.Write(0x0f)
	x.Buf.Write(0x05)
	traceLine("syscall")
}
