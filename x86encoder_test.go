package main

import (
	"bytes"
	"testing"

	"golang.org/x/arch/x86/x86asm"
)

// TestScenarioE reproduces spec.md §8 Scenario E byte-for-byte.
func TestScenarioE(t *testing.T) {
	buf := NewByteBuffer()
	enc := NewX86Encoder(buf)

	enc.Mov64Imm32(R_BX, 42)
	want := []byte{0x48, 0xc7, 0xc3, 0x2a, 0x00, 0x00, 0x00}
	if got := buf.Bytes(); !bytes.Equal(got, want) {
		t.Fatalf("Mov64Imm32(R_BX,42) = % x, want % x", got, want)
	}

	buf = NewByteBuffer()
	enc = NewX86Encoder(buf)
	enc.Mov64Imm64(R_AX, 0x1122334455667788)
	want = []byte{0x48, 0xb8, 0x88, 0x77, 0x66, 0x55, 0x44, 0x33, 0x22, 0x11}
	if got := buf.Bytes(); !bytes.Equal(got, want) {
		t.Fatalf("Mov64Imm64(R_AX,...) = % x, want % x", got, want)
	}

	buf = NewByteBuffer()
	enc = NewX86Encoder(buf)
	enc.Syscall()
	want = []byte{0x0f, 0x05}
	if got := buf.Bytes(); !bytes.Equal(got, want) {
		t.Fatalf("Syscall() = % x, want % x", got, want)
	}
}

// TestEncoderDecodesAsExpected cross-checks every encoder op against an
// independent disassembler (golang.org/x/arch/x86/x86asm) rather than only
// comparing raw bytes, so an encoding mistake that still happens to match
// a hand-written byte literal would still be caught.
func TestEncoderDecodesAsExpected(t *testing.T) {
	cases := []struct {
		name string
		emit func(*X86Encoder)
		op   x86asm.Op
	}{
		{"mov64_imm32", func(e *X86Encoder) { e.Mov64Imm32(R_CX, 7) }, x86asm.MOV},
		{"mov64_imm64", func(e *X86Encoder) { e.Mov64Imm64(R_DX, 0xff) }, x86asm.MOV},
		{"mov32_imm32", func(e *X86Encoder) { e.Mov32Imm32(R_AX, 1) }, x86asm.MOV},
		{"mov8_imm8", func(e *X86Encoder) { e.Mov8Imm8(R_BX, 1) }, x86asm.MOV},
		{"syscall", func(e *X86Encoder) { e.Syscall() }, x86asm.SYSCALL},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			buf := NewByteBuffer()
			enc := NewX86Encoder(buf)
			c.emit(enc)
			inst, err := x86asm.Decode(buf.Bytes(), 64)
			if err != nil {
				t.Fatalf("x86asm.Decode(% x): %v", buf.Bytes(), err)
			}
			if inst.Op != c.op {
				t.Fatalf("decoded op = %v, want %v", inst.Op, c.op)
			}
			if inst.Len != len(buf.Bytes()) {
				t.Fatalf("decoded length %d != emitted length %d", inst.Len, len(buf.Bytes()))
			}
		})
	}
}

func TestModRMEncoding(t *testing.T) {
	// (mode<<6) | ((reg&7)<<3) | (rm&7), per spec.md §4.5.
	if got := modRM(ModREG, 0, R_BX); got != 0xc3 {
		t.Fatalf("modRM(REG,0,BX) = %#x, want 0xc3", got)
	}
	if got := modRM(ModREG, 0, R_AX); got != 0xc0 {
		t.Fatalf("modRM(REG,0,AX) = %#x, want 0xc0", got)
	}
}

func TestRexEncoding(t *testing.T) {
	if got := rex(true, false, false, false); got != 0x48 {
		t.Fatalf("rex(W) = %#x, want 0x48", got)
	}
	if got := rex(false, false, false, true); got != 0x41 {
		t.Fatalf("rex(B) = %#x, want 0x41", got)
	}
}
