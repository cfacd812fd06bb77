package main

import (
	"bytes"
	"testing"
)

// buildScenarioA constructs the minimal x86-64 exit(42) demo exactly as
// described in spec.md §8 Scenario A.
func buildScenarioA(t *testing.T) *ByteBuffer {
	t.Helper()
	b := New(EM_X86_64)
	symtab := b.NewSymtab(b.strtab, ".symtab")

	textData := b.NewData()
	textData.Buffer().WriteBytes([]byte{
		0xbb, 0x2a, 0x00, 0x00, 0x00, // mov ebx, 42
		0xb8, 0x01, 0x00, 0x00, 0x00, // mov eax, 1
		0xcd, 0x80, // int 0x80
	})
	textSec := b.NewSection(".text", SHT_PROGBITS, textData)
	textSec.SetFlags(SHF_ALLOC | SHF_EXECINSTR)
	b.NewProgram(PT_LOAD, PF_R|PF_X, 0x200000, textData)

	b.SymtabAdd(symtab, textSec, "", STB_LOCAL, STT_SECTION, 0)
	b.SymtabAdd(symtab, textSec, "_start", STB_GLOBAL, STT_FUNC, 0x400078)
	b.SymtabAdd(symtab, nil, "__bss_start", STB_GLOBAL, STT_NOTYPE, 0x400084)
	b.SymtabAdd(symtab, nil, "_edata", STB_GLOBAL, STT_NOTYPE, 0x400084)
	b.SymtabAdd(symtab, nil, "_end", STB_GLOBAL, STT_NOTYPE, 0x400088)

	out := NewByteBuffer()
	if err := b.Assemble(out); err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	return out
}

func TestScenarioA(t *testing.T) {
	out := buildScenarioA(t)
	img := out.Bytes()

	if !bytes.Equal(img[0:4], []byte{0x7f, 0x45, 0x4c, 0x46}) {
		t.Fatalf("magic = % x", img[0:4])
	}
	if img[4] != ELFCLASS64 {
		t.Fatalf("EI_CLASS = %d, want 2", img[4])
	}
	if img[5] != ELFDATA2LSB {
		t.Fatalf("EI_DATA = %d, want 1", img[5])
	}
	if !bytes.Equal(img[18:20], []byte{0x3e, 0x00}) {
		t.Fatalf("e_machine = % x, want 3e 00", img[18:20])
	}
	if !bytes.Equal(img[24:32], []byte{0x78, 0x00, 0x40, 0x00, 0x00, 0x00, 0x00, 0x00}) {
		t.Fatalf("e_entry = % x", img[24:32])
	}

	report, err := ReadELF64(img)
	if err != nil {
		t.Fatalf("ReadELF64: %v", err)
	}
	if report.Entry != 0x400078 {
		t.Fatalf("entry = %#x, want 0x400078", report.Entry)
	}
	if len(report.Sections) != 5 {
		t.Fatalf("e_shnum = %d, want 5", len(report.Sections))
	}
	if report.ShstrNdx != 4 {
		t.Fatalf("e_shstrndx = %d, want 4", report.ShstrNdx)
	}
	text := report.Sections[1]
	if text.Offset != 0x78 || text.Size != 12 || text.Addr != 0x400078 {
		t.Fatalf(".text section = %+v", text)
	}
	symtabHdr := report.Sections[2]
	if symtabHdr.Link != 3 || symtabHdr.Info != 2 || symtabHdr.Entsize != 24 {
		t.Fatalf(".symtab section = %+v", symtabHdr)
	}
}

// TestScenarioB reproduces spec.md §8 Scenario B.
func TestScenarioB(t *testing.T) {
	b := New(EM_X86_64)
	if off := b.shstrtabST.Append(""); off != 0 {
		t.Fatalf("shstrtab.Append(\"\") = %d, want 0", off)
	}
	if got := b.shstrtab.data.buf.Len(); got != 11 {
		t.Fatalf("shstrtab length = %d, want 11", got)
	}
}

// TestScenarioC reproduces spec.md §8 Scenario C: symbol section-index
// remap across reordering.
func TestScenarioC(t *testing.T) {
	b := New(EM_X86_64)
	aData, bData := b.NewData(), b.NewData()
	secA := b.NewSection("A", SHT_PROGBITS, aData)
	secB := b.NewSection("B", SHT_PROGBITS, bData)
	if secA.index != 3 || secB.index != 4 {
		t.Fatalf("provisional indices = %d, %d; want 3, 4", secA.index, secB.index)
	}
	symtab := b.NewSymtab(b.strtab, ".symtab")
	sym := b.SymtabAdd(symtab, secB, "in_b", STB_GLOBAL, STT_OBJECT, 0)
	if sym.Shndx != 4 {
		t.Fatalf("provisional Shndx = %d, want 4", sym.Shndx)
	}

	b.NewProgram(PT_LOAD, PF_R, 0x1000, aData)
	out := NewByteBuffer()
	if err := b.Assemble(out); err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	if secB.index != 2 {
		t.Fatalf("B final index = %d, want 2", secB.index)
	}
	if symtab.index != 3 {
		t.Fatalf(".symtab final index = %d, want 3", symtab.index)
	}
	if symtab.symbols[len(symtab.symbols)-1].Shndx != 2 {
		t.Fatalf("remapped Shndx = %d, want 2", symtab.symbols[len(symtab.symbols)-1].Shndx)
	}
}

// TestScenarioD reproduces spec.md §8 Scenario D: symbol sort, locals first.
func TestScenarioD(t *testing.T) {
	b := New(EM_X86_64)
	data := b.NewData()
	sec := b.NewSection(".data", SHT_PROGBITS, data)
	b.NewProgram(PT_LOAD, PF_R|PF_W, 0x1000, data)
	symtab := b.NewSymtab(b.strtab, ".symtab")

	bindings := []byte{STB_GLOBAL, STB_LOCAL, STB_GLOBAL, STB_LOCAL, STB_GLOBAL}
	for i, bind := range bindings {
		b.SymtabAdd(symtab, sec, "s", bind, STT_OBJECT, uint64(i))
	}

	out := NewByteBuffer()
	if err := b.Assemble(out); err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	if symtab.symtabLocalCount != 3 {
		t.Fatalf("sh_info (local count) = %d, want 3", symtab.symtabLocalCount)
	}
	for i, sym := range symtab.symbols {
		wantLocal := i < 3
		gotLocal := sym.Bind == STB_LOCAL
		if gotLocal != wantLocal {
			t.Fatalf("symbol %d: bind=%d, local-prefix invariant violated", i, sym.Bind)
		}
	}
}

// TestScenarioF reproduces spec.md §8 Scenario F: two programs with
// distinct Data, monotonically non-decreasing offsets.
func TestScenarioF(t *testing.T) {
	b := New(EM_X86_64)
	d1 := b.NewData()
	d1.Buffer().WriteBytes([]byte{1, 2, 3})
	s1 := b.NewSection(".one", SHT_PROGBITS, d1)
	_ = s1
	b.NewProgram(PT_LOAD, PF_R|PF_X, 0x1000, d1)

	d2 := b.NewData()
	d2.Buffer().WriteBytes([]byte{4, 5, 6, 7})
	s2 := b.NewSection(".two", SHT_PROGBITS, d2)
	_ = s2
	b.NewProgram(PT_LOAD, PF_R|PF_W, 0x1000, d2)

	out := NewByteBuffer()
	if err := b.Assemble(out); err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if d2.offset < d1.offset {
		t.Fatalf("d2.offset (%d) < d1.offset (%d)", d2.offset, d1.offset)
	}
	if d1.offset%4 != 0 || d2.offset%4 != 0 {
		t.Fatalf("offsets not aligned to PROGBITS addralign 4: %d, %d", d1.offset, d2.offset)
	}
}

// TestRoundTrip builds Scenario A, assembles it, and reads it back with
// the independent elfdump reader, asserting section/symbol fields match.
func TestRoundTrip(t *testing.T) {
	out := buildScenarioA(t)
	report, err := ReadELF64(out.Bytes())
	if err != nil {
		t.Fatalf("ReadELF64: %v", err)
	}
	if len(report.Symbols) != 6 {
		t.Fatalf("symbol count = %d, want 6", len(report.Symbols))
	}
	if report.Symbols[2].Name != "_start" || report.Symbols[2].Value != 0x400078 {
		t.Fatalf("_start symbol mismatch: %+v", report.Symbols[2])
	}
	locals := 0
	for _, s := range report.Symbols {
		if s.Bind == STB_LOCAL {
			locals++
		}
	}
	if locals != 2 {
		t.Fatalf("local symbol count = %d, want 2", locals)
	}
}

func TestAssembleRejectsMode32(t *testing.T) {
	b := New(EM_386)
	data := b.NewData()
	data.Buffer().WriteBytes([]byte{0x90})
	b.NewSection(".text", SHT_PROGBITS, data)
	b.NewProgram(PT_LOAD, PF_R|PF_X, 0x1000, data)

	out := NewByteBuffer()
	err := b.Assemble(out)
	if err != ErrMode32Unsupported {
		t.Fatalf("Assemble on ELFMode32 = %v, want ErrMode32Unsupported", err)
	}
}

func TestAssembleRequiresLoadableProgram(t *testing.T) {
	b := New(EM_X86_64)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic assembling without a Data-bearing program")
		}
	}()
	out := NewByteBuffer()
	_ = b.Assemble(out)
}
