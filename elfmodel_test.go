package main

import "testing"

// TestBuilderSeedsStandardSections reproduces spec.md invariant 1.
func TestBuilderSeedsStandardSections(t *testing.T) {
	b := New(EM_X86_64)
	if len(b.sections) != 3 {
		t.Fatalf("expected 3 seeded sections, got %d", len(b.sections))
	}
	if b.sections[0].Type != SHT_NULL {
		t.Fatalf("sections[0].Type = %d, want SHT_NULL", b.sections[0].Type)
	}
	if b.sections[1] != b.shstrtab {
		t.Fatalf("sections[1] is not shstrtab")
	}
	if b.sections[2] != b.strtab {
		t.Fatalf("sections[2] is not strtab")
	}
}

// TestStrtabSectionsStartWithNUL reproduces spec.md invariant 2.
func TestStrtabSectionsStartWithNUL(t *testing.T) {
	b := New(EM_X86_64)
	for _, sec := range []*Section{b.shstrtab, b.strtab} {
		if sec.data.buf.Bytes()[0] != 0 {
			t.Fatalf("%s does not start with NUL", sec.Name())
		}
	}
}

func TestNewSectionPanicsOnMissingRequiredData(t *testing.T) {
	b := New(EM_X86_64)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic when creating PROGBITS section without Data")
		}
	}()
	b.NewSection(".text", SHT_PROGBITS, nil)
}

func TestNewSectionPanicsOnForbiddenData(t *testing.T) {
	b := New(EM_X86_64)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic when creating NOBITS section with Data")
		}
	}()
	b.NewSection(".bss", SHT_NOBITS, b.NewData())
}

func TestNewSymtabSeedsSymbolZero(t *testing.T) {
	b := New(EM_X86_64)
	symtab := b.NewSymtab(b.strtab, ".symtab")
	if len(symtab.symbols) != 1 {
		t.Fatalf("expected exactly the seeded symbol #0, got %d", len(symtab.symbols))
	}
	sym0 := symtab.symbols[0]
	if sym0.Bind != STB_LOCAL || sym0.Type != STT_NOTYPE || sym0.Shndx != SHN_UNDEF || sym0.Value != 0 {
		t.Fatalf("symbol #0 is not all-zero/LOCAL/NOTYPE: %+v", sym0)
	}
	if b.symtab != symtab {
		t.Fatalf("builder.symtab was not recorded for name \".symtab\"")
	}
}

func TestSymtabAddRecordsProvisionalIndex(t *testing.T) {
	b := New(EM_X86_64)
	textData := b.NewData()
	textSec := b.NewSection(".text", SHT_PROGBITS, textData)
	symtab := b.NewSymtab(b.strtab, ".symtab")

	sym := b.SymtabAdd(symtab, textSec, "_start", STB_GLOBAL, STT_FUNC, 0x400078)
	if sym.Shndx != uint16(textSec.index) {
		t.Fatalf("Shndx = %d, want provisional index %d", sym.Shndx, textSec.index)
	}
}

func TestSymtabAddUndefinedSection(t *testing.T) {
	b := New(EM_X86_64)
	symtab := b.NewSymtab(b.strtab, ".symtab")
	sym := b.SymtabAdd(symtab, nil, "extern_fn", STB_GLOBAL, STT_FUNC, 0)
	if sym.Shndx != SHN_UNDEF {
		t.Fatalf("Shndx = %d, want SHN_UNDEF", sym.Shndx)
	}
}
