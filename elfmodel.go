package main

import "fmt"

// Data is a unit of payload bytes that may be referenced by one or more
// Sections and/or Programs. Grounded on original_source/src/asm/elf/builder.h's
// ELFData.
type Data struct {
	builder *Builder
	buf     *ByteBuffer
	secv    []*Section
	progv   []*Program

	// offset is the assembly-time file offset, valid only after Assemble.
	offset uint64
}

// Buffer returns the Data's backing ByteBuffer, for the caller to append
// raw payload bytes (e.g. .text machine code, .rodata constants) into.
func (d *Data) Buffer() *ByteBuffer { return d.buf }

// Symbol is a fixed-size record belonging to a SYMTAB section. 32-bit and
// 64-bit on-disk layouts differ in field order and width (see elfconst.go's
// SizeofSym32/64); this in-memory form is mode-agnostic and serialized by
// the assembler at emission time.
type Symbol struct {
	Name  uint32 // offset into the builder's strtab
	Bind  byte
	Type  byte
	Shndx uint16 // provisional index at add-time; remapped to final index by Assemble
	Value uint64
	Size  uint64
}

// Section is an ELF section header plus optional Data. Grounded on
// original_source/src/asm/elf/builder.h's ELFSec.
type Section struct {
	builder *Builder
	data    *Data
	index   int // provisional during building; rewritten to final index by Assemble

	Type  uint32
	name  uint32 // offset into shstrtab
	Flags uint32
	link  *Section // nil => SHN_UNDEF

	// symbols holds this section's symbol records, present only when
	// Type == SHT_SYMTAB. Serialized into data.buf by the assembler.
	symbols []Symbol

	// symtabLocalCount is computed by Assemble (phase 4) and consumed by
	// phase 7 when writing sh_info; meaningless outside a SYMTAB section.
	symtabLocalCount int
}

// Index returns the section's current index: provisional before Assemble
// runs, final afterwards.
func (s *Section) Index() int { return s.index }

// Data returns the section's attached Data, or nil.
func (s *Section) Data() *Data { return s.data }

// Program is an ELF program header plus optional Data. Grounded on
// original_source/src/asm/elf/builder.h's ELFProg.
type Program struct {
	builder *Builder
	data    *Data

	Type  uint32
	Flags uint32
	Align uint64
}

// Data returns the program's attached Data, or nil.
func (p *Program) Data() *Data { return p.data }

// Builder is the root aggregate: allocator-free in this Go translation
// (Go's GC plays that role), holding the ELF mode, target machine, and
// ordered arrays of Data, Sections and Programs. Grounded on
// original_source/src/asm/elf/builder.h's ELFBuilder and builder.c's
// ELFBuilderInit/addStandardSections.
type Builder struct {
	Mode     int // 32 or 64, derived from Machine
	Encoding byte
	Machine  uint16

	datas    []*Data
	sections []*Section
	programs []*Program

	shstrtab   *Section
	strtab     *Section
	symtab     *Section
	shstrtabST *StringTable
	strtabST   *StringTable
}

// New allocates a Builder targeting machine. Mode and the default data
// encoding (always 2LSB in this design, per spec.md §9's Open Question
// resolution) are derived from machine. The section array is seeded, in
// order, with the null section (index 0), .shstrtab (index 1) and .strtab
// (index 2); .shstrtab's own name is the first entry appended to itself,
// landing at offset 1 as required by invariant 3.
func New(machine uint16) *Builder {
	b := &Builder{
		Mode:     machineMode(machine),
		Encoding: ELFDATA2LSB,
		Machine:  machine,
	}

	null := &Section{builder: b, Type: SHT_NULL, index: 0}
	b.sections = append(b.sections, null)

	shstrtabData := b.NewData()
	shstrtab := &Section{builder: b, Type: SHT_STRTAB, data: shstrtabData, index: 1}
	shstrtabData.secv = append(shstrtabData.secv, shstrtab)
	b.sections = append(b.sections, shstrtab)
	b.shstrtab = shstrtab
	b.shstrtabST = NewStringTable(shstrtabData.buf)
	shstrtab.name = b.shstrtabST.Append(".shstrtab")

	// .strtab can go through the normal NewSection path, since shstrtab
	// (and its StringTable) already exist by this point.
	b.strtab = b.NewSection(".strtab", SHT_STRTAB, b.NewData())
	b.strtabST = &StringTable{buf: b.strtab.data.buf}

	return b
}

// NewData allocates a Data attached to the Builder with no section or
// program references yet.
func (b *Builder) NewData() *Data {
	d := &Data{builder: b, buf: NewByteBuffer()}
	b.datas = append(b.datas, d)
	return d
}

// NewSection adds a section header of type shType named name, optionally
// backed by data. It panics if shType's data requirement (see
// sectionDataRequirementFor) is violated by the presence or absence of
// data; that is a caller bug per spec.md §7, not a recoverable error.
//
// name is appended into the builder's shstrtab. If shType is SHT_STRTAB
// and data is non-nil and still empty, the mandatory leading NUL byte is
// written into it. The new Section's provisional index is its position in
// the builder's section array.
func (b *Builder) NewSection(name string, shType uint32, data *Data) *Section {
	switch req := sectionDataRequirementFor(shType); req {
	case dataForbidden:
		if data != nil {
			panic(fmt.Sprintf("elfasm: section type %s must not have Data", shTypeName(shType)))
		}
	case dataRequired:
		if data == nil {
			panic(fmt.Sprintf("elfasm: section type %s requires Data", shTypeName(shType)))
		}
	}

	var nameOff uint32
	if b.shstrtabST != nil {
		nameOff = b.shstrtabST.Append(name)
	}

	if shType == SHT_STRTAB && data != nil && data.buf.Len() == 0 {
		data.buf.Write(0)
	}

	sec := &Section{
		builder: b,
		data:    data,
		index:   len(b.sections),
		Type:    shType,
		name:    nameOff,
		Flags:   0,
	}
	if data != nil {
		data.secv = append(data.secv, sec)
	}
	b.sections = append(b.sections, sec)
	return sec
}

// SetFlags sets the section's sh_flags bitmask (e.g. SHF_ALLOC|SHF_EXECINSTR).
func (s *Section) SetFlags(flags uint32) *Section {
	s.Flags = flags
	return s
}

// SetLink records that this section's sh_link field points at other (e.g.
// a SYMTAB section linking to its STRTAB).
func (s *Section) SetLink(other *Section) *Section {
	s.link = other
	return s
}

// Name returns the section's name as recorded in the builder's shstrtab.
func (s *Section) Name() string {
	if s.builder.shstrtabST == nil {
		return ""
	}
	return s.builder.shstrtabST.Lookup(s.name)
}

// NewProgram adds a program header of type ptType with flags pFlags and
// alignment align, optionally backed by data.
func (b *Builder) NewProgram(ptType, pFlags uint32, align uint64, data *Data) *Program {
	p := &Program{builder: b, data: data, Type: ptType, Flags: pFlags, Align: align}
	if data != nil {
		data.progv = append(data.progv, p)
	}
	b.programs = append(b.programs, p)
	return p
}

// NewSymtab creates a new Data and Section of type SHT_SYMTAB named name,
// linked to strtabSection, and seeds the mandatory symbol #0 (all zero,
// STB_LOCAL, STT_NOTYPE). If name is ".symtab" and the builder has no
// primary symtab yet, the new section is recorded as the builder's symtab.
func (b *Builder) NewSymtab(strtabSection *Section, name string) *Section {
	data := b.NewData()
	sec := b.NewSection(name, SHT_SYMTAB, data)
	sec.SetLink(strtabSection)
	sec.symbols = append(sec.symbols, Symbol{
		Name:  0,
		Bind:  STB_LOCAL,
		Type:  STT_NOTYPE,
		Shndx: SHN_UNDEF,
		Value: 0,
		Size:  0,
	})
	if name == ".symtab" && b.symtab == nil {
		b.symtab = sec
	}
	return sec
}

// SymtabAdd appends a symbol to symtabSection, defined in definingSection
// (nil meaning SHN_UNDEF), named name, with the given binding, type, and
// value. The symbol records definingSection's *provisional* index
// (definingSection.index at the time of this call); Assemble rewrites it
// to the final index once sections are reordered. name is appended to the
// builder's general strtab. Returns a pointer to the appended record,
// valid to mutate until the next SymtabAdd call on the same section.
func (b *Builder) SymtabAdd(symtabSection, definingSection *Section, name string, bind, typ byte, value uint64) *Symbol {
	nameOff := b.strtabST.Append(name)
	shndx := uint16(SHN_UNDEF)
	if definingSection != nil {
		shndx = uint16(definingSection.index)
	}
	symtabSection.symbols = append(symtabSection.symbols, Symbol{
		Name:  nameOff,
		Bind:  bind,
		Type:  typ,
		Shndx: shndx,
		Value: value,
		Size:  0,
	})
	return &symtabSection.symbols[len(symtabSection.symbols)-1]
}
