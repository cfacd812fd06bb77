package main

import (
	"encoding/binary"
	"errors"
	"sort"
)

// ErrMode32Unsupported is returned by Assemble when the builder was
// constructed for a 32-bit machine. Per spec.md §9's Open Question, the
// original's ELFMode32 assembly path is stubbed and produces no usable
// binary. Sections, programs and symbols all build normally in 32-bit
// mode, but Assemble only reserves the header area in out (sized with the
// ELF64 header and program-header sizes) and then returns this error
// instead of writing an image; no ELF32 header is written.
var ErrMode32Unsupported = errors.New("elfasm: ELFMode32 assembly is not implemented, only ELFMode64 produces a runnable image")

// Assemble reorders and renumbers the builder's Sections and Datas,
// patches every header, and writes a byte-exact ELF image into out. This
// is the Assembler component of spec.md §4.4; out is caller-owned and
// mutated only for the duration of this call. See that section for the
// full nine-phase description this function implements verbatim.
func (b *Builder) Assemble(out *ByteBuffer) error {
	// Phase 1: reserve header area.
	headersSize := SizeofEhdr64 + SizeofPhdr64*len(b.programs)
	out.AppendFill(0, headersSize)

	if b.Mode != 64 {
		return ErrMode32Unsupported
	}

	// Phase 2: snapshot section order before reordering, indexed by
	// provisional index, so symbols recorded against provisional indices
	// can be remapped in phase 4.
	shvorig := make([]*Section, len(b.sections))
	copy(shvorig, b.sections)

	// Phase 3: reorder Datas and Sections — user entries first, then
	// .symtab, .strtab, .shstrtab in that fixed order.
	b.sections = reorderSections(b.sections, b.symtab, b.strtab, b.shstrtab)
	for i, sec := range b.sections {
		sec.index = i
	}
	b.datas = reorderDatas(b.datas, dataOf(b.symtab), dataOf(b.strtab), dataOf(b.shstrtab))

	// Phase 4: pre-process sections. Only SYMTAB sections need work ahead
	// of data emission: sort symbols locals-first, remap st_shndx via the
	// phase-2 snapshot, and serialize the sorted records into the
	// section's Data buffer.
	for _, sec := range b.sections {
		if sec.Type != SHT_SYMTAB {
			continue
		}
		sort.SliceStable(sec.symbols, func(i, j int) bool {
			return sec.symbols[i].Bind == STB_LOCAL && sec.symbols[j].Bind != STB_LOCAL
		})
		locals := 0
		for idx := range sec.symbols {
			s := &sec.symbols[idx]
			if s.Shndx != SHN_UNDEF {
				s.Shndx = uint16(shvorig[s.Shndx].index)
			}
			if s.Bind == STB_LOCAL {
				locals++
			}
		}
		sec.symtabLocalCount = locals

		sec.data.buf = NewByteBuffer()
		for _, s := range sec.symbols {
			writeSym64(sec.data.buf, s)
		}
	}

	// Phase 5: emit Data payloads in the new order, padded to the max
	// sh_addralign among each Data's referring sections.
	for _, d := range b.datas {
		align := 1
		for _, sec := range d.secv {
			if a := int(secAlign(sec, b.Mode)); a > align {
				align = a
			}
		}
		pad := alignUp(out.Len(), align) - out.Len()
		out.AppendFill(0, pad)
		d.offset = uint64(out.Len())
		out.WriteBytes(d.buf.Bytes())
	}

	// Phase 6: record the section header table offset.
	shoff := out.Len()

	// Phase 7: emit section headers in final order.
	for _, sec := range b.sections {
		writeShdr64(out, b, sec)
	}

	// Phase 8: patch program headers in the reserved area. p_offset is
	// data.offset minus headersSize, which is 0 for a program whose Data
	// directly follows the headers (the single-segment layout). For any
	// later Data, p_offset is not that Data's file offset.
	for i, p := range b.programs {
		phdrOff := SizeofEhdr64 + i*SizeofPhdr64
		out.WriteAt(phdrOff, packPhdr64(p, headersSize))
	}

	// Phase 9: patch the ELF header in the reserved area.
	if len(b.programs) == 0 || b.programs[0].data == nil {
		panic("elfasm: Assemble requires at least one program with Data for EXEC output")
	}
	entry := uint64(VirtualBase) + b.programs[0].data.offset
	out.WriteAt(0, packEhdr64(b, entry, uint64(shoff)))

	return nil
}

func dataOf(sec *Section) *Data {
	if sec == nil {
		return nil
	}
	return sec.data
}

// reorderSections compacts sections so that every section other than
// symtab/strtab/shstrtab keeps its original relative order (this
// naturally keeps the null section first, since it was added before any
// user section), followed by symtab (if present), strtab, shstrtab.
func reorderSections(sections []*Section, symtab, strtab, shstrtab *Section) []*Section {
	other := make([]*Section, 0, len(sections))
	for _, sec := range sections {
		if sec == symtab || sec == strtab || sec == shstrtab {
			continue
		}
		other = append(other, sec)
	}
	if symtab != nil {
		other = append(other, symtab)
	}
	other = append(other, strtab, shstrtab)
	return other
}

func reorderDatas(datas []*Data, symtabData, strtabData, shstrtabData *Data) []*Data {
	other := make([]*Data, 0, len(datas))
	for _, d := range datas {
		if d == symtabData || d == strtabData || d == shstrtabData {
			continue
		}
		other = append(other, d)
	}
	if symtabData != nil {
		other = append(other, symtabData)
	}
	other = append(other, strtabData, shstrtabData)
	return other
}

// secAlign returns the default sh_addralign for a section's type, per
// spec.md §4.4 phase 4: 4 for PROGBITS, 4 (ELF32) or 8 (ELF64) for
// SYMTAB, 1 otherwise.
func secAlign(sec *Section, mode int) uint64 {
	switch sec.Type {
	case SHT_PROGBITS:
		return 4
	case SHT_SYMTAB:
		if mode == 64 {
			return 8
		}
		return 4
	default:
		return 1
	}
}

func writeSym64(buf *ByteBuffer, s Symbol) {
	buf.Write4(s.Name)
	buf.Write(StInfo(s.Bind, s.Type))
	buf.Write(0) // st_other
	buf.Write2(s.Shndx)
	buf.Write8u(s.Value)
	buf.Write8u(s.Size)
}

func writeShdr64(out *ByteBuffer, b *Builder, sec *Section) {
	var shLink uint32
	if sec.link != nil {
		shLink = uint32(sec.link.index)
	} else {
		shLink = SHN_UNDEF
	}

	var shInfo uint32
	var entsize uint64
	if sec.Type == SHT_SYMTAB {
		shInfo = uint32(sec.symtabLocalCount)
		entsize = SizeofSym64
	}

	var offset, size, addr uint64
	if sec.data != nil {
		offset = sec.data.offset
		size = uint64(len(sec.data.buf.Bytes()))
		if len(sec.data.progv) > 0 {
			addr = VirtualBase + sec.data.offset
		}
	}

	out.Write4(sec.name)
	out.Write4(sec.Type)
	out.Write8u(uint64(sec.Flags))
	out.Write8u(addr)
	out.Write8u(offset)
	out.Write8u(size)
	out.Write4(shLink)
	out.Write4(shInfo)
	out.Write8u(secAlign(sec, b.Mode))
	out.Write8u(entsize)
}

func packPhdr64(p *Program, headersSize int) []byte {
	buf := make([]byte, SizeofPhdr64)
	binary.LittleEndian.PutUint32(buf[0:4], p.Type)
	binary.LittleEndian.PutUint32(buf[4:8], p.Flags)

	if p.data != nil {
		pOffset := p.data.offset - uint64(headersSize)
		pVaddr := uint64(VirtualBase) + pOffset
		pFilesz := uint64(headersSize) + uint64(len(p.data.buf.Bytes()))
		binary.LittleEndian.PutUint64(buf[8:16], pOffset)
		binary.LittleEndian.PutUint64(buf[16:24], pVaddr)
		binary.LittleEndian.PutUint64(buf[24:32], pVaddr)
		binary.LittleEndian.PutUint64(buf[32:40], pFilesz)
		binary.LittleEndian.PutUint64(buf[40:48], pFilesz)
	}
	binary.LittleEndian.PutUint64(buf[48:56], p.Align)
	return buf
}

func packEhdr64(b *Builder, entry, shoff uint64) []byte {
	buf := make([]byte, SizeofEhdr64)
	buf[0], buf[1], buf[2], buf[3] = 0x7f, 'E', 'L', 'F'
	buf[4] = ELFCLASS64
	buf[5] = b.Encoding
	buf[6] = ELFVersionCurrent
	buf[7] = ELFOSABINone
	// buf[8:16] (EI_PAD) left zero.

	binary.LittleEndian.PutUint16(buf[16:18], ET_EXEC)
	binary.LittleEndian.PutUint16(buf[18:20], b.Machine)
	binary.LittleEndian.PutUint32(buf[20:24], ELFVersionCurrent)
	binary.LittleEndian.PutUint64(buf[24:32], entry)
	binary.LittleEndian.PutUint64(buf[32:40], SizeofEhdr64)
	binary.LittleEndian.PutUint64(buf[40:48], shoff)
	binary.LittleEndian.PutUint32(buf[48:52], 0) // e_flags
	binary.LittleEndian.PutUint16(buf[52:54], SizeofEhdr64)
	binary.LittleEndian.PutUint16(buf[54:56], SizeofPhdr64)
	binary.LittleEndian.PutUint16(buf[56:58], uint16(len(b.programs)))
	binary.LittleEndian.PutUint16(buf[58:60], SizeofShdr64)
	binary.LittleEndian.PutUint16(buf[60:62], uint16(len(b.sections)))
	binary.LittleEndian.PutUint16(buf[62:64], uint16(b.shstrtab.index))
	return buf
}
