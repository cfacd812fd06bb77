package main

import (
	"encoding/binary"
	"fmt"
	"io"
)

// elfdump.go is a read-only counterpart to the Builder/Assembler: it
// parses a byte-exact ELF64 image (produced by Assemble, or any
// well-formed ELF64 file) back into a human-readable report; ELF32 input
// is rejected with ErrUnsupportedClass. Grounded on the
// ELFFilePrint-equivalent dumper in original_source/src/asm/elf/file.c
// (see SPEC_FULL.md "Supplemented features"). It is independent of
// Builder/Assembler and adds no coupling to the core.

// SectionInfo is one row of elfdump's section report.
type SectionInfo struct {
	Index   int
	Name    string
	Type    uint32
	Flags   uint64
	Addr    uint64
	Offset  uint64
	Size    uint64
	Link    uint32
	Info    uint32
	Entsize uint64
}

// ProgramInfo is one row of elfdump's program report.
type ProgramInfo struct {
	Index  int
	Type   uint32
	Flags  uint32
	Offset uint64
	Vaddr  uint64
	Filesz uint64
	Memsz  uint64
	Align  uint64
}

// SymbolInfo is one row of elfdump's symbol report.
type SymbolInfo struct {
	Name  string
	Bind  byte
	Type  byte
	Shndx uint16
	Value uint64
	Size  uint64
}

// Report is the parsed contents of an ELF64 image.
type Report struct {
	Class      byte
	Data       byte
	Type       uint16
	Machine    uint16
	Entry      uint64
	Sections   []SectionInfo
	Programs   []ProgramInfo
	Symbols    []SymbolInfo
	ShstrNdx   int
	SectionStr func(off uint32) string
}

// ErrNotELF is returned when the input does not start with the ELF magic.
var ErrNotELF = fmt.Errorf("elfasm: not an ELF file (bad magic)")

// ErrUnsupportedClass is returned for ELF32 input; elfdump only parses
// ELF64 images, matching Assemble's own ELF64-only output.
var ErrUnsupportedClass = fmt.Errorf("elfasm: only ELFCLASS64 images are supported by elfdump")

// ReadELF64 parses buf as an ELF64 image and returns a Report. It is the
// "separate ELF reader" referenced by spec.md §8's round-trip law: build
// a minimal EXEC, assemble it, then parse the resulting bytes with a
// separate reader and compare fields.
func ReadELF64(buf []byte) (*Report, error) {
	if len(buf) < SizeofEhdr64 || buf[0] != 0x7f || buf[1] != 'E' || buf[2] != 'L' || buf[3] != 'F' {
		return nil, ErrNotELF
	}
	if buf[4] != ELFCLASS64 {
		return nil, ErrUnsupportedClass
	}

	r := &Report{
		Class:   buf[4],
		Data:    buf[5],
		Type:    binary.LittleEndian.Uint16(buf[16:18]),
		Machine: binary.LittleEndian.Uint16(buf[18:20]),
		Entry:   binary.LittleEndian.Uint64(buf[24:32]),
	}
	phoff := binary.LittleEndian.Uint64(buf[32:40])
	shoff := binary.LittleEndian.Uint64(buf[40:48])
	phentsize := binary.LittleEndian.Uint16(buf[54:56])
	phnum := binary.LittleEndian.Uint16(buf[56:58])
	shentsize := binary.LittleEndian.Uint16(buf[58:60])
	shnum := binary.LittleEndian.Uint16(buf[60:62])
	shstrndx := binary.LittleEndian.Uint16(buf[62:64])
	r.ShstrNdx = int(shstrndx)

	for i := 0; i < int(phnum); i++ {
		off := int(phoff) + i*int(phentsize)
		p := buf[off : off+SizeofPhdr64]
		r.Programs = append(r.Programs, ProgramInfo{
			Index:  i,
			Type:   binary.LittleEndian.Uint32(p[0:4]),
			Flags:  binary.LittleEndian.Uint32(p[4:8]),
			Offset: binary.LittleEndian.Uint64(p[8:16]),
			Vaddr:  binary.LittleEndian.Uint64(p[16:24]),
			Filesz: binary.LittleEndian.Uint64(p[32:40]),
			Memsz:  binary.LittleEndian.Uint64(p[40:48]),
			Align:  binary.LittleEndian.Uint64(p[48:56]),
		})
	}

	var shdrRaw [][]byte
	for i := 0; i < int(shnum); i++ {
		off := int(shoff) + i*int(shentsize)
		sh := buf[off : off+SizeofShdr64]
		shdrRaw = append(shdrRaw, sh)
		r.Sections = append(r.Sections, SectionInfo{
			Index:   i,
			Type:    binary.LittleEndian.Uint32(sh[4:8]),
			Flags:   binary.LittleEndian.Uint64(sh[8:16]),
			Addr:    binary.LittleEndian.Uint64(sh[16:24]),
			Offset:  binary.LittleEndian.Uint64(sh[24:32]),
			Size:    binary.LittleEndian.Uint64(sh[32:40]),
			Link:    binary.LittleEndian.Uint32(sh[40:44]),
			Info:    binary.LittleEndian.Uint32(sh[44:48]),
			Entsize: binary.LittleEndian.Uint64(sh[56:64]),
		})
	}

	if int(shstrndx) < len(r.Sections) {
		strOff := r.Sections[shstrndx].Offset
		strSize := r.Sections[shstrndx].Size
		shstrtabBytes := buf[strOff : strOff+strSize]
		lookup := func(off uint32) string {
			if int(off) >= len(shstrtabBytes) {
				return ""
			}
			end := off
			for end < uint32(len(shstrtabBytes)) && shstrtabBytes[end] != 0 {
				end++
			}
			return string(shstrtabBytes[off:end])
		}
		r.SectionStr = lookup
		for i, sh := range shdrRaw {
			r.Sections[i].Name = lookup(binary.LittleEndian.Uint32(sh[0:4]))
		}
	}

	for _, sec := range r.Sections {
		if sec.Type != SHT_SYMTAB || sec.Entsize == 0 {
			continue
		}
		strtabSec := r.Sections[sec.Link]
		symtabBytes := buf[sec.Offset : sec.Offset+sec.Size]
		strtabBytes := buf[strtabSec.Offset : strtabSec.Offset+strtabSec.Size]
		count := int(sec.Size) / SizeofSym64
		for j := 0; j < count; j++ {
			s := symtabBytes[j*SizeofSym64 : (j+1)*SizeofSym64]
			nameOff := binary.LittleEndian.Uint32(s[0:4])
			info := s[4]
			r.Symbols = append(r.Symbols, SymbolInfo{
				Name:  lookupCString(strtabBytes, nameOff),
				Bind:  StBind(info),
				Type:  StType(info),
				Shndx: binary.LittleEndian.Uint16(s[6:8]),
				Value: binary.LittleEndian.Uint64(s[8:16]),
				Size:  binary.LittleEndian.Uint64(s[16:24]),
			})
		}
	}

	return r, nil
}

func lookupCString(data []byte, off uint32) string {
	if int(off) >= len(data) {
		return ""
	}
	end := off
	for end < uint32(len(data)) && data[end] != 0 {
		end++
	}
	return string(data[off:end])
}

// WriteReport prints a human-readable report, used by the `elfasm dump`
// CLI subcommand.
func WriteReport(w io.Writer, r *Report) {
	fmt.Fprintf(w, "ELF%d %s, machine=%s, entry=0x%x\n", 64, etTypeName(r.Type), machineName(r.Machine), r.Entry)
	fmt.Fprintln(w, "Sections:")
	for _, s := range r.Sections {
		fmt.Fprintf(w, "  [%2d] %-12s %-10s addr=0x%-8x off=0x%-6x size=%-6d link=%-2d info=%-2d\n",
			s.Index, s.Name, shTypeName(s.Type), s.Addr, s.Offset, s.Size, s.Link, s.Info)
	}
	fmt.Fprintln(w, "Programs:")
	for _, p := range r.Programs {
		fmt.Fprintf(w, "  [%2d] %-8s flags=0x%x off=0x%-6x vaddr=0x%-8x filesz=%-6d memsz=%-6d\n",
			p.Index, ptTypeName(p.Type), p.Flags, p.Offset, p.Vaddr, p.Filesz, p.Memsz)
	}
	if len(r.Symbols) > 0 {
		fmt.Fprintln(w, "Symbols:")
		for _, sym := range r.Symbols {
			fmt.Fprintf(w, "  %-16s bind=%d type=%d shndx=%-5d value=0x%x size=%d\n",
				sym.Name, sym.Bind, sym.Type, sym.Shndx, sym.Value, sym.Size)
		}
	}
}

func etTypeName(t uint16) string {
	switch t {
	case ET_REL:
		return "REL"
	case ET_EXEC:
		return "EXEC"
	case ET_DYN:
		return "DYN"
	case ET_CORE:
		return "CORE"
	default:
		return "UNKNOWN"
	}
}
