package main

import "bytes"

// maxStrtabLen is the string-table overflow boundary: 2^32 - 1 bytes.
// Grounded on spec.md §4.2 / original_source/src/asm/elf/builder.c's
// ELFStrtabAppend overflow check.
const maxStrtabLen = 1<<32 - 1

// StringTable implements ELF string-table semantics atop a ByteBuffer:
// byte 0 is always NUL, and Append returns the byte offset of the newly
// written, NUL-terminated string. It is always the Data buffer belonging
// to a Section of type SHT_STRTAB; NewStringTable seeds the leading NUL.
type StringTable struct {
	buf *ByteBuffer
}

// NewStringTable returns a StringTable with the mandatory leading NUL byte
// already written, per spec.md invariant 2.
func NewStringTable(buf *ByteBuffer) *StringTable {
	st := &StringTable{buf: buf}
	buf.Write(0)
	return st
}

// Append writes name followed by a NUL terminator and returns the offset
// at which it starts. The empty string always returns 0 without writing.
// If the tentative new length would reach or exceed maxStrtabLen, nothing
// is written and 0 is returned.
func (st *StringTable) Append(name string) uint32 {
	if name == "" {
		return 0
	}
	cur := st.buf.Len()
	if uint64(cur)+uint64(len(name))+1 >= maxStrtabLen {
		return 0
	}
	off := uint32(cur)
	st.buf.WriteBytes([]byte(name))
	st.buf.Write(0)
	return off
}

// Lookup returns the NUL-terminated string starting at byte offset index.
// The caller must supply an index known to point at a string start.
func (st *StringTable) Lookup(index uint32) string {
	data := st.buf.Bytes()
	if int(index) >= len(data) {
		return ""
	}
	end := bytes.IndexByte(data[index:], 0)
	if end < 0 {
		return string(data[index:])
	}
	return string(data[index : int(index)+end])
}
