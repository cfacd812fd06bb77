package main

import "encoding/binary"

// minGrowthCap is the point at which ByteBuffer switches from geometric
// doubling to a linear +1MiB growth increment. Grounded on BUF_MAX_PREALLOC
// in original_source/src/buf.c.
const minGrowthCap = 1 << 20

// growthAlign is the multiple every new capacity is rounded up to.
// Grounded on the align2(len+size, 32) call in _BufMakeRoomFor.
const growthAlign = 32

// ByteBuffer is a growable, append-only byte buffer. Its growth policy
// mirrors original_source/src/buf.c's _BufMakeRoomFor: double the capacity
// until minGrowthCap is reached, then grow linearly by minGrowthCap,
// always rounding the new capacity up to a 32-byte multiple.
//
// Any slice previously returned by Alloc/AllocZeroed is only valid until
// the next operation that may grow the buffer.
type ByteBuffer struct {
	buf []byte
}

// NewByteBuffer returns an empty, ready-to-use ByteBuffer.
func NewByteBuffer() *ByteBuffer {
	return &ByteBuffer{}
}

// Len returns the number of bytes currently held.
func (b *ByteBuffer) Len() int { return len(b.buf) }

// Bytes returns the buffer's contents. The returned slice aliases the
// buffer's storage and is invalidated by any subsequent append/alloc.
func (b *ByteBuffer) Bytes() []byte { return b.buf }

func alignUp(n, align int) int {
	if align <= 0 {
		return n
	}
	return (n + align - 1) / align * align
}

// growCap computes the next capacity for a buffer of current length cur
// that needs room for size additional bytes, following buf.c's policy.
func growCap(cur, size int) int {
	need := alignUp(cur+size, growthAlign)
	if need < minGrowthCap {
		return need * 2
	}
	return need + minGrowthCap
}

// ensureCapacity grows the backing array, if needed, to hold size more
// bytes without reallocating again. A no-op if cap(b.buf) already suffices.
func (b *ByteBuffer) ensureCapacity(size int) {
	if cap(b.buf)-len(b.buf) >= size {
		return
	}
	newCap := growCap(len(b.buf), size)
	grown := make([]byte, len(b.buf), newCap)
	copy(grown, b.buf)
	b.buf = grown
}

// Append appends bytes to the buffer.
func (b *ByteBuffer) Append(bs []byte) {
	b.ensureCapacity(len(bs))
	b.buf = append(b.buf, bs...)
}

// AppendFill appends count copies of value.
func (b *ByteBuffer) AppendFill(value byte, count int) {
	b.ensureCapacity(count)
	for i := 0; i < count; i++ {
		b.buf = append(b.buf, value)
	}
}

// Alloc reserves n bytes of unspecified content at the end of the buffer
// and returns a slice over them, valid until the buffer next grows.
func (b *ByteBuffer) Alloc(n int) []byte {
	b.ensureCapacity(n)
	start := len(b.buf)
	b.buf = b.buf[:start+n]
	return b.buf[start : start+n]
}

// AllocZeroed is like Alloc but guarantees the returned region is zeroed.
func (b *ByteBuffer) AllocZeroed(n int) []byte {
	region := b.Alloc(n)
	for i := range region {
		region[i] = 0
	}
	return region
}

// --- low-level writers, grounded on xyproto/flapc's BufferWrapper (emit.go) ---

// Write appends a single byte, tracing it if VerboseMode is set.
func (b *ByteBuffer) Write(v byte) int {
	b.Append([]byte{v})
	traceByte(v)
	return 1
}

// WriteN appends n copies of v.
func (b *ByteBuffer) WriteN(v byte, n int) int {
	for i := 0; i < n; i++ {
		b.Write(v)
	}
	return n
}

// Write2 appends a little-endian uint16.
func (b *ByteBuffer) Write2(v uint16) int {
	bs := make([]byte, 2)
	binary.LittleEndian.PutUint16(bs, v)
	b.Append(bs)
	traceBytes(bs)
	return 2
}

// Write4 appends a little-endian uint32.
func (b *ByteBuffer) Write4(v uint32) int {
	bs := make([]byte, 4)
	binary.LittleEndian.PutUint32(bs, v)
	b.Append(bs)
	traceBytes(bs)
	return 4
}

// Write8u appends a little-endian uint64.
func (b *ByteBuffer) Write8u(v uint64) int {
	bs := make([]byte, 8)
	binary.LittleEndian.PutUint64(bs, v)
	b.Append(bs)
	traceBytes(bs)
	return 8
}

// WriteBytes appends a raw byte slice verbatim.
func (b *ByteBuffer) WriteBytes(bs []byte) int {
	b.Append(bs)
	traceBytes(bs)
	return len(bs)
}

// WriteAt overwrites already-written bytes starting at offset, without
// growing the buffer. Used by the assembler to patch the ELF and program
// header areas reserved up front in phase 1.
func (b *ByteBuffer) WriteAt(offset int, bs []byte) {
	if offset < 0 || offset+len(bs) > len(b.buf) {
		panic("elfasm: WriteAt out of range")
	}
	copy(b.buf[offset:offset+len(bs)], bs)
}
