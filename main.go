// Command elfasm builds ELF64 executable images from an in-memory model,
// and emits raw x86-64 instruction bytes for a backend's .text payload.
// 32-bit targets can be modelled but are rejected at assembly time.
//
// The library surface lives in bytebuffer.go, strtab.go, elfconst.go,
// elfmodel.go, assembler.go, x86encoder.go and elfdump.go. This file only
// wires the cobra command tree to that surface.
package main

import "os"

// VerboseMode gates per-byte diagnostic tracing across the whole module.
// Mirrors the teacher repo's package-level debug switch: off by default,
// flipped on by -v/--verbose on the CLI.
var VerboseMode bool

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
