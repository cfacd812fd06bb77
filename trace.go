package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

// traceByte and traceBytes print a per-byte diagnostic trace when
// VerboseMode is enabled, grounded on xyproto/flapc's emit.go
// (fmt.Fprintf(os.Stderr, " %x", b)) convention, colorized via fatih/color
// so the trace reads against a terminal's ordinary output.
var traceColor = color.New(color.FgYellow)

func traceByte(b byte) {
	if !VerboseMode {
		return
	}
	traceColor.Fprintf(os.Stderr, " %02x", b)
}

func traceBytes(bs []byte) {
	if !VerboseMode {
		return
	}
	for _, b := range bs {
		traceColor.Fprintf(os.Stderr, " %02x", b)
	}
}

// traceLine ends the current trace line with a label, mirroring the
// teacher's fmt.Fprintln(os.Stderr) after a run of per-byte writes.
func traceLine(label string) {
	if !VerboseMode {
		return
	}
	fmt.Fprintf(os.Stderr, "  ; %s\n", label)
}
