package main

import env "github.com/xyproto/env/v2"

// cmd_env.go wires environment-variable overrides for CLI flags through
// xyproto/env/v2 — the teacher repo's own dependency, previously declared
// but unused (an indirect require in xyproto/flapc's go.mod). It is now a
// direct, exercised dependency.

// envVerboseOverride reports whether ELFASM_VERBOSE is set to a truthy
// value, letting CI or shell profiles enable tracing without a flag.
func envVerboseOverride() bool {
	return env.Bool("ELFASM_VERBOSE")
}

// envOutputOverride returns $ELFASM_OUTPUT, or fallback if unset.
func envOutputOverride(fallback string) string {
	return env.StrOr("ELFASM_OUTPUT", fallback)
}
