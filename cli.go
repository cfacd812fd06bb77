package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// cli.go wires the cobra command tree. Replaces the teacher's hand-rolled
// RunCLI/CommandContext dispatch (xyproto/flapc's cli.go) with subcommands
// that exercise the full core: `elfasm build` drives BuildSpec->Builder->
// Assemble, `elfasm dump` drives ReadELF64->WriteReport.
func newRootCmd() *cobra.Command {
	var verbose, quiet bool

	root := &cobra.Command{
		Use:   "elfasm",
		Short: "Build and inspect minimal ELF images from a declarative build descriptor",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			VerboseMode = verbose || envVerboseOverride()
			if quiet {
				VerboseMode = false
			}
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "trace every emitted byte")
	root.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress verbose tracing even if -v or ELFASM_VERBOSE is set")

	root.AddCommand(newBuildCmd())
	root.AddCommand(newDumpCmd())
	return root
}

func newBuildCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "build <buildspec.yaml>",
		Short: "Build an ELF image from a YAML build descriptor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				output = envOutputOverride("a.out")
			}
			spec, err := LoadBuildSpec(args[0])
			if err != nil {
				return err
			}
			builder, err := spec.Build()
			if err != nil {
				return err
			}
			out := NewByteBuffer()
			if err := builder.Assemble(out); err != nil {
				return fmt.Errorf("elfasm: assembling %s: %w", args[0], err)
			}
			if err := os.WriteFile(output, out.Bytes(), 0o755); err != nil {
				return fmt.Errorf("elfasm: writing %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", output, out.Len())
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (default: a.out, or $ELFASM_OUTPUT)")
	return cmd
}

func newDumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump <elf-file>",
		Short: "Parse and print an ELF64 image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("elfasm: reading %s: %w", args[0], err)
			}
			report, err := ReadELF64(raw)
			if err != nil {
				return fmt.Errorf("elfasm: %s: %w", args[0], err)
			}
			WriteReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
}
