package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cairn/internal/config"
	"cairn/internal/driver"
)

// newCompileCmd builds `cairnc compile <file>`, binding pflag-backed flags
// straight into a config.Options the way the rest of the pipeline consumes
// it, rather than passing *cobra.Command down into internal/driver.
func newCompileCmd() *cobra.Command {
	var (
		arch     string
		syntax   string
		pack     int
		debug    bool
		emitOnly bool
		output   string
	)

	cmd := &cobra.Command{
		Use:   "compile <file>",
		Short: "compile one preprocessed translation unit to x86 assembly",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			x86_64, err := parseArch(arch)
			if err != nil {
				return err
			}
			intel, err := parseSyntax(syntax)
			if err != nil {
				return err
			}

			cfg := config.Options{
				X86_64:   x86_64,
				Intel:    intel,
				Pack:     pack,
				Debug:    debug,
				EmitOnly: emitOnly,
				Output:   output,
			}

			res, err := driver.CompileFile(args[0], cfg)
			if err != nil {
				return err
			}
			if emitOnly {
				fmt.Fprint(cmd.OutOrStdout(), res.Assembly)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", res.BinaryPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&arch, "arch", "x86-64", "target architecture: x86 or x86-64")
	cmd.Flags().StringVar(&syntax, "syntax", "att", "assembly syntax: att or intel")
	cmd.Flags().IntVar(&pack, "pack", 0, "struct pack alignment override (0 = natural)")
	cmd.Flags().BoolVar(&debug, "debug", false, "trace each pipeline stage on stderr")
	cmd.Flags().BoolVar(&emitOnly, "emit-only", false, "emit assembly only; skip the external assembler/linker")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output binary path (default: source name without its extension)")
	return cmd
}

func parseArch(arch string) (x86_64 bool, err error) {
	switch arch {
	case "x86-64":
		return true, nil
	case "x86":
		return false, nil
	default:
		return false, fmt.Errorf("unsupported --arch %q (want x86 or x86-64)", arch)
	}
}

func parseSyntax(syntax string) (intel bool, err error) {
	switch syntax {
	case "att":
		return false, nil
	case "intel":
		return true, nil
	default:
		return false, fmt.Errorf("unsupported --syntax %q (want att or intel)", syntax)
	}
}
