// Command cairnc is the cairn compiler's CLI entrypoint.
//
// Grounded on falcon's main.go (a bare os.Args length check dispatching
// straight into compile.CompileTheWorld), generalized to a real cobra
// command tree the way the pack's compiler-adjacent CLIs do it
// (raymyers-ralph-cc-go, ajroetker-goat), per SPEC_FULL.md §9.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cairnc",
		Short:         "cairn: a self-hosting C-family compiler core",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newCompileCmd())
	return root
}
