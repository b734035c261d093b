// Command councilctl runs the council consensus engine offline: classify a
// hand-entered tally, score a vote file, inspect a roster or simulate a full
// deliberation against the in-process store.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	output string
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "councilctl",
		Short:         "Inspect and exercise the council consensus engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", "text", "Output format: text, json or yaml")

	root.AddCommand(newClassifyCmd(opts))
	root.AddCommand(newTallyCmd(opts))
	root.AddCommand(newRosterCmd(opts))
	root.AddCommand(newSimulateCmd(opts))
	return root
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "councilctl:", err)
		os.Exit(1)
	}
}
