package cmd

import (
	"bufio"
	"fmt"

	"github.com/smazurov/streamrec/internal/output"
	"github.com/spf13/cobra"
)

// CreateClassifyCmd creates the classify command.
func CreateClassifyCmd() *cobra.Command {
	var terminalOnly bool

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify capture output lines read from stdin",
		Long: `Reads lines from stdin and prints the signal each one maps to, tab separated from the line. ` +
			`Useful for checking a capture program's output against the recognized markers.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			scanner := bufio.NewScanner(cmd.InOrStdin())
			scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
			out := cmd.OutOrStdout()
			for scanner.Scan() {
				line := scanner.Text()
				sig := output.Classify(line)
				if terminalOnly && !sig.Terminal() {
					continue
				}
				fmt.Fprintf(out, "%s\t%s\n", sig, line)
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("reading input: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&terminalOnly, "terminal-only", "t", false, "Only print lines that end a capture")
	return cmd
}
