package main

import (
	"bufio"

	"github.com/spf13/cobra"

	"github.com/modfin/cardx"
)

func newFoldCmd() *cobra.Command {
	var width int
	cmd := &cobra.Command{
		Use:   "fold",
		Short: "Fold long lines read from stdin",
		Long: `Breaks every line longer than the width in front of a space or tab and
writes CRLF terminated lines to stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sc := bufio.NewScanner(cmd.InOrStdin())
			sc.Buffer(make([]byte, 64<<10), 10<<20)
			w := bufio.NewWriter(cmd.OutOrStdout())
			for sc.Scan() {
				line := sc.Bytes()
				if n := len(line); n > 0 && line[n-1] == '\r' {
					line = line[:n-1]
				}
				if _, err := w.Write(cardx.Fold(line, width)); err != nil {
					return err
				}
				if _, err := w.WriteString("\r\n"); err != nil {
					return err
				}
			}
			if err := sc.Err(); err != nil {
				return err
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&width, "width", "w", cardx.DefaultFoldWidth, "minimum line width before folding")
	return cmd
}
