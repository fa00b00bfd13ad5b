package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/modfin/cardx"
	"github.com/modfin/cardx/metrics"
)

func newCheckCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check [file...]",
		Short: "Check that card files parse",
		Long: `Runs a structural scan over each file. Values are not decoded, so
encoding errors inside values are not found. Exits with status 1 if any file fails.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return eachInput(cmd, args, func(name string, r io.Reader) error {
				var n int
				// no data callback, the parser skips decoding
				h := cardx.HandlerFuncs{
					OnProperty: func(context.Context, string, cardx.Params) error {
						n++
						return nil
					},
				}
				err := cardx.ParseReader(cmd.Context(), r, h, &opts.cfg.Parser)
				metrics.ObserveParse(err)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: ok, %d properties\n", name, n)
				return nil
			})
		},
	}
}
