package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/modfin/cardx"
	"github.com/modfin/cardx/charset"
	"github.com/modfin/cardx/metrics"
	"github.com/modfin/cardx/sink"
)

func newDumpCmd(opts *options) *cobra.Command {
	var asJSON, utf8Values bool
	cmd := &cobra.Command{
		Use:   "dump [file...]",
		Short: "Print the properties of card files",
		Long: `Prints one line per property with its parameters and decoded value.
Reads stdin when no file is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var store sink.Store = &textStore{w: cmd.OutOrStdout()}
			if asJSON {
				store = sink.NewJSONStore(cmd.OutOrStdout())
			}
			return eachInput(cmd, args, func(name string, r io.Reader) error {
				rec := sink.NewRecorder(store, "", 0)
				mws := opts.middlewares()
				if utf8Values {
					mws = append(mws, charset.Middleware())
				}
				err := cardx.ParseReader(cmd.Context(), r, cardx.Chain(rec, mws...), &opts.cfg.Parser)
				metrics.ObserveParse(err)
				opts.log.Debug("dumped", "file", name, "doc", rec.DocID(), "properties", rec.Count())
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print records as json lines")
	cmd.Flags().BoolVar(&utf8Values, "utf8", false, "convert values with a CHARSET parameter to UTF-8")
	return cmd
}

// textStore prints records as NAME;PARAMS: value.
type textStore struct {
	w io.Writer
}

func (s *textStore) Put(_ context.Context, rec sink.Record) error {
	name := rec.Name
	if rec.Group != "" {
		name = rec.Group + "." + name
	}
	if len(rec.Params) > 0 {
		name += ";" + rec.Params.String()
	}
	_, err := fmt.Fprintf(s.w, "%s: %s\n", name, printable(rec.Value))
	return err
}

func printable(v []byte) string {
	if !utf8.Valid(v) {
		return fmt.Sprintf("<%d bytes>", len(v))
	}
	q := strconv.Quote(string(v))
	if q[1:len(q)-1] == string(v) {
		return string(v)
	}
	return q
}
