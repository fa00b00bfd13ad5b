package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/modfin/cardx"
	"github.com/modfin/cardx/metrics"
	"github.com/modfin/cardx/sink"
)

func newStoreCmd(opts *options) *cobra.Command {
	var (
		backend  string
		maxValue int
	)
	cmd := &cobra.Command{
		Use:   "store [file...]",
		Short: "Store the properties of card files in redis or mysql",
		Long: `Stores one record per property, keyed by a new document id per file.
Connection settings come from the redis and mysql sections of the config file.
The document ids are printed to stdout.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closer, err := openStore(cmd, opts.cfg, backend)
			if err != nil {
				return err
			}
			defer closer()

			return eachInput(cmd, args, func(name string, r io.Reader) error {
				rec := sink.NewRecorder(store, "", maxValue)
				err := cardx.ParseReader(cmd.Context(), r, cardx.Chain(rec, opts.middlewares()...), &opts.cfg.Parser)
				metrics.ObserveParse(err)
				if err != nil {
					return err
				}
				opts.log.Info("stored", "file", name, "doc", rec.DocID(), "records", rec.Count(), "backend", backend)
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", rec.DocID(), name)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&backend, "backend", "b", "redis", "redis or mysql")
	cmd.Flags().IntVar(&maxValue, "max-value", 0, "largest value in bytes to store, 0 for no limit")
	return cmd
}

func openStore(cmd *cobra.Command, cfg *Config, backend string) (sink.Store, func(), error) {
	switch backend {
	case "redis":
		pool := sink.NewRedisPool(cfg.Redis.Addr)
		return sink.NewRedisStore(pool, cfg.Redis.Prefix, cfg.Redis.TTL), func() { _ = pool.Close() }, nil
	case "mysql":
		db, err := sink.OpenMySQL(cfg.MySQL.MySQLConfig)
		if err != nil {
			return nil, nil, err
		}
		store, err := sink.NewMySQLStore(db, cfg.MySQL.Table)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		if cfg.MySQL.CreateTable {
			if err := store.CreateTable(cmd.Context()); err != nil {
				_ = db.Close()
				return nil, nil, fmt.Errorf("create table: %w", err)
			}
		}
		return store, func() { _ = db.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q, want redis or mysql", backend)
}
