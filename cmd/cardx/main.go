// Command cardx parses vCard and vCalendar files.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/modfin/cardx"
	"github.com/modfin/cardx/metrics"
	"github.com/modfin/cardx/middleware"
)

type options struct {
	configPath  string
	logLevel    string
	resync      bool
	showMetrics bool

	cfg *Config
	log *slog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "cardx",
		Short:         "Streaming vCard and vCalendar parser",
		Version:       cardx.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if !opts.showMetrics {
				return nil
			}
			return metrics.WriteText(cmd.ErrOrStderr())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "yaml configuration file")
	flags.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")
	flags.BoolVar(&opts.resync, "resync", false, "skip malformed lines instead of failing")
	flags.BoolVar(&opts.showMetrics, "metrics", false, "print metrics to stderr when done")

	root.AddCommand(
		newDumpCmd(opts),
		newCheckCmd(opts),
		newStoreCmd(opts),
		newFoldCmd(),
	)
	return root
}

func (o *options) setup(cmd *cobra.Command) error {
	cfg, err := Load(o.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("resync") {
		cfg.Parser.Resync = o.resync
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	o.log = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	cfg.Parser.Logger = o.log.With("component", "parser")
	o.cfg = cfg
	return nil
}

// middlewares is the chain every command puts in front of its handler.
func (o *options) middlewares() []cardx.Middleware {
	mws := []cardx.Middleware{
		middleware.Recover,
		metrics.Middleware(),
		middleware.Logger(o.log, middleware.WithLevel(slog.LevelDebug)),
	}
	if len(o.cfg.Properties) > 0 {
		allow := map[string]bool{}
		for _, n := range o.cfg.Properties {
			allow[strings.ToUpper(n)] = true
		}
		// the allow list names properties without their group
		mws = append(mws, middleware.FilterProperty(func(name string, _ cardx.Params) bool {
			if _, n, ok := strings.Cut(name, "."); ok {
				name = n
			}
			return allow[strings.ToUpper(name)]
		}))
	}
	return mws
}

// eachInput calls fn with every named file, or with stdin when there are
// none or the name is "-".
func eachInput(cmd *cobra.Command, args []string, fn func(name string, r io.Reader) error) error {
	if len(args) == 0 {
		args = []string{"-"}
	}
	var failed []string
	for _, name := range args {
		var err error
		if name == "-" {
			err = fn("<stdin>", cmd.InOrStdin())
		} else {
			err = withFile(name, fn)
		}
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", name, err)
			failed = append(failed, name)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("failed: %s", strings.Join(failed, ", "))
	}
	return nil
}

func withFile(name string, fn func(string, io.Reader) error) error {
	f, err := os.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()
	return fn(name, f)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
