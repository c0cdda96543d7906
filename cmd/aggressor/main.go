// Command aggressor is an HTTP/1 keep-alive load generator: point it at
// one or more numeric target URLs and it drives a fixed pool of
// connections as hard as the server will accept, then prints an
// aggregated throughput and latency report.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/flowbench/aggressor/internal/aggconf"
	"github.com/flowbench/aggressor/internal/agglog"
	"github.com/flowbench/aggressor/internal/driver"
	"github.com/flowbench/aggressor/internal/report"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var raw aggconf.RawFlags

	cmd := &cobra.Command{
		Use:   "aggressor [OPTIONS] URL...",
		Short: "HTTP/1 keep-alive load generator",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw.URLs = args
			raw.ThreadsSet = cmd.Flags().Changed("threads")
			raw.NumberSet = cmd.Flags().Changed("number")
			return runAggressor(raw)
		},
		SilenceUsage: true,
	}

	flags := cmd.Flags()
	flags.Int64VarP(&raw.Number, "number", "n", 0, "total requests across the run (default effectively unlimited)")
	flags.IntVarP(&raw.Concurrency, "concurrency", "c", aggconf.DefaultConcurrency, "total concurrent connections")
	flags.IntVarP(&raw.Threads, "threads", "t", 0, "worker threads (default: online CPU count)")
	flags.StringVarP(&raw.AffinityHex, "affinity", "a", "", "CPU affinity bitmask, hexadecimal")
	flags.IntVarP(&raw.KeepAlive, "keepalive", "k", aggconf.DefaultKeepAlive, "requests per connection before close")
	flags.StringVarP(&raw.Method, "method", "m", aggconf.DefaultMethod, "request method")
	flags.StringArrayVarP(&raw.Headers, "header", "H", nil, "extra request header, repeatable")
	flags.BoolVarP(&raw.Debug, "debug", "D", false, "enable debug logging on stderr")

	return cmd
}

func runAggressor(raw aggconf.RawFlags) error {
	cfg, err := aggconf.Build(raw)
	if err != nil {
		return err
	}

	level := agglog.LevelError
	if cfg.Debug {
		level = agglog.LevelDebug
	}
	agglog.SetLogger(agglog.NewStderrLogger(level))

	if err := driver.RaiseFDLimit(cfg.Concurrency); err != nil {
		agglog.Debugf(-1, -1, "raising file descriptor limit failed: %s", err)
	}

	rep, err := driver.Run(cfg)
	if err != nil {
		return fmt.Errorf("aggressor: %w", err)
	}

	report.Print(os.Stdout, rep)
	return nil
}
