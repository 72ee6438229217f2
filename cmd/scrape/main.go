// Command scrape collects one symbol from every source and writes the report.
//
//	scrape <SYMBOL> [--json] [--html] [--output PATH]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/bighogz/finscan/internal/common"
	"github.com/bighogz/finscan/internal/config"
	"github.com/bighogz/finscan/internal/pipeline"
	"github.com/bighogz/finscan/internal/store"
	"github.com/bighogz/finscan/internal/telemetry"
)

const usage = "usage: scrape <SYMBOL> [--json] [--html] [--output PATH]"

type options struct {
	symbol  string
	formats pipeline.Formats
	output  string
	config  string
}

// parseArgs accepts the symbol before, after or between flags.
func parseArgs(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("scrape", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, usage)
		fs.PrintDefaults()
	}
	fs.BoolVar(&o.formats.JSON, "json", false, "Write the record as JSON")
	fs.BoolVar(&o.formats.HTML, "html", false, "Write the HTML report (default when no format is given)")
	fs.StringVar(&o.output, "output", "", "Output file or directory (default: temp_data/ under the data dir)")
	fs.StringVar(&o.output, "o", "", "Shorthand for --output")
	fs.StringVar(&o.config, "config", config.Path(), "Optional JSON config file")

	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return o, err
		}
		args = fs.Args()
		if len(args) == 0 {
			break
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
	if len(positional) != 1 {
		fs.Usage()
		return o, fmt.Errorf("expected exactly one symbol, got %d", len(positional))
	}
	o.symbol = positional[0]
	return o, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	o, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, err := config.Load(o.config)
	logger := common.NewLoggerWithOutput(cfg.LogLevel, stderr)
	if err != nil {
		logger.Warn().Err(err).Str("path", o.config).Msg("config ignored")
	}

	shutdown, err := telemetry.Setup(cfg.Trace, stderr)
	if err != nil {
		logger.Warn().Err(err).Msg("tracing disabled")
	} else {
		defer shutdown(context.Background())
	}

	opts := []pipeline.Option{pipeline.WithLogger(logger)}
	if cfg.IndexPath != "" {
		idx, err := store.OpenIndex(ctx, cfg.IndexPath)
		if err != nil {
			logger.Warn().Err(err).Str("path", cfg.IndexPath).Msg("report index unavailable")
		} else {
			defer idx.Close()
			opts = append(opts, pipeline.WithIndex(idx))
		}
	}

	runner := pipeline.NewRunner(pipeline.NewAggregator(cfg, logger), store.New(cfg.DataDir), opts...)
	res, err := runner.Run(ctx, o.symbol, o.formats, o.output)
	if err != nil {
		logger.Error().Err(err).Str("symbol", o.symbol).Msg("scrape failed")
		return 1
	}
	for _, a := range res.Artifacts {
		fmt.Fprintln(stdout, a.Path)
	}
	return 0
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
