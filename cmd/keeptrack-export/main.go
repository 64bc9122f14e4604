package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"

	"keeptrack/internal/backend"
	"keeptrack/internal/cli"
	"keeptrack/internal/config"
	"keeptrack/internal/core"
	"keeptrack/internal/export"
	"keeptrack/internal/filter"
	"keeptrack/internal/ledger"
	"keeptrack/internal/log"
	"keeptrack/internal/storage"
)

type options struct {
	owner    string
	format   string
	output   string
	search   string
	txType   string
	category string
	from     string
	to       string
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.owner, "owner", core.Offline, "ledger owner ID")
	flag.StringVar(&o.format, "format", "csv", "csv, text, pdf or xlsx")
	flag.StringVar(&o.output, "out", "", "output file (default stdout)")
	flag.StringVar(&o.search, "search", "", "match category or description")
	flag.StringVar(&o.txType, "type", "", "income, expense or all")
	flag.StringVar(&o.category, "category", "", "exact category")
	flag.StringVar(&o.from, "from", "", "first date, YYYY-MM-DD")
	flag.StringVar(&o.to, "to", "", "last date, YYYY-MM-DD")
	flag.Parse()
	return o
}

func (o options) criteria() (filter.Criteria, error) {
	return filter.FromQuery(url.Values{
		"search":   {o.search},
		"type":     {o.txType},
		"category": {o.category},
		"from":     {o.from},
		"to":       {o.to},
	})
}

func main() {
	opts := parseFlags()

	cli.LoadEnvFile()
	cfg := config.Load()
	logCfg := log.DefaultConfig()
	logCfg.Level = log.ParseLevel(cfg.LogLevel)
	logCfg.Output = os.Stderr
	logger := log.New(logCfg)

	if err := run(context.Background(), cfg, opts, logger); err != nil {
		logger.Error("Export failed", log.FieldOperation, log.OpExport, log.FieldError, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, opts options, logger *log.Logger) error {
	format, err := export.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	criteria, err := opts.criteria()
	if err != nil {
		return err
	}

	kv, err := backend.NewFactory(logger).OpenLocal(ctx, cfg)
	if err != nil {
		return err
	}
	defer kv.Close()

	store := ledger.NewStore(ledger.Options{
		Owner:           opts.owner,
		KV:              storage.Namespace(kv, opts.owner),
		DefaultCurrency: cfg.DefaultCurrency,
		Logger:          logger,
	})
	if err := store.Load(ctx); err != nil {
		return err
	}
	records := filter.Apply(filter.ForOwner(store.Transactions(), store.Owner()), criteria)

	var out io.Writer = os.Stdout
	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}
	bw := bufio.NewWriter(out)
	if err := export.Write(bw, format, records, store.Currency()); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	logger.Info("Export written",
		log.FieldOwner, store.Owner(),
		"format", string(format),
		log.FieldCount, len(records),
		"output", opts.output)
	return nil
}
