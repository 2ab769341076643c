// Command bgpfilter reads one or more MRT archive files, applies a
// configured set of prefix/AS/VM-program filters, and writes the
// passing BGP UPDATEs out in the requested format. It generalizes the
// teacher's gobgpdump: the scan loop is fileutil's, filtering is a
// mix of filter.Filter convenience predicates and compiled vm.Machine
// programs, and the I/O, worker-pool and dedup-formatter shapes are
// adapted from cmd/gobgpdump/{gobgpdump,format}.go.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/CSUNetSec/bgpcore/bgp"
	"github.com/CSUNetSec/bgpcore/errstat"
	"github.com/CSUNetSec/bgpcore/fileutil"
	"github.com/CSUNetSec/bgpcore/filter"
	"github.com/CSUNetSec/bgpcore/mrt"
	"github.com/CSUNetSec/bgpcore/vm"
)

func main() {
	var (
		configPath  string
		logLevel    string
		formatFlag  string
		workersFlag int
		outputFlag  string
		logFlag     string
		statsFlag   string
		metricsFlag string
	)
	flag.StringVar(&configPath, "config", "", "path to a YAML config file")
	flag.StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	flag.StringVar(&formatFlag, "format", "", "override output format (text, json, uniq, uniq-series)")
	flag.IntVar(&workersFlag, "workers", 0, "override worker count")
	flag.StringVar(&outputFlag, "o", "", "override dump output path (stdout/stderr/file)")
	flag.StringVar(&logFlag, "lo", "", "override error-log output path")
	flag.StringVar(&statsFlag, "so", "", "override stats output path")
	flag.StringVar(&metricsFlag, "metrics-addr", "", "override Prometheus /metrics listen address, e.g. :9107")
	flag.Parse()

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	applyOverrides(cfg, logLevel, formatFlag, workersFlag, outputFlag, logFlag, statsFlag, metricsFlag)

	logger := initLogger(cfg.LogLevel)
	defer logger.Sync()
	sugar := logger.Sugar()

	paths := flag.Args()
	if len(paths) == 0 {
		sugar.Fatal("no input files given")
	}

	filters, programs, err := loadFilters(cfg.FilterFile, sugar)
	if err != nil {
		sugar.Fatalw("loading filters", "error", err)
	}
	if len(programs) > 0 {
		filters = append(filters, programFilters(programs, sugar)...)
	}

	fmtr, closers, err := buildFormatter(cfg)
	if err != nil {
		sugar.Fatalw("building formatter", "error", err)
	}
	defer closeAll(closers)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		sugar.Info("received shutdown signal")
		cancel()
	}()
	serveMetrics(ctx, cfg.MetricsAddr, sugar)

	rebuild := mrt.RebuildFlags(0)
	if cfg.Strict {
		rebuild |= mrt.StrictRFC6396
	}
	if cfg.StripUnreach {
		rebuild |= mrt.StripUnreach
	}

	rc := &runConfig{
		workers: cfg.Workers,
		source:  newFileSource(paths),
		fmtr:    fmtr,
		filters: filters,
		rebuild: rebuild,
		dump:    closers.dump,
		log:     closers.log,
		stat:    closers.stat,
		logger:  sugar,
	}
	run(rc)
}

func applyOverrides(cfg *Config, logLevel, format string, workers int, output, logPath, stats, metricsAddr string) {
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if format != "" {
		cfg.Format = format
	}
	if workers > 0 {
		cfg.Workers = workers
	}
	if output != "" {
		cfg.Output = output
	}
	if logPath != "" {
		cfg.Log = logPath
	}
	if stats != "" {
		cfg.Stats = stats
	}
	if metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
	}
}

// loadFilters loads the convenience filters and compiled VM programs
// from path, if given. A missing FilterFile means "pass everything".
func loadFilters(path string, logger *zap.SugaredLogger) ([]filter.Filter, []*vm.Machine, error) {
	if path == "" {
		return nil, nil, nil
	}
	ff, err := fileutil.LoadFilterFile(path)
	if err != nil {
		return nil, nil, err
	}
	plain, err := ff.Filters()
	if err != nil {
		return nil, nil, err
	}
	programs, err := ff.Programs()
	if err != nil {
		return nil, nil, err
	}
	logger.Infow("loaded filters", "file", path, "convenience", len(plain), "programs", len(programs))
	return plain, programs, nil
}

// programFilters adapts a bank of compiled vm.Machine programs into
// filter.Filter predicates, installing a zap-backed errstat handler
// and the shared Prometheus metrics registry on each so that VM
// errors are logged and accept/reject/error counts are exported on
// /metrics. A program that halts with an error rejects the message
// rather than aborting the whole run.
func programFilters(machines []*vm.Machine, logger *zap.SugaredLogger) []filter.Filter {
	metrics := vm.NewMetrics(prometheus.DefaultRegisterer, "bgpfilter", "vm")
	status := errstat.New()
	status.SetHandler(zapErrstatHandler(logger), nil)

	out := make([]filter.Filter, len(machines))
	for i, m := range machines {
		m.SetMetrics(metrics)
		m.SetErrStatus(status)
		mm := m
		out[i] = func(upd *bgp.Update) bool {
			ok, err := mm.Run(upd)
			return err == nil && ok
		}
	}
	return out
}
