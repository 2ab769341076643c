package main

import (
	"fmt"
	"os"
)

// outputs holds the three shared sinks a run writes to, each wrapped
// in a MultiWriteFile since worker goroutines write concurrently.
// Mirrors the teacher's "stdout"/file-path convention for -o/-lo/-so.
type outputs struct {
	dump *MultiWriteFile
	log  *MultiWriteFile
	stat *MultiWriteFile
}

func openOutput(path string) (*os.File, error) {
	switch path {
	case "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	case "":
		return nil, nil
	default:
		return os.Create(path)
	}
}

// buildFormatter opens cfg's three output sinks and constructs the
// Formatter cfg.Format names.
func buildFormatter(cfg *Config) (Formatter, *outputs, error) {
	dumpFd, err := openOutput(cfg.Output)
	if err != nil {
		return nil, nil, fmt.Errorf("opening output %s: %w", cfg.Output, err)
	}
	logFd, err := openOutput(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log %s: %w", cfg.Log, err)
	}
	statFd, err := openOutput(cfg.Stats)
	if err != nil {
		return nil, nil, fmt.Errorf("opening stats %s: %w", cfg.Stats, err)
	}

	out := &outputs{
		dump: NewMultiWriteFile(dumpFd),
		log:  NewMultiWriteFile(logFd),
		stat: NewMultiWriteFile(statFd),
	}

	var fmtr Formatter
	switch cfg.Format {
	case "json":
		fmtr = NewJSONFormatter()
	case "uniq":
		fmtr = NewUniquePrefixList(dumpFd)
	case "uniq-series":
		fmtr = NewUniquePrefixSeries(dumpFd)
	default:
		fmtr = NewTextFormatter()
	}
	return fmtr, out, nil
}

func closeAll(o *outputs) {
	o.dump.Close()
	o.log.Close()
	o.stat.Close()
}
