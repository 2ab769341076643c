package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/CSUNetSec/bgpcore/errstat"
)

// initLogger builds a production zap logger at the given level, mirroring
// the teacher pack's rib-ingester initLogger (same encoder config, same
// level names).
func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zap.DebugLevel
	case "warn":
		zapLevel = zap.WarnLevel
	case "error":
		zapLevel = zap.ErrorLevel
	default:
		zapLevel = zap.InfoLevel
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(zapLevel)
	zapCfg.EncoderConfig.TimeKey = "ts"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zapCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error initializing logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

// zapErrstatHandler returns an errstat.Handler that logs every raised
// decode/VM error as a structured warning, demonstrating errstat's
// callback as a real extension point alongside the errstat.Ignore and
// errstat.Abort sentinels.
func zapErrstatHandler(logger *zap.SugaredLogger) errstat.Handler {
	return func(err error, loc errstat.Srcloc, userData any) {
		logger.Warnw("decode error", "error", err, "site", loc.String())
	}
}
