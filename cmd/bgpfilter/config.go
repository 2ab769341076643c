package main

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is bgpfilter's own run configuration: where to read and write,
// how many workers to run, which output format to use, and the rebuild
// policy for RIB dump entries. The filter/VM program set itself lives
// in a separate FilterFile (fileutil.LoadFilterFile), pointed to by
// FilterFile below, so that filter definitions can be shared across
// runs independently of I/O settings.
type Config struct {
	Workers     int    `koanf:"workers"`
	Output      string `koanf:"output"`
	Log         string `koanf:"log"`
	Stats       string `koanf:"stats"`
	Format      string `koanf:"format"`
	FilterFile  string `koanf:"filter_file"`
	MetricsAddr string `koanf:"metrics_addr"`
	LogLevel    string `koanf:"log_level"`
	Strict      bool   `koanf:"strict_rfc6396"`
	StripUnreach bool  `koanf:"strip_unreach"`
}

// loadConfig loads Config from an optional YAML path, overlaid with
// BGPFILTER_ prefixed environment variables (double-underscore
// separated for nesting, matching fileutil's filter-file convention).
func loadConfig(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider("BGPFILTER_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "BGPFILTER_")
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env config: %w", err)
	}

	cfg := &Config{
		Workers:  4,
		Output:   "stdout",
		Log:      "stderr",
		Stats:    "stderr",
		Format:   "text",
		LogLevel: "info",
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("config: workers must be > 0 (got %d)", c.Workers)
	}
	switch c.Format {
	case "text", "json", "uniq", "uniq-series":
	default:
		return fmt.Errorf("config: unsupported format %q", c.Format)
	}
	return nil
}
