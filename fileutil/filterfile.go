package fileutil

import (
	"fmt"

	"github.com/CSUNetSec/bgpcore/asn"
	"github.com/CSUNetSec/bgpcore/filter"
	"github.com/CSUNetSec/bgpcore/patricia"
	"github.com/CSUNetSec/bgpcore/vm"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

// FilterFile is the on-disk description of a running filter set: the
// five convenience filters filter.go supports directly (one prefix
// filter and one AS filter per AS position), plus an
// optional bank of compiled filter-VM programs for anything those
// shapes can't express (AS-path patterns, community boolean
// expressions, combined prefix+AS conditions).
type FilterFile struct {
	MonitoredPrefixes []string      `koanf:"monitored_prefixes"`
	SourceASes        []uint32      `koanf:"source_ases"`
	DestASes          []uint32      `koanf:"dest_ases"`
	MidPathASes       []uint32      `koanf:"midpath_ases"`
	AnywhereASes      []uint32      `koanf:"anywhere_ases"`
	Programs          []ProgramFile `koanf:"programs"`
}

// ProgramFile describes one filter-VM program: an optional prefix set
// gating a PFXMTCH and an optional AS-path pattern gating an ASMTCH,
// ANDed together when both are given. At least one of the two must be
// set.
type ProgramFile struct {
	Name      string   `koanf:"name"`
	PrefixSet []string `koanf:"prefix_set"`
	ASPattern string   `koanf:"as_pattern"`
}

func toAsns(vals []uint32) []asn.Asn {
	out := make([]asn.Asn, len(vals))
	for i, v := range vals {
		out[i] = asn.From32(v)
	}
	return out
}

// Filters builds the convenience (non-VM) filters f describes: up to
// five, one per non-empty field.
// Use Programs for the VM-backed ones.
func (f FilterFile) Filters() ([]filter.Filter, error) {
	return f.getFilters()
}

func (f FilterFile) getFilters() ([]filter.Filter, error) {
	ret := []filter.Filter{}
	if len(f.MonitoredPrefixes) > 0 {
		fil, err := filter.NewPrefixFilterFromSlice(f.MonitoredPrefixes, filter.AdvPrefix)
		if err != nil {
			return nil, errors.Wrap(err, "can not create prefix filter from conf")
		}
		ret = append(ret, fil)
	}
	if len(f.SourceASes) > 0 {
		fil, err := filter.NewASFilterFromSlice(toAsns(f.SourceASes), filter.AS_SOURCE)
		if err != nil {
			return nil, errors.Wrap(err, "can not create source AS filter from conf")
		}
		ret = append(ret, fil)
	}
	if len(f.DestASes) > 0 {
		fil, err := filter.NewASFilterFromSlice(toAsns(f.DestASes), filter.AS_DESTINATION)
		if err != nil {
			return nil, errors.Wrap(err, "can not create destination AS filter from conf")
		}
		ret = append(ret, fil)
	}
	if len(f.MidPathASes) > 0 {
		fil, err := filter.NewASFilterFromSlice(toAsns(f.MidPathASes), filter.AS_MIDPATH)
		if err != nil {
			return nil, errors.Wrap(err, "can not create midpath AS filter from conf")
		}
		ret = append(ret, fil)
	}
	if len(f.AnywhereASes) > 0 {
		fil, err := filter.NewASFilterFromSlice(toAsns(f.AnywhereASes), filter.AS_ANYWHERE)
		if err != nil {
			return nil, errors.Wrap(err, "can not create anywhere AS filter from conf")
		}
		ret = append(ret, fil)
	}
	return ret, nil
}

// Programs compiles every ProgramFile entry into a runnable *vm.Machine.
// Unlike the convenience filters, a compiled program can halt with an
// error (a malformed UPDATE) rather than just reporting false; the
// caller decides how to treat Run's error return per message.
func (f FilterFile) Programs() ([]*vm.Machine, error) {
	out := make([]*vm.Machine, 0, len(f.Programs))
	for _, pf := range f.Programs {
		prog, err := pf.compile()
		if err != nil {
			return nil, errors.Wrapf(err, "program %q", pf.Name)
		}
		m := vm.NewMachine(nil)
		if err := m.Load(prog); err != nil {
			return nil, errors.Wrapf(err, "program %q: load", pf.Name)
		}
		if err := m.Ready(); err != nil {
			return nil, errors.Wrapf(err, "program %q: ready", pf.Name)
		}
		out = append(out, m)
	}
	return out, nil
}

func (pf ProgramFile) compile() (*vm.Program, error) {
	a := vm.NewAssembler()
	haveCond := false

	if len(pf.PrefixSet) > 0 {
		set := patricia.New()
		for _, c := range pf.PrefixSet {
			if err := set.AddCIDR(c); err != nil {
				return nil, errors.Wrapf(err, "prefix_set entry %q", c)
			}
		}
		idx := a.AddPrefixSet(set)
		a.Pfxmtch(idx)
		haveCond = true
	}
	if pf.ASPattern != "" {
		idx, err := a.AddASPattern(pf.ASPattern)
		if err != nil {
			return nil, errors.Wrap(err, "as_pattern")
		}
		a.Asmtch(idx)
		if haveCond {
			a.And()
		}
		haveCond = true
	}
	if !haveCond {
		return nil, fmt.Errorf("filterfile: program %q has no condition", pf.Name)
	}
	a.End()
	return a.Program(), nil
}

// NewFiltersFromFile loads a FilterFile from path using koanf and builds
// the convenience (non-VM) filters it describes. Use LoadFilterFile
// plus Programs for the VM-backed ones.
func NewFiltersFromFile(path string) ([]filter.Filter, error) {
	ff, err := LoadFilterFile(path)
	if err != nil {
		return nil, err
	}
	return ff.Filters()
}

// LoadFilterFile loads and parses a FilterFile from a YAML path, with
// BGPFILTER_ prefixed environment variables (double-underscore separated
// for nesting, e.g. BGPFILTER_SOURCE_ASES) taking precedence.
func LoadFilterFile(path string) (FilterFile, error) {
	var ff FilterFile
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return ff, errors.Wrapf(err, "loading filter file %s", path)
	}
	if err := k.Load(env.Provider("BGPFILTER_", ".", envKeyTransform), nil); err != nil {
		return ff, errors.Wrap(err, "loading env overlay")
	}
	if err := k.Unmarshal("", &ff); err != nil {
		return ff, errors.Wrap(err, "unmarshaling filter file")
	}
	return ff, nil
}

func envKeyTransform(s string) string {
	const prefix = "BGPFILTER_"
	if len(s) > len(prefix) {
		s = s[len(prefix):]
	}
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '_' && i+1 < len(s) && s[i+1] == '_' {
			out = append(out, '.')
			i++
			continue
		}
		if c >= 'A' && c <= 'Z' {
			c = c - 'A' + 'a'
		}
		out = append(out, c)
	}
	return string(out)
}
