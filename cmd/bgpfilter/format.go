// Formatters turn a decoded capture into the text that lands in the
// dump file. Current formatters:
// - TextFormatter (NewTextFormatter())
// - JSONFormatter (NewJSONFormatter())
// - UniquePrefixList / UniquePrefixSeries (dedup over seen prefixes)
package main

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	radix "github.com/armon/go-radix"

	"github.com/CSUNetSec/bgpcore/bgp"
	"github.com/CSUNetSec/bgpcore/fileutil"
)

// Formatter turns one capture into its dump-file representation. Most
// formatters return their rendering from format() directly; the
// Unique* formatters instead accumulate state and render it all at
// once from summarize().
type Formatter interface {
	format(*fileutil.Capture) (string, error)
	summarize()
}

// -----------------------------------------------------------
// TextFormatter is a simple, human-readable dump: one line per capture,
// listing its advertised and withdrawn routes.
type TextFormatter struct {
	msgNum int
}

func NewTextFormatter() *TextFormatter {
	return &TextFormatter{}
}

func (t *TextFormatter) format(c *fileutil.Capture) (string, error) {
	adv, err := c.Update.NLRI()
	if err != nil {
		adv = nil
	}
	wdn, err := c.Update.WithdrawnRoutes()
	if err != nil {
		wdn = nil
	}
	ret := fmt.Sprintf("[%d] ts=%d peer=%s(AS%d) adv=%v wdn=%v\n",
		t.msgNum, c.Timestamp, c.PeerIP, c.PeerAS, adv, wdn)
	t.msgNum++
	return ret, nil
}

func (t *TextFormatter) summarize() {}

// ------------------------------------------------------------
// JSONFormatter renders each capture as one JSON object per line.
type JSONFormatter struct{}

func NewJSONFormatter() JSONFormatter { return JSONFormatter{} }

// captureDTO is the wire shape JSONFormatter emits; bgp.Update itself
// has no exported fields to marshal directly (its state is a cached
// offset table over a private buffer), so the interesting bits are
// pulled out through its accessors.
type captureDTO struct {
	Timestamp uint32        `json:"timestamp"`
	PeerAS    uint32        `json:"peer_as"`
	PeerIP    string        `json:"peer_ip"`
	Advertised []prefixDTO  `json:"advertised,omitempty"`
	Withdrawn  []prefixDTO  `json:"withdrawn,omitempty"`
	ASPath     []uint32     `json:"as_path,omitempty"`
	Communities []string    `json:"communities,omitempty"`
}

type prefixDTO struct {
	Addr string `json:"addr"`
	Mask uint8  `json:"mask"`
}

func toPrefixDTOs(prefixes []bgp.Prefix) []prefixDTO {
	if len(prefixes) == 0 {
		return nil
	}
	out := make([]prefixDTO, len(prefixes))
	for i, p := range prefixes {
		out[i] = prefixDTO{Addr: p.Addr.String(), Mask: p.Mask}
	}
	return out
}

func toCaptureDTO(c *fileutil.Capture) captureDTO {
	dto := captureDTO{Timestamp: c.Timestamp, PeerAS: c.PeerAS}
	if c.PeerIP != nil {
		dto.PeerIP = c.PeerIP.String()
	}
	if adv, err := c.Update.AllPrefixes(); err == nil {
		dto.Advertised = toPrefixDTOs(adv)
	}
	if wdn, err := c.Update.AllWithdrawn(); err == nil {
		dto.Withdrawn = toPrefixDTOs(wdn)
	}
	if segs, err := c.Update.ASPath(); err == nil {
		for _, s := range segs {
			for _, a := range s.ASNs {
				dto.ASPath = append(dto.ASPath, a.Uint32())
			}
		}
	}
	if comms, ok, err := c.Update.Communities(); err == nil && ok {
		for _, cm := range comms {
			dto.Communities = append(dto.Communities, fmt.Sprintf("%d:%d", cm.ASN, cm.Value))
		}
	}
	return dto
}

func (j JSONFormatter) format(c *fileutil.Capture) (string, error) {
	b, err := json.Marshal(toCaptureDTO(c))
	return string(b) + "\n", err
}

func (j JSONFormatter) summarize() {}

// -------------------------------------------------------------
// PrefixHistory records every advertisement/withdrawal event seen for
// one top-level prefix.
type PrefixHistory struct {
	Pref   string
	Events []PrefixEvent
}

func NewPrefixHistory(pref string, firstTime time.Time, advert bool) *PrefixHistory {
	return &PrefixHistory{Pref: pref, Events: []PrefixEvent{{firstTime, advert}}}
}

func (ph *PrefixHistory) addEvent(ts time.Time, advert bool) {
	ph.Events = append(ph.Events, PrefixEvent{ts, advert})
}

type PrefixEvent struct {
	Timestamp  time.Time
	Advertised bool
}

func captureTime(c *fileutil.Capture) time.Time {
	return time.Unix(int64(c.Timestamp), 0).UTC()
}

type routeKey struct {
	addr string
	mask uint8
}

func (r routeKey) String() string { return fmt.Sprintf("%s/%d", r.addr, r.mask) }

// prefixRadixKey builds a bitstring radix key for p: an address-family
// character and one character per masked bit, mirroring patricia.Set's
// internal key layout so that a
// trie prefix relationship on the key matches CIDR containment. Kept
// as a local helper rather than exported from patricia, since this
// dedup map needs per-key *PrefixHistory values and patricia.Set only
// stores membership.
func prefixRadixKey(p bgp.Prefix) string {
	addr, fam := p.Addr.To4(), byte('4')
	if addr == nil {
		addr, fam = p.Addr.To16(), '6'
	}
	out := append(make([]byte, 0, int(p.Mask)+1), fam)
	bits := int(p.Mask) + 1
	for i := 0; i < len(addr) && i*8 < int(p.Mask); i++ {
		for b := 7; b >= 0 && len(out) < bits; b-- {
			if addr[i]&(1<<uint(b)) != 0 {
				out = append(out, '1')
			} else {
				out = append(out, '0')
			}
		}
	}
	return string(out)
}

// ---------------------------------------------------------------
// UniquePrefixList looks at every incoming capture and, once
// summarized, outputs only the top-level prefixes seen (child
// prefixes of an already-seen, less-specific prefix are dropped).
type UniquePrefixList struct {
	output   *os.File
	mux      sync.Mutex
	prefixes map[string]*PrefixHistory
	names    map[string]string
}

func NewUniquePrefixList(fd *os.File) *UniquePrefixList {
	return &UniquePrefixList{
		output:   fd,
		prefixes: make(map[string]*PrefixHistory),
		names:    make(map[string]string),
	}
}

func (upl *UniquePrefixList) format(c *fileutil.Capture) (string, error) {
	ts := captureTime(c)
	if adv, err := c.Update.AllPrefixes(); err == nil {
		upl.addRoutes(adv, ts, true)
	}
	if wdn, err := c.Update.AllWithdrawn(); err == nil {
		upl.addRoutes(wdn, ts, false)
	}
	return "", nil
}

func (upl *UniquePrefixList) addRoutes(prefixes []bgp.Prefix, ts time.Time, advert bool) {
	upl.mux.Lock()
	defer upl.mux.Unlock()
	for _, p := range prefixes {
		key := prefixRadixKey(p)
		name := routeKey{p.Addr.String(), p.Mask}.String()
		if existing, ok := upl.prefixes[key]; !ok {
			upl.prefixes[key] = NewPrefixHistory(name, ts, advert)
			upl.names[key] = name
		} else if existing.Events[0].Timestamp.After(ts) {
			upl.prefixes[key] = NewPrefixHistory(name, ts, advert)
		}
	}
}

func (upl *UniquePrefixList) summarize() {
	deleteChildPrefixKeys(upl.prefixes)
	for _, ph := range upl.prefixes {
		fmt.Fprintf(upl.output, "%s\n", ph.Pref)
	}
}

// -----------------------------------------------------------------
// UniquePrefixSeries does the same bookkeeping as UniquePrefixList but
// emits a gob-encoded PrefixHistory per top-level prefix, preserving
// every event rather than just the first.
type UniquePrefixSeries struct {
	output   *os.File
	mux      sync.Mutex
	prefixes map[string]*PrefixHistory
}

func NewUniquePrefixSeries(fd *os.File) *UniquePrefixSeries {
	return &UniquePrefixSeries{output: fd, prefixes: make(map[string]*PrefixHistory)}
}

func (ups *UniquePrefixSeries) format(c *fileutil.Capture) (string, error) {
	ts := captureTime(c)
	if adv, err := c.Update.AllPrefixes(); err == nil {
		ups.addRoutes(adv, ts, true)
	}
	if wdn, err := c.Update.AllWithdrawn(); err == nil {
		ups.addRoutes(wdn, ts, false)
	}
	return "", nil
}

func (ups *UniquePrefixSeries) addRoutes(prefixes []bgp.Prefix, ts time.Time, advert bool) {
	ups.mux.Lock()
	defer ups.mux.Unlock()
	for _, p := range prefixes {
		key := prefixRadixKey(p)
		name := routeKey{p.Addr.String(), p.Mask}.String()
		if existing, ok := ups.prefixes[key]; !ok {
			ups.prefixes[key] = NewPrefixHistory(name, ts, advert)
		} else {
			existing.addEvent(ts, advert)
		}
	}
}

func (ups *UniquePrefixSeries) summarize() {
	g := gob.NewEncoder(ups.output)
	deleteChildPrefixKeys(ups.prefixes)
	for _, ph := range ups.prefixes {
		g.Encode(ph)
	}
}

// prefixWalker drops every entry under the current top-level prefix
// except the top-level prefix itself, as rTree.Walk visits it.
type prefixWalker struct {
	top      bool
	prefixes map[string]*PrefixHistory
}

func (w *prefixWalker) subWalk(s string, _ interface{}) bool {
	if w.top {
		w.top = false
	} else {
		delete(w.prefixes, s)
	}
	return false
}

// deleteChildPrefixKeys removes every key covered by a less-specific
// key already present in pm, leaving only top-level prefixes. Built
// directly on armon/go-radix (rather than patricia.Set, which carries
// no values) the same way the teacher's dump formatter pruned child
// prefixes before writing its report.
func deleteChildPrefixKeys(pm map[string]*PrefixHistory) {
	w := &prefixWalker{prefixes: pm}
	rTree := radix.New()
	for key := range pm {
		rTree.Insert(key, nil)
	}
	rTree.Walk(func(s string, _ interface{}) bool {
		w.top = true
		rTree.WalkPrefix(s, w.subWalk)
		return false
	})
}
