package fileutil

import (
	"bufio"
	"compress/bzip2"
	"io"
	"net"
	"os"
	"path/filepath"

	"github.com/CSUNetSec/bgpcore/bgp"
	"github.com/CSUNetSec/bgpcore/filter"
	"github.com/CSUNetSec/bgpcore/mrt"
	"github.com/pkg/errors"
)

// Capture pairs a decoded BGP UPDATE with the MRT record metadata and
// originating peer it came from, giving BGP4MP live-feed records and
// TABLE_DUMP[_V2] RIB rows the same shape once both are flattened down
// to individual UPDATE messages.
type Capture struct {
	Timestamp uint32
	Type      uint16
	Subtype   uint16
	PeerAS    uint32
	PeerIP    net.IP
	Update    *bgp.Update
}

type mrtReader struct {
	in         io.ReadCloser
	scanner    *bufio.Scanner
	filters    []filter.Filter
	rebuild    mrt.RebuildFlags
	peers      *mrt.PeerIndexTable
	pending    []Capture
	err        error
	lastTok    *Capture
	lastTokErr error
}

// NewMrtFileReader creates a wrapper around an open MRT file (a .bz2
// suffix is transparently decompressed). After a successful call the
// caller must call Close(). Entries are read using the Scan() method and
// any internal scanner errors are accessed using the Err() method.
// rebuild controls how RIB dump entries (TABLE_DUMP/TABLE_DUMP_V2) are
// turned back into UPDATE messages; BGP4MP records carry one already and
// ignore it.
func NewMrtFileReader(fname string, filters []filter.Filter, rebuild mrt.RebuildFlags) (*mrtReader, error) {
	if _, err := os.Stat(fname); err != nil {
		return nil, errors.Wrap(err, "stat")
	}
	fp, err := os.Open(fname)
	if err != nil {
		return nil, errors.Wrap(err, "open")
	}
	return &mrtReader{
		in:      fp,
		scanner: getScanner(fp),
		filters: filters,
		rebuild: rebuild,
	}, nil
}

// Scan returns true if there is a next Capture to return, either freshly
// decoded from the underlying stream or queued from a RIB dump record
// that expanded into several. If there is a scanning error, Scan becomes
// a no-op. A Capture that does not pass filters is skipped and scanning
// continues until one does. A record that fails to parse or expand still
// makes Scan return true; GetCapture then returns its error.
func (m *mrtReader) Scan() bool {
	if m.err != nil {
		return false
	}
	for {
		if len(m.pending) > 0 {
			c := m.pending[0]
			m.pending = m.pending[1:]
			if filter.All(m.filters, c.Update) {
				m.lastTok, m.lastTokErr = &c, nil
				return true
			}
			continue
		}
		if !m.scanner.Scan() {
			m.err = m.scanner.Err()
			return false
		}
		rec, err := mrt.ParseRecord(m.scanner.Bytes())
		if err != nil {
			m.lastTok, m.lastTokErr = nil, errors.Wrap(err, "parseRecord")
			return true
		}
		caps, err := m.expand(rec)
		if err != nil {
			m.lastTok, m.lastTokErr = nil, errors.Wrap(err, "expand")
			return true
		}
		m.pending = caps
	}
}

// GetCapture returns the current scanned Capture along with a possible
// error encountered while decoding it.
func (m *mrtReader) GetCapture() (*Capture, error) {
	return m.lastTok, m.lastTokErr
}

// Close closes the underlying reader.
func (m *mrtReader) Close() {
	m.in.Close()
}

// Err shows errors that might have occurred in the underlying bufio
// scanner. Such errors make Scan a no-op.
func (m *mrtReader) Err() error {
	return m.err
}

func (m *mrtReader) expand(rec *mrt.Record) ([]Capture, error) {
	switch rec.Type {
	case mrt.TypeBGP4MP, mrt.TypeBGP4MPET:
		return m.expandBGP4MP(rec)
	case mrt.TypeTableDumpV2:
		return m.expandTableDumpV2(rec)
	case mrt.TypeTableDump:
		return m.expandTableDumpV1(rec)
	default:
		return nil, nil
	}
}

func (m *mrtReader) expandBGP4MP(rec *mrt.Record) ([]Capture, error) {
	switch rec.Subtype {
	case mrt.BGP4MPStateChange, mrt.BGP4MPStateChangeAS4:
		return nil, nil // no embedded BGP message
	}
	hdr, msg, err := mrt.BGP4MPMessage(rec)
	if err != nil {
		return nil, err
	}
	upd, err := msg.AsUpdate()
	if err == bgp.ErrBadType {
		return nil, nil // OPEN/KEEPALIVE/NOTIFICATION/ROUTE-REFRESH: not filterable, skip
	} else if err != nil {
		return nil, err
	}
	return []Capture{{
		Timestamp: rec.Timestamp,
		Type:      rec.Type,
		Subtype:   rec.Subtype,
		PeerAS:    hdr.PeerAS,
		PeerIP:    hdr.PeerIP,
		Update:    upd,
	}}, nil
}

func (m *mrtReader) expandTableDumpV2(rec *mrt.Record) ([]Capture, error) {
	if rec.Subtype == mrt.SubtypePeerIndexTable {
		t, err := mrt.ParsePeerIndexTable(rec)
		if err != nil {
			return nil, err
		}
		m.peers = t
		return nil, nil
	}

	var row *mrt.RIBRow
	var err error
	switch rec.Subtype {
	case mrt.SubtypeRIBIPv4Unicast, mrt.SubtypeRIBIPv6Unicast:
		row, err = mrt.ParseRIBUnicast(rec)
	case mrt.SubtypeRIBGeneric:
		row, err = mrt.ParseRIBGeneric(rec)
	default:
		return nil, nil // multicast RIBs: not BGP UPDATE-shaped data we reconstruct
	}
	if err != nil {
		return nil, err
	}

	caps := make([]Capture, 0, len(row.Entries))
	for i := range row.Entries {
		entry := &row.Entries[i]
		msg, err := mrt.RebuildFromRIB(row, entry, m.rebuild)
		if err != nil {
			continue // one bad peer entry shouldn't sink the whole row
		}
		upd, err := msg.AsUpdate()
		if err != nil {
			continue
		}
		c := Capture{Timestamp: rec.Timestamp, Type: rec.Type, Subtype: rec.Subtype, Update: upd}
		if m.peers != nil {
			if peer, ok := m.peers.Peer(entry.PeerIndex); ok {
				c.PeerAS = peer.AS
				c.PeerIP = peer.IP
			}
		}
		caps = append(caps, c)
	}
	return caps, nil
}

func (m *mrtReader) expandTableDumpV1(rec *mrt.Record) ([]Capture, error) {
	e, err := mrt.ParseTableDumpV1(rec)
	if err != nil {
		return nil, err
	}
	afi := uint16(bgp.AfiIPv4)
	if rec.Subtype == mrt.TableDumpAFIIPv6 {
		afi = bgp.AfiIPv6
	}
	row := &mrt.RIBRow{AFI: afi, SAFI: bgp.SafiUnicast, Prefix: e.Prefix, PrefixLen: e.PrefixLen}
	entry := &mrt.RIBEntry{OriginatedTime: e.OriginatedTime, RawAttrs: e.RawAttrs}
	msg, err := mrt.RebuildFromRIB(row, entry, m.rebuild)
	if err != nil {
		return nil, err
	}
	upd, err := msg.AsUpdate()
	if err != nil {
		return nil, err
	}
	return []Capture{{
		Timestamp: rec.Timestamp,
		Type:      rec.Type,
		Subtype:   rec.Subtype,
		PeerAS:    e.PeerAS,
		PeerIP:    e.PeerIP,
		Update:    upd,
	}}, nil
}

// getScanner wraps file in a bufio.Scanner framed on MRT record
// boundaries; a .bz2 suffix is decompressed on the fly. Maximum token
// size for an MRT entry is 2MB, generous for a single RIB dump record.
func getScanner(file *os.File) *bufio.Scanner {
	var scanner *bufio.Scanner
	if filepath.Ext(file.Name()) == ".bz2" {
		scanner = bufio.NewScanner(bzip2.NewReader(file))
	} else {
		scanner = bufio.NewScanner(file)
	}
	scanner.Split(mrt.SplitMrt)
	scanbuffer := make([]byte, 2<<20)
	scanner.Buffer(scanbuffer, cap(scanbuffer))
	return scanner
}
