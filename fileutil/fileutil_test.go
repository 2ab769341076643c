package fileutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/CSUNetSec/bgpcore/bgp"
	"github.com/CSUNetSec/bgpcore/filter"
	"github.com/CSUNetSec/bgpcore/mrt"
	"github.com/CSUNetSec/bgpcore/wire"
)

func marker() []byte {
	m := make([]byte, bgp.MarkerLen)
	for i := range m {
		m[i] = 0xff
	}
	return m
}

// buildBGP4MPAS4Record wraps a minimal 1-prefix UPDATE (AS4 legacy AS_PATH
// 65000->400, NLRI 10.0.0.0/24) in a BGP4MP_MESSAGE_AS4 MRT record.
func buildBGP4MPAS4Record(t *testing.T) []byte {
	t.Helper()
	origin := []byte{0x40, bgp.AttrOrigin, 1, 0}
	asPath := []byte{0x40, bgp.AttrASPath, 6, bgp.AsSequence, 2, 0xfd, 0xe8, 0x01, 0x90}
	nextHop := []byte{0x40, bgp.AttrNextHop, 4, 192, 0, 2, 1}
	tpa := append(append(append([]byte{}, origin...), asPath...), nextHop...)
	nlri := []byte{24, 10, 0, 0}

	body := make([]byte, 0)
	body = wire.AppendBE16(body, 0)
	body = wire.AppendBE16(body, uint16(len(tpa)))
	body = append(body, tpa...)
	body = append(body, nlri...)

	length := bgp.HeaderSize + len(body)
	bgpMsg := append([]byte{}, marker()...)
	bgpMsg = wire.AppendBE16(bgpMsg, uint16(length))
	bgpMsg = append(bgpMsg, bgp.MsgUpdate)
	bgpMsg = append(bgpMsg, body...)

	// BGP4MP_MESSAGE_AS4 payload: peer AS(4) local AS(4) ifindex(2) afi(2) peer IP(4) local IP(4) + BGP msg
	payload := make([]byte, 0)
	payload = wire.AppendBE32(payload, 65000)
	payload = wire.AppendBE32(payload, 100)
	payload = wire.AppendBE16(payload, 0)
	payload = wire.AppendBE16(payload, bgp.AfiIPv4)
	payload = append(payload, 198, 51, 100, 1)
	payload = append(payload, 198, 51, 100, 2)
	payload = append(payload, bgpMsg...)

	rec := make([]byte, 0)
	rec = wire.AppendBE32(rec, 1700000000)
	rec = wire.AppendBE16(rec, mrt.TypeBGP4MP)
	rec = wire.AppendBE16(rec, mrt.BGP4MPMessageAS4)
	rec = wire.AppendBE32(rec, uint32(len(payload)))
	rec = append(rec, payload...)
	return rec
}

func TestMrtFileReaderScansBGP4MPUpdate(t *testing.T) {
	dir := t.TempDir()
	fname := filepath.Join(dir, "sample.mrt")
	if err := os.WriteFile(fname, buildBGP4MPAS4Record(t), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	r, err := NewMrtFileReader(fname, nil, 0)
	if err != nil {
		t.Fatalf("NewMrtFileReader: %v", err)
	}
	defer r.Close()

	if !r.Scan() {
		t.Fatalf("expected one capture, Scan returned false (err=%v)", r.Err())
	}
	c, err := r.GetCapture()
	if err != nil {
		t.Fatalf("GetCapture: %v", err)
	}
	if c.PeerAS != 65000 {
		t.Fatalf("PeerAS = %d, want 65000", c.PeerAS)
	}
	nlri, err := c.Update.NLRI()
	if err != nil || len(nlri) != 1 || nlri[0].Mask != 24 {
		t.Fatalf("NLRI = %v, err %v; want one /24", nlri, err)
	}

	if r.Scan() {
		t.Fatalf("expected exactly one record, got a second Scan")
	}
}

func TestMrtFileReaderAppliesFilters(t *testing.T) {
	dir := t.TempDir()
	fname := filepath.Join(dir, "sample.mrt")
	if err := os.WriteFile(fname, buildBGP4MPAS4Record(t), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	rejectAll := []filter.Filter{func(*bgp.Update) bool { return false }}
	r, err := NewMrtFileReader(fname, rejectAll, 0)
	if err != nil {
		t.Fatalf("NewMrtFileReader: %v", err)
	}
	defer r.Close()

	if r.Scan() {
		t.Fatalf("expected the reject-all filter to drop the only record")
	}
	if r.Err() != nil {
		t.Fatalf("unexpected scanner error: %v", r.Err())
	}
}

func TestLoadFilterFileAndPrograms(t *testing.T) {
	dir := t.TempDir()
	fname := filepath.Join(dir, "filters.yaml")
	contents := `
monitored_prefixes:
  - 10.0.0.0/8
source_ases:
  - 65000
programs:
  - name: origin-400
    as_pattern: "400"
`
	if err := os.WriteFile(fname, []byte(contents), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	ff, err := LoadFilterFile(fname)
	if err != nil {
		t.Fatalf("LoadFilterFile: %v", err)
	}
	if len(ff.MonitoredPrefixes) != 1 || ff.MonitoredPrefixes[0] != "10.0.0.0/8" {
		t.Fatalf("MonitoredPrefixes = %v", ff.MonitoredPrefixes)
	}
	if len(ff.SourceASes) != 1 || ff.SourceASes[0] != 65000 {
		t.Fatalf("SourceASes = %v", ff.SourceASes)
	}

	filters, err := ff.getFilters()
	if err != nil {
		t.Fatalf("getFilters: %v", err)
	}
	if len(filters) != 2 {
		t.Fatalf("expected 2 convenience filters, got %d", len(filters))
	}

	machines, err := ff.Programs()
	if err != nil {
		t.Fatalf("Programs: %v", err)
	}
	if len(machines) != 1 {
		t.Fatalf("expected 1 compiled program, got %d", len(machines))
	}
}

func TestNewFiltersFromFile(t *testing.T) {
	dir := t.TempDir()
	fname := filepath.Join(dir, "filters.yaml")
	contents := "monitored_prefixes:\n  - 10.0.0.0/8\n"
	if err := os.WriteFile(fname, []byte(contents), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	filters, err := NewFiltersFromFile(fname)
	if err != nil {
		t.Fatalf("NewFiltersFromFile: %v", err)
	}
	if len(filters) != 1 {
		t.Fatalf("expected 1 filter, got %d", len(filters))
	}
}
