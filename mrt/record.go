package mrt

import (
	"github.com/CSUNetSec/bgpcore/errstat"
	"github.com/CSUNetSec/bgpcore/wire"
)

// Record is a decoded MRT record header plus its undecoded payload.
type Record struct {
	Timestamp uint32
	Type      uint16
	Subtype   uint16
	Payload   []byte
}

// ParseRecord decodes the MRT header at the start of data and returns a
// Record referencing the declared-length payload that follows it. data
// may contain trailing bytes belonging to later records.
func ParseRecord(data []byte) (*Record, error) {
	if len(data) < HeaderLen {
		return nil, ErrTruncMRT
	}
	length := wire.BE32(data[8:12])
	if len(data)-HeaderLen < int(length) {
		return nil, ErrTruncMRT
	}
	return &Record{
		Timestamp: wire.BE32(data[0:4]),
		Type:      wire.BE16(data[4:6]),
		Subtype:   wire.BE16(data[6:8]),
		Payload:   data[HeaderLen : HeaderLen+int(length)],
	}, nil
}

// ParseRecordStatus is ParseRecord, additionally raising any decode
// error through status (a nil status is a valid no-op), mirroring
// bgp.FromBufferStatus. It is the entry point for callers that want
// every malformed record in a stream reported through a shared error
// carrier rather than just returned up the call stack.
func ParseRecordStatus(data []byte, status *errstat.Status) (*Record, error) {
	rec, err := ParseRecord(data)
	if status != nil {
		status.Raise(err, errstat.Srcloc{File: "mrt", Func: "ParseRecord"})
	}
	return rec, err
}

// SplitMrt is a bufio.SplitFunc that frames successive MRT records off a
// byte stream, for use with bufio.Scanner.
func SplitMrt(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if atEOF {
		return len(data), data, nil
	}
	if len(data) < HeaderLen {
		return 0, nil, nil // need more data
	}
	total := int(wire.BE32(data[8:12])) + HeaderLen
	if len(data) < total {
		return 0, nil, nil // need more data
	}
	return total, data[:total], nil
}
