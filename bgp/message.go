// Package bgp decodes BGP-4 messages (RFC 4271, plus the 4-octet ASN
// (RFC 6793), multiprotocol (RFC 4760), ADD-PATH (RFC 7911) and extended
// message (RFC 8654) extensions) over a caller-owned byte buffer.
//
// Decoding is zero-copy and lazy: FromBuffer/Read only validate the
// message header and, for UPDATE messages, locate the withdrawn-routes,
// path-attribute and NLRI spans without parsing attribute contents.
// Attribute values are resolved on first access through an offset cache
// and handed back as sub-slices of the original buffer.
package bgp

import (
	"github.com/CSUNetSec/bgpcore/errstat"
	"github.com/CSUNetSec/bgpcore/stream"
	"github.com/CSUNetSec/bgpcore/wire"
)

// Message is a decoded BGP message shell: the header fields plus a
// buffer slice for the body, not yet interpreted as any particular
// message type. Call AsOpen/AsUpdate/AsNotification/AsRouteRefresh to get
// a typed view.
type Message struct {
	raw   []byte // header + body, trimmed to the declared Length
	flags Flags
	errs  *errstat.Status
}

// SetErrStatus installs status as the error carrier every fallible
// method on m (and on any Update/Open/... view built from m) reports
// through, mirroring vm.Machine's SetErrStatus. A nil status (the
// default) means errors are only ever returned, never raised.
func (m *Message) SetErrStatus(status *errstat.Status) { m.errs = status }

// raise reports err through m's installed Status, if any, and returns
// err unchanged so callers can wrap a return statement with it.
func (m *Message) raise(err error, fn string) error {
	if err != nil && m.errs != nil {
		m.errs.Raise(err, errstat.Srcloc{File: "bgp", Func: fn})
	}
	return err
}

// Marker returns the 16-byte marker field.
func (m *Message) Marker() []byte { return m.raw[:MarkerLen] }

// Length returns the declared message length, including the header.
func (m *Message) Length() int { return len(m.raw) }

// Type returns the message type code (MsgOpen, MsgUpdate, ...).
func (m *Message) Type() uint8 { return m.raw[18] }

// Flags returns the decode flags the message was constructed with.
func (m *Message) Flags() Flags { return m.flags }

// body returns the message payload following the fixed header.
func (m *Message) body() []byte { return m.raw[HeaderSize:] }

// Clear releases the message's reference to its backing buffer so the
// buffer can be garbage collected independently of the Message value,
// mirroring the original library's Bgp_ClearMsg.
func (m *Message) Clear() {
	m.raw = nil
}

func maxSize(flags Flags) int {
	if flags.has(FlagExMsg) {
		return MaxExMsg
	}
	return MaxMsgSize
}

func allOnes(b []byte) bool {
	for _, c := range b {
		if c != 0xff {
			return false
		}
	}
	return true
}

// FromBuffer decodes the single BGP message at the start of data. data
// may contain trailing bytes belonging to a following message; only the
// declared Length bytes are consumed and referenced by the returned
// Message.
func FromBuffer(data []byte, flags Flags) (*Message, error) {
	if len(data) < HeaderSize {
		return nil, ErrTruncMsg
	}
	if !allOnes(data[:MarkerLen]) {
		return nil, ErrBadMarker
	}
	length := int(wire.BE16(data[MarkerLen : MarkerLen+2]))
	if length < HeaderSize {
		return nil, ErrTruncMsg
	}
	if length > maxSize(flags) {
		return nil, ErrOverSize
	}
	if len(data) < length {
		return nil, ErrTruncMsg
	}
	return &Message{raw: data[:length], flags: flags}, nil
}

// FromBufferStatus is FromBuffer, additionally raising any decode error
// through status (a nil status is a valid no-op) and installing status
// on the returned Message so every view built from it (Update, Open,
// ...) reports through the same carrier.
func FromBufferStatus(data []byte, flags Flags, status *errstat.Status) (*Message, error) {
	m, err := FromBuffer(data, flags)
	if status != nil {
		status.Raise(err, errstat.Srcloc{File: "bgp", Func: "FromBuffer"})
	}
	if err != nil {
		return nil, err
	}
	m.errs = status
	return m, nil
}

// Read decodes a single BGP message from r. Unlike FromBuffer, the
// header and body are read in two short-read-is-error Read calls (see
// stream.Reader), so r need not buffer a whole message ahead of time.
func Read(r stream.Reader, flags Flags) (*Message, error) {
	hdr := make([]byte, HeaderSize)
	if err := r.Read(hdr); err != nil {
		return nil, err
	}
	if !allOnes(hdr[:MarkerLen]) {
		return nil, ErrBadMarker
	}
	length := int(wire.BE16(hdr[MarkerLen : MarkerLen+2]))
	if length < HeaderSize {
		return nil, ErrTruncMsg
	}
	if length > maxSize(flags) {
		return nil, ErrOverSize
	}
	buf := make([]byte, length)
	copy(buf, hdr)
	if length > HeaderSize {
		if err := r.Read(buf[HeaderSize:]); err != nil {
			return nil, err
		}
	}
	return &Message{raw: buf, flags: flags}, nil
}

// ReadStatus is Read, additionally raising any decode error through
// status (a nil status is a valid no-op) and installing status on the
// returned Message, mirroring FromBufferStatus.
func ReadStatus(r stream.Reader, flags Flags, status *errstat.Status) (*Message, error) {
	m, err := Read(r, flags)
	if status != nil {
		status.Raise(err, errstat.Srcloc{File: "bgp", Func: "Read"})
	}
	if err != nil {
		return nil, err
	}
	m.errs = status
	return m, nil
}

// Open is a typed view over an OPEN message body.
type Open struct {
	msg *Message
}

// Version, MyAS, HoldTime and BGPIdentifier return the fixed-position
// OPEN fields, RFC 4271 §4.2.
func (o *Open) Version() uint8      { return o.msg.body()[0] }
func (o *Open) MyAS() uint16        { return wire.BE16(o.msg.body()[1:3]) }
func (o *Open) HoldTime() uint16    { return wire.BE16(o.msg.body()[3:5]) }
func (o *Open) BGPIdentifier() []byte { return o.msg.body()[5:9] }

// ParmIter returns an iterator over the OPEN message's optional
// parameters (RFC 4271 §4.2, "Opt Parm").
func (o *Open) ParmIter() (ParmIter, error) {
	body := o.msg.body()
	if len(body) < 10 {
		return ParmIter{}, o.msg.raise(ErrTruncMsg, "ParmIter")
	}
	plen := int(body[9])
	if len(body) < 10+plen {
		return ParmIter{}, o.msg.raise(ErrBadOpenLen, "ParmIter")
	}
	return ParmIter{buf: body[10 : 10+plen]}, nil
}

// AsOpen interprets the message as an OPEN message.
func (m *Message) AsOpen() (*Open, error) {
	if m.Type() != MsgOpen {
		return nil, m.raise(ErrBadType, "AsOpen")
	}
	if len(m.body()) < 10 {
		return nil, m.raise(ErrTruncMsg, "AsOpen")
	}
	return &Open{msg: m}, nil
}

// Notification is a typed view over a NOTIFICATION message body.
type Notification struct {
	msg *Message
}

// Code and Subcode return the NOTIFICATION error code fields.
func (n *Notification) Code() uint8    { return n.msg.body()[0] }
func (n *Notification) Subcode() uint8 { return n.msg.body()[1] }

// Data returns the NOTIFICATION's variable-length data field.
func (n *Notification) Data() []byte { return n.msg.body()[2:] }

// AsNotification interprets the message as a NOTIFICATION message.
func (m *Message) AsNotification() (*Notification, error) {
	if m.Type() != MsgNotification {
		return nil, m.raise(ErrBadType, "AsNotification")
	}
	if len(m.body()) < 2 {
		return nil, m.raise(ErrTruncMsg, "AsNotification")
	}
	return &Notification{msg: m}, nil
}

// RouteRefresh is a typed view over a ROUTE-REFRESH message body (RFC
// 7313/2918).
type RouteRefresh struct {
	msg *Message
}

// AFI and SAFI return the address family this refresh request concerns.
func (rr *RouteRefresh) AFI() uint16 { return wire.BE16(rr.msg.body()[0:2]) }
func (rr *RouteRefresh) SAFI() uint8 { return rr.msg.body()[3] }

// AsRouteRefresh interprets the message as a ROUTE-REFRESH message.
func (m *Message) AsRouteRefresh() (*RouteRefresh, error) {
	if m.Type() != MsgRouteRefresh {
		return nil, m.raise(ErrBadType, "AsRouteRefresh")
	}
	if len(m.body()) < 4 {
		return nil, m.raise(ErrTruncMsg, "AsRouteRefresh")
	}
	return &RouteRefresh{msg: m}, nil
}
